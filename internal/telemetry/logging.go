package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel определяет уровень логирования из переменной окружения.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func LogLevel() slog.Level {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию): JSON формат, его собирает сервис в логи run
//   - "text": человекочитаемый формат для локального запуска
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stdout, os.Getenv("LOG_FORMAT"), LogLevel())
	slog.SetDefault(logger)
	return logger
}

// NewLogger создаёт логгер с заданными форматом и уровнем.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger задаёт ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithEndpoint возвращает логгер с добавленным endpoint.
func WithEndpoint(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("endpoint", name)
}

// WithExperiment возвращает логгер с добавленным experiment.
func WithExperiment(logger *slog.Logger, experiment string) *slog.Logger {
	return logger.With("experiment", experiment)
}

// Elapsed засекает время операции. Возвращённую функцию вызывают через defer:
// она пишет в лог прошедшее время при любом исходе.
//
//	defer telemetry.Elapsed(logger, "parallel run")()
func Elapsed(logger *slog.Logger, op string) func() {
	start := time.Now()
	return func() {
		logger.Info("elapsed time", "op", op, "elapsed", time.Since(start).String())
	}
}
