package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

// RunService описывает операции сервиса над run.
type RunService interface {
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	CancelRun(ctx context.Context, id string) (*domain.Run, error)
}

// Waiter опрашивает статус run.
type Waiter struct {
	svc      RunService
	interval time.Duration
	logger   *slog.Logger
}

// NewWaiter создаёт Waiter с интервалом опроса interval.
func NewWaiter(svc RunService, interval time.Duration, logger *slog.Logger) *Waiter {
	return &Waiter{svc: svc, interval: interval, logger: logger}
}

// Wait опрашивает run, пока он не придёт в финальный статус или не истечёт timeout.
//
// По истечении timeout возвращается последний полученный run без ошибки:
// вызывающий код сам проверяет, финальный ли статус. Отмена ctx и ответ
// сервиса RUN_INTERRUPTED возвращаются как ErrInterrupted.
func (w *Waiter) Wait(ctx context.Context, runID string, timeout time.Duration) (*domain.Run, error) {
	logger := telemetry.WithRunID(w.logger, runID)
	deadline := time.Now().Add(timeout)

	var last *domain.Run
	for {
		run, err := w.svc.GetRun(ctx, runID)
		if err != nil {
			if ctx.Err() != nil {
				return last, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
			}
			if errors.Is(err, mlclient.ErrRunInterrupted) {
				return last, fmt.Errorf("%w: %w", ErrInterrupted, err)
			}
			return last, fmt.Errorf("get run %s: %w", runID, err)
		}

		if last == nil || last.Status != run.Status {
			logger.Info("run status", "status", run.Status)
		}
		last = run

		if run.Status.IsTerminal() {
			return run, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			logger.Warn("timed out waiting for run", "status", run.Status, "timeout", timeout)
			return run, nil
		}

		timer := time.NewTimer(min(w.interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		case <-timer.C:
		}
	}
}
