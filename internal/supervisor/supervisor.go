package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mq"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

// cancelTimeout ограничивает запрос отмены, который идёт уже после сигнала.
const cancelTimeout = 30 * time.Second

// Причины отмены для метрик и событий.
const (
	reasonTimeout   = "timeout"
	reasonInterrupt = "interrupt"
)

// Supervisor ждёт run и отменяет его, если результат не финальный.
type Supervisor struct {
	svc      RunService
	waiter   *Waiter
	timeout  time.Duration
	metrics  *telemetry.Metrics
	notifier *mq.Notifier
	logger   *slog.Logger
}

// Config задаёт параметры Supervisor. Metrics и Notifier необязательны.
type Config struct {
	Service      RunService
	PollInterval time.Duration
	Timeout      time.Duration

	Metrics  *telemetry.Metrics
	Notifier *mq.Notifier
	Logger   *slog.Logger
}

// New создаёт Supervisor.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		svc:      cfg.Service,
		waiter:   NewWaiter(cfg.Service, cfg.PollInterval, logger),
		timeout:  cfg.Timeout,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
		logger:   logger,
	}
}

// Supervise ждёт run и возвращает его итог.
//
// Финальные статусы никогда не отменяются. Нефинальный статус после
// таймаута и прерванное ожидание приводят к отмене run в сервисе.
func (s *Supervisor) Supervise(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	return s.wait(ctx, run, true)
}

// Await ждёт run так же, как Supervise, но никогда его не отменяет:
// ни после таймаута, ни при прерывании. Run продолжает работать в сервисе.
func (s *Supervisor) Await(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	return s.wait(ctx, run, false)
}

func (s *Supervisor) wait(ctx context.Context, run *domain.Run, cancelRun bool) (*domain.Run, error) {
	logger := telemetry.WithExperiment(telemetry.WithRunID(s.logger, run.ID), run.Experiment)
	start := time.Now()

	last, err := s.waiter.Wait(ctx, run.ID, s.timeout)
	if errors.Is(err, ErrInterrupted) {
		if !cancelRun {
			logger.Warn("wait interrupted, run left in the service")
			return last, err
		}
		logger.Warn("run interrupted, cancelling")
		if cancelErr := s.cancel(ctx, run, reasonInterrupt, statusOf(last)); cancelErr != nil {
			return last, errors.Join(err, cancelErr)
		}
		return last, err
	}
	if err != nil {
		return last, err
	}

	waited := time.Since(start)
	s.metrics.RunFinished(string(last.Status), waited)
	s.notifier.RunFinished(ctx, mq.RunFinishedPayload{
		RunID:      run.ID,
		Experiment: run.Experiment,
		Status:     string(last.Status),
		Error:      last.Error,
	})

	if last.Status.IsTerminal() {
		logger.Info("run finished", "status", last.Status, "waited", waited.String())
		return last, statusError(last)
	}

	timeoutErr := &TimeoutError{RunID: run.ID, Timeout: s.timeout, LastStatus: last.Status}
	if !cancelRun {
		logger.Error("run did not finish in time", "status", last.Status, "timeout", s.timeout)
		return last, timeoutErr
	}

	logger.Warn("run did not finish in time, cancelling", "status", last.Status, "timeout", s.timeout)
	if cancelErr := s.cancel(ctx, run, reasonTimeout, last.Status); cancelErr != nil {
		return last, errors.Join(timeoutErr, cancelErr)
	}
	return last, timeoutErr
}

// cancel отменяет run в сервисе. Запрос идёт с отдельным контекстом:
// исходный может быть уже отменён сигналом.
func (s *Supervisor) cancel(ctx context.Context, run *domain.Run, reason string, lastStatus domain.RunStatus) error {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	if _, err := s.svc.CancelRun(cancelCtx, run.ID); err != nil {
		s.logger.Error("failed to cancel run", "run_id", run.ID, "reason", reason, "error", err)
		return fmt.Errorf("cancel run %s: %w", run.ID, err)
	}

	s.metrics.RunCancelled(reason)
	s.notifier.RunCancelled(ctx, mq.RunCancelledPayload{
		RunID:      run.ID,
		Reason:     reason,
		LastStatus: string(lastStatus),
	})
	return nil
}

func statusOf(run *domain.Run) domain.RunStatus {
	if run == nil {
		return ""
	}
	return run.Status
}
