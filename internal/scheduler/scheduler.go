package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Job выполняет один запуск по расписанию.
type Job func(ctx context.Context) error

// Scheduler вызывает Job по cron-выражению.
type Scheduler struct {
	cronExpr string
	timezone string
	job      Job
	logger   *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// Config задаёт параметры Scheduler.
type Config struct {
	CronExpr string
	Timezone string
	Job      Job
	Logger   *slog.Logger

	// Now и After подменяют часы в тестах.
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// New создаёт Scheduler и проверяет cron-выражение.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Job == nil {
		return nil, errors.New("scheduler job is required")
	}
	if err := ValidateCronExpr(cfg.CronExpr); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cronExpr: cfg.CronExpr,
		timezone: cfg.Timezone,
		job:      cfg.Job,
		logger:   cfg.Logger,
		now:      cfg.Now,
		after:    cfg.After,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.after == nil {
		s.after = time.After
	}
	return s, nil
}

// Loop спит до каждого следующего времени запуска и вызывает Job.
// Возвращает ctx.Err() после отмены ctx.
func (s *Scheduler) Loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := NextAfter(s.cronExpr, s.timezone, s.now())
		if err != nil {
			return err
		}

		s.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
		}

		s.tick(ctx)
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := s.now()
	if err := s.job(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled run failed", "error", err, "elapsed", time.Since(start).String())
		return
	}
	s.logger.Info("scheduled run finished", "elapsed", time.Since(start).String())
}
