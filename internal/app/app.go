// Package app собирает зависимости бинарников из Config.
//
// Сервис пайплайнов обязателен. Postgres, RabbitMQ и Pushgateway
// подключаются, только если задан их адрес. Недоступная инфраструктура
// пишется в лог и отключается, run от неё не зависит.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient"
	"github.com/shaiso/forecastrun/internal/mq"
	"github.com/shaiso/forecastrun/internal/repo"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

// Ledger записывает отправленные runs.
type Ledger interface {
	Create(ctx context.Context, rec *domain.RunRecord) error
	UpdateStatus(ctx context.Context, runID string, status domain.RunStatus, runErr string) error
}

// Infra содержит необязательные компоненты. Ledger равен nil без DB_URL,
// Notifier равен nil без RABBITMQ_URL.
type Infra struct {
	Ledger   Ledger
	Notifier *mq.Notifier
	Metrics  *telemetry.Metrics

	pushURL string
	logger  *slog.Logger
	closers []func()
}

// NewServiceClient создаёт клиент сервиса пайплайнов.
func NewServiceClient(cfg *config.Config) *mlclient.Client {
	return mlclient.NewClient(mlclient.Config{
		BaseURL:     cfg.ServiceURL,
		Workspace:   cfg.Workspace,
		AccessToken: cfg.AccessToken,
	})
}

// Open подключает инфраструктуру, заданную в cfg.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Infra {
	infra := &Infra{
		Metrics: telemetry.NewMetrics(),
		pushURL: cfg.PushgatewayURL,
		logger:  logger,
	}

	if cfg.DatabaseURL != "" {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("database not available, run ledger disabled", "error", err)
		} else if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Warn("failed to apply schema, run ledger disabled", "error", err)
			pool.Close()
		} else {
			infra.Ledger = repo.NewLedger(pool)
			infra.closers = append(infra.closers, pool.Close)
			logger.Info("database connected")
		}
	}

	if cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events disabled", "error", err)
		} else {
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			infra.Notifier = mq.NewNotifier(mq.NewPublisher(conn, logger), logger)
			infra.closers = append(infra.closers, func() { conn.Close() })
			logger.Info("RabbitMQ connected")
		}
	}

	return infra
}

// Close отправляет метрики под именем job и закрывает соединения.
func (i *Infra) Close(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := i.Metrics.Push(ctx, i.pushURL, job); err != nil {
		i.logger.Warn("failed to push metrics", "error", err)
	}
	for _, closeFn := range i.closers {
		closeFn()
	}
}
