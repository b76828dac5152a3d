package cli

import (
	"context"

	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mq"
)

// Service описывает операции сервиса пайплайнов, доступные из CLI.
type Service interface {
	GetEndpoint(ctx context.Context, name string) (*domain.Endpoint, error)
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	CancelRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, experiment string, limit int) ([]domain.Run, error)
}

// History читает журнал runs.
type History interface {
	ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// HistoryFunc открывает журнал. Возвращённую функцию close вызывают после чтения.
type HistoryFunc func(ctx context.Context) (h History, close func(), err error)

// SubscribeFunc читает события с ключами pattern и передаёт их в handler до отмены ctx.
type SubscribeFunc func(ctx context.Context, pattern mq.RoutingKey, handler mq.Handler) error
