package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient"
	"github.com/shaiso/forecastrun/internal/mq"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

// pipelineSuffix добавляется к имени endpoint для пайплайна новой версии.
const pipelineSuffix = "_Pipeline"

// EndpointService описывает операции сервиса, нужные для публикации.
type EndpointService interface {
	GetEndpoint(ctx context.Context, name string) (*domain.Endpoint, error)
	PublishEndpoint(ctx context.Context, req mlclient.PublishEndpointRequest) (*domain.Endpoint, error)
	PublishPipeline(ctx context.Context, req mlclient.PublishPipelineRequest) (*domain.PublishedPipeline, error)
	AddDefaultVersion(ctx context.Context, endpointName, pipelineID string) (*domain.Endpoint, error)
}

// Publisher публикует пайплайн под именем endpoint.
type Publisher struct {
	svc      EndpointService
	metrics  *telemetry.Metrics
	notifier *mq.Notifier
	logger   *slog.Logger
}

// Config задаёт зависимости Publisher. Metrics и Notifier необязательны.
type Config struct {
	Service  EndpointService
	Metrics  *telemetry.Metrics
	Notifier *mq.Notifier
	Logger   *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(cfg Config) *Publisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		svc:      cfg.Service,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
		logger:   logger,
	}
}

// Resolve проверяет существование endpoint и возвращает план публикации.
//
// Только ErrEndpointNotFound означает отсутствие endpoint. Любая другая
// ошибка возвращается: по ней нельзя решить, создавать ли endpoint.
func (p *Publisher) Resolve(ctx context.Context, name string) (domain.PublishPlan, error) {
	ep, err := p.svc.GetEndpoint(ctx, name)
	if err != nil {
		if errors.Is(err, mlclient.ErrEndpointNotFound) {
			return domain.PublishPlan{Op: domain.PublishCreate, Name: name}, nil
		}
		return domain.PublishPlan{}, fmt.Errorf("resolve endpoint %s: %w", name, err)
	}
	return domain.PublishPlan{Op: domain.PublishAddVersion, Name: name, Endpoint: ep}, nil
}

// Apply исполняет план и возвращает endpoint после публикации.
func (p *Publisher) Apply(ctx context.Context, plan domain.PublishPlan, def domain.PipelineDefinition, description string) (*domain.Endpoint, error) {
	logger := telemetry.WithEndpoint(p.logger, plan.Name)

	switch plan.Op {
	case domain.PublishCreate:
		logger.Info("creating new pipeline endpoint")
		ep, err := p.svc.PublishEndpoint(ctx, mlclient.PublishEndpointRequest{
			Name:        plan.Name,
			Description: description,
			Pipeline:    def,
		})
		if err != nil {
			return nil, fmt.Errorf("publish endpoint %s: %w", plan.Name, err)
		}
		return ep, nil

	case domain.PublishAddVersion:
		logger.Info("adding new version to existing pipeline endpoint")
		published, err := p.svc.PublishPipeline(ctx, mlclient.PublishPipelineRequest{
			Name:        plan.Name + pipelineSuffix,
			Description: description,
			Pipeline:    def,
		})
		if err != nil {
			return nil, fmt.Errorf("publish pipeline %s%s: %w", plan.Name, pipelineSuffix, err)
		}

		ep, err := p.svc.AddDefaultVersion(ctx, plan.Name, published.ID)
		if err != nil {
			return nil, fmt.Errorf("add version to %s: %w", plan.Name, err)
		}
		return ep, nil

	default:
		return nil, fmt.Errorf("unknown publish op %q", plan.Op)
	}
}

// PublishOrUpdate создаёт endpoint или добавляет в него новую версию.
func (p *Publisher) PublishOrUpdate(ctx context.Context, name string, def domain.PipelineDefinition, description string) (*domain.Endpoint, domain.PublishOp, error) {
	plan, err := p.Resolve(ctx, name)
	if err != nil {
		return nil, "", err
	}

	ep, err := p.Apply(ctx, plan, def, description)
	if err != nil {
		return nil, plan.Op, err
	}

	version := ep.DefaultVersion
	if latest, ok := ep.LatestVersion(); ok {
		version = latest.Version
	}

	p.logger.Info("pipeline endpoint published",
		"endpoint", ep.Name,
		"endpoint_id", ep.ID,
		"op", plan.Op,
		"version", version,
	)
	p.metrics.EndpointPublished(string(plan.Op))
	p.notifier.EndpointPublished(ctx, mq.EndpointPublishedPayload{
		Endpoint:   ep.Name,
		EndpointID: ep.ID,
		Op:         string(plan.Op),
		Version:    version,
	})

	return ep, plan.Op, nil
}
