package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient"
	"github.com/shaiso/forecastrun/internal/mq"
	"github.com/shaiso/forecastrun/internal/pipeline"
	"github.com/shaiso/forecastrun/internal/supervisor"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

// Service описывает операции сервиса пайплайнов, нужные trigger.
type Service interface {
	pipeline.EndpointService
	supervisor.RunService

	GetWorkspace(ctx context.Context) (*domain.Workspace, error)
	GetCompute(ctx context.Context, name string) (*domain.ComputeTarget, error)
	SubmitEndpointRun(ctx context.Context, experiment, endpointID string, params map[string]string) (*domain.Run, error)
}

// Ledger записывает отправленные runs.
type Ledger interface {
	Create(ctx context.Context, rec *domain.RunRecord) error
	UpdateStatus(ctx context.Context, runID string, status domain.RunStatus, runErr string) error
}

// Options задаёт зависимости Trigger. Ledger, Metrics и Notifier необязательны.
type Options struct {
	Config   *config.Config
	Service  Service
	Ledger   Ledger
	Metrics  *telemetry.Metrics
	Notifier *mq.Notifier
	Logger   *slog.Logger

	// Now подменяет часы для меток пути выхода.
	Now func() time.Time
}

// RunOptions управляет одним запуском.
type RunOptions struct {
	// PublishOnly только публикует endpoint, run не отправляется.
	PublishOnly bool

	// NoWait отправляет run и не ждёт его завершения.
	NoWait bool
}

// Result описывает итог запуска.
type Result struct {
	Endpoint   *domain.Endpoint
	Op         domain.PublishOp
	Run        *domain.Run
	OutputPath string
}

// Trigger публикует endpoint и запускает его.
type Trigger struct {
	cfg        *config.Config
	svc        Service
	publisher  *pipeline.Publisher
	supervisor *supervisor.Supervisor
	ledger     Ledger
	stamper    *Stamper
	metrics    *telemetry.Metrics
	notifier   *mq.Notifier
	logger     *slog.Logger
}

// New создаёт Trigger.
func New(opts Options) *Trigger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Trigger{
		cfg: opts.Config,
		svc: opts.Service,
		publisher: pipeline.NewPublisher(pipeline.Config{
			Service:  opts.Service,
			Metrics:  opts.Metrics,
			Notifier: opts.Notifier,
			Logger:   logger,
		}),
		supervisor: supervisor.New(supervisor.Config{
			Service:      opts.Service,
			PollInterval: opts.Config.PollInterval,
			Timeout:      opts.Config.Timeout,
			Metrics:      opts.Metrics,
			Notifier:     opts.Notifier,
			Logger:       logger,
		}),
		ledger:   opts.Ledger,
		stamper:  NewStamper(opts.Now),
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		logger:   logger,
	}
}

// Run выполняет один запуск trigger.
func (t *Trigger) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	ws, err := t.svc.GetWorkspace(ctx)
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	logger := t.logger.With("workspace", ws.Name)

	if _, err := t.svc.GetCompute(ctx, t.cfg.ComputeClusterName); err != nil {
		if errors.Is(err, mlclient.ErrComputeNotFound) {
			return nil, fmt.Errorf("compute %s is not found in workspace %s: %w", t.cfg.ComputeClusterName, ws.Name, err)
		}
		return nil, fmt.Errorf("get compute %s: %w", t.cfg.ComputeClusterName, err)
	}

	def := pipeline.TriggerDefinition(t.cfg)
	ep, op, err := t.publisher.PublishOrUpdate(ctx, t.cfg.EndpointName, def, config.EndpointDescription)
	if err != nil {
		return nil, err
	}

	result := &Result{Endpoint: ep, Op: op}
	if opts.PublishOnly {
		logger.Info("publish only, skipping run", "endpoint", ep.Name)
		return result, nil
	}

	result.OutputPath = OutputPath(t.cfg.OutputPrefix, t.stamper.Next())
	params := map[string]string{
		config.InputPathParam:  t.cfg.InputPath,
		config.OutputPathParam: result.OutputPath,
	}

	run, err := t.svc.SubmitEndpointRun(ctx, config.TriggerExperiment, ep.ID, params)
	if err != nil {
		return result, fmt.Errorf("submit run to %s: %w", ep.Name, err)
	}
	result.Run = run

	telemetry.WithRunID(logger, run.ID).Info("run submitted",
		"experiment", config.TriggerExperiment,
		"endpoint", ep.Name,
		"output_path", result.OutputPath,
	)
	t.metrics.RunSubmitted(config.TriggerExperiment)
	t.notifier.RunSubmitted(ctx, mq.RunSubmittedPayload{
		RunID:      run.ID,
		Experiment: config.TriggerExperiment,
		EndpointID: ep.ID,
		Parameters: params,
	})
	t.record(ctx, run, ep.Name, op, result.OutputPath)

	if opts.NoWait {
		return result, nil
	}

	last, waitErr := t.supervisor.Await(ctx, run)
	if last != nil {
		result.Run = last
		t.finish(ctx, last)
	}
	return result, waitErr
}

// record пишет run в журнал. Ошибка журнала не останавливает запуск.
func (t *Trigger) record(ctx context.Context, run *domain.Run, endpoint string, op domain.PublishOp, outputPath string) {
	if t.ledger == nil {
		return
	}
	rec := domain.NewRunRecord(run, t.cfg.InputPath, outputPath)
	rec.EndpointName = endpoint
	rec.PublishOp = op
	if err := t.ledger.Create(ctx, rec); err != nil {
		t.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

func (t *Trigger) finish(ctx context.Context, run *domain.Run) {
	if t.ledger == nil {
		return
	}
	if err := t.ledger.UpdateStatus(context.WithoutCancel(ctx), run.ID, run.Status, run.Error); err != nil {
		t.logger.Warn("failed to record run status", "run_id", run.ID, "error", err)
	}
}
