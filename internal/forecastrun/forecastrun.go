package forecastrun

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient"
	"github.com/shaiso/forecastrun/internal/mq"
	"github.com/shaiso/forecastrun/internal/parallel"
	"github.com/shaiso/forecastrun/internal/supervisor"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

// pipelineName задаёт имя вложенного пайплайна.
const pipelineName = "DemandForecastGeneration"

// Service описывает операции сервиса пайплайнов, нужные вложенному run.
type Service interface {
	parallel.PartitionService
	supervisor.RunService

	GetWorkspace(ctx context.Context) (*domain.Workspace, error)
	GetDefaultDatastore(ctx context.Context) (*domain.Datastore, error)
	GetCompute(ctx context.Context, name string) (*domain.ComputeTarget, error)
	RegisterEnvironment(ctx context.Context, env domain.Environment) (*domain.Environment, error)
	SubmitPipelineRun(ctx context.Context, experiment string, def domain.PipelineDefinition) (*domain.Run, error)
}

// Ledger записывает отправленные runs.
type Ledger interface {
	Create(ctx context.Context, rec *domain.RunRecord) error
	UpdateStatus(ctx context.Context, runID string, status domain.RunStatus, runErr string) error
}

// Options задаёт зависимости Runner. Ledger, Metrics и Notifier необязательны.
type Options struct {
	Config   *config.Config
	Service  Service
	Ledger   Ledger
	Metrics  *telemetry.Metrics
	Notifier *mq.Notifier
	Logger   *slog.Logger
}

// Runner запускает вложенный parallel run.
type Runner struct {
	cfg        *config.Config
	svc        Service
	supervisor *supervisor.Supervisor
	ledger     Ledger
	metrics    *telemetry.Metrics
	notifier   *mq.Notifier
	logger     *slog.Logger
}

// New создаёт Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		cfg: opts.Config,
		svc: opts.Service,
		supervisor: supervisor.New(supervisor.Config{
			Service:      opts.Service,
			PollInterval: opts.Config.PollInterval,
			Timeout:      opts.Config.Timeout,
			Metrics:      opts.Metrics,
			Notifier:     opts.Notifier,
			Logger:       logger,
		}),
		ledger:   opts.Ledger,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		logger:   logger,
	}
}

// Run отправляет вложенный пайплайн для inputPath и ждёт его.
func (r *Runner) Run(ctx context.Context, inputPath, outputPath string) (*domain.Run, error) {
	if inputPath == "" || outputPath == "" {
		return nil, errors.New("input path and output path are required")
	}
	r.logger.Info("starting parallel run", "input_path", inputPath, "output_path", outputPath)

	ws, err := r.svc.GetWorkspace(ctx)
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}

	// Кластер не создаётся автоматически, чтобы не оставлять его в рабочем пространстве.
	compute, err := r.svc.GetCompute(ctx, r.cfg.ComputeClusterName)
	if err != nil {
		if errors.Is(err, mlclient.ErrComputeNotFound) {
			return nil, fmt.Errorf("compute %s is not found in workspace %s: %w", r.cfg.ComputeClusterName, ws.Name, err)
		}
		return nil, fmt.Errorf("get compute %s: %w", r.cfg.ComputeClusterName, err)
	}
	r.logger.Info("found existing cluster", "compute", compute.Name, "max_nodes", compute.MaxNodes)

	def, err := r.buildPipeline(ctx, compute, inputPath, outputPath)
	if err != nil {
		return nil, err
	}

	run, err := r.svc.SubmitPipelineRun(ctx, config.ParallelExperiment, def)
	if err != nil {
		return nil, fmt.Errorf("submit parallel run: %w", err)
	}

	r.logger.Info("parallel run submitted", "experiment", config.ParallelExperiment, "run_id", run.ID)
	r.metrics.RunSubmitted(config.ParallelExperiment)
	r.notifier.RunSubmitted(ctx, mq.RunSubmittedPayload{
		RunID:      run.ID,
		Experiment: config.ParallelExperiment,
		Parameters: map[string]string{
			config.InputPathParam:  inputPath,
			config.OutputPathParam: outputPath,
		},
	})
	r.record(ctx, run, inputPath, outputPath)

	last, err := r.supervisor.Supervise(ctx, run)
	if last != nil {
		r.finish(ctx, last)
	}
	return last, err
}

func (r *Runner) buildPipeline(ctx context.Context, compute *domain.ComputeTarget, inputPath, outputPath string) (domain.PipelineDefinition, error) {
	env, err := parallel.ForecastEnvironment(cmp.Or(r.cfg.BaseImage, config.DefaultBaseImage))
	if err != nil {
		return domain.PipelineDefinition{}, err
	}
	registered, err := r.svc.RegisterEnvironment(ctx, env)
	if err != nil {
		return domain.PipelineDefinition{}, fmt.Errorf("register environment %s: %w", env.Name, err)
	}

	ds, err := r.svc.GetDefaultDatastore(ctx)
	if err != nil {
		return domain.PipelineDefinition{}, fmt.Errorf("get default datastore: %w", err)
	}

	input, err := parallel.PartitionInput(ctx, r.svc, ds.Name, inputPath)
	if err != nil {
		return domain.PipelineDefinition{}, err
	}

	step, err := parallel.Step(
		config.ForecastStepName,
		input,
		parallel.Output(ds.Name, outputPath),
		parallel.NewConfig(r.cfg, compute, *registered),
	)
	if err != nil {
		return domain.PipelineDefinition{}, err
	}

	return domain.PipelineDefinition{
		Name:  pipelineName,
		Steps: []domain.StepDef{step},
	}, nil
}

// record пишет run в журнал. Ошибка журнала не останавливает run.
func (r *Runner) record(ctx context.Context, run *domain.Run, inputPath, outputPath string) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Create(ctx, domain.NewRunRecord(run, inputPath, outputPath)); err != nil {
		r.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

func (r *Runner) finish(ctx context.Context, run *domain.Run) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.UpdateStatus(context.WithoutCancel(ctx), run.ID, run.Status, run.Error); err != nil {
		r.logger.Warn("failed to record run status", "run_id", run.ID, "error", err)
	}
}
