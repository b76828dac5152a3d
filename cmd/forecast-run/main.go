// forecast-run запускается как шаг пайплайна trigger. Он строит
// пайплайн с одним parallel-run шагом, который считает прогноз по
// каждой партиции входных данных, отправляет его и ждёт завершения.
//
// При таймауте или прерывании вложенный run отменяется, процесс
// завершается с кодом 1.
//
// Использование:
//
//	forecast-run --input_path PATH --output_path PATH
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/forecastrun/internal/app"
	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/forecastrun"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

// runFunc выполняет вложенный run для разобранных флагов.
type runFunc func(ctx context.Context, inputPath, outputPath string) error

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting forecast-run", "version", version)

	// Время пишется и тогда, когда флаги не прошли разбор.
	elapsed := telemetry.Elapsed(logger, "parallel run")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := newRootCmd(func(ctx context.Context, inputPath, outputPath string) error {
		return run(ctx, logger, inputPath, outputPath)
	})
	err := rootCmd.ExecuteContext(ctx)

	elapsed()
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

func newRootCmd(runFn runFunc) *cobra.Command {
	var inputPath, outputPath string

	rootCmd := &cobra.Command{
		Use:           "forecast-run",
		Short:         "Submit the parallel forecast pipeline and wait for it",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFn(cmd.Context(), inputPath, outputPath)
		},
	}

	rootCmd.Flags().StringVar(&inputPath, config.InputPathParam, "", "Path of the historical data in the default datastore")
	rootCmd.Flags().StringVar(&outputPath, config.OutputPathParam, "", "Destination of the forecast in the default datastore")
	rootCmd.MarkFlagRequired(config.InputPathParam)
	rootCmd.MarkFlagRequired(config.OutputPathParam)

	return rootCmd
}

// exitCode возвращает 1 для любой ошибки, включая таймаут и прерывание.
func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger, inputPath, outputPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	infra := app.Open(ctx, cfg, logger)
	defer infra.Close("forecast-run")

	runner := forecastrun.New(forecastrun.Options{
		Config:   cfg,
		Service:  app.NewServiceClient(cfg),
		Ledger:   infra.Ledger,
		Metrics:  infra.Metrics,
		Notifier: infra.Notifier,
		Logger:   logger,
	})

	result, err := runner.Run(ctx, inputPath, outputPath)
	if result != nil {
		logger.Info("parallel run finished", "run_id", result.ID, "status", result.Status)
	}
	return err
}
