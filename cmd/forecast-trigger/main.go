// forecast-trigger публикует пайплайн trigger под стабильным endpoint
// и отправляет по нему run.
//
// Каждый запуск добавляет новую версию endpoint и делает её версией по
// умолчанию. Run получает параметры input_path и output_path, где
// output_path уникален для каждого запуска.
//
// Использование:
//
//	forecast-trigger [--publish-only] [--no-wait] [--cron EXPR [--tz ZONE] [--metrics-addr :8081]]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/forecastrun/internal/app"
	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/scheduler"
	"github.com/shaiso/forecastrun/internal/telemetry"
	"github.com/shaiso/forecastrun/internal/trigger"
)

// version задаётся через ldflags при сборке.
var version = "dev"

// flags содержит разобранные флаги forecast-trigger.
type flags struct {
	opts        trigger.RunOptions
	cronExpr    string
	timezone    string
	metricsAddr string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(run).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd(runFn func(ctx context.Context, f flags) error) *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "forecast-trigger",
		Short:         "Publish the forecast trigger pipeline and submit a run",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.cronExpr == "" && f.metricsAddr != "" {
				return errors.New("--metrics-addr requires --cron")
			}
			return runFn(cmd.Context(), f)
		},
	}

	rootCmd.Flags().BoolVar(&f.opts.PublishOnly, "publish-only", false, "Publish the endpoint without submitting a run")
	rootCmd.Flags().BoolVar(&f.opts.NoWait, "no-wait", false, "Submit the run and exit without waiting for it")
	rootCmd.Flags().StringVar(&f.cronExpr, "cron", "", "Repeat on a cron schedule instead of running once")
	rootCmd.Flags().StringVar(&f.timezone, "tz", "UTC", "Timezone of the cron schedule")
	rootCmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /healthz and /metrics on this address in cron mode")

	return rootCmd
}

func run(ctx context.Context, f flags) error {
	opts, cronExpr, timezone, metricsAddr := f.opts, f.cronExpr, f.timezone, f.metricsAddr

	logger := telemetry.SetupLogger()
	logger.Info("starting forecast-trigger", "version", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	infra := app.Open(ctx, cfg, logger)
	defer infra.Close("forecast-trigger")

	trig := trigger.New(trigger.Options{
		Config:   cfg,
		Service:  app.NewServiceClient(cfg),
		Ledger:   infra.Ledger,
		Metrics:  infra.Metrics,
		Notifier: infra.Notifier,
		Logger:   logger,
	})

	job := func(ctx context.Context) error {
		res, err := trig.Run(ctx, opts)
		if res != nil && res.Run != nil {
			logger.Info("trigger finished",
				"endpoint", res.Endpoint.Name,
				"op", res.Op,
				"run_id", res.Run.ID,
				"status", res.Run.Status,
				"output_path", res.OutputPath,
			)
		}
		return err
	}

	if cronExpr == "" {
		return job(ctx)
	}

	sched, err := scheduler.New(scheduler.Config{
		CronExpr: cronExpr,
		Timezone: timezone,
		Job:      job,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		server := serveMetrics(metricsAddr, infra, logger)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", "error", err)
			}
		}()
	}

	logger.Info("scheduled mode", "cron", cronExpr, "tz", timezone)
	if err := sched.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("forecast-trigger stopped")
	return nil
}

// serveMetrics отдаёт /healthz и /metrics, пока trigger работает по расписанию.
func serveMetrics(addr string, infra *app.Infra, logger *slog.Logger) *http.Server {
	startTime := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(infra.Metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	return server
}
