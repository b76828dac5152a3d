// forecast-cli показывает endpoints, runs, журнал и события прогноза.
//
// Использование:
//
//	forecast-cli [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	endpoint  Просмотр pipeline endpoints
//	run       Просмотр и отмена runs
//	history   Журнал runs из базы
//	events    События из RabbitMQ
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/forecastrun/internal/app"
	"github.com/shaiso/forecastrun/internal/cli"
	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/mq"
	"github.com/shaiso/forecastrun/internal/repo"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "forecast-cli",
		Short:         "Inspect demand forecast pipelines",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			return err
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	// Логи CLI идут в stderr, чтобы не мешать выводу данных.
	logger := telemetry.NewLogger(os.Stderr, "text", telemetry.LogLevel())

	serviceFn := func() cli.Service { return app.NewServiceClient(cfg) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	historyFn := func(ctx context.Context) (cli.History, func(), error) {
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DB_URL is not set")
		}
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repo.NewLedger(pool), pool.Close, nil
	}

	subscribeFn := func(ctx context.Context, pattern mq.RoutingKey, handler mq.Handler) error {
		if cfg.RabbitMQURL == "" {
			return errors.New("RABBITMQ_URL is not set")
		}
		conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return err
		}
		return mq.NewConsumer(conn, logger, mq.ConsumerConfig{
			Pattern: pattern,
			Handler: handler,
		}).Start(ctx)
	}

	rootCmd.AddCommand(
		cli.NewEndpointCmd(serviceFn, outputFn),
		cli.NewRunCmd(serviceFn, outputFn),
		cli.NewHistoryCmd(historyFn, outputFn),
		cli.NewEventsCmd(subscribeFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
