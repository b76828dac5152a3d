package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(serviceFn func() Service, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage pipeline runs",
	}

	cmd.AddCommand(
		newRunListCmd(serviceFn, outputFn),
		newRunShowCmd(serviceFn, outputFn),
		newRunCancelCmd(serviceFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "EXPERIMENT", "STATUS", "STARTED", "FINISHED", "ERROR"}

func runRow(r *domain.Run) []string {
	return []string{r.ID, r.Experiment, string(r.Status), formatTime(r.StartedAt), formatTime(r.FinishedAt), orDash(r.Error)}
}

func newRunListCmd(serviceFn func() Service, outputFn func() *Output) *cobra.Command {
	var experiment string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs of an experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := serviceFn().ListRuns(cmd.Context(), experiment, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i := range runs {
				rows[i] = runRow(&runs[i])
			}

			outputFn().Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&experiment, "experiment", config.TriggerExperiment, "Experiment name")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	return cmd
}

func newRunShowCmd(serviceFn func() Service, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := serviceFn().GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			outputFn().Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}
}

func newRunCancelCmd(serviceFn func() Service, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := serviceFn()

			run, err := svc.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := outputFn()
			if run.Status.IsTerminal() {
				out.Success(fmt.Sprintf("Run %s already finished with status %s", run.ID, run.Status))
				return nil
			}

			run, err = svc.CancelRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run cancelled: %s", run.ID))
			return nil
		},
	}
}
