package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCmd создаёт команду, которая печатает журнал runs.
func NewHistoryCmd(historyFn HistoryFunc, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently submitted runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, closeFn, err := historyFn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := h.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := []string{"RUN_ID", "EXPERIMENT", "ENDPOINT", "OP", "OUTPUT", "STATUS", "SUBMITTED", "FINISHED"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.RunID,
					r.Experiment,
					orDash(r.EndpointName),
					orDash(string(r.PublishOp)),
					r.OutputPath,
					string(r.Status),
					r.SubmittedAt.Format(time.RFC3339),
					formatTime(r.FinishedAt),
				}
			}

			outputFn().Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")

	return cmd
}
