package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/forecastrun/internal/mq"
)

// NewEventsCmd создаёт группу команд для событий жизненного цикла.
func NewEventsCmd(subscribeFn SubscribeFunc, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Watch lifecycle events",
	}

	cmd.AddCommand(newEventsTailCmd(subscribeFn, outputFn))

	return cmd
}

func newEventsTailCmd(subscribeFn SubscribeFunc, outputFn func() *Output) *cobra.Command {
	var pattern string
	var limit int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			seen := 0

			err := subscribeFn(cmd.Context(), mq.RoutingKey(pattern), func(_ context.Context, msg *mq.Message) error {
				out.Line(formatEvent(msg), msg)
				seen++
				if limit > 0 && seen >= limit {
					return mq.ErrStopConsuming
				}
				return nil
			})
			if err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", string(mq.RoutingKeyAll), "Routing key pattern, e.g. run.*")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many events (0 = until interrupted)")

	return cmd
}

func formatEvent(msg *mq.Message) string {
	summary := ""
	switch msg.Type {
	case mq.MessageTypeEndpointPublished:
		if p, err := mq.ParsePayload[mq.EndpointPublishedPayload](msg); err == nil {
			summary = fmt.Sprintf("endpoint=%s op=%s version=%d", p.Endpoint, p.Op, p.Version)
		}
	case mq.MessageTypeRunSubmitted:
		if p, err := mq.ParsePayload[mq.RunSubmittedPayload](msg); err == nil {
			summary = fmt.Sprintf("run=%s experiment=%s", p.RunID, p.Experiment)
		}
	case mq.MessageTypeRunFinished:
		if p, err := mq.ParsePayload[mq.RunFinishedPayload](msg); err == nil {
			summary = fmt.Sprintf("run=%s status=%s", p.RunID, p.Status)
		}
	case mq.MessageTypeRunCancelled:
		if p, err := mq.ParsePayload[mq.RunCancelledPayload](msg); err == nil {
			summary = fmt.Sprintf("run=%s reason=%s last_status=%s", p.RunID, p.Reason, p.LastStatus)
		}
	}
	return fmt.Sprintf("%s  %-18s  %s", msg.Timestamp.Format(time.RFC3339), msg.Type, summary)
}
