package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewEndpointCmd создаёт группу команд для просмотра pipeline endpoints.
func NewEndpointCmd(serviceFn func() Service, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Inspect pipeline endpoints",
	}

	cmd.AddCommand(
		newEndpointShowCmd(serviceFn, outputFn),
		newEndpointVersionsCmd(serviceFn, outputFn),
	)

	return cmd
}

func newEndpointShowCmd(serviceFn func() Service, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show endpoint details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := serviceFn().GetEndpoint(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"ID", "NAME", "DEFAULT_VERSION", "VERSIONS", "CREATED"},
				[][]string{{
					ep.ID,
					ep.Name,
					strconv.Itoa(ep.DefaultVersion),
					strconv.Itoa(len(ep.Versions)),
					ep.CreatedAt.Format(time.RFC3339),
				}},
				ep,
			)
			return nil
		},
	}
}

func newEndpointVersionsCmd(serviceFn func() Service, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "versions NAME",
		Short: "List endpoint versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := serviceFn().GetEndpoint(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"VERSION", "PIPELINE_ID", "DEFAULT", "CREATED"}
			rows := make([][]string, len(ep.Versions))
			for i, v := range ep.Versions {
				rows[i] = []string{
					strconv.Itoa(v.Version),
					v.PipelineID,
					strconv.FormatBool(v.IsDefault),
					v.CreatedAt.Format(time.RFC3339),
				}
			}

			outputFn().Print(headers, rows, ep.Versions)
			return nil
		},
	}
}
