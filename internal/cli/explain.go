package cli

import (
	"github.com/spf13/cobra"
)

func newExplainCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <scan_id>",
		Short: "Explain a stored scan verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pipeline, err := opts.pipeline(ctx, cmd)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			resp, err := pipeline.Scans.Explain(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
}
