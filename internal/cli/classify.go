package cli

import (
	"github.com/spf13/cobra"

	"smishguard/internal/app"
)

func newClassifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify a message as phishing or benign without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := messageText(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			result, err := app.NewClassifier(cfg, opts.logger(cmd)).Classify(cmd.Context(), text)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}
