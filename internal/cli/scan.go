package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smishguard/internal/domain/models"
)

func newScanCmd(opts *globalOptions) *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "scan [text...]",
		Short: "Classify a message or screenshot and store the result",
		Long: `Scan runs extraction and classification, stores the record and prints it
with its scan id. Pass --image to read the message from a screenshot instead.

Examples:
  smishctl scan "Your parcel is held, pay the fee at royalmail-fee.com"
  smishctl scan --image screenshot.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var image []byte
			var text string
			var err error
			if imagePath != "" {
				if len(args) > 0 {
					return fmt.Errorf("pass either --image or text, not both")
				}
				if image, err = os.ReadFile(imagePath); err != nil {
					return fmt.Errorf("read image: %w", err)
				}
			} else if text, err = messageText(cmd, args); err != nil {
				return err
			}

			pipeline, err := opts.pipeline(ctx, cmd)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			var record *models.ScanRecord
			if image != nil {
				record, err = pipeline.Scans.ScanImage(ctx, image)
			} else {
				record, err = pipeline.Scans.ScanMessage(ctx, text)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, record)
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "screenshot to scan instead of text")
	return cmd
}
