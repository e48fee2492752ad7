package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"smishguard/internal/domain/services"
	"smishguard/pkg/logger"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [text...]",
		Short: "Extract phone numbers, emails and URLs from a message",
		Long: `Extract prints the indicators found in a message and its cleaned text.
No network calls are made and nothing is stored.

Examples:
  smishctl extract "Your parcel is held, call 07826 514174"
  pbpaste | smishctl extract -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := messageText(cmd, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("no text to extract from")
			}
			return printJSON(cmd, services.NewExtractor(logger.NewNop()).Extract(text))
		},
	}
}
