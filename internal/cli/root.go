// Package cli implements the smishctl command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"smishguard/internal/app"
	"smishguard/internal/config"
	"smishguard/internal/domain/services"
	"smishguard/pkg/logger"
)

// RecognizerFactory builds the OCR engine used by "scan --image"
type RecognizerFactory func(languages []string, log *logger.Logger) services.TextRecognizer

type globalOptions struct {
	configPath    string
	verbose       bool
	newRecognizer RecognizerFactory
}

// NewRootCmd creates the root command. newRecognizer may be nil, in which case image scans fail.
func NewRootCmd(newRecognizer RecognizerFactory) *cobra.Command {
	opts := &globalOptions{newRecognizer: newRecognizer}

	cmd := &cobra.Command{
		Use:   "smishctl",
		Short: "Scan SMS messages for phishing from the command line",
		Long: `smishctl runs the SmishGuard pipeline without the HTTP server.

It extracts phone numbers, emails and URLs from a message, classifies it as
phishing or benign, stores the result and asks a language model to explain
a stored verdict. Configuration is read the same way as the API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging on stderr")

	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newClassifyCmd(opts))
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newExplainCmd(opts))

	return cmd
}

// Execute runs the root command and exits non-zero on failure
func Execute(newRecognizer RecognizerFactory) {
	if err := NewRootCmd(newRecognizer).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *globalOptions) logger(cmd *cobra.Command) *logger.Logger {
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	return logger.New(logger.Config{
		Level:      level,
		Format:     "console",
		TimeFormat: "15:04:05",
		Output:     cmd.ErrOrStderr(),
	})
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// pipeline wires the full scan service from configuration
func (o *globalOptions) pipeline(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log := o.logger(cmd)

	var recognizer services.TextRecognizer
	if o.newRecognizer != nil {
		recognizer = o.newRecognizer([]string{cfg.OCR.Language}, log)
	}
	return app.New(ctx, cfg, recognizer, log)
}

// messageText takes the message from the arguments, or from stdin when none are given or the only one is "-"
func messageText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
