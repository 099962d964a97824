package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/provmark/internal/config"
	"github.com/roach88/provmark/internal/fingerprint"
	"github.com/roach88/provmark/internal/imageio"
	"github.com/roach88/provmark/internal/provenance"
	"github.com/roach88/provmark/internal/stego"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "text" | "json" | "yaml"
	ConfigPath  string
	Database    string
	Driver      string
	MetricsFile string

	// TraceGenerator allows overriding the trace ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TraceGenerator provenance.TraceIDGenerator

	// LogWriter receives slog output. If nil, the command's stderr is used.
	LogWriter io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON, FormatYAML}

// NewRootCommand creates the root command for the provmark CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provmark",
		Short: "provmark - invisible provenance watermarks for generated images",
		Long: `Embed a keyed prompt fingerprint in the least-significant bits of an
image, record which prompt produced it, and later verify an image by reading
the fingerprint back and looking it up.

The secret comes from PROVMARK_SECRET (or SECRET_KEY) or the config file.
Watermarks survive only lossless copies; output is always PNG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", FormatText, "output format (text|json|yaml)")
	pf.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	pf.StringVar(&opts.Database, "db", "", "path to provenance database (overrides store.path)")
	pf.StringVar(&opts.Driver, "driver", "", "store driver: sqlite or bolt (overrides store.driver)")
	pf.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")

	// Add subcommands
	cmd.AddCommand(NewFingerprintCommand(opts))
	cmd.AddCommand(NewStampCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewHighlightCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewCapacityCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are printed in the requested format unless the command already
// reported its result.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.Reported {
		format := opts.Format
		if !isValidFormat(format) {
			format = FormatText
		}
		out := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
		_ = out.Error(errorCode(err), err.Error(), nil)
	}
	return GetExitCode(err)
}

// Error codes reported in the CLIError envelope.
const (
	CodeInternal      = "E000"
	CodeConfig        = "E001"
	CodeInput         = "E002"
	CodeCapacity      = "E003"
	CodeStorage       = "E004"
	CodeOutput        = "E005"
	CodeInvalidArg    = "E006"
	CodeNegativeCheck = "E007"
)

func errorCode(err error) string {
	var exitErr *ExitError
	switch {
	case errors.Is(err, config.ErrInvalid), errors.Is(err, fingerprint.ErrMissingSecret):
		return CodeConfig
	case stego.IsCapacityError(err):
		return CodeCapacity
	case provenance.IsStorageError(err):
		return CodeStorage
	case errors.Is(err, imageio.ErrLossyOutput):
		return CodeOutput
	case errors.Is(err, imageio.ErrUnsupportedFormat), errors.Is(err, imageio.ErrTooLarge), errors.Is(err, os.ErrNotExist):
		return CodeInput
	case errors.Is(err, fingerprint.ErrInvalidFingerprint), errors.Is(err, fingerprint.ErrEmptyPrompt),
		errors.Is(err, fingerprint.ErrInvalidPrompt), errors.Is(err, fingerprint.ErrInvalidLength):
		return CodeInvalidArg
	case errors.As(err, &exitErr) && exitErr.Code == ExitFailure:
		return CodeNegativeCheck
	}
	return CodeInternal
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
