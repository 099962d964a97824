package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/provmark/internal/imageio"
	"github.com/roach88/provmark/internal/provenance"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Highlight string
}

// VerifyOutput is the structured result of verify and lookup.
type VerifyOutput struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Prompt      string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Highlight   string `json:"highlight,omitempty" yaml:"highlight,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <image>",
		Short: "Check an image against the provenance store",
		Long: `Read the candidate fingerprint from an image and look it up.

Prints "verified" with the recorded prompt (exit 0) or "unverified" (exit 1).
An unverified image was either never stamped or has been altered.

With --highlight, an overlay marking the sampled pixels is written for
verified images.

Examples:
  provmark verify out.png
  provmark verify out.png --highlight overlay.png --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Highlight, "highlight", "", "write a highlight overlay PNG here when verified")

	return cmd
}

func runVerify(opts *VerifyOptions, input string, cmd *cobra.Command) error {
	if opts.Highlight != "" {
		if err := imageio.CheckOutputPath(opts.Highlight); err != nil {
			return WrapExitError(ExitCommandError, "invalid highlight path", err)
		}
	}

	a, err := newApp(opts.RootOptions, cmd, needSecret|needStore)
	if err != nil {
		return err
	}
	defer a.close()

	img, _, err := imageio.ReadFile(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read image", err)
	}

	var verifyOpts []provenance.VerifyOption
	if opts.Highlight != "" {
		verifyOpts = append(verifyOpts, provenance.WithHighlight())
	}

	v, err := a.svc.Verify(cmd.Context(), img, verifyOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "verify failed", err)
	}

	data := VerifyOutput{Fingerprint: v.Fingerprint.String(), Prompt: v.Prompt}
	if v.Highlight != nil {
		if err := imageio.WriteFile(opts.Highlight, v.Highlight); err != nil {
			return WrapExitError(ExitCommandError, "failed to write highlight", err)
		}
		data.Highlight = opts.Highlight
	}

	return emitVerification(a.out, v, data)
}

// emitVerification prints a Verification and maps a negative result to
// ExitFailure.
func emitVerification(out *OutputFormatter, v *provenance.Verification, data VerifyOutput) error {
	status := "verified"
	if !v.Found {
		status = "unverified"
	}
	err := out.Emit(status, data, v.TraceID, func(w io.Writer) {
		if !v.Found {
			fmt.Fprintf(w, "unverified: no provenance record for %s\n", v.Fingerprint)
			return
		}
		fmt.Fprintf(w, "verified: %s\n", v.Prompt)
		fmt.Fprintf(w, "fingerprint: %s\n", v.Fingerprint)
		if data.Highlight != "" {
			fmt.Fprintf(w, "highlight: %s\n", data.Highlight)
		}
	})
	if err != nil {
		return err
	}
	if !v.Found {
		return ReportedExitError(ExitFailure, "unverified")
	}
	return nil
}
