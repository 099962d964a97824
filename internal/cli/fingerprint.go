package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// FingerprintOptions holds flags for the fingerprint command.
type FingerprintOptions struct {
	*RootOptions
	Prompt string
}

// FingerprintOutput is the structured result of fingerprint and decode.
type FingerprintOutput struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Length      int    `json:"length" yaml:"length"`
}

// NewFingerprintCommand creates the fingerprint command.
func NewFingerprintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FingerprintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the fingerprint for a prompt",
		Long: `Compute the keyed fingerprint for a prompt without touching any image or
the provenance store.

Example:
  PROVMARK_SECRET=s3cr3t provmark fingerprint --prompt "a red fox"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "prompt to fingerprint (required)")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func runFingerprint(opts *FingerprintOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd, needSecret)
	if err != nil {
		return err
	}
	defer a.close()

	fp, err := a.gen.Generate(opts.Prompt)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid prompt", err)
	}

	data := FingerprintOutput{Fingerprint: fp.String(), Length: fp.Len()}
	return a.out.Emit("ok", data, "", func(w io.Writer) {
		fmt.Fprintln(w, fp)
	})
}
