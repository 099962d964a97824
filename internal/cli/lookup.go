package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/provmark/internal/fingerprint"
)

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <fingerprint>",
		Short: "Fetch the prompt recorded for a fingerprint",
		Long: `Look up a fingerprint directly, without reading an image.

Uppercase hex is accepted. Exit code is 1 when no record exists.

Example:
  provmark lookup 031b84e574279d1981d01b912674e1f1c93a4d9e85c4b414ca9c89f46a8887de`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLookup(opts *RootOptions, arg string, cmd *cobra.Command) error {
	fp, err := fingerprint.Parse(arg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fingerprint", err)
	}

	a, err := newApp(opts, cmd, needSecret|needStore)
	if err != nil {
		return err
	}
	defer a.close()

	v, err := a.svc.Lookup(cmd.Context(), fp)
	if err != nil {
		return WrapExitError(ExitCommandError, "lookup failed", err)
	}
	return emitVerification(a.out, v, VerifyOutput{Fingerprint: fp.String(), Prompt: v.Prompt})
}
