package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/provmark/internal/imageio"
	"github.com/roach88/provmark/internal/stego"
)

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <image>",
		Short: "Print the candidate fingerprint in an image",
		Long: `Read the fingerprint bits out of an image without consulting the store.

Every image decodes to some hex string. Whether it is a real watermark is
only known once the fingerprint is found in the store (see verify).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDecode(opts *RootOptions, input string, cmd *cobra.Command) error {
	a, err := newApp(opts, cmd, 0)
	if err != nil {
		return err
	}
	defer a.close()

	img, _, err := imageio.ReadFile(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read image", err)
	}

	fp, err := stego.Decode(img, a.cfg.Fingerprint.Length)
	if err != nil {
		return WrapExitError(ExitCommandError, "decode failed", err)
	}

	data := FingerprintOutput{Fingerprint: fp.String(), Length: fp.Len()}
	return a.out.Emit("ok", data, "", func(w io.Writer) {
		fmt.Fprintln(w, fp)
	})
}
