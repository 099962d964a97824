package cli

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/provmark/internal/imageio"
	"github.com/roach88/provmark/internal/stego"
)

// CapacityOutput is the structured result of capacity.
type CapacityOutput struct {
	Width             int  `json:"width" yaml:"width"`
	Height            int  `json:"height" yaml:"height"`
	Samples           int  `json:"samples" yaml:"samples"`
	FingerprintLength int  `json:"fingerprint_length" yaml:"fingerprint_length"`
	PayloadBits       int  `json:"payload_bits" yaml:"payload_bits"`
	Step              int  `json:"step" yaml:"step"`
	Fits              bool `json:"fits" yaml:"fits"`
}

// NewCapacityCommand creates the capacity command.
func NewCapacityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity <image>",
		Short: "Report whether an image can carry a fingerprint",
		Long: `Print the image size, the number of RGB channel samples, the payload
size for the configured fingerprint length, and the sampling step.

Text output groups digits for the locale in LC_ALL, LC_NUMERIC, or LANG.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapacity(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCapacity(opts *RootOptions, input string, cmd *cobra.Command) error {
	a, err := newApp(opts, cmd, 0)
	if err != nil {
		return err
	}
	defer a.close()

	img, _, err := imageio.ReadFile(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read image", err)
	}

	b := img.Bounds()
	n := stego.SampleCount(b)
	k := stego.PayloadBits(a.cfg.Fingerprint.Length)
	step := stego.Step(n, k)
	data := CapacityOutput{
		Width:             b.Dx(),
		Height:            b.Dy(),
		Samples:           n,
		FingerprintLength: a.cfg.Fingerprint.Length,
		PayloadBits:       k,
		Step:              step,
		Fits:              step > 0,
	}

	return a.out.Emit("ok", data, "", func(w io.Writer) {
		p := message.NewPrinter(localeTag())
		fits := "yes"
		if !data.Fits {
			fits = "no"
		}
		p.Fprintf(w, "dimensions:   %v x %v\n", data.Width, data.Height)
		p.Fprintf(w, "samples:      %v\n", data.Samples)
		p.Fprintf(w, "payload bits: %v (fingerprint length %v)\n", data.PayloadBits, data.FingerprintLength)
		p.Fprintf(w, "step:         %v\n", data.Step)
		p.Fprintf(w, "fits:         %s\n", fits)
	})
}

// localeTag picks the number-formatting locale from the environment.
// Unset, C, and POSIX locales fall back to English.
func localeTag() language.Tag {
	for _, key := range []string{"LC_ALL", "LC_NUMERIC", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return parseLocale(v)
		}
	}
	return language.English
}

// parseLocale converts a POSIX locale name such as de_DE.UTF-8 to a tag.
func parseLocale(v string) language.Tag {
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	if v == "" || v == "C" || v == "POSIX" {
		return language.English
	}
	tag, err := language.Parse(strings.ReplaceAll(v, "_", "-"))
	if err != nil {
		return language.English
	}
	return tag
}
