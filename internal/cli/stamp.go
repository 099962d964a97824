package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/provmark/internal/imageio"
	"github.com/roach88/provmark/internal/provenance"
	"github.com/roach88/provmark/internal/stego"
)

// StampOptions holds flags for the stamp command.
type StampOptions struct {
	*RootOptions
	Prompt             string
	Output             string
	AllowUnwatermarked bool
}

// StampOutput is the structured result of stamp.
type StampOutput struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Output      string `json:"output" yaml:"output"`
	Watermarked bool   `json:"watermarked" yaml:"watermarked"`
	Inserted    bool   `json:"inserted" yaml:"inserted"`
}

// NewStampCommand creates the stamp command.
func NewStampCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StampOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stamp <image>",
		Short: "Watermark an image and record its prompt",
		Long: `Derive the fingerprint for a prompt, embed it in the image, and record
the (fingerprint, prompt) pair in the provenance store.

The output PNG is written only after the record is stored. If the image is
too small to carry the fingerprint the command fails, unless
--allow-unwatermarked is given, in which case an unchanged copy is written
and the exit code is 3.

Examples:
  provmark stamp in.png --prompt "a red fox" -o out.png
  provmark stamp tiny.png --prompt "icon" -o tiny-out.png --allow-unwatermarked`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStamp(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "prompt that generated the image (required)")
	_ = cmd.MarkFlagRequired("prompt")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output PNG path (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().BoolVar(&opts.AllowUnwatermarked, "allow-unwatermarked", false, "copy images too small to watermark instead of failing")

	return cmd
}

func runStamp(opts *StampOptions, input string, cmd *cobra.Command) error {
	// Refuse lossy output before anything is recorded.
	if err := imageio.CheckOutputPath(opts.Output); err != nil {
		return WrapExitError(ExitCommandError, "invalid output path", err)
	}

	a, err := newApp(opts.RootOptions, cmd, needSecret|needStore)
	if err != nil {
		return err
	}
	defer a.close()

	img, format, err := imageio.ReadFile(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read image", err)
	}
	a.out.VerboseLog("read %s (%s, %dx%d)", input, format, img.Bounds().Dx(), img.Bounds().Dy())

	var stampOpts []provenance.StampOption
	if opts.AllowUnwatermarked {
		stampOpts = append(stampOpts, provenance.AllowUnwatermarked())
	}

	res, err := a.svc.Stamp(cmd.Context(), img, opts.Prompt, stampOpts...)
	if err != nil {
		if stego.IsCapacityError(err) {
			return WrapExitError(ExitCommandError, "image too small to watermark", err)
		}
		return WrapExitError(ExitCommandError, "stamp failed", err)
	}

	if err := imageio.WriteFile(opts.Output, res.Image); err != nil {
		return WrapExitError(ExitCommandError, "failed to write image", err)
	}

	status := "ok"
	if !res.Watermarked {
		status = "unwatermarked"
	}
	data := StampOutput{
		Fingerprint: res.Fingerprint.String(),
		Output:      opts.Output,
		Watermarked: res.Watermarked,
		Inserted:    res.Inserted,
	}
	err = a.out.Emit(status, data, res.TraceID, func(w io.Writer) {
		if !res.Watermarked {
			fmt.Fprintf(w, "unwatermarked: %s (image too small, copied unchanged)\n", opts.Output)
			fmt.Fprintf(w, "fingerprint: %s\n", res.Fingerprint)
			return
		}
		fmt.Fprintf(w, "watermarked: %s\n", opts.Output)
		fmt.Fprintf(w, "fingerprint: %s\n", res.Fingerprint)
		if !res.Inserted {
			fmt.Fprintln(w, "note: fingerprint was already recorded; original prompt kept")
		}
	})
	if err != nil {
		return err
	}

	if !res.Watermarked {
		return ReportedExitError(ExitUnwatermarked, "image left unwatermarked")
	}
	return nil
}
