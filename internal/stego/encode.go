package stego

import (
	"fmt"
	"image"

	"github.com/roach88/provmark/internal/fingerprint"
)

// Encode writes fp into the least significant bits of a copy of src.
//
// The returned image equals the NRGBA form of src except at the 4*len(fp)
// sample positions given by Index, each of which differs by at most one.
// Alpha is never touched. src is not modified.
//
// Returns a *CapacityError, before any pixel is written, when src has fewer
// channel samples than payload bits, and an error wrapping
// fingerprint.ErrInvalidFingerprint when fp is not valid hex.
func Encode(src image.Image, fp fingerprint.Fingerprint) (*image.NRGBA, error) {
	if !fp.Valid() {
		return nil, fmt.Errorf("encode: %w: %q", fingerprint.ErrInvalidFingerprint, fp)
	}
	bits, err := fp.Payload()
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	n := SampleCount(src.Bounds())
	k := len(bits)
	if err := checkCapacity(n, k); err != nil {
		return nil, err
	}

	out := Clone(src)
	r := newRaster(out)
	for i, bit := range bits {
		off := r.offset(Index(n, k, i))
		out.Pix[off] = out.Pix[off]&^1 | bit
	}
	return out, nil
}
