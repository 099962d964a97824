package stego

import (
	"fmt"
	"image"

	"github.com/roach88/provmark/internal/fingerprint"
)

// Decode reads a candidate fingerprint of length hex characters from img.
//
// The result is always well-formed hex but is not validated: an image that
// was never watermarked, or that was resized after encoding, decodes to an
// arbitrary fingerprint. Look the candidate up in the provenance store to
// decide whether it is genuine.
func Decode(img image.Image, length int) (fingerprint.Fingerprint, error) {
	if err := fingerprint.ValidLength(length); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	r := newRaster(asNRGBA(img))
	n := r.samples()
	k := PayloadBits(length)
	if err := checkCapacity(n, k); err != nil {
		return "", err
	}

	bits := make([]byte, k)
	for i := range bits {
		bits[i] = r.lsb(Index(n, k, i))
	}
	return fingerprint.FromPayload(bits), nil
}
