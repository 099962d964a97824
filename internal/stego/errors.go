package stego

import (
	"errors"
	"fmt"
)

// CapacityError reports an image with fewer channel samples than payload bits.
// No pixel is modified when it is returned.
type CapacityError struct {
	// Samples is the number of RGB channel samples in the image.
	Samples int

	// Bits is the payload size that did not fit.
	Bits int
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("image too small for watermark: need %d channel samples, have %d", e.Bits, e.Samples)
}

// IsCapacityError returns true if err is or wraps a *CapacityError.
func IsCapacityError(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}
