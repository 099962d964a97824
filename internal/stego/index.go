package stego

import (
	"image"

	"github.com/roach88/provmark/internal/fingerprint"
)

// ChannelsPerPixel is the number of samples each pixel contributes (R, G, B).
const ChannelsPerPixel = 3

// SampleCount returns N, the number of RGB channel samples in bounds.
func SampleCount(bounds image.Rectangle) int {
	return bounds.Dx() * bounds.Dy() * ChannelsPerPixel
}

// PayloadBits returns K, the payload size for a fingerprint of length chars.
func PayloadBits(length int) int {
	return length * fingerprint.BitsPerChar
}

// Step returns floor(totalSamples / bitCount), the distance between two
// consecutive payload samples. It is 0 when bitCount is not positive or larger
// than totalSamples, which no caller may index with.
func Step(totalSamples, bitCount int) int {
	if bitCount <= 0 || bitCount > totalSamples {
		return 0
	}
	return totalSamples / bitCount
}

// Index returns the channel-sample index that carries payload bit i.
//
// This is the only definition of the bit layout. Encoder, decoder and
// highlighter must call it with identical totalSamples and bitCount.
func Index(totalSamples, bitCount, i int) int {
	return i * Step(totalSamples, bitCount)
}

// Indices returns Index(totalSamples, bitCount, i) for every i in
// [0, bitCount). The result is strictly increasing when bitCount <= totalSamples.
func Indices(totalSamples, bitCount int) []int {
	if bitCount <= 0 {
		return nil
	}
	out := make([]int, bitCount)
	for i := range out {
		out[i] = Index(totalSamples, bitCount, i)
	}
	return out
}

// checkCapacity returns a *CapacityError if bitCount samples do not fit.
func checkCapacity(totalSamples, bitCount int) error {
	if bitCount > totalSamples {
		return &CapacityError{Samples: totalSamples, Bits: bitCount}
	}
	return nil
}
