package testutil

import (
	"image"
	"image/color"
	"math/rand/v2"
)

// NoiseImage returns a w×h opaque NRGBA image filled with pseudo-random RGB
// values. The same seed always produces the same pixels.
func NoiseImage(w, h int, seed uint64) *image.NRGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = uint8(rng.UintN(256))
		img.Pix[i+1] = uint8(rng.UintN(256))
		img.Pix[i+2] = uint8(rng.UintN(256))
		img.Pix[i+3] = 0xff
	}
	return img
}

// TranslucentNoiseImage is like NoiseImage but with pseudo-random alpha as
// well, for checking that alpha bytes survive untouched.
func TranslucentNoiseImage(w, h int, seed uint64) *image.NRGBA {
	img := NoiseImage(w, h, seed)
	rng := rand.New(rand.NewPCG(seed+1, seed))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.UintN(256))
	}
	return img
}

// SolidImage returns a w×h NRGBA image filled with c.
func SolidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// GradientRGBA returns a w×h opaque premultiplied RGBA gradient, the layout
// image decoders commonly produce.
func GradientRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) * 255 / max(w+h-2, 1)),
				A: 0xff,
			})
		}
	}
	return img
}
