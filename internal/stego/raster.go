package stego

import (
	"image"
	"image/draw"
)

// raster addresses the channel samples of an NRGBA image.
type raster struct {
	img  *image.NRGBA
	w, h int
}

func newRaster(img *image.NRGBA) raster {
	b := img.Bounds()
	return raster{img: img, w: b.Dx(), h: b.Dy()}
}

func (r raster) samples() int {
	return r.w * r.h * ChannelsPerPixel
}

// pixel converts a flat sample index to zero-based pixel coordinates.
func (r raster) pixel(sample int) image.Point {
	p := sample / ChannelsPerPixel
	return image.Point{X: p % r.w, Y: p / r.w}
}

// offset returns the position of sample in the Pix slice.
func (r raster) offset(sample int) int {
	pt := r.pixel(sample)
	origin := r.img.Rect.Min
	return r.img.PixOffset(origin.X+pt.X, origin.Y+pt.Y) + sample%ChannelsPerPixel
}

func (r raster) lsb(sample int) byte {
	return r.img.Pix[r.offset(sample)] & 1
}

// Clone returns a copy of src as NRGBA with its origin at (0, 0).
// The result never aliases src.
func Clone(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			srcOff := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], n.Pix[srcOff:srcOff+rowLen])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// asNRGBA returns src itself when it is already NRGBA, otherwise a converted
// copy. The result must be treated as read-only.
func asNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	return Clone(src)
}
