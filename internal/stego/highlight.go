package stego

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/roach88/provmark/internal/fingerprint"
)

const (
	// DefaultSquareSize is the side of each highlight square in pixels.
	DefaultSquareSize = 8
)

// DefaultMarkerColor is translucent red.
var DefaultMarkerColor = color.NRGBA{R: 255, G: 0, B: 0, A: 180}

type highlightConfig struct {
	size   int
	marker color.Color
	op     draw.Op
}

// HighlightOption configures Highlight.
type HighlightOption func(*highlightConfig)

// WithSquareSize sets the side of each highlight square. Values below 1 are
// treated as 1.
func WithSquareSize(n int) HighlightOption {
	return func(c *highlightConfig) {
		if n < 1 {
			n = 1
		}
		c.size = n
	}
}

// WithMarkerColor sets the overlay colour. It is composited over the image,
// so a translucent colour leaves the underlying pixels visible.
func WithMarkerColor(col color.Color) HighlightOption {
	return func(c *highlightConfig) {
		c.marker = col
	}
}

// WithCompositeOp sets how squares are painted. draw.Over (the default)
// blends the marker with the image. draw.Src replaces the covered pixels
// with the marker colour, alpha included.
func WithCompositeOp(op draw.Op) HighlightOption {
	return func(c *highlightConfig) {
		c.op = op
	}
}

// MarkedPixels returns the zero-based coordinates of every pixel whose
// sampled payload bit is 1, in payload order. A pixel that carries more than
// one set bit appears once.
func MarkedPixels(img image.Image, length int) ([]image.Point, error) {
	if err := fingerprint.ValidLength(length); err != nil {
		return nil, fmt.Errorf("highlight: %w", err)
	}

	r := newRaster(asNRGBA(img))
	n := r.samples()
	k := PayloadBits(length)
	if err := checkCapacity(n, k); err != nil {
		return nil, err
	}

	var points []image.Point
	for i := 0; i < k; i++ {
		idx := Index(n, k, i)
		if r.lsb(idx) == 0 {
			continue
		}
		pt := r.pixel(idx)
		// Indices increase, so repeats of one pixel are adjacent.
		if len(points) > 0 && points[len(points)-1] == pt {
			continue
		}
		points = append(points, pt)
	}
	return points, nil
}

// Highlight returns a copy of img with a filled square drawn over every
// pixel reported by MarkedPixels. Squares are centred on the pixel and
// clipped to the image bounds.
//
// The overlay is diagnostic only. It shows where bits were read and plays no
// part in deriving the fingerprint.
func Highlight(img image.Image, length int, opts ...HighlightOption) (*image.NRGBA, error) {
	cfg := highlightConfig{size: DefaultSquareSize, marker: DefaultMarkerColor, op: draw.Over}
	for _, opt := range opts {
		opt(&cfg)
	}

	points, err := MarkedPixels(img, length)
	if err != nil {
		return nil, err
	}

	out := Clone(img)
	fill := image.NewUniform(cfg.marker)
	half := cfg.size / 2
	for _, pt := range points {
		sq := image.Rect(pt.X-half, pt.Y-half, pt.X-half+cfg.size, pt.Y-half+cfg.size).Intersect(out.Rect)
		if sq.Empty() {
			continue
		}
		draw.Draw(out, sq, fill, image.Point{}, cfg.op)
	}
	return out, nil
}
