package stego

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provmark/internal/fingerprint"
	"github.com/roach88/provmark/internal/testutil"
)

func TestMarkedPixels_MatchesDecoderIndices(t *testing.T) {
	src := testutil.NoiseImage(64, 64, 21)
	out, err := Encode(src, redFox)
	require.NoError(t, err)

	points, err := MarkedPixels(out, fingerprint.DefaultLength)
	require.NoError(t, err)

	// Rebuild the set-bit pixels independently from the payload.
	bits, _ := redFox.Payload()
	n := SampleCount(out.Bounds())
	var want []image.Point
	for i, bit := range bits {
		if bit == 0 {
			continue
		}
		p := Index(n, len(bits), i) / ChannelsPerPixel
		want = append(want, image.Point{X: p % 64, Y: p / 64})
	}
	assert.Equal(t, want, points)
}

func TestMarkedPixels_DeduplicatesPixel(t *testing.T) {
	// 2x1 image: N=6, K=4, step=1, samples 0..3 span pixels 0,0,0,1.
	out, err := Encode(testutil.SolidImage(2, 1, color.NRGBA{A: 255}), "f")
	require.NoError(t, err)

	points, err := MarkedPixels(out, 1)
	require.NoError(t, err)
	assert.Equal(t, []image.Point{{0, 0}, {1, 0}}, points)
}

func TestHighlight_DrawsClampedSquares(t *testing.T) {
	// 16x16: N=768, K=4, step=192 -> pixels (0,0) (0,4) (0,8) (0,12).
	src := testutil.SolidImage(16, 16, color.NRGBA{A: 255})
	marked, err := Encode(src, "f")
	require.NoError(t, err)
	before := append([]byte(nil), marked.Pix...)

	points, err := MarkedPixels(marked, 1)
	require.NoError(t, err)
	assert.Equal(t, []image.Point{{0, 0}, {0, 4}, {0, 8}, {0, 12}}, points)

	out, err := Highlight(marked, 1)
	require.NoError(t, err)
	assert.Equal(t, before, marked.Pix, "input must not be mutated")

	// Inside the first square, clipped to [0,4)x[0,4) at the corner.
	c := out.NRGBAAt(3, 3)
	assert.Greater(t, c.R, uint8(150))
	assert.Equal(t, uint8(0), c.G)
	assert.Equal(t, uint8(255), c.A)

	// Outside every square.
	assert.Equal(t, marked.NRGBAAt(5, 0), out.NRGBAAt(5, 0))
	assert.Equal(t, marked.NRGBAAt(15, 15), out.NRGBAAt(15, 15))
}

func TestHighlight_Options(t *testing.T) {
	src := testutil.SolidImage(16, 16, color.NRGBA{A: 255})
	marked, err := Encode(src, "8") // only bit 0 set -> pixel (0,0)
	require.NoError(t, err)

	out, err := Highlight(marked, 1,
		WithSquareSize(2),
		WithMarkerColor(color.NRGBA{G: 255, A: 255}),
	)
	require.NoError(t, err)

	// size 2 centred on (0,0) covers [-1,1) -> only (0,0) after clipping.
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, marked.NRGBAAt(1, 0), out.NRGBAAt(1, 0))
	assert.Equal(t, marked.NRGBAAt(0, 1), out.NRGBAAt(0, 1))
}

func TestHighlight_CompositeOp(t *testing.T) {
	src := testutil.SolidImage(16, 16, color.NRGBA{B: 255, A: 255})
	marked, err := Encode(src, "8")
	require.NoError(t, err)

	blended, err := Highlight(marked, 1)
	require.NoError(t, err)
	got := blended.NRGBAAt(0, 0)
	assert.InDelta(t, 180, got.R, 2)
	assert.InDelta(t, 75, got.B, 2, "over keeps some of the underlying blue")
	assert.Equal(t, uint8(255), got.A)

	replaced, err := Highlight(marked, 1, WithCompositeOp(draw.Src))
	require.NoError(t, err)
	assert.Equal(t, DefaultMarkerColor, replaced.NRGBAAt(0, 0))
	assert.Equal(t, marked.NRGBAAt(8, 8), replaced.NRGBAAt(8, 8))
}

func TestHighlight_NoSetBits(t *testing.T) {
	src := testutil.SolidImage(16, 16, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	out, err := Highlight(src, 4)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestHighlight_Errors(t *testing.T) {
	_, err := Highlight(testutil.NoiseImage(85, 1, 1), fingerprint.DefaultLength)
	assert.True(t, IsCapacityError(err))

	_, err = Highlight(testutil.NoiseImage(8, 8, 1), 0)
	assert.ErrorIs(t, err, fingerprint.ErrInvalidLength)
}
