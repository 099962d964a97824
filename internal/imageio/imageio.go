// Package imageio decodes image files into NRGBA rasters and writes
// rasters back out as PNG.
//
// Only PNG output is supported. Lossy formats rewrite pixel values and would
// destroy the least-significant bits that carry a watermark.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoder safety limits.
const (
	MaxWidth  = 8192
	MaxHeight = 8192
	MaxPixels = 30_000_000
)

var (
	// ErrUnsupportedFormat is returned for data no registered decoder accepts.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrTooLarge is returned for images beyond the safety limits.
	ErrTooLarge = errors.New("image dimensions exceed safety limits")

	// ErrLossyOutput is returned when asked to write a lossy format.
	ErrLossyOutput = errors.New("refusing lossy output format; watermarks require PNG")
)

// Decode reads an image and returns it as NRGBA with its origin at (0, 0),
// along with the detected format name.
//
// The header is checked against the safety limits before any pixel data is
// decoded.
func Decode(r io.Reader) (*image.NRGBA, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if !safeBounds(cfg.Width, cfg.Height) {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}
	return Normalize(img), format, nil
}

// ReadFile decodes the image at path.
func ReadFile(path string) (*image.NRGBA, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	img, format, err := Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return img, format, nil
}

// Normalize converts img to non-premultiplied 8-bit RGBA with its origin at
// (0, 0). An NRGBA image already at the origin is returned as is.
func Normalize(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// WriteFile writes img to path as PNG. The file is written to a temporary
// name in the same directory and renamed into place, so readers never see a
// partial image.
//
// Paths ending in a lossy extension (.jpg, .jpeg, .webp) are rejected with
// ErrLossyOutput.
func WriteFile(path string, img image.Image) error {
	if err := CheckOutputPath(path); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return err
	}
	return atomicWrite(path, buf.Bytes(), 0o644)
}

// CheckOutputPath returns ErrLossyOutput if path names a lossy format.
// Callers use it to fail before doing work whose result could not be saved.
func CheckOutputPath(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".webp":
		return fmt.Errorf("%s: %w", path, ErrLossyOutput)
	}
	return nil
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func safeBounds(w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	if w > MaxWidth || h > MaxHeight {
		return false
	}
	return w*h <= MaxPixels
}
