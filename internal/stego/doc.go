// Package stego embeds provenance fingerprints into image pixel data and
// reads them back out.
//
// The payload is spread evenly over the image's channel samples: the R, G and
// B bytes of every pixel in row-major order, alpha excluded. For an image
// with N samples and a payload of K bits, bit i lives in the least
// significant bit of sample i*floor(N/K). That mapping is computed by [Index]
// and nowhere else; [Encode], [Decode] and [Highlight] all go through it, so
// readers and writers cannot drift apart.
//
// Every input is normalized to non-premultiplied 8-bit RGBA before sampling.
// Operations never mutate their input; the returned images are fresh buffers
// with their origin at (0, 0).
//
// # Limitations
//
// The watermark does not survive anything that rewrites pixel values or
// changes the pixel count: resizing, cropping, lossy re-encoding. Decoding an
// image whose dimensions differ from the ones it was encoded at produces an
// arbitrary, well-formed fingerprint. Callers verify candidates against the
// provenance store; this package never does.
package stego
