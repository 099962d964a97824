package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultLength is the full SHA-256 digest in hex characters.
	DefaultLength = sha256.Size * 2

	// MaxLength is the longest fingerprint the digest can supply.
	MaxLength = DefaultLength

	// BitsPerChar is the number of payload bits carried per hex character.
	BitsPerChar = 4
)

var (
	// ErrMissingSecret is returned when a Generator is built without a secret.
	// Callers must treat it as a fatal configuration error.
	ErrMissingSecret = errors.New("fingerprint secret is required")

	// ErrEmptyPrompt is returned when Generate is called with an empty prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrInvalidPrompt is returned for prompts that are not valid UTF-8.
	ErrInvalidPrompt = errors.New("prompt is not valid UTF-8")

	// ErrInvalidLength is returned for lengths outside 1..MaxLength.
	ErrInvalidLength = errors.New("invalid fingerprint length")

	// ErrInvalidFingerprint is returned by Parse for malformed input.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)

// Fingerprint is a lowercase hex string identifying one generation event.
type Fingerprint string

// String returns the fingerprint as plain hex.
func (f Fingerprint) String() string {
	return string(f)
}

// Len returns the number of hex characters.
func (f Fingerprint) Len() int {
	return len(f)
}

// Short returns the first 12 characters, for log lines.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Valid reports whether f is a non-empty lowercase hex string of at most
// MaxLength characters.
func (f Fingerprint) Valid() bool {
	if len(f) == 0 || len(f) > MaxLength {
		return false
	}
	for i := 0; i < len(f); i++ {
		if nibble(f[i]) < 0 {
			return false
		}
	}
	return true
}

// Payload expands the fingerprint into its watermark bits, one 0/1 value per
// element, most significant bit of each hex character first.
//
// Returns ErrInvalidFingerprint if f contains a non-hex character.
func (f Fingerprint) Payload() ([]byte, error) {
	bits := make([]byte, 0, len(f)*BitsPerChar)
	for i := 0; i < len(f); i++ {
		v := nibble(f[i])
		if v < 0 {
			return nil, fmt.Errorf("%w: non-hex character %q at %d", ErrInvalidFingerprint, f[i], i)
		}
		for shift := BitsPerChar - 1; shift >= 0; shift-- {
			bits = append(bits, byte(v>>shift)&1)
		}
	}
	return bits, nil
}

// FromPayload packs payload bits back into a fingerprint. Each group of four
// bits becomes one hex character, most significant bit first. Only the low
// bit of each element is used. A trailing partial group is ignored.
func FromPayload(bits []byte) Fingerprint {
	const digits = "0123456789abcdef"
	n := len(bits) / BitsPerChar
	var b strings.Builder
	b.Grow(n)
	for c := 0; c < n; c++ {
		var v byte
		for j := 0; j < BitsPerChar; j++ {
			v = v<<1 | bits[c*BitsPerChar+j]&1
		}
		b.WriteByte(digits[v])
	}
	return Fingerprint(b.String())
}

// Parse validates caller-supplied hex and returns it as a Fingerprint.
// Uppercase input is accepted and normalized to lowercase.
func Parse(s string) (Fingerprint, error) {
	f := Fingerprint(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
	}
	return f, nil
}

// ValidLength reports whether l is an acceptable fingerprint length.
func ValidLength(l int) error {
	if l < 1 || l > MaxLength {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidLength, l, MaxLength)
	}
	return nil
}

// Generator computes fingerprints for prompts under one secret.
// A Generator is immutable and safe for concurrent use.
type Generator struct {
	secret []byte
	length int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLength sets the fingerprint length in hex characters.
func WithLength(l int) Option {
	return func(g *Generator) {
		g.length = l
	}
}

// New returns a Generator bound to secret.
//
// Returns ErrMissingSecret if secret is empty and ErrInvalidLength if a
// WithLength option is out of range.
func New(secret string, opts ...Option) (*Generator, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	g := &Generator{
		secret: []byte(secret),
		length: DefaultLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := ValidLength(g.length); err != nil {
		return nil, err
	}
	return g, nil
}

// Length returns the configured fingerprint length.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns the fingerprint for prompt. The same (prompt, secret)
// always yields the same fingerprint.
func (g *Generator) Generate(prompt string) (Fingerprint, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if !utf8.ValidString(prompt) {
		return "", ErrInvalidPrompt
	}

	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write(g.secret)
	sum := hex.EncodeToString(h.Sum(nil))
	return Fingerprint(sum[:g.length]), nil
}

// nibble returns the value of a lowercase hex digit, or -1.
func nibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return -1
}
