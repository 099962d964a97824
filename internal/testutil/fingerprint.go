package testutil

import (
	"testing"

	"github.com/roach88/provmark/internal/fingerprint"
)

// Fingerprint generates the fingerprint for prompt and fails the test on error.
func Fingerprint(tb testing.TB, g *fingerprint.Generator, prompt string) fingerprint.Fingerprint {
	tb.Helper()
	fp, err := g.Generate(prompt)
	if err != nil {
		tb.Fatalf("generate fingerprint for %q: %v", prompt, err)
	}
	return fp
}
