package cli

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/provmark/internal/testutil"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestCapacity_GoldenJSON(t *testing.T) {
	dir := setupEnv(t, "")
	in := writePNG(t, filepath.Join(dir, "fixture.png"), testutil.NoiseImage(64, 64, 1))

	res := runCLI(t, "--format", "json", "capacity", in)
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	newGoldie(t).Assert(t, "capacity_64x64", []byte(res.stdout))
}

func TestCapacity_GoldenText(t *testing.T) {
	dir := setupEnv(t, "")
	in := writePNG(t, filepath.Join(dir, "fixture.png"), testutil.NoiseImage(64, 64, 1))

	res := runCLI(t, "capacity", in)
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	newGoldie(t).Assert(t, "capacity_64x64_text", []byte(res.stdout))
}

func TestCapacity_LocaleGrouping(t *testing.T) {
	dir := setupEnv(t, "")
	t.Setenv("LANG", "de_DE.UTF-8")
	in := writePNG(t, filepath.Join(dir, "fixture.png"), testutil.NoiseImage(64, 64, 1))

	res := runCLI(t, "capacity", in)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "samples:      12.288")
}

func TestCapacity_DoesNotFit(t *testing.T) {
	dir := setupEnv(t, "")
	in := writePNG(t, filepath.Join(dir, "tiny.png"), testutil.NoiseImage(8, 8, 1))

	res := runCLI(t, "--format", "json", "capacity", in)
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var out CapacityOutput
	res.data(t, &out)
	assert.Equal(t, 192, out.Samples)
	assert.Equal(t, 256, out.PayloadBits)
	assert.Zero(t, out.Step)
	assert.False(t, out.Fits)
}

func TestCapacity_ShorterFingerprint(t *testing.T) {
	dir := setupEnv(t, "")
	t.Setenv("PROVMARK_FINGERPRINT_LENGTH", "8")
	in := writePNG(t, filepath.Join(dir, "tiny.png"), testutil.NoiseImage(8, 8, 1))

	res := runCLI(t, "--format", "json", "capacity", in)
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var out CapacityOutput
	res.data(t, &out)
	assert.Equal(t, 32, out.PayloadBits)
	assert.Equal(t, 6, out.Step)
	assert.True(t, out.Fits)
}

func TestParseLocale(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"", "12,288"},
		{"C", "12,288"},
		{"POSIX", "12,288"},
		{"C.UTF-8", "12,288"},
		{"en_US.UTF-8", "12,288"},
		{"de_DE.UTF-8", "12.288"},
		{"de_DE@euro", "12.288"},
		{"???", "12,288"},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			p := message.NewPrinter(parseLocale(tt.locale))
			assert.Equal(t, tt.want, p.Sprintf("%v", 12288))
		})
	}
	assert.Equal(t, language.English, parseLocale("C"))
}
