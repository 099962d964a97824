package provenance

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provmark/internal/fingerprint"
	"github.com/roach88/provmark/internal/metrics"
	"github.com/roach88/provmark/internal/stego"
	"github.com/roach88/provmark/internal/store"
	"github.com/roach88/provmark/internal/testutil"
)

const redFox = fingerprint.Fingerprint("031b84e574279d1981d01b912674e1f1c93a4d9e85c4b414ca9c89f46a8887de")

// memStore is an in-memory Store whose calls can be made to fail.
type memStore struct {
	mu       sync.Mutex
	records  map[fingerprint.Fingerprint]string
	putCalls int
	getCalls int

	// putErrs and getErrs are returned, in order, before calls succeed.
	putErrs []error
	getErrs []error

	// block makes the first call wait for its context to end.
	block bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[fingerprint.Fingerprint]string)}
}

func (m *memStore) Put(ctx context.Context, fp fingerprint.Fingerprint, prompt string) (bool, error) {
	if err := m.wait(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if len(m.putErrs) > 0 {
		err := m.putErrs[0]
		m.putErrs = m.putErrs[1:]
		return false, err
	}
	if _, ok := m.records[fp]; ok {
		return false, nil
	}
	m.records[fp] = prompt
	return true, nil
}

func (m *memStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (string, bool, error) {
	if err := m.wait(ctx); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if len(m.getErrs) > 0 {
		err := m.getErrs[0]
		m.getErrs = m.getErrs[1:]
		return "", false, err
	}
	p, ok := m.records[fp]
	return p, ok, nil
}

func (m *memStore) wait(ctx context.Context) error {
	m.mu.Lock()
	block := m.block
	m.block = false
	m.mu.Unlock()
	if !block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:         time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsed:      5 * time.Second,
		MaxAttempts:     5,
	}
}

func newService(t *testing.T, st Store, opts ...Option) *Service {
	t.Helper()
	gen, err := fingerprint.New("s3cr3t")
	require.NoError(t, err)

	opts = append([]Option{
		WithRetryPolicy(fastPolicy()),
		WithTraceIDGenerator(testutil.NewFixedTraceGenerator("trace-1")),
	}, opts...)
	svc, err := New(gen, st, opts...)
	require.NoError(t, err)
	return svc
}

var busy = sqlite3.Error{Code: sqlite3.ErrBusy}

func TestNew_NilDependency(t *testing.T) {
	gen, err := fingerprint.New("s3cr3t")
	require.NoError(t, err)

	_, err = New(nil, newMemStore())
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = New(gen, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestStampVerify_RoundTrip(t *testing.T) {
	st := newMemStore()
	svc := newService(t, st)
	ctx := context.Background()
	src := testutil.NoiseImage(64, 64, 1)

	res, err := svc.Stamp(ctx, src, "a red fox")
	require.NoError(t, err)
	assert.Equal(t, "trace-1", res.TraceID)
	assert.Equal(t, redFox, res.Fingerprint)
	assert.True(t, res.Watermarked)
	assert.True(t, res.Inserted)
	require.NotNil(t, res.Image)
	assert.Equal(t, "a red fox", st.records[redFox])

	v, err := svc.Verify(ctx, res.Image)
	require.NoError(t, err)
	assert.True(t, v.Found)
	assert.Equal(t, "a red fox", v.Prompt)
	assert.Equal(t, redFox, v.Fingerprint)
	assert.Nil(t, v.Highlight, "no overlay unless requested")
}

func TestStamp_SQLiteScenario(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "provmark.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := newService(t, st)
	ctx := context.Background()

	res, err := svc.Stamp(ctx, testutil.NoiseImage(64, 64, 7), "a red fox")
	require.NoError(t, err)
	assert.Equal(t, redFox, res.Fingerprint)

	decoded, err := stego.Decode(res.Image, fingerprint.DefaultLength)
	require.NoError(t, err)
	assert.Equal(t, redFox, decoded)

	prompt, found, err := st.Get(ctx, redFox)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a red fox", prompt)
}

func TestStamp_DoesNotMutateSource(t *testing.T) {
	svc := newService(t, newMemStore())
	src := testutil.NoiseImage(32, 32, 3)
	before := append([]byte(nil), src.Pix...)

	_, err := svc.Stamp(context.Background(), src, "a red fox")
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix)
}

func TestStamp_FirstWriteWins(t *testing.T) {
	st := newMemStore()
	svc := newService(t, st)
	ctx := context.Background()
	img := testutil.NoiseImage(32, 32, 1)

	first, err := svc.Stamp(ctx, img, "a red fox")
	require.NoError(t, err)
	second, err := svc.Stamp(ctx, img, "a red fox")
	require.NoError(t, err)

	assert.True(t, first.Inserted)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Len(t, st.records, 1)
}

func TestStamp_CapacityError(t *testing.T) {
	st := newMemStore()
	svc := newService(t, st)

	res, err := svc.Stamp(context.Background(), testutil.NoiseImage(10, 1, 1), "a red fox")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, stego.IsCapacityError(err))
	assert.Zero(t, st.putCalls, "nothing is recorded for an image that cannot carry the payload")
}

func TestStamp_AllowUnwatermarked(t *testing.T) {
	st := newMemStore()
	svc := newService(t, st)
	src := testutil.NoiseImage(10, 1, 1)

	res, err := svc.Stamp(context.Background(), src, "a red fox", AllowUnwatermarked())
	require.NoError(t, err)
	assert.False(t, res.Watermarked)
	assert.False(t, res.Inserted)
	assert.Equal(t, redFox, res.Fingerprint)
	assert.Equal(t, src.Pix, res.Image.Pix)
	assert.Zero(t, st.putCalls)
}

func TestStamp_InvalidPrompt(t *testing.T) {
	svc := newService(t, newMemStore())

	_, err := svc.Stamp(context.Background(), testutil.NoiseImage(64, 64, 1), "")
	assert.ErrorIs(t, err, fingerprint.ErrEmptyPrompt)
}

func TestStamp_RetriesTransientErrors(t *testing.T) {
	st := newMemStore()
	st.putErrs = []error{busy, busy}
	svc := newService(t, st)

	res, err := svc.Stamp(context.Background(), testutil.NoiseImage(32, 32, 1), "a red fox")
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, 3, st.putCalls)
	assert.Len(t, st.records, 1)
}

func TestStamp_PermanentErrorNotRetried(t *testing.T) {
	st := newMemStore()
	diskFull := errors.New("disk full")
	st.putErrs = []error{diskFull}
	svc := newService(t, st)

	res, err := svc.Stamp(context.Background(), testutil.NoiseImage(32, 32, 1), "a red fox")
	require.Error(t, err)
	assert.Nil(t, res, "no image is returned for an unrecorded fingerprint")
	assert.ErrorIs(t, err, diskFull)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "put", se.Op)
	assert.Equal(t, 1, se.Attempts)
	assert.Equal(t, 1, st.putCalls)
}

func TestStamp_RetriesExhausted(t *testing.T) {
	st := newMemStore()
	st.putErrs = []error{busy, busy, busy, busy}
	policy := fastPolicy()
	policy.MaxAttempts = 3
	svc := newService(t, st, WithRetryPolicy(policy))

	_, err := svc.Stamp(context.Background(), testutil.NoiseImage(32, 32, 1), "a red fox")
	require.Error(t, err)
	assert.True(t, IsStorageError(err))

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Attempts)
	assert.Equal(t, 3, st.putCalls)
	assert.Empty(t, st.records)
}

func TestStamp_ZeroLimitsFallBackToDefaultAttempts(t *testing.T) {
	st := newMemStore()
	for i := 0; i < 10; i++ {
		st.putErrs = append(st.putErrs, busy)
	}
	policy := fastPolicy()
	policy.MaxAttempts = 0
	policy.MaxElapsed = 0
	svc := newService(t, st, WithRetryPolicy(policy))

	_, err := svc.Stamp(context.Background(), testutil.NoiseImage(32, 32, 1), "a red fox")

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, DefaultRetryPolicy().MaxAttempts, se.Attempts)
	assert.Equal(t, DefaultRetryPolicy().MaxAttempts, st.putCalls)
}

func TestStamp_AttemptTimeoutIsRetried(t *testing.T) {
	st := newMemStore()
	st.block = true
	policy := fastPolicy()
	policy.Timeout = 20 * time.Millisecond
	svc := newService(t, st, WithRetryPolicy(policy))

	res, err := svc.Stamp(context.Background(), testutil.NoiseImage(32, 32, 1), "a red fox")
	require.NoError(t, err)
	assert.True(t, res.Inserted)
}

func TestStamp_CanceledContext(t *testing.T) {
	st := newMemStore()
	st.block = true
	svc := newService(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Stamp(ctx, testutil.NoiseImage(32, 32, 1), "a red fox")
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.records)
}

func TestStamp_CustomTransientFunc(t *testing.T) {
	flaky := errors.New("flaky")
	st := newMemStore()
	st.putErrs = []error{flaky}
	svc := newService(t, st, WithTransientFunc(func(err error) bool {
		return errors.Is(err, flaky)
	}))

	_, err := svc.Stamp(context.Background(), testutil.NoiseImage(32, 32, 1), "a red fox")
	require.NoError(t, err)
	assert.Equal(t, 2, st.putCalls)
}

func TestVerify_NeverWatermarked(t *testing.T) {
	svc := newService(t, newMemStore())

	v, err := svc.Verify(context.Background(), testutil.NoiseImage(64, 64, 42))
	require.NoError(t, err)
	assert.False(t, v.Found)
	assert.Empty(t, v.Prompt)
	assert.True(t, v.Fingerprint.Valid())
	assert.Len(t, v.Fingerprint.String(), fingerprint.DefaultLength)
}

func TestVerify_Highlight(t *testing.T) {
	svc := newService(t, newMemStore())
	ctx := context.Background()

	res, err := svc.Stamp(ctx, testutil.NoiseImage(64, 64, 1), "a red fox")
	require.NoError(t, err)

	v, err := svc.Verify(ctx, res.Image, WithHighlight())
	require.NoError(t, err)
	require.True(t, v.Found)
	require.NotNil(t, v.Highlight)
	assert.Equal(t, res.Image.Bounds(), v.Highlight.Bounds())
	assert.NotEqual(t, res.Image.Pix, v.Highlight.Pix)

	unverified, err := svc.Verify(ctx, testutil.NoiseImage(64, 64, 2), WithHighlight())
	require.NoError(t, err)
	assert.False(t, unverified.Found)
	assert.Nil(t, unverified.Highlight, "overlay is only drawn for verified images")
}

func TestVerify_TooSmall(t *testing.T) {
	svc := newService(t, newMemStore())

	for _, img := range []*image.NRGBA{testutil.NoiseImage(2, 2, 1), testutil.NoiseImage(10, 8, 1)} {
		v, err := svc.Verify(context.Background(), img, WithHighlight())
		require.NoError(t, err, "an image too small to stamp is unverified, not an error")
		assert.False(t, v.Found)
		assert.Empty(t, v.Fingerprint)
		assert.Nil(t, v.Highlight)
		assert.NotEmpty(t, v.TraceID)
	}
}

func TestVerify_StoreError(t *testing.T) {
	st := newMemStore()
	st.getErrs = []error{errors.New("corrupt page")}
	svc := newService(t, st)

	_, err := svc.Verify(context.Background(), testutil.NoiseImage(64, 64, 1))
	require.Error(t, err)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "get", se.Op)
}

func TestLookup(t *testing.T) {
	st := newMemStore()
	st.records[redFox] = "a red fox"
	svc := newService(t, st)
	ctx := context.Background()

	v, err := svc.Lookup(ctx, redFox)
	require.NoError(t, err)
	assert.True(t, v.Found)
	assert.Equal(t, "a red fox", v.Prompt)

	v, err = svc.Lookup(ctx, "abcdef")
	require.NoError(t, err)
	assert.False(t, v.Found)
}

func TestFingerprintAndLength(t *testing.T) {
	svc := newService(t, newMemStore())

	fp, err := svc.Fingerprint("a red fox")
	require.NoError(t, err)
	assert.Equal(t, redFox, fp)
	assert.Equal(t, fingerprint.DefaultLength, svc.Length())
}

func TestStamp_LogsTraceIDWithoutPrompt(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	svc := newService(t, newMemStore(), WithLogger(logger))

	_, err := svc.Stamp(context.Background(), testutil.NoiseImage(32, 32, 1), "a secret prompt")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"trace_id":"trace-1"`)
	assert.Contains(t, out, `"fingerprint":"`+shortFingerprint(t, "a secret prompt")+`"`)
	assert.NotContains(t, out, "a secret prompt")
}

func shortFingerprint(t *testing.T, prompt string) string {
	t.Helper()
	gen, err := fingerprint.New("s3cr3t")
	require.NoError(t, err)
	return testutil.Fingerprint(t, gen, prompt).Short()
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	st := newMemStore()
	st.putErrs = []error{busy}
	svc := newService(t, st, WithMetrics(m))
	ctx := context.Background()

	res, err := svc.Stamp(ctx, testutil.NoiseImage(32, 32, 1), "a red fox")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, res.Image)
	require.NoError(t, err)

	count, err := promtest.GatherAndCount(m.Registry(), "provmark_stamps_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// put retry, put ok, get ok
	count, err = promtest.GatherAndCount(m.Registry(), "provmark_store_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
