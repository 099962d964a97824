package provenance

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/roach88/provmark/internal/fingerprint"
	"github.com/roach88/provmark/internal/metrics"
	"github.com/roach88/provmark/internal/stego"
	"github.com/roach88/provmark/internal/store"
)

// Store is the persistence surface the service needs.
// Put must keep the first prompt written for a fingerprint.
type Store interface {
	Put(ctx context.Context, fp fingerprint.Fingerprint, prompt string) (inserted bool, err error)
	Get(ctx context.Context, fp fingerprint.Fingerprint) (prompt string, found bool, err error)
}

// Service stamps and verifies images.
// It is safe for concurrent use if its Store is.
type Service struct {
	gen       *fingerprint.Generator
	store     *retrying
	logger    *slog.Logger
	metrics   *metrics.Metrics
	traces    TraceIDGenerator
	highlight []stego.HighlightOption
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTraceIDGenerator sets the trace ID source. The default is UUIDv7.
func WithTraceIDGenerator(g TraceIDGenerator) Option {
	return func(s *Service) {
		s.traces = g
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		s.store.policy = p
	}
}

// WithTransientFunc sets the classifier for retryable store errors.
// The default is store.IsTransient.
func WithTransientFunc(fn func(error) bool) Option {
	return func(s *Service) {
		s.store.transient = fn
	}
}

// WithHighlightOptions sets the options used for verification overlays.
func WithHighlightOptions(opts ...stego.HighlightOption) Option {
	return func(s *Service) {
		s.highlight = opts
	}
}

// New returns a Service that fingerprints with gen and records to st.
func New(gen *fingerprint.Generator, st Store, opts ...Option) (*Service, error) {
	if gen == nil || st == nil {
		return nil, ErrNilDependency
	}

	s := &Service{
		gen: gen,
		store: &retrying{
			store:     st,
			policy:    DefaultRetryPolicy(),
			transient: store.IsTransient,
		},
		logger: slog.New(slog.DiscardHandler),
		traces: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store.metrics = s.metrics
	return s, nil
}

// Length returns the fingerprint length used for every operation.
func (s *Service) Length() int {
	return s.gen.Length()
}

// Fingerprint returns the fingerprint for prompt without touching the store.
func (s *Service) Fingerprint(prompt string) (fingerprint.Fingerprint, error) {
	return s.gen.Generate(prompt)
}

// StampResult describes a completed Stamp.
type StampResult struct {
	TraceID     string
	Fingerprint fingerprint.Fingerprint

	// Image is the output raster. When Watermarked is false it is an
	// unmodified copy of the input.
	Image *image.NRGBA

	// Watermarked is false only when AllowUnwatermarked was given and the
	// image was too small to carry the payload.
	Watermarked bool

	// Inserted reports whether this call created the store record. It is
	// false when the fingerprint was already recorded.
	Inserted bool
}

type stampConfig struct {
	allowUnwatermarked bool
}

// StampOption configures one Stamp call.
type StampOption func(*stampConfig)

// AllowUnwatermarked makes Stamp return an unchanged copy, rather than a
// *stego.CapacityError, for images too small to carry the payload. Nothing
// is recorded in that case.
func AllowUnwatermarked() StampOption {
	return func(c *stampConfig) {
		c.allowUnwatermarked = true
	}
}

// Stamp fingerprints prompt, embeds the fingerprint in img, and records the
// pair. img is never modified.
//
// A store failure returns a *StorageError and no result, so the caller
// never holds a watermarked image whose fingerprint is unrecorded.
func (s *Service) Stamp(ctx context.Context, img image.Image, prompt string, opts ...StampOption) (*StampResult, error) {
	var cfg stampConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	traceID := s.traces.Generate()
	logger := s.logger.With("trace_id", traceID)

	fp, err := s.gen.Generate(prompt)
	if err != nil {
		s.metrics.Stamp(metrics.OutcomeError)
		return nil, fmt.Errorf("stamp: %w", err)
	}
	logger = logger.With("fingerprint", fp.Short())
	logger.Debug("fingerprint derived", "prompt", prompt)

	s.metrics.ImageSamples(stego.SampleCount(img.Bounds()))
	out, err := stego.Encode(img, fp)
	if err != nil {
		if stego.IsCapacityError(err) && cfg.allowUnwatermarked {
			logger.Warn("image too small, leaving unwatermarked", "error", err)
			s.metrics.Stamp(metrics.OutcomeUnwatermarked)
			return &StampResult{
				TraceID:     traceID,
				Fingerprint: fp,
				Image:       stego.Clone(img),
			}, nil
		}
		s.metrics.Stamp(metrics.OutcomeError)
		return nil, fmt.Errorf("stamp: %w", err)
	}

	inserted, err := s.store.put(ctx, logger, fp, prompt)
	if err != nil {
		s.metrics.Stamp(metrics.OutcomeError)
		return nil, fmt.Errorf("stamp: %w", err)
	}

	logger.Info("image stamped", "inserted", inserted)
	s.metrics.Stamp(metrics.OutcomeWatermarked)
	return &StampResult{
		TraceID:     traceID,
		Fingerprint: fp,
		Image:       out,
		Watermarked: true,
		Inserted:    inserted,
	}, nil
}

// Verification is the outcome of Verify or Lookup.
// Found is false when the candidate fingerprint has no store record, which
// covers both unwatermarked and tampered images.
type Verification struct {
	TraceID     string
	Fingerprint fingerprint.Fingerprint
	Found       bool
	Prompt      string

	// Highlight is set only when requested and Found is true.
	Highlight *image.NRGBA
}

type verifyConfig struct {
	highlight bool
}

// VerifyOption configures one Verify call.
type VerifyOption func(*verifyConfig)

// WithHighlight asks Verify to render the overlay for a verified image.
func WithHighlight() VerifyOption {
	return func(c *verifyConfig) {
		c.highlight = true
	}
}

// Verify decodes the candidate fingerprint from img and looks it up.
// A missing record is a negative result, not an error.
func (s *Service) Verify(ctx context.Context, img image.Image, opts ...VerifyOption) (*Verification, error) {
	var cfg verifyConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	traceID := s.traces.Generate()
	logger := s.logger.With("trace_id", traceID)

	s.metrics.ImageSamples(stego.SampleCount(img.Bounds()))
	fp, err := stego.Decode(img, s.gen.Length())
	if stego.IsCapacityError(err) {
		// Too small to have ever been stamped.
		logger.Info("image too small to carry a fingerprint", "error", err)
		s.metrics.Verification(metrics.ResultUnverified)
		return &Verification{TraceID: traceID}, nil
	}
	if err != nil {
		s.metrics.Verification(metrics.ResultError)
		return nil, fmt.Errorf("verify: %w", err)
	}

	v, err := s.lookup(ctx, logger, traceID, fp)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	if v.Found && cfg.highlight {
		v.Highlight, err = stego.Highlight(img, s.gen.Length(), s.highlight...)
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
	}
	return v, nil
}

// Lookup returns the record for a known fingerprint.
func (s *Service) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*Verification, error) {
	traceID := s.traces.Generate()
	v, err := s.lookup(ctx, s.logger.With("trace_id", traceID), traceID, fp)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	return v, nil
}

func (s *Service) lookup(ctx context.Context, logger *slog.Logger, traceID string, fp fingerprint.Fingerprint) (*Verification, error) {
	logger = logger.With("fingerprint", fp.Short())

	prompt, found, err := s.store.get(ctx, logger, fp)
	if err != nil {
		s.metrics.Verification(metrics.ResultError)
		return nil, err
	}

	if found {
		logger.Info("provenance verified")
		s.metrics.Verification(metrics.ResultVerified)
	} else {
		logger.Info("no provenance record")
		s.metrics.Verification(metrics.ResultUnverified)
	}
	return &Verification{
		TraceID:     traceID,
		Fingerprint: fp,
		Found:       found,
		Prompt:      prompt,
	}, nil
}
