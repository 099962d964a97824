// Package metrics holds the Prometheus collectors for watermarking and
// provenance lookups.
//
// provmark is a short-lived CLI, so there is no scrape endpoint. Collectors
// live in a private registry that can be flushed to a node-exporter textfile
// when the process exits.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Stamp outcomes.
const (
	OutcomeWatermarked   = "watermarked"
	OutcomeUnwatermarked = "unwatermarked"
	OutcomeError         = "error"
)

// Verification results.
const (
	ResultVerified   = "verified"
	ResultUnverified = "unverified"
	ResultError      = "error"
)

// Store call results.
const (
	StoreOK       = "ok"
	StoreRetry    = "retry"
	StoreFailed   = "failed"
	StoreCanceled = "canceled"
)

// Metrics is a set of collectors registered on its own registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stamps        *prometheus.CounterVec
	verifications *prometheus.CounterVec
	storeCalls    *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	imageSamples  prometheus.Histogram
}

// New creates the collectors and registers them.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provmark",
			Name:      "stamps_total",
			Help:      "Stamp operations by outcome.",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provmark",
			Name:      "verifications_total",
			Help:      "Verify operations by result.",
		}, []string{"result"}),
		storeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provmark",
			Subsystem: "store",
			Name:      "calls_total",
			Help:      "Provenance store attempts by operation and result.",
		}, []string{"op", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "provmark",
			Subsystem: "store",
			Name:      "call_duration_seconds",
			Help:      "Latency of provenance store attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		imageSamples: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "provmark",
			Name:      "image_channel_samples",
			Help:      "RGB channel samples per processed image.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
	}
	m.registry.MustRegister(m.stamps, m.verifications, m.storeCalls, m.storeLatency, m.imageSamples)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Stamp counts one stamp with the given outcome.
func (m *Metrics) Stamp(outcome string) {
	if m == nil {
		return
	}
	m.stamps.WithLabelValues(outcome).Inc()
}

// Verification counts one verify with the given result.
func (m *Metrics) Verification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

// StoreCall counts one store attempt.
func (m *Metrics) StoreCall(op, result string) {
	if m == nil {
		return
	}
	m.storeCalls.WithLabelValues(op, result).Inc()
}

// StoreTimer starts timing one store attempt. Call ObserveDuration on the
// result when the attempt finishes.
func (m *Metrics) StoreTimer(op string) *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(prometheus.ObserverFunc(func(float64) {}))
	}
	return prometheus.NewTimer(m.storeLatency.WithLabelValues(op))
}

// ImageSamples records the channel-sample count of a processed image.
func (m *Metrics) ImageSamples(n int) {
	if m == nil {
		return
	}
	m.imageSamples.Observe(float64(n))
}

// WriteTextfile writes every collected metric to path in the text
// exposition format. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
