package provenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/provmark/internal/fingerprint"
	"github.com/roach88/provmark/internal/metrics"
)

// RetryPolicy bounds how store calls are retried.
type RetryPolicy struct {
	// Timeout applies to each attempt separately.
	Timeout time.Duration

	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the wait between retries.
	MaxInterval time.Duration

	// MaxElapsed caps the total time spent retrying. Zero means no cap.
	MaxElapsed time.Duration

	// MaxAttempts caps the number of attempts, counting the first.
	// Zero means no cap, unless MaxElapsed is also zero, in which case the
	// default attempt limit applies.
	MaxAttempts int
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:         5 * time.Second,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsed:      30 * time.Second,
		MaxAttempts:     5,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = p.MaxElapsed

	attempts := p.MaxAttempts
	if attempts <= 0 && p.MaxElapsed <= 0 {
		attempts = DefaultRetryPolicy().MaxAttempts
	}

	var b backoff.BackOff = exp
	if attempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(attempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// retrying wraps a Store with timeouts, retries, and metrics.
type retrying struct {
	store     Store
	policy    RetryPolicy
	transient func(error) bool
	metrics   *metrics.Metrics
}

func (r *retrying) put(ctx context.Context, logger *slog.Logger, fp fingerprint.Fingerprint, prompt string) (bool, error) {
	var inserted bool
	err := r.do(ctx, logger, "put", func(ctx context.Context) error {
		var err error
		inserted, err = r.store.Put(ctx, fp, prompt)
		return err
	})
	return inserted, err
}

func (r *retrying) get(ctx context.Context, logger *slog.Logger, fp fingerprint.Fingerprint) (string, bool, error) {
	var (
		prompt string
		found  bool
	)
	err := r.do(ctx, logger, "get", func(ctx context.Context) error {
		var err error
		prompt, found, err = r.store.Get(ctx, fp)
		return err
	})
	return prompt, found, err
}

// do runs fn until it succeeds, fails permanently, or the policy gives up.
func (r *retrying) do(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	attempts := 0
	attempt := func() error {
		attempts++
		attemptCtx := ctx
		if r.policy.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
			defer cancel()
		}

		timer := r.metrics.StoreTimer(op)
		err := fn(attemptCtx)
		timer.ObserveDuration()

		switch {
		case err == nil:
			r.metrics.StoreCall(op, metrics.StoreOK)
			return nil
		case ctx.Err() != nil:
			r.metrics.StoreCall(op, metrics.StoreCanceled)
			return backoff.Permanent(err)
		case r.retryable(err):
			r.metrics.StoreCall(op, metrics.StoreRetry)
			return err
		default:
			r.metrics.StoreCall(op, metrics.StoreFailed)
			return backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("retrying store call",
			"op", op,
			"attempt", attempts,
			"wait", wait,
			"error", err)
	}

	if err := backoff.RetryNotify(attempt, r.policy.backOff(ctx), notify); err != nil {
		logger.Warn("store call failed", "op", op, "attempts", attempts, "error", err)
		return &StorageError{Op: op, Attempts: attempts, Err: err}
	}
	return nil
}

// retryable reports whether err is worth another attempt. An attempt that
// hit its own timeout is retried; the caller's deadline is checked first.
func (r *retrying) retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return r.transient(err)
}
