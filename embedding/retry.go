package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alDuncanson/dupescope/logging"
)

// ErrRetriesExhausted marks a request that kept failing with retryable
// errors until the attempt budget ran out.
var ErrRetriesExhausted = errors.New("embedding retries exhausted")

// RetryError is the terminal failure of a retried request. It matches both
// ErrRetriesExhausted and the last underlying error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("embedding failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error { return []error{ErrRetriesExhausted, e.Err} }

// RetryPolicy bounds retries. Delays grow exponentially from InitialBackoff
// up to MaxBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy allows four attempts starting at half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// Retrying wraps an Embedder with bounded exponential backoff.
type Retrying struct {
	inner  Embedder
	policy RetryPolicy
	logger *logging.Logger
}

// NewRetrying wraps inner. logger may be nil.
func NewRetrying(inner Embedder, policy RetryPolicy, logger *logging.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrying{inner: inner, policy: policy, logger: logger}
}

func (r *Retrying) newBackOff(ctx context.Context) backoff.BackOffContext {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.policy.InitialBackoff
	policy.MaxInterval = r.policy.MaxBackoff
	policy.MaxElapsedTime = 0
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0.1
	return backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.policy.MaxAttempts-1)), ctx)
}

// Embed calls the wrapped embedder until it succeeds, fails permanently or
// the attempt budget is spent. Only the last case returns a *RetryError.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	var (
		vector    []float32
		attempts  int
		permanent bool
	)

	operation := func() error {
		attempts++
		v, err := r.inner.Embed(ctx, text)
		if err == nil {
			vector = v
			return nil
		}
		if !IsRetryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn("Embedding request failed (attempt %d/%d), retrying in %s: %v",
			attempts, r.policy.MaxAttempts, wait.Round(time.Millisecond), err)
	}

	err := backoff.RetryNotify(operation, r.newBackOff(ctx), notify)
	switch {
	case err == nil:
		return vector, nil
	case permanent:
		return nil, err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, &RetryError{Attempts: attempts, Err: err}
	}
}

// IsRetryable classifies errors from an Embedder. Server-side and transport
// failures are retryable; client errors, missing credentials and
// cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var requestErr *RequestError
	if errors.As(err, &requestErr) {
		return requestErr.Retryable()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
