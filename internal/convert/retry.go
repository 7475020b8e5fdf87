package convert

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds the backoff schedule external-I/O calls use when a
// ConvertError's category reports Retryable. Attempt-indexed exponential
// backoff capped at MaxBackoff, plus 0-20% random jitter on top.
//
// notionapi's *Error carries only a status code and message, never the
// raw HTTP response, so a Retry-After-aware policy (as httpclient's
// RoundTripper-level retry does, where the full *http.Response survives)
// isn't available to a BlockStore built on notionapi. Backoff is computed
// from the attempt number alone.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy mirrors the conservative defaults used for Notion API
// calls elsewhere in this ecosystem: a handful of attempts, one second
// base, thirty second ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Backoff computes the delay before attempt (1-indexed): exponential,
// capped at MaxBackoff, plus 0-20% jitter added after the cap.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = time.Second
	}
	max := p.MaxBackoff
	if max <= 0 {
		max = 30 * time.Second
	}

	backoff := float64(base) * math.Pow(2, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	jitter := rand.Float64() * backoff * 0.2
	return time.Duration(backoff + jitter)
}

// Do runs fn up to policy.MaxAttempts times, retrying only when the error
// it returns is a *ConvertError whose category reports Retryable, waiting
// the computed backoff between attempts. It aborts immediately on context
// cancellation.
func Do(ctx context.Context, policy RetryPolicy, fn func(attempt int) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CancelledOrTimeout{Stage: "retry", Cause: err}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		var convErr *ConvertError
		if !errors.As(err, &convErr) || !convErr.Category.Retryable() || attempt == maxAttempts {
			return err
		}

		wait := policy.Backoff(attempt)
		select {
		case <-ctx.Done():
			return &CancelledOrTimeout{Stage: "retry", Cause: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return lastErr
}
