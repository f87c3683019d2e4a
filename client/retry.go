package client

import (
	"context"
	"errors"
	"time"

	"cocaine/session"
)

// RetryPolicy bounds RetryInvoke's backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries a handful of times with a short exponential
// backoff, capped well under a typical request timeout.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	BaseDelay:   20 * time.Millisecond,
	MaxDelay:    500 * time.Millisecond,
}

// RetryInvoke runs op, retrying only on a *session.TransportError — a
// dead or reset connection is worth retrying against a freshly reordered
// candidate list; a decoded *protocol.ResponseError or
// *VersionMismatchError never is, since retrying would reproduce the
// same application-level outcome. Backoff is exponential from
// policy.BaseDelay, capped at policy.MaxDelay.
func RetryInvoke(ctx context.Context, policy RetryPolicy, op func() error) error {
	var lastErr error
	delay := policy.BaseDelay

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		var transportErr *session.TransportError
		if !errors.As(lastErr, &transportErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return lastErr
}
