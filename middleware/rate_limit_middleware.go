package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when an invocation is rejected for lack of
// tokens.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware throttles dispatched invocations with a token
// bucket: tokens refill at r per second up to burst, each invocation
// consumes one, and an empty bucket rejects immediately rather than
// queuing — more suitable for a worker's bursty invoke traffic than a
// constant-drain leaky bucket.
//
// The limiter is created in the outer closure (once per middleware
// construction), not inside the returned handler — creating it per
// invocation would hand every invocation a fresh full bucket, defeating
// rate limiting entirely.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, inv *Invocation) error {
			if !limiter.Allow() {
				return ErrRateLimited
			}
			return next(ctx, inv)
		}
	}
}
