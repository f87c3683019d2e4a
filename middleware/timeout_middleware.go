package middleware

import (
	"context"
	"errors"
	"time"
)

// ErrInvocationTimeout is returned when a handler doesn't complete
// within its configured timeout.
var ErrInvocationTimeout = errors.New("middleware: invocation timed out")

// TimeoutMiddleware enforces a maximum duration for a dispatched
// handler. The only automatic timeout a worker session imposes on its
// own is the disown timer; a per-invocation timeout here is an optional
// ambient concern services may opt into, not a core guarantee.
//
// The handler goroutine is not cancelled when the timeout fires — it
// keeps running in the background. The timeout only controls when the
// caller gives up waiting; a handler that wants true cancellation must
// check ctx.Done() itself.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, inv *Invocation) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- next(ctx, inv)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ErrInvocationTimeout
			}
		}
	}
}
