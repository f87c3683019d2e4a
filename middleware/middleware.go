// Package middleware implements the onion-model chain used to wrap a
// worker's dispatched event handlers with cross-cutting concerns
// (logging, rate limiting, per-invocation timeout) without modifying the
// handler itself.
//
// Onion model execution order:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//
//	Request:   A.before → B.before → C.before → handler
//	Response:  handler → C.after → B.after → A.after
//
// Each middleware can:
//   - Do pre-processing (before calling next)
//   - Call next(ctx, inv) to pass to the next layer
//   - Do post-processing (after next returns)
//   - Short-circuit by returning early without calling next (e.g., rate limiting)
package middleware

import "context"

// Invocation is the handler-agnostic view of one dispatched event a
// middleware needs: enough to log or rate-limit by, without exposing the
// live Sender/Receiver pair the handler itself uses to talk back to the
// peer.
type Invocation struct {
	Event string
	Span  uint64
}

// HandlerFunc is the signature every worker event handler and every
// middleware-wrapped handler share. A handler communicates its result by
// writing through its own Sender, not through a return value — this
// chain only decides whether/when the handler runs and observes whether
// it errored.
type HandlerFunc func(ctx context.Context, inv *Invocation) error

// Middleware takes a handler and returns a new handler wrapping it — the
// decorator pattern, one layer per cross-cutting concern.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middlewares into one. It builds the chain
// from right to left so the first middleware in the list is the
// outermost layer (executed first on the way in, last on the way out).
//
// Example:
//
//	chain := Chain(Logging, Timeout, RateLimit)
//	handler := chain(businessHandler)
//	// Execution: Logging → Timeout → RateLimit → businessHandler → RateLimit → Timeout → Logging
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
