// Package resolver implements the locator round-trip: a single-shot
// resolve over a short-lived session, and a coalesced resolver that
// collapses concurrent resolves for the same name into one upstream
// call.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cocaine/codec"
	"cocaine/protocol"
	"cocaine/session"
)

// ResolveEventType is the locator's sole method exercised by this
// module: resolve(name). Real locator services enumerate more methods
// (refresh, connect, ...); only resolve is in scope here.
const ResolveEventType uint64 = 0

// ServiceNotAvailableCode is the locator's dedicated error id for an
// unknown service name, mapped to ServiceNotFoundError.
const ServiceNotAvailableCode int32 = 1

// ServiceNotFoundError means the locator has no endpoints registered for
// the requested name.
type ServiceNotFoundError struct {
	Name string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("resolver: service not found: %s", e.Name)
}

// Endpoint is one resolved service address.
type Endpoint struct {
	Addr string
}

// ResolveResult is the locator's resolve value: the endpoint set and the
// protocol version the client must match against the version its Service
// was created with before connecting.
type ResolveResult struct {
	Endpoints []Endpoint
	Version   uint32
}

// SingleShotResolver wraps one short-lived session per Resolve call.
type SingleShotResolver struct {
	logger *zap.Logger
}

// Option configures a SingleShotResolver/CoalescedResolver.
type Option func(*SingleShotResolver)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *SingleShotResolver) { r.logger = l }
}

// NewSingleShotResolver returns a resolver with no coalescing.
func NewSingleShotResolver(opts ...Option) *SingleShotResolver {
	r := &SingleShotResolver{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve dials locatorAddr, invokes resolve(name), and decodes the
// resulting value or structured error.
func (r *SingleShotResolver) Resolve(ctx context.Context, locatorAddr, name string) (*ResolveResult, error) {
	sess := session.New(session.WithLogger(r.logger))
	if err := sess.Connect(ctx, []string{locatorAddr}); err != nil {
		return nil, fmt.Errorf("resolver: connect to locator: %w", err)
	}
	defer sess.Cancel()

	return resolveOn(ctx, sess, name)
}

// resolveOn invokes resolve(name) on an already-connected session,
// letting SessionPool-backed callers reuse a warm locator connection
// instead of paying SingleShotResolver's dial-per-call cost.
func resolveOn(ctx context.Context, sess *session.Session, name string) (*ResolveResult, error) {
	st, span, err := sess.Invoke(ResolveEventType, func() (any, error) {
		return codec.EncodeArgs([]string{name})
	})
	if err != nil {
		return nil, fmt.Errorf("resolver: invoke resolve: %w", err)
	}

	recv := protocol.NewReceiver(st, sess, span, protocol.LocatorTag.Dispatch)
	var tuple []any
	if err := recv.RecvValue(ctx, &tuple); err != nil {
		var respErr *protocol.ResponseError
		if errors.As(err, &respErr) && respErr.Code == ServiceNotAvailableCode {
			return nil, &ServiceNotFoundError{Name: name}
		}
		return nil, err
	}
	if len(tuple) < 2 {
		return nil, fmt.Errorf("resolver: malformed resolve response: %d elements", len(tuple))
	}

	endpoints := decodeEndpoints(tuple[0])
	version := uint32(asInt64(tuple[1]))
	return &ResolveResult{Endpoints: endpoints, Version: version}, nil
}

func decodeEndpoints(v any) []Endpoint {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	endpoints := make([]Endpoint, 0, len(items))
	for _, item := range items {
		switch addr := item.(type) {
		case string:
			endpoints = append(endpoints, Endpoint{Addr: addr})
		case []byte:
			endpoints = append(endpoints, Endpoint{Addr: string(addr)})
		}
	}
	return endpoints
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}
