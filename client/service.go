// Package client implements the service-side RPC flow: resolve through
// a coalesced resolver, order the endpoint set with a load balancer,
// connect a session, and wrap the raw (sender, receiver) pair a
// channel's Invoke produces into the event's typed protocol tag.
package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"cocaine/loadbalance"
	"cocaine/protocol"
	"cocaine/resolver"
	"cocaine/session"
)

// VersionMismatchError means the locator's resolve returned a protocol
// version different from the one the Service was created with.
type VersionMismatchError struct {
	Name string
	Want uint32
	Got  uint32
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("client: version mismatch for %q: want %d, got %d", e.Name, e.Want, e.Got)
}

// Service holds (name, version, coalesced resolver, balancer, logger,
// session).
type Service struct {
	name     string
	version  uint32
	resolver *resolver.CoalescedResolver
	balancer loadbalance.Balancer
	logger   *zap.Logger

	mu   sync.Mutex
	sess *session.Session
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithBalancer sets the candidate-ordering strategy; default is
// round-robin.
func WithBalancer(b loadbalance.Balancer) Option {
	return func(s *Service) { s.balancer = b }
}

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service for name at version, resolved through r.
func NewService(name string, version uint32, r *resolver.CoalescedResolver, opts ...Option) *Service {
	s := &Service{
		name:     name,
		version:  version,
		resolver: r,
		balancer: &loadbalance.RoundRobinBalancer{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect is idempotent and safe to call concurrently: if the session is
// already connected it returns immediately, otherwise it resolves the
// name, checks the returned version against the Service's own version
// (a Tag's Version field is not consulted), orders the endpoint set, and
// connects.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil && s.sess.State() == session.Connected {
		return nil
	}

	result, err := s.resolver.Resolve(ctx, s.name)
	if err != nil {
		return err
	}
	if result.Version != s.version {
		return &VersionMismatchError{Name: s.name, Want: s.version, Got: result.Version}
	}

	endpoints := make([]loadbalance.Endpoint, len(result.Endpoints))
	for i, e := range result.Endpoints {
		endpoints[i] = loadbalance.Endpoint{Addr: e.Addr, Weight: 1}
	}
	ordered, err := s.balancer.Order(endpoints)
	if err != nil {
		return err
	}
	candidates := make([]string, len(ordered))
	for i, e := range ordered {
		candidates[i] = e.Addr
	}

	sess := session.New(session.WithLogger(s.logger))
	if sessErr := sess.Connect(ctx, candidates); sessErr != nil {
		return sessErr
	}
	s.sess = sess
	return nil
}

// Invoke pipelines Connect (a no-op if already connected), the
// session's span-allocating Invoke, and wrapping the raw channel state
// into tag's typed Sender/Receiver pair.
func (s *Service) Invoke(ctx context.Context, eventType uint64, tag protocol.Tag, encodeArgs func() (any, error)) (*protocol.Sender, *protocol.Receiver, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()

	st, span, err := sess.Invoke(eventType, encodeArgs)
	if err != nil {
		return nil, nil, err
	}

	sender := protocol.NewSender(sess, span, tag.Upstream)
	receiver := protocol.NewReceiver(st, sess, span, tag.Dispatch)
	return sender, receiver, nil
}

// InvokeReduced covers events whose Upstream graph is void (nothing
// left to send) and whose Dispatch graph is primitive (a single value
// or error): it performs the one necessary recv and unwraps the result
// into out directly instead of handing back a Sender/Receiver pair.
func (s *Service) InvokeReduced(ctx context.Context, eventType uint64, tag protocol.Tag, args any, out any) error {
	_, receiver, err := s.Invoke(ctx, eventType, tag, func() (any, error) { return args, nil })
	if err != nil {
		return err
	}
	return receiver.RecvValue(ctx, out)
}
