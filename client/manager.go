package client

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"cocaine/loadbalance"
	"cocaine/registry"
	"cocaine/resolver"
)

// Manager is the application-facing entry point: it owns the coalesced
// resolver bound to one locator address and hands out one shared
// Service per (name, version) pair — discover once, share a connection
// thereafter, keyed by service name instead of by address.
type Manager struct {
	resolver *resolver.CoalescedResolver
	balancer loadbalance.Balancer
	logger   *zap.Logger

	mu       sync.Mutex
	services map[string]*Service
}

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

// WithManagerBalancer sets the balancer every Service the Manager
// creates is constructed with; default is round-robin.
func WithManagerBalancer(b loadbalance.Balancer) ManagerOption {
	return func(m *Manager) { m.balancer = b }
}

// WithManagerLogger attaches a structured logger; defaults to a no-op
// logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager resolving through the locator at
// locatorAddr. NewManagerFromSource picks that address from a
// registry.LocatorSource instead.
func NewManager(locatorAddr string, opts ...ManagerOption) *Manager {
	m := &Manager{
		resolver: resolver.NewCoalescedResolver(locatorAddr),
		balancer: &loadbalance.RoundRobinBalancer{},
		logger:   zap.NewNop(),
		services: make(map[string]*Service),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerFromSource dials whichever locator source.Get returns first;
// it falls back to registry.DefaultLocatorEndpoint when source yields no
// endpoints.
func NewManagerFromSource(source registry.LocatorSource, opts ...ManagerOption) (*Manager, error) {
	addr := registry.DefaultLocatorEndpoint
	if source != nil {
		endpoints, err := source.Get(context.Background())
		if err != nil {
			return nil, err
		}
		if len(endpoints) > 0 {
			addr = endpoints[0]
		}
	}
	return NewManager(addr, opts...), nil
}

// Service returns the shared Service for (name, version), creating and
// caching one on first use. Concurrent calls for the same name share
// the same Service and therefore the same underlying session.
func (m *Manager) Service(name string, version uint32) *Service {
	key := serviceKey(name, version)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.services[key]; ok {
		return s
	}
	s := NewService(name, version, m.resolver, WithBalancer(m.balancer), WithLogger(m.logger))
	m.services[key] = s
	return s
}

func serviceKey(name string, version uint32) string {
	return name + "@" + itoa(version)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
