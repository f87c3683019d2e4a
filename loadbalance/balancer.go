// Package loadbalance orders the endpoint set a resolve returns before
// session.Connect walks it left-to-right, so "try candidates in order"
// still spreads load across a multi-endpoint service instead of always
// hammering the first entry.
//
// Three strategies are implemented:
//   - RoundRobin:      stateless services, equal-capacity endpoints
//   - WeightedRandom:  heterogeneous endpoints (different CPU/memory)
//   - ConsistentHash:  affinity-sensitive calls keyed by something
//     other than the endpoint list itself (e.g. a request key)
package loadbalance

// Endpoint is one candidate address with an optional weight; a resolve
// result supplies only addresses, so Weight defaults to 1 unless a
// caller sets it explicitly.
type Endpoint struct {
	Addr   string
	Weight int
}

// Balancer orders a resolved endpoint list before session.Connect
// attempts it. Order returns the whole list reordered, not a single
// choice, since Connect itself walks candidates until one succeeds —
// the balancer's job is priority, not elimination.
type Balancer interface {
	// Order returns endpoints reordered by the strategy. Called before
	// every connect attempt — must be goroutine-safe.
	Order(endpoints []Endpoint) ([]Endpoint, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
