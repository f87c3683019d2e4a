package loadbalance

import (
	"fmt"
	"sync/atomic"
)

// RoundRobinBalancer rotates the endpoint list by an atomic counter so
// each Order call starts from the next endpoint in turn. Uses an atomic
// counter for lock-free, goroutine-safe operation.
//
// Best for: stateless services where all endpoints have similar capacity.
type RoundRobinBalancer struct {
	counter int64
}

// Order rotates endpoints by the next counter value.
func (b *RoundRobinBalancer) Order(endpoints []Endpoint) ([]Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("loadbalance: no endpoints available")
	}
	start := int(atomic.AddInt64(&b.counter, 1)) % len(endpoints)
	ordered := make([]Endpoint, len(endpoints))
	for i := range endpoints {
		ordered[i] = endpoints[(start+i)%len(endpoints)]
	}
	return ordered, nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
