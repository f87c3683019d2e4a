package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
)

// ConsistentHashBalancer maps a caller-supplied key to an endpoint using
// a hash ring, then leads the ordering with that endpoint — same key
// always leads to the same endpoint (until the ring changes), giving
// cache affinity for stateful calls.
//
// Virtual nodes: each real endpoint maps to N virtual nodes on the ring.
// Without virtual nodes, a handful of endpoints can cluster together on
// the ring, causing uneven load distribution; 100 virtual nodes per
// endpoint gives statistical uniformity.
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32
	nodes    map[uint32]Endpoint
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes
// per endpoint.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]Endpoint),
	}
}

// Add places an endpoint onto the hash ring with N virtual nodes. Each
// virtual node is hashed from "{addr}#{i}" to spread evenly across the
// ring.
func (b *ConsistentHashBalancer) Add(e Endpoint) {
	for i := 0; i < b.replicas; i++ {
		key := fmt.Sprintf("%s#%d", e.Addr, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = e
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// OrderFor hashes key and leads the returned ordering with the endpoint
// responsible for it on the ring; the rest follow in their original
// order from endpoints, so a
// failed connect to the leader still has fallbacks. It is not part of
// the Balancer interface because consistent hashing is key-based, not
// purely a function of the endpoint list.
func (b *ConsistentHashBalancer) OrderFor(key string, endpoints []Endpoint) ([]Endpoint, error) {
	if len(b.ring) == 0 || len(endpoints) == 0 {
		return nil, fmt.Errorf("loadbalance: no endpoints available")
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	lead := b.nodes[b.ring[idx]]

	ordered := make([]Endpoint, 0, len(endpoints))
	ordered = append(ordered, lead)
	for _, e := range endpoints {
		if e.Addr != lead.Addr {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
