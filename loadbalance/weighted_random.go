package loadbalance

import (
	"fmt"
	"math/rand"
)

// WeightedRandomBalancer moves one endpoint to the front, chosen
// probabilistically by weight, and leaves the rest in their original
// relative order as fallback candidates. An endpoint with weight 10 is
// roughly 2x as likely to lead as one with weight 5.
//
// Best for: heterogeneous endpoints (e.g. some instances have more
// CPU/memory).
//
// Algorithm:
//  1. Sum all weights → totalWeight (zero/unset weight treated as 1)
//  2. Generate random number r in [0, totalWeight)
//  3. Subtract each endpoint's weight from r until r < 0
//  4. The endpoint that makes r negative leads; the rest follow in order
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Order(endpoints []Endpoint) ([]Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("loadbalance: no endpoints available")
	}

	totalWeight := 0
	for _, e := range endpoints {
		totalWeight += weightOf(e)
	}

	r := rand.Intn(totalWeight)
	lead := 0
	for i, e := range endpoints {
		r -= weightOf(e)
		if r < 0 {
			lead = i
			break
		}
	}

	ordered := make([]Endpoint, 0, len(endpoints))
	ordered = append(ordered, endpoints[lead])
	for i, e := range endpoints {
		if i != lead {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

func weightOf(e Endpoint) int {
	if e.Weight <= 0 {
		return 1
	}
	return e.Weight
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
