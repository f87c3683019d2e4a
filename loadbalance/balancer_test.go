package loadbalance

import (
	"fmt"
	"testing"
)

var testEndpoints = []Endpoint{
	{Addr: ":8001", Weight: 10},
	{Addr: ":8002", Weight: 5},
	{Addr: ":8003", Weight: 10},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	first, err := b.Order(testEndpoints)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Order(testEndpoints)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Addr == second[0].Addr {
		t.Fatalf("expected rotation between calls, got %s twice", first[0].Addr)
	}
	for _, e := range first {
		if e.Weight == 0 && e.Addr == "" {
			t.Fatal("unexpected zero endpoint in ordering")
		}
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	if _, err := b.Order(nil); err == nil {
		t.Fatal("expected error for empty endpoints")
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		ordered, err := b.Order(testEndpoints)
		if err != nil {
			t.Fatal(err)
		}
		counts[ordered[0].Addr]++
	}

	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio :8001/:8002 = %.2f, expect ~2.0", ratio)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()
	for _, e := range testEndpoints {
		b.Add(e)
	}

	o1, err := b.OrderFor("user-123", testEndpoints)
	if err != nil {
		t.Fatal(err)
	}
	o2, _ := b.OrderFor("user-123", testEndpoints)
	if o1[0].Addr != o2[0].Addr {
		t.Fatalf("same key led to different endpoints: %s vs %s", o1[0].Addr, o2[0].Addr)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ordered, _ := b.OrderFor(fmt.Sprintf("key-%d", i), testEndpoints)
		seen[ordered[0].Addr] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected at least 2 different leading endpoints, got %d", len(seen))
	}
}
