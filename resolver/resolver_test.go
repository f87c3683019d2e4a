package resolver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"cocaine/codec"
)

// fakeLocator accepts one connection per resolve and replies with a
// scripted value or error, counting how many times it was invoked.
type fakeLocator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeLocator) calledTimes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLocator) serve(t *testing.T, ln net.Listener, endpoints []string, version uint32) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()

		go func(conn net.Conn) {
			defer conn.Close()
			dec := codec.NewDecoder(conn)
			enc := codec.NewEncoder(conn)

			frame, err := dec.Decode()
			if err != nil {
				return
			}
			enc.Encode(frame.Span, 0, []any{[]any{endpoints, version}}, nil)
		}(conn)
	}
}

func TestSingleShotResolve(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	locator := &fakeLocator{}
	go locator.serve(t, ln, []string{"10.0.0.1:9000"}, 1)

	r := NewSingleShotResolver()
	result, err := r.Resolve(context.Background(), ln.Addr().String(), "node")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(result.Endpoints) != 1 || result.Endpoints[0].Addr != "10.0.0.1:9000" || result.Version != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCoalescedResolverCallsUpstreamOnce(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	locator := &fakeLocator{}
	// Delay the reply so every concurrent caller is guaranteed to join
	// the same in-flight resolve rather than racing past it.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			locator.mu.Lock()
			locator.calls++
			locator.mu.Unlock()
			go func(conn net.Conn) {
				defer conn.Close()
				dec := codec.NewDecoder(conn)
				enc := codec.NewEncoder(conn)
				frame, err := dec.Decode()
				if err != nil {
					return
				}
				time.Sleep(30 * time.Millisecond)
				enc.Encode(frame.Span, 0, []any{[]any{[]string{"echo"}, uint32(1)}}, nil)
			}(conn)
		}
	}()

	r := NewCoalescedResolver(ln.Addr().String())

	const n = 10
	var wg sync.WaitGroup
	results := make([]*ResolveResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), "x")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolve %d failed: %v", i, err)
		}
		if results[i].Version != 1 || results[i].Endpoints[0].Addr != "echo" {
			t.Fatalf("resolve %d unexpected result: %+v", i, results[i])
		}
	}
	if got := locator.calledTimes(); got != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", got)
	}
}
