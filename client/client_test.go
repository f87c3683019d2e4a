package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"cocaine/codec"
	"cocaine/protocol"
)

// echoTag is a minimal reduced-shape tag: the client sends nothing
// further after invoke (Upstream void) and gets back a single value or
// error (Dispatch primitive) — the same shape InvokeReduced expects.
var echoTag = protocol.Tag{
	Name:     "echo",
	Dispatch: protocol.PrimitiveNode("echo"),
	Upstream: protocol.VoidNode("echo"),
}

// serveFakeLocator answers every resolve with endpoints/version until the
// listener is closed.
func serveFakeLocator(t *testing.T, ln net.Listener, endpoints []string, version uint32) {
	t.Helper()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				dec := codec.NewDecoder(c)
				enc := codec.NewEncoder(c)
				for {
					frame, err := dec.Decode()
					if err != nil {
						return
					}
					if err := enc.Encode(frame.Span, 0, []any{[]any{endpoints, version}}, nil); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
}

// serveFakeEchoService answers every invoke with a primitive value variant
// echoing back the invoke's own argument tuple.
func serveFakeEchoService(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				dec := codec.NewDecoder(c)
				enc := codec.NewEncoder(c)
				for {
					frame, err := dec.Decode()
					if err != nil {
						return
					}
					var args []any
					if err := codec.DecodeArgs(frame.Args, &args); err != nil {
						return
					}
					if err := enc.Encode(frame.Span, 0, []any{args}, nil); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
}

func TestServiceInvokeReducedRoundTrip(t *testing.T) {
	echoLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen echo: %v", err)
	}
	defer echoLn.Close()
	serveFakeEchoService(t, echoLn)

	locatorLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen locator: %v", err)
	}
	defer locatorLn.Close()
	serveFakeLocator(t, locatorLn, []string{echoLn.Addr().String()}, 1)

	mgr := NewManager(locatorLn.Addr().String())
	svc := mgr.Service("echo", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var result []string
	if err := svc.InvokeReduced(ctx, 0, echoTag, []string{"hello"}, &result); err != nil {
		t.Fatalf("InvokeReduced: %v", err)
	}
	if len(result) != 1 || result[0] != "hello" {
		t.Fatalf("expected echoed [\"hello\"], got %v", result)
	}
}

func TestServiceVersionMismatch(t *testing.T) {
	echoLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen echo: %v", err)
	}
	defer echoLn.Close()
	serveFakeEchoService(t, echoLn)

	locatorLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen locator: %v", err)
	}
	defer locatorLn.Close()
	serveFakeLocator(t, locatorLn, []string{echoLn.Addr().String()}, 2)

	mgr := NewManager(locatorLn.Addr().String())
	svc := mgr.Service("echo", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = svc.InvokeReduced(ctx, 0, echoTag, []string{"hello"}, nil)
	var mismatch *VersionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *VersionMismatchError, got %v", err)
	}
}

func TestServiceConnectFailsOverToSecondCandidate(t *testing.T) {
	// A candidate address nothing is listening on; Connect must skip past
	// it to the live one instead of giving up.
	deadLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen dead: %v", err)
	}
	deadAddr := deadLn.Addr().String()
	deadLn.Close()

	echoLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen echo: %v", err)
	}
	defer echoLn.Close()
	serveFakeEchoService(t, echoLn)

	locatorLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen locator: %v", err)
	}
	defer locatorLn.Close()
	// The default RoundRobinBalancer's first Order rotates the list by
	// one, so listing the live address first makes the dead one the
	// first candidate Connect tries.
	serveFakeLocator(t, locatorLn, []string{echoLn.Addr().String(), deadAddr}, 1)

	mgr := NewManager(locatorLn.Addr().String())
	svc := mgr.Service("echo", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var result []string
	if err := svc.InvokeReduced(ctx, 0, echoTag, []string{"hi"}, &result); err != nil {
		t.Fatalf("InvokeReduced: %v", err)
	}
	if len(result) != 1 || result[0] != "hi" {
		t.Fatalf("expected echoed [\"hi\"], got %v", result)
	}
}

func TestManagerSharesServiceAcrossCalls(t *testing.T) {
	mgr := NewManager("127.0.0.1:0")
	a := mgr.Service("echo", 1)
	b := mgr.Service("echo", 1)
	if a != b {
		t.Fatal("expected the same Service instance for repeated (name, version)")
	}
	c := mgr.Service("echo", 2)
	if a == c {
		t.Fatal("expected a distinct Service for a different version")
	}
}
