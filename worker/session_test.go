package worker

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"cocaine/codec"
)

// dialFakeRuntime starts a unix listener standing in for the runtime's
// local socket and returns its path plus the accepted connection's
// decoder/encoder once a worker dials in.
func dialFakeRuntime(t *testing.T) (string, func() (*codec.Decoder, *codec.Encoder, func())) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "worker.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	accept := func() (*codec.Decoder, *codec.Encoder, func()) {
		conn, err := ln.Accept()
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		return codec.NewDecoder(conn), codec.NewEncoder(conn), func() { conn.Close() }
	}
	return sock, accept
}

func TestHandshakeThenDispatch(t *testing.T) {
	sock, accept := dialFakeRuntime(t)

	s := NewSession("app", "uuid-1")
	echoed := make(chan string, 1)
	s.On("echo", func(ctx context.Context, req *Request, resp *Response) error {
		data, _, err := req.RecvChunk(ctx)
		if err != nil {
			return err
		}
		echoed <- string(data)
		return resp.Write(data)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx, sock) }()

	dec, enc, closeConn := accept()
	defer closeConn()

	frame, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode handshake: %v", err)
	}
	if frame.Span != controlSpan || frame.Type != HandshakeType {
		t.Fatalf("expected handshake on control span, got span=%d type=%d", frame.Span, frame.Type)
	}

	const invokeSpan = 2
	args, err := codec.EncodeArgs([]string{"echo"})
	if err != nil {
		t.Fatalf("encode invoke args: %v", err)
	}
	if err := enc.Encode(invokeSpan, 0, args, nil); err != nil {
		t.Fatalf("send invoke: %v", err)
	}

	chunkArgs, err := codec.EncodeArgs([][]byte{[]byte("hello")})
	if err != nil {
		t.Fatalf("encode chunk args: %v", err)
	}
	if err := enc.Encode(invokeSpan, 0, chunkArgs, nil); err != nil {
		t.Fatalf("send chunk: %v", err)
	}

	select {
	case got := <-echoed:
		if got != "hello" {
			t.Fatalf("expected echoed 'hello', got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	reply, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode reply chunk: %v", err)
	}
	if reply.Span != invokeSpan || reply.Type != 0 {
		t.Fatalf("expected chunk reply on span %d, got span=%d type=%d", invokeSpan, reply.Span, reply.Type)
	}

	choke, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode implicit choke: %v", err)
	}
	if choke.Type != 2 {
		t.Fatalf("expected implicit choke type 2, got %d", choke.Type)
	}

	cancel()
	<-runErr
}

func TestEventNotFound(t *testing.T) {
	sock, accept := dialFakeRuntime(t)

	s := NewSession("app", "uuid-2")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx, sock)

	dec, enc, closeConn := accept()
	defer closeConn()

	if _, err := dec.Decode(); err != nil {
		t.Fatalf("decode handshake: %v", err)
	}

	args, _ := codec.EncodeArgs([]string{"missing"})
	if err := enc.Encode(7, 0, args, nil); err != nil {
		t.Fatalf("send invoke: %v", err)
	}

	errFrame, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode error reply: %v", err)
	}
	if errFrame.Span != 7 || errFrame.Type != 1 {
		t.Fatalf("expected error variant on span 7, got span=%d type=%d", errFrame.Span, errFrame.Type)
	}

	chokeFrame, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode trailing choke: %v", err)
	}
	if chokeFrame.Type != 2 {
		t.Fatalf("expected trailing choke, got type %d", chokeFrame.Type)
	}
}

func TestHeartbeatResetsDisownTimer(t *testing.T) {
	sock, accept := dialFakeRuntime(t)

	s := NewSession("app", "uuid-3")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx, sock)

	dec, enc, closeConn := accept()
	defer closeConn()

	if _, err := dec.Decode(); err != nil {
		t.Fatalf("decode handshake: %v", err)
	}

	// waitTimer polls until the disown timer is armed and differs from
	// prev, returning nil if that does not happen within the deadline.
	waitTimer := func(prev *time.Timer) *time.Timer {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			s.disownMu.Lock()
			cur := s.disownTimer
			s.disownMu.Unlock()
			if cur != nil && cur != prev {
				return cur
			}
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	}

	initial := waitTimer(nil)
	if initial == nil {
		t.Fatal("expected disown timer to be armed after handshake")
	}

	if err := enc.Encode(controlSpan, HeartbeatType, []any{}, nil); err != nil {
		t.Fatalf("send heartbeat: %v", err)
	}

	if rearmed := waitTimer(initial); rearmed == nil {
		t.Fatal("expected heartbeat to re-arm the disown timer")
	}
}
