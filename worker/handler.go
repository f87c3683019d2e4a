package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"cocaine/middleware"
	"cocaine/protocol"
)

// ErrResponseClosed is returned by a Response method called after Close
// or Error has already run.
var ErrResponseClosed = errors.New("worker: response already closed")

// Request is the receiving half of a dispatched invocation: the event
// name the invoke carried, and a receiver for any chunks the peer
// streams afterward.
type Request struct {
	Event string
	recv  *protocol.Receiver
}

// RecvChunk reads the next request chunk, per the same (data, more,
// error) shape as protocol.Receiver.RecvChunk.
func (r *Request) RecvChunk(ctx context.Context) ([]byte, bool, error) {
	return r.recv.RecvChunk(ctx)
}

// Response is the sending half of a dispatched invocation: the worker
// sender contract — write(bytes), error(code, reason), close() — mapped
// onto chunk/error/choke frames.
type Response struct {
	mu   sync.Mutex
	send *protocol.Sender
	done bool
}

// Write emits one response chunk.
func (r *Response) Write(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return ErrResponseClosed
	}
	next, err := r.send.Chunk(data)
	if err != nil {
		return err
	}
	r.send = next
	return nil
}

// Error terminates the response with an error variant; no further
// chunks or a Close may follow.
func (r *Response) Error(code int32, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return ErrResponseClosed
	}
	r.done = true
	return r.send.Error(code, reason)
}

// Close terminates the response with a choke. Calling Close more than
// once, or after Error, is a no-op.
func (r *Response) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	r.done = true
	return r.send.Choke()
}

// closeIfOpen implements the implicit-choke half of the worker sender
// contract: a handler that returns without writing a terminal frame has
// its response closed for it.
func (r *Response) closeIfOpen() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if !done {
		r.Close()
	}
}

// runHandler executes h under the dispatch middleware chain, on the
// session's executor (bounding concurrent handlers to its configured
// size), and closes resp implicitly if h returns without doing so
// itself.
func (s *Session) runHandler(h HandlerFunc, event string, span uint64, req *Request, resp *Response) {
	s.executor <- struct{}{}
	defer func() { <-s.executor }()
	defer resp.closeIfOpen()

	s.middlewareMu.Lock()
	chain := middleware.Chain(s.middlewares...)
	s.middlewareMu.Unlock()

	wrapped := chain(func(ctx context.Context, inv *middleware.Invocation) error {
		return h(ctx, req, resp)
	})

	if err := wrapped(context.Background(), &middleware.Invocation{Event: event, Span: span}); err != nil {
		s.logger.Warn("worker: handler returned an error",
			zap.String("event", event), zap.Uint64("span", span), zap.Error(err))
	}
}
