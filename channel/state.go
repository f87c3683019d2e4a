// Package channel implements the per-span shared state that a basic
// session demultiplexes incoming frames into.
//
// Each live channel on a session owns exactly one SharedState. The
// session's single read-loop goroutine Puts decoded frames into it; an
// arbitrary number of task goroutines call Get, but only one at a time —
// ownership of the receiver enforces that invariant, the same way the
// teacher's ClientTransport hands each request exactly one response
// channel via its pending sync.Map.
package channel

import (
	"context"
	"errors"
	"sync"

	"cocaine/message"
)

// ErrAlreadyWaiting is returned by Get when another goroutine already has
// an outstanding Get on this state. The contract (spec §4.B) allows at
// most one waiter at a time; callers that need concurrent consumption must
// not share a receiver across goroutines.
var ErrAlreadyWaiting = errors.New("channel: a Get is already in flight")

// SharedState is a thread-safe FIFO of decoded frames for a single span,
// with a slot for at most one pending waiter and at most one terminal
// error. Once a terminal error is set, every past and future Get observes
// it.
type SharedState struct {
	mu      sync.Mutex
	queue   []*message.Frame
	err     error
	waiting chan getResult
}

type getResult struct {
	frame *message.Frame
	err   error
}

// New returns an empty SharedState.
func New() *SharedState {
	return &SharedState{}
}

// Put enqueues a decoded frame, or — if a Get is currently waiting —
// delivers it directly to that waiter. Called from the session's read
// loop only; never blocks.
func (s *SharedState) Put(frame *message.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		// Terminal error already observed; further frames for this span
		// are dropped, matching the session's orphan-frame policy.
		return
	}
	if s.waiting != nil {
		ch := s.waiting
		s.waiting = nil
		ch <- getResult{frame: frame}
		return
	}
	s.queue = append(s.queue, frame)
}

// PutError marks the state terminal: every already-waiting and every
// future Get observes err. Only the first PutError call has effect, per
// the "at most one terminal error" invariant.
func (s *SharedState) PutError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return
	}
	s.err = err
	if s.waiting != nil {
		ch := s.waiting
		s.waiting = nil
		ch <- getResult{err: err}
	}
}

// Get returns the next frame, blocking until one arrives, the state
// becomes terminal, or ctx is done. If the queue is non-empty it returns
// immediately with the head frame; if terminal, it returns the stored
// error immediately; otherwise it registers the single waiter slot.
func (s *SharedState) Get(ctx context.Context) (*message.Frame, error) {
	s.mu.Lock()

	if len(s.queue) > 0 {
		frame := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return frame, nil
	}
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return nil, err
	}
	if s.waiting != nil {
		s.mu.Unlock()
		return nil, ErrAlreadyWaiting
	}

	ch := make(chan getResult, 1)
	s.waiting = ch
	s.mu.Unlock()

	select {
	case res := <-ch:
		return res.frame, res.err
	case <-ctx.Done():
		s.mu.Lock()
		if s.waiting == ch {
			s.waiting = nil
		}
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}
