// Package session implements the basic multiplexed session: one TCP
// connection carrying many channels, each identified by a span.
//
// A Session demultiplexes incoming frames into per-span channel.SharedState
// queues (a single read-loop goroutine owns the connection's read side) and
// serializes outgoing frames so that the span assigned to a newly invoked
// channel, and that channel's first frame, land on the wire atomically and
// in submission order — a single sending mutex gates both span assignment
// and the write itself.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cocaine/channel"
	"cocaine/codec"
	"cocaine/message"
)

// State is the session's connection lifecycle.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by Connect when another goroutine's
	// connect attempt is already in flight.
	ErrAlreadyStarted = errors.New("session: connect already in progress")
	// ErrAlreadyConnected is returned by Connect on an already-connected session.
	ErrAlreadyConnected = errors.New("session: already connected")
	// ErrNotConnected is returned by Push/Invoke when there is no live transport.
	ErrNotConnected = errors.New("session: not connected")
)

// TransportError wraps an I/O or decode failure that tore down the session.
// Every channel live at the time is completed with the same wrapped error
// (spec §8: "∀ sessions S and error E injected into S: every outstanding
// future tied to S completes with E exactly once").
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("session: transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Session owns at most one live connection and demultiplexes it into
// per-span channels.
type Session struct {
	logger *zap.Logger

	state atomic.Int32
	conn  net.Conn // guarded by writeMu once installed

	writeMu sync.Mutex
	enc     *codec.Encoder
	counter uint64 // next span to assign; guarded by writeMu

	channelsMu sync.Mutex
	channels   map[uint64]*channel.SharedState

	closed atomic.Bool
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New returns a disconnected Session.
func New(opts ...Option) *Session {
	s := &Session{
		logger:   zap.NewNop(),
		channels: make(map[uint64]*channel.SharedState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Connect dials candidates in order until one succeeds, per spec §4.C.
// Concurrent callers observe ErrAlreadyStarted or ErrAlreadyConnected
// rather than waiting on the winner's outcome; only the caller that wins
// the Disconnected→Connecting transition actually dials.
func (s *Session) Connect(ctx context.Context, candidates []string) error {
	if !s.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
		switch State(s.state.Load()) {
		case Connecting:
			return ErrAlreadyStarted
		case Connected:
			return ErrAlreadyConnected
		}
	}

	var dialer net.Dialer
	var lastErr error
	for _, addr := range candidates {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}

		s.writeMu.Lock()
		s.conn = conn
		s.enc = codec.NewEncoder(conn)
		s.writeMu.Unlock()

		s.state.Store(int32(Connected))
		go s.readLoop(conn)
		s.logger.Debug("session connected", zap.String("addr", addr))
		return nil
	}

	s.state.Store(int32(Disconnected))
	if lastErr == nil {
		lastErr = errors.New("no candidate endpoints")
	}
	return fmt.Errorf("session: connect failed: %w", lastErr)
}

func (s *Session) readLoop(conn net.Conn) {
	dec := codec.NewDecoder(conn)
	for {
		frame, err := dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.fail(&TransportError{Err: io.EOF})
			} else {
				s.fail(&TransportError{Err: err})
			}
			return
		}

		if frame.Span == 0 {
			continue // reserved, always dropped
		}

		s.channelsMu.Lock()
		st, ok := s.channels[frame.Span]
		s.channelsMu.Unlock()

		if !ok {
			s.logger.Debug("dropping orphan frame", zap.Uint64("span", frame.Span))
			continue
		}
		st.Put(frame)
	}
}

// fail tears the session down: every live channel observes err exactly
// once, then the transport is dropped and the state resets to Disconnected.
func (s *Session) fail(err error) {
	s.channelsMu.Lock()
	chans := s.channels
	s.channels = make(map[uint64]*channel.SharedState)
	s.channelsMu.Unlock()

	for _, st := range chans {
		st.PutError(err)
	}

	s.writeMu.Lock()
	conn := s.conn
	s.conn = nil
	s.enc = nil
	s.writeMu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.state.Store(int32(Disconnected))
	s.logger.Warn("session failed", zap.Error(err))
}

// Invoke allocates the next span, installs its channel.SharedState, and
// writes the first outbound frame, all under the same write lock so the
// span and its first frame hit the wire atomically with respect to any
// other Invoke or Push. encodeArgs is called with the lock held — it must
// not block.
func (s *Session) Invoke(eventType uint64, encodeArgs func() (any, error)) (*channel.SharedState, uint64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return nil, 0, ErrNotConnected
	}

	args, err := encodeArgs()
	if err != nil {
		return nil, 0, err
	}

	span := s.counter + 1

	if err := s.enc.Encode(span, eventType, args, nil); err != nil {
		return nil, 0, &TransportError{Err: err}
	}
	s.counter = span

	st := channel.New()
	s.channelsMu.Lock()
	s.channels[span] = st
	s.channelsMu.Unlock()

	return st, span, nil
}

// Push writes a subsequent frame on an already-invoked span.
func (s *Session) Push(span, typ uint64, args any, header []message.HeaderEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.enc.Encode(span, typ, args, header); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

// Revoke removes span's channel state. If the session is closed and no
// channels remain, the transport is dropped. Revoke and Cancel are the
// only paths besides an I/O failure that can close a live socket.
func (s *Session) Revoke(span uint64) {
	s.channelsMu.Lock()
	delete(s.channels, span)
	empty := len(s.channels) == 0
	s.channelsMu.Unlock()

	if s.closed.Load() && empty {
		s.dropTransport()
	}
}

// Cancel marks the session closed. If no channels are registered the
// transport is dropped immediately; otherwise Cancel waits for their
// natural revocation to do it.
func (s *Session) Cancel() {
	s.closed.Store(true)

	s.channelsMu.Lock()
	empty := len(s.channels) == 0
	s.channelsMu.Unlock()

	if empty {
		s.dropTransport()
	}
}

func (s *Session) dropTransport() {
	s.writeMu.Lock()
	conn := s.conn
	s.conn = nil
	s.enc = nil
	s.writeMu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.state.Store(int32(Disconnected))
}
