// Package worker implements the worker side of a session: the runtime
// spawns a worker process with an application name,
// a UUID, a local-socket endpoint, and locator endpoint(s). The worker
// connects to the local endpoint, performs a handshake on the control
// channel (span 1), and dispatches invoke frames arriving on any other
// span to registered event handlers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"cocaine/channel"
	"cocaine/codec"
	"cocaine/message"
	"cocaine/middleware"
	"cocaine/protocol"
)

// Control channel message type IDs (span 1). Numbering is local to this
// package, same as every other protocol tag's table.
const (
	HandshakeType uint64 = 0
	HeartbeatType uint64 = 1
	TerminateType uint64 = 2
)

const (
	controlSpan      uint64 = 1
	heartbeatPeriod         = 10 * time.Second
	disownTimeout           = 60 * time.Second
	// EventNotFoundCode is the node-service error id carried on an
	// invoke for an unregistered event with no fallback.
	EventNotFoundCode int32 = 1
)

// WorkerChannelTag is the generic per-invocation graph: the worker
// receives an unbounded run of request chunks and sends an unbounded run
// of response chunks, each terminated by choke or error. The worker
// sender contract and the HTTP event both specialize this same
// streaming shape.
var WorkerChannelTag = protocol.Tag{
	Name:     "worker-channel",
	Dispatch: protocol.StreamingNode("worker.request"),
	Upstream: protocol.StreamingNode("worker.response"),
}

// DisownedError is delivered to every live channel, and returned from
// Run, when the disown timer fires with no intervening heartbeat.
type DisownedError struct {
	Timeout time.Duration
}

func (e *DisownedError) Error() string {
	return fmt.Sprintf("worker: disowned after %s with no heartbeat", e.Timeout)
}

// ErrTerminated is the base of the error Run returns after the runtime
// sends a control-channel terminate.
var ErrTerminated = errors.New("worker: terminated by runtime")

// HandlerFunc processes one dispatched invocation. It communicates its
// result by writing through resp, not by a return value — a returned
// error only tells the session the handler itself failed (logged, and
// treated as an implicit close if resp was never explicitly closed or
// errored).
type HandlerFunc func(ctx context.Context, req *Request, resp *Response) error

// Session is a worker's connection to the runtime's local socket.
type Session struct {
	app    string
	uuid   string
	logger *zap.Logger

	executor chan struct{}

	writeMu sync.Mutex
	conn    net.Conn
	enc     *codec.Encoder

	channelsMu sync.Mutex
	channels   map[uint64]*channel.SharedState

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc
	fallback   HandlerFunc

	middlewareMu sync.Mutex
	middlewares  []middleware.Middleware

	disownMu    sync.Mutex
	disownTimer *time.Timer

	done    chan struct{}
	exitErr error
	once    sync.Once
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithExecutorSize sets how many handlers may run concurrently; default 1
// (a single-threaded executor), raised when a handler needs real
// parallelism across invocations.
func WithExecutorSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.executor = make(chan struct{}, n)
		}
	}
}

// NewSession returns a worker Session for app/uuid, not yet connected.
func NewSession(app, uuid string, opts ...Option) *Session {
	s := &Session{
		app:      app,
		uuid:     uuid,
		logger:   zap.NewNop(),
		executor: make(chan struct{}, 1),
		channels: make(map[uint64]*channel.SharedState),
		handlers: make(map[string]HandlerFunc),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// On registers h for event name. A later call with the same name
// replaces the previous handler.
func (s *Session) On(name string, h HandlerFunc) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[name] = h
}

// Fallback registers the handler used for an invoke whose event name has
// no dedicated registration.
func (s *Session) Fallback(h HandlerFunc) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.fallback = h
}

// Use appends mw to the dispatch chain every handler runs through.
func (s *Session) Use(mw middleware.Middleware) {
	s.middlewareMu.Lock()
	defer s.middlewareMu.Unlock()
	s.middlewares = append(s.middlewares, mw)
}

// Push writes one more frame on an already-open span; it also backs the
// control channel's own writes on span 1. Satisfies protocol.Pusher.
func (s *Session) Push(span, typ uint64, args any, header []message.HeaderEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.enc == nil {
		return errors.New("worker: not connected")
	}
	return s.enc.Encode(span, typ, args, header)
}

// Revoke drops span's channel state. Satisfies protocol.Revoker.
func (s *Session) Revoke(span uint64) {
	s.channelsMu.Lock()
	delete(s.channels, span)
	s.channelsMu.Unlock()
}

// Run dials endpoint (a local stream socket), performs
// the handshake, arms the disown timer and heartbeat loop, and blocks
// until the session ends — by a transport failure, a received
// terminate, the disown timer firing, or ctx being cancelled. It always
// returns a non-nil error describing why the session ended.
func (s *Session) Run(ctx context.Context, endpoint string) error {
	conn, err := net.Dial("unix", endpoint)
	if err != nil {
		return fmt.Errorf("worker: connect to runtime: %w", err)
	}

	s.writeMu.Lock()
	s.conn = conn
	s.enc = codec.NewEncoder(conn)
	s.writeMu.Unlock()

	go s.readLoop(conn)

	if err := s.Push(controlSpan, HandshakeType, []string{s.uuid}, nil); err != nil {
		s.shutdown(fmt.Errorf("worker: handshake: %w", err))
		return s.exitErr
	}

	s.resetDisownTimer()
	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go s.heartbeatLoop(heartbeatCtx)

	select {
	case <-s.done:
	case <-ctx.Done():
		s.shutdown(ctx.Err())
	}
	return s.exitErr
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Push(controlSpan, HeartbeatType, []any{}, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) readLoop(conn net.Conn) {
	dec := codec.NewDecoder(conn)
	for {
		frame, err := dec.Decode()
		if err != nil {
			s.shutdown(fmt.Errorf("worker: transport: %w", err))
			return
		}

		if frame.Span == 0 {
			continue
		}
		if frame.Span == controlSpan {
			s.handleControl(frame)
			continue
		}

		s.channelsMu.Lock()
		st, ok := s.channels[frame.Span]
		s.channelsMu.Unlock()
		if ok {
			st.Put(frame)
			continue
		}

		s.dispatchInvoke(frame)
	}
}

// resetDisownTimer (re)arms the disown timer: armed once on connect,
// re-armed on every inbound heartbeat.
func (s *Session) resetDisownTimer() {
	s.disownMu.Lock()
	defer s.disownMu.Unlock()
	if s.disownTimer != nil {
		s.disownTimer.Stop()
	}
	s.disownTimer = time.AfterFunc(disownTimeout, s.onDisowned)
}

func (s *Session) onDisowned() {
	s.shutdown(&DisownedError{Timeout: disownTimeout})
}

// shutdown broadcasts err to every live channel, tears down the
// transport, and unblocks Run exactly once.
func (s *Session) shutdown(err error) {
	s.once.Do(func() {
		s.channelsMu.Lock()
		chans := s.channels
		s.channels = make(map[uint64]*channel.SharedState)
		s.channelsMu.Unlock()

		for _, st := range chans {
			st.PutError(err)
		}

		s.disownMu.Lock()
		if s.disownTimer != nil {
			s.disownTimer.Stop()
		}
		s.disownMu.Unlock()

		s.writeMu.Lock()
		conn := s.conn
		s.conn = nil
		s.enc = nil
		s.writeMu.Unlock()
		if conn != nil {
			conn.Close()
		}

		s.exitErr = err
		close(s.done)
		s.logger.Warn("worker session ended", zap.Error(err))
	})
}
