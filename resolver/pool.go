package resolver

import (
	"context"

	"cocaine/session"
)

// SessionPool keeps a small number of warm locator sessions so repeated
// resolves don't pay a fresh dial-and-handshake every time: a buffered
// channel acts as the queue — Get borrows (dialing a replacement only
// when the pool is empty), Put returns a still-healthy session to the
// back of the queue and otherwise discards it.
type SessionPool struct {
	addr string
	idle chan *session.Session
}

// NewSessionPool returns a pool for addr holding up to size idle
// sessions (default 2).
func NewSessionPool(addr string, size int) *SessionPool {
	if size <= 0 {
		size = 2
	}
	return &SessionPool{addr: addr, idle: make(chan *session.Session, size)}
}

// Get returns an idle session if one is available and still connected,
// or dials a fresh one against addr.
func (p *SessionPool) Get(ctx context.Context) (*session.Session, error) {
	for {
		select {
		case s := <-p.idle:
			if s.State() == session.Connected {
				return s, nil
			}
			// Dead session pulled off the queue; try the next one, or
			// fall through to dialing fresh if the queue is now empty.
			continue
		default:
			s := session.New()
			if err := s.Connect(ctx, []string{p.addr}); err != nil {
				return nil, err
			}
			return s, nil
		}
	}
}

// Put returns s to the pool if it is still connected and there is room;
// otherwise s is torn down.
func (p *SessionPool) Put(s *session.Session) {
	if s.State() != session.Connected {
		return
	}
	select {
	case p.idle <- s:
	default:
		s.Cancel()
	}
}

// Resolve borrows a pooled session, issues resolve(name) on it, and
// returns it to the pool — the pooled counterpart to
// SingleShotResolver.Resolve.
func (p *SessionPool) Resolve(ctx context.Context, name string) (*ResolveResult, error) {
	s, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}
	result, err := resolveOn(ctx, s, name)
	p.Put(s)
	return result, err
}
