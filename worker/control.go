package worker

import (
	"fmt"

	"go.uber.org/zap"

	"cocaine/channel"
	"cocaine/codec"
	"cocaine/message"
	"cocaine/protocol"
)

// handleControl processes a frame on the fixed control span (1): heartbeat
// resets the disown timer, terminate tears the session down after an
// acknowledging reply.
func (s *Session) handleControl(frame *message.Frame) {
	switch frame.Type {
	case HeartbeatType:
		s.resetDisownTimer()

	case TerminateType:
		var tuple []any
		reason := ""
		if err := codec.DecodeArgs(frame.Args, &tuple); err == nil && len(tuple) > 1 {
			if r, ok := tuple[1].(string); ok {
				reason = r
			}
		}
		s.logger.Warn("worker: runtime requested termination", zap.String("reason", reason))
		s.Push(controlSpan, TerminateType, []any{}, nil)
		s.shutdown(fmt.Errorf("%w: %s", ErrTerminated, reason))

	default:
		s.logger.Warn("worker: unexpected control message", zap.Uint64("type", frame.Type))
	}
}

// dispatchInvoke handles a frame on a span the session has never seen:
// this is only ever valid as a new invoke. Its args tuple is
// (event_name, ...); a malformed tuple or missing event name is dropped
// silently, since there is no span to reply on yet.
func (s *Session) dispatchInvoke(frame *message.Frame) {
	var tuple []any
	if err := codec.DecodeArgs(frame.Args, &tuple); err != nil || len(tuple) == 0 {
		s.logger.Warn("worker: malformed invoke frame", zap.Uint64("span", frame.Span))
		return
	}
	name, _ := tuple[0].(string)
	if name == "" {
		s.logger.Warn("worker: invoke frame with empty event name", zap.Uint64("span", frame.Span))
		return
	}

	s.handlersMu.RLock()
	handler, ok := s.handlers[name]
	fallback := s.fallback
	s.handlersMu.RUnlock()
	if !ok {
		if fallback != nil {
			handler = fallback
		} else {
			s.replyEventNotFound(frame.Span, name)
			return
		}
	}

	st := s.openChannel(frame.Span)
	sender := protocol.NewSender(s, frame.Span, WorkerChannelTag.Upstream)
	receiver := protocol.NewReceiver(st, s, frame.Span, WorkerChannelTag.Dispatch)

	req := &Request{Event: name, recv: receiver}
	resp := &Response{send: sender}

	go s.runHandler(handler, name, frame.Span, req, resp)
}

func (s *Session) openChannel(span uint64) *channel.SharedState {
	st := channel.New()
	s.channelsMu.Lock()
	s.channels[span] = st
	s.channelsMu.Unlock()
	return st
}

// replyEventNotFound sends the event_not_found error variant followed by a
// choke, bypassing Sender's graph bookkeeping since no channel state was
// ever opened for this span.
func (s *Session) replyEventNotFound(span uint64, name string) {
	s.Push(span, protocol.StreamErrType, []any{EventNotFoundCode, "event '" + name + "' not found"}, nil)
	s.Push(span, protocol.ChokeType, []any{}, nil)
}
