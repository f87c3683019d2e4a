package protocol

import (
	"fmt"

	"cocaine/message"
)

// Pusher is the subset of session.Session a Sender needs: write one more
// frame on an already-open span. Both session.Session and worker.Session
// satisfy it, so the graph-walking logic here is shared by both the
// client and worker sides of a channel.
type Pusher interface {
	Push(span, typ uint64, args any, header []message.HeaderEntry) error
}

// Sender is a move-only handle to one node of a channel's outgoing
// graph. Send consumes it and, unless the transition is terminal,
// returns the Sender for the successor node — callers must not reuse a
// Sender after calling Send on it.
type Sender struct {
	pusher Pusher
	span   uint64
	node   *Node
	header []message.HeaderEntry
}

// NewSender returns a Sender positioned at node for span, writing
// through pusher.
func NewSender(pusher Pusher, span uint64, node *Node) *Sender {
	return &Sender{pusher: pusher, span: span, node: node}
}

// WithHeader attaches header to this Sender's next Send call only — for
// example to carry a trace id (codec.TraceHeaderKey) on the first frame
// of a channel. It does not persist to the Sender Send returns; the
// caller must call WithHeader again for each frame that needs it.
func (s *Sender) WithHeader(header []message.HeaderEntry) *Sender {
	return &Sender{pusher: s.pusher, span: s.span, node: s.node, header: header}
}

// Send encodes args under eventType and writes it on the span. eventType
// must be a valid outgoing edge of the sender's current node, or Send
// fails with ErrInvalidTransition and does not write anything. On
// success it returns the Sender for the edge's target node, or nil when
// that node is terminal (including reaching a void node).
func (s *Sender) Send(eventType uint64, args any) (*Sender, error) {
	edge, ok := s.node.Edges[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: type %d not valid from node %q", ErrInvalidTransition, eventType, s.node.Name)
	}
	if err := s.pusher.Push(s.span, eventType, args, s.header); err != nil {
		return nil, err
	}
	if edge.terminal() {
		return nil, nil
	}
	return &Sender{pusher: s.pusher, span: s.span, node: edge.Target}, nil
}

// Chunk is streaming sugar for Send(ChunkType, [data]); since the chunk
// edge self-loops, it returns a new Sender positioned at the same node.
func (s *Sender) Chunk(data []byte) (*Sender, error) {
	return s.Send(ChunkType, []any{data})
}

// Choke is streaming sugar for Send(ChokeType, []), which always
// terminates the channel.
func (s *Sender) Choke() error {
	_, err := s.Send(ChokeType, []any{})
	return err
}

// Error sends the streaming or primitive error variant, whichever is
// valid on the current node, always terminating the channel.
func (s *Sender) Error(code int32, reason string) error {
	if _, ok := s.node.Edges[StreamErrType]; ok {
		_, err := s.Send(StreamErrType, []any{code, reason})
		return err
	}
	_, err := s.Send(PrimitiveErrorType, []any{code, reason})
	return err
}

// Value is primitive sugar for Send(ValueType, [v]), which always
// terminates the channel.
func (s *Sender) Value(v any) error {
	_, err := s.Send(ValueType, []any{v})
	return err
}
