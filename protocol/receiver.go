package protocol

import (
	"context"
	"fmt"

	"cocaine/channel"
	"cocaine/codec"
	"cocaine/message"
)

// Revoker is the subset of session.Session a Receiver needs: release a
// span's shared state once the channel reaches a terminal node. Both
// session.Session and worker.Session satisfy it.
type Revoker interface {
	Revoke(span uint64)
}

// Receiver is a handle to one node of a channel's incoming graph. Recv
// awaits the next frame, validates its type against the current node,
// and — unless the transition is terminal — returns the Receiver for the
// successor node. Reaching a terminal node (or any error) revokes the
// span exactly once; the caller must not use the Receiver afterward.
type Receiver struct {
	state   *channel.SharedState
	revoker Revoker
	span    uint64
	node    *Node
	revoked bool
}

// NewReceiver returns a Receiver positioned at node for span, reading
// frames out of state and revoking span on revoker when the channel
// ends.
func NewReceiver(state *channel.SharedState, revoker Revoker, span uint64, node *Node) *Receiver {
	return &Receiver{state: state, revoker: revoker, span: span, node: node}
}

// Recv awaits one frame, validates its type against the current node,
// and returns it alongside the successor Receiver (nil once the
// transition is terminal). An unknown type, a transport failure, or
// ctx's cancellation all revoke the span before returning.
func (r *Receiver) Recv(ctx context.Context) (*message.Frame, *Receiver, error) {
	frame, err := r.state.Get(ctx)
	if err != nil {
		r.revoke()
		return nil, nil, err
	}

	edge, ok := r.node.Edges[frame.Type]
	if !ok {
		r.revoke()
		return nil, nil, fmt.Errorf("%w: type %d not valid on node %q", ErrInvalidTransition, frame.Type, r.node.Name)
	}
	if edge.terminal() {
		r.revoke()
		return frame, nil, nil
	}
	return frame, &Receiver{state: r.state, revoker: r.revoker, span: r.span, node: edge.Target}, nil
}

func (r *Receiver) revoke() {
	if r.revoked {
		return
	}
	r.revoked = true
	if r.revoker != nil {
		r.revoker.Revoke(r.span)
	}
}

// RecvChunk is the streaming specialization: it returns
// (data, true, nil) on a chunk without consuming the Receiver — callers
// invoke RecvChunk again on the same Receiver for the next chunk — and
// (nil, false, nil) on choke, or a *ResponseError on the error variant.
// Either terminal outcome revokes the span.
func (r *Receiver) RecvChunk(ctx context.Context) ([]byte, bool, error) {
	frame, _, err := r.Recv(ctx)
	if err != nil {
		return nil, false, err
	}

	switch frame.Type {
	case ChunkType:
		var tuple []any
		if err := codec.DecodeArgs(frame.Args, &tuple); err != nil {
			return nil, false, fmt.Errorf("protocol: decode chunk: %w", err)
		}
		if len(tuple) == 0 {
			return nil, true, nil
		}
		return toBytes(tuple[0]), true, nil
	case ChokeType:
		return nil, false, nil
	case StreamErrType:
		re, decodeErr := decodeResponseError(frame.Args)
		if decodeErr != nil {
			return nil, false, decodeErr
		}
		return nil, false, re
	default:
		return nil, false, fmt.Errorf("%w: unexpected type %d", ErrInvalidTransition, frame.Type)
	}
}

// RecvValue is the primitive specialization: it decodes
// the value variant's single element into out, or returns the decoded
// *ResponseError on the error variant. Either outcome is terminal and
// revokes the span.
func (r *Receiver) RecvValue(ctx context.Context, out any) error {
	frame, _, err := r.Recv(ctx)
	if err != nil {
		return err
	}

	switch frame.Type {
	case ValueType:
		var tuple []any
		if err := codec.DecodeArgs(frame.Args, &tuple); err != nil {
			return fmt.Errorf("protocol: decode value: %w", err)
		}
		if len(tuple) == 0 || out == nil {
			return nil
		}
		return reencodeInto(tuple[0], out)
	case PrimitiveErrorType:
		re, decodeErr := decodeResponseError(frame.Args)
		if decodeErr != nil {
			return decodeErr
		}
		return re
	default:
		return fmt.Errorf("%w: unexpected type %d", ErrInvalidTransition, frame.Type)
	}
}

// reencodeInto converts a value already decoded to a generic interface{}
// shape into the caller's concrete out pointer, by round-tripping it
// through the same msgpack codec: simpler and safer than reaching for
// reflection to assign across the two shapes directly.
func reencodeInto(v any, out any) error {
	b, err := codec.EncodeArgs(v)
	if err != nil {
		return err
	}
	return codec.DecodeArgs(b, out)
}
