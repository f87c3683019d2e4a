// Package protocol replaces template-heavy overload selection with an
// explicit graph of tagged unions: each protocol node is a sum type
// whose variants label their successor node. State transitions are
// data, not inheritance — the same "replace a chain of type-switches
// with a declared table" idiom middleware.Chain uses for composing
// handlers, applied here to wire-message shape instead of dispatch.
package protocol

import "errors"

// ErrInvalidTransition means a frame's type (or a Sender's requested
// event) has no edge on the current node. It is fatal for the channel,
// never retried.
var ErrInvalidTransition = errors.New("protocol: invalid transition")

// Node is one state in a channel's protocol graph: a set of message
// types valid from here, each naming its successor node.
type Node struct {
	Name     string
	Edges    map[uint64]*Edge
	Terminal bool
}

// Edge is one valid (type -> successor) transition out of a Node. Target
// is nil for an edge that ends the channel without a distinguished
// terminal node (rare; Terminal on the current node covers the normal
// case).
type Edge struct {
	Type   uint64
	Target *Node
}

// terminal returns whether following this edge ends the channel.
func (e *Edge) terminal() bool {
	return e.Target == nil || e.Target.Terminal
}

// Tag names a channel's shape: the Dispatch graph is messages the local
// side receives, Upstream is messages the local side sends. Every user of
// a Tag walks Upstream to send and Dispatch to receive: a client invoking
// an event does so with the event's Tag, and a worker does so with its
// own worker-side Tag (worker.WorkerChannelTag, HTTPTag), whose graphs are
// written from the worker's point of view.
type Tag struct {
	Name     string
	Version  uint32
	Dispatch *Node
	Upstream *Node
}

// Message type IDs for the streaming shape: an unbounded run of chunks
// terminated by either choke or error. Numbering is local to this
// package — each protocol tag enumerates its own table independently, so
// nothing downstream depends on these specific values lining up with any
// other implementation's wire format.
const (
	ChunkType     uint64 = 0
	StreamErrType uint64 = 1
	ChokeType     uint64 = 2
)

// Message type IDs for the primitive shape: exactly one value or error,
// always terminal.
const (
	ValueType          uint64 = 0
	PrimitiveErrorType uint64 = 1
)

// StreamingNode builds a self-looping chunk/choke/error graph: recv()
// returns Some(chunk) without consuming the node, or None/error on
// choke/error, which terminate.
func StreamingNode(name string) *Node {
	n := &Node{Name: name, Edges: map[uint64]*Edge{}}
	choke := &Node{Name: name + ".choke", Terminal: true}
	errNode := &Node{Name: name + ".error", Terminal: true}
	n.Edges[ChunkType] = &Edge{Type: ChunkType, Target: n}
	n.Edges[ChokeType] = &Edge{Type: ChokeType, Target: choke}
	n.Edges[StreamErrType] = &Edge{Type: StreamErrType, Target: errNode}
	return n
}

// PrimitiveNode builds a value/error graph: exactly one message, either
// shape, always terminal.
func PrimitiveNode(name string) *Node {
	n := &Node{Name: name, Edges: map[uint64]*Edge{}}
	value := &Node{Name: name + ".done", Terminal: true}
	errNode := &Node{Name: name + ".error", Terminal: true}
	n.Edges[ValueType] = &Edge{Type: ValueType, Target: value}
	n.Edges[PrimitiveErrorType] = &Edge{Type: PrimitiveErrorType, Target: errNode}
	return n
}

// VoidNode builds a graph with no valid outgoing messages: the channel's
// Sender for this node exposes no further operations.
func VoidNode(name string) *Node {
	return &Node{Name: name, Terminal: true, Edges: map[uint64]*Edge{}}
}
