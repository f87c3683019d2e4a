// Package message defines the wire envelope exchanged between a session and
// its peer.
//
// Frame is the "envelope" for every multiplexed message. It gets produced by
// the codec layer's decoder and consumed by the protocol layer, which knows
// how to interpret Args for the current node of the channel's protocol graph.
package message

// Frame carries one decoded wire message: the three-element
// (span, type, args) tuple plus an optional header block.
//
//   - Span identifies the channel this frame belongs to.
//   - Type selects a variant in the channel's current protocol node.
//   - Args holds the still-encoded msgpack array of the variant's
//     arguments; the protocol layer decodes it once it knows which variant
//     Type names, avoiding a wasted decode for frames whose type turns out
//     to be invalid on the current node.
type Frame struct {
	Span   uint64
	Type   uint64
	Args   []byte
	Header []HeaderEntry
}

// HeaderEntry is one HPACK-flavored key/value pair carried in a frame's
// optional fourth element. Indexed hints at whether the peer may reuse a
// previously transmitted value for Key instead of retransmitting it; the
// core only plumbs the flag through, it never builds or consults an index.
type HeaderEntry struct {
	Key     string
	Value   []byte
	Indexed bool
}

// Get returns the value of the first header entry named key.
func (f *Frame) Get(key string) ([]byte, bool) {
	for _, h := range f.Header {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}
