package codec

import "cocaine/message"

// HeaderCodec encodes/decodes a frame's optional header block.
// Implementing this interface allows adding new header representations
// (e.g., an HPACK-style indexed variant that elides repeated keys) without
// touching Encoder/Decoder — the Strategy Pattern, same shape as the
// teacher's pluggable RPCMessage codec, applied one layer down to the
// header block instead of the envelope.
type HeaderCodec interface {
	Encode(entries []message.HeaderEntry) (any, error)
	Decode(raw []byte) ([]message.HeaderEntry, error)
}

// headerEntryWire is the wire shape of one HeaderEntry. The shared
// MsgpackHandle does not set StructToArray, so it is encoded as a map
// keyed by field name.
type headerEntryWire struct {
	Key     string
	Value   []byte
	Indexed bool
}

// PlainHeaderCodec is the only HeaderCodec in-tree today: it encodes every
// entry in full on every frame, no indexing. Preserved as the default so a
// future indexed codec has an interface to slot into.
type PlainHeaderCodec struct{}

func (PlainHeaderCodec) Encode(entries []message.HeaderEntry) (any, error) {
	wire := make([]headerEntryWire, len(entries))
	for i, e := range entries {
		wire[i] = headerEntryWire{Key: e.Key, Value: e.Value, Indexed: e.Indexed}
	}
	return wire, nil
}

func (PlainHeaderCodec) Decode(raw []byte) ([]message.HeaderEntry, error) {
	var wire []headerEntryWire
	if err := DecodeArgs(raw, &wire); err != nil {
		return nil, err
	}
	entries := make([]message.HeaderEntry, len(wire))
	for i, w := range wire {
		entries[i] = message.HeaderEntry{Key: w.Key, Value: w.Value, Indexed: w.Indexed}
	}
	return entries, nil
}

// TraceHeaderKey is the conventional header key carrying a distributed
// trace/span identifier through an invocation, opaquely to the core —
// it is transported, never interpreted, by protocol.Sender/Receiver.
const TraceHeaderKey = "trace_id"

// DefaultHeaderCodec is used by encodeHeaderEntries/decodeHeaderEntries.
// Exported as a var (not a const) so a consumer wiring an alternative
// HeaderCodec can swap it at init time.
var DefaultHeaderCodec HeaderCodec = PlainHeaderCodec{}

func encodeHeaderEntries(entries []message.HeaderEntry) any {
	wire, _ := DefaultHeaderCodec.Encode(entries)
	return wire
}

func decodeHeaderEntries(raw []byte) ([]message.HeaderEntry, error) {
	return DefaultHeaderCodec.Decode(raw)
}
