// Package codec implements the streaming MessagePack wire codec for the
// framed, multiplexed session.
//
// Every wire message is a MessagePack array [span, type, args, header?].
// There is no length prefix: MessagePack self-delimits, so a Decoder simply
// decodes one top-level value per call and lets the underlying reader block
// for more bytes when the frame isn't complete yet — the natural streaming
// idiom for a library that already decodes straight off an io.Reader (see
// hashicorp/go-msgpack's own RPC client for the same shape).
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-msgpack/codec"

	"cocaine/message"
)

// mh is shared by every Encoder/Decoder; MsgpackHandle is safe for
// concurrent use once configured and never mutated after init.
var mh = &codec.MsgpackHandle{}

var (
	// ErrFrameFormat means the decoded value wasn't a
	// [span, type, args, header?] array. Fatal for the whole session.
	ErrFrameFormat = errors.New("codec: frame format error")

	// ErrMalformedMessage means the MessagePack parse itself failed.
	// Fatal for the whole session.
	ErrMalformedMessage = errors.New("codec: malformed message")
)

// Encoder writes frames to an underlying writer. It is not safe for
// concurrent use; callers serialize writes themselves (the session's
// outbound path does this with its own write mutex).
type Encoder struct {
	enc *codec.Encoder
}

// NewEncoder returns an Encoder writing MessagePack frames to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: codec.NewEncoder(w, mh)}
}

// Encode writes one [span, type, args, header?] frame. args is either a
// natural Go value msgpack can encode as an array (typically a slice or
// a struct tagged for positional encoding), or a []byte of already
// msgpack-encoded bytes — as returned by EncodeArgs — which is spliced
// onto the wire verbatim rather than bin-encoded as opaque bytes; header
// is omitted from the wire frame when empty.
func (e *Encoder) Encode(span, typ uint64, args any, header []message.HeaderEntry) error {
	frame := make([]any, 3, 4)
	frame[0] = span
	frame[1] = typ
	if raw, ok := args.([]byte); ok {
		frame[2] = codec.Raw(raw)
	} else {
		frame[2] = args
	}
	if len(header) > 0 {
		frame = append(frame, encodeHeaderEntries(header))
	}
	return e.enc.Encode(frame)
}

// Decoder reads frames from an underlying reader. Not safe for concurrent
// use — the session's single read-loop goroutine owns it.
type Decoder struct {
	dec *codec.Decoder
}

// NewDecoder returns a Decoder reading MessagePack frames from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: codec.NewDecoder(r, mh)}
}

// Decode consumes one top-level MessagePack value from the reader and
// returns it as a message.Frame. It blocks until a full value is available,
// returns io.EOF when the peer closes the connection cleanly (or the
// reader otherwise signals end-of-stream), and returns an error wrapping
// ErrFrameFormat when the value is not a valid frame. Any other failure,
// a parse error or an I/O error from the reader alike, is returned
// wrapped in ErrMalformedMessage.
func (d *Decoder) Decode() (*message.Frame, error) {
	var raw []codec.Raw
	if err := d.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if len(raw) < 3 {
		return nil, fmt.Errorf("%w: expected at least 3 elements, got %d", ErrFrameFormat, len(raw))
	}

	var span, typ uint64
	if err := decodeRaw(raw[0], &span); err != nil {
		return nil, fmt.Errorf("%w: span: %v", ErrFrameFormat, err)
	}
	if err := decodeRaw(raw[1], &typ); err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrFrameFormat, err)
	}

	frame := &message.Frame{
		Span: span,
		Type: typ,
		Args: []byte(raw[2]),
	}

	if len(raw) >= 4 {
		header, err := decodeHeaderEntries([]byte(raw[3]))
		if err != nil {
			return nil, fmt.Errorf("%w: header: %v", ErrFrameFormat, err)
		}
		frame.Header = header
	}

	return frame, nil
}

func decodeRaw(r codec.Raw, v any) error {
	return codec.NewDecoderBytes([]byte(r), mh).Decode(v)
}

// DecodeArgs decodes a frame's still-encoded Args into v, the variant's
// argument tuple as determined by the protocol layer.
func DecodeArgs(args []byte, v any) error {
	return codec.NewDecoderBytes(args, mh).Decode(v)
}

// EncodeArgs encodes v (typically a slice of positional arguments) into the
// bytes that belong in a frame's Args position.
func EncodeArgs(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, mh).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
