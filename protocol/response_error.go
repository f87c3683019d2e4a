package protocol

import (
	"fmt"

	"cocaine/codec"
)

// ResponseError is the structured error carried by a protocol's error
// variant: `(error_code: i32, reason: string, category?: u8)`.
type ResponseError struct {
	Code     int32
	Reason   string
	Category *uint8
}

func (e *ResponseError) Error() string {
	if e.Category != nil {
		return fmt.Sprintf("protocol: response error %d (category %d): %s", e.Code, *e.Category, e.Reason)
	}
	return fmt.Sprintf("protocol: response error %d: %s", e.Code, e.Reason)
}

// decodeResponseError decodes a frame's still-encoded args into a
// ResponseError. args is the error variant's full tuple, e.g.
// [code, reason] or [code, reason, category].
func decodeResponseError(args []byte) (*ResponseError, error) {
	var tuple []any
	if err := codec.DecodeArgs(args, &tuple); err != nil {
		return nil, fmt.Errorf("protocol: decode response error: %w", err)
	}
	if len(tuple) < 2 {
		return nil, fmt.Errorf("%w: response error tuple too short: %d", ErrInvalidTransition, len(tuple))
	}

	re := &ResponseError{
		Code:   toInt32(tuple[0]),
		Reason: toString(tuple[1]),
	}
	if len(tuple) >= 3 {
		cat := toUint8(tuple[2])
		re.Category = &cat
	}
	return re, nil
}

// toInt32/toString/toUint8 normalize the handful of Go types the msgpack
// decoder produces for integers/strings/bytes into the concrete shape
// ResponseError and the streaming helpers want, so callers never have to
// know which of int64/uint64/float64 a given handle chose to decode to.
func toInt32(v any) int32 {
	switch n := v.(type) {
	case int64:
		return int32(n)
	case uint64:
		return int32(n)
	case float64:
		return int32(n)
	case int:
		return int32(n)
	default:
		return 0
	}
}

func toUint8(v any) uint8 {
	switch n := v.(type) {
	case int64:
		return uint8(n)
	case uint64:
		return uint8(n)
	case float64:
		return uint8(n)
	case int:
		return uint8(n)
	default:
		return 0
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func toBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return nil
	}
}
