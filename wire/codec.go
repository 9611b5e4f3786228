// Package wire converts structured values containing binary payloads to and
// from the JSON representation used by WhatsApp-web auth stores, where byte
// slices appear as {"type":"Buffer","data":"<base64>"} objects at any depth.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wastore/wastore/waerr"
)

// Buffer is a byte slice that marshals to the {"type":"Buffer"} JSON form.
// Use it for binary fields on any struct that passes through the codec.
type Buffer []byte

type bufferJSON struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func (b Buffer) MarshalJSON() ([]byte, error) {
	return json.Marshal(bufferJSON{Type: "Buffer", Data: base64.StdEncoding.EncodeToString(b)})
}

func (b *Buffer) UnmarshalJSON(data []byte) error {
	// Accept both the marked-object form and a plain base64 string.
	var obj bufferJSON
	if err := json.Unmarshal(data, &obj); err == nil && obj.Type == "Buffer" {
		raw, err := base64.StdEncoding.DecodeString(obj.Data)
		if err != nil {
			return &waerr.DecodingError{Msg: "buffer data is not valid base64", Cause: err}
		}
		*b = raw
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &waerr.DecodingError{Msg: "buffer is neither a marked object nor a string", Cause: err}
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return &waerr.DecodingError{Msg: "buffer data is not valid base64", Cause: err}
	}
	*b = raw
	return nil
}

// Marshal encodes v to JSON. Plain []byte and Buffer values inside dynamic
// maps and slices are emitted in the marked-buffer form; typed structs get
// the same treatment through Buffer's MarshalJSON.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(markBuffers(v))
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return data, nil
}

// markBuffers walks dynamic values and replaces byte slices with Buffer so
// they marshal in the marked form. Typed structs are left to encoding/json.
func markBuffers(v any) any {
	switch x := v.(type) {
	case []byte:
		return Buffer(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = markBuffers(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = markBuffers(val)
		}
		return out
	default:
		return v
	}
}

// Unmarshal decodes JSON into a dynamic value, reviving marked buffers to
// []byte at any depth. A marked buffer with invalid base64 data fails with a
// DecodingError.
func Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &waerr.DecodingError{Msg: "invalid JSON payload", Cause: err}
	}
	return reviveBuffers(v)
}

// Decode decodes JSON into a typed target. Buffer fields on the target revive
// marked buffers themselves.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		var derr *waerr.DecodingError
		if errors.As(err, &derr) {
			return derr
		}
		return &waerr.DecodingError{Msg: "invalid JSON payload", Cause: err}
	}
	return nil
}

func reviveBuffers(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if raw, ok, err := reviveMarked(x); err != nil {
			return nil, err
		} else if ok {
			return raw, nil
		}
		for k, val := range x {
			revived, err := reviveBuffers(val)
			if err != nil {
				return nil, err
			}
			x[k] = revived
		}
		return x, nil
	case []any:
		for i, val := range x {
			revived, err := reviveBuffers(val)
			if err != nil {
				return nil, err
			}
			x[i] = revived
		}
		return x, nil
	default:
		return v, nil
	}
}

// reviveMarked converts a {"type":"Buffer","data":...} map to its bytes.
// The data field may be a base64 string or a JSON array of byte values (the
// form node's JSON.stringify produces for raw buffers).
func reviveMarked(m map[string]any) ([]byte, bool, error) {
	t, ok := m["type"].(string)
	if !ok || t != "Buffer" {
		return nil, false, nil
	}
	switch data := m["data"].(type) {
	case string:
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, false, &waerr.DecodingError{Msg: "buffer data is not valid base64", Cause: err}
		}
		return raw, true, nil
	case []any:
		raw := make([]byte, len(data))
		for i, b := range data {
			f, ok := b.(float64)
			if !ok || f < 0 || f > 255 {
				return nil, false, &waerr.DecodingError{Msg: fmt.Sprintf("buffer byte array has invalid element at %d", i)}
			}
			raw[i] = byte(f)
		}
		return raw, true, nil
	default:
		return nil, false, &waerr.DecodingError{Msg: "buffer object has no usable data field"}
	}
}
