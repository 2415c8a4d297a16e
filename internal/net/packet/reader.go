package packet

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNoPayload is returned by Decode for frames that carry no data.
var ErrNoPayload = errors.New("packet has no payload")

// Reader gives a handler access to one decoded inbound frame.
type Reader struct {
	op  Opcode
	raw msgpack.RawMessage
}

// NewReader wraps an already-split frame. Used by tests and by codecs.
func NewReader(op Opcode, raw []byte) *Reader {
	return &Reader{op: op, raw: raw}
}

func (r *Reader) Opcode() Opcode { return r.op }

// Decode unmarshals the payload into v.
func (r *Reader) Decode(v any) error {
	if len(r.raw) == 0 {
		return ErrNoPayload
	}
	if err := msgpack.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.op, err)
	}
	return nil
}
