package packet

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns Messages into wire frames and back. A frame carries exactly
// one message.
type Codec interface {
	Encode(m Message) ([]byte, error)
	Decode(frame []byte) (*Reader, error)
}

// outFrame and inFrame are encoded as two-element arrays: [opcode, data].
type outFrame struct {
	_msgpack struct{} `msgpack:",as_array"`
	Op       Opcode
	Data     any
}

type inFrame struct {
	_msgpack struct{} `msgpack:",as_array"`
	Op       Opcode
	Data     msgpack.RawMessage
}

// MsgpackCodec encodes frames with MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(m Message) ([]byte, error) {
	b, err := msgpack.Marshal(&outFrame{Op: m.Op, Data: m.Data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Op, err)
	}
	return b, nil
}

func (MsgpackCodec) Decode(frame []byte) (*Reader, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	var f inFrame
	if err := msgpack.Unmarshal(frame, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &Reader{op: f.Op, raw: f.Data}, nil
}
