package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateHandshake SessionState = iota // connected, awaiting handshake
	StateLogin                         // handshake done, awaiting credentials
	StateLoading                       // credentials accepted, player record loading
	StateInWorld                       // playing
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateLogin:
		return "Login"
	case StateLoading:
		return "Loading"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for packet handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps opcodes to handlers with state-based access control.
type Registry struct {
	handlers map[Opcode]*handlerEntry
	codec    Codec
	log      *zap.Logger
}

func NewRegistry(codec Codec, log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[Opcode]*handlerEntry),
		codec:    codec,
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given session states.
func (reg *Registry) Register(op Opcode, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[op] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Has reports whether op has a handler.
func (reg *Registry) Has(op Opcode) bool {
	_, ok := reg.handlers[op]
	return ok
}

// Dispatch decodes a frame, validates the session state for its opcode and
// calls the handler. Unknown opcodes are ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, frame []byte) error {
	r, err := reg.codec.Decode(frame)
	if err != nil {
		return err
	}
	op := r.Opcode()
	reg.log.Debug("packet received",
		zap.Stringer("op", op),
		zap.Int("size", len(frame)),
		zap.Stringer("state", state),
	)

	entry, ok := reg.handlers[op]
	if !ok {
		reg.log.Debug("unknown opcode", zap.Uint8("op", uint8(op)), zap.Stringer("state", state))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("opcode not allowed in state",
			zap.Stringer("op", op),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("opcode %s not allowed in state %s", op, state)
	}

	return reg.safeCall(entry.fn, sess, r, op)
}

// safeCall executes a handler with panic recovery so a single bad packet
// cannot crash the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader, op Opcode) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Stringer("op", op),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode %s: %v", op, rec)
		}
	}()
	fn(sess, r)
	return nil
}
