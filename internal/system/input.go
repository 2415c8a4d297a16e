package system

import (
	"time"

	coresys "github.com/Kaetram/Kaetram-Open-sub002/internal/core/system"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"go.uber.org/zap"
)

// InputSystem accepts new sessions, drains each session's inbound queue
// through the packet registry and runs callbacks posted from other
// goroutines. Phase 0 (Input).
type InputSystem struct {
	server     *net.Server
	registry   *packet.Registry
	store      *net.SessionStore
	world      *World
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(server *net.Server, registry *packet.Registry, store *net.SessionStore, w *World, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		server:     server,
		registry:   registry,
		store:      store,
		world:      w,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	if s.server != nil {
		s.accept()
	}

	for _, sess := range s.store.Sorted() {
		// Frames read just before the close still count.
		s.drain(sess)
		if sess.IsClosed() {
			s.drop(sess.ID)
		}
	}

	s.world.RunPosted()
}

func (s *InputSystem) accept() {
	for {
		select {
		case sess := <-s.server.NewSessions():
			s.store.Add(sess)
		case id := <-s.server.DeadSessions():
			s.drop(id)
		default:
			return
		}
	}
}

func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case frame := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, sess.State(), frame); err != nil {
				s.log.Debug("dispatch failed", zap.Uint64("session", sess.ID), zap.Error(err))
			}
		default:
			return
		}
	}
}

// drop forgets a session and takes its player out of the world. Safe to
// call twice for the same id.
func (s *InputSystem) drop(id uint64) {
	if s.store.Get(id) == nil {
		return
	}
	s.world.Disconnect(id)
	s.store.Remove(id)
}
