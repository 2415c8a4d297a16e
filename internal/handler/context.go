package handler

import (
	"github.com/Kaetram/Kaetram-Open-sub002/internal/config"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/system"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config *config.Config
	World  *system.World
	Store  system.PlayerStore
	Log    *zap.Logger
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.OpHandshake,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleHandshake(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.OpLogin,
		[]packet.SessionState{packet.StateLogin},
		func(sess any, r *packet.Reader) {
			HandleLogin(sess.(*net.Session), r, deps)
		},
	)

	inWorldStates := []packet.SessionState{packet.StateInWorld}
	inWorld := func(op packet.Opcode, fn func(*net.Session, *world.Player, *packet.Reader, *Deps)) {
		reg.Register(op, inWorldStates, func(sess any, r *packet.Reader) {
			s := sess.(*net.Session)
			p := deps.World.PlayerBySession(s.ID)
			if p == nil {
				return
			}
			fn(s, p, r, deps)
		})
	}
	inWorld(packet.OpMovement, HandleMove)
	inWorld(packet.OpTarget, HandleTarget)
	inWorld(packet.OpAttack, HandleAttack)
	inWorld(packet.OpChat, HandleChat)
	inWorld(packet.OpCut, HandleCut)
	inWorld(packet.OpMine, HandleMine)
	inWorld(packet.OpEquip, HandleEquip)
	inWorld(packet.OpRespawn, HandleRespawn)
}

// send encodes msgs and queues them on sess.
func send(sess *net.Session, deps *Deps, msgs ...packet.Message) {
	for _, m := range msgs {
		b, err := deps.World.Codec().Encode(m)
		if err != nil {
			deps.Log.Error("encode reply", zap.Stringer("op", m.Op), zap.Error(err))
			continue
		}
		sess.Send(b)
	}
}

func notification(text string) packet.Message {
	return packet.Message{Op: packet.OpNotification, Data: packet.Notification{Message: text}}
}
