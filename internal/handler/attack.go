package handler

import (
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
)

// HandleTarget selects what the player is looking at. Instance zero
// clears the selection and stops any fight the player started.
func HandleTarget(_ *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.TargetRequest
	if err := r.Decode(&req); err != nil {
		return
	}
	if req.Instance == 0 {
		p.RemoveTarget()
		if p.Combat != nil {
			p.Combat.Stop()
		}
		return
	}
	t := deps.World.Character(ecs.EntityID(req.Instance))
	if t == nil || t.Instance == p.Instance || t.InstanceOwner != p.InstanceOwner {
		return
	}
	p.SetTarget(t)
}

// HandleAttack starts a fight with a mob.
func HandleAttack(_ *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.TargetRequest
	if err := r.Decode(&req); err != nil {
		return
	}
	m := deps.World.Mob(ecs.EntityID(req.Instance))
	if m == nil || m.Dead {
		return
	}
	deps.World.Engage(&p.Character, &m.Character)
}
