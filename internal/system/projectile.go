package system

import (
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/combat"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
)

// CreateProjectile fires hit from attacker at target. The hit is rolled
// before launch; the projectile only decides when it lands, so what the
// client sees in flight matches what is applied on impact.
func (w *World) CreateProjectile(attacker, target *world.Character, hit world.Hit) {
	if attacker == nil || target == nil || target.Dead {
		return
	}
	p := &world.Projectile{Owner: attacker.Instance, Target: target.Instance, Hit: hit}
	p.Instance = w.State.NewInstance()
	p.Kind = world.KindProjectile
	p.Key = "projectile"
	p.X, p.Y = attacker.X, attacker.Y
	p.InstanceOwner = attacker.InstanceOwner
	w.State.AddProjectile(p)

	w.PushRegions(&attacker.Entity, packet.Message{Op: packet.OpProjectile, Data: packet.Projectile{
		Instance: uint64(p.Instance),
		Owner:    uint64(attacker.Instance),
		Target:   uint64(target.Instance),
		Hit:      *combat.HitData(hit),
	}})

	id := p.Instance
	w.sched.After(w.travelTime(attacker.Distance(&target.Entity)), "projectile.impact", func() {
		w.impact(w.State.Projectile(id))
	})
}

func (w *World) travelTime(tiles int) time.Duration {
	speed := w.cfg.Combat.ProjectileSpeed
	if speed <= 0 || tiles <= 0 {
		return 0
	}
	return time.Duration(float64(tiles) / speed * float64(time.Second))
}

// impact resolves a landed projectile. The projectile is discarded even
// when its owner or target is gone.
func (w *World) impact(p *world.Projectile) {
	if p == nil {
		return
	}
	w.remove(&p.Entity, false)
	attacker := w.State.Character(p.Owner)
	target := w.State.Character(p.Target)
	if attacker == nil || target == nil || target.Dead {
		return
	}
	w.PushRegions(&target.Entity, combat.HitMessage(attacker, target, p.Hit))
	combat.Resolve(w, attacker, target, p.Hit)
}
