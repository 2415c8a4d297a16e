package system

import (
	"fmt"
	"math"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/combat"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/event"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

// Engage makes attacker start fighting target. Both must be alive and in
// the same instance.
func (w *World) Engage(attacker, target *world.Character) bool {
	if attacker == nil || target == nil || attacker.Combat == nil {
		return false
	}
	if attacker.Dead || target.Dead || attacker.Instance == target.Instance {
		return false
	}
	if attacker.InstanceOwner != target.InstanceOwner {
		return false
	}
	attacker.Combat.Begin(target)
	return true
}

// HandleDamage applies amount to target and resolves a death. Missing
// participants and invincible targets are ignored.
func (w *World) HandleDamage(attacker, target *world.Character, amount int) {
	if attacker == nil || target == nil || target.Dead || target.Invincible {
		return
	}
	if amount < 0 {
		amount = 0
	}
	target.Damage(amount)
	w.PushRegions(&target.Entity, pointsMessage(target))
	if p := w.State.Player(target.Instance); p != nil {
		p.Dirty = true
	}

	if target.HitPoints > 0 {
		// A mob that is hit without a fight of its own answers back.
		if target.IsMob() && !target.HasTarget() && target.Combat != nil && !attacker.Dead {
			target.Combat.Begin(attacker)
		}
		return
	}
	w.die(target, attacker.Instance, true)
}

// Kill puts c to death immediately, without rewarding anyone.
func (w *World) Kill(c *world.Character) {
	if c == nil || c.Dead {
		return
	}
	c.HitPoints = 0
	w.PushRegions(&c.Entity, pointsMessage(c))
	w.die(c, 0, false)
}

// die is the shared lethal path: reward, detach attackers, tell the
// neighbourhood the fight is over, then hand off to HandleDeath.
func (w *World) die(c *world.Character, killer ecs.EntityID, reward bool) {
	if c.Dead {
		return
	}
	c.Dead = true

	if m := w.State.Mob(c.Instance); m != nil && reward {
		w.awardExperience(m)
	}
	attackers := c.Attackers()
	w.Disengage(c)
	if c.Combat != nil {
		c.Combat.Release()
	}

	w.PushRegions(&c.Entity,
		packet.Message{Op: packet.OpCombat, Data: packet.Combat{
			Opcode:   packet.CombatFinish,
			Attacker: uint64(killer),
			Target:   uint64(c.Instance),
		}},
		packet.Message{Op: packet.OpDespawn, Data: packet.Despawn{Instance: uint64(c.Instance)}},
	)
	w.log.Debug("character died",
		zap.String("key", c.Key),
		zap.Stringer("instance", c.Instance),
		zap.Int("attackers", len(attackers)),
	)
	w.HandleDeath(c, false, killer)
}

// HandleDeath removes a dead mob, rolls its loot and schedules a respawn.
// Dead players stay in the world until they respawn.
func (w *World) HandleDeath(c *world.Character, ignoreDrops bool, lastAttacker ecs.EntityID) {
	if c == nil {
		return
	}
	c.Dead = true

	if p := w.State.Player(c.Instance); p != nil {
		w.PushTo(p.Instance, packet.Message{Op: packet.OpDeath, Data: packet.Death{Instance: uint64(p.Instance)}})
		p.Dirty = true
		event.Emit(w.bus, event.PlayerDied{Player: p.Instance, Killer: lastAttacker})
		return
	}

	m := w.State.Mob(c.Instance)
	if m == nil {
		return
	}
	if !ignoreDrops {
		if d, ok := w.rollDrop(m); ok {
			w.DropItem(d.Key, max(d.Count, 1), m.X, m.Y, m.InstanceOwner)
		}
	}
	if master := w.State.Mob(m.Master); master != nil {
		master.Minions = max(master.Minions-1, 0)
	}
	event.Emit(w.bus, event.MobKilled{Mob: m.Instance, Key: m.Key, Killer: lastAttacker, X: m.X, Y: m.Y})
	w.remove(&m.Entity, false)

	if m.Static && !m.IsMinion() {
		key, x, y := m.Key, m.SpawnX, m.SpawnY
		w.sched.After(m.RespawnDelay, "mob.respawn", func() {
			w.SpawnMob(key, x, y, true)
		})
	}
}

// rollDrop picks at most one entry from the loot table. Chances are out
// of 10000 and scaled by the drop rate.
func (w *World) rollDrop(m *world.Mob) (world.Drop, bool) {
	if len(m.Drops) == 0 {
		return world.Drop{}, false
	}
	rate := w.cfg.Rates.DropRate
	if rate <= 0 {
		rate = 1
	}
	roll := w.rng.IntN(10000)
	cumulative := 0
	for _, d := range m.Drops {
		cumulative += int(float64(d.Chance) * rate)
		if roll < cumulative {
			return d, true
		}
	}
	return world.Drop{}, false
}

// awardExperience gives every player that fought m its reward.
func (w *World) awardExperience(m *world.Mob) {
	rate := w.cfg.Rates.ExpRate
	if rate <= 0 {
		rate = 1
	}
	amount := int(math.Floor(float64(m.Reward) * rate))
	if amount <= 0 {
		return
	}
	for _, id := range m.Attackers() {
		if p := w.State.Player(id); p != nil {
			w.AddExperience(p, amount)
		}
	}
}

// AddExperience grants amount and applies any level-ups.
func (w *World) AddExperience(p *world.Player, amount int) {
	if amount <= 0 {
		return
	}
	p.Experience += amount
	p.Dirty = true
	level := combat.LevelFromExperience(p.Experience)

	w.PushRegions(&p.Entity, packet.Message{Op: packet.OpExperience, Data: packet.Experience{
		Instance:   uint64(p.Instance),
		Amount:     amount,
		Experience: p.Experience,
		Level:      level,
	}})
	if level <= p.Level {
		return
	}
	p.Level = level
	p.MaxHitPoints = combat.MaxHitPoints(level)
	p.MaxMana = combat.MaxMana(level)
	w.PushRegions(&p.Entity, pointsMessage(&p.Character))
	w.Notify(p, fmt.Sprintf("Congratulations! You are now level %d.", level))
	event.Emit(w.bus, event.LevelUp{Player: p.Instance, Level: level})
	w.log.Info("player level up", zap.String("username", p.Username), zap.Int("level", level))
	w.Save(p)
}
