package world

import (
	"sort"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
)

// Engager is the combat state machine a Character owns. It is installed
// once when the character is constructed and never replaced.
type Engager interface {
	Begin(target *Character)
	Stop()
	Forget()
	Started() bool
	Stun()
	Freeze()
	Poison(attacker *Character)
	// Release cancels every timer the state machine owns.
	Release()
}

// Amplifiers are the damage multipliers granted by pendant, ring and boots.
// A zero field counts as 1.
type Amplifiers struct {
	Pendant float64
	Ring    float64
	Boots   float64
}

// Product multiplies the three amplifiers without any cap.
func (a Amplifiers) Product() float64 {
	p := 1.0
	for _, v := range [...]float64{a.Pendant, a.Ring, a.Boots} {
		if v > 0 {
			p *= v
		}
	}
	return p
}

// Character is an Entity that can fight.
type Character struct {
	Entity

	Level        int
	Experience   int
	HitPoints    int
	MaxHitPoints int
	Mana         int
	MaxMana      int

	MovementSpeed time.Duration // per tile
	AttackRange   int
	AttackRate    time.Duration
	ArmorLevel    int
	WeaponLevel   int
	Amplifiers    Amplifiers

	Invincible bool
	Dead       bool
	Poisonous  bool // this character's hits poison

	Poisoned bool
	Stunned  bool
	Frozen   bool

	// Target is a weak reference; resolve it through the world table.
	Target    ecs.EntityID
	attackers map[ecs.EntityID]struct{}

	Combat Engager
}

// IsRanged reports whether attacks travel as projectiles.
func (c *Character) IsRanged() bool { return c.AttackRange > 1 }

func (c *Character) HasTarget() bool { return !c.Target.IsZero() }

func (c *Character) SetTarget(t *Character) {
	if t == nil {
		c.Target = 0
		return
	}
	c.Target = t.Instance
}

func (c *Character) RemoveTarget() { c.Target = 0 }

func (c *Character) AddAttacker(a *Character) {
	if a == nil || a.Instance == c.Instance {
		return
	}
	if c.attackers == nil {
		c.attackers = make(map[ecs.EntityID]struct{}, 4)
	}
	c.attackers[a.Instance] = struct{}{}
}

func (c *Character) RemoveAttacker(id ecs.EntityID) {
	delete(c.attackers, id)
}

func (c *Character) HasAttacker(id ecs.EntityID) bool {
	_, ok := c.attackers[id]
	return ok
}

func (c *Character) AttackerCount() int { return len(c.attackers) }

// Attackers returns attacker ids in ascending order.
func (c *Character) Attackers() []ecs.EntityID {
	out := make([]ecs.EntityID, 0, len(c.attackers))
	for id := range c.attackers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Character) ClearAttackers() {
	clear(c.attackers)
}

// Damage subtracts amount, flooring at zero, and returns the hit points left.
func (c *Character) Damage(amount int) int {
	if amount < 0 {
		amount = 0
	}
	c.HitPoints -= amount
	if c.HitPoints < 0 {
		c.HitPoints = 0
	}
	return c.HitPoints
}

// Heal adds amount without exceeding MaxHitPoints.
func (c *Character) Heal(amount int) {
	c.HitPoints = min(c.HitPoints+amount, c.MaxHitPoints)
}

func (c *Character) FullHealth() bool { return c.HitPoints >= c.MaxHitPoints }

// Incapacitated reports whether the character currently cannot act.
func (c *Character) Incapacitated() bool { return c.Stunned || c.Frozen || c.Dead }
