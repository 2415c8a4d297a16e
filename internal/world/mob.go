package world

import (
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
)

// Drop is one loot table row. Chance is out of 10000.
type Drop struct {
	Key    string
	Chance int
	Count  int
}

// Mob is a hostile character.
type Mob struct {
	Character

	SpawnX, SpawnY int
	RoamDistance   int
	Aggressive     bool
	AggroRange     int
	Drops          []Drop

	Boss     bool
	Miniboss bool
	// Static mobs come from the spawn table and respawn after RespawnDelay.
	Static       bool
	RespawnDelay time.Duration
	Reward       int // experience granted to the killer

	// Master is set on summoned minions.
	Master  ecs.EntityID
	Minions int
}

// OutsideRoam reports whether (x, y) is farther from the spawn point than
// the mob may wander. Mobs with no roam distance are never pulled back.
func (m *Mob) OutsideRoam(x, y int) bool {
	if m.RoamDistance <= 0 {
		return false
	}
	return max(abs(x-m.SpawnX), abs(y-m.SpawnY)) > m.RoamDistance
}

func (m *Mob) IsMinion() bool { return !m.Master.IsZero() }
