package world

import (
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/sched"
)

// Kind tags what an Entity is.
type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindMob
	KindNPC
	KindItem
	KindChest
	KindProjectile
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindMob:
		return "mob"
	case KindNPC:
		return "npc"
	case KindItem:
		return "item"
	case KindChest:
		return "chest"
	case KindProjectile:
		return "projectile"
	}
	return "unknown"
}

// MoveObserver runs synchronously after an entity's position changes.
type MoveObserver func(e *Entity)

// Entity is the base of everything placed in the world.
type Entity struct {
	Key      string // template id from the static tables
	Instance ecs.EntityID
	Kind     Kind
	Name     string

	X, Y       int
	OldX, OldY int

	Region    RegionID
	HasRegion bool
	// OldRegions holds the regions that stopped seeing this entity on its
	// most recent region change.
	OldRegions []RegionID

	// InstanceOwner is the player whose private region copy holds this
	// entity; zero for the public world.
	InstanceOwner ecs.EntityID

	observers     []MoveObserver
	timers        map[string]sched.TimerID
	regionChanged bool
}

func (e *Entity) IsPlayer() bool { return e.Kind == KindPlayer }
func (e *Entity) IsMob() bool    { return e.Kind == KindMob }

// OnMove appends an observer fired by SetPosition.
func (e *Entity) OnMove(fn MoveObserver) {
	e.observers = append(e.observers, fn)
}

// RegionChanged reports whether the last SetPosition crossed a region
// boundary. Valid inside observers registered after the world's own.
func (e *Entity) RegionChanged() bool { return e.regionChanged }

// ClearObservers drops every move observer.
func (e *Entity) ClearObservers() {
	e.observers = nil
}

// SetPosition records the previous tile and moves to (x, y), then runs the
// observers in registration order.
func (e *Entity) SetPosition(x, y int) {
	e.OldX, e.OldY = e.X, e.Y
	e.X, e.Y = x, y
	for _, fn := range e.observers {
		fn(e)
	}
}

// TrackTimer records an entity-owned timer under name, returning any
// timer it replaced.
func (e *Entity) TrackTimer(name string, id sched.TimerID) (prev sched.TimerID) {
	if e.timers == nil {
		e.timers = make(map[string]sched.TimerID, 2)
	}
	prev = e.timers[name]
	e.timers[name] = id
	return prev
}

// Timer returns the tracked timer for name, or zero.
func (e *Entity) Timer(name string) sched.TimerID {
	return e.timers[name]
}

// TakeTimers returns and forgets every tracked timer.
func (e *Entity) TakeTimers() []sched.TimerID {
	if len(e.timers) == 0 {
		return nil
	}
	out := make([]sched.TimerID, 0, len(e.timers))
	for _, id := range e.timers {
		out = append(out, id)
	}
	e.timers = nil
	return out
}

// Distance is the Chebyshev distance to o.
func (e *Entity) Distance(o *Entity) int {
	return max(abs(e.X-o.X), abs(e.Y-o.Y))
}

// DistanceTo is the Chebyshev distance to (x, y).
func (e *Entity) DistanceTo(x, y int) int {
	return max(abs(e.X-x), abs(e.Y-y))
}

// IsAdjacent reports whether o is exactly one tile away on an axis.
// Diagonal neighbours do not count.
func (e *Entity) IsAdjacent(o *Entity) bool {
	return abs(e.X-o.X)+abs(e.Y-o.Y) == 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// NPC is a non-combat character with dialogue.
type NPC struct {
	Entity
	Text []string
}

// Item is an item lying on the ground.
type Item struct {
	Entity
	Count   int
	Dropped bool // dropped by a mob or player; despawns after a while
}

// Chest yields one of Items when opened.
type Chest struct {
	Entity
	Items  []string
	Static bool // respawns after being opened
}

// Projectile carries a hit resolved when it was fired.
type Projectile struct {
	Entity
	Owner  ecs.EntityID
	Target ecs.EntityID
	Hit    Hit
}
