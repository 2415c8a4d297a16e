package system

import (
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/event"
	coresys "github.com/Kaetram/Kaetram-Open-sub002/internal/core/system"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
)

// EventSystem delivers the events emitted during the previous tick.
// Phase 1 (PreUpdate).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem { return &EventSystem{bus: bus} }

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// TimerSystem fires due scheduler timers: combat loops, healing, roaming,
// respawns, projectile impacts and regrowth. Phase 2 (Update).
type TimerSystem struct {
	world *World
}

func NewTimerSystem(w *World) *TimerSystem { return &TimerSystem{world: w} }

func (s *TimerSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TimerSystem) Update(_ time.Duration) {
	s.world.sched.RunDue()
}

// RegionSystem announces entities that entered a region this tick.
// Phase 3 (PostUpdate).
type RegionSystem struct {
	world *World
}

func NewRegionSystem(w *World) *RegionSystem { return &RegionSystem{world: w} }

func (s *RegionSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *RegionSystem) Update(_ time.Duration) {
	s.world.BroadcastIncoming()
}

// OutputSystem flushes every session's buffered frames. Phase 4 (Output).
type OutputSystem struct {
	store *net.SessionStore
}

func NewOutputSystem(store *net.SessionStore) *OutputSystem { return &OutputSystem{store: store} }

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.store.ForEach(func(sess *net.Session) { sess.FlushOutput() })
}

// CleanupSystem releases the ids of entities removed this tick.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	ecs *ecs.World
}

func NewCleanupSystem(w *World) *CleanupSystem { return &CleanupSystem{ecs: w.ECS} }

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.ecs.Reclaim()
}
