package system

import (
	"context"
	"time"

	coresys "github.com/Kaetram/Kaetram-Open-sub002/internal/core/system"
	"go.uber.org/zap"
)

// PersistenceSystem queues dirty players for saving every interval.
// Phase 5 (Persist).
type PersistenceSystem struct {
	world    *World
	interval time.Duration
	elapsed  time.Duration
	log      *zap.Logger
}

func NewPersistenceSystem(w *World, interval time.Duration, log *zap.Logger) *PersistenceSystem {
	return &PersistenceSystem{world: w, interval: interval, log: log}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(dt time.Duration) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	if n := s.world.SaveDirty(); n > 0 {
		s.log.Info("auto-save queued", zap.Int("players", n))
	}
}

// SaveAll writes every online player synchronously, ignoring dirty flags.
// Called on the game loop goroutine during shutdown, after the loop has
// stopped ticking.
func (w *World) SaveAll(ctx context.Context) int {
	if w.store == nil {
		return 0
	}
	n := 0
	for _, p := range w.State.Players() {
		if err := w.store.Save(ctx, Record(p)); err != nil {
			w.log.Error("shutdown save", zap.String("username", p.Username), zap.Error(err))
			continue
		}
		p.Dirty = false
		n++
	}
	w.log.Info("players saved", zap.Int("count", n))
	return n
}
