package system

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems sharing a
// phase run in registration order. A panicking system is logged and the
// rest of the tick still runs. Ticks that take longer than the budget
// are reported.
type Runner struct {
	systems []System
	sorted  bool
	budget  time.Duration
	ticks   uint64
	log     *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// SetBudget sets the tick duration above which a warning is logged.
// Zero disables the check.
func (r *Runner) SetBudget(d time.Duration) { r.budget = d }

// Ticks returns how many full ticks have run.
func (r *Runner) Ticks() uint64 { return r.ticks }

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	start := time.Now()
	for _, s := range r.systems {
		r.update(s, dt)
	}
	r.ticks++
	if r.budget > 0 {
		if took := time.Since(start); took > r.budget {
			r.log.Warn("tick over budget",
				zap.Uint64("tick", r.ticks),
				zap.Duration("took", took),
				zap.Duration("budget", r.budget),
			)
		}
	}
}

// TickPhase runs only the systems registered for phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			r.update(s, dt)
		}
	}
}

func (r *Runner) update(s System, dt time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("system panic recovered",
				zap.String("phase", s.Phase().String()),
				zap.Any("panic", rec),
			)
		}
	}()
	s.Update(dt)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
