package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain session queues and posted callbacks
	PhasePreUpdate               // 1: deliver last tick's events
	PhaseUpdate                  // 2: due timers (combat loops, regrowth, heartbeat)
	PhasePostUpdate              // 3: region incoming spawns
	PhaseOutput                  // 4: flush session buffers
	PhasePersist                 // 5: queue dirty player saves
	PhaseCleanup                 // 6: reclaim retired entity ids
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every per-tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
