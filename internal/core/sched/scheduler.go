package sched

import (
	"container/heap"
	"time"

	"go.uber.org/zap"
)

// TimerID identifies a scheduled timer. Zero is never issued.
type TimerID uint64

type timer struct {
	id       TimerID
	name     string
	due      time.Time
	seq      uint64
	interval time.Duration // 0 = one-shot
	fn       func()
	index    int
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler is a min-heap of timers keyed by next fire time. All timer
// bodies run on the goroutine calling RunDue, one at a time. Timers that
// share a due time fire in registration order. A periodic timer that falls
// behind fires once and is rescheduled from the current time, so late
// ticks are coalesced instead of stacked.
//
// Accessed only from the game loop goroutine; no locks.
type Scheduler struct {
	clock  Clock
	heap   timerHeap
	timers map[TimerID]*timer
	nextID TimerID
	seq    uint64
	log    *zap.Logger
}

func New(clock Clock, log *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		heap:   make(timerHeap, 0, 256),
		timers: make(map[TimerID]*timer, 256),
		log:    log,
	}
}

// Now returns the scheduler clock's current time.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// After runs fn once, d from now.
func (s *Scheduler) After(d time.Duration, name string, fn func()) TimerID {
	return s.add(d, 0, name, fn)
}

// Every runs fn every interval, first firing one interval from now.
// Non-positive intervals are clamped to one millisecond.
func (s *Scheduler) Every(interval time.Duration, name string, fn func()) TimerID {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return s.add(interval, interval, name, fn)
}

func (s *Scheduler) add(d, interval time.Duration, name string, fn func()) TimerID {
	s.nextID++
	s.seq++
	t := &timer{
		id:       s.nextID,
		name:     name,
		due:      s.clock.Now().Add(d),
		seq:      s.seq,
		interval: interval,
		fn:       fn,
	}
	s.timers[t.id] = t
	heap.Push(&s.heap, t)
	return t.id
}

// Cancel stops a timer. Cancelling an unknown or finished timer is a no-op.
func (s *Scheduler) Cancel(id TimerID) bool {
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	if t.index >= 0 {
		heap.Remove(&s.heap, t.index)
	}
	return true
}

// Reset moves a pending timer's next fire time to d from now.
func (s *Scheduler) Reset(id TimerID, d time.Duration) bool {
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	s.seq++
	t.due = s.clock.Now().Add(d)
	t.seq = s.seq
	if t.index >= 0 {
		heap.Fix(&s.heap, t.index)
	}
	return true
}

// Active reports whether id is still scheduled.
func (s *Scheduler) Active(id TimerID) bool {
	_, ok := s.timers[id]
	return ok
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int { return len(s.timers) }

// RunDue fires every timer whose due time is at or before now and returns
// how many bodies ran.
func (s *Scheduler) RunDue() int {
	now := s.clock.Now()
	ran := 0
	for len(s.heap) > 0 {
		t := s.heap[0]
		if t.due.After(now) {
			break
		}
		heap.Pop(&s.heap)
		if t.interval > 0 {
			next := t.due.Add(t.interval)
			if !next.After(now) {
				next = now.Add(t.interval)
			}
			s.seq++
			t.due = next
			t.seq = s.seq
			heap.Push(&s.heap, t)
		} else {
			delete(s.timers, t.id)
		}
		s.call(t)
		ran++
	}
	return ran
}

func (s *Scheduler) call(t *timer) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("timer panic recovered",
				zap.String("timer", t.name),
				zap.Uint64("id", uint64(t.id)),
				zap.Any("panic", rec),
			)
		}
	}()
	t.fn()
}
