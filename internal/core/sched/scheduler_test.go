package sched

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestScheduler() (*Scheduler, *ManualClock) {
	clock := NewManualClock(time.Unix(1_700_000_000, 0))
	return New(clock, zap.NewNop()), clock
}

func TestAfterFiresOnce(t *testing.T) {
	s, clock := newTestScheduler()
	count := 0
	s.After(100*time.Millisecond, "once", func() { count++ })

	clock.Add(99 * time.Millisecond)
	s.RunDue()
	if count != 0 {
		t.Fatalf("fired early")
	}
	clock.Add(time.Millisecond)
	s.RunDue()
	clock.Add(time.Second)
	s.RunDue()
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if s.Len() != 0 {
		t.Fatalf("one-shot timer still pending")
	}
}

func TestEveryCoalescesLateTicks(t *testing.T) {
	s, clock := newTestScheduler()
	count := 0
	s.Every(100*time.Millisecond, "tick", func() { count++ })

	clock.Add(time.Second)
	if ran := s.RunDue(); ran != 1 {
		t.Fatalf("ran = %d, want 1 coalesced firing", ran)
	}
	clock.Add(100 * time.Millisecond)
	s.RunDue()
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestSameDueFiresInRegistrationOrder(t *testing.T) {
	s, clock := newTestScheduler()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.After(50*time.Millisecond, name, func() { order = append(order, name) })
	}
	clock.Add(50 * time.Millisecond)
	s.RunDue()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("order = %v", order)
	}
}

func TestCancelInsideBody(t *testing.T) {
	s, clock := newTestScheduler()
	count := 0
	var id TimerID
	id = s.Every(10*time.Millisecond, "self-cancel", func() {
		count++
		s.Cancel(id)
	})
	for i := 0; i < 5; i++ {
		clock.Add(10 * time.Millisecond)
		s.RunDue()
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if s.Active(id) {
		t.Fatal("timer still active after cancel")
	}
}

func TestResetPostpones(t *testing.T) {
	s, clock := newTestScheduler()
	fired := false
	id := s.After(100*time.Millisecond, "stun", func() { fired = true })
	clock.Add(80 * time.Millisecond)
	s.Reset(id, 100*time.Millisecond)
	clock.Add(80 * time.Millisecond)
	s.RunDue()
	if fired {
		t.Fatal("fired before reset deadline")
	}
	clock.Add(20 * time.Millisecond)
	s.RunDue()
	if !fired {
		t.Fatal("did not fire after reset deadline")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	s, clock := newTestScheduler()
	after := false
	s.After(time.Millisecond, "boom", func() { panic("plugin failure") })
	s.After(time.Millisecond, "next", func() { after = true })
	clock.Add(time.Millisecond)
	s.RunDue()
	if !after {
		t.Fatal("timer after a panicking timer did not run")
	}
}
