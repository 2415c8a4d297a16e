package event

import (
	"testing"

	"go.uber.org/zap"
)

type ping struct{ n int }

func TestEventsDeliveredNextTick(t *testing.T) {
	b := NewBus(zap.NewNop())
	var got []int
	Subscribe(b, func(p ping) { got = append(got, p.n) })

	Emit(b, ping{n: 1})
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatal("event delivered in the tick it was emitted")
	}
	b.SwapBuffers()
	if n := b.DispatchAll(); n != 1 {
		t.Fatalf("dispatched %d, want 1", n)
	}
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	b := NewBus(zap.NewNop())
	calls := 0
	Subscribe(b, func(ping) { panic("bad subscriber") })
	Subscribe(b, func(ping) { calls++ })
	Emit(b, ping{})
	Emit(b, ping{})
	b.SwapBuffers()
	b.DispatchAll()
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
