package ecs

import "testing"

func TestPoolNeverIssuesZero(t *testing.T) {
	p := NewEntityPool()
	for i := 0; i < 10; i++ {
		if id := p.Create(); id.IsZero() {
			t.Fatalf("issued zero id on create %d", i)
		}
	}
}

func TestStaleIDAfterDestroy(t *testing.T) {
	p := NewEntityPool()
	id := p.Create()
	p.Destroy(id)
	if p.Alive(id) {
		t.Fatal("destroyed id still alive")
	}
	reused := p.Create()
	if reused.Index() != id.Index() {
		t.Fatalf("free list not reused: %s vs %s", reused, id)
	}
	if reused == id || p.Alive(id) {
		t.Fatal("stale id resolves after index reuse")
	}
	p.Destroy(id) // stale destroy must not free the new occupant
	if !p.Alive(reused) {
		t.Fatal("stale destroy killed the new occupant")
	}
}

func TestRetireThenReclaim(t *testing.T) {
	w := NewWorld()
	names := NewStore[string](w)
	id := w.Spawn()
	name := "rat"
	names.Set(id, &name)

	w.Retire(id)
	if names.Has(id) {
		t.Fatal("store still holds retired entity")
	}
	if !w.Alive(id) || w.Retiring() != 1 {
		t.Fatal("id released before reclaim")
	}
	w.Reclaim()
	if w.Alive(id) || w.Retiring() != 0 || w.Live() != 0 {
		t.Fatal("reclaim left id behind")
	}
	if next := w.Spawn(); next == id {
		t.Fatal("reused id kept its generation")
	}
}

func TestSortedOrder(t *testing.T) {
	s := NewPtrComponentStore[int]()
	for i := 5; i > 0; i-- {
		v := i
		s.Set(EntityID(i), &v)
	}
	got := s.Sorted()
	for i, v := range got {
		if *v != i+1 {
			t.Fatalf("Sorted()[%d] = %d", i, *v)
		}
	}
}
