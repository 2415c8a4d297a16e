package ecs

// World ties the id pool to the component stores that hang off it.
//
// Retire detaches an entity from every store at once, but its id is only
// handed back to the pool by Reclaim at the end of the tick. Until then the
// old id still reports Alive, so targets and attacker lists resolved
// earlier in the same tick keep pointing at nothing rather than at a
// newcomer reusing the slot.
type World struct {
	ids     *EntityPool
	stores  []Removable
	retired []EntityID
}

func NewWorld() *World {
	return &World{
		ids:     NewEntityPool(),
		retired: make([]EntityID, 0, 64),
	}
}

// NewStore creates a component store whose rows are dropped when an
// entity of w is retired.
func NewStore[T any](w *World) *PtrComponentStore[T] {
	s := NewPtrComponentStore[T]()
	w.stores = append(w.stores, s)
	return s
}

func (w *World) Spawn() EntityID        { return w.ids.Create() }
func (w *World) Alive(id EntityID) bool { return w.ids.Alive(id) }
func (w *World) Live() int              { return w.ids.Live() }

// Retire removes id from every store and queues the id for Reclaim.
// Retiring an id twice in one tick is harmless.
func (w *World) Retire(id EntityID) {
	for _, s := range w.stores {
		s.Remove(id)
	}
	w.retired = append(w.retired, id)
}

// Retiring reports how many ids wait for Reclaim.
func (w *World) Retiring() int { return len(w.retired) }

// Reclaim returns every retired id to the pool.
func (w *World) Reclaim() {
	for _, id := range w.retired {
		w.ids.Destroy(id)
	}
	w.retired = w.retired[:0]
}
