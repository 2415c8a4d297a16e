package ecs

import "sort"

// Removable is what World needs from a store to retire an entity.
type Removable interface {
	Remove(id EntityID)
}

// PtrComponentStore is a typed map from entity id to component pointer.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

// Lookup is Get without the ok flag; a missing id yields nil.
func (s *PtrComponentStore[T]) Lookup(id EntityID) *T {
	return s.data[id]
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

// Each visits every component. fn must not add to or remove from the store.
func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// Sorted returns the components ordered by id, for callers that mutate
// the store while walking it or need a stable order.
func (s *PtrComponentStore[T]) Sorted() []*T {
	ids := make([]EntityID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*T, len(ids))
	for i, id := range ids {
		out[i] = s.data[id]
	}
	return out
}
