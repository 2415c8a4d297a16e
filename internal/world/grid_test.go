package world

import (
	"testing"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
)

func entityAt(id ecs.EntityID, x, y int) *Entity {
	return &Entity{Instance: id, Kind: KindMob, X: x, Y: y}
}

func TestGridSurroundingExcludesSelf(t *testing.T) {
	g := NewGrid(10, 10)
	a := entityAt(1, 5, 5)
	b := entityAt(2, 6, 6)
	c := entityAt(3, 9, 9)
	for _, e := range []*Entity{a, b, c} {
		g.Add(e, e.X, e.Y)
	}

	got := g.Surrounding(a, 1, false)
	if len(got) != 1 || got[0] != b {
		t.Fatalf("Surrounding = %v, want [b]", got)
	}
	got = g.Surrounding(a, 1, true)
	if len(got) != 2 || got[0] != a {
		t.Fatalf("Surrounding with self = %v", got)
	}
}

func TestGridOutOfBoundsIgnored(t *testing.T) {
	g := NewGrid(4, 4)
	e := entityAt(1, -1, 2)
	g.Add(e, e.X, e.Y)
	if g.Near(-1, 2, 3, nil) != nil {
		t.Fatal("query outside bounds returned entities")
	}
	g.Add(e, 10, 10)
	if len(g.Near(0, 0, 10, nil)) != 0 {
		t.Fatal("out-of-bounds add stored entity")
	}
}

func TestGridUpdatePositionSingleCell(t *testing.T) {
	g := NewGrid(10, 10)
	e := entityAt(1, 1, 1)
	g.Add(e, 1, 1)

	e.X, e.Y = 2, 1
	g.UpdatePosition(e)
	if g.Contains(e, 1, 1) || !g.Contains(e, 2, 1) {
		t.Fatal("entity not moved between cells")
	}
	g.UpdatePosition(e)
	if len(g.Cell(2, 1)) != 1 {
		t.Fatal("no-op update duplicated entity")
	}

	// Adding at a new spot without removing must not leave a copy behind.
	g.Add(e, 7, 7)
	if len(g.Cell(2, 1)) != 0 || len(g.Cell(7, 7)) != 1 {
		t.Fatal("entity occupies two cells")
	}
	g.Remove(e, 1, 1) // wrong cell, ignored
	if !g.Contains(e, 7, 7) {
		t.Fatal("remove from wrong cell evicted entity")
	}
}
