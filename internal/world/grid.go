package world

import (
	"sort"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
)

// Grid buckets entities by exact tile for proximity queries. It does not
// scope broadcasts; that is the Regions' job. Out-of-bounds coordinates
// are ignored. Accessed only from the game loop goroutine.
type Grid struct {
	width, height int
	cells         []map[ecs.EntityID]*Entity
	at            map[ecs.EntityID]int // entity -> cell index
}

func NewGrid(width, height int) *Grid {
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]map[ecs.EntityID]*Entity, width*height),
		at:     make(map[ecs.EntityID]int, 1024),
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

func (g *Grid) index(x, y int) int { return y*g.width + x }

// Add places e at (x, y). An entity already in another cell is moved, so
// it never occupies two cells.
func (g *Grid) Add(e *Entity, x, y int) {
	if !g.InBounds(x, y) {
		return
	}
	idx := g.index(x, y)
	if old, ok := g.at[e.Instance]; ok {
		if old == idx {
			return
		}
		g.removeAt(e.Instance, old)
	}
	cell := g.cells[idx]
	if cell == nil {
		cell = make(map[ecs.EntityID]*Entity, 2)
		g.cells[idx] = cell
	}
	cell[e.Instance] = e
	g.at[e.Instance] = idx
}

// Remove takes e out of (x, y) if it is there.
func (g *Grid) Remove(e *Entity, x, y int) {
	if !g.InBounds(x, y) {
		return
	}
	idx := g.index(x, y)
	if g.at[e.Instance] != idx {
		return
	}
	g.removeAt(e.Instance, idx)
}

// Delete takes e out of whatever cell holds it.
func (g *Grid) Delete(e *Entity) {
	if idx, ok := g.at[e.Instance]; ok {
		g.removeAt(e.Instance, idx)
	}
}

func (g *Grid) removeAt(id ecs.EntityID, idx int) {
	if cell := g.cells[idx]; cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			g.cells[idx] = nil
		}
	}
	delete(g.at, id)
}

// UpdatePosition moves e from its recorded cell to (e.X, e.Y). No-op if
// the cell did not change. Moving out of bounds drops it from the grid.
func (g *Grid) UpdatePosition(e *Entity) {
	if !g.InBounds(e.X, e.Y) {
		g.Delete(e)
		return
	}
	g.Add(e, e.X, e.Y)
}

// Contains reports whether e is at (x, y).
func (g *Grid) Contains(e *Entity, x, y int) bool {
	if !g.InBounds(x, y) {
		return false
	}
	idx, ok := g.at[e.Instance]
	return ok && idx == g.index(x, y)
}

// Cell returns the entities at (x, y) ordered by instance.
func (g *Grid) Cell(x, y int) []*Entity {
	if !g.InBounds(x, y) {
		return nil
	}
	return sorted(g.cells[g.index(x, y)], nil)
}

// Surrounding returns every entity within radius tiles (Chebyshev) of e,
// ordered by instance. e itself is left out unless includeSelf is set.
func (g *Grid) Surrounding(e *Entity, radius int, includeSelf bool) []*Entity {
	return g.Near(e.X, e.Y, radius, func(o *Entity) bool {
		return includeSelf || o.Instance != e.Instance
	})
}

// Near returns entities within radius of (x, y) that pass keep (nil keeps
// all), ordered by instance.
func (g *Grid) Near(x, y, radius int, keep func(*Entity) bool) []*Entity {
	if !g.InBounds(x, y) || radius < 0 {
		return nil
	}
	var out []*Entity
	for cy := max(0, y-radius); cy <= min(g.height-1, y+radius); cy++ {
		for cx := max(0, x-radius); cx <= min(g.width-1, x+radius); cx++ {
			for _, o := range g.cells[g.index(cx, cy)] {
				if keep == nil || keep(o) {
					out = append(out, o)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

func sorted(set map[ecs.EntityID]*Entity, skip func(*Entity) bool) []*Entity {
	out := make([]*Entity, 0, len(set))
	for _, e := range set {
		if skip != nil && skip(e) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}
