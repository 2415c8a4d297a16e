package world

import (
	"math/rand"
	"testing"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
)

func newTestState() *State {
	return NewState(ecs.NewWorld(), 100, 100, 25, 25, 1)
}

// coreRegions counts the public regions whose core set holds id.
func coreRegions(s *State, id ecs.EntityID) int {
	n := 0
	for y := 0; y < s.Regions.Rows(); y++ {
		for x := 0; x < s.Regions.Columns(); x++ {
			if s.Regions.Get(RegionID{X: x, Y: y}).HasEntity(id) {
				n++
			}
		}
	}
	return n
}

func TestSetPositionKeepsIndexesInSync(t *testing.T) {
	s := newTestState()
	m := &Mob{}
	m.Instance = s.NewInstance()
	m.Kind = KindMob
	m.X, m.Y = 10, 10
	s.AddMob(m)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		m.SetPosition(rng.Intn(100), rng.Intn(100))

		cells := 0
		for y := 0; y < 100; y++ {
			for x := 0; x < 100; x++ {
				if s.Grid.Contains(&m.Entity, x, y) {
					cells++
				}
			}
		}
		if cells != 1 || !s.Grid.Contains(&m.Entity, m.X, m.Y) {
			t.Fatalf("step %d: grid cells = %d at %d,%d", i, cells, m.X, m.Y)
		}
		if n := coreRegions(s, m.Instance); n != 1 {
			t.Fatalf("step %d: in %d region core sets", i, n)
		}
		want := s.Regions.IDFromPosition(m.X, m.Y)
		if m.Region != want {
			t.Fatalf("step %d: region %v, want %v", i, m.Region, want)
		}
		for y := 0; y < s.Regions.Rows(); y++ {
			for x := 0; x < s.Regions.Columns(); x++ {
				id := RegionID{X: x, Y: y}
				vis := s.Regions.Get(id).IsVisible(m.Instance)
				if vis != containsID(s.Regions.Neighbourhood(want), id) {
					t.Fatalf("step %d: visibility of %v wrong", i, id)
				}
			}
		}
	}
}

func TestRemoveReleasesEverything(t *testing.T) {
	ew := ecs.NewWorld()
	s := NewState(ew, 50, 50, 25, 25, 1)
	p := NewPlayer("Alice")
	p.Instance = s.NewInstance()
	p.X, p.Y = 3, 3
	s.AddPlayer(p)

	if s.PlayerByName("ALICE") != p {
		t.Fatal("name lookup is not case-insensitive")
	}
	if s.Remove(p.Instance) == nil {
		t.Fatal("remove returned nil")
	}
	if s.Remove(p.Instance) != nil {
		t.Fatal("second remove found entity")
	}
	if s.Player(p.Instance) != nil || s.Character(p.Instance) != nil || s.PlayerByName("alice") != nil {
		t.Fatal("tables still hold player")
	}
	if coreRegions(s, p.Instance) != 0 || len(s.Grid.Cell(3, 3)) != 0 {
		t.Fatal("indexes still hold player")
	}
	ew.Reclaim()
	if ew.Alive(p.Instance) {
		t.Fatal("instance id not released")
	}
}

func TestContainerLoadCorrectsSize(t *testing.T) {
	c := NewContainer("inventory", 4)
	if c.Load([]Slot{{Key: "sword", Count: 1}}) {
		t.Fatal("short data reported as matching")
	}
	if c.Size() != 4 || c.Count("sword") != 1 {
		t.Fatal("container not padded")
	}
	if err := c.Add("coins", 5, true); err != nil {
		t.Fatal(err)
	}
	if err := c.Add("coins", 5, true); err != nil || c.Count("coins") != 10 || c.FreeSlots() != 2 {
		t.Fatal("stackable add did not stack")
	}
	if err := c.Add("arrow", 3, false); err != ErrNoSpace {
		t.Fatalf("err = %v, want ErrNoSpace", err)
	}
	if c.FreeSlots() != 2 {
		t.Fatal("failed add mutated the container")
	}
	if !c.Remove("coins", 10) || c.Count("coins") != 0 {
		t.Fatal("remove failed")
	}
}
