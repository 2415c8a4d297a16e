package world

import (
	"testing"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
)

func containsID(ids []RegionID, id RegionID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestRegionIDFromPosition(t *testing.T) {
	r := NewRegions(100, 100, 25, 25, 1)
	cases := []struct {
		x, y int
		want RegionID
	}{
		{0, 0, RegionID{0, 0, 0}},
		{24, 24, RegionID{0, 0, 0}},
		{25, 24, RegionID{1, 0, 0}},
		{99, 50, RegionID{3, 2, 0}},
	}
	for _, tc := range cases {
		if got := r.IDFromPosition(tc.x, tc.y); got != tc.want {
			t.Errorf("IDFromPosition(%d,%d) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
	if x, y := r.Coordinates(RegionID{X: 2, Y: 3}); x != 50 || y != 75 {
		t.Errorf("Coordinates = %d,%d", x, y)
	}
	if r.Get(r.IDFromPosition(-1, 0)) != nil || r.Get(RegionID{X: 4}) != nil {
		t.Error("out-of-bounds region resolved")
	}
	if r.Surrounding(RegionID{X: 9, Y: 9}, 1) != nil {
		t.Error("absent region has neighbours")
	}
}

func TestSurroundingSymmetry(t *testing.T) {
	r := NewRegions(200, 150, 25, 25, 1)
	r.LinkDoor(RegionID{X: 0, Y: 0}, RegionID{X: 7, Y: 5})

	for y := 0; y < r.Rows(); y++ {
		for x := 0; x < r.Columns(); x++ {
			id := RegionID{X: x, Y: y}
			around := r.Surrounding(id, 1)
			if !containsID(around, id) {
				t.Fatalf("%v not in its own neighbourhood", id)
			}
			seen := map[RegionID]bool{}
			for _, s := range around {
				if seen[s] {
					t.Fatalf("%v listed twice around %v", s, id)
				}
				seen[s] = true
				if !containsID(r.Surrounding(s, 1), id) {
					t.Fatalf("%v sees %v but not the reverse", id, s)
				}
			}
		}
	}
	if !containsID(r.Surrounding(RegionID{X: 7, Y: 5}, 1), RegionID{}) {
		t.Fatal("door link missing")
	}
}

func TestSurroundingHeightOffset(t *testing.T) {
	r := NewRegions(100, 200, 25, 25, 2)
	around := r.Surrounding(RegionID{X: 1, Y: 3}, 2)
	if len(around) != 15 {
		t.Fatalf("len = %d, want 3 columns x 5 rows", len(around))
	}
}

func TestHandleMovesBetweenRegions(t *testing.T) {
	r := NewRegions(100, 100, 25, 25, 1)
	p := &Entity{Instance: 1, Kind: KindPlayer, X: 5, Y: 5}

	if !r.Handle(p, nil) {
		t.Fatal("first handle should report a change")
	}
	if r.Handle(p, nil) {
		t.Fatal("handle without movement reported a change")
	}
	home := r.Get(RegionID{})
	if !home.HasEntity(1) || !home.HasPlayer(1) || home.Incoming() != 1 {
		t.Fatal("player not tracked in its region")
	}

	p.X = 80 // region (3,0)
	if !r.Handle(p, nil) {
		t.Fatal("crossing regions not reported")
	}
	if home.HasEntity(1) || home.HasPlayer(1) || home.IsVisible(1) {
		t.Fatal("stale membership in old region")
	}
	if home.Incoming() != 0 {
		t.Fatal("entity left in old incoming queue")
	}
	if !containsID(p.OldRegions, RegionID{}) || containsID(p.OldRegions, RegionID{X: 2}) {
		t.Fatalf("OldRegions = %v", p.OldRegions)
	}
	if !r.Get(RegionID{X: 2}).IsVisible(1) {
		t.Fatal("not visible from neighbouring region")
	}
}

func TestAddRemoveIdempotent(t *testing.T) {
	r := NewRegions(100, 100, 25, 25, 1)
	e := &Entity{Instance: 3, Kind: KindMob}
	r.Add(e, RegionID{X: 1, Y: 1})
	r.Add(e, RegionID{X: 1, Y: 1})
	count := 0
	for y := 0; y < r.Rows(); y++ {
		for x := 0; x < r.Columns(); x++ {
			if r.Get(RegionID{X: x, Y: y}).HasEntity(3) {
				count++
			}
		}
	}
	if count != 1 {
		t.Fatalf("entity in %d core sets", count)
	}
	r.Remove(e)
	r.Remove(e)
	if r.Get(RegionID{X: 1, Y: 1}).HasEntity(3) || r.Get(RegionID{X: 0, Y: 0}).IsVisible(3) {
		t.Fatal("entity still present after remove")
	}
}

func TestDrainIncomingOncePerEntity(t *testing.T) {
	r := NewRegions(100, 100, 25, 25, 1)
	for i := 1; i <= 3; i++ {
		e := &Entity{Instance: ecs.EntityID(i), Kind: KindMob, X: i * 30, Y: 0}
		r.Handle(e, nil)
	}
	seen := map[ecs.EntityID]int{}
	n := r.DrainIncoming(func(_ RegionID, e *Entity) { seen[e.Instance]++ })
	if n != 3 || len(seen) != 3 {
		t.Fatalf("drained %d, seen %v", n, seen)
	}
	if r.DrainIncoming(func(RegionID, *Entity) { t.Fatal("second drain delivered") }) != 0 {
		t.Fatal("queue not emptied")
	}
}

func TestInstanceIsolation(t *testing.T) {
	r := NewRegions(100, 100, 25, 25, 1)
	owner := &Entity{Instance: 10, Kind: KindPlayer, X: 30, Y: 30}
	other := &Entity{Instance: 11, Kind: KindPlayer, X: 31, Y: 30}
	r.Handle(owner, nil)
	r.Handle(other, nil)
	r.DrainIncoming(func(RegionID, *Entity) {})

	left := r.CreateInstance(owner)
	if len(left) != 9 {
		t.Fatalf("left %d public regions, want 9", len(left))
	}
	if r.InstanceSize(owner.Instance) != 9 {
		t.Fatalf("instance has %d regions", r.InstanceSize(owner.Instance))
	}
	if owner.Region.Owner != owner.Instance {
		t.Fatal("owner not moved into its instance")
	}
	public := r.Get(RegionID{X: 1, Y: 1})
	if public.HasPlayer(owner.Instance) || public.IsVisible(owner.Instance) {
		t.Fatal("instanced player leaks into public region")
	}

	boss := &Entity{Instance: 12, Kind: KindMob, X: 32, Y: 32, InstanceOwner: owner.Instance}
	r.Handle(boss, nil)
	if public.IsVisible(boss.Instance) {
		t.Fatal("instanced mob visible publicly")
	}
	shadow := r.Get(RegionID{X: 1, Y: 1, Owner: owner.Instance})
	if !shadow.IsVisible(boss.Instance) || shadow.IsVisible(other.Instance) {
		t.Fatal("shadow region visibility wrong")
	}

	orphans := r.DeleteInstance(owner)
	if len(orphans) != 1 || orphans[0] != boss {
		t.Fatalf("orphans = %v", orphans)
	}
	if r.HasInstance(owner.Instance) || owner.InstanceOwner != 0 {
		t.Fatal("instance not torn down")
	}
	if !public.HasPlayer(owner.Instance) {
		t.Fatal("owner not returned to public region")
	}
}
