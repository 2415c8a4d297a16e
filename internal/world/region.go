package world

import (
	"fmt"
	"sort"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
)

// RegionID names a zone. Owner is zero for the public world and the
// owning player's instance for a private copy.
type RegionID struct {
	X, Y  int
	Owner ecs.EntityID
}

// Public strips the instance owner.
func (id RegionID) Public() RegionID { return RegionID{X: id.X, Y: id.Y} }

func (id RegionID) String() string {
	if id.Owner.IsZero() {
		return fmt.Sprintf("%d-%d", id.X, id.Y)
	}
	return fmt.Sprintf("%d-%d-%s", id.X, id.Y, id.Owner)
}

// Region holds the entities whose position falls inside it, the entities
// visible from it (everything inside its surrounding regions), the players
// exactly inside it, and the entities that entered since the last drain.
type Region struct {
	ID       RegionID
	entities map[ecs.EntityID]*Entity
	visible  map[ecs.EntityID]*Entity
	players  map[ecs.EntityID]*Entity
	incoming []*Entity
	queued   bool
	dead     bool
}

func newRegion(id RegionID) *Region {
	return &Region{
		ID:       id,
		entities: make(map[ecs.EntityID]*Entity),
		visible:  make(map[ecs.EntityID]*Entity),
		players:  make(map[ecs.EntityID]*Entity),
	}
}

func (r *Region) Entities() []*Entity { return sorted(r.entities, nil) }
func (r *Region) Visible() []*Entity  { return sorted(r.visible, nil) }
func (r *Region) Players() []*Entity  { return sorted(r.players, nil) }

func (r *Region) HasEntity(id ecs.EntityID) bool {
	_, ok := r.entities[id]
	return ok
}

func (r *Region) IsVisible(id ecs.EntityID) bool {
	_, ok := r.visible[id]
	return ok
}

func (r *Region) HasPlayer(id ecs.EntityID) bool {
	_, ok := r.players[id]
	return ok
}

func (r *Region) PlayerCount() int { return len(r.players) }
func (r *Region) Incoming() int    { return len(r.incoming) }

// Regions partitions the map into fixed-size zones and scopes broadcasts.
// Accessed only from the game loop goroutine.
type Regions struct {
	zoneW, zoneH int
	cols, rows   int
	offset       int

	public    []*Region
	shadows   map[RegionID]*Region
	instances map[ecs.EntityID]map[RegionID]struct{}
	doors     map[RegionID][]RegionID
	pending   []*Region
}

// NewRegions partitions a width x height map into zoneW x zoneH regions.
// offset is the vertical reach of a neighbourhood.
func NewRegions(width, height, zoneW, zoneH, offset int) *Regions {
	cols := (width + zoneW - 1) / zoneW
	rows := (height + zoneH - 1) / zoneH
	r := &Regions{
		zoneW:     zoneW,
		zoneH:     zoneH,
		cols:      cols,
		rows:      rows,
		offset:    max(offset, 1),
		public:    make([]*Region, cols*rows),
		shadows:   make(map[RegionID]*Region),
		instances: make(map[ecs.EntityID]map[RegionID]struct{}),
		doors:     make(map[RegionID][]RegionID),
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r.public[y*cols+x] = newRegion(RegionID{X: x, Y: y})
		}
	}
	return r
}

func (r *Regions) Columns() int { return r.cols }
func (r *Regions) Rows() int    { return r.rows }
func (r *Regions) Offset() int  { return r.offset }

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// IDFromPosition returns the public region containing (x, y). The id may
// be out of bounds; Get then returns nil.
func (r *Regions) IDFromPosition(x, y int) RegionID {
	return RegionID{X: floorDiv(x, r.zoneW), Y: floorDiv(y, r.zoneH)}
}

// Coordinates returns the top-left tile of id.
func (r *Regions) Coordinates(id RegionID) (x, y int) {
	return id.X * r.zoneW, id.Y * r.zoneH
}

func (r *Regions) InBounds(id RegionID) bool {
	return id.X >= 0 && id.Y >= 0 && id.X < r.cols && id.Y < r.rows
}

// Get returns the region for id or nil if it does not exist.
func (r *Regions) Get(id RegionID) *Region {
	if !id.Owner.IsZero() {
		return r.shadows[id]
	}
	if !r.InBounds(id) {
		return nil
	}
	return r.public[id.Y*r.cols+id.X]
}

func (r *Regions) exists(id RegionID) bool { return r.Get(id) != nil }

// LinkDoor makes a and b adjacent in both directions.
func (r *Regions) LinkDoor(a, b RegionID) {
	a, b = a.Public(), b.Public()
	if a == b || !r.InBounds(a) || !r.InBounds(b) {
		return
	}
	r.doors[a] = appendUnique(r.doors[a], b)
	r.doors[b] = appendUnique(r.doors[b], a)
}

// LinkDoorTiles links the regions of a door tile and its destination.
func (r *Regions) LinkDoorTiles(x, y, toX, toY int) {
	r.LinkDoor(r.IDFromPosition(x, y), r.IDFromPosition(toX, toY))
}

// Surrounding returns the neighbourhood of id: columns -1..1, rows
// -offset..offset, plus door-linked regions. Ids that do not exist are
// left out; an absent id yields nothing.
func (r *Regions) Surrounding(id RegionID, offset int) []RegionID {
	if !r.exists(id) {
		return nil
	}
	out := make([]RegionID, 0, 9)
	for dy := -offset; dy <= offset; dy++ {
		for dx := -1; dx <= 1; dx++ {
			n := RegionID{X: id.X + dx, Y: id.Y + dy, Owner: id.Owner}
			if r.exists(n) {
				out = append(out, n)
			}
		}
	}
	for _, d := range r.doors[id.Public()] {
		d.Owner = id.Owner
		if r.exists(d) {
			out = appendUnique(out, d)
		}
	}
	return out
}

// Neighbourhood is Surrounding with the configured offset.
func (r *Regions) Neighbourhood(id RegionID) []RegionID {
	return r.Surrounding(id, r.offset)
}

// Handle places e in the region matching its position, or explicit when
// given. It reports whether the region changed. On a change e is removed
// from every old surrounding region, added to the new ones, and queued as
// incoming in its new region.
func (r *Regions) Handle(e *Entity, explicit *RegionID) bool {
	var id RegionID
	if explicit != nil {
		id = *explicit
	} else {
		id = r.IDFromPosition(e.X, e.Y)
		id.Owner = e.InstanceOwner
	}
	if !id.Owner.IsZero() && !r.exists(id) {
		r.extendInstance(id)
	}
	if e.HasRegion && e.Region == id {
		return false
	}
	if !r.exists(id) {
		if e.HasRegion {
			e.OldRegions = r.Remove(e)
		}
		return false
	}
	old := r.Remove(e)
	now := r.Add(e, id)
	e.OldRegions = difference(old, now)
	r.queueIncoming(r.Get(id), e)
	return true
}

// Add puts e into region id and its neighbourhood's visible sets, and
// returns that neighbourhood. Adding to the current region is a no-op.
func (r *Regions) Add(e *Entity, id RegionID) []RegionID {
	reg := r.Get(id)
	if reg == nil {
		return nil
	}
	if e.HasRegion {
		if e.Region == id {
			return r.Neighbourhood(id)
		}
		r.Remove(e)
	}
	reg.entities[e.Instance] = e
	if e.IsPlayer() {
		reg.players[e.Instance] = e
	}
	around := r.Neighbourhood(id)
	for _, s := range around {
		r.Get(s).visible[e.Instance] = e
	}
	e.Region = id
	e.HasRegion = true
	return around
}

// Remove takes e out of its region and the surrounding visible sets, and
// returns the regions it was visible in. Removing twice is a no-op.
func (r *Regions) Remove(e *Entity) []RegionID {
	if !e.HasRegion {
		return nil
	}
	e.HasRegion = false
	reg := r.Get(e.Region)
	if reg == nil {
		return nil
	}
	delete(reg.entities, e.Instance)
	delete(reg.players, e.Instance)
	for i, in := range reg.incoming {
		if in.Instance == e.Instance {
			reg.incoming = append(reg.incoming[:i], reg.incoming[i+1:]...)
			break
		}
	}
	around := r.Neighbourhood(e.Region)
	for _, s := range around {
		delete(r.Get(s).visible, e.Instance)
	}
	return around
}

func (r *Regions) queueIncoming(reg *Region, e *Entity) {
	reg.incoming = append(reg.incoming, e)
	if !reg.queued {
		reg.queued = true
		r.pending = append(r.pending, reg)
	}
}

// DrainIncoming calls fn for every entity that entered a region since the
// last drain, then empties the queues. Entities queued by fn are kept for
// the next drain.
func (r *Regions) DrainIncoming(fn func(id RegionID, e *Entity)) int {
	batch := r.pending
	r.pending = nil
	n := 0
	for _, reg := range batch {
		list := reg.incoming
		reg.incoming = nil
		reg.queued = false
		if reg.dead {
			continue
		}
		for _, e := range list {
			fn(reg.ID, e)
			n++
		}
	}
	return n
}

// ForEachPlayer visits the players exactly inside each of ids.
func (r *Regions) ForEachPlayer(ids []RegionID, fn func(*Entity)) {
	for _, id := range ids {
		if reg := r.Get(id); reg != nil {
			for _, p := range reg.Players() {
				fn(p)
			}
		}
	}
}

// CreateInstance gives player p a private copy of its neighbourhood and
// moves p into it. It returns the public regions p was visible in, so the
// caller can despawn p there.
func (r *Regions) CreateInstance(p *Entity) []RegionID {
	owner := p.Instance
	if _, ok := r.instances[owner]; ok {
		return nil
	}
	center := r.IDFromPosition(p.X, p.Y)
	if !r.InBounds(center) {
		return nil
	}
	r.instances[owner] = make(map[RegionID]struct{}, 9)
	shadow := center
	shadow.Owner = owner
	r.extendInstance(shadow)

	left := r.Remove(p)
	p.InstanceOwner = owner
	r.Handle(p, nil)
	p.OldRegions = left
	return left
}

// extendInstance builds the shadow regions around id that do not exist
// yet and back-fills their visible sets.
func (r *Regions) extendInstance(id RegionID) {
	set, ok := r.instances[id.Owner]
	if !ok || !r.InBounds(id.Public()) {
		return
	}
	var created []*Region
	for _, pub := range r.Surrounding(id.Public(), r.offset) {
		sid := pub
		sid.Owner = id.Owner
		if _, ok := r.shadows[sid]; ok {
			continue
		}
		reg := newRegion(sid)
		r.shadows[sid] = reg
		set[sid] = struct{}{}
		created = append(created, reg)
	}
	for _, reg := range created {
		for _, s := range r.Neighbourhood(reg.ID) {
			for iid, e := range r.Get(s).entities {
				reg.visible[iid] = e
			}
		}
	}
}

// DeleteInstance tears down p's private regions and returns p to the
// public world. It returns the other entities that were left inside the
// instance; they no longer belong to any region.
func (r *Regions) DeleteInstance(p *Entity) []*Entity {
	owner := p.Instance
	set, ok := r.instances[owner]
	if !ok {
		return nil
	}
	if p.HasRegion && p.Region.Owner == owner {
		r.Remove(p)
	}
	var orphans []*Entity
	for sid := range set {
		reg := r.shadows[sid]
		for _, e := range reg.entities {
			e.HasRegion = false
			orphans = append(orphans, e)
		}
		reg.dead = true
		reg.incoming = nil
		delete(r.shadows, sid)
	}
	delete(r.instances, owner)
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Instance < orphans[j].Instance })

	p.InstanceOwner = 0
	p.OldRegions = nil
	r.Handle(p, nil)
	return orphans
}

// HasInstance reports whether owner has a private copy.
func (r *Regions) HasInstance(owner ecs.EntityID) bool {
	_, ok := r.instances[owner]
	return ok
}

// InstanceSize returns how many shadow regions owner has.
func (r *Regions) InstanceSize(owner ecs.EntityID) int {
	return len(r.instances[owner])
}

func appendUnique(list []RegionID, id RegionID) []RegionID {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

// difference returns the ids in a that are not in b.
func difference(a, b []RegionID) []RegionID {
	var out []RegionID
	for _, id := range a {
		found := false
		for _, o := range b {
			if o == id {
				found = true
				break
			}
		}
		if !found {
			out = append(out, id)
		}
	}
	return out
}
