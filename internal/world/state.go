package world

import (
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
)

// State owns every entity table plus the Grid and Regions that index
// them. Entities are keyed by their generational instance id.
// Accessed only from the game loop goroutine; no locks.
type State struct {
	ecs *ecs.World

	entities    *ecs.PtrComponentStore[Entity]
	characters  *ecs.PtrComponentStore[Character]
	players     *ecs.PtrComponentStore[Player]
	mobs        *ecs.PtrComponentStore[Mob]
	npcs        *ecs.PtrComponentStore[NPC]
	items       *ecs.PtrComponentStore[Item]
	chests      *ecs.PtrComponentStore[Chest]
	projectiles *ecs.PtrComponentStore[Projectile]

	byName map[string]*Player

	Grid    *Grid
	Regions *Regions
}

func NewState(ew *ecs.World, width, height, zoneW, zoneH, offset int) *State {
	return &State{
		ecs:         ew,
		entities:    ecs.NewStore[Entity](ew),
		characters:  ecs.NewStore[Character](ew),
		players:     ecs.NewStore[Player](ew),
		mobs:        ecs.NewStore[Mob](ew),
		npcs:        ecs.NewStore[NPC](ew),
		items:       ecs.NewStore[Item](ew),
		chests:      ecs.NewStore[Chest](ew),
		projectiles: ecs.NewStore[Projectile](ew),
		byName:      make(map[string]*Player, 64),
		Grid:        NewGrid(width, height),
		Regions:     NewRegions(width, height, zoneW, zoneH, offset),
	}
}

// NewInstance reserves a fresh instance id.
func (s *State) NewInstance() ecs.EntityID {
	return s.ecs.Spawn()
}

func (s *State) AddPlayer(p *Player) {
	s.players.Set(p.Instance, p)
	s.characters.Set(p.Instance, &p.Character)
	s.byName[NormalizeName(p.Username)] = p
	s.place(&p.Entity)
}

func (s *State) AddMob(m *Mob) {
	s.mobs.Set(m.Instance, m)
	s.characters.Set(m.Instance, &m.Character)
	s.place(&m.Entity)
}

func (s *State) AddNPC(n *NPC) {
	s.npcs.Set(n.Instance, n)
	s.place(&n.Entity)
}

func (s *State) AddItem(i *Item) {
	s.items.Set(i.Instance, i)
	s.place(&i.Entity)
}

func (s *State) AddChest(c *Chest) {
	s.chests.Set(c.Instance, c)
	s.place(&c.Entity)
}

func (s *State) AddProjectile(p *Projectile) {
	s.projectiles.Set(p.Instance, p)
	s.place(&p.Entity)
}

// place indexes e in the entity table, the Grid and the Regions, and
// installs the observer that keeps both indexes in sync with its position.
func (s *State) place(e *Entity) {
	s.entities.Set(e.Instance, e)
	e.observers = append([]MoveObserver{s.sync}, e.observers...)
	s.Grid.Add(e, e.X, e.Y)
	e.regionChanged = s.Regions.Handle(e, nil)
}

func (s *State) sync(e *Entity) {
	s.Grid.UpdatePosition(e)
	e.regionChanged = s.Regions.Handle(e, nil)
}

// Remove detaches the entity from every table and index. Its id is
// released at the end of the tick. Returns nil if id is unknown.
func (s *State) Remove(id ecs.EntityID) *Entity {
	e := s.entities.Lookup(id)
	if e == nil {
		return nil
	}
	if p := s.players.Lookup(id); p != nil {
		delete(s.byName, NormalizeName(p.Username))
	}
	s.Grid.Delete(e)
	s.Regions.Remove(e)
	s.ecs.Retire(id)
	e.ClearObservers()
	return e
}

func (s *State) Entity(id ecs.EntityID) *Entity          { return s.entities.Lookup(id) }
func (s *State) Character(id ecs.EntityID) *Character    { return s.characters.Lookup(id) }
func (s *State) Player(id ecs.EntityID) *Player          { return s.players.Lookup(id) }
func (s *State) Mob(id ecs.EntityID) *Mob                { return s.mobs.Lookup(id) }
func (s *State) NPC(id ecs.EntityID) *NPC                { return s.npcs.Lookup(id) }
func (s *State) Item(id ecs.EntityID) *Item              { return s.items.Lookup(id) }
func (s *State) Chest(id ecs.EntityID) *Chest            { return s.chests.Lookup(id) }
func (s *State) Projectile(id ecs.EntityID) *Projectile  { return s.projectiles.Lookup(id) }

// PlayerByName finds an online player, ignoring case.
func (s *State) PlayerByName(name string) *Player {
	return s.byName[NormalizeName(name)]
}

func (s *State) Players() []*Player { return s.players.Sorted() }
func (s *State) Mobs() []*Mob       { return s.mobs.Sorted() }
func (s *State) Items() []*Item     { return s.items.Sorted() }

func (s *State) PlayerCount() int { return s.players.Len() }
func (s *State) MobCount() int    { return s.mobs.Len() }
func (s *State) EntityCount() int { return s.entities.Len() }

// EachPlayer visits online players in no particular order.
func (s *State) EachPlayer(fn func(*Player)) {
	s.players.Each(func(_ ecs.EntityID, p *Player) { fn(p) })
}
