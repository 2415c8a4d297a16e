package system

import (
	"math/rand/v2"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/combat"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/config"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/event"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/sched"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/data"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

// Options carries everything NewWorld needs. Nil Clock, Rand, Codec, Bus,
// Strategies and Drops get defaults; Store may stay nil, in which case
// nothing is saved.
type Options struct {
	Config     *config.Config
	Map        *data.Map
	Mobs       *data.MobTable
	Items      *data.ItemTable
	Drops      *data.DropTable
	Clock      sched.Clock
	Rand       *rand.Rand
	Codec      packet.Codec
	Bus        *event.Bus
	Strategies *combat.Registry
	Store      PlayerStore
	Saver      *Saver
	Log        *zap.Logger
}

// World owns every entity, the Grid and Regions indexing them, the map's
// mutable tile state and the scheduler driving combat, healing, roaming,
// respawns and regrowth. All mutation goes through World methods on the
// game loop goroutine; other goroutines hand work in through Post.
type World struct {
	cfg   *config.Config
	ECS   *ecs.World
	State *world.State
	Map   *data.Map
	Mobs  *data.MobTable
	Items *data.ItemTable
	Drops *data.DropTable

	sched      *sched.Scheduler
	rng        *rand.Rand
	codec      packet.Codec
	bus        *event.Bus
	strategies *combat.Registry
	store      PlayerStore
	saver      *Saver

	// sessions maps a connection id to the player it logged in as.
	sessions map[uint64]ecs.EntityID
	posted   chan func()

	depleted   map[int]*depletion // tile index -> the cluster it belongs to
	depletions []*depletion

	log *zap.Logger
}

var _ combat.Mediator = (*World)(nil)

func NewWorld(o Options) *World {
	if o.Clock == nil {
		o.Clock = sched.RealClock{}
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6b61657472616d))
	}
	if o.Codec == nil {
		o.Codec = packet.MsgpackCodec{}
	}
	if o.Bus == nil {
		o.Bus = event.NewBus(o.Log)
	}
	if o.Strategies == nil {
		o.Strategies = combat.NewRegistry()
	}
	wc := o.Config.World
	ew := ecs.NewWorld()
	w := &World{
		cfg:        o.Config,
		ECS:        ew,
		State:      world.NewState(ew, o.Map.Width, o.Map.Height, wc.ZoneWidth, wc.ZoneHeight, wc.RegionOffset),
		Map:        o.Map,
		Mobs:       o.Mobs,
		Items:      o.Items,
		Drops:      o.Drops,
		sched:      sched.New(o.Clock, o.Log.Named("sched")),
		rng:        o.Rand,
		codec:      o.Codec,
		bus:        o.Bus,
		strategies: o.Strategies,
		store:      o.Store,
		saver:      o.Saver,
		sessions:   make(map[uint64]ecs.EntityID, 64),
		posted:     make(chan func(), 4096),
		depleted:   make(map[int]*depletion),
		log:        o.Log,
	}
	for _, d := range o.Map.Doors {
		w.State.Regions.LinkDoorTiles(d.X, d.Y, d.ToX, d.ToY)
	}
	w.sched.Every(wc.ResourceTick, "resource.regrowth", w.regrow)
	return w
}

func (w *World) Config() *config.Config { return w.cfg }
func (w *World) Bus() *event.Bus        { return w.bus }
func (w *World) Codec() packet.Codec    { return w.codec }
func (w *World) Store() PlayerStore     { return w.store }

// Populate places the map's static mobs, NPCs and chests.
func (w *World) Populate() {
	for _, s := range w.Map.Spawns {
		count := max(s.Count, 1)
		for i := 0; i < count; i++ {
			x, y := s.X, s.Y
			if s.Radius > 0 && i > 0 {
				x, y = w.freeTileNear(s.X, s.Y, s.Radius)
			}
			w.SpawnMob(s.Mob, x, y, !s.Dynamic)
		}
	}
	for _, n := range w.Map.Npcs {
		w.SpawnNPC(n.Key, n.X, n.Y)
	}
	for _, c := range w.Map.Chests {
		w.SpawnChest(c.Items, c.X, c.Y, true)
	}
	w.log.Info("world populated",
		zap.Int("mobs", w.State.MobCount()),
		zap.Int("entities", w.State.EntityCount()),
	)
}

func (w *World) freeTileNear(x, y, radius int) (int, int) {
	for attempt := 0; attempt < 8; attempt++ {
		nx := x + w.rng.IntN(2*radius+1) - radius
		ny := y + w.rng.IntN(2*radius+1) - radius
		if !w.Map.IsColliding(nx, ny) {
			return nx, ny
		}
	}
	return x, y
}

// Post queues fn to run on the game loop during the next Input phase.
// Safe to call from any goroutine.
func (w *World) Post(fn func()) {
	w.posted <- fn
}

// RunPosted runs every queued callback and returns how many ran.
func (w *World) RunPosted() int {
	n := 0
	for {
		select {
		case fn := <-w.posted:
			w.safeRun(fn)
			n++
		default:
			return n
		}
	}
}

func (w *World) safeRun(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			w.log.Error("posted callback panic recovered", zap.Any("panic", rec))
		}
	}()
	fn()
}

// Mediator surface used by combat.

func (w *World) Scheduler() *sched.Scheduler { return w.sched }
func (w *World) Rand() *rand.Rand            { return w.rng }

func (w *World) Character(id ecs.EntityID) *world.Character { return w.State.Character(id) }
func (w *World) Mob(id ecs.EntityID) *world.Mob             { return w.State.Mob(id) }

// Nearby returns live characters within radius of c that share its
// instance, excluding c.
func (w *World) Nearby(c *world.Character, radius int) []*world.Character {
	var out []*world.Character
	for _, e := range w.State.Grid.Surrounding(&c.Entity, radius, false) {
		if e.InstanceOwner != c.InstanceOwner {
			continue
		}
		if o := w.State.Character(e.Instance); o != nil && !o.Dead {
			out = append(out, o)
		}
	}
	return out
}

// MoveStep moves c one tile to (x, y) if the tile is walkable.
func (w *World) MoveStep(c *world.Character, x, y int) bool {
	if c.Dead || c.DistanceTo(x, y) != 1 || w.Map.IsColliding(x, y) {
		return false
	}
	w.SetPosition(&c.Entity, x, y)
	w.PushRegions(&c.Entity, packet.Message{Op: packet.OpMovement, Data: packet.Movement{
		Opcode:   packet.MovementMove,
		Instance: uint64(c.Instance),
		X:        x,
		Y:        y,
	}})
	return true
}

// Teleport moves c to (x, y) without walking. The old neighbourhood,
// which includes c itself when it is a player, is told first.
func (w *World) Teleport(c *world.Character, x, y int) bool {
	if w.Map.IsColliding(x, y) {
		return false
	}
	w.PushRegions(&c.Entity, packet.Message{Op: packet.OpTeleport, Data: packet.Teleport{
		Instance: uint64(c.Instance),
		X:        x,
		Y:        y,
	}})
	w.SetPosition(&c.Entity, x, y)
	return true
}

// SetPosition moves e and lets its observers keep the indexes in sync.
func (w *World) SetPosition(e *world.Entity, x, y int) {
	if !w.Map.InBounds(x, y) {
		return
	}
	e.SetPosition(x, y)
}

// PushRegions sends msgs to every player that can see e.
func (w *World) PushRegions(e *world.Entity, msgs ...packet.Message) {
	if !e.HasRegion {
		return
	}
	w.Push(Packet{Mode: ToRegions, Region: e.Region}, msgs)
}

// PushTo sends msgs to one player.
func (w *World) PushTo(id ecs.EntityID, msgs ...packet.Message) {
	w.Push(Packet{Mode: ToPlayer, Player: id}, msgs)
}

// Notify sends a notification line to a player.
func (w *World) Notify(p *world.Player, text string) {
	w.PushTo(p.Instance, packet.Message{Op: packet.OpNotification, Data: packet.Notification{Message: text}})
}
