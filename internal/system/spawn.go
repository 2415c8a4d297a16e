package system

import (
	"math"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/combat"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/sched"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

const (
	itemDespawn  = 60 * time.Second
	chestRespawn = 30 * time.Second
	healFraction = 0.1
	minionRadius = 1

	timerHeal    = "heal"
	timerRoam    = "roam"
	timerDespawn = "despawn"
)

// SpawnMob creates a mob from its template at (x, y). Static mobs respawn
// at the same spot after their respawn delay. Returns nil for an unknown
// key or a blocked tile.
func (w *World) SpawnMob(key string, x, y int, static bool) *world.Mob {
	tmpl := w.Mobs.Get(key)
	if tmpl == nil {
		w.log.Warn("unknown mob key", zap.String("key", key))
		return nil
	}
	if w.Map.IsColliding(x, y) {
		w.log.Warn("mob spawn on blocked tile", zap.String("key", key), zap.Int("x", x), zap.Int("y", y))
		return nil
	}
	m := &world.Mob{
		SpawnX:       x,
		SpawnY:       y,
		RoamDistance: tmpl.RoamDistance,
		Aggressive:   tmpl.Aggressive,
		AggroRange:   tmpl.AggroRange,
		Boss:         tmpl.Boss,
		Miniboss:     tmpl.Miniboss,
		Static:       static,
		RespawnDelay: tmpl.Respawn(),
		Reward:       tmpl.Experience,
	}
	for _, d := range w.Drops.Get(key) {
		m.Drops = append(m.Drops, world.Drop{Key: d.Key, Chance: d.Chance, Count: d.Count})
	}
	c := &m.Character
	c.Instance = w.State.NewInstance()
	c.Kind = world.KindMob
	c.Key = tmpl.Key
	c.Name = tmpl.Name
	c.X, c.Y = x, y
	c.OldX, c.OldY = x, y
	c.Level = tmpl.Level
	c.HitPoints, c.MaxHitPoints = tmpl.HitPoints, tmpl.HitPoints
	c.ArmorLevel = tmpl.Armour
	c.WeaponLevel = tmpl.Weapon
	c.AttackRange = tmpl.AttackRange
	c.AttackRate = tmpl.AttackInterval()
	c.MovementSpeed = time.Duration(tmpl.MovementSpeed) * time.Millisecond
	c.Poisonous = tmpl.Poisonous

	combat.New(c, w, w.cfg.Combat, w.strategies.New(m, tmpl.Plugin), w.log.Named("combat"))

	m.OnMove(w.mobMoved)
	w.State.AddMob(m)
	w.startHealing(c)
	if m.RoamDistance > 0 {
		w.track(&c.Entity, timerRoam, w.sched.Every(w.cfg.World.RoamInterval, "mob.roam", func() { w.roam(m) }))
	}
	return m
}

// SpawnMinion summons a non-respawning mob that belongs to master and
// shares its instance.
func (w *World) SpawnMinion(master *world.Mob, key string, x, y int) *world.Mob {
	if master == nil || master.Dead {
		return nil
	}
	if w.Map.IsColliding(x, y) {
		x, y = w.freeTileNear(master.X, master.Y, minionRadius)
	}
	m := w.spawnInto(master.InstanceOwner, func() *world.Mob { return w.SpawnMob(key, x, y, false) })
	if m == nil {
		return nil
	}
	m.Master = master.Instance
	m.RoamDistance = 0
	w.untrack(&m.Entity, timerRoam)
	master.Minions++
	return m
}

// spawnInto creates an entity directly inside owner's private regions.
// The entity is placed in the public world first and moved over before
// anyone is told about it.
func (w *World) spawnInto(owner ecs.EntityID, spawn func() *world.Mob) *world.Mob {
	m := spawn()
	if m == nil || owner.IsZero() {
		return m
	}
	w.State.Regions.Remove(&m.Entity)
	m.InstanceOwner = owner
	w.State.Regions.Handle(&m.Entity, nil)
	m.OldRegions = nil
	return m
}

// SpawnNPC places a talking character.
func (w *World) SpawnNPC(key string, x, y int) *world.NPC {
	tmpl := w.Mobs.Npc(key)
	if tmpl == nil {
		w.log.Warn("unknown npc key", zap.String("key", key))
		return nil
	}
	n := &world.NPC{Text: tmpl.Text}
	n.Instance = w.State.NewInstance()
	n.Kind = world.KindNPC
	n.Key = tmpl.Key
	n.Name = tmpl.Name
	n.X, n.Y = x, y
	w.State.AddNPC(n)
	return n
}

// DropItem puts count of key on the ground at (x, y). Dropped items
// despawn after a minute.
func (w *World) DropItem(key string, count, x, y int, owner ecs.EntityID) *world.Item {
	tmpl := w.Items.Get(key)
	if tmpl == nil || count <= 0 {
		return nil
	}
	it := &world.Item{Count: count, Dropped: true}
	it.Instance = w.State.NewInstance()
	it.Kind = world.KindItem
	it.Key = key
	it.Name = tmpl.Name
	it.X, it.Y = x, y
	it.InstanceOwner = owner
	w.State.AddItem(it)
	id := it.Instance
	w.track(&it.Entity, timerDespawn, w.sched.After(itemDespawn, "item.despawn", func() {
		w.RemoveEntity(id)
	}))
	return it
}

// PickUp moves a ground item into p's inventory.
func (w *World) PickUp(p *world.Player, id ecs.EntityID) bool {
	it := w.State.Item(id)
	if it == nil || it.InstanceOwner != p.InstanceOwner || p.Distance(&it.Entity) > 1 {
		return false
	}
	if !w.Give(p, it.Key, it.Count) {
		return false
	}
	w.RemoveEntity(id)
	return true
}

// SpawnChest places a chest holding one of items.
func (w *World) SpawnChest(items []string, x, y int, static bool) *world.Chest {
	c := &world.Chest{Items: append([]string(nil), items...), Static: static}
	c.Instance = w.State.NewInstance()
	c.Kind = world.KindChest
	c.Key = "chest"
	c.Name = "Chest"
	c.X, c.Y = x, y
	w.State.AddChest(c)
	return c
}

// OpenChest drops one random item from the chest and removes it. Static
// chests come back after a delay.
func (w *World) OpenChest(p *world.Player, id ecs.EntityID) bool {
	c := w.State.Chest(id)
	if c == nil || p.Distance(&c.Entity) > 1 {
		return false
	}
	w.RemoveEntity(id)
	if len(c.Items) > 0 {
		key := c.Items[w.rng.IntN(len(c.Items))]
		w.DropItem(key, 1, c.X, c.Y, c.InstanceOwner)
	}
	if c.Static {
		items, x, y := c.Items, c.X, c.Y
		w.sched.After(chestRespawn, "chest.respawn", func() { w.SpawnChest(items, x, y, true) })
	}
	return true
}

// RemoveEntity despawns id for everyone who can see it and detaches it
// from the world. Unknown ids are ignored.
func (w *World) RemoveEntity(id ecs.EntityID) {
	if e := w.State.Entity(id); e != nil {
		w.remove(e, true)
	}
}

// remove cancels e's timers and combat before taking it out of the
// indexes, so nothing fires against a detached entity.
func (w *World) remove(e *world.Entity, despawn bool) {
	for _, t := range e.TakeTimers() {
		w.sched.Cancel(t)
	}
	if c := w.State.Character(e.Instance); c != nil {
		if c.Combat != nil {
			c.Combat.Release()
		}
		w.Disengage(c)
	}
	if despawn {
		w.PushRegions(e, packet.Message{Op: packet.OpDespawn, Data: packet.Despawn{Instance: uint64(e.Instance)}})
	}
	w.State.Remove(e.Instance)
}

func (w *World) track(e *world.Entity, name string, id sched.TimerID) {
	if prev := e.TrackTimer(name, id); prev != 0 {
		w.sched.Cancel(prev)
	}
}

func (w *World) untrack(e *world.Entity, name string) {
	if id := e.Timer(name); id != 0 {
		w.sched.Cancel(id)
		e.TrackTimer(name, 0)
	}
}

// startHealing regenerates a tenth of max hit points every heal interval
// while c is out of combat.
func (w *World) startHealing(c *world.Character) {
	id := c.Instance
	w.track(&c.Entity, timerHeal, w.sched.Every(w.cfg.World.HealInterval, "character.heal", func() {
		ch := w.State.Character(id)
		if ch == nil || ch.Dead || ch.FullHealth() || (ch.Combat != nil && ch.Combat.Started()) {
			return
		}
		ch.Heal(int(math.Ceil(float64(ch.MaxHitPoints) * healFraction)))
		w.PushRegions(&ch.Entity, pointsMessage(ch))
		if p := w.State.Player(id); p != nil {
			p.Dirty = true
		}
	}))
}

// roam walks m to a random free tile within its roam distance while it is
// idle.
func (w *World) roam(m *world.Mob) {
	if m.Dead || m.HasTarget() || m.Incapacitated() || (m.Combat != nil && m.Combat.Started()) {
		return
	}
	d := m.RoamDistance
	x := m.SpawnX + w.rng.IntN(2*d+1) - d
	y := m.SpawnY + w.rng.IntN(2*d+1) - d
	if (x == m.X && y == m.Y) || w.Map.IsColliding(x, y) {
		return
	}
	w.SetPosition(&m.Entity, x, y)
	w.PushRegions(&m.Entity, packet.Message{Op: packet.OpMovement, Data: packet.Movement{
		Opcode:   packet.MovementMove,
		Instance: uint64(m.Instance),
		X:        x,
		Y:        y,
	}})
}

// mobMoved despawns the mob for players that lost sight of it and pulls a
// mob that strayed past its roam distance back to its spawn point,
// dropping the fight first.
func (w *World) mobMoved(e *world.Entity) {
	if e.RegionChanged() {
		w.despawnFromOldRegions(e)
	}
	m := w.State.Mob(e.Instance)
	if m == nil || m.Dead || m.IsMinion() || !m.OutsideRoam(m.X, m.Y) {
		return
	}
	w.Disengage(&m.Character)
	if m.Combat != nil {
		m.Combat.Stop()
	}
	m.HitPoints = m.MaxHitPoints
	w.SetPosition(&m.Entity, m.SpawnX, m.SpawnY)
	w.PushRegions(&m.Entity,
		packet.Message{Op: packet.OpTeleport, Data: packet.Teleport{Instance: uint64(m.Instance), X: m.X, Y: m.Y}},
		pointsMessage(&m.Character),
	)
}

// Disengage clears every relation pointing at c: attackers drop it as
// their target, c drops them, and attackers left with nothing to fight
// stop their loops.
func (w *World) Disengage(c *world.Character) {
	for _, id := range c.Attackers() {
		a := w.State.Character(id)
		if a == nil {
			continue
		}
		if a.Target == c.Instance {
			a.RemoveTarget()
		}
		a.RemoveAttacker(c.Instance)
		if a.Combat != nil && !a.HasTarget() && a.AttackerCount() == 0 {
			a.Combat.Stop()
		}
	}
	if t := w.State.Character(c.Target); t != nil {
		t.RemoveAttacker(c.Instance)
	}
	if c.Combat != nil {
		c.Combat.Forget()
		return
	}
	c.ClearAttackers()
	c.RemoveTarget()
}

func (w *World) spawnMessage(e *world.Entity) packet.Message {
	s := packet.Spawn{
		Instance: uint64(e.Instance),
		Kind:     e.Kind.String(),
		Key:      e.Key,
		Name:     e.Name,
		X:        e.X,
		Y:        e.Y,
	}
	if c := w.State.Character(e.Instance); c != nil {
		s.Level = c.Level
		s.HitPoints = c.HitPoints
		s.MaxHitPoints = c.MaxHitPoints
	}
	if it := w.State.Item(e.Instance); it != nil {
		s.Count = it.Count
	}
	return packet.Message{Op: packet.OpSpawn, Data: s}
}

func pointsMessage(c *world.Character) packet.Message {
	return packet.Message{Op: packet.OpPoints, Data: packet.Points{
		Instance:     uint64(c.Instance),
		HitPoints:    c.HitPoints,
		MaxHitPoints: c.MaxHitPoints,
		Mana:         c.Mana,
		MaxMana:      c.MaxMana,
	}}
}
