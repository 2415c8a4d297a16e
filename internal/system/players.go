package system

import (
	"errors"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/combat"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/event"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/persist"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

// ErrOnline is returned by AddPlayer when the username is already in the
// world.
var ErrOnline = errors.New("player already online")

const (
	playerAttackRate = time.Second
	playerMoveSpeed  = 250 * time.Millisecond
)

// AddPlayer builds a player from rec, binds it to the session sessID and
// places it in the world. Saved state that no longer fits (a container
// of the wrong size, a blocked position) is corrected and the player is
// marked dirty so the fix is written back.
func (w *World) AddPlayer(rec *persist.PlayerRecord, sender world.Sender, sessID uint64) (*world.Player, error) {
	if w.State.PlayerByName(rec.Username) != nil {
		return nil, ErrOnline
	}
	log := w.log.With(zap.String("username", rec.Username))

	p := world.NewPlayer(rec.Username)
	p.Instance = w.State.NewInstance()
	p.Session = sender
	p.Rights = rec.Rights
	if w.cfg.IsAdmin(rec.Username) {
		p.Rights = max(p.Rights, world.RightsAdmin)
	}

	c := &p.Character
	c.Experience = rec.Experience
	c.Level = combat.LevelFromExperience(rec.Experience)
	c.MaxHitPoints = combat.MaxHitPoints(c.Level)
	c.MaxMana = combat.MaxMana(c.Level)
	c.HitPoints = rec.HitPoints
	if c.HitPoints <= 0 || c.HitPoints > c.MaxHitPoints {
		c.HitPoints = c.MaxHitPoints
	}
	c.Mana = min(max(rec.Mana, 0), c.MaxMana)
	c.AttackRate = playerAttackRate
	c.MovementSpeed = playerMoveSpeed

	c.X, c.Y = rec.X, rec.Y
	if !w.Map.InBounds(c.X, c.Y) || w.Map.IsColliding(c.X, c.Y) {
		c.X, c.Y = w.spawnPoint()
		p.Dirty = true
	}
	c.OldX, c.OldY = c.X, c.Y

	// A fresh record has no containers yet.
	if !p.Inventory.Load(rec.Inventory) && len(rec.Inventory) > 0 {
		log.Error("inventory size mismatch, resized", zap.Int("saved", len(rec.Inventory)), zap.Int("size", p.Inventory.Size()))
		p.Dirty = true
	}
	if !p.Bank.Load(rec.Bank) && len(rec.Bank) > 0 {
		log.Error("bank size mismatch, resized", zap.Int("saved", len(rec.Bank)), zap.Int("size", p.Bank.Size()))
		p.Dirty = true
	}
	for i, eq := range rec.Equipment {
		if i >= len(p.Equipment) {
			break
		}
		p.Equipment[i] = eq
	}
	p.ApplyEquipment()
	for k, v := range rec.Quests {
		p.Quests[k] = v
	}
	for k, v := range rec.Achievements {
		p.Achievements[k] = v
	}
	for k, v := range rec.Professions {
		p.Professions[k] = v
	}

	combat.New(c, w, w.cfg.Combat, nil, w.log.Named("combat"))
	p.OnMove(w.playerMoved)
	w.State.AddPlayer(p)
	w.sessions[sessID] = p.Instance
	w.startHealing(c)

	w.PushTo(p.Instance, w.welcomeMessage(p))
	w.PushTo(p.Instance, containerMessage(p.Inventory), containerMessage(p.Bank))
	w.PushTo(p.Instance, equipmentMessages(p)...)
	w.sendVisible(p)

	event.Emit(w.bus, event.PlayerLoggedIn{Player: p.Instance, Username: p.Username})
	log.Info("player entered world",
		zap.Stringer("instance", p.Instance),
		zap.Int("x", p.X),
		zap.Int("y", p.Y),
		zap.Int("level", p.Level),
	)
	return p, nil
}

// PlayerBySession returns the player logged in on sessID, or nil.
func (w *World) PlayerBySession(sessID uint64) *world.Player {
	id, ok := w.sessions[sessID]
	if !ok {
		return nil
	}
	return w.State.Player(id)
}

// Disconnect removes the player bound to sessID, if any.
func (w *World) Disconnect(sessID uint64) {
	p := w.PlayerBySession(sessID)
	delete(w.sessions, sessID)
	if p != nil {
		w.RemovePlayer(p)
	}
}

// RemovePlayer takes p out of the world. Its timers and combat loops are
// cancelled before it leaves the region index, so nothing fires against a
// half-removed player. The final state is saved asynchronously.
func (w *World) RemovePlayer(p *world.Player) {
	for id, inst := range w.sessions {
		if inst == p.Instance {
			delete(w.sessions, id)
		}
	}
	for _, t := range p.TakeTimers() {
		w.sched.Cancel(t)
	}
	if p.Combat != nil {
		p.Combat.Release()
	}
	w.Disengage(&p.Character)

	if w.State.Regions.HasInstance(p.Instance) {
		w.dropInstance(p)
	}
	p.Dirty = true
	w.Save(p)
	w.remove(&p.Entity, true)
	p.Session = nil

	event.Emit(w.bus, event.PlayerDisconnected{Player: p.Instance, Username: p.Username})
	w.log.Info("player left world", zap.String("username", p.Username))
}

// Respawn brings a dead player back at the spawn point.
func (w *World) Respawn(p *world.Player) bool {
	if !p.Dead {
		return false
	}
	p.Dead = false
	p.HitPoints = p.MaxHitPoints
	p.Mana = p.MaxMana
	p.Dirty = true

	x, y := w.spawnPoint()
	w.SetPosition(&p.Entity, x, y)
	w.PushTo(p.Instance,
		packet.Message{Op: packet.OpRespawn, Data: packet.Respawn{Instance: uint64(p.Instance), X: p.X, Y: p.Y}},
		pointsMessage(&p.Character),
	)
	// A region change already queued the spawn and refreshed the view.
	if !p.RegionChanged() && p.HasRegion {
		w.Push(Packet{Mode: ToRegions, Region: p.Region, Ignore: []ecs.EntityID{p.Instance}}, w.spawnMessage(&p.Entity))
		w.sendVisible(p)
	}
	return true
}

// MovePlayer walks p to an adjacent tile on its own request.
func (w *World) MovePlayer(p *world.Player, x, y int) bool {
	if p.Dead || p.Stunned || p.Frozen {
		return false
	}
	if p.DistanceTo(x, y) != 1 || !w.Map.InBounds(x, y) || w.Map.IsColliding(x, y) {
		return false
	}
	w.SetPosition(&p.Entity, x, y)
	if p.HasRegion {
		w.Push(Packet{Mode: ToRegions, Region: p.Region, Ignore: []ecs.EntityID{p.Instance}},
			packet.Message{Op: packet.OpMovement, Data: packet.Movement{
				Opcode:   packet.MovementMove,
				Instance: uint64(p.Instance),
				X:        x,
				Y:        y,
			}})
	}
	p.Dirty = true
	return true
}

// playerMoved refreshes what the player can see after a region change and
// lets nearby aggressive mobs notice it.
func (w *World) playerMoved(e *world.Entity) {
	p := w.State.Player(e.Instance)
	if p == nil {
		return
	}
	if e.RegionChanged() {
		w.despawnFromOldRegions(e)
		w.sendVisible(p)
	}
	w.aggro(p)
}

// despawnFromOldRegions tells players in the regions e just left that it
// is gone.
func (w *World) despawnFromOldRegions(e *world.Entity) {
	w.Push(Packet{Mode: ToOldRegions, Entity: e, Ignore: []ecs.EntityID{e.Instance}},
		packet.Message{Op: packet.OpDespawn, Data: packet.Despawn{Instance: uint64(e.Instance)}})
}

// aggro starts a fight with p for every idle aggressive mob that has it in
// range. Players more than twice a mob's level are ignored by it.
func (w *World) aggro(p *world.Player) {
	if p.Dead || p.Invincible {
		return
	}
	radius := w.Mobs.MaxAggroRange()
	if radius <= 0 {
		return
	}
	near := w.State.Grid.Near(p.X, p.Y, radius, func(e *world.Entity) bool { return e.IsMob() })
	for _, e := range near {
		m := w.State.Mob(e.Instance)
		if m == nil || !m.Aggressive || m.Dead || m.HasTarget() || m.Incapacitated() {
			continue
		}
		if m.InstanceOwner != p.InstanceOwner || m.Distance(&p.Entity) > m.AggroRange {
			continue
		}
		if p.Level > m.Level*2 {
			continue
		}
		w.Engage(&m.Character, &p.Character)
	}
}

// sendVisible sends p a spawn for everything visible from its region.
func (w *World) sendVisible(p *world.Player) {
	if !p.HasRegion {
		return
	}
	reg := w.State.Regions.Get(p.Region)
	if reg == nil {
		return
	}
	var msgs []packet.Message
	for _, e := range reg.Visible() {
		if e.Instance == p.Instance || e.Kind == world.KindProjectile {
			continue
		}
		msgs = append(msgs, w.spawnMessage(e))
	}
	w.PushTo(p.Instance, msgs...)
}

// BroadcastIncoming announces every entity that entered a region since the
// last call to the players around it. The entity itself is never told.
func (w *World) BroadcastIncoming() int {
	return w.State.Regions.DrainIncoming(func(id world.RegionID, e *world.Entity) {
		if e.Kind == world.KindProjectile || !e.HasRegion || e.Region != id {
			return
		}
		w.Push(Packet{Mode: ToRegions, Region: id, Ignore: []ecs.EntityID{e.Instance}}, w.spawnMessage(e))
	})
}

// CreateInstance moves p into a private copy of its surroundings. The
// public regions it left are told to despawn it.
func (w *World) CreateInstance(p *world.Player) bool {
	if w.State.Regions.HasInstance(p.Instance) {
		return false
	}
	w.State.Regions.CreateInstance(&p.Entity)
	if !w.State.Regions.HasInstance(p.Instance) {
		return false
	}
	w.Push(Packet{Mode: ToOldRegions, Entity: &p.Entity},
		packet.Message{Op: packet.OpDespawn, Data: packet.Despawn{Instance: uint64(p.Instance)}})
	w.sendVisible(p)
	w.log.Info("instance created", zap.String("username", p.Username))
	return true
}

// LeaveInstance tears p's instance down and returns it to the public world.
func (w *World) LeaveInstance(p *world.Player) bool {
	if !w.State.Regions.HasInstance(p.Instance) {
		return false
	}
	w.dropInstance(p)
	w.sendVisible(p)
	return true
}

// dropInstance deletes p's instance and everything still inside it.
func (w *World) dropInstance(p *world.Player) {
	for _, e := range w.State.Regions.DeleteInstance(&p.Entity) {
		w.remove(e, false)
	}
}

// Give puts count of key in p's inventory. A full inventory is reported to
// the player and leaves it unchanged.
func (w *World) Give(p *world.Player, key string, count int) bool {
	tmpl := w.Items.Get(key)
	if tmpl == nil || count <= 0 {
		return false
	}
	if err := p.Inventory.Add(key, count, tmpl.Stackable); err != nil {
		if errors.Is(err, world.ErrNoSpace) {
			w.Notify(p, "You do not have enough space in your inventory.")
		}
		return false
	}
	p.Dirty = true
	w.PushTo(p.Instance, containerMessage(p.Inventory))
	return true
}

// Equip moves the item in inventory slot index into its equipment slot,
// swapping out whatever was there.
func (w *World) Equip(p *world.Player, index int) bool {
	if index < 0 || index >= p.Inventory.Size() {
		return false
	}
	tmpl := w.Items.Get(p.Inventory.Slots[index].Key)
	if tmpl == nil || !tmpl.Equippable() {
		return false
	}
	slot, ok := world.ParseEquipSlot(tmpl.Type)
	if !ok {
		return false
	}
	if p.Level < tmpl.Level {
		w.Notify(p, "Your level is too low to wear this.")
		return false
	}
	p.Inventory.Take(index)
	if prev := p.Equipment[slot]; !prev.Empty() {
		p.Inventory.Slots[index] = world.Slot{Key: prev.Key, Count: 1}
	}
	p.Equipment[slot] = world.Equipped{Key: tmpl.Key, Level: tmpl.Level, Range: tmpl.Range, Amplifier: tmpl.Amplifier}
	p.ApplyEquipment()
	p.Dirty = true

	w.PushTo(p.Instance, containerMessage(p.Inventory), equipmentMessage(slot, p.Equipment[slot]))
	w.Save(p)
	return true
}

// Unequip moves the item in slot back into the inventory.
func (w *World) Unequip(p *world.Player, slot world.EquipSlot) bool {
	if slot < 0 || slot >= world.SlotMax || p.Equipment[slot].Empty() {
		return false
	}
	if !w.Give(p, p.Equipment[slot].Key, 1) {
		return false
	}
	p.Equipment[slot] = world.Equipped{}
	p.ApplyEquipment()
	w.PushTo(p.Instance, equipmentMessage(slot, p.Equipment[slot]))
	w.Save(p)
	return true
}

// Save queues a snapshot of p for storage. The dirty flag is cleared only
// once the snapshot is queued.
func (w *World) Save(p *world.Player) {
	if w.saver == nil {
		return
	}
	if w.saver.Enqueue(Record(p)) {
		p.Dirty = false
	}
}

// SaveDirty queues every player with unsaved changes and returns how many
// were queued.
func (w *World) SaveDirty() int {
	n := 0
	for _, p := range w.State.Players() {
		if p.Dirty {
			w.Save(p)
			if !p.Dirty {
				n++
			}
		}
	}
	return n
}

// Record snapshots p for storage.
func Record(p *world.Player) *persist.PlayerRecord {
	rec := &persist.PlayerRecord{
		Username:     p.Username,
		Rights:       p.Rights,
		X:            p.X,
		Y:            p.Y,
		Experience:   p.Experience,
		HitPoints:    p.HitPoints,
		Mana:         p.Mana,
		Inventory:    p.Inventory.Snapshot(),
		Bank:         p.Bank.Snapshot(),
		Equipment:    append([]world.Equipped(nil), p.Equipment[:]...),
		Quests:       make(map[string]int, len(p.Quests)),
		Achievements: make(map[string]int, len(p.Achievements)),
		Professions:  make(map[string]int, len(p.Professions)),
	}
	for k, v := range p.Quests {
		rec.Quests[k] = v
	}
	for k, v := range p.Achievements {
		rec.Achievements[k] = v
	}
	for k, v := range p.Professions {
		rec.Professions[k] = v
	}
	return rec
}

func (w *World) spawnPoint() (int, int) {
	if sp := w.Map.PlayerSpawn; sp.X != 0 || sp.Y != 0 {
		return sp.X, sp.Y
	}
	return w.cfg.World.SpawnX, w.cfg.World.SpawnY
}

func (w *World) welcomeMessage(p *world.Player) packet.Message {
	return packet.Message{Op: packet.OpWelcome, Data: packet.Welcome{
		Instance:     uint64(p.Instance),
		Username:     p.Username,
		X:            p.X,
		Y:            p.Y,
		Level:        p.Level,
		Experience:   p.Experience,
		HitPoints:    p.HitPoints,
		MaxHitPoints: p.MaxHitPoints,
	}}
}

func containerMessage(c *world.Container) packet.Message {
	slots := make([]packet.Slot, 0, c.Size())
	for i, s := range c.Slots {
		if s.Key == "" {
			continue
		}
		slots = append(slots, packet.Slot{Index: i, Key: s.Key, Count: s.Count})
	}
	return packet.Message{Op: packet.OpContainer, Data: packet.Container{Kind: c.Kind, Slots: slots}}
}

func equipmentMessage(slot world.EquipSlot, eq world.Equipped) packet.Message {
	return packet.Message{Op: packet.OpEquipment, Data: packet.Equipment{Slot: slot.String(), Key: eq.Key, Level: eq.Level}}
}

func equipmentMessages(p *world.Player) []packet.Message {
	out := make([]packet.Message, 0, world.SlotMax)
	for s := world.SlotWeapon; s < world.SlotMax; s++ {
		out = append(out, equipmentMessage(s, p.Equipment[s]))
	}
	return out
}
