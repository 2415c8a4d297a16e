package system

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/combat"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/config"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/sched"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/data"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/persist"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

const testMobs = `
mobs:
  - key: rat
    level: 1
    hit_points: 20
    experience: 100
  - key: wolf
    level: 5
    hit_points: 50
    aggressive: true
    aggro_range: 3
  - key: goblin
    level: 2
    hit_points: 30
    roam_distance: 3
`

const testDrops = `
drops:
  - mob: rat
    items:
      - key: bones
        chance: 10000
`

type fakeSender struct {
	frames [][]byte
}

func (s *fakeSender) Send(b []byte) { s.frames = append(s.frames, b) }
func (s *fakeSender) reset()        { s.frames = nil }

func (s *fakeSender) readers(t *testing.T) []*packet.Reader {
	t.Helper()
	out := make([]*packet.Reader, 0, len(s.frames))
	for _, f := range s.frames {
		r, err := packet.MsgpackCodec{}.Decode(f)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func (s *fakeSender) count(t *testing.T, op packet.Opcode) int {
	t.Helper()
	n := 0
	for _, r := range s.readers(t) {
		if r.Opcode() == op {
			n++
		}
	}
	return n
}

// despawns counts Despawn frames naming id.
func (s *fakeSender) despawns(t *testing.T, id ecs.EntityID) int {
	t.Helper()
	n := 0
	for _, r := range s.readers(t) {
		if r.Opcode() != packet.OpDespawn {
			continue
		}
		var d packet.Despawn
		if err := r.Decode(&d); err != nil {
			t.Fatalf("decode despawn: %v", err)
		}
		if d.Instance == uint64(id) {
			n++
		}
	}
	return n
}

// combatHits counts CombatHit frames from attacker to target.
func (s *fakeSender) combatHits(t *testing.T, attacker, target ecs.EntityID) int {
	t.Helper()
	n := 0
	for _, r := range s.readers(t) {
		if r.Opcode() != packet.OpCombat {
			continue
		}
		var c packet.Combat
		if err := r.Decode(&c); err != nil {
			t.Fatalf("decode combat: %v", err)
		}
		if c.Opcode == packet.CombatHit && c.Attacker == uint64(attacker) && c.Target == uint64(target) {
			n++
		}
	}
	return n
}

type memStore struct {
	mu    sync.Mutex
	saved map[string]*persist.PlayerRecord
}

func newMemStore() *memStore { return &memStore{saved: make(map[string]*persist.PlayerRecord)} }

func (m *memStore) Load(_ context.Context, username string) (*persist.PlayerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.saved[world.NormalizeName(username)]
	if !ok {
		return nil, persist.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) Save(_ context.Context, rec *persist.PlayerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[rec.Key()] = rec
	return nil
}

func (m *memStore) Exists(_ context.Context, username, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.saved[world.NormalizeName(username)]
	return ok, nil
}

func (m *memStore) Create(_ context.Context, username, _ string) (*persist.PlayerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saved[world.NormalizeName(username)]; ok {
		return nil, persist.ErrExists
	}
	rec := &persist.PlayerRecord{Username: username}
	m.saved[rec.Key()] = rec
	return rec, nil
}

func (m *memStore) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, world.NormalizeName(username))
	return nil
}

type harness struct {
	w     *World
	clock *sched.ManualClock
	store *memStore
	saver *Saver
	next  uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.World.ZoneWidth = 10
	cfg.World.ZoneHeight = 10
	cfg.World.RegionOffset = 1
	cfg.World.SpawnX, cfg.World.SpawnY = 5, 5

	m := data.NewMap(50, 50)
	m.SetCollision(99)
	m.SetTile(m.Index(40, 40), []int{99})

	mobs, err := data.ParseMobTable([]byte(testMobs))
	if err != nil {
		t.Fatalf("parse mobs: %v", err)
	}
	dropPath := filepath.Join(t.TempDir(), "drops.yaml")
	if err := os.WriteFile(dropPath, []byte(testDrops), 0o644); err != nil {
		t.Fatal(err)
	}
	drops, err := data.LoadDropTable(dropPath)
	if err != nil {
		t.Fatalf("load drops: %v", err)
	}
	items := data.NewItemTable(
		data.ItemTemplate{Key: "bones", Name: "Bones", Type: "object", Stackable: true},
		data.ItemTemplate{Key: "logs", Name: "Logs", Type: "object", Stackable: true},
		data.ItemTemplate{Key: "ore", Name: "Ore", Type: "object", Stackable: true},
		data.ItemTemplate{Key: "sword", Name: "Sword", Type: "weapon", Level: 1, Range: 1},
		data.ItemTemplate{Key: "bow", Name: "Bow", Type: "weapon", Level: 1, Range: 5},
	)

	clock := sched.NewManualClock(time.Unix(1_700_000_000, 0))
	store := newMemStore()
	saver := NewSaver(store, 16, zap.NewNop())
	w := NewWorld(Options{
		Config: cfg,
		Map:    m,
		Mobs:   mobs,
		Items:  items,
		Drops:  drops,
		Clock:  clock,
		Rand:   rand.New(rand.NewPCG(1, 2)),
		Store:  store,
		Saver:  saver,
		Log:    zap.NewNop(),
	})
	return &harness{w: w, clock: clock, store: store, saver: saver}
}

func (h *harness) addPlayer(t *testing.T, name string, x, y int) (*world.Player, *fakeSender, uint64) {
	t.Helper()
	return h.addRecord(t, &persist.PlayerRecord{
		Username:  name,
		X:         x,
		Y:         y,
		Inventory: make([]world.Slot, world.InventorySize),
		Bank:      make([]world.Slot, world.BankSize),
	})
}

func (h *harness) addRecord(t *testing.T, rec *persist.PlayerRecord) (*world.Player, *fakeSender, uint64) {
	t.Helper()
	h.next++
	s := &fakeSender{}
	p, err := h.w.AddPlayer(rec, s, h.next)
	if err != nil {
		t.Fatalf("add player %s: %v", rec.Username, err)
	}
	return p, s, h.next
}

// advance moves the clock and fires whatever became due.
func (h *harness) advance(d time.Duration) {
	h.clock.Add(d)
	h.w.Scheduler().RunDue()
}

func TestKillClearsBothAttackersAndDropsOnce(t *testing.T) {
	h := newHarness(t)
	a, sa, _ := h.addPlayer(t, "alice", 10, 10)
	b, _, _ := h.addPlayer(t, "bob", 12, 11)
	rat := h.w.SpawnMob("rat", 11, 10, true)
	if rat == nil {
		t.Fatal("rat not spawned")
	}
	for _, p := range []*world.Player{a, b} {
		p.SetTarget(&rat.Character)
		p.AddAttacker(&rat.Character)
		rat.AddAttacker(&p.Character)
	}
	if got := rat.AttackerCount(); got != 2 {
		t.Fatalf("attackers = %d, want 2", got)
	}
	sa.reset()

	id := rat.Instance
	h.w.HandleDamage(&a.Character, &rat.Character, 1000)
	h.w.HandleDamage(&b.Character, &rat.Character, 1000)
	h.w.Kill(&rat.Character)

	if !rat.Dead {
		t.Fatal("rat not dead")
	}
	if h.w.State.Mob(id) != nil {
		t.Fatal("rat still in the world")
	}
	if a.HasTarget() || b.HasTarget() {
		t.Fatalf("targets not cleared: %v %v", a.Target, b.Target)
	}
	if a.HasAttacker(id) || b.HasAttacker(id) {
		t.Fatal("dead rat still listed as an attacker")
	}
	if got := sa.despawns(t, id); got != 1 {
		t.Fatalf("despawns = %d, want 1", got)
	}
	if got := len(h.w.State.Items()); got != 1 {
		t.Fatalf("ground items = %d, want 1", got)
	}
	if a.Experience != 100 || b.Experience != 100 {
		t.Fatalf("experience = %d/%d, want 100 each", a.Experience, b.Experience)
	}
}

func TestEngagedMeleeKillsRat(t *testing.T) {
	h := newHarness(t)
	p, s, _ := h.addPlayer(t, "alice", 10, 10)
	rat := h.w.SpawnMob("rat", 11, 10, false)
	id := rat.Instance
	s.reset()

	if !h.w.Engage(&p.Character, &rat.Character) {
		t.Fatal("engage refused")
	}
	if got := s.combatHits(t, p.Instance, id); got != 1 {
		t.Fatalf("hits on engage = %d, want 1", got)
	}
	for i := 0; i < 60 && !rat.Dead; i++ {
		h.advance(p.AttackRate)
	}

	if !rat.Dead || rat.HitPoints != 0 {
		t.Fatalf("rat alive after a minute of melee: hp %d/%d", rat.HitPoints, rat.MaxHitPoints)
	}
	if got := s.combatHits(t, p.Instance, id); got < 2 {
		t.Fatalf("hits = %d, attack loop never landed", got)
	}
	if h.w.State.Mob(id) != nil {
		t.Fatal("dead rat still in the world")
	}
	if got := s.despawns(t, id); got != 1 {
		t.Fatalf("despawns = %d, want 1", got)
	}
	if got := len(h.w.State.Items()); got != 1 {
		t.Fatalf("ground items = %d, want 1", got)
	}
	if p.Experience != 100 {
		t.Fatalf("experience = %d, want 100", p.Experience)
	}
	if p.HasTarget() || p.HasAttacker(id) || p.Combat.Started() {
		t.Fatal("player still fighting a dead rat")
	}
}

func TestMobLeavingSightIsDespawned(t *testing.T) {
	h := newHarness(t)
	_, far, _ := h.addPlayer(t, "alice", 5, 5)
	_, near, _ := h.addPlayer(t, "bob", 15, 5)
	rat := h.w.SpawnMob("rat", 19, 5, false)
	h.w.BroadcastIncoming()
	far.reset()
	near.reset()

	if !h.w.MoveStep(&rat.Character, 20, 5) {
		t.Fatal("step refused")
	}
	from := h.w.State.Regions.IDFromPosition(5, 5)
	if h.w.State.Regions.Get(from).IsVisible(rat.Instance) {
		t.Fatal("rat still visible from alice's region")
	}
	if got := far.despawns(t, rat.Instance); got != 1 {
		t.Fatalf("alice despawns = %d, want 1", got)
	}
	if got := near.despawns(t, rat.Instance); got != 0 {
		t.Fatalf("bob despawns = %d, want 0", got)
	}
	if got := near.count(t, packet.OpMovement); got != 1 {
		t.Fatalf("bob movement frames = %d, want 1", got)
	}
}

func TestStaticMobRespawns(t *testing.T) {
	h := newHarness(t)
	rat := h.w.SpawnMob("rat", 11, 10, true)
	h.w.Kill(&rat.Character)
	if h.w.State.MobCount() != 0 {
		t.Fatalf("mobs = %d after kill", h.w.State.MobCount())
	}
	h.advance(rat.RespawnDelay)
	mobs := h.w.State.Mobs()
	if len(mobs) != 1 || mobs[0].Key != "rat" || mobs[0].X != 11 || mobs[0].Y != 10 {
		t.Fatalf("respawned mobs = %v", mobs)
	}
}

func TestProjectileResolvesOnImpact(t *testing.T) {
	h := newHarness(t)
	p, s, _ := h.addPlayer(t, "archer", 10, 10)
	rat := h.w.SpawnMob("rat", 14, 10, true)
	s.reset()
	before := h.w.State.EntityCount()

	h.w.CreateProjectile(&p.Character, &rat.Character, world.Hit{Damage: 5, Ranged: true})
	if got := s.count(t, packet.OpProjectile); got != 1 {
		t.Fatalf("projectile frames = %d, want 1", got)
	}
	if rat.HitPoints != 20 {
		t.Fatalf("damage applied before impact: hp = %d", rat.HitPoints)
	}
	if h.w.State.EntityCount() != before+1 {
		t.Fatal("projectile not tracked")
	}

	h.advance(time.Second)
	if rat.HitPoints != 15 {
		t.Fatalf("hp = %d, want 15", rat.HitPoints)
	}
	if h.w.State.EntityCount() != before {
		t.Fatal("projectile not removed on impact")
	}
	if rat.Target != p.Instance {
		t.Fatal("struck mob did not fight back")
	}
}

func TestProjectileAgainstRemovedTargetIsDiscarded(t *testing.T) {
	h := newHarness(t)
	p, _, _ := h.addPlayer(t, "archer", 10, 10)
	rat := h.w.SpawnMob("rat", 14, 10, false)
	before := h.w.State.EntityCount()
	h.w.CreateProjectile(&p.Character, &rat.Character, world.Hit{Damage: 5, Ranged: true})
	h.w.RemoveEntity(rat.Instance)

	h.advance(time.Second)
	if h.w.State.EntityCount() != before-1 {
		t.Fatalf("entities = %d, want %d", h.w.State.EntityCount(), before-1)
	}
}

func TestMobReturnsWhenOutsideRoam(t *testing.T) {
	h := newHarness(t)
	g := h.w.SpawnMob("goblin", 20, 20, true)
	p, _, _ := h.addPlayer(t, "alice", 24, 20)
	g.HitPoints = 5
	g.SetTarget(&p.Character)
	g.AddAttacker(&p.Character)
	p.AddAttacker(&g.Character)

	h.w.SetPosition(&g.Entity, 25, 20)

	if g.X != 20 || g.Y != 20 {
		t.Fatalf("goblin at (%d,%d), want spawn (20,20)", g.X, g.Y)
	}
	if g.HitPoints != g.MaxHitPoints {
		t.Fatalf("hp = %d, want full", g.HitPoints)
	}
	if g.HasTarget() || p.HasAttacker(g.Instance) {
		t.Fatal("fight kept after returning")
	}
}

func TestPushModes(t *testing.T) {
	h := newHarness(t)
	a, sa, _ := h.addPlayer(t, "alice", 5, 5)
	b, sb, _ := h.addPlayer(t, "Bob", 8, 5)
	c, sc, _ := h.addPlayer(t, "carol", 45, 45)
	senders := []*fakeSender{sa, sb, sc}
	msg := packet.Message{Op: packet.OpChat, Data: packet.Chat{Source: "test", Message: "hi"}}

	tests := []struct {
		name string
		to   func() Packet
		want []int
	}{
		{"broadcast", func() Packet { return Packet{Mode: Broadcast} }, []int{1, 1, 1}},
		{"selectively", func() Packet { return Packet{Mode: Selectively, Ignore: []ecs.EntityID{a.Instance}} }, []int{0, 1, 1}},
		{"player", func() Packet { return Packet{Mode: ToPlayer, Player: b.Instance} }, []int{0, 1, 0}},
		{"players", func() Packet { return Packet{Mode: ToPlayers, Players: []ecs.EntityID{a.Instance, c.Instance}} }, []int{1, 0, 1}},
		{"region", func() Packet { return Packet{Mode: ToRegion, Region: a.Region} }, []int{1, 1, 0}},
		{"regions", func() Packet { return Packet{Mode: ToRegions, Region: c.Region} }, []int{0, 0, 1}},
		{"names", func() Packet { return Packet{Mode: ToNames, Names: []string{"bob", "nobody"}} }, []int{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range senders {
				s.reset()
			}
			h.w.Push(tt.to(), msg)
			for i, s := range senders {
				if got := len(s.frames); got != tt.want[i] {
					t.Errorf("recipient %d got %d frames, want %d", i, got, tt.want[i])
				}
			}
		})
	}

	t.Run("old regions", func(t *testing.T) {
		h.w.SetPosition(&a.Entity, 44, 44)
		for _, s := range senders {
			s.reset()
		}
		h.w.Push(Packet{Mode: ToOldRegions, Entity: &a.Entity}, msg)
		if len(sb.frames) != 1 || len(sa.frames) != 0 || len(sc.frames) != 0 {
			t.Fatalf("frames = %d/%d/%d, want 0/1/0", len(sa.frames), len(sb.frames), len(sc.frames))
		}
	})
}

func TestPushFlattensNestedMessages(t *testing.T) {
	h := newHarness(t)
	p, s, _ := h.addPlayer(t, "alice", 5, 5)
	s.reset()
	one := packet.Message{Op: packet.OpChat, Data: packet.Chat{Message: "1"}}
	h.w.Push(Packet{Mode: ToPlayer, Player: p.Instance}, []any{one, []packet.Message{one, one}}, one)
	if got := s.count(t, packet.OpChat); got != 4 {
		t.Fatalf("chat frames = %d, want 4", got)
	}
}

func TestIncomingSpawnSkipsSelf(t *testing.T) {
	h := newHarness(t)
	_, sa, _ := h.addPlayer(t, "alice", 5, 5)
	h.w.BroadcastIncoming()
	sa.reset()

	_, sb, _ := h.addPlayer(t, "bob", 6, 5)
	sb.reset()
	h.w.BroadcastIncoming()

	if got := sa.count(t, packet.OpSpawn); got != 1 {
		t.Fatalf("alice spawns = %d, want 1", got)
	}
	if got := sb.count(t, packet.OpSpawn); got != 0 {
		t.Fatalf("bob saw his own spawn %d times", got)
	}
}

func TestResourceDepletionAndRegrowth(t *testing.T) {
	h := newHarness(t)
	m := h.w.Map
	m.AddResource(data.Trees, data.Resource{Name: "oak", Tiles: []int{10, 11}, Depleted: []int{20, 0}})
	cluster := map[int][]int{
		m.Index(30, 30): {1, 10},
		m.Index(31, 30): {1, 11},
		m.Index(30, 31): {1, 10},
	}
	for idx, layers := range cluster {
		m.SetTile(idx, layers)
	}
	lone := m.Index(32, 32)
	m.SetTile(lone, []int{10})

	p, s, _ := h.addPlayer(t, "lumber", 29, 30)
	s.reset()

	if n := h.w.DepleteResource(p, data.Trees, 30, 30); n != 3 {
		t.Fatalf("depleted %d tiles, want 3", n)
	}
	want := map[int][]int{
		m.Index(30, 30): {1, 20},
		m.Index(31, 30): {1},
		m.Index(30, 31): {1, 20},
	}
	for idx, layers := range want {
		if got := m.Tile(idx); !slices.Equal(got, layers) {
			t.Fatalf("tile %d = %v, want %v", idx, got, layers)
		}
	}
	if got := m.Tile(lone); !slices.Equal(got, []int{10}) {
		t.Fatalf("unconnected tree changed: %v", got)
	}
	if n := h.w.DepleteResource(p, data.Trees, 31, 30); n != 0 {
		t.Fatalf("depleted an already cut tree: %d", n)
	}
	if p.Professions["lumberjacking"] != 3 {
		t.Fatalf("lumberjacking = %d, want 3", p.Professions["lumberjacking"])
	}
	if p.Inventory.Count("logs") != 1 {
		t.Fatalf("logs = %d, want 1", p.Inventory.Count("logs"))
	}
	if got := s.count(t, packet.OpRegion); got != 1 {
		t.Fatalf("region frames = %d, want 1", got)
	}

	h.advance(10 * time.Second)
	if !h.w.Depleted(m.Index(30, 30)) {
		t.Fatal("tree regrew early")
	}
	h.advance(11 * time.Second)
	for idx, layers := range cluster {
		if got := m.Tile(idx); !slices.Equal(got, layers) {
			t.Fatalf("tile %d = %v after regrowth, want %v", idx, got, layers)
		}
		if h.w.Depleted(idx) {
			t.Fatalf("tile %d still depleted", idx)
		}
	}
}

func TestDepleteNothingThere(t *testing.T) {
	h := newHarness(t)
	if n := h.w.DepleteResource(nil, data.Rocks, 3, 3); n != 0 {
		t.Fatalf("depleted %d tiles of bare ground", n)
	}
	if n := h.w.DepleteResource(nil, data.Rocks, -1, 3); n != 0 {
		t.Fatalf("depleted %d tiles out of bounds", n)
	}
}

func TestDisconnectReleasesCombatAndSaves(t *testing.T) {
	h := newHarness(t)
	p, _, sess := h.addPlayer(t, "alice", 10, 10)
	_, sb, _ := h.addPlayer(t, "bob", 12, 10)
	rat := h.w.SpawnMob("rat", 11, 10, true)
	if !h.w.Engage(&rat.Character, &p.Character) {
		t.Fatal("engage failed")
	}
	sb.reset()
	id := p.Instance

	h.w.Disconnect(sess)

	if h.w.State.Player(id) != nil || h.w.PlayerBySession(sess) != nil {
		t.Fatal("player still in the world")
	}
	if rat.HasTarget() {
		t.Fatal("mob still targets the removed player")
	}
	if cb := rat.Combat.(*combat.Combat); cb.Started() {
		t.Fatal("mob combat loops still running")
	}
	if p.Combat.(*combat.Combat).Started() {
		t.Fatal("player combat loops still running")
	}
	if got := sb.despawns(t, id); got != 1 {
		t.Fatalf("despawns = %d, want 1", got)
	}
	if got := len(h.saver.queue); got != 1 {
		t.Fatalf("queued saves = %d, want 1", got)
	}
	// Timers owned by the player must not fire against it.
	h.advance(time.Minute)

	h.w.Disconnect(sess)
}

func TestAggroRespectsLevelAndRange(t *testing.T) {
	h := newHarness(t)
	wolf := h.w.SpawnMob("wolf", 30, 10, true)

	low, _, _ := h.addPlayer(t, "low", 34, 10)
	if wolf.HasTarget() {
		t.Fatal("wolf engaged out of range")
	}
	if !h.w.MovePlayer(low, 33, 10) {
		t.Fatal("move rejected")
	}
	if wolf.Target != low.Instance {
		t.Fatalf("wolf target = %v, want %v", wolf.Target, low.Instance)
	}

	h2 := newHarness(t)
	wolf2 := h2.w.SpawnMob("wolf", 30, 10, true)
	high, _, _ := h2.addRecord(t, &persist.PlayerRecord{
		Username:   "high",
		X:          34,
		Y:          10,
		Experience: combat.LevelExperience(11),
	})
	h2.w.MovePlayer(high, 33, 10)
	if wolf2.HasTarget() {
		t.Fatal("wolf engaged a player more than twice its level")
	}
}

func TestLevelUp(t *testing.T) {
	h := newHarness(t)
	p, s, _ := h.addPlayer(t, "alice", 5, 5)
	s.reset()

	h.w.AddExperience(p, combat.LevelExperience(3))

	if p.Level != 3 {
		t.Fatalf("level = %d, want 3", p.Level)
	}
	if p.MaxHitPoints != 39+3*30 {
		t.Fatalf("max hp = %d", p.MaxHitPoints)
	}
	if s.count(t, packet.OpNotification) != 1 {
		t.Fatal("no level up notification")
	}
	if len(h.saver.queue) != 1 {
		t.Fatal("level up not saved")
	}
}

func TestAddPlayerCorrectsSavedState(t *testing.T) {
	h := newHarness(t)
	p, _, _ := h.addRecord(t, &persist.PlayerRecord{
		Username:  "alice",
		X:         40,
		Y:         40, // blocked
		Inventory: []world.Slot{{Key: "logs", Count: 3}},
	})
	if !p.Dirty {
		t.Fatal("corrected player not marked dirty")
	}
	if p.Inventory.Size() != world.InventorySize || p.Inventory.Count("logs") != 3 {
		t.Fatalf("inventory size %d logs %d", p.Inventory.Size(), p.Inventory.Count("logs"))
	}
	if p.X != 5 || p.Y != 5 {
		t.Fatalf("position (%d,%d), want spawn (5,5)", p.X, p.Y)
	}
	if _, err := h.w.AddPlayer(&persist.PlayerRecord{Username: "ALICE"}, &fakeSender{}, 99); err != ErrOnline {
		t.Fatalf("duplicate login err = %v, want ErrOnline", err)
	}
}

func TestGiveAndEquip(t *testing.T) {
	h := newHarness(t)
	p, s, _ := h.addPlayer(t, "alice", 5, 5)
	for i := range p.Inventory.Slots {
		p.Inventory.Slots[i] = world.Slot{Key: "ore", Count: 1}
	}
	s.reset()
	if h.w.Give(p, "logs", 1) {
		t.Fatal("give succeeded into a full inventory")
	}
	if s.count(t, packet.OpNotification) != 1 {
		t.Fatal("full inventory not reported")
	}

	p.Inventory.Slots[0] = world.Slot{Key: "bow", Count: 1}
	if !h.w.Equip(p, 0) {
		t.Fatal("equip failed")
	}
	if p.Equipment[world.SlotWeapon].Key != "bow" || p.AttackRange != 5 || !p.IsRanged() {
		t.Fatalf("weapon %+v range %d", p.Equipment[world.SlotWeapon], p.AttackRange)
	}
	p.Inventory.Slots[1] = world.Slot{Key: "sword", Count: 1}
	if !h.w.Equip(p, 1) {
		t.Fatal("swap failed")
	}
	if p.Inventory.Slots[1].Key != "bow" || p.AttackRange != 1 {
		t.Fatalf("slot 1 = %+v range %d", p.Inventory.Slots[1], p.AttackRange)
	}
}

func TestInstanceIsolation(t *testing.T) {
	h := newHarness(t)
	a, _, _ := h.addPlayer(t, "alice", 5, 5)
	_, sb, _ := h.addPlayer(t, "bob", 6, 5)
	h.w.BroadcastIncoming()
	sb.reset()

	if !h.w.CreateInstance(a) {
		t.Fatal("instance not created")
	}
	if got := sb.despawns(t, a.Instance); got != 1 {
		t.Fatalf("bob despawns = %d, want 1", got)
	}
	sb.reset()
	h.w.PushRegions(&a.Entity, packet.Message{Op: packet.OpChat, Data: packet.Chat{Message: "secret"}})
	if len(sb.frames) != 0 {
		t.Fatal("instance traffic leaked to the public world")
	}

	if !h.w.LeaveInstance(a) {
		t.Fatal("leave failed")
	}
	h.w.BroadcastIncoming()
	if got := sb.count(t, packet.OpSpawn); got != 1 {
		t.Fatalf("bob spawns = %d, want 1", got)
	}
}

func TestRespawnAfterDeath(t *testing.T) {
	h := newHarness(t)
	p, s, _ := h.addPlayer(t, "alice", 20, 20)
	h.w.Kill(&p.Character)
	if !p.Dead || h.w.State.Player(p.Instance) == nil {
		t.Fatal("dead player should stay in the world")
	}
	if s.count(t, packet.OpDeath) != 1 {
		t.Fatal("no death frame")
	}
	if !h.w.Respawn(p) {
		t.Fatal("respawn failed")
	}
	if p.Dead || p.HitPoints != p.MaxHitPoints || p.X != 5 || p.Y != 5 {
		t.Fatalf("after respawn dead=%v hp=%d pos=(%d,%d)", p.Dead, p.HitPoints, p.X, p.Y)
	}
	if h.w.Respawn(p) {
		t.Fatal("respawned a living player")
	}
}

func TestSaverDrainsOnCancel(t *testing.T) {
	store := newMemStore()
	s := NewSaver(store, 4, zap.NewNop())
	s.Enqueue(&persist.PlayerRecord{Username: "a"})
	s.Enqueue(&persist.PlayerRecord{Username: "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 2 {
		t.Fatalf("saved %d records, want 2", len(store.saved))
	}
}

func TestPostedCallbacksRunOnLoop(t *testing.T) {
	h := newHarness(t)
	ran := 0
	h.w.Post(func() { ran++ })
	h.w.Post(func() { panic("bad callback") })
	h.w.Post(func() { ran++ })
	if n := h.w.RunPosted(); n != 3 || ran != 2 {
		t.Fatalf("ran %d callbacks (%d ok), want 3 (2 ok)", n, ran)
	}
}
