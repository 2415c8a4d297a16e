package combat

import (
	"math/rand/v2"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/config"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/sched"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

const (
	// CriticalChance is the percent chance a player's hit is critical.
	CriticalChance = 10
	// PoisonChance is the percent chance a poisonous attacker's hit poisons.
	PoisonChance = 15
)

// Mediator is the part of the world a Combat acts through. Every method
// is called on the game loop goroutine.
type Mediator interface {
	Scheduler() *sched.Scheduler
	Rand() *rand.Rand
	Character(id ecs.EntityID) *world.Character
	Mob(id ecs.EntityID) *world.Mob

	HandleDamage(attacker, target *world.Character, damage int)
	CreateProjectile(attacker, target *world.Character, hit world.Hit)

	// Nearby returns live characters within radius tiles of c, excluding c.
	Nearby(c *world.Character, radius int) []*world.Character
	// MoveStep walks c one tile to (x, y) if the tile is free.
	MoveStep(c *world.Character, x, y int) bool
	Teleport(c *world.Character, x, y int) bool
	// Disengage drops every target and attacker relation involving c on
	// both sides.
	Disengage(c *world.Character)
	SpawnMinion(master *world.Mob, key string, x, y int) *world.Mob

	PushRegions(e *world.Entity, msgs ...packet.Message)
	PushTo(id ecs.EntityID, msgs ...packet.Message)
}

// Combat is the per-character combat state machine. While started it runs
// three loops on the world scheduler: attack (every attack rate), follow
// and a watchdog that forgets the fight after a period of inactivity.
type Combat struct {
	c        *world.Character
	med      Mediator
	cfg      config.CombatConfig
	strategy Strategy
	log      *zap.Logger

	queue   HitQueue
	started bool

	attackLoop sched.TimerID
	followLoop sched.TimerID
	watchdog   sched.TimerID

	stunTimer   sched.TimerID
	freezeTimer sched.TimerID
	poisonTimer sched.TimerID
	poisonUntil time.Time
	poisoner    ecs.EntityID

	lastAction time.Time
	lastHit    time.Time
}

// New builds the state machine for c and installs it as c.Combat.
// strategy may be nil.
func New(c *world.Character, med Mediator, cfg config.CombatConfig, strategy Strategy, log *zap.Logger) *Combat {
	cb := &Combat{
		c:        c,
		med:      med,
		cfg:      cfg,
		strategy: strategy,
		log:      log,
	}
	c.Combat = cb
	return cb
}

func (cb *Combat) Character() *world.Character { return cb.c }
func (cb *Combat) Mediator() Mediator          { return cb.med }
func (cb *Combat) Started() bool               { return cb.started }
func (cb *Combat) Queue() *HitQueue            { return &cb.queue }

func (cb *Combat) now() time.Time { return cb.med.Scheduler().Now() }

// Begin engages target: sets it as the character's target, registers both
// sides as each other's attackers, starts the loops and attacks once.
func (cb *Combat) Begin(target *world.Character) {
	if target == nil || target.Dead || cb.c.Dead || target.Instance == cb.c.Instance {
		return
	}
	cb.c.SetTarget(target)
	cb.c.AddAttacker(target)
	target.AddAttacker(cb.c)
	cb.lastAction = cb.now()

	cb.Start()
	cb.onBegin(target)
	cb.med.PushRegions(&cb.c.Entity, packet.Message{Op: packet.OpCombat, Data: packet.Combat{
		Opcode:   packet.CombatInitiate,
		Attacker: uint64(cb.c.Instance),
		Target:   uint64(target.Instance),
	}})
	cb.attackTick()
}

// Start launches the three loops. No-op if already started.
func (cb *Combat) Start() {
	if cb.started {
		return
	}
	s := cb.med.Scheduler()
	cb.started = true
	cb.lastAction = cb.now()
	cb.attackLoop = s.Every(cb.c.AttackRate, "combat.attack", cb.attackTick)
	cb.followLoop = s.Every(cb.cfg.FollowInterval, "combat.follow", cb.followTick)
	cb.watchdog = s.Every(cb.cfg.WatchdogInterval, "combat.watchdog", cb.watchdogTick)
}

// Stop cancels the loops and drops queued hits.
func (cb *Combat) Stop() {
	if !cb.started {
		return
	}
	s := cb.med.Scheduler()
	s.Cancel(cb.attackLoop)
	s.Cancel(cb.followLoop)
	s.Cancel(cb.watchdog)
	cb.attackLoop, cb.followLoop, cb.watchdog = 0, 0, 0
	cb.started = false
	cb.queue.Clear()
}

// Forget clears this character's attacker set and target. The other side
// of each relation is left to Mediator.Disengage.
func (cb *Combat) Forget() {
	cb.c.ClearAttackers()
	cb.c.RemoveTarget()
}

// Release stops everything, including stun, freeze and poison timers.
func (cb *Combat) Release() {
	cb.Stop()
	s := cb.med.Scheduler()
	for _, id := range []*sched.TimerID{&cb.stunTimer, &cb.freezeTimer, &cb.poisonTimer} {
		s.Cancel(*id)
		*id = 0
	}
}

// InRange reports whether target can be hit from the current position.
// Melee needs an axis-adjacent tile; diagonals do not count.
func (cb *Combat) InRange(target *world.Character) bool {
	if cb.c.IsRanged() {
		return cb.c.Distance(&target.Entity) <= cb.c.AttackRange
	}
	return cb.c.IsAdjacent(&target.Entity)
}

// Attack queues a freshly rolled hit against target.
func (cb *Combat) Attack(target *world.Character) {
	if target == nil {
		return
	}
	cb.queue.Add(cb.createHit(target))
}

func (cb *Combat) createHit(target *world.Character) world.Hit {
	rng := cb.med.Rand()
	ranged := cb.c.IsRanged()
	critical := cb.c.IsPlayer() && rng.IntN(100) < CriticalChance

	h := world.Hit{
		Kind:   world.HitDamage,
		Damage: Damage(rng, cb.c, target, ranged, critical),
		Ranged: ranged,
	}
	if critical {
		h.Kind = world.HitCritical
	}
	if cb.c.Poisonous && rng.IntN(100) < PoisonChance {
		h.Poison = true
	}
	return h
}

// canHit allows a hit once the attack rate, less the grace, has passed
// since the last one. The first hit is always allowed.
func (cb *Combat) canHit(now time.Time) bool {
	if cb.lastHit.IsZero() {
		return true
	}
	return now.Sub(cb.lastHit) > cb.c.AttackRate-cb.cfg.AttackGrace
}

// Hit delivers hit to target. Ranged hits travel as a projectile and are
// resolved on impact; everything else resolves immediately. Hits closer
// together than the attack rate are dropped unless override is set.
// Returns whether the hit was delivered.
func (cb *Combat) Hit(target *world.Character, hit world.Hit, override bool) bool {
	if target == nil || target.Dead || cb.c.Dead {
		return false
	}
	now := cb.now()
	if !override && !cb.canHit(now) {
		return false
	}
	cb.lastHit = now
	cb.lastAction = now

	if !cb.onHit(target, hit) {
		return false
	}

	if hit.Ranged {
		cb.med.CreateProjectile(cb.c, target, hit)
		return true
	}
	cb.med.PushRegions(&cb.c.Entity, HitMessage(cb.c, target, hit))
	Resolve(cb.med, cb.c, target, hit)
	return true
}

// DealAoE hits every opposing character within radius of the caster.
// Mobs only hit players and players only hit mobs.
func (cb *Combat) DealAoE(radius int, terror bool) []*world.Character {
	var hit []*world.Character
	rng := cb.med.Rand()
	for _, t := range cb.med.Nearby(cb.c, radius) {
		if t.Dead || t.IsPlayer() == cb.c.IsPlayer() {
			continue
		}
		h := world.Hit{
			Kind:   world.HitExplosive,
			Damage: AoEDamage(rng, cb.c, t),
			AoE:    true,
			Terror: terror,
		}
		cb.med.PushRegions(&cb.c.Entity, HitMessage(cb.c, t, h))
		Resolve(cb.med, cb.c, t, h)
		hit = append(hit, t)
	}
	if len(hit) > 0 {
		cb.lastAction = cb.now()
	}
	return hit
}

// Stun disables the character's loops for the stun duration. Stunning an
// already stunned character restarts the window.
func (cb *Combat) Stun() {
	cb.c.Stunned = true
	cb.stunTimer = cb.restartEffect(cb.stunTimer, cb.cfg.StunDuration, "combat.stun", func() {
		cb.c.Stunned = false
		cb.stunTimer = 0
		cb.sync()
	})
	cb.sync()
}

// Freeze works like Stun with its own duration.
func (cb *Combat) Freeze() {
	cb.c.Frozen = true
	cb.freezeTimer = cb.restartEffect(cb.freezeTimer, cb.cfg.FreezeDuration, "combat.freeze", func() {
		cb.c.Frozen = false
		cb.freezeTimer = 0
		cb.sync()
	})
	cb.sync()
}

func (cb *Combat) restartEffect(id sched.TimerID, d time.Duration, name string, fn func()) sched.TimerID {
	s := cb.med.Scheduler()
	if s.Reset(id, d) {
		return id
	}
	return s.After(d, name, fn)
}

// Poison starts or extends poison damage ticks from attacker.
func (cb *Combat) Poison(attacker *world.Character) {
	if attacker == nil || cb.c.Dead {
		return
	}
	cb.c.Poisoned = true
	cb.poisoner = attacker.Instance
	cb.poisonUntil = cb.now().Add(cb.cfg.PoisonDuration)
	s := cb.med.Scheduler()
	if s.Active(cb.poisonTimer) {
		return
	}
	cb.poisonTimer = s.Every(cb.cfg.PoisonInterval, "combat.poison", cb.poisonTick)
}

func (cb *Combat) poisonTick() {
	source := cb.med.Character(cb.poisoner)
	if cb.c.Dead || source == nil || !cb.now().Before(cb.poisonUntil) {
		cb.Cure()
		return
	}
	h := world.Hit{Kind: world.HitPoison, Damage: PoisonDamage(source.Level)}
	cb.med.PushRegions(&cb.c.Entity, HitMessage(source, cb.c, h))
	cb.med.HandleDamage(source, cb.c, h.Damage)
}

// Cure ends poison.
func (cb *Combat) Cure() {
	cb.med.Scheduler().Cancel(cb.poisonTimer)
	cb.poisonTimer = 0
	cb.poisoner = 0
	cb.c.Poisoned = false
}

func (cb *Combat) attackTick() {
	c := cb.c
	if !c.HasTarget() || c.Incapacitated() {
		return
	}
	target := cb.med.Character(c.Target)
	if target == nil || target.Dead {
		c.RemoveTarget()
		cb.queue.Clear()
		return
	}
	if !cb.InRange(target) {
		cb.queue.Clear()
		return
	}
	cb.Attack(target)
	if h, ok := cb.queue.Next(); ok {
		cb.Hit(target, h, false)
	}
	cb.sync()
}

func (cb *Combat) followTick() {
	c := cb.c
	if !c.HasTarget() || c.Incapacitated() {
		return
	}
	target := cb.med.Character(c.Target)
	if target == nil || target.Dead || cb.InRange(target) {
		return
	}

	if c.IsPlayer() {
		if target.IsPlayer() {
			cb.med.PushTo(c.Instance, packet.Message{Op: packet.OpMovement, Data: packet.Movement{
				Opcode:   packet.MovementFollow,
				Instance: uint64(c.Instance),
				X:        target.X,
				Y:        target.Y,
				Target:   uint64(target.Instance),
			}})
		}
		return
	}

	x, y, ok := stepToward(cb.med.Rand(), c.X, c.Y, target.X, target.Y)
	if ok {
		cb.med.MoveStep(c, x, y)
	}
}

// stepToward picks one tile along a random axis that closes the distance.
func stepToward(rng *rand.Rand, x, y, tx, ty int) (int, int, bool) {
	dx, dy := sign(tx-x), sign(ty-y)
	switch {
	case dx == 0 && dy == 0:
		return x, y, false
	case dx == 0:
		return x, y + dy, true
	case dy == 0:
		return x + dx, y, true
	case rng.IntN(2) == 0:
		return x + dx, y, true
	default:
		return x, y + dy, true
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func (cb *Combat) watchdogTick() {
	if cb.now().Sub(cb.lastAction) >= cb.cfg.Watchdog {
		cb.Stop()
		cb.med.Disengage(cb.c)
	}
}

func (cb *Combat) sync() {
	cb.med.PushRegions(&cb.c.Entity, SyncMessage(cb.c))
}

func (cb *Combat) onBegin(target *world.Character) {
	if cb.strategy == nil {
		return
	}
	defer cb.recoverStrategy("OnBegin")
	cb.strategy.OnBegin(cb, target)
}

// onHit asks the strategy whether the base hit proceeds. A panicking
// strategy lets it proceed.
func (cb *Combat) onHit(target *world.Character, hit world.Hit) (proceed bool) {
	if cb.strategy == nil {
		return true
	}
	proceed = true
	defer cb.recoverStrategy("OnHit")
	return cb.strategy.OnHit(cb, target, hit)
}

func (cb *Combat) recoverStrategy(hook string) {
	if rec := recover(); rec != nil {
		cb.log.Error("combat strategy panic recovered",
			zap.String("hook", hook),
			zap.String("key", cb.c.Key),
			zap.Stringer("instance", cb.c.Instance),
			zap.Any("panic", rec),
		)
	}
}

// Resolve applies hit's effects and damage to target. Used for immediate
// hits and projectile impacts.
func Resolve(med Mediator, attacker, target *world.Character, hit world.Hit) {
	if attacker == nil || target == nil || target.Dead {
		return
	}
	if target.Combat != nil {
		switch hit.Kind {
		case world.HitStun:
			target.Combat.Stun()
		case world.HitFreezing:
			target.Combat.Freeze()
		}
		if hit.Poison {
			target.Combat.Poison(attacker)
		}
	}
	med.HandleDamage(attacker, target, hit.Damage)
}

// HitData converts a hit to its wire form.
func HitData(h world.Hit) *packet.HitData {
	return &packet.HitData{
		Kind:   uint8(h.Kind),
		Damage: h.Damage,
		Ranged: h.Ranged,
		AoE:    h.AoE,
		Terror: h.Terror,
	}
}

func HitMessage(attacker, target *world.Character, h world.Hit) packet.Message {
	return packet.Message{Op: packet.OpCombat, Data: packet.Combat{
		Opcode:   packet.CombatHit,
		Attacker: uint64(attacker.Instance),
		Target:   uint64(target.Instance),
		Hit:      HitData(h),
	}}
}

func SyncMessage(c *world.Character) packet.Message {
	return packet.Message{Op: packet.OpSync, Data: packet.Sync{
		Instance:     uint64(c.Instance),
		X:            c.X,
		Y:            c.Y,
		HitPoints:    c.HitPoints,
		MaxHitPoints: c.MaxHitPoints,
		Stunned:      c.Stunned,
		Frozen:       c.Frozen,
	}}
}
