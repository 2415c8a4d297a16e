package combat

import (
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/scripting"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

// Strategy injects mob-specific mechanics into a Combat. OnHit runs before
// a hit is delivered; returning false cancels the base resolution.
type Strategy interface {
	OnBegin(cb *Combat, target *world.Character)
	OnHit(cb *Combat, target *world.Character, hit world.Hit) bool
}

// StrategyFactory builds the strategy for one mob.
type StrategyFactory func(m *world.Mob) Strategy

// Registry maps a mob key (or plugin name) to its strategy factory.
type Registry struct {
	factories map[string]StrategyFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StrategyFactory)}
}

// Register maps key to f, replacing any previous factory.
func (r *Registry) Register(key string, f StrategyFactory) {
	r.factories[key] = f
}

func (r *Registry) Has(key string) bool {
	_, ok := r.factories[key]
	return ok
}

// New returns the strategy for m, looked up by plugin name first and then
// by the mob's key. Returns nil when neither is registered.
func (r *Registry) New(m *world.Mob, plugin string) Strategy {
	for _, k := range []string{plugin, m.Key} {
		if k == "" {
			continue
		}
		if f, ok := r.factories[k]; ok {
			return f(m)
		}
	}
	return nil
}

// RegisterBuiltins adds the compiled boss behaviours.
func RegisterBuiltins(r *Registry) {
	r.Register("ogrelord", func(*world.Mob) Strategy { return &OgreLord{} })
	r.Register("skeletonking", func(*world.Mob) Strategy { return &SkeletonKing{} })
	r.Register("queenant", func(*world.Mob) Strategy { return &QueenAnt{} })
}

// OgreLord replaces every fourth hit with a windup that lands as an area
// attack freezing everyone it catches.
type OgreLord struct {
	hits    int
	winding bool
}

const (
	ogreWindupEvery = 4
	ogreWindup      = time.Second
	ogreRadius      = 2
)

func (o *OgreLord) OnBegin(*Combat, *world.Character) { o.hits = 0 }

func (o *OgreLord) OnHit(cb *Combat, _ *world.Character, _ world.Hit) bool {
	if o.winding {
		return false
	}
	o.hits++
	if o.hits%ogreWindupEvery != 0 {
		return true
	}
	o.winding = true
	c := cb.Character()
	cb.Mediator().PushRegions(&c.Entity, packet.Message{Op: packet.OpAnimation, Data: packet.Animation{
		Instance: uint64(c.Instance),
		Name:     "windup",
	}})
	cb.Mediator().Scheduler().After(ogreWindup, "ogrelord.windup", func() {
		o.winding = false
		if c.Dead {
			return
		}
		for _, t := range cb.DealAoE(ogreRadius, false) {
			if !t.Dead && t.Combat != nil {
				t.Combat.Freeze()
			}
		}
	})
	return false
}

// SkeletonKing summons minions the first time its health drops below each
// quarter.
type SkeletonKing struct {
	fired [3]bool
}

var skeletonThresholds = [3]float64{0.75, 0.5, 0.25}

const skeletonMinion = "skeleton"

func (s *SkeletonKing) OnBegin(*Combat, *world.Character) {}

func (s *SkeletonKing) OnHit(cb *Combat, _ *world.Character, _ world.Hit) bool {
	c := cb.Character()
	if c.MaxHitPoints <= 0 {
		return true
	}
	ratio := float64(c.HitPoints) / float64(c.MaxHitPoints)
	for i, th := range skeletonThresholds {
		if s.fired[i] || ratio >= th {
			continue
		}
		s.fired[i] = true
		s.summon(cb)
	}
	return true
}

func (s *SkeletonKing) summon(cb *Combat) {
	c := cb.Character()
	master := cb.Mediator().Mob(c.Instance)
	if master == nil {
		return
	}
	for _, dx := range []int{-1, 1} {
		m := cb.Mediator().SpawnMinion(master, skeletonMinion, c.X+dx, c.Y)
		if m != nil && c.HasTarget() && m.Combat != nil {
			if t := cb.Mediator().Character(c.Target); t != nil {
				m.Combat.Begin(t)
			}
		}
	}
}

// QueenAnt dodges by teleporting next to her target at most once per
// cooldown.
type QueenAnt struct {
	last time.Time
}

const queenAntCooldown = 10 * time.Second

func (q *QueenAnt) OnBegin(cb *Combat, _ *world.Character) {
	q.last = cb.now()
}

func (q *QueenAnt) OnHit(cb *Combat, target *world.Character, _ world.Hit) bool {
	now := cb.now()
	if now.Sub(q.last) < queenAntCooldown {
		return true
	}
	rng := cb.Mediator().Rand()
	offsets := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	start := rng.IntN(len(offsets))
	for i := range offsets {
		off := offsets[(start+i)%len(offsets)]
		if cb.Mediator().Teleport(cb.Character(), target.X+off[0], target.Y+off[1]) {
			q.last = now
			return false
		}
	}
	return true
}

// ScriptHost runs scripted behaviour hooks.
type ScriptHost interface {
	HasBehaviour(key string) bool
	Hook(key, hook string, ctx scripting.HookContext) ([]scripting.Command, error)
}

// RegisterScripts adds a strategy for every behaviour the host defines.
// Scripted behaviours take precedence over built-ins with the same key.
func RegisterScripts(r *Registry, host ScriptHost, keys []string, log *zap.Logger) {
	for _, k := range keys {
		key := k
		r.Register(key, func(*world.Mob) Strategy {
			return &LuaStrategy{host: host, key: key, log: log}
		})
	}
}

// LuaStrategy forwards hooks to a script and executes the returned
// commands: aoe, freeze, stun, summon, teleport, animate and skip.
type LuaStrategy struct {
	host ScriptHost
	key  string
	hits int
	log  *zap.Logger
}

func (s *LuaStrategy) OnBegin(cb *Combat, target *world.Character) {
	s.hits = 0
	s.run(cb, target, "on_begin", world.Hit{})
}

func (s *LuaStrategy) OnHit(cb *Combat, target *world.Character, hit world.Hit) bool {
	s.hits++
	return s.run(cb, target, "on_hit", hit)
}

func (s *LuaStrategy) run(cb *Combat, target *world.Character, hook string, hit world.Hit) (proceed bool) {
	c := cb.Character()
	ctx := scripting.HookContext{
		Instance:     uint64(c.Instance),
		Key:          c.Key,
		X:            c.X,
		Y:            c.Y,
		HitPoints:    c.HitPoints,
		MaxHitPoints: c.MaxHitPoints,
		Damage:       hit.Damage,
		Hits:         s.hits,
	}
	if target != nil {
		ctx.Target = uint64(target.Instance)
		ctx.TargetX, ctx.TargetY = target.X, target.Y
	}
	cmds, err := s.host.Hook(s.key, hook, ctx)
	if err != nil {
		s.log.Error("lua hook failed", zap.String("key", s.key), zap.String("hook", hook), zap.Error(err))
		return true
	}

	proceed = true
	med := cb.Mediator()
	for _, cmd := range cmds {
		switch cmd.Action {
		case "skip":
			proceed = false
		case "aoe":
			cb.DealAoE(max(cmd.Radius, 1), false)
		case "freeze":
			if target != nil && target.Combat != nil {
				target.Combat.Freeze()
			}
		case "stun":
			if target != nil && target.Combat != nil {
				target.Combat.Stun()
			}
		case "summon":
			master := med.Mob(c.Instance)
			if master == nil {
				continue
			}
			for i := 0; i < max(cmd.Count, 1); i++ {
				med.SpawnMinion(master, cmd.Key, c.X+cmd.X, c.Y+cmd.Y)
			}
		case "teleport":
			med.Teleport(c, cmd.X, cmd.Y)
		case "animate":
			med.PushRegions(&c.Entity, packet.Message{Op: packet.OpAnimation, Data: packet.Animation{
				Instance: uint64(c.Instance),
				Name:     cmd.Text,
			}})
		default:
			s.log.Warn("unknown lua command", zap.String("key", s.key), zap.String("action", cmd.Action))
		}
	}
	return proceed
}
