package world

// HitKind describes how a hit is delivered and rendered.
type HitKind uint8

const (
	HitDamage HitKind = iota
	HitPoison
	HitCritical
	HitStun
	HitExplosive
	HitFreezing
	HitBurning
	HitHeal
)

func (k HitKind) String() string {
	switch k {
	case HitDamage:
		return "damage"
	case HitPoison:
		return "poison"
	case HitCritical:
		return "critical"
	case HitStun:
		return "stun"
	case HitExplosive:
		return "explosive"
	case HitFreezing:
		return "freezing"
	case HitBurning:
		return "burning"
	case HitHeal:
		return "heal"
	}
	return "unknown"
}

// Hit is one unit of damage or effect. Passed by value and never mutated
// after creation.
type Hit struct {
	Kind   HitKind
	Damage int
	Ranged bool
	AoE    bool
	Terror bool
	Poison bool
}
