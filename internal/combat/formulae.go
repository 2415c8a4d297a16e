package combat

import (
	"math"
	"math/rand/v2"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
)

const (
	MaxLevel = 135

	// AmplifierCap bounds the product of pendant, ring and boots bonuses.
	AmplifierCap = 1.6

	rangedPenalty      = 1.275
	criticalMultiplier = 1.5
	playerBaseDamage   = 10
)

// LevelExp[i] is the experience at which level i+1 begins.
var LevelExp [MaxLevel + 1]int

func init() {
	for i := 1; i <= MaxLevel; i++ {
		points := math.Floor(float64(i) + 300*math.Pow(2, float64(i)/7))
		LevelExp[i] = LevelExp[i-1] + int(math.Floor(points/4))
	}
}

// LevelFromExperience returns the level reached with exp experience.
func LevelFromExperience(exp int) int {
	for i := 1; i < MaxLevel; i++ {
		if exp < LevelExp[i] {
			return i
		}
	}
	return MaxLevel
}

// LevelExperience is the minimum experience for level.
func LevelExperience(level int) int {
	level = min(max(level, 1), MaxLevel)
	return LevelExp[level-1]
}

func MaxHitPoints(level int) int { return 39 + level*30 }
func MaxMana(level int) int      { return 10 + level*8 }

// PoisonDamage is the damage dealt per poison tick by an attacker of the
// given level.
func PoisonDamage(level int) int { return 1 + level/10 }

func amplifier(c *world.Character) float64 {
	return math.Min(c.Amplifiers.Product(), AmplifierCap)
}

// MaxDamage is the upper bound of a hit from attacker.
func MaxDamage(attacker *world.Character, ranged, critical bool) int {
	level := float64(attacker.Level)
	weapon := float64(attacker.WeaponLevel)
	armour := float64(attacker.ArmorLevel)

	damage := level + level*weapon/2 + weapon*armour/8
	if attacker.IsPlayer() {
		damage += playerBaseDamage
	}
	if ranged {
		damage /= rangedPenalty
	}
	if critical {
		damage *= criticalMultiplier
	}
	damage *= amplifier(attacker)
	return int(math.Ceil(damage))
}

// Damage rolls a hit from attacker against target. The raw roll is
// uniform between the attacker's level and MaxDamage; the target absorbs
// (level + armour/2) scaled by its own amplifiers. Never negative.
func Damage(rng *rand.Rand, attacker, target *world.Character, ranged, critical bool) int {
	hi := MaxDamage(attacker, ranged, critical)
	lo := min(attacker.Level, hi)
	roll := float64(lo)
	if hi > lo {
		roll += float64(rng.IntN(hi - lo + 1))
	}

	absorb := (float64(target.Level) + float64(target.ArmorLevel)/2) * amplifier(target)
	damage := math.Ceil(roll - absorb)
	if math.IsNaN(damage) || damage < 0 {
		return 0
	}
	return int(damage)
}

// CriticalDamage scales an already rolled hit to its critical value.
func CriticalDamage(damage int) int {
	return int(math.Ceil(float64(max(damage, 0)) * criticalMultiplier))
}

// AoEDamage rolls the damage an area hit deals to one target. Area hits
// never crit and never take the ranged penalty.
func AoEDamage(rng *rand.Rand, attacker, target *world.Character) int {
	return Damage(rng, attacker, target, false, false)
}
