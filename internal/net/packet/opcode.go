package packet

import "fmt"

// Opcode identifies a message type on the wire. Inbound and outbound
// messages share one space; some opcodes are used in both directions.
type Opcode uint8

const (
	OpHandshake Opcode = iota + 1
	OpLogin
	OpWelcome
	OpSpawn
	OpDespawn
	OpMovement
	OpTeleport
	OpSync
	OpTarget
	OpAttack
	OpCombat
	OpPoints
	OpNotification
	OpChat
	OpExperience
	OpDeath
	OpRespawn
	OpProjectile
	OpContainer
	OpEquipment
	OpEquip
	OpRegion
	OpAnimation
	OpCut
	OpMine
)

var opNames = map[Opcode]string{
	OpHandshake:    "handshake",
	OpLogin:        "login",
	OpWelcome:      "welcome",
	OpSpawn:        "spawn",
	OpDespawn:      "despawn",
	OpMovement:     "movement",
	OpTeleport:     "teleport",
	OpSync:         "sync",
	OpTarget:       "target",
	OpAttack:       "attack",
	OpCombat:       "combat",
	OpPoints:       "points",
	OpNotification: "notification",
	OpChat:         "chat",
	OpExperience:   "experience",
	OpDeath:        "death",
	OpRespawn:      "respawn",
	OpProjectile:   "projectile",
	OpContainer:    "container",
	OpEquipment:    "equipment",
	OpEquip:        "equip",
	OpRegion:       "region",
	OpAnimation:    "animation",
	OpCut:          "cut",
	OpMine:         "mine",
}

func (o Opcode) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Sub-opcodes carried inside Combat and Movement payloads.
const (
	CombatInitiate uint8 = iota + 1
	CombatHit
	CombatFinish
)

const (
	MovementMove uint8 = iota + 1
	MovementFollow
	MovementStop
)
