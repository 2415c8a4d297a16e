package world

import (
	"strings"

	"golang.org/x/text/cases"
)

// Sender receives encoded messages for a single connection.
type Sender interface {
	Send(data []byte)
}

const (
	InventorySize = 20
	BankSize      = 56
)

// Rights levels.
const (
	RightsPlayer = 0
	RightsMod    = 1
	RightsAdmin  = 2
)

// Player is a connected, logged-in character.
type Player struct {
	Character

	Username string
	Rights   int
	Session  Sender

	Inventory *Container
	Bank      *Container
	Equipment Equipment

	Quests       map[string]int // quest key -> stage
	Achievements map[string]int // achievement key -> progress
	Professions  map[string]int // profession key -> experience

	// Dirty is set by any mutation that should reach storage.
	Dirty bool
}

// NewPlayer builds an empty player with default containers.
func NewPlayer(username string) *Player {
	p := &Player{
		Username:     username,
		Inventory:    NewContainer("inventory", InventorySize),
		Bank:         NewContainer("bank", BankSize),
		Quests:       make(map[string]int),
		Achievements: make(map[string]int),
		Professions:  make(map[string]int),
	}
	p.Kind = KindPlayer
	p.Name = username
	return p
}

// Send forwards encoded bytes to the session, if one is attached.
func (p *Player) Send(data []byte) {
	if p.Session != nil {
		p.Session.Send(data)
	}
}

func (p *Player) IsAdmin() bool { return p.Rights >= RightsAdmin }

// ApplyEquipment derives combat stats from what is equipped.
func (p *Player) ApplyEquipment() {
	weapon := p.Equipment[SlotWeapon]
	p.WeaponLevel = max(weapon.Level, 1)
	p.AttackRange = max(weapon.Range, 1)
	p.ArmorLevel = max(p.Equipment[SlotArmour].Level, 1)
	p.Amplifiers = Amplifiers{
		Pendant: p.Equipment[SlotPendant].Amplifier,
		Ring:    p.Equipment[SlotRing].Amplifier,
		Boots:   p.Equipment[SlotBoots].Amplifier,
	}
}

// NormalizeName folds a username into its storage key. Lookups by name
// are case-insensitive. A Caser is stateful, so one is built per call.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
