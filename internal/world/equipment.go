package world

// EquipSlot identifies an equipment slot on a player.
type EquipSlot int

const (
	SlotWeapon EquipSlot = iota
	SlotArmour
	SlotPendant
	SlotRing
	SlotBoots
	SlotMax
)

func (s EquipSlot) String() string {
	switch s {
	case SlotWeapon:
		return "weapon"
	case SlotArmour:
		return "armour"
	case SlotPendant:
		return "pendant"
	case SlotRing:
		return "ring"
	case SlotBoots:
		return "boots"
	}
	return "unknown"
}

// ParseEquipSlot maps a slot name to its EquipSlot.
func ParseEquipSlot(name string) (EquipSlot, bool) {
	for s := SlotWeapon; s < SlotMax; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// Equipped is what occupies one slot. The zero value is an empty slot.
type Equipped struct {
	Key       string  `json:"key,omitempty"`
	Level     int     `json:"level,omitempty"`
	Range     int     `json:"range,omitempty"`     // weapons only
	Amplifier float64 `json:"amplifier,omitempty"` // pendant, ring and boots only
}

func (e Equipped) Empty() bool { return e.Key == "" }

// Equipment is indexed by EquipSlot.
type Equipment [SlotMax]Equipped
