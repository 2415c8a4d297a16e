package handler

import (
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
)

// HandleEquip equips the item in an inventory slot. A request naming an
// equipment slot takes that item off instead.
func HandleEquip(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.EquipRequest
	if err := r.Decode(&req); err != nil {
		return
	}
	if req.Slot != "" {
		slot, ok := world.ParseEquipSlot(req.Slot)
		if !ok {
			return
		}
		deps.World.Unequip(p, slot)
		return
	}
	deps.World.Equip(p, req.Item)
}
