package handler

import (
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
)

// HandleRespawn brings a dead player back at the spawn point.
func HandleRespawn(_ *net.Session, p *world.Player, _ *packet.Reader, deps *Deps) {
	if !p.Dead {
		return
	}
	deps.World.Respawn(p)
}
