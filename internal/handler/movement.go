package handler

import (
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
)

// HandleMove steps the player one tile. A rejected step snaps the client
// back to the authoritative position.
func HandleMove(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.MoveRequest
	if err := r.Decode(&req); err != nil {
		return
	}
	if deps.World.MovePlayer(p, req.X, req.Y) {
		return
	}
	send(sess, deps, packet.Message{Op: packet.OpTeleport, Data: packet.Teleport{
		Instance: uint64(p.Instance),
		X:        p.X,
		Y:        p.Y,
	}})
}
