package handler

import (
	"github.com/Kaetram/Kaetram-Open-sub002/internal/data"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
)

// HandleCut fells the tree next to the player.
func HandleCut(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	gather(sess, p, r, deps, data.Trees)
}

// HandleMine mines the rock next to the player.
func HandleMine(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	gather(sess, p, r, deps, data.Rocks)
}

func gather(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps, kind data.ResourceKind) {
	var req packet.ResourceRequest
	if err := r.Decode(&req); err != nil {
		return
	}
	if p.Dead {
		return
	}
	if p.DistanceTo(req.X, req.Y) > 1 {
		send(sess, deps, notification("You need to stand next to that."))
		return
	}
	deps.World.DepleteResource(p, kind, req.X, req.Y)
}
