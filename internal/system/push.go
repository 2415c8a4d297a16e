package system

import (
	"slices"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

// Mode selects who receives a Packet.
type Mode uint8

const (
	Broadcast   Mode = iota // every online player
	Selectively             // every online player except Ignore
	ToPlayer                // Player
	ToPlayers               // Players
	ToRegion                // players exactly inside Region
	ToRegions               // players in Region's neighbourhood
	ToNames                 // players named in Names
	ToOldRegions            // players in the regions Entity just left
)

func (m Mode) String() string {
	switch m {
	case Broadcast:
		return "broadcast"
	case Selectively:
		return "selectively"
	case ToPlayer:
		return "player"
	case ToPlayers:
		return "players"
	case ToRegion:
		return "region"
	case ToRegions:
		return "regions"
	case ToNames:
		return "names"
	case ToOldRegions:
		return "old-regions"
	}
	return "unknown"
}

// Packet addresses an outbound push. Ignore applies to every mode.
type Packet struct {
	Mode    Mode
	Player  ecs.EntityID
	Players []ecs.EntityID
	Names   []string
	Region  world.RegionID
	Entity  *world.Entity
	Ignore  []ecs.EntityID
}

// Push is the single outbound funnel. msgs may nest Messages in slices to
// any depth; each message is encoded once and the same frame is handed to
// every recipient.
func (w *World) Push(to Packet, msgs ...any) {
	list := packet.Flatten(msgs...)
	if len(list) == 0 {
		return
	}
	targets := w.recipients(to)
	if len(targets) == 0 {
		return
	}
	frames := make([][]byte, 0, len(list))
	for _, m := range list {
		b, err := w.codec.Encode(m)
		if err != nil {
			w.log.Error("encode message", zap.Stringer("op", m.Op), zap.Error(err))
			continue
		}
		frames = append(frames, b)
	}
	for _, p := range targets {
		for _, f := range frames {
			p.Send(f)
		}
	}
}

func (w *World) recipients(to Packet) []*world.Player {
	var out []*world.Player
	add := func(p *world.Player) {
		if p == nil || slices.Contains(to.Ignore, p.Instance) {
			return
		}
		out = append(out, p)
	}
	fromEntity := func(e *world.Entity) { add(w.State.Player(e.Instance)) }

	regions := w.State.Regions
	switch to.Mode {
	case Broadcast, Selectively:
		for _, p := range w.State.Players() {
			add(p)
		}
	case ToPlayer:
		add(w.State.Player(to.Player))
	case ToPlayers:
		for _, id := range to.Players {
			add(w.State.Player(id))
		}
	case ToRegion:
		regions.ForEachPlayer([]world.RegionID{to.Region}, fromEntity)
	case ToRegions:
		regions.ForEachPlayer(regions.Neighbourhood(to.Region), fromEntity)
	case ToNames:
		for _, name := range to.Names {
			add(w.State.PlayerByName(name))
		}
	case ToOldRegions:
		if to.Entity != nil {
			regions.ForEachPlayer(to.Entity.OldRegions, fromEntity)
		}
	}
	return out
}
