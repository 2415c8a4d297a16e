package system

import (
	"slices"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/event"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/data"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

// tile is a flood-fill visited key.
type tile struct{ x, y int }

// depletion is one cut tree or mined rock: the original layers of every
// tile it covers, restored verbatim when it regrows.
type depletion struct {
	kind     data.ResourceKind
	original map[int][]int
	at       time.Time
}

// resourceRewards maps each resource kind to the profession it trains and
// the item it yields.
var resourceRewards = map[data.ResourceKind]struct{ profession, item string }{
	data.Trees: {"lumberjacking", "logs"},
	data.Rocks: {"mining", "ore"},
}

// DepleteResource cuts or mines the object covering (x, y). Every
// four-way connected tile of the same object is swapped for its depleted
// variant, or loses that layer when there is none. Returns the number of
// tiles changed; zero when there is nothing to deplete. p may be nil.
func (w *World) DepleteResource(p *world.Player, kind data.ResourceKind, x, y int) int {
	if !w.Map.InBounds(x, y) {
		return 0
	}
	origin := w.Map.Index(x, y)
	if _, done := w.depleted[origin]; done {
		return 0
	}
	res := w.Map.ResourceAt(kind, origin)
	if res == nil {
		return 0
	}

	visited := make(map[tile]struct{})
	var indexes []int
	w.floodFill(res, x, y, visited, &indexes)

	d := &depletion{kind: kind, original: make(map[int][]int, len(indexes)), at: w.sched.Now()}
	changed := make([]packet.Tile, 0, len(indexes))
	for _, idx := range indexes {
		layers := w.Map.Tile(idx)
		d.original[idx] = layers
		next := make([]int, 0, len(layers))
		for _, id := range layers {
			if rep, ok := res.Replacement(id); ok {
				if rep != 0 {
					next = append(next, rep)
				}
				continue
			}
			next = append(next, id)
		}
		w.Map.SetTile(idx, next)
		w.depleted[idx] = d
		changed = append(changed, packet.Tile{Index: idx, Layers: next})
	}
	w.depletions = append(w.depletions, d)
	w.pushTiles(x, y, changed)

	if p != nil {
		w.rewardResource(p, kind, len(indexes))
	}
	event.Emit(w.bus, event.ResourceDepleted{Kind: string(kind), X: x, Y: y, Tiles: len(indexes), Player: playerID(p)})
	w.log.Debug("resource depleted", zap.String("kind", string(kind)), zap.Int("tiles", len(indexes)))
	return len(indexes)
}

// floodFill collects every tile four-way connected to (x, y) that shows
// any tile id of res.
func (w *World) floodFill(res *data.Resource, x, y int, visited map[tile]struct{}, out *[]int) {
	key := tile{x, y}
	if _, seen := visited[key]; seen || !w.Map.InBounds(x, y) {
		return
	}
	visited[key] = struct{}{}
	idx := w.Map.Index(x, y)
	if _, done := w.depleted[idx]; done || !holds(res, w.Map.Tile(idx)) {
		return
	}
	*out = append(*out, idx)
	w.floodFill(res, x+1, y, visited, out)
	w.floodFill(res, x-1, y, visited, out)
	w.floodFill(res, x, y+1, visited, out)
	w.floodFill(res, x, y-1, visited, out)
}

func holds(res *data.Resource, layers []int) bool {
	for _, id := range layers {
		if _, ok := res.Replacement(id); ok {
			return true
		}
	}
	return false
}

// regrow restores every depletion older than its kind's regrowth time.
func (w *World) regrow() {
	if len(w.depletions) == 0 {
		return
	}
	now := w.sched.Now()
	kept := w.depletions[:0]
	for _, d := range w.depletions {
		if now.Sub(d.at) < w.regrowth(d.kind) {
			kept = append(kept, d)
			continue
		}
		tiles := make([]packet.Tile, 0, len(d.original))
		anyX, anyY := 0, 0
		for idx, layers := range d.original {
			w.Map.SetTile(idx, layers)
			delete(w.depleted, idx)
			tiles = append(tiles, packet.Tile{Index: idx, Layers: layers})
			anyX, anyY = w.Map.Coord(idx)
		}
		w.pushTiles(anyX, anyY, tiles)
	}
	clear(w.depletions[len(kept):])
	w.depletions = kept
}

func (w *World) regrowth(kind data.ResourceKind) time.Duration {
	if kind == data.Rocks {
		return w.cfg.World.RockRegrowth
	}
	return w.cfg.World.TreeRegrowth
}

// Depleted reports whether the tile at index is currently cut or mined.
func (w *World) Depleted(index int) bool {
	_, ok := w.depleted[index]
	return ok
}

// pushTiles tells every player around (x, y), in the public world and in
// any instance of it, to re-render tiles.
func (w *World) pushTiles(x, y int, tiles []packet.Tile) {
	if len(tiles) == 0 {
		return
	}
	around := w.State.Regions.Neighbourhood(w.State.Regions.IDFromPosition(x, y))
	var ids []ecs.EntityID
	for _, p := range w.State.Players() {
		if p.HasRegion && slices.Contains(around, p.Region.Public()) {
			ids = append(ids, p.Instance)
		}
	}
	if len(ids) == 0 {
		return
	}
	w.Push(Packet{Mode: ToPlayers, Players: ids},
		packet.Message{Op: packet.OpRegion, Data: packet.Region{Tiles: tiles}})
}

func (w *World) rewardResource(p *world.Player, kind data.ResourceKind, tiles int) {
	r, ok := resourceRewards[kind]
	if !ok {
		return
	}
	p.Professions[r.profession] += tiles
	p.Dirty = true
	if w.Items.Get(r.item) != nil {
		w.Give(p, r.item, 1)
	}
}

func playerID(p *world.Player) (id ecs.EntityID) {
	if p != nil {
		id = p.Instance
	}
	return id
}
