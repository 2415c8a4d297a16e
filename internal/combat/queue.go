package combat

import "github.com/Kaetram/Kaetram-Open-sub002/internal/world"

// HitQueue holds hits waiting to be delivered, oldest first.
type HitQueue struct {
	hits []world.Hit
}

func (q *HitQueue) Add(h world.Hit) { q.hits = append(q.hits, h) }

// Next pops the oldest hit.
func (q *HitQueue) Next() (world.Hit, bool) {
	if len(q.hits) == 0 {
		return world.Hit{}, false
	}
	h := q.hits[0]
	q.hits = q.hits[1:]
	return h, true
}

func (q *HitQueue) Clear()   { q.hits = q.hits[:0] }
func (q *HitQueue) Len() int { return len(q.hits) }
