package world

import "errors"

// ErrNoSpace is returned when a container has no free slot for an item.
var ErrNoSpace = errors.New("not enough space")

// Slot is one container cell. An empty Key means the slot is free.
type Slot struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Container is a fixed-size item list (inventory or bank).
// Accessed only from the game loop goroutine.
type Container struct {
	Kind  string
	Slots []Slot
}

func NewContainer(kind string, size int) *Container {
	return &Container{Kind: kind, Slots: make([]Slot, size)}
}

func (c *Container) Size() int { return len(c.Slots) }

// Load replaces the contents with saved slots. It reports false when the
// saved data does not match the container size; the data is then padded
// or truncated to fit.
func (c *Container) Load(saved []Slot) bool {
	size := len(c.Slots)
	c.Slots = make([]Slot, size)
	copy(c.Slots, saved)
	for i := range c.Slots {
		if c.Slots[i].Count <= 0 || c.Slots[i].Key == "" {
			c.Slots[i] = Slot{}
		}
	}
	return len(saved) == size
}

// Snapshot copies the slots for storage.
func (c *Container) Snapshot() []Slot {
	out := make([]Slot, len(c.Slots))
	copy(out, c.Slots)
	return out
}

// Add stores count of key, stacking onto an existing slot when stackable.
func (c *Container) Add(key string, count int, stackable bool) error {
	if count <= 0 || key == "" {
		return errors.New("invalid item")
	}
	if stackable {
		for i := range c.Slots {
			if c.Slots[i].Key == key {
				c.Slots[i].Count += count
				return nil
			}
		}
		if i := c.free(); i >= 0 {
			c.Slots[i] = Slot{Key: key, Count: count}
			return nil
		}
		return ErrNoSpace
	}
	if c.FreeSlots() < count {
		return ErrNoSpace
	}
	for n := 0; n < count; n++ {
		c.Slots[c.free()] = Slot{Key: key, Count: 1}
	}
	return nil
}

// Remove takes count of key out. Nothing changes if there is not enough.
func (c *Container) Remove(key string, count int) bool {
	if c.Count(key) < count {
		return false
	}
	for i := range c.Slots {
		if count == 0 {
			break
		}
		if c.Slots[i].Key != key {
			continue
		}
		take := min(count, c.Slots[i].Count)
		c.Slots[i].Count -= take
		count -= take
		if c.Slots[i].Count == 0 {
			c.Slots[i] = Slot{}
		}
	}
	return true
}

// Take empties slot index and returns what it held.
func (c *Container) Take(index int) (Slot, bool) {
	if index < 0 || index >= len(c.Slots) || c.Slots[index].Key == "" {
		return Slot{}, false
	}
	s := c.Slots[index]
	c.Slots[index] = Slot{}
	return s, true
}

// Count returns the total amount of key held.
func (c *Container) Count(key string) int {
	n := 0
	for _, s := range c.Slots {
		if s.Key == key {
			n += s.Count
		}
	}
	return n
}

func (c *Container) FreeSlots() int {
	n := 0
	for _, s := range c.Slots {
		if s.Key == "" {
			n++
		}
	}
	return n
}

func (c *Container) free() int {
	for i, s := range c.Slots {
		if s.Key == "" {
			return i
		}
	}
	return -1
}
