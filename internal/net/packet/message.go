package packet

// Message is one outbound payload tagged with its opcode. Data is one of
// the payload structs below and is encoded by a Codec.
type Message struct {
	Op   Opcode
	Data any
}

// Flatten collects Messages from arbitrarily nested slices. Values of any
// other type are skipped.
func Flatten(items ...any) []Message {
	out := make([]Message, 0, len(items))
	return flatten(out, items)
}

func flatten(out []Message, items []any) []Message {
	for _, it := range items {
		switch v := it.(type) {
		case Message:
			out = append(out, v)
		case *Message:
			if v != nil {
				out = append(out, *v)
			}
		case []Message:
			out = append(out, v...)
		case []any:
			out = flatten(out, v)
		}
	}
	return out
}

// HitData is the client-visible part of a hit.
type HitData struct {
	Kind   uint8 `msgpack:"kind"`
	Damage int   `msgpack:"damage"`
	Ranged bool  `msgpack:"ranged,omitempty"`
	AoE    bool  `msgpack:"aoe,omitempty"`
	Terror bool  `msgpack:"terror,omitempty"`
}

type Handshake struct {
	Token    string `msgpack:"token,omitempty"`
	ServerID int    `msgpack:"serverId,omitempty"`
	Name     string `msgpack:"name,omitempty"`
}

type Login struct {
	Username string `msgpack:"username"`
	Password string `msgpack:"password"`
	Register bool   `msgpack:"register,omitempty"`
}

type Welcome struct {
	Instance     uint64 `msgpack:"instance"`
	Username     string `msgpack:"username"`
	X            int    `msgpack:"x"`
	Y            int    `msgpack:"y"`
	Level        int    `msgpack:"level"`
	Experience   int    `msgpack:"experience"`
	HitPoints    int    `msgpack:"hitPoints"`
	MaxHitPoints int    `msgpack:"maxHitPoints"`
}

type Spawn struct {
	Instance     uint64 `msgpack:"instance"`
	Kind         string `msgpack:"type"`
	Key          string `msgpack:"key"`
	Name         string `msgpack:"name"`
	X            int    `msgpack:"x"`
	Y            int    `msgpack:"y"`
	Level        int    `msgpack:"level,omitempty"`
	HitPoints    int    `msgpack:"hitPoints,omitempty"`
	MaxHitPoints int    `msgpack:"maxHitPoints,omitempty"`
	Count        int    `msgpack:"count,omitempty"`
}

type Despawn struct {
	Instance uint64 `msgpack:"instance"`
}

type Movement struct {
	Opcode   uint8  `msgpack:"opcode"`
	Instance uint64 `msgpack:"instance"`
	X        int    `msgpack:"x"`
	Y        int    `msgpack:"y"`
	Target   uint64 `msgpack:"target,omitempty"`
}

type Teleport struct {
	Instance uint64 `msgpack:"instance"`
	X        int    `msgpack:"x"`
	Y        int    `msgpack:"y"`
}

// Sync carries a character's authoritative position and state.
type Sync struct {
	Instance     uint64 `msgpack:"instance"`
	X            int    `msgpack:"x"`
	Y            int    `msgpack:"y"`
	HitPoints    int    `msgpack:"hitPoints"`
	MaxHitPoints int    `msgpack:"maxHitPoints"`
	Stunned      bool   `msgpack:"stunned,omitempty"`
	Frozen       bool   `msgpack:"frozen,omitempty"`
}

type Combat struct {
	Opcode   uint8    `msgpack:"opcode"`
	Attacker uint64   `msgpack:"attacker"`
	Target   uint64   `msgpack:"target"`
	Hit      *HitData `msgpack:"hit,omitempty"`
}

type Points struct {
	Instance     uint64 `msgpack:"instance"`
	HitPoints    int    `msgpack:"hitPoints"`
	MaxHitPoints int    `msgpack:"maxHitPoints"`
	Mana         int    `msgpack:"mana,omitempty"`
	MaxMana      int    `msgpack:"maxMana,omitempty"`
}

type Notification struct {
	Title   string `msgpack:"title,omitempty"`
	Message string `msgpack:"message"`
}

type Chat struct {
	Source  string `msgpack:"source"`
	Message string `msgpack:"message"`
	Global  bool   `msgpack:"global,omitempty"`
}

type Experience struct {
	Instance   uint64 `msgpack:"instance"`
	Amount     int    `msgpack:"amount"`
	Experience int    `msgpack:"experience"`
	Level      int    `msgpack:"level"`
}

type Death struct {
	Instance uint64 `msgpack:"instance"`
}

type Respawn struct {
	Instance uint64 `msgpack:"instance"`
	X        int    `msgpack:"x"`
	Y        int    `msgpack:"y"`
}

type Projectile struct {
	Instance uint64  `msgpack:"instance"`
	Owner    uint64  `msgpack:"owner"`
	Target   uint64  `msgpack:"target"`
	Hit      HitData `msgpack:"hit"`
}

type Slot struct {
	Index int    `msgpack:"index"`
	Key   string `msgpack:"key,omitempty"`
	Count int    `msgpack:"count,omitempty"`
}

type Container struct {
	Kind  string `msgpack:"type"`
	Slots []Slot `msgpack:"slots"`
}

type Equipment struct {
	Slot  string `msgpack:"slot"`
	Key   string `msgpack:"key,omitempty"`
	Level int    `msgpack:"level,omitempty"`
}

type Tile struct {
	Index  int   `msgpack:"index"`
	Layers []int `msgpack:"data"`
}

// Region tells clients to re-render the listed tiles.
type Region struct {
	Tiles []Tile `msgpack:"tiles"`
}

type Animation struct {
	Instance uint64 `msgpack:"instance"`
	Name     string `msgpack:"name"`
}

// Inbound payloads.

type MoveRequest struct {
	X int `msgpack:"x"`
	Y int `msgpack:"y"`
}

type TargetRequest struct {
	Instance uint64 `msgpack:"instance"`
}

type ChatRequest struct {
	Message string `msgpack:"message"`
}

type ResourceRequest struct {
	X int `msgpack:"x"`
	Y int `msgpack:"y"`
}

type EquipRequest struct {
	Item int    `msgpack:"item"` // inventory slot
	Slot string `msgpack:"slot,omitempty"`
}
