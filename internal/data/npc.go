package data

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MobTemplate holds static data for a mob type loaded from YAML.
type MobTemplate struct {
	Key           string `yaml:"key"`
	Name          string `yaml:"name"`
	Level         int    `yaml:"level"`
	HitPoints     int    `yaml:"hit_points"`
	Armour        int    `yaml:"armour"`
	Weapon        int    `yaml:"weapon"`
	AttackRange   int    `yaml:"attack_range"`
	AttackRate    int    `yaml:"attack_rate"`    // ms
	MovementSpeed int    `yaml:"movement_speed"` // ms per tile
	Aggressive    bool   `yaml:"aggressive"`
	AggroRange    int    `yaml:"aggro_range"`
	RoamDistance  int    `yaml:"roam_distance"`
	RespawnDelay  int    `yaml:"respawn_delay"` // ms
	Experience    int    `yaml:"experience"`
	Poisonous     bool   `yaml:"poisonous"`
	Boss          bool   `yaml:"boss"`
	Miniboss      bool   `yaml:"miniboss"`
	// Plugin names a combat behaviour; empty means the mob's key is tried.
	Plugin string `yaml:"plugin"`
}

func (m *MobTemplate) AttackInterval() time.Duration {
	return time.Duration(m.AttackRate) * time.Millisecond
}

func (m *MobTemplate) Respawn() time.Duration {
	return time.Duration(m.RespawnDelay) * time.Millisecond
}

// NpcTemplate is a talking non-combat character.
type NpcTemplate struct {
	Key  string   `yaml:"key"`
	Name string   `yaml:"name"`
	Text []string `yaml:"text"`
}

type mobListFile struct {
	Mobs []MobTemplate `yaml:"mobs"`
	Npcs []NpcTemplate `yaml:"npcs"`
}

// MobTable holds all mob and NPC templates indexed by key. Read-only after
// load.
type MobTable struct {
	mobs          map[string]*MobTemplate
	npcs          map[string]*NpcTemplate
	maxAggroRange int
}

// LoadMobTable loads mob and NPC templates from a YAML file.
func LoadMobTable(path string) (*MobTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mob list: %w", err)
	}
	return ParseMobTable(raw)
}

// ParseMobTable builds a MobTable from YAML bytes.
func ParseMobTable(raw []byte) (*MobTable, error) {
	var f mobListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse mob list: %w", err)
	}
	t := &MobTable{
		mobs: make(map[string]*MobTemplate, len(f.Mobs)),
		npcs: make(map[string]*NpcTemplate, len(f.Npcs)),
	}
	for i := range f.Mobs {
		m := &f.Mobs[i]
		if m.Key == "" {
			return nil, fmt.Errorf("mob %d has no key", i)
		}
		if _, dup := t.mobs[m.Key]; dup {
			return nil, fmt.Errorf("duplicate mob key %q", m.Key)
		}
		applyMobDefaults(m)
		t.mobs[m.Key] = m
		t.maxAggroRange = max(t.maxAggroRange, m.AggroRange)
	}
	for i := range f.Npcs {
		t.npcs[f.Npcs[i].Key] = &f.Npcs[i]
	}
	return t, nil
}

func applyMobDefaults(m *MobTemplate) {
	if m.Name == "" {
		m.Name = m.Key
	}
	if m.Level <= 0 {
		m.Level = 1
	}
	if m.HitPoints <= 0 {
		m.HitPoints = 10
	}
	if m.AttackRange <= 0 {
		m.AttackRange = 1
	}
	if m.AttackRate <= 0 {
		m.AttackRate = 1000
	}
	if m.MovementSpeed <= 0 {
		m.MovementSpeed = 350
	}
	if m.RespawnDelay <= 0 {
		m.RespawnDelay = 60_000
	}
	if m.Aggressive && m.AggroRange <= 0 {
		m.AggroRange = 2
	}
}

// Get returns a mob template by key, or nil if not found.
func (t *MobTable) Get(key string) *MobTemplate {
	return t.mobs[key]
}

// Npc returns an NPC template by key, or nil if not found.
func (t *MobTable) Npc(key string) *NpcTemplate {
	return t.npcs[key]
}

// Count returns the number of mob templates.
func (t *MobTable) Count() int {
	return len(t.mobs)
}

// MaxAggroRange is the largest aggro range of any mob.
func (t *MobTable) MaxAggroRange() int {
	return t.maxAggroRange
}
