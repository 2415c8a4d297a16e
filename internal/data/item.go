package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ItemTemplate holds static data for an item type.
type ItemTemplate struct {
	Key       string  `yaml:"key"`
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"` // weapon, armour, pendant, ring, boots, object
	Level     int     `yaml:"level"`
	Range     int     `yaml:"range"`     // weapons; >1 fires projectiles
	Amplifier float64 `yaml:"amplifier"` // pendant, ring, boots
	Stackable bool    `yaml:"stackable"`
}

// Equippable reports whether the item goes in an equipment slot.
func (i *ItemTemplate) Equippable() bool {
	switch i.Type {
	case "weapon", "armour", "pendant", "ring", "boots":
		return true
	}
	return false
}

type itemListFile struct {
	Items []ItemTemplate `yaml:"items"`
}

// ItemTable holds all item templates indexed by key.
type ItemTable struct {
	items map[string]*ItemTemplate
}

// LoadItemTable loads item templates from one or more YAML files.
func LoadItemTable(paths ...string) (*ItemTable, error) {
	t := &ItemTable{items: make(map[string]*ItemTemplate)}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read item list %s: %w", path, err)
		}
		var f itemListFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parse item list %s: %w", path, err)
		}
		for i := range f.Items {
			it := &f.Items[i]
			if it.Name == "" {
				it.Name = it.Key
			}
			if it.Amplifier == 0 {
				it.Amplifier = 1
			}
			t.items[it.Key] = it
		}
	}
	return t, nil
}

// NewItemTable builds a table from templates already in memory.
func NewItemTable(items ...ItemTemplate) *ItemTable {
	t := &ItemTable{items: make(map[string]*ItemTemplate, len(items))}
	for i := range items {
		t.items[items[i].Key] = &items[i]
	}
	return t
}

// Get returns an item template by key, or nil if not found.
func (t *ItemTable) Get(key string) *ItemTemplate {
	return t.items[key]
}

// Count returns the number of item templates.
func (t *ItemTable) Count() int {
	return len(t.items)
}
