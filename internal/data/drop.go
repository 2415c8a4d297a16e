package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DropItem is a single possible drop from a mob.
type DropItem struct {
	Key    string `yaml:"key"`
	Count  int    `yaml:"count"`
	Chance int    `yaml:"chance"` // out of 10000
}

type mobDropEntry struct {
	Mob   string     `yaml:"mob"`
	Items []DropItem `yaml:"items"`
}

type dropListFile struct {
	Drops []mobDropEntry `yaml:"drops"`
}

// DropTable holds all mob drop data indexed by mob key.
type DropTable struct {
	drops map[string][]DropItem
}

// Get returns the drop list for a mob, or nil if none defined.
func (t *DropTable) Get(mob string) []DropItem {
	if t == nil {
		return nil
	}
	return t.drops[mob]
}

// Count returns the number of mobs with drop entries.
func (t *DropTable) Count() int {
	return len(t.drops)
}

// LoadDropTable loads mob drop data from a YAML file.
func LoadDropTable(path string) (*DropTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drop list: %w", err)
	}
	var f dropListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse drop list: %w", err)
	}
	t := &DropTable{drops: make(map[string][]DropItem, len(f.Drops))}
	for _, entry := range f.Drops {
		for i := range entry.Items {
			if entry.Items[i].Count <= 0 {
				entry.Items[i].Count = 1
			}
		}
		t.drops[entry.Mob] = entry.Items
	}
	return t, nil
}
