package data

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Door links a tile to a destination tile, possibly far away.
type Door struct {
	X   int `yaml:"x"`
	Y   int `yaml:"y"`
	ToX int `yaml:"to_x"`
	ToY int `yaml:"to_y"`
}

// ResourceKind names a family of destructible tiles.
type ResourceKind string

const (
	Trees ResourceKind = "trees"
	Rocks ResourceKind = "rocks"
)

// Resource is one destructible object type. Depleted[i] replaces Tiles[i]
// when the object is cut or mined; 0 removes the tile instead.
type Resource struct {
	Name     string `yaml:"name"`
	Tiles    []int  `yaml:"tiles"`
	Depleted []int  `yaml:"depleted"`
}

// Replacement returns the depleted tile for id. ok is false when id is not
// part of this resource.
func (r *Resource) Replacement(id int) (depleted int, ok bool) {
	for i, t := range r.Tiles {
		if t == id {
			if i < len(r.Depleted) {
				return r.Depleted[i], true
			}
			return 0, true
		}
	}
	return 0, false
}

// SpawnEntry places mobs on the map. Spawned mobs are static (they
// respawn) unless Dynamic is set.
type SpawnEntry struct {
	Mob     string `yaml:"mob"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	Count   int    `yaml:"count"`
	Radius  int    `yaml:"radius"`
	Dynamic bool   `yaml:"dynamic"`
}

type NpcSpawn struct {
	Key string `yaml:"key"`
	X   int    `yaml:"x"`
	Y   int    `yaml:"y"`
}

type ChestSpawn struct {
	X     int      `yaml:"x"`
	Y     int      `yaml:"y"`
	Items []string `yaml:"items"`
}

type mapFile struct {
	Width       int          `yaml:"width"`
	Height      int          `yaml:"height"`
	Tiles       string       `yaml:"tiles"`
	Collisions  []int        `yaml:"collisions"`
	Doors       []Door       `yaml:"doors"`
	Trees       []Resource   `yaml:"trees"`
	Rocks       []Resource   `yaml:"rocks"`
	Spawns      []SpawnEntry `yaml:"spawns"`
	Npcs        []NpcSpawn   `yaml:"npcs"`
	Chests      []ChestSpawn `yaml:"chests"`
	PlayerSpawn Point        `yaml:"player_spawn"`
}

// Map holds the world's tile layers, collisions, doors, resources and
// spawn tables. Tile data is only mutated by resource depletion on the
// game loop goroutine; everything else is read-only after load.
type Map struct {
	Width, Height int
	tiles         [][]int // index -> layered tile ids
	collisions    map[int]struct{}
	resources     map[ResourceKind][]Resource

	Doors       []Door
	Spawns      []SpawnEntry
	Npcs        []NpcSpawn
	Chests      []ChestSpawn
	PlayerSpawn Point
}

// NewMap creates an empty width x height map.
func NewMap(width, height int) *Map {
	return &Map{
		Width:      width,
		Height:     height,
		tiles:      make([][]int, width*height),
		collisions: make(map[int]struct{}),
		resources:  make(map[ResourceKind][]Resource),
	}
}

// LoadMap reads map metadata from YAML and the tile layers from the CSV
// file it names, resolved relative to the YAML file.
func LoadMap(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	var f mapFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse map: %w", err)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("map %s has invalid size %dx%d", path, f.Width, f.Height)
	}
	m := NewMap(f.Width, f.Height)
	if f.Tiles != "" {
		tiles, err := loadTileFile(filepath.Join(filepath.Dir(path), f.Tiles), f.Width, f.Height)
		if err != nil {
			return nil, fmt.Errorf("load tiles: %w", err)
		}
		m.tiles = tiles
	}
	for _, id := range f.Collisions {
		m.collisions[id] = struct{}{}
	}
	m.resources[Trees] = f.Trees
	m.resources[Rocks] = f.Rocks
	m.Doors = f.Doors
	m.Spawns = f.Spawns
	m.Npcs = f.Npcs
	m.Chests = f.Chests
	m.PlayerSpawn = f.PlayerSpawn
	return m, nil
}

// loadTileFile reads one line per map row, cells separated by commas and
// layers within a cell by colons. 0 or an empty cell means no tile.
func loadTileFile(path string, width, height int) ([][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tiles := make([][]int, width*height)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	y := 0
	for scanner.Scan() && y < height {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		for x, cell := range strings.Split(line, ",") {
			if x >= width {
				break
			}
			var layers []int
			for _, tok := range strings.Split(cell, ":") {
				val, err := strconv.Atoi(strings.TrimSpace(tok))
				if err != nil || val == 0 {
					continue
				}
				layers = append(layers, val)
			}
			tiles[y*width+x] = layers
		}
		y++
	}
	return tiles, scanner.Err()
}

func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// Index converts coordinates to a tile index.
func (m *Map) Index(x, y int) int { return y*m.Width + x }

// Coord converts a tile index back to coordinates.
func (m *Map) Coord(index int) (x, y int) { return index % m.Width, index / m.Width }

// Tile returns a copy of the layers at index.
func (m *Map) Tile(index int) []int {
	if index < 0 || index >= len(m.tiles) {
		return nil
	}
	return append([]int(nil), m.tiles[index]...)
}

// SetTile replaces the layers at index.
func (m *Map) SetTile(index int, layers []int) {
	if index < 0 || index >= len(m.tiles) {
		return
	}
	m.tiles[index] = append([]int(nil), layers...)
}

// SetCollision marks a tile id as blocking.
func (m *Map) SetCollision(id int) { m.collisions[id] = struct{}{} }

// IsColliding reports whether (x, y) blocks movement. Out of bounds
// always blocks.
func (m *Map) IsColliding(x, y int) bool {
	if !m.InBounds(x, y) {
		return true
	}
	for _, id := range m.tiles[m.Index(x, y)] {
		if _, ok := m.collisions[id]; ok {
			return true
		}
	}
	return false
}

// AddResource registers a destructible object type.
func (m *Map) AddResource(kind ResourceKind, r Resource) {
	m.resources[kind] = append(m.resources[kind], r)
}

// ResourceAt returns the resource of kind whose tiles appear at index.
func (m *Map) ResourceAt(kind ResourceKind, index int) *Resource {
	if index < 0 || index >= len(m.tiles) {
		return nil
	}
	list := m.resources[kind]
	for _, id := range m.tiles[index] {
		for i := range list {
			if _, ok := list[i].Replacement(id); ok {
				return &list[i]
			}
		}
	}
	return nil
}
