package event

import "github.com/Kaetram/Kaetram-Open-sub002/internal/core/ecs"

type PlayerLoggedIn struct {
	Player   ecs.EntityID
	Username string
}

type PlayerDisconnected struct {
	Player   ecs.EntityID
	Username string
}

// MobKilled fires once per mob death. Killer is zero for console kills.
type MobKilled struct {
	Mob    ecs.EntityID
	Key    string
	Killer ecs.EntityID
	X, Y   int
}

type PlayerDied struct {
	Player ecs.EntityID
	Killer ecs.EntityID
}

type LevelUp struct {
	Player ecs.EntityID
	Level  int
}

// ResourceDepleted fires when a tree or rock cluster is cut or mined.
type ResourceDepleted struct {
	Kind   string
	Player ecs.EntityID
	X, Y   int
	Tiles  int
}
