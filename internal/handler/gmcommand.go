package handler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

// HandleCommand runs a "/" prefixed console command. Only admins may use
// the console.
func HandleCommand(sess *net.Session, p *world.Player, text string, deps *Deps) {
	parts := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(parts) == 0 {
		return
	}
	if !p.IsAdmin() {
		send(sess, deps, notification("You do not have permission to use that command."))
		return
	}

	cmd := parts[0]
	args := parts[1:]
	deps.Log.Info("console command",
		zap.String("username", p.Username),
		zap.String("command", cmd),
		zap.Strings("args", args),
	)

	switch strings.ToLower(cmd) {
	case "players":
		cmdPlayers(sess, deps)
	case "kill":
		cmdKill(sess, args, deps)
	case "resetpositions":
		cmdResetPositions(sess, args, deps)
	case "give":
		cmdGive(sess, args, deps)
	case "teleport", "tele":
		cmdTeleport(sess, p, args, deps)
	case "spawn":
		cmdSpawn(sess, p, args, deps)
	case "instance":
		if !deps.World.CreateInstance(p) {
			send(sess, deps, notification("You are already in an instance."))
		}
	case "leave":
		if !deps.World.LeaveInstance(p) {
			send(sess, deps, notification("You are not in an instance."))
		}
	default:
		send(sess, deps, notification(fmt.Sprintf("Unknown command: %s", cmd)))
	}
}

func cmdPlayers(sess *net.Session, deps *Deps) {
	players := deps.World.State.Players()
	names := make([]string, 0, len(players))
	for _, o := range players {
		names = append(names, o.Username)
	}
	sort.Strings(names)
	send(sess, deps, notification(fmt.Sprintf("%d online: %s", len(names), strings.Join(names, ", "))))
}

// /kill <username>
func cmdKill(sess *net.Session, args []string, deps *Deps) {
	if len(args) != 1 {
		send(sess, deps, notification("Usage: /kill <username>"))
		return
	}
	target := deps.World.State.PlayerByName(args[0])
	if target == nil {
		send(sess, deps, notification(fmt.Sprintf("Player %s is not online.", args[0])))
		return
	}
	deps.World.Kill(&target.Character)
}

// /resetPositions <x> <y> moves every online player.
func cmdResetPositions(sess *net.Session, args []string, deps *Deps) {
	x, y, ok := parseXY(args)
	if !ok {
		send(sess, deps, notification("Usage: /resetPositions <x> <y>"))
		return
	}
	n := 0
	for _, o := range deps.World.State.Players() {
		if deps.World.Teleport(&o.Character, x, y) {
			o.Dirty = true
			n++
		}
	}
	send(sess, deps, notification(fmt.Sprintf("Moved %d players.", n)))
}

// /give <item> <count> <username>
func cmdGive(sess *net.Session, args []string, deps *Deps) {
	if len(args) != 3 {
		send(sess, deps, notification("Usage: /give <item> <count> <username>"))
		return
	}
	count, err := strconv.Atoi(args[1])
	if err != nil || count <= 0 {
		send(sess, deps, notification("Usage: /give <item> <count> <username>"))
		return
	}
	target := deps.World.State.PlayerByName(args[2])
	if target == nil {
		send(sess, deps, notification(fmt.Sprintf("Player %s is not online.", args[2])))
		return
	}
	if deps.World.Items.Get(args[0]) == nil {
		send(sess, deps, notification(fmt.Sprintf("No such item: %s", args[0])))
		return
	}
	deps.World.Give(target, args[0], count)
}

// /teleport <x> <y>
func cmdTeleport(sess *net.Session, p *world.Player, args []string, deps *Deps) {
	x, y, ok := parseXY(args)
	if !ok {
		send(sess, deps, notification("Usage: /teleport <x> <y>"))
		return
	}
	if !deps.World.Teleport(&p.Character, x, y) {
		send(sess, deps, notification("You cannot teleport there."))
		return
	}
	p.Dirty = true
}

// /spawn <mob> places a mob next to the caller.
func cmdSpawn(sess *net.Session, p *world.Player, args []string, deps *Deps) {
	if len(args) != 1 {
		send(sess, deps, notification("Usage: /spawn <mob>"))
		return
	}
	if deps.World.SpawnMob(args[0], p.X, p.Y, false) == nil {
		send(sess, deps, notification(fmt.Sprintf("No such mob: %s", args[0])))
	}
}

func parseXY(args []string) (int, int, bool) {
	if len(args) != 2 {
		return 0, 0, false
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}
