package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding scripted mob behaviours.
// Single-goroutine access only (game loop).
//
// A script registers a behaviour with
//
//	register_behaviour("ogre", {
//	  on_begin = function(ctx) ... end,
//	  on_hit = function(ctx) return { {action = "aoe", radius = 2} } end,
//	})
//
// Hooks receive a context table and return a list of command tables.
// Instance ids in the context are decimal strings; a generational id does
// not fit a Lua number exactly.
type Engine struct {
	vm         *lua.LState
	behaviours map[string]*lua.LTable
	log        *zap.Logger
}

// NewEngine creates a Lua engine and loads every script under dir/core and
// dir/mobs. Missing directories are skipped.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, sub := range []string{"core", "mobs"} {
		if err := e.loadDir(filepath.Join(dir, sub)); err != nil {
			e.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// NewEngineFromString loads a single chunk of Lua source.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, behaviours: make(map[string]*lua.LTable), log: log}
	vm.SetGlobal("register_behaviour", vm.NewFunction(e.registerBehaviour))
	return e
}

func (e *Engine) Close() { e.vm.Close() }

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) registerBehaviour(L *lua.LState) int {
	key := L.CheckString(1)
	tbl := L.CheckTable(2)
	if _, dup := e.behaviours[key]; dup {
		e.log.Warn("lua behaviour redefined", zap.String("key", key))
	}
	e.behaviours[key] = tbl
	return 0
}

// HasBehaviour reports whether a script registered key.
func (e *Engine) HasBehaviour(key string) bool {
	_, ok := e.behaviours[key]
	return ok
}

// Behaviours lists registered keys in order.
func (e *Engine) Behaviours() []string {
	keys := make([]string, 0, len(e.behaviours))
	for k := range e.behaviours {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HookContext is the snapshot handed to a hook.
type HookContext struct {
	Instance     uint64
	Key          string
	X, Y         int
	HitPoints    int
	MaxHitPoints int
	Target       uint64
	TargetX      int
	TargetY      int
	Damage       int // damage of the hit about to land; 0 for on_begin
	Hits         int // hits dealt since the fight began
}

// Command is one action requested by a hook.
type Command struct {
	Action string
	Radius int
	Count  int
	Key    string
	X, Y   int
	Text   string
}

// Hook calls behaviour key's hook function. A missing behaviour or hook
// returns no commands.
func (e *Engine) Hook(key, hook string, ctx HookContext) ([]Command, error) {
	tbl, ok := e.behaviours[key]
	if !ok {
		return nil, nil
	}
	fn := tbl.RawGetString(hook)
	if fn.Type() != lua.LTFunction {
		return nil, nil
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, e.contextTable(ctx)); err != nil {
		return nil, fmt.Errorf("lua %s.%s: %w", key, hook, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	list, ok := ret.(*lua.LTable)
	if !ok {
		return nil, nil
	}
	var cmds []Command
	list.ForEach(func(_, v lua.LValue) {
		t, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		cmds = append(cmds, Command{
			Action: lua.LVAsString(t.RawGetString("action")),
			Radius: int(lua.LVAsNumber(t.RawGetString("radius"))),
			Count:  int(lua.LVAsNumber(t.RawGetString("count"))),
			Key:    lua.LVAsString(t.RawGetString("key")),
			X:      int(lua.LVAsNumber(t.RawGetString("x"))),
			Y:      int(lua.LVAsNumber(t.RawGetString("y"))),
			Text:   lua.LVAsString(t.RawGetString("text")),
		})
	})
	return cmds, nil
}

func (e *Engine) contextTable(ctx HookContext) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("instance", lua.LString(strconv.FormatUint(ctx.Instance, 10)))
	t.RawSetString("key", lua.LString(ctx.Key))
	t.RawSetString("x", lua.LNumber(ctx.X))
	t.RawSetString("y", lua.LNumber(ctx.Y))
	t.RawSetString("hit_points", lua.LNumber(ctx.HitPoints))
	t.RawSetString("max_hit_points", lua.LNumber(ctx.MaxHitPoints))
	t.RawSetString("target", lua.LString(strconv.FormatUint(ctx.Target, 10)))
	t.RawSetString("target_x", lua.LNumber(ctx.TargetX))
	t.RawSetString("target_y", lua.LNumber(ctx.TargetY))
	t.RawSetString("damage", lua.LNumber(ctx.Damage))
	t.RawSetString("hits", lua.LNumber(ctx.Hits))
	return t
}
