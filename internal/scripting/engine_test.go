package scripting

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"go.uber.org/zap"
)

const ogreScript = `
register_behaviour("ogre", {
  on_hit = function(ctx)
    if ctx.hits % 3 == 0 then
      return { {action = "aoe", radius = 2}, {action = "skip"} }
    end
    return {}
  end,
})
`

func TestHookCommands(t *testing.T) {
	e, err := NewEngineFromString(ogreScript, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if !e.HasBehaviour("ogre") || e.HasBehaviour("rat") {
		t.Fatal("behaviour lookup wrong")
	}
	cmds, err := e.Hook("ogre", "on_hit", HookContext{Hits: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 || cmds[0].Action != "aoe" || cmds[0].Radius != 2 || cmds[1].Action != "skip" {
		t.Fatalf("cmds = %+v", cmds)
	}
	cmds, err = e.Hook("ogre", "on_hit", HookContext{Hits: 1})
	if err != nil || len(cmds) != 0 {
		t.Fatalf("cmds = %+v err = %v", cmds, err)
	}
}

func TestMissingHookIsNoop(t *testing.T) {
	e, err := NewEngineFromString(ogreScript, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	cmds, err := e.Hook("ogre", "on_begin", HookContext{})
	if err != nil || cmds != nil {
		t.Fatalf("cmds = %v err = %v", cmds, err)
	}
}

func TestHookErrorIsReturned(t *testing.T) {
	e, err := NewEngineFromString(`register_behaviour("bad", { on_hit = function(ctx) error("boom") end })`, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, err := e.Hook("bad", "on_hit", HookContext{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewEngineLoadsMobDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "mobs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mobs", "ogre.lua"), []byte(ogreScript), 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if got := e.Behaviours(); len(got) != 1 || got[0] != "ogre" {
		t.Fatalf("behaviours = %v", got)
	}
}

func TestContextKeepsFullInstanceID(t *testing.T) {
	e, err := NewEngineFromString(`
register_behaviour("echo", {
  on_hit = function(ctx)
    return { {action = "animate", text = ctx.instance .. ":" .. ctx.target} }
  end,
})`, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	self := uint64(1)<<62 | 7
	target := uint64(3)<<32 | 9
	cmds, err := e.Hook("echo", "on_hit", HookContext{Instance: self, Target: target})
	if err != nil {
		t.Fatal(err)
	}
	want := strconv.FormatUint(self, 10) + ":" + strconv.FormatUint(target, 10)
	if len(cmds) != 1 || cmds[0].Text != want {
		t.Fatalf("cmds = %+v, want text %q", cmds, want)
	}
}
