package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/combat"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/config"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/core/event"
	coresys "github.com/Kaetram/Kaetram-Open-sub002/internal/core/system"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/data"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/handler"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/hub"
	gonet "github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/persist"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/scripting"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const (
	saveQueueSize   = 256
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m           Kaetram world server            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mServer:\033[0m %s \033[90m(id %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("WORLDD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	printSection("Database")
	dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(dbCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	version, err := db.Migrate(dbCtx)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printStat("schema version", int(version))
	players := persist.NewPlayerRepo(db)
	fmt.Println()

	// Static data
	printSection("Data")
	dir := cfg.World.DataDir
	worldMap, err := data.LoadMap(filepath.Join(dir, "map.yaml"))
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	printStat("map tiles", worldMap.Width*worldMap.Height)

	mobs, err := data.LoadMobTable(filepath.Join(dir, "mobs.yaml"))
	if err != nil {
		return fmt.Errorf("load mob table: %w", err)
	}
	printStat("mob templates", mobs.Count())

	items, err := data.LoadItemTable(filepath.Join(dir, "items.yaml"))
	if err != nil {
		return fmt.Errorf("load item table: %w", err)
	}
	printStat("item templates", items.Count())

	drops, err := data.LoadDropTable(filepath.Join(dir, "drops.yaml"))
	if err != nil {
		return fmt.Errorf("load drop table: %w", err)
	}
	printStat("drop tables", drops.Count())

	luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	strategies := combat.NewRegistry()
	combat.RegisterBuiltins(strategies)
	combat.RegisterScripts(strategies, luaEngine, luaEngine.Behaviours(), log.Named("lua"))
	printStat("scripted behaviours", len(luaEngine.Behaviours()))
	fmt.Println()

	// World
	saver := system.NewSaver(players, saveQueueSize, log.Named("saver"))
	w := system.NewWorld(system.Options{
		Config:     cfg,
		Map:        worldMap,
		Mobs:       mobs,
		Items:      items,
		Drops:      drops,
		Strategies: strategies,
		Store:      players,
		Saver:      saver,
		Log:        log,
	})
	w.Populate()
	subscribeLogging(w.Bus(), log)

	reg := packet.NewRegistry(w.Codec(), log)
	handler.RegisterAll(reg, &handler.Deps{
		Config: cfg,
		World:  w,
		Store:  players,
		Log:    log.Named("handler"),
	})

	server, err := gonet.NewServer(
		cfg.Network.BindAddress,
		cfg.Network.WSPath,
		cfg.Network.InQueueSize,
		cfg.Network.OutQueueSize,
		cfg.Network.ReadTimeout,
		cfg.Network.WriteTimeout,
		log.Named("net"),
	)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	sessions := gonet.NewSessionStore()

	runner := coresys.NewRunner(log)
	runner.SetBudget(cfg.Network.UpdateTime)
	runner.Register(system.NewInputSystem(server, reg, sessions, w, cfg.Network.MaxMessagesPerTick, log.Named("input")))
	runner.Register(system.NewEventSystem(w.Bus()))
	runner.Register(system.NewTimerSystem(w))
	runner.Register(system.NewRegionSystem(w))
	runner.Register(system.NewOutputSystem(sessions))
	runner.Register(system.NewPersistenceSystem(w, cfg.World.SaveInterval, log))
	runner.Register(system.NewCleanupSystem(w))

	if cfg.Hub.Enabled {
		client, err := hub.Connect(cfg, log.Named("hub"))
		if err != nil {
			return fmt.Errorf("hub: %w", err)
		}
		defer client.Close()
		w.Scheduler().Every(cfg.Hub.Heartbeat, "hub.heartbeat", func() {
			if err := client.Beat(w.State.PlayerCount(), w.Scheduler().Now()); err != nil {
				log.Warn("hub heartbeat", zap.Error(err))
			}
		})
		printOK(fmt.Sprintf("hub heartbeat to %s", cfg.Hub.URL))
	}

	printSection("Ready")
	printReady(fmt.Sprintf("listening on %s", server.Addr().String()))
	printReady(fmt.Sprintf("game loop started (tick: %s)", cfg.Network.UpdateTime))
	fmt.Println()

	// The saver outlives the game loop so the final snapshots still drain.
	saverCtx, stopSaver := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return saver.Run(saverCtx) })
	g.Go(func() error {
		if err := server.Serve(); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stopSaver()
		gameLoop(gctx, runner, cfg.Network.UpdateTime)

		log.Info("shutting down", zap.Int("players", w.State.PlayerCount()))
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		saved := w.SaveAll(shutCtx)
		log.Info("players saved", zap.Int("count", saved))
		return server.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

// gameLoop ticks the runner until ctx is done. A tick that runs long makes
// the ticker drop the ticks it missed instead of running them back to back.
func gameLoop(ctx context.Context, runner *coresys.Runner, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			runner.Tick(now.Sub(last))
			last = now
		case <-ctx.Done():
			return
		}
	}
}

func subscribeLogging(bus *event.Bus, log *zap.Logger) {
	event.Subscribe(bus, func(e event.PlayerLoggedIn) {
		log.Info("player logged in", zap.String("username", e.Username), zap.Stringer("instance", e.Player))
	})
	event.Subscribe(bus, func(e event.PlayerDisconnected) {
		log.Info("player disconnected", zap.String("username", e.Username))
	})
	event.Subscribe(bus, func(e event.LevelUp) {
		log.Info("level up", zap.Stringer("player", e.Player), zap.Int("level", e.Level))
	})
	event.Subscribe(bus, func(e event.ResourceDepleted) {
		log.Debug("resource depleted", zap.String("kind", e.Kind), zap.Int("tiles", e.Tiles))
	})
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
