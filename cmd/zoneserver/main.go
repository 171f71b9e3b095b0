package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/auth"
	"github.com/warpzone/server/internal/broker"
	"github.com/warpzone/server/internal/config"
	"github.com/warpzone/server/internal/fanout"
	"github.com/warpzone/server/internal/flag"
	"github.com/warpzone/server/internal/ingress"
	"github.com/warpzone/server/internal/mainloop"
	"github.com/warpzone/server/internal/moduleman"
	"github.com/warpzone/server/internal/persist"
	"github.com/warpzone/server/internal/player"
	"github.com/warpzone/server/internal/scripting"
	"github.com/warpzone/server/internal/telemetry"
	"github.com/warpzone/server/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("ZONE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting zone server", zap.String("name", cfg.Server.Name), zap.Int("id", cfg.Server.ID))

	// 3. Connect to PostgreSQL and run migrations
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	log.Info("connected to postgres")

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("database migrations applied")

	sync := persist.NewSync(db, log)

	// 4. Broker root scope, mainloop, module manager
	root := broker.NewRoot()
	loop := mainloop.New(log, 256)
	go loop.Run(cfg.Network.TickRate)

	mods := moduleman.NewManager(root)

	// 5. Arena config store, arena manager
	store := config.NewStore(cfg.Arenas.RootDir, root, log)
	arenaMgr := arena.NewManager(log, root, loop, store, mods, sync)
	store.Bind(arenaMgr, arenaMgr)
	if err := store.StartWatch(); err != nil {
		return fmt.Errorf("watch arenas dir: %w", err)
	}
	defer store.Close()
	arenaMgr.SyncPermanentArenas(store.GlobalStr("Arenas", "PermanentArenas", ""))

	// 6. Player registry, auth, state machine
	players := player.NewRegistry()
	authProvider, err := auth.NewProvider("config/passwd.conf")
	if err != nil {
		return fmt.Errorf("auth provider: %w", err)
	}
	sm := player.NewStateMachine(log, players, root, arenaMgr, loop, authProvider, sync, sync, nil)
	defaultFreqMgr := player.NewDefaultFreqManager(players)
	sm.SetFreqManager(defaultFreqMgr)
	sm.Start()

	// 7. Fan-out and carry-flag engines
	fo := fanout.NewEngine(time.Now().UnixNano())
	nowMS := func() int64 { return time.Now().UnixMilli() }
	flags := flag.NewEngine(log, root, loop, nil, nowMS)
	flags.Start()

	// 7b. Optional zone scripting: a Lua engine overriding flag placement
	// and initial freq/ship assignment per arena, falling back to the
	// built-in Go behavior whenever a hook isn't defined.
	if script, err := scripting.NewEngine(cfg.Scripting.Dir, log); err != nil {
		log.Warn("zone scripting disabled", zap.Error(err))
	} else {
		defer script.Close()
		sm.SetFreqManager(player.NewScriptFreqManager(script, defaultFreqMgr))
		luaBehavior := flag.NewLuaBehavior(script, flag.NewDefaultBehavior(time.Now().UnixNano()))
		broker.RegisterCallback(root, func(ev arena.CreateEvent) {
			broker.RegisterAdvisor[flag.Behavior](ev.Arena.Scope, luaBehavior)
		})
	}

	// 8. Telemetry
	metrics := telemetry.New(prometheus.DefaultRegisterer)
	metricsSrv := telemetry.NewServer(cfg.Network.MetricsBindAddress, log)
	go metricsSrv.Serve()
	poller := telemetry.NewPoller(metrics, arenaMgr, loop)
	poller.Start()

	// 9. Wire transport listeners and ingress handlers
	pktReg := transport.NewRegistry(log)
	deps := ingress.NewDeps(log, root, players, sm, arenaMgr, fo, flags, nil, nil, metrics, nowMS)

	game, err := transport.NewGameListener(cfg.Network.GameBindAddress, pktReg, log, nil)
	if err != nil {
		return fmt.Errorf("game listener: %w", err)
	}
	deps.Game = game

	chat, err := transport.NewChatListener(cfg.Network.ChatBindAddress, cfg.Network.OutQueueSize, log,
		nil, ingress.RegisterChat(deps), ingress.OnChatClose(deps))
	if err != nil {
		return fmt.Errorf("chat listener: %w", err)
	}
	deps.Chat = chat

	ingress.RegisterGame(pktReg, deps)
	ingress.SubscribeBroadcasts(deps)

	go game.Serve()
	go chat.Serve()
	log.Info("listening",
		zap.String("game", cfg.Network.GameBindAddress),
		zap.String("chat", cfg.Network.ChatBindAddress),
	)

	// 10. Graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	_ = game.Close()
	_ = chat.Close()
	loop.Stop()
	log.Info("zone server stopped")
	return nil
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
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
