// Command worldcored boots the server core: load config, connect the
// account store, load the ruleset and scripts, build the world, and run
// the pump until SIGINT/SIGTERM. Grounded on the teacher's
// cmd/l1jgo/main.go run() — same dependency construction order, same
// signal-driven graceful shutdown — trimmed to this module's own services.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/worldforge/worldcore/internal/accountstore"
	"github.com/worldforge/worldcore/internal/character"
	"github.com/worldforge/worldcore/internal/config"
	"github.com/worldforge/worldcore/internal/entity"
	"github.com/worldforge/worldcore/internal/entityid"
	"github.com/worldforge/worldcore/internal/mind"
	"github.com/worldforge/worldcore/internal/netgw"
	"github.com/worldforge/worldcore/internal/pump"
	"github.com/worldforge/worldcore/internal/ruleset"
	"github.com/worldforge/worldcore/internal/script"
	"github.com/worldforge/worldcore/internal/serverctx"
	"github.com/worldforge/worldcore/internal/worldrouter"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/worldcored.toml"
	if p := os.Getenv("WORLDCORE_CONFIG"); p != "" {
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

	log.Info("starting worldcored", zap.String("name", cfg.Server.Name), zap.Int("id", cfg.Server.ID))

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := accountstore.NewDB(bootCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("account database: %w", err)
	}
	defer db.Close()

	if err := accountstore.RunMigrations(bootCtx, db.Pool); err != nil {
		return fmt.Errorf("account migrations: %w", err)
	}
	store := accountstore.NewPostgresStore(db, cfg.Server.Restricted)
	log.Info("account store ready")

	types, err := ruleset.Load(cfg.Ruleset.Path)
	if err != nil {
		return fmt.Errorf("load ruleset: %w", err)
	}
	log.Info("ruleset loaded", zap.Int("types", len(types)))

	scriptHost, err := script.NewHost(cfg.Script.Dir, log)
	if err != nil {
		return fmt.Errorf("script host: %w", err)
	}
	defer scriptHost.Close()

	root := entity.New(entityid.Nil, "world", 0, types["world"])
	world := worldrouter.New(root, log)

	creatorType := types["creator"]
	creator := character.NewCreator(entityid.Nil, "cheat", 0, creatorType)
	creator.Autom = false
	world.AddObject(creator)

	seedNPCs(world, types, scriptHost, cfg, log)

	sctx := serverctx.New(cfg, log, world, store, scriptHost, types)

	codec := netgw.FrameCodec{}
	server, err := netgw.NewServer(cfg.Network.BindAddress, codec, cfg.Network.InQueueSize, cfg.Network.OutQueueSize, log)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Network.BindAddress, err)
	}
	log.Info("listening", zap.Stringer("addr", server.Addr()))

	p := pump.New(sctx, server)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		stop()
	}()

	return p.Run(runCtx)
}

// seedNPCs instantiates one script-backed NPC per declared type other than
// the reserved "world" and "creator" roles, rooted directly under the world
// root. This is the bootstrap's stand-in for whatever spawn list a real
// deployment would read (spawn tables are out of spec.md's scope); it exists so the local-mind/scripting path is
// actually exercised rather than left unreachable.
func seedNPCs(world *worldrouter.WorldRouter, types map[string]*entity.TypeDescriptor, scriptHost *script.Host, cfg *config.Config, log *zap.Logger) {
	root := world.Root().Underlying()
	var intID int64
	for name, t := range types {
		if name == "world" || name == "creator" {
			continue
		}
		intID++
		npc := character.New(entityid.Nil, name+"#"+strconv.FormatInt(intID, 10), intID, t,
			metabolismFromDefaults(t.Defaults), baseVelocityFromDefaults(t.Defaults))
		npc.Location.Ref = root.ID
		npc.Perceptive = true
		// A [type_overrides.<type>] mind = "none" entry leaves the type
		// mindless; anything else gets the script-backed local mind.
		if m, ok := cfg.TypeOverride(name, "mind"); !ok || m != "none" {
			npc.Mind = mind.NewLocal(scriptHost)
		}
		world.AddObject(npc)
		log.Info("spawned npc", zap.String("id", npc.StringID), zap.String("type", name))
	}
}

func metabolismFromDefaults(defaults map[string]any) character.MetabolismParams {
	p := character.MetabolismParams{
		EnergyLoss:        0.1,
		EnergyGain:        0.3,
		EnergyConsumption: 0.1,
		WeightGain:        0.1,
		WeightConsumption: 0.1,
		FoodConsumption:   1,
		BasicTick:         2 * time.Second,
	}
	switch v := defaults["basic_tick_seconds"].(type) {
	case int:
		p.BasicTick = time.Duration(v) * time.Second
	case int64:
		p.BasicTick = time.Duration(v) * time.Second
	}
	return p
}

func baseVelocityFromDefaults(defaults map[string]any) float64 {
	if v, ok := defaults["base_velocity"].(float64); ok {
		return v
	}
	return 2.0
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
