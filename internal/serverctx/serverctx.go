// Package serverctx collects every service the core needs into one
// explicitly-constructed struct, replacing the original's global_conf /
// Persistance::instance() / EntityFactory::instance() /
// PropertyManager::instance() singletons (spec.md §9 Design Notes).
// Grounded on the teacher's cmd/l1jgo/main.go run(), which constructs
// every repo/engine/runner once and threads it down explicitly.
package serverctx

import (
	"go.uber.org/zap"

	"github.com/worldforge/worldcore/internal/accountstore"
	"github.com/worldforge/worldcore/internal/config"
	"github.com/worldforge/worldcore/internal/entity"
	"github.com/worldforge/worldcore/internal/scheduler"
	"github.com/worldforge/worldcore/internal/script"
	"github.com/worldforge/worldcore/internal/worldrouter"
)

// Context aggregates the services every constructor in this module needs,
// passed explicitly rather than reached via a package-level global.
type Context struct {
	Config  *config.Config
	Log     *zap.Logger
	World   *worldrouter.WorldRouter
	Sched   *scheduler.Scheduler
	Store   accountstore.Store
	Script  *script.Host
	Types   map[string]*entity.TypeDescriptor
}

// New wires the aggregate together. World and Script are constructed
// separately (World needs a root entity; Script opens a VM and loads
// files) and passed in once ready.
func New(cfg *config.Config, log *zap.Logger, world *worldrouter.WorldRouter, store accountstore.Store, scriptHost *script.Host, types map[string]*entity.TypeDescriptor) *Context {
	return &Context{
		Config: cfg,
		Log:    log,
		World:  world,
		Sched:  scheduler.New(),
		Store:  store,
		Script: scriptHost,
		Types:  types,
	}
}
