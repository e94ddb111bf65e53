// Package worldrouter implements the World router (spec component C7): a
// registry of entities by id, broadcast and per-destination delivery, and
// the containment index broadcasts walk.
package worldrouter

import (
	"go.uber.org/zap"

	"github.com/worldforge/worldcore/internal/dispatch"
	"github.com/worldforge/worldcore/internal/entity"
	"github.com/worldforge/worldcore/internal/entityid"
	"github.com/worldforge/worldcore/internal/op"
)

// WorldRouter is the single id->entity registry plus the world-root entity.
// It is mutated only by the pump (spec.md §5).
type WorldRouter struct {
	pool *entityid.Pool

	objects  map[entityid.ID]entity.Routable
	byString map[string]entityid.ID

	root entity.Routable

	log *zap.Logger
}

func New(root entity.Routable, log *zap.Logger) *WorldRouter {
	w := &WorldRouter{
		pool:     entityid.NewPool(),
		objects:  make(map[entityid.ID]entity.Routable),
		byString: make(map[string]entityid.ID),
		log:      log,
	}
	// Index 0 is reserved (entityid.Nil), so the root is assigned the
	// first real id like anything else; its Location has no Ref — a Nil
	// Ref means "no parent" whether that is the root or an omnipresent
	// Creator.
	w.AddObject(root)
	w.root = root
	return w
}

// Root returns the world-root entity.
func (w *WorldRouter) Root() entity.Routable { return w.root }

// AddObject registers e in the id map, assigning an id if it does not have
// one yet, and — if e's Location already names a parent — links it into
// that parent's Contains set (spec.md §4.7; the Contains/Ref pairing
// invariant noted on entity.Base.Contains).
func (w *WorldRouter) AddObject(e entity.Routable) entityid.ID {
	id, stringID := e.Identity()
	if id.IsNil() {
		id = w.pool.Create()
		e.Underlying().ID = id
	}
	w.objects[id] = e
	if stringID != "" {
		w.byString[stringID] = id
	}
	e.Underlying().RefCount++

	if ref := e.Loc().Ref; !ref.IsNil() {
		if parent, ok := w.objects[ref]; ok {
			parent.Underlying().Contains[id] = struct{}{}
			e.Underlying().EmitContainered()
		}
	}
	return id
}

// GetObject looks up an entity by its stable string id.
func (w *WorldRouter) GetObject(stringID string) (entity.Routable, bool) {
	id, ok := w.byString[stringID]
	if !ok {
		return nil, false
	}
	return w.objects[id], true
}

// Get implements entity.Registry, used by Base.Destroy to look up parents
// and children by arena id.
func (w *WorldRouter) Get(id entityid.ID) (*entity.Base, bool) {
	e, ok := w.objects[id]
	if !ok {
		return nil, false
	}
	return e.Underlying(), true
}

// DelObject drops one reference to e and destroys it right away if it is
// not destroyed yet; it unregisters e and frees its id only once the
// refcount reaches zero (spec.md §3 Lifecycles: "actual free occurs when
// refcount reaches zero").
func (w *WorldRouter) DelObject(e entity.Routable) {
	id, stringID := e.Identity()
	base := e.Underlying()
	base.RefCount--
	if !base.Destroyed {
		e.Destroy(w)
	}
	if base.RefCount > 0 {
		return
	}
	delete(w.objects, id)
	if stringID != "" {
		delete(w.byString, stringID)
	}
	w.pool.Destroy(id)
}

// Operation dispatches op into the destination's ExternalOperation. An
// empty To delivers to the world root, except Sight/Sound broadcasts (no
// To) which fan out to perceivers in the containment subtree rooted at the
// sender's container (spec.md §4.7).
func (w *WorldRouter) Operation(o op.Operation) []op.Operation {
	if o.To == "" {
		if o.Kind == op.KindSight || o.Kind == op.KindSound {
			return w.broadcast(o)
		}
		return dispatch.SafeCall(w.log, "world", func() []op.Operation {
			return w.root.ExternalOperation(o)
		})
	}

	target, ok := w.GetObject(o.To)
	if !ok {
		w.log.Debug("operation to unknown target dropped", zap.String("to", o.To))
		return nil
	}
	return dispatch.SafeCall(w.log, o.To, func() []op.Operation {
		return target.ExternalOperation(o)
	})
}

// broadcast fans a Sight/Sound op out to every perceptive entity in the
// containment subtree rooted at the sender's container (spec.md §4.7
// "Containment index": "subscribers are those with perceptive=true").
func (w *WorldRouter) broadcast(o op.Operation) []op.Operation {
	sender, ok := w.GetObject(o.From)
	root := w.root
	if ok {
		if parent, ok := w.objects[sender.Loc().Ref]; ok {
			root = parent
		}
	}

	var out []op.Operation
	w.walk(root, func(e entity.Routable) {
		base := e.Underlying()
		if !base.Perceptive {
			return
		}
		out = append(out, dispatch.SafeCall(w.log, base.StringID, func() []op.Operation {
			return e.ExternalOperation(o)
		})...)
	})
	return out
}

// walk visits e and every entity in its containment subtree, depth-first.
func (w *WorldRouter) walk(e entity.Routable, visit func(entity.Routable)) {
	visit(e)
	for childID := range e.Underlying().Contains {
		child, ok := w.objects[childID]
		if !ok {
			continue
		}
		w.walk(child, visit)
	}
}
