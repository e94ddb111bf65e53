// Package entity implements the base routed object (spec component C4):
// identity, type, property store, containment edges, and per-kind
// operation handlers. Character (in internal/character) embeds Base and
// adds the five-pipe router and metabolism on top.
package entity

import (
	"github.com/worldforge/worldcore/internal/dispatch"
	"github.com/worldforge/worldcore/internal/entityid"
	"github.com/worldforge/worldcore/internal/location"
	"github.com/worldforge/worldcore/internal/op"
	"github.com/worldforge/worldcore/internal/propstore"
)

// TypeDescriptor carries class-level default properties for entities
// created from a ruleset declaration (spec.md §3, §6 "Ruleset loader").
type TypeDescriptor struct {
	Name     string
	Parents  []string
	Defaults map[string]any
}

// Script is the scripting-host contract an entity may bind (spec.md §6):
// a single method that may short-circuit native handling.
type Script interface {
	Operation(kindName string, o op.Operation) (handled bool, out []op.Operation, err error)
}

// HandlerFunc is a dynamically-installed per-kind handler
// (Entity.installHandler in the original).
type HandlerFunc func(e *Base, o op.Operation) []op.Operation

// Registry is the minimal entity-lookup contract Destroy needs to find an
// entity's parent and children by id; internal/worldrouter implements it.
type Registry interface {
	Get(id entityid.ID) (*Base, bool)
}

// Routable is implemented by every routable object in the world — plain
// Base "Thing" entities and, with overridden behavior, Character (and its
// Creator subclass). The world router stores entities as Routable so it
// can deliver to either without a type switch; Go has no virtual dispatch,
// so each concrete type satisfies this interface with its own method set
// instead of inheriting Base's (spec.md §9 Design Notes: composition over
// inheritance).
type Routable interface {
	Identity() (entityid.ID, string)
	Loc() *location.Location
	ExternalOperation(o op.Operation) []op.Operation
	Destroy(reg Registry)
	Underlying() *Base
}

func (e *Base) Identity() (entityid.ID, string) { return e.ID, e.StringID }
func (e *Base) Loc() *location.Location         { return &e.Location }
func (e *Base) Underlying() *Base               { return e }

// Base is the routed object every entity in the world embeds or is.
type Base struct {
	ID       entityid.ID
	StringID string // e.g. "character#42"; stable for the run, never reused
	IntID    int64

	Type  *TypeDescriptor
	Props *propstore.Store

	Location location.Location

	// Contains holds this entity's children, by id. The world-root is the
	// only entity with a Nil Ref; every other entity's Location.Ref names
	// its single parent, and that parent's Contains must include it
	// (spec.md §3 invariant, mutated in pairs by worldrouter).
	Contains map[entityid.ID]struct{}

	RefCount   int
	Destroyed  bool
	Seq        uint64
	Perceptive bool

	Script   Script
	handlers map[op.Kind]HandlerFunc

	onDestroyed   []func()
	onUpdated     []func()
	onContainered []func()
}

// New constructs a Base, seeding the property store from the type's
// class-level defaults. The "bbox" property is a signal property backed by
// Location.BBox, so bbox writes keep the spatial slot consistent and bump
// the sequence stamp (spec.md §4.2).
func New(id entityid.ID, stringID string, intID int64, t *TypeDescriptor) *Base {
	e := &Base{
		ID:       id,
		StringID: stringID,
		IntID:    intID,
		Type:     t,
		Props:    propstore.New(),
		Contains: make(map[entityid.ID]struct{}),
		handlers: make(map[op.Kind]HandlerFunc),
	}
	// Every entity answers a Look with a Sight of its own record; without
	// this the Setup-time Look at the surroundings would elicit nothing
	// and no character could ever perceive the world.
	e.InstallHandler(op.KindLook, func(e *Base, o op.Operation) []op.Operation {
		sight := op.New(op.KindSight, e.AddToMessage())
		sight.From = e.StringID
		sight.To = o.From
		return []op.Operation{sight}
	})
	e.Props.SetSignal("bbox", propstore.NewSignal(
		func() any { return e.Location.BBox },
		func(v any) {
			if b, ok := v.(location.BBox); ok {
				e.Location.BBox = b
			}
		},
		e.Touch,
	))
	if t != nil {
		for k, v := range t.Defaults {
			e.Props.Set(k, v)
		}
		e.Props.ClearDirty()
	}
	return e
}

// InstallHandler registers a dynamic per-kind handler (spec.md §4.3).
func (e *Base) InstallHandler(kind op.Kind, fn HandlerFunc) {
	e.handlers[kind] = fn
}

// Touch bumps the monotone sequence stamp; called on any observable change.
func (e *Base) Touch() { e.Seq++ }

func (e *Base) OnDestroyed(fn func())   { e.onDestroyed = append(e.onDestroyed, fn) }
func (e *Base) OnUpdated(fn func())     { e.onUpdated = append(e.onUpdated, fn) }
func (e *Base) OnContainered(fn func()) { e.onContainered = append(e.onContainered, fn) }

func (e *Base) emitUpdated() {
	for _, fn := range e.onUpdated {
		fn()
	}
}

// EmitContainered fires the one-shot containered signal (called by
// worldrouter right after inserting the entity under a new parent) and
// clears the subscriber list, mirroring the original's single-shot
// onContainered/clear() pairing.
func (e *Base) EmitContainered() {
	for _, fn := range e.onContainered {
		fn()
	}
	e.onContainered = nil
}

// Operation runs the script hook, then the dynamic handler table, for op.
// A nonzero/true script verdict short-circuits entirely: the handler table
// is not consulted at all (SPEC_FULL.md §4). Absent a script and a dynamic
// handler, known kinds are silent no-ops; only a truly unrecognised kind
// (KindOther, no handler installed for it) produces the "Unknown operation"
// Error (spec.md §4.9).
func (e *Base) Operation(o op.Operation) []op.Operation {
	if e.Script != nil {
		handled, out, err := e.Script.Operation(o.KindName(), o)
		if err != nil {
			// Script boundary failure: fall through to the native path
			// (spec.md §7 — scripts that fail are treated as "not handled").
			// The error is not logged here.
		} else if handled {
			return out
		}
	}
	if h, ok := e.handlers[o.Kind]; ok {
		return h(e, o)
	}
	if o.Kind == op.KindOther {
		return []op.Operation{o.Error("Unknown operation")}
	}
	return nil
}

// ExternalOperation wraps Operation, stamping every reply's Refno from o's
// Serialno when o carried one (spec.md §4.3). It does not enqueue replies
// anywhere; the caller (worldrouter) is responsible for routing them on.
// If handling dirtied the property store, the change is announced with a
// broadcast Sight carrying the entity's serialised state (spec.md §4.2:
// "the flag drives later broadcast of Sight operations").
func (e *Base) ExternalOperation(o op.Operation) []op.Operation {
	out := e.Operation(o)
	if e.Props.Dirty() {
		e.Props.ClearDirty()
		e.Touch()
		sight := op.New(op.KindSight, op.Arg{"set": e.AddToMessage()})
		sight.From = e.StringID
		out = append(out, sight)
	}
	if o.HasSerialno() {
		for i := range out {
			out[i].Refno = o.Serialno
		}
	}
	return out
}

// Destroy detaches e from its parent, re-parenting e's children into the
// parent's frame, sets Destroyed, and emits the destroyed signal. reg is
// used to look up the parent and children by id.
//
// Panics if e has no live parent — spec.md §7 calls this a crash-fast
// invariant violation rather than a value to recover from.
func (e *Base) Destroy(reg Registry) {
	parent, ok := reg.Get(e.Location.Ref)
	if !ok {
		dispatch.Fatal("destroy of rootless entity %s", e.StringID)
	}

	for childID := range e.Contains {
		child, ok := reg.Get(childID)
		if !ok {
			continue
		}
		location.ReparentChild(&child.Location, e.Location, parent.ID)
		parent.Contains[childID] = struct{}{}
		delete(e.Contains, childID)
		child.Touch()
		// e is no longer referenced by child.Location.Ref.
		e.RefCount--
	}

	delete(parent.Contains, e.ID)
	if len(parent.Contains) == 0 {
		parent.emitUpdated()
	}

	e.Destroyed = true
	for _, fn := range e.onDestroyed {
		fn()
	}
}

// AddToMessage serialises the property store, location, stamp, type and
// objtype into a generic argument map (spec.md §4.3).
func (e *Base) AddToMessage() op.Arg {
	m := op.Arg{}
	e.Props.Each(func(name string, v any) { m[name] = v })
	m["stamp"] = float64(e.Seq)
	if e.Type != nil {
		m["parents"] = []any{e.Type.Name}
	}
	m["pos"] = []any{e.Location.Pos.X, e.Location.Pos.Y, e.Location.Pos.Z}
	m["velocity"] = []any{e.Location.Velocity.X, e.Location.Velocity.Y, e.Location.Velocity.Z}
	m["loc"] = int64(e.Location.Ref.Index())
	m["id"] = e.StringID
	m["objtype"] = "obj"
	return m
}
