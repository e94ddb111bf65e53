// Package account implements the Account/Connection gateway (spec
// component C8): an external gateway that authenticates clients, owns a
// set of externally-visible objects, routes incoming operations into the
// world, and hands off possession when a character (re)connects.
package account

import (
	"context"

	"go.uber.org/zap"

	"github.com/worldforge/worldcore/internal/accountstore"
	"github.com/worldforge/worldcore/internal/character"
	"github.com/worldforge/worldcore/internal/dispatch"
	"github.com/worldforge/worldcore/internal/entity"
	"github.com/worldforge/worldcore/internal/op"
	"github.com/worldforge/worldcore/internal/worldrouter"
)

// Connection is an entity-less gateway object: its scope is the set of ids
// the client may speak as (spec.md §3, §4.8). It owns its Account on the
// server side.
type Connection struct {
	ID      string
	World   *worldrouter.WorldRouter
	Store   accountstore.Store
	Account *accountstore.Account

	// Scope is the dictionary of id -> entity for every object this
	// connection may speak as (spec.md §3 "Account/Connection").
	Scope map[string]entity.Routable

	// Outbox accumulates operations destined for the remote client; the
	// pump drains it once per cycle (spec.md §5 step 5).
	Outbox []op.Operation

	log *zap.Logger
}

func NewConnection(id string, world *worldrouter.WorldRouter, store accountstore.Store, log *zap.Logger) *Connection {
	return &Connection{
		ID:    id,
		World: world,
		Store: store,
		Scope: make(map[string]entity.Routable),
		log:   log,
	}
}

// Operation implements the routing rule of spec.md §4.8:
//   - empty From: account-level ops (Login, Create, Logout, Get), handled
//     locally, never touching the world router.
//   - non-empty From present in Scope: delivered through the client entry
//     point injectToEntity picks (mind2body for a Character), with the
//     new-external-mind possession special case.
//   - non-empty From absent from Scope: "From is illegal" Error.
func (c *Connection) Operation(ctx context.Context, o op.Operation) []op.Operation {
	if o.From == "" {
		return c.handleAccountLevel(ctx, o)
	}

	target, ok := c.Scope[o.From]
	if !ok {
		return []op.Operation{dispatch.IllegalFrom(o)}
	}
	return c.routeToEntity(o, target)
}

func (c *Connection) routeToEntity(o op.Operation, target entity.Routable) []op.Operation {
	if ch := characterOf(target); ch != nil && ch.ExternalMind == nil {
		return c.possess(o, ch, target)
	}
	return c.injectToEntity(o, target)
}

// injectToEntity picks the external-client entry point. A client driving a
// Character speaks as its mind, so its operations take the mind2body pipe
// (ExternalMessage) — not the five-pipe composite, which is the world
// delivery path. A Creator keeps its own cheat-capable entry, and a plain
// entity takes the generic refno-stamping one.
func (c *Connection) injectToEntity(o op.Operation, target entity.Routable) []op.Operation {
	switch v := target.(type) {
	case *character.Creator:
		return v.ExternalOperation(o)
	case *character.Character:
		return v.ExternalMessage(o)
	default:
		return target.ExternalOperation(o)
	}
}

// possess attaches a new external mind bound to this connection, emits an
// Info reply confirming possession *before* the result of routing the
// original op (SPEC_FULL.md §4 supplement — order matters for clients that
// assume Info-then-percepts), and turns Autom off now that a remote client
// is driving the character.
func (c *Connection) possess(o op.Operation, ch *character.Character, target entity.Routable) []op.Operation {
	ch.ExternalMind = NewConnMind(c)
	ch.Autom = false

	_, stringID := target.Identity()
	info := op.New(op.KindInfo, target.Underlying().AddToMessage())
	info.From = stringID
	info.To = c.ID
	if o.HasSerialno() {
		info.Refno = o.Serialno
	}

	rest := c.injectToEntity(o, target)
	return append([]op.Operation{info}, rest...)
}

// characterOf unwraps a Routable into its *character.Character, whether it
// is a plain Character or a Creator (which embeds one), or nil if it is
// neither.
func characterOf(e entity.Routable) *character.Character {
	switch v := e.(type) {
	case *character.Character:
		return v
	case *character.Creator:
		return v.Character
	default:
		return nil
	}
}

// Destroy clears this connection's external-mind binding from every
// character it possessed and turns Autom back on, so the local mind (or
// silence) takes over (spec.md §3 "Account/Connection": "its externalMind
// references on any possessed character are cleared and autom is turned
// on; the Account and Characters persist").
func (c *Connection) Destroy() {
	for _, ent := range c.Scope {
		ch := characterOf(ent)
		if ch == nil || ch.ExternalMind == nil {
			continue
		}
		if cm, ok := ch.ExternalMind.(*ConnMind); ok && cm.conn == c {
			ch.ExternalMind = nil
			ch.Autom = true
		}
	}
}

// ConnMind adapts a Connection into a mind.Mind: a percept routed here is
// transmitted to the remote client (queued on the connection's Outbox);
// the mind's actual "reply" arrives later as a fresh incoming operation
// from that client, not synchronously (spec.md §4.5 sendMind).
type ConnMind struct {
	conn *Connection
}

func NewConnMind(c *Connection) *ConnMind { return &ConnMind{conn: c} }

func (m *ConnMind) Perceive(percept op.Operation) []op.Operation {
	m.conn.Outbox = append(m.conn.Outbox, percept)
	return nil
}
