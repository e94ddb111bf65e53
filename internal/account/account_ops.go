package account

import (
	"context"

	"github.com/worldforge/worldcore/internal/accountstore"
	"github.com/worldforge/worldcore/internal/dispatch"
	"github.com/worldforge/worldcore/internal/op"
)

// handleAccountLevel dispatches the four account-level kinds spec.md §4.8
// names (Login, Create, Logout, Get); anything else with an empty From is
// not a recognised account-level op.
func (c *Connection) handleAccountLevel(ctx context.Context, o op.Operation) []op.Operation {
	switch o.Kind {
	case op.KindLogin:
		return c.handleLogin(ctx, o)
	case op.KindCreate:
		return c.handleCreate(ctx, o)
	case op.KindLogout:
		return c.handleLogout(ctx, o)
	case op.KindGet:
		return c.handleGet(ctx, o)
	default:
		return []op.Operation{dispatch.UnknownOperation(o)}
	}
}

// handleLogin looks up the account by id, consulting persistence; on a
// password match it adds the account's characters to the connection's
// scope and replies Info with the account record (spec.md §8 scenario 1).
func (c *Connection) handleLogin(ctx context.Context, o op.Operation) []op.Operation {
	arg := o.FirstArg()
	id, _ := arg.String("id")
	password, _ := arg.String("password")

	acct, found, err := c.Store.Get(ctx, id)
	if err != nil || !found {
		return []op.Operation{o.Error("Account does not exist")}
	}
	if !accountstore.CheckPassword(acct.PasswordHash, password) {
		return []op.Operation{o.Error("Password does not match")}
	}

	c.Account = acct
	for _, charID := range acct.CharacterIDs {
		ent, ok := c.World.GetObject(charID)
		if !ok {
			continue
		}
		c.Scope[charID] = ent
		id := charID
		ent.Underlying().OnDestroyed(func() { delete(c.Scope, id) })
	}

	chars := make([]any, len(acct.CharacterIDs))
	for i, charID := range acct.CharacterIDs {
		chars[i] = charID
	}
	reply := o.Reply(op.KindInfo, op.Arg{"id": acct.ID, "characters": chars})
	reply.From = acct.ID
	reply.To = c.ID
	return []op.Operation{reply}
}

// handleCreate rejects creation while the store is restricted; otherwise
// persists a new account and replies Info (spec.md §4.8, §7 "Auth
// failure").
func (c *Connection) handleCreate(ctx context.Context, o op.Operation) []op.Operation {
	if c.Store.Restricted() {
		return []op.Operation{o.Error("Account creation is restricted")}
	}

	arg := o.FirstArg()
	id, _ := arg.String("id")
	password, _ := arg.String("password")

	exists, err := c.Store.Find(ctx, id)
	if err != nil {
		return []op.Operation{o.Error("Could not create account")}
	}
	if exists {
		return []op.Operation{o.Error("Account already exists")}
	}

	hash, err := accountstore.HashPassword(password)
	if err != nil {
		return []op.Operation{o.Error("Could not create account")}
	}
	acct := &accountstore.Account{ID: id, PasswordHash: hash}
	if err := c.Store.Put(ctx, acct); err != nil {
		return []op.Operation{o.Error("Could not create account")}
	}

	c.Account = acct
	reply := o.Reply(op.KindInfo, op.Arg{"id": acct.ID})
	reply.From = acct.ID
	reply.To = c.ID
	return []op.Operation{reply}
}

// handleLogout stamps From = account.fullid and clears the connection's
// possession of every character in scope, reverting them to autom local
// control, then confirms with Info (spec.md §4.8: "stamp from =
// account.fullid and re-enter the pipeline" — here realised directly,
// since an Account is not itself a routable world entity to re-deliver
// through).
func (c *Connection) handleLogout(ctx context.Context, o op.Operation) []op.Operation {
	if c.Account == nil {
		return []op.Operation{o.Error("Not logged in")}
	}
	stamped := o
	stamped.From = c.Account.ID

	c.Destroy()
	reply := stamped.Reply(op.KindInfo, op.Arg{"id": c.Account.ID})
	reply.From = c.Account.ID
	reply.To = c.ID
	c.Account = nil
	return []op.Operation{reply}
}

// handleGet replies with the currently logged-in account's record, or an
// Error if no account is bound to this connection yet.
func (c *Connection) handleGet(ctx context.Context, o op.Operation) []op.Operation {
	if c.Account == nil {
		return []op.Operation{o.Error("Not logged in")}
	}
	reply := o.Reply(op.KindInfo, op.Arg{"id": c.Account.ID})
	reply.From = c.Account.ID
	reply.To = c.ID
	return []op.Operation{reply}
}
