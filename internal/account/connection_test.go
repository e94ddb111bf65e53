package account

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/worldforge/worldcore/internal/accountstore"
	"github.com/worldforge/worldcore/internal/character"
	"github.com/worldforge/worldcore/internal/entity"
	"github.com/worldforge/worldcore/internal/entityid"
	"github.com/worldforge/worldcore/internal/op"
	"github.com/worldforge/worldcore/internal/worldrouter"
)

// fakeStore is an in-memory accountstore.Store for exercising Connection
// without a database.
type fakeStore struct {
	accounts   map[string]*accountstore.Account
	restricted bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]*accountstore.Account)}
}

func (s *fakeStore) Get(ctx context.Context, id string) (*accountstore.Account, bool, error) {
	a, ok := s.accounts[id]
	return a, ok, nil
}

func (s *fakeStore) Put(ctx context.Context, a *accountstore.Account) error {
	s.accounts[a.ID] = a
	return nil
}

func (s *fakeStore) Find(ctx context.Context, id string) (bool, error) {
	_, ok := s.accounts[id]
	return ok, nil
}

func (s *fakeStore) Restricted() bool { return s.restricted }

func newTestWorld() *worldrouter.WorldRouter {
	root := entity.New(entityid.Nil, "world", 0, nil)
	return worldrouter.New(root, zap.NewNop())
}

// TestLogin covers scenario 1 (spec.md §8): a correct id/password Login
// populates the connection's scope with the account's characters and
// replies Info with the account id and character list.
func TestLogin(t *testing.T) {
	store := newFakeStore()
	hash, err := accountstore.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.accounts["alice"] = &accountstore.Account{
		ID:           "alice",
		PasswordHash: hash,
		CharacterIDs: []string{"char#1"},
	}

	world := newTestWorld()
	ch := character.New(entityid.Nil, "char#1", 1, nil, character.MetabolismParams{}, 1)
	world.AddObject(ch)

	conn := NewConnection("conn#1", world, store, zap.NewNop())

	login := op.New(op.KindLogin, op.Arg{"id": "alice", "password": "hunter2"})
	out := conn.Operation(context.Background(), login)

	if len(out) != 1 || out[0].Kind != op.KindInfo {
		t.Fatalf("expected a single Info reply, got %+v", out)
	}
	if conn.Account == nil || conn.Account.ID != "alice" {
		t.Fatalf("expected account bound to connection, got %+v", conn.Account)
	}
	if _, ok := conn.Scope["char#1"]; !ok {
		t.Fatal("expected char#1 added to connection scope after login")
	}
}

func TestLoginWrongPasswordFails(t *testing.T) {
	store := newFakeStore()
	hash, _ := accountstore.HashPassword("hunter2")
	store.accounts["alice"] = &accountstore.Account{ID: "alice", PasswordHash: hash}

	world := newTestWorld()
	conn := NewConnection("conn#1", world, store, zap.NewNop())

	login := op.New(op.KindLogin, op.Arg{"id": "alice", "password": "wrong"})
	out := conn.Operation(context.Background(), login)

	if len(out) != 1 || out[0].Kind != op.KindError {
		t.Fatalf("expected an Error reply for a wrong password, got %+v", out)
	}
	if conn.Account != nil {
		t.Fatal("expected no account bound after a failed login")
	}
}

// TestPossession covers scenario 2 (spec.md §8): the first operation from a
// scoped character with no external mind yet bound triggers possession —
// an Info confirming the bind is emitted before the routed result of the
// original operation.
func TestPossession(t *testing.T) {
	store := newFakeStore()
	world := newTestWorld()
	ch := character.New(entityid.Nil, "char#1", 1, nil, character.MetabolismParams{}, 1)
	world.AddObject(ch)

	conn := NewConnection("conn#1", world, store, zap.NewNop())
	conn.Scope["char#1"] = ch

	look := op.New(op.KindLook, op.Arg{})
	look.From = "char#1"
	out := conn.Operation(context.Background(), look)

	if len(out) == 0 {
		t.Fatal("expected at least the possession Info reply")
	}
	if out[0].Kind != op.KindInfo {
		t.Fatalf("expected the possession Info to come first, got %+v", out[0])
	}
	if out[0].To != conn.ID {
		t.Fatalf("expected the possession Info addressed to the connection, got to=%s", out[0].To)
	}
	if ch.ExternalMind == nil {
		t.Fatal("expected an external mind bound to the character after possession")
	}
	if ch.Autom {
		t.Fatal("expected autom turned off once a remote client possesses the character")
	}
}

func TestPossessionOnlyHappensOnce(t *testing.T) {
	store := newFakeStore()
	world := newTestWorld()
	ch := character.New(entityid.Nil, "char#1", 1, nil, character.MetabolismParams{}, 1)
	world.AddObject(ch)

	conn := NewConnection("conn#1", world, store, zap.NewNop())
	conn.Scope["char#1"] = ch

	look := op.New(op.KindLook, op.Arg{})
	look.From = "char#1"
	conn.Operation(context.Background(), look)

	out := conn.Operation(context.Background(), look)
	if len(out) > 0 && out[0].Kind == op.KindInfo {
		firstArg := out[0].FirstArg()
		if _, hasID := firstArg["id"]; hasID {
			t.Fatal("expected no repeated possession Info once already possessed")
		}
	}
}

// TestClientMoveRunsMovementPlan covers scenario 3 (spec.md §8) through
// the connection: a client Move takes the mind2body pipe, so the velocity
// is clipped to base_velocity, the direction points at the target, and a
// self-Tick is scheduled at distance/speed. A stale-serialno Tick arriving
// afterwards is dropped.
func TestClientMoveRunsMovementPlan(t *testing.T) {
	store := newFakeStore()
	world := newTestWorld()
	ch := character.New(entityid.Nil, "char#1", 1, nil, character.MetabolismParams{}, 1.5)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ch.Now = func() time.Time { return now }
	world.AddObject(ch)

	conn := NewConnection("conn#1", world, store, zap.NewNop())
	conn.Scope["char#1"] = ch

	move := op.New(op.KindMove, op.Arg{
		"id":       "char#1",
		"pos":      []any{10.0, 0.0, 0.0},
		"velocity": []any{2.0, 0.0, 0.0},
	})
	move.From = "char#1"
	out := conn.Operation(context.Background(), move)

	// First op is the possession Info; then the planned Move and the Tick.
	if len(out) != 3 {
		t.Fatalf("expected [info, move, tick], got %d: %+v", len(out), out)
	}
	if out[0].Kind != op.KindInfo {
		t.Fatalf("expected the possession Info first, got %+v", out[0])
	}
	if out[1].Kind != op.KindMove {
		t.Fatalf("expected the planned Move second, got %+v", out[1])
	}
	vel, ok := out[1].FirstArg().Floats3("velocity")
	if !ok {
		t.Fatalf("expected a velocity in the planned Move, got %+v", out[1])
	}
	if vel[0] != 1.5 || vel[1] != 0 || vel[2] != 0 {
		t.Fatalf("expected velocity clipped to base_velocity towards +x, got %v", vel)
	}
	if out[2].Kind != op.KindTick {
		t.Fatalf("expected the follow-up Tick last, got %+v", out[2])
	}
	wantETA := 10.0 / 1.5
	if math.Abs(out[2].FutureSeconds-wantETA) > 1e-6 {
		t.Fatalf("expected tick at distance/speed = %v, got %v", wantETA, out[2].FutureSeconds)
	}

	// A Tick carrying an outdated serialno is silently dropped on delivery.
	stale := op.New(op.KindTick, op.Arg{"serialno": int64(0)})
	stale.From = "char#1"
	stale.To = "char#1"
	if res := world.Operation(stale); res != nil {
		t.Fatalf("expected a stale tick dropped by the world-delivery path, got %+v", res)
	}
}

// TestClientLookElicitsSight covers scenario 2 (spec.md §8) end to end:
// after the possession Info, the client's Look is routed normally — it
// marks the character perceptive, travels to the world root, and the root
// replies with a Sight of its record addressed back at the character.
func TestClientLookElicitsSight(t *testing.T) {
	store := newFakeStore()
	world := newTestWorld()
	ch := character.New(entityid.Nil, "char#1", 1, nil, character.MetabolismParams{}, 1)
	world.AddObject(ch)

	conn := NewConnection("conn#1", world, store, zap.NewNop())
	conn.Scope["char#1"] = ch

	look := op.New(op.KindLook, op.Arg{})
	look.From = "char#1"
	look.Serialno = 5
	out := conn.Operation(context.Background(), look)

	if len(out) != 2 {
		t.Fatalf("expected [info, look], got %d: %+v", len(out), out)
	}
	if out[0].Kind != op.KindInfo || out[0].Refno != 5 {
		t.Fatalf("expected a refno-correlated possession Info, got %+v", out[0])
	}
	if out[1].Kind != op.KindLook || out[1].To != "" {
		t.Fatalf("expected the Look forwarded world-scoped, got %+v", out[1])
	}
	if !ch.Perceptive {
		t.Fatal("expected the character marked perceptive by its own Look")
	}

	res := world.Operation(out[1])
	if len(res) != 1 || res[0].Kind != op.KindSight {
		t.Fatalf("expected the world root to answer with a Sight, got %+v", res)
	}
	if res[0].To != "char#1" {
		t.Fatalf("expected the Sight addressed back at the looker, got to=%s", res[0].To)
	}
	if res[0].Refno != 5 {
		t.Fatalf("expected the Sight correlated to the Look's serialno, got refno=%d", res[0].Refno)
	}
}

// TestUnknownFromIsIllegal covers scenario 6 (spec.md §8): an operation
// whose From is not in the connection's scope produces the standard
// "From is illegal" Error, never reaching the world router.
func TestUnknownFromIsIllegal(t *testing.T) {
	store := newFakeStore()
	world := newTestWorld()
	conn := NewConnection("conn#1", world, store, zap.NewNop())

	look := op.New(op.KindLook, op.Arg{})
	look.From = "not-mine"
	out := conn.Operation(context.Background(), look)

	if len(out) != 1 || out[0].Kind != op.KindError {
		t.Fatalf("expected a single Error reply, got %+v", out)
	}
	msg, _ := out[0].FirstArg().String("message")
	if msg != "From is illegal" {
		t.Fatalf("expected the standard illegal-from message, got %q", msg)
	}
}

// TestDestroyClearsPossession covers Connection.Destroy: disconnecting
// clears the external mind binding and restores autom control.
func TestDestroyClearsPossession(t *testing.T) {
	store := newFakeStore()
	world := newTestWorld()
	ch := character.New(entityid.Nil, "char#1", 1, nil, character.MetabolismParams{}, 1)
	world.AddObject(ch)

	conn := NewConnection("conn#1", world, store, zap.NewNop())
	conn.Scope["char#1"] = ch
	ch.ExternalMind = NewConnMind(conn)
	ch.Autom = false

	conn.Destroy()

	if ch.ExternalMind != nil {
		t.Fatal("expected external mind cleared on disconnect")
	}
	if !ch.Autom {
		t.Fatal("expected autom restored on disconnect")
	}
}
