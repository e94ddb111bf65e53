package entity

import (
	"testing"

	"github.com/worldforge/worldcore/internal/entityid"
	"github.com/worldforge/worldcore/internal/location"
	"github.com/worldforge/worldcore/internal/op"
)

// memRegistry is a minimal in-memory Registry for exercising Destroy
// without pulling in internal/worldrouter.
type memRegistry struct {
	entities map[entityid.ID]*Base
}

func newMemRegistry() *memRegistry {
	return &memRegistry{entities: make(map[entityid.ID]*Base)}
}

func (r *memRegistry) Get(id entityid.ID) (*Base, bool) {
	e, ok := r.entities[id]
	return e, ok
}

func (r *memRegistry) add(id entityid.ID, e *Base) {
	e.ID = id
	r.entities[id] = e
}

// TestDestroyReparentsChildrenToGrandparent covers the destroy re-parent
// scenario (spec.md §8): destroying an entity with children moves those
// children into the destroyed entity's own parent, transforming their
// Location by the destroyed entity's pose.
func TestDestroyReparentsChildrenToGrandparent(t *testing.T) {
	reg := newMemRegistry()

	root := New(entityid.Nil, "root", 0, nil)
	reg.add(1, root)

	middle := New(entityid.Nil, "middle", 0, nil)
	middle.Location.Ref = 1
	middle.Location.Pos = location.Vector3{X: 10, Y: 0, Z: 0}
	reg.add(2, middle)
	root.Contains[2] = struct{}{}

	child := New(entityid.Nil, "child", 0, nil)
	child.Location.Ref = 2
	child.Location.Pos = location.Vector3{X: 1, Y: 0, Z: 0}
	reg.add(3, child)
	middle.Contains[3] = struct{}{}

	middle.Destroy(reg)

	if !middle.Destroyed {
		t.Fatal("expected middle marked Destroyed")
	}
	if child.Location.Ref != root.ID {
		t.Fatalf("expected child reparented to root (id %v), got %v", root.ID, child.Location.Ref)
	}
	if child.Location.Pos.X != 11 {
		t.Fatalf("expected child position translated by destroyed's pos (10+1=11), got %v", child.Location.Pos.X)
	}
	if _, stillThere := middle.Contains[3]; stillThere {
		t.Fatal("expected child removed from the destroyed entity's Contains set")
	}
	if _, ok := root.Contains[2]; ok {
		t.Fatal("expected the destroyed entity itself removed from its parent's Contains set")
	}
}

// TestDestroyPanicsOnRootlessEntity covers the crash-fast invariant: an
// entity whose Location.Ref does not resolve in the registry (e.g. the
// world root itself) must panic rather than silently no-op.
func TestDestroyPanicsOnRootlessEntity(t *testing.T) {
	reg := newMemRegistry()
	root := New(entityid.Nil, "root", 0, nil)
	reg.add(1, root)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Destroy of a rootless entity to panic")
		}
	}()
	root.Destroy(reg)
}

// TestOperationScriptShortCircuitsHandlerTable covers SPEC_FULL.md §4: when
// a script handles an operation, the native handler table is not consulted
// at all, even if a handler is installed for the same kind.
func TestOperationScriptShortCircuitsHandlerTable(t *testing.T) {
	e := New(entityid.Nil, "e", 0, nil)
	nativeCalled := false
	e.InstallHandler(op.KindLook, func(e *Base, o op.Operation) []op.Operation {
		nativeCalled = true
		return nil
	})
	e.Script = stubScript{handled: true, out: []op.Operation{op.New(op.KindInfo)}}

	out := e.Operation(op.New(op.KindLook))
	if nativeCalled {
		t.Fatal("expected the native handler to be skipped when the script handles the operation")
	}
	if len(out) != 1 || out[0].Kind != op.KindInfo {
		t.Fatalf("expected the script's own output to be returned verbatim, got %+v", out)
	}
}

// TestOperationFallsThroughOnScriptMiss covers the case where a script is
// bound but reports "not handled": the native handler table still runs.
func TestOperationFallsThroughOnScriptMiss(t *testing.T) {
	e := New(entityid.Nil, "e", 0, nil)
	nativeCalled := false
	e.InstallHandler(op.KindLook, func(e *Base, o op.Operation) []op.Operation {
		nativeCalled = true
		return nil
	})
	e.Script = stubScript{handled: false}

	e.Operation(op.New(op.KindLook))
	if !nativeCalled {
		t.Fatal("expected the native handler to run when the script reports not-handled")
	}
}

// TestLookRepliesSightOfRecord covers the default Look handler: any entity
// answers a Look with a Sight of its own serialised record, addressed back
// at the looker.
func TestLookRepliesSightOfRecord(t *testing.T) {
	e := New(entityid.Nil, "rock#1", 0, nil)
	look := op.New(op.KindLook, op.Arg{})
	look.From = "char#1"

	out := e.Operation(look)
	if len(out) != 1 || out[0].Kind != op.KindSight {
		t.Fatalf("expected a single Sight reply to a Look, got %+v", out)
	}
	if out[0].To != "char#1" {
		t.Fatalf("expected the Sight addressed to the looker, got to=%s", out[0].To)
	}
	id, _ := out[0].FirstArg().String("id")
	if id != "rock#1" {
		t.Fatalf("expected the entity's own record in the Sight, got %+v", out[0].FirstArg())
	}
}

func TestOperationUnknownKindProducesError(t *testing.T) {
	e := New(entityid.Nil, "e", 0, nil)
	out := e.Operation(op.NewOther("frobnicate"))
	if len(out) != 1 || out[0].Kind != op.KindError {
		t.Fatalf("expected Unknown operation error for an unhandled KindOther, got %+v", out)
	}
}

type stubScript struct {
	handled bool
	out     []op.Operation
}

func (s stubScript) Operation(kindName string, o op.Operation) (bool, []op.Operation, error) {
	return s.handled, s.out, nil
}
