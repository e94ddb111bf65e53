// Package mind implements the behaviour-source side of a Character: a Mind
// receives percepts (Sight/Sound/Touch/Tick forwarded by world2mind) and
// produces operations in response. The default local mind is backed by the
// scripting host; an external mind is bound to a client connection instead
// (see internal/account).
package mind

import "github.com/worldforge/worldcore/internal/op"

// Mind is implemented by both local (NPC, script-driven) and external
// (remote client) minds. sendMind (spec.md §4.5) routes a percept to
// whichever is currently bound.
type Mind interface {
	Perceive(percept op.Operation) []op.Operation
}

// ScriptBackend is the narrow slice of the scripting host a local mind
// needs (spec.md §6 "Scripting host": operation(kind_name, op) -> verdict).
type ScriptBackend interface {
	Operation(kindName string, o op.Operation) (handled bool, out []op.Operation, err error)
}

// Local is the default NPC mind: every percept is handed to the script
// backend's Operation under the percept's kind name. A nil backend behaves as
// "returned zero" (spec.md §6), i.e. produces no operations.
type Local struct {
	Backend ScriptBackend
}

func NewLocal(backend ScriptBackend) *Local {
	return &Local{Backend: backend}
}

func (m *Local) Perceive(percept op.Operation) []op.Operation {
	if m.Backend == nil {
		return nil
	}
	handled, out, err := m.Backend.Operation(percept.KindName(), percept)
	if err != nil || !handled {
		return nil
	}
	return out
}
