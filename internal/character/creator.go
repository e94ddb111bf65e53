package character

import (
	"github.com/worldforge/worldcore/internal/entity"
	"github.com/worldforge/worldcore/internal/entityid"
	"github.com/worldforge/worldcore/internal/op"
)

// CheatSourceID is the synthetic "from" stamped on operations Creator
// forwards to a foreign target (spec.md §4.6 "allowing it to act as any
// entity"), distinguishing impersonated traffic in logs/scripts.
const CheatSourceID = "cheat"

// Creator is an omnipresent admin character: its local mind is irrelevant
// (sendMind unconditionally forwards to the external mind only), and
// externalOperation with a foreign "to" is forwarded as coming from
// CheatSourceID (spec.md §4.6).
type Creator struct {
	*Character
}

// NewCreator builds a Creator: omnipresent (no spatial parent) with a zero
// bounding box, per spec.md §4.6 and the original constructor.
func NewCreator(id entityid.ID, stringID string, intID int64, t *entity.TypeDescriptor) *Creator {
	c := New(id, stringID, intID, t, MetabolismParams{}, 0)
	c.Location.Ref = entityid.Nil // omnipresent: no spatial parent
	// c.Location.BBox is already the zero box from New(); the original
	// constructor sets an explicit empty BBox for the same effect.
	return &Creator{Character: c}
}

// SendMind ignores the local mind entirely, forwarding only to the external
// mind (spec.md §4.6) — this is the one pipe Creator overrides.
func (cr *Creator) SendMind(o op.Operation) []op.Operation {
	if cr.ExternalMind != nil {
		return cr.ExternalMind.Perceive(o)
	}
	return nil
}

// Operation special-cases Look (delegate to the ordinary five-pipe
// composite, which — via cr.SendMind above — already ignores the local
// mind) and Setup (a world-scoped Look from self); everything else skips
// straight to sendMind, since Creator has no meaningful physical body
// (SPEC_FULL.md §4, grounded on original_source/rulesets/Creator.cpp).
func (cr *Creator) Operation(o op.Operation) []op.Operation {
	switch o.Kind {
	case op.KindLook:
		result := cr.World2Body(o)
		for _, p := range cr.World2Mind(o) {
			for _, m := range cr.SendMind(p) {
				result = append(result, cr.ExternalMessage(m)...)
			}
		}
		return result
	case op.KindSetup:
		lookOp := op.New(op.KindLook, op.Arg{"id": cr.StringID})
		lookOp.From = cr.StringID
		lookOp.To = "" // world-scoped: broadcast/deliver to the world root
		return []op.Operation{lookOp}
	default:
		return cr.SendMind(o)
	}
}

// ExternalOperation: a self/empty "to" runs locally like any Character,
// stamping Refno per reply; a foreign "to" is not processed here at all —
// it is cloned with From=CheatSourceID and handed back for the world
// router to deliver to the real target (spec.md §4.6, SPEC_FULL.md §4).
func (cr *Creator) ExternalOperation(o op.Operation) []op.Operation {
	if o.To != "" && o.To != cr.StringID {
		clone := o
		clone.From = CheatSourceID
		return []op.Operation{clone}
	}
	out := cr.Operation(o)
	if o.HasSerialno() {
		for i := range out {
			out[i].Refno = o.Serialno
		}
	}
	return out
}
