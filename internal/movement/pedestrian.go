// Package movement implements the Pedestrian movement model (spec
// component C5): a piecewise-linear motion projector with tick-driven
// replanning.
package movement

import (
	"time"

	"github.com/worldforge/worldcore/internal/location"
	"github.com/worldforge/worldcore/internal/op"
)

// MinTickAddition bounds getTickAddition from below so a stalled or
// near-stationary actor cannot starve the scheduler with sub-millisecond
// reprojection ticks (spec.md §4.4).
const MinTickAddition = 100 * time.Millisecond

// Pedestrian is held by value inside Character (spec.md §9 Design Notes —
// never separately heap-allocated).
type Pedestrian struct {
	Serialno     uint64
	HasTarget    bool
	TargetPos    location.Vector3
	Velocity     location.Vector3
	BaseVelocity float64

	lastUpdate time.Time
}

// Reset advances Serialno, invalidating any pending Tick whose serialno arg
// is now stale (spec.md §4.4 "tick serialno mechanism").
func (p *Pedestrian) Reset(now time.Time) {
	p.Serialno++
	p.lastUpdate = now
}

// Clip scales v down to at most BaseVelocity in magnitude (spec.md §8
// boundary behavior: "Move with velocity > base_velocity is clipped").
func (p *Pedestrian) Clip(v location.Vector3) location.Vector3 {
	if p.BaseVelocity <= 0 {
		return v
	}
	l := v.Length()
	if l <= p.BaseVelocity || l == 0 {
		return v
	}
	return v.Scale(p.BaseVelocity / l)
}

// GenMoveOperation advances loc from the last recorded time to now using
// linear integration clipped by BaseVelocity and optionally terminated at
// TargetPos, and returns a Move operation describing the new pos/velocity.
// If currentPos is non-nil it is used as the integration basis instead of
// loc.Pos, letting the caller coalesce two moves planned in the same tick.
// Returns (op, true) or (zero, false) if there is nothing to move (spec.md
// §4.4: "if velocity is zero and no target, returns absent").
func (p *Pedestrian) GenMoveOperation(loc *location.Location, now time.Time, currentPos *location.Vector3) (op.Operation, bool) {
	if p.Velocity.IsZero() && !p.HasTarget {
		return op.Operation{}, false
	}

	basis := loc.Pos
	if currentPos != nil {
		basis = *currentPos
	}

	if p.lastUpdate.IsZero() {
		p.lastUpdate = now
	}
	dt := now.Sub(p.lastUpdate).Seconds()
	if dt < 0 {
		dt = 0
	}

	vel := p.Clip(p.Velocity)
	newPos := basis.Add(vel.Scale(dt))

	if p.HasTarget {
		toTarget := p.TargetPos.Sub(basis)
		remaining := toTarget.Length()
		traveled := vel.Scale(dt).Length()
		if traveled >= remaining || vel.IsZero() {
			newPos = p.TargetPos
			vel = location.Vector3{}
			p.HasTarget = false
		}
	}

	loc.Pos = newPos
	loc.Velocity = vel
	p.Velocity = vel
	p.lastUpdate = now

	moveOp := op.New(op.KindMove, op.Arg{
		"pos":      []any{newPos.X, newPos.Y, newPos.Z},
		"velocity": []any{vel.X, vel.Y, vel.Z},
		"serialno": int64(p.Serialno),
	})
	return moveOp, true
}

// GenFaceOperation emits a Move setting only face, used when an actor has
// stopped moving but its orientation changed (spec.md §4.4).
func (p *Pedestrian) GenFaceOperation(face location.Vector3) op.Operation {
	return op.New(op.KindMove, op.Arg{
		"face": []any{face.X, face.Y, face.Z},
	})
}

// GetTickAddition returns the ETA to the next reprojection: the time to
// reach TargetPos at the current (clipped) velocity, bounded below by
// MinTickAddition so the scheduler is never starved (spec.md §4.4).
func (p *Pedestrian) GetTickAddition(fromPos location.Vector3) time.Duration {
	vel := p.Clip(p.Velocity)
	speed := vel.Length()
	if speed == 0 {
		return MinTickAddition
	}

	remaining := speed
	if p.HasTarget {
		remaining = p.TargetPos.Sub(fromPos).Length()
	}

	eta := time.Duration(remaining / speed * float64(time.Second))
	if eta < MinTickAddition {
		return MinTickAddition
	}
	return eta
}
