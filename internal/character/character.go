// Package character implements the Character component (spec C6): a
// specialised entity with a body router, a mind pipe, optional external
// mind binding, and metabolism.
package character

import (
	"math/rand"
	"time"

	"github.com/worldforge/worldcore/internal/entity"
	"github.com/worldforge/worldcore/internal/entityid"
	"github.com/worldforge/worldcore/internal/location"
	"github.com/worldforge/worldcore/internal/mind"
	"github.com/worldforge/worldcore/internal/movement"
	"github.com/worldforge/worldcore/internal/op"
)

// MetabolismParams are the per-type tunables the metabolism formula reads
// (spec.md §4.5); normally populated from a ruleset type declaration or a
// config per-type override (SPEC_FULL.md §6 Config).
type MetabolismParams struct {
	EnergyLoss        float64
	EnergyGain        float64
	EnergyConsumption float64
	WeightGain        float64
	WeightConsumption float64
	FoodConsumption   float64
	BasicTick         time.Duration
}

// Character extends entity.Base with the five-pipe router, nutrition
// state, and the movement model (spec.md §3, §4.5).
type Character struct {
	*entity.Base

	Mind         mind.Mind // local (NPC) mind, optional
	ExternalMind mind.Mind // remote client link, optional
	Autom        bool      // fallback-to-local flag; defaults true (SPEC_FULL.md §9)

	Status    float64
	Food      float64
	Weight    float64
	MaxWeight float64
	Drunkness float64
	Sex       string

	Movement   movement.Pedestrian
	Metabolism MetabolismParams

	// Now is the clock used for movement integration; overridable in tests.
	Now func() time.Time
}

// New constructs a Character with its native world2body handlers installed
// (Move, Eat, Nourish, Tick, Setup — spec.md §4.5 — plus Talk).
func New(id entityid.ID, stringID string, intID int64, t *entity.TypeDescriptor, metab MetabolismParams, baseVelocity float64) *Character {
	c := &Character{
		Base:       entity.New(id, stringID, intID, t),
		Autom:      true,
		MaxWeight:  100,
		Weight:     50,
		Metabolism: metab,
		Now:        time.Now,
	}
	c.Movement.BaseVelocity = baseVelocity

	c.InstallHandler(op.KindMove, func(e *entity.Base, o op.Operation) []op.Operation { return c.handleMove(o) })
	c.InstallHandler(op.KindEat, func(e *entity.Base, o op.Operation) []op.Operation { return c.handleEat(o) })
	c.InstallHandler(op.KindNourish, func(e *entity.Base, o op.Operation) []op.Operation { return c.handleNourish(o) })
	c.InstallHandler(op.KindTick, func(e *entity.Base, o op.Operation) []op.Operation { return c.handleTick(o) })
	c.InstallHandler(op.KindSetup, func(e *entity.Base, o op.Operation) []op.Operation { return c.handleSetup(o) })
	c.InstallHandler(op.KindTalk, func(e *entity.Base, o op.Operation) []op.Operation { return c.handleTalk(o) })
	return c
}

// --- pipe 1: world2body -----------------------------------------------

// World2Body dispatches op against the Character's own handlers (physical
// effects): Move mutates Location, Eat produces Set+Nourish, Tick advances
// movement/metabolism. This is exactly entity.Base.Operation, named to
// match spec.md §4.5's pipe vocabulary.
func (c *Character) World2Body(o op.Operation) []op.Operation {
	return c.Base.Operation(o)
}

func (c *Character) handleMove(o op.Operation) []op.Operation {
	arg := o.FirstArg()
	if pos, ok := arg.Floats3("pos"); ok {
		c.Location.Pos = location.Vector3{X: pos[0], Y: pos[1], Z: pos[2]}
	}
	if vel, ok := arg.Floats3("velocity"); ok {
		// Clipped even on the body path: a Move forwarded from another
		// entity's mind carries whatever velocity that mind asked for.
		v := c.Movement.Clip(location.Vector3{X: vel[0], Y: vel[1], Z: vel[2]})
		c.Location.Velocity = v
		c.Movement.Velocity = v
	}
	if face, ok := arg.Floats3("face"); ok {
		c.Location.Face = location.Vector3{X: face[0], Y: face[1], Z: face[2]}
	}
	c.Touch()
	return nil
}

// handleEat: being eaten kills this character (Set status=-1 to self) and
// nourishes the eater with this character's weight (spec.md §4.5).
func (c *Character) handleEat(o op.Operation) []op.Operation {
	setOp := op.New(op.KindSet, op.Arg{"id": c.StringID, "status": -1.0})
	setOp.From = c.StringID
	setOp.To = c.StringID

	eater := o.From
	if eater == "" {
		eater = c.StringID
	}
	nourishOp := op.New(op.KindNourish, op.Arg{"id": eater, "weight": c.Weight})
	nourishOp.From = c.StringID
	nourishOp.To = eater
	return []op.Operation{setOp, nourishOp}
}

// handleNourish adds the delivered weight to food and broadcasts the change
// as a Sight-wrapped Set to self.
func (c *Character) handleNourish(o op.Operation) []op.Operation {
	weight, ok := o.FirstArg().Float("weight")
	if !ok {
		return nil
	}
	c.Food += weight
	c.Touch()

	sightOp := op.New(op.KindSight, op.Arg{
		"set": op.Arg{"id": c.StringID, "food": c.Food},
	})
	sightOp.From = c.StringID
	sightOp.To = c.StringID
	return []op.Operation{sightOp}
}

// handleTalk wraps the spoken op in a Sound broadcast, the containment
// subtree fan-out the world router performs for an empty To.
func (c *Character) handleTalk(o op.Operation) []op.Operation {
	sound := op.New(op.KindSound, op.Arg{"talk": o.FirstArg()})
	sound.From = c.StringID
	return []op.Operation{sound}
}

// handleSetup boots the character's time-driven state: a Setup tagged
// sub_to=mind so the mind wakes too, a Look at the surroundings, and the
// first metabolism Tick after basic_tick. A Setup already tagged sub_to is
// the mind's copy coming back around and does nothing to the body.
func (c *Character) handleSetup(o op.Operation) []op.Operation {
	if _, tagged := o.FirstArg().String("sub_to"); tagged {
		return nil
	}

	mindSetup := op.New(op.KindSetup, op.Arg{"sub_to": "mind"})
	mindSetup.From = c.StringID
	mindSetup.To = c.StringID

	look := op.New(op.KindLook, op.Arg{})
	look.From = c.StringID // empty To: delivered to the world root

	tick := op.New(op.KindTick, op.Arg{})
	tick.From = c.StringID
	tick.To = c.StringID
	tick.FutureSeconds = c.Metabolism.BasicTick.Seconds()
	return []op.Operation{mindSetup, look, tick}
}

// handleTick implements both the movement reprojection tick (carries a
// "serialno" arg, dropped if stale) and the metabolism self-tick (no
// serialno arg, scheduled every basic_tick*30 — spec.md §4.5).
func (c *Character) handleTick(o op.Operation) []op.Operation {
	arg := o.FirstArg()
	if _, tagged := arg.String("sub_to"); tagged {
		return nil // the mind's tick, not the body's
	}
	if serialno, ok := arg.Int("serialno"); ok {
		if uint64(serialno) < c.Movement.Serialno {
			return nil // stale tick: silently drop (spec.md §7, §9 Open Question: strict <)
		}
		now := c.Now()
		moveOp, produced := c.Movement.GenMoveOperation(&c.Location, now, nil)
		if produced {
			moveOp.From = c.StringID
			moveOp.To = c.StringID

			delay := c.Movement.GetTickAddition(c.Location.Pos)
			nextTick := op.New(op.KindTick, op.Arg{"serialno": int64(c.Movement.Serialno)})
			nextTick.From = c.StringID
			nextTick.To = c.StringID
			nextTick.FutureSeconds = delay.Seconds()
			return []op.Operation{moveOp, nextTick}
		}
		// entity has stopped moving: fall through to metabolism.
	}
	return c.metabolizeAndReschedule()
}

// Metabolize implements the exact formula from spec.md §4.5.
func (c *Character) Metabolize() []op.Operation {
	if c.Food >= c.Metabolism.FoodConsumption && c.Status < 2 {
		c.Status += c.Metabolism.FoodConsumption
		c.Food -= c.Metabolism.FoodConsumption
	}

	if c.Status > 1.5+c.Metabolism.EnergyLoss && c.Weight < c.MaxWeight {
		c.Status -= c.Metabolism.EnergyLoss
		c.Weight += c.Metabolism.WeightGain
	}

	energyUsed := c.Metabolism.EnergyConsumption // amount == 1
	if c.Status <= energyUsed && c.Weight > c.Metabolism.WeightConsumption {
		c.Status = c.Status - energyUsed + c.Metabolism.EnergyGain
		c.Weight -= c.Metabolism.WeightConsumption
	} else {
		c.Status -= energyUsed
	}

	if c.Status > 2 {
		c.Status = 2
	}
	if c.Status < 0 {
		c.Status = 0
	}
	c.Touch()

	setOp := op.New(op.KindSet, op.Arg{"status": c.Status, "food": c.Food})
	setOp.From = c.StringID
	setOp.To = c.StringID

	sightOp := op.New(op.KindSight, op.Arg{
		"set": op.Arg{"status": c.Status, "food": c.Food, "to": c.StringID},
	})
	sightOp.From = c.StringID

	return []op.Operation{setOp, sightOp}
}

func (c *Character) metabolizeAndReschedule() []op.Operation {
	out := c.Metabolize()
	nextTick := op.New(op.KindTick, op.Arg{})
	nextTick.From = c.StringID
	nextTick.To = c.StringID
	nextTick.FutureSeconds = (c.Metabolism.BasicTick * 30).Seconds()
	return append(out, nextTick)
}

// --- pipe 2: world2mind -------------------------------------------------

// World2Mind is the perception filter: Sight/Sound/Touch are forwarded
// unless Drunkness > 1.0; Error and Setup/Tick tagged sub_to="mind" always
// pass regardless of drunkness (spec.md §4.5, SPEC_FULL.md §4). All other
// kinds are not percepts and do not reach the mind.
func (c *Character) World2Mind(o op.Operation) []op.Operation {
	switch o.Kind {
	case op.KindError:
		return []op.Operation{o}
	case op.KindSetup, op.KindTick:
		if o.SubTo("mind") {
			return []op.Operation{o}
		}
		return nil
	case op.KindSight, op.KindSound, op.KindTouch:
		if c.Drunkness > 1.0 {
			return nil
		}
		return []op.Operation{o}
	default:
		return nil
	}
}

// --- pipe 3: sendMind -----------------------------------------------------

// SendMind routes a percept to the bound external mind if present, else to
// the local mind when Autom is on (spec.md §4.5, §9 Open Question: autom
// defaults true).
func (c *Character) SendMind(o op.Operation) []op.Operation {
	if c.ExternalMind != nil {
		return c.ExternalMind.Perceive(o)
	}
	if c.Autom && c.Mind != nil {
		return c.Mind.Perceive(o)
	}
	return nil
}

// --- pipe 4: mind2body ----------------------------------------------------

// driftDegreesPerUnit times Drunkness is the half-width of the uniform jitter distribution applied
// to movement direction, scaled by Drunkness (spec.md §9 Open Question:
// "document the distribution rather than guess intent" — here a uniform
// distribution over [-Drunkness*10, +Drunkness*10] degrees).
const driftDegreesPerUnit = 10.0

// MindToBody translates the mind's intent into outbound operations.
// Defaults To=self when empty, except for Look. Drops all output when
// Drunkness > 1.0. Move is the rich case (spec.md §4.5).
func (c *Character) MindToBody(o op.Operation) []op.Operation {
	if c.Drunkness > 1.0 {
		return nil
	}
	if o.Kind == op.KindMove {
		return c.mindMove(o)
	}
	if o.Kind == op.KindLook {
		return c.mindLook(o)
	}

	out := o
	if out.To == "" {
		out.To = c.StringID
	}
	out.From = c.StringID

	// A mind self-scheduling Setup or Tick gets it back tagged sub_to=mind,
	// so world2mind routes it to the mind instead of the body's handlers.
	if out.Kind == op.KindSetup || out.Kind == op.KindTick {
		arg := op.Arg{}
		for k, v := range out.FirstArg() {
			arg[k] = v
		}
		arg["sub_to"] = "mind"
		out.To = c.StringID
		out.Args = []op.Arg{arg}
	}
	return []op.Operation{out}
}

// mindLook marks the character perceptive — wanting to look is what opts
// an entity into Sight/Sound broadcasts — and aims the Look: an empty To
// resolves to the id named in the first arg, or stays empty and reaches
// the world root.
func (c *Character) mindLook(o op.Operation) []op.Operation {
	c.Perceptive = true
	out := o
	out.From = c.StringID
	if out.To == "" {
		if id, ok := out.FirstArg().String("id"); ok && id != "" {
			out.To = id
		}
	}
	return []op.Operation{out}
}

func (c *Character) mindMove(o op.Operation) []op.Operation {
	arg := o.FirstArg()

	// Moving something else: forward the Move to it. The target's own Move
	// handler decides what happens; the world router does the delivery.
	if id, ok := arg.String("id"); ok && id != "" && id != c.StringID {
		fwd := o
		fwd.From = c.StringID
		fwd.To = id
		return []op.Operation{fwd}
	}

	var targetPos location.Vector3
	hasTarget := false
	if p, ok := arg.Floats3("pos"); ok {
		targetPos = location.Vector3{X: p[0], Y: p[1], Z: p[2]}
		hasTarget = true
	}

	var explicitVel location.Vector3
	hasVel := false
	if v, ok := arg.Floats3("velocity"); ok {
		explicitVel = location.Vector3{X: v[0], Y: v[1], Z: v[2]}
		hasVel = true
	}

	var face location.Vector3
	hasFace := false
	if f, ok := arg.Floats3("face"); ok {
		face = location.Vector3{X: f[0], Y: f[1], Z: f[2]}
		hasFace = true
	}

	// Direction precedence: explicit target position, then explicit
	// velocity, then bare facing (spec.md §4.5, SPEC_FULL.md §4).
	var direction location.Vector3
	switch {
	case hasTarget:
		direction = targetPos.Sub(c.Location.Pos).Normalize()
	case hasVel && !explicitVel.IsZero():
		direction = explicitVel.Normalize()
	case hasFace:
		direction = face.Normalize()
	}

	if c.Drunkness > 0 && !direction.IsZero() {
		jitter := (rand.Float64()*2 - 1) * c.Drunkness * driftDegreesPerUnit
		direction = direction.RotateAroundZ(jitter)
	}

	speed := c.Movement.BaseVelocity
	if hasVel {
		speed = explicitVel.Length()
	}
	newVel := c.Movement.Clip(direction.Scale(speed))
	now := c.Now()

	// Stopping: cancel the plan, zero the live velocity, and emit only a
	// facing update if the actor turned while standing still.
	if newVel.IsZero() && !hasTarget {
		c.Movement.Velocity = location.Vector3{}
		c.Movement.HasTarget = false
		c.Movement.Reset(now)
		c.Location.Velocity = location.Vector3{}
		c.Touch()
		if direction.IsZero() {
			return nil
		}
		c.Location.Face = direction
		faceOp := c.Movement.GenFaceOperation(direction)
		faceOp.From = c.StringID
		faceOp.To = c.StringID
		return []op.Operation{faceOp}
	}

	c.Movement.Velocity = newVel
	c.Movement.HasTarget = hasTarget
	if hasTarget {
		c.Movement.TargetPos = targetPos
	}
	c.Movement.Reset(now)

	var out []op.Operation
	moveOp, produced := c.Movement.GenMoveOperation(&c.Location, now, nil)
	if produced {
		moveOp.From = c.StringID
		moveOp.To = c.StringID
		out = append(out, moveOp)
	}

	delay := c.Movement.GetTickAddition(c.Location.Pos)
	nextTick := op.New(op.KindTick, op.Arg{"serialno": int64(c.Movement.Serialno)})
	nextTick.From = c.StringID
	nextTick.To = c.StringID
	nextTick.FutureSeconds = delay.Seconds()
	out = append(out, nextTick)
	return out
}

// --- pipe 5: externalMessage ----------------------------------------------

// ExternalMessage routes a mind-produced operation back through mind2body
// and tags it as coming from this character (spec.md §4.5). This is also
// the entry point for operations arriving from the bound external client:
// a remote client IS the character's mind, so its operations take the
// mind2body pipe, while world deliveries take the five-pipe composite via
// ExternalOperation below.
func (c *Character) ExternalMessage(o op.Operation) []op.Operation {
	return c.MindToBody(o)
}

// --- composite operation() -------------------------------------------------

// Operation is the five-pipe composer (spec.md §4.5):
//
//	result = world2body(op)
//	percepts = world2mind(op)
//	for p in percepts: for m in sendMind(p): externalMessage(m)
//	return result
func (c *Character) Operation(o op.Operation) []op.Operation {
	result := c.World2Body(o)
	for _, p := range c.World2Mind(o) {
		for _, m := range c.SendMind(p) {
			result = append(result, c.ExternalMessage(m)...)
		}
	}
	return result
}

// ExternalOperation overrides entity.Base's to run the five-pipe composite
// instead of the plain script+handler-table dispatch, and stamps Refno on
// every resulting op (spec.md §4.3).
func (c *Character) ExternalOperation(o op.Operation) []op.Operation {
	out := c.Operation(o)
	if o.HasSerialno() {
		for i := range out {
			out[i].Refno = o.Serialno
		}
	}
	return out
}
