package character

import (
	"testing"
	"time"

	"github.com/worldforge/worldcore/internal/entityid"
	"github.com/worldforge/worldcore/internal/op"
)

func newMetabolismCharacter(p MetabolismParams) *Character {
	return New(entityid.Nil, "char#1", 1, nil, p, 5)
}

// TestMetabolizeConsumesFoodIntoStatus covers the metabolism scenario: with
// food available and status below the intake ceiling, status rises by
// food_consumption and food falls by the same amount (spec.md §4.5).
func TestMetabolizeConsumesFoodIntoStatus(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{
		FoodConsumption:   1,
		EnergyConsumption: 0.1,
		WeightConsumption: 0.1,
		EnergyLoss:        10, // keep the weight-gain branch inert for this case
		EnergyGain:        0,
		WeightGain:        0,
	})
	c.Status = 0
	c.Food = 5
	c.Weight = 50

	c.Metabolize()

	if c.Status != 1-0.1 {
		t.Fatalf("expected status = foodConsumption - energyConsumption = 0.9, got %v", c.Status)
	}
	if c.Food != 4 {
		t.Fatalf("expected food reduced by foodConsumption, got %v", c.Food)
	}
}

// TestMetabolizeStarvesWithoutFood covers the edge case where no food is
// available: status only drains by energyConsumption every tick, with no
// intake and no weight gain.
func TestMetabolizeStarvesWithoutFood(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{
		FoodConsumption:   1,
		EnergyConsumption: 0.2,
		WeightConsumption: 0.1,
		EnergyLoss:        10,
	})
	c.Status = 1
	c.Food = 0
	c.Weight = 50

	c.Metabolize()

	if c.Status != 0.8 {
		t.Fatalf("expected status drained by energyConsumption to 0.8, got %v", c.Status)
	}
	if c.Weight != 50 {
		t.Fatalf("expected weight unchanged while starving above weightConsumption floor, got %v", c.Weight)
	}
}

// TestMetabolizeConsumesWeightWhenStatusLow covers the weight-consumption
// branch: once status falls to or below energyConsumption and weight
// exceeds weightConsumption, the character burns weight for an energyGain
// top-up instead of draining status further.
func TestMetabolizeConsumesWeightWhenStatusLow(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{
		FoodConsumption:   1,
		EnergyConsumption: 0.5,
		EnergyGain:        0.3,
		WeightConsumption: 1,
		EnergyLoss:        10,
	})
	c.Status = 0.5
	c.Food = 0
	c.Weight = 50

	c.Metabolize()

	if c.Status != 0.3 {
		t.Fatalf("expected status = status - energyConsumption + energyGain = 0.3, got %v", c.Status)
	}
	if c.Weight != 49 {
		t.Fatalf("expected weight reduced by weightConsumption, got %v", c.Weight)
	}
}

func TestMetabolizeClampsStatusToRange(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{
		FoodConsumption:   5,
		EnergyConsumption: 0,
		EnergyLoss:        0,
		WeightGain:        0,
	})
	c.Status = 1.9
	c.Food = 10
	c.Weight = 0
	c.MaxWeight = 0 // block the weight-gain branch so status isn't reduced there

	c.Metabolize()

	if c.Status > 2 {
		t.Fatalf("expected status clamped to at most 2, got %v", c.Status)
	}
}

func TestMetabolizeEmitsSetAndSightOperations(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{FoodConsumption: 1, EnergyConsumption: 0.1})
	c.Status = 1
	c.Food = 5

	out := c.Metabolize()
	if len(out) != 2 {
		t.Fatalf("expected [set, sight], got %d: %+v", len(out), out)
	}
	if out[0].Kind != op.KindSet {
		t.Fatalf("expected first operation Set, got %v", out[0].Kind)
	}
	if out[1].Kind != op.KindSight {
		t.Fatalf("expected second operation Sight (broadcast of the state change), got %v", out[1].Kind)
	}
}

// TestHandleSetupBootSequence covers the Setup handler: it wakes the mind
// with a sub_to=mind Setup, looks at the surroundings, and schedules the
// first self-addressed Tick after basic_tick seconds (spec.md §4.5).
func TestHandleSetupBootSequence(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{BasicTick: 2 * time.Second})
	out := c.handleSetup(op.New(op.KindSetup, op.Arg{}))
	if len(out) != 3 {
		t.Fatalf("expected [setup(sub_to=mind), look, tick], got %+v", out)
	}
	if out[0].Kind != op.KindSetup || !out[0].SubTo("mind") {
		t.Fatalf("expected a sub_to=mind Setup first, got %+v", out[0])
	}
	if out[1].Kind != op.KindLook || out[1].To != "" {
		t.Fatalf("expected a world-scoped Look second, got %+v", out[1])
	}
	last := out[2]
	if last.Kind != op.KindTick || last.FutureSeconds != 2 {
		t.Fatalf("expected a Tick at basic_tick (2s), got %+v", last)
	}
}

// TestHandleSetupSubToMindIsBodyNoop covers the returning mind copy: a
// Setup already tagged sub_to must not re-run the boot sequence.
func TestHandleSetupSubToMindIsBodyNoop(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{BasicTick: 2 * time.Second})
	out := c.handleSetup(op.New(op.KindSetup, op.Arg{"sub_to": "mind"}))
	if out != nil {
		t.Fatalf("expected no body output for a sub_to-tagged Setup, got %+v", out)
	}
}

// TestHandleEatNourishesEater covers the Eat handler: being eaten produces
// a Set(status=-1) to self and a Nourish carrying this character's weight,
// addressed to the eater (the operation's From).
func TestHandleEatNourishesEater(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{})
	c.Weight = 42

	eat := op.New(op.KindEat, op.Arg{})
	eat.From = "wolf#1"
	out := c.handleEat(eat)

	if len(out) != 2 {
		t.Fatalf("expected [set, nourish], got %d: %+v", len(out), out)
	}
	if out[0].Kind != op.KindSet || out[0].To != c.StringID {
		t.Fatalf("expected a Set to self first, got %+v", out[0])
	}
	status, _ := out[0].FirstArg().Float("status")
	if status != -1 {
		t.Fatalf("expected status=-1 in the Set, got %v", status)
	}
	if out[1].Kind != op.KindNourish || out[1].To != "wolf#1" {
		t.Fatalf("expected a Nourish addressed to the eater, got %+v", out[1])
	}
	weight, _ := out[1].FirstArg().Float("weight")
	if weight != 42 {
		t.Fatalf("expected the nourish to carry the eaten weight, got %v", weight)
	}
}

// TestHandleNourishAddsFoodAndBroadcasts covers the Nourish handler: the
// delivered weight is added to food and the change is announced with a
// Sight-wrapped Set.
func TestHandleNourishAddsFoodAndBroadcasts(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{})
	c.Food = 1

	nourish := op.New(op.KindNourish, op.Arg{"weight": 3.0})
	out := c.handleNourish(nourish)

	if c.Food != 4 {
		t.Fatalf("expected food raised to 4, got %v", c.Food)
	}
	if len(out) != 1 || out[0].Kind != op.KindSight {
		t.Fatalf("expected a single Sight announcing the change, got %+v", out)
	}
}

func TestHandleNourishWithoutWeightIsNoop(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{})
	c.Food = 1
	out := c.handleNourish(op.New(op.KindNourish, op.Arg{}))
	if c.Food != 1 || out != nil {
		t.Fatalf("expected malformed nourish dropped, food=%v out=%+v", c.Food, out)
	}
}

// TestMetabolizeAndRescheduleFollowUpInterval covers the self-tick
// rescheduling cadence: a metabolism tick reschedules itself 30x basic_tick
// later (spec.md §4.5).
func TestMetabolizeAndRescheduleFollowUpInterval(t *testing.T) {
	c := newMetabolismCharacter(MetabolismParams{BasicTick: time.Second, FoodConsumption: 1})
	out := c.metabolizeAndReschedule()
	last := out[len(out)-1]
	if last.Kind != op.KindTick {
		t.Fatalf("expected the last operation to be the rescheduled Tick, got %v", last.Kind)
	}
	if last.FutureSeconds != 30 {
		t.Fatalf("expected reschedule at 30*basic_tick = 30s, got %v", last.FutureSeconds)
	}
}
