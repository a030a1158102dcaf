package ladder

import (
	"testing"

	"github.com/fenwick-automation/ladderd/internal/image"
)

type fakeTimers map[string]bool

func (f fakeTimers) Done(name string) bool { return f[name] }

type fakeCounters map[string]bool

func (f fakeCounters) Done(name string) bool { return f[name] }

func TestEvaluateOutputFollowsInput(t *testing.T) {
	img := image.New()
	rungs := []Rung{{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondInput, Index: 0, NormallyOpen: true}},
		Action:     Action{Kind: ActOutput, Index: 0},
	}}

	Evaluate(rungs, [image.NumInputs]bool{true, false, false}, img, nil, nil)
	if !img.Outputs[0].Load() {
		t.Fatalf("expected output 0 true")
	}

	Evaluate(rungs, [image.NumInputs]bool{false, false, false}, img, nil, nil)
	if img.Outputs[0].Load() {
		t.Fatalf("expected output 0 false after input drops")
	}
}

func TestEvaluateSetResetLatch(t *testing.T) {
	img := image.New()
	setRung := Rung{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondInput, Index: 0, NormallyOpen: true}},
		Action:     Action{Kind: ActSet, Index: 0},
	}
	resetRung := Rung{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondInput, Index: 1, NormallyOpen: true}},
		Action:     Action{Kind: ActReset, Index: 0},
	}

	Evaluate([]Rung{setRung, resetRung}, [image.NumInputs]bool{true, false, false}, img, nil, nil)
	if !img.Outputs[0].Load() {
		t.Fatalf("expected SET to latch output true")
	}

	// Rung condition now false: SET is a no-op, latch must hold.
	Evaluate([]Rung{setRung, resetRung}, [image.NumInputs]bool{false, false, false}, img, nil, nil)
	if !img.Outputs[0].Load() {
		t.Fatalf("expected latch to hold when SET condition goes false")
	}

	Evaluate([]Rung{setRung, resetRung}, [image.NumInputs]bool{false, true, false}, img, nil, nil)
	if img.Outputs[0].Load() {
		t.Fatalf("expected RESET to clear the latch")
	}
}

func TestEvaluateNormallyClosedInverts(t *testing.T) {
	img := image.New()
	rungs := []Rung{{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondInput, Index: 0, NormallyOpen: false}},
		Action:     Action{Kind: ActOutput, Index: 0},
	}}

	Evaluate(rungs, [image.NumInputs]bool{false, false, false}, img, nil, nil)
	if !img.Outputs[0].Load() {
		t.Fatalf("normally-closed contact should read true when input is false")
	}
}

func TestEvaluateConditionShortCircuitsOnFirstFalse(t *testing.T) {
	img := image.New()
	rungs := []Rung{{
		Enabled: true,
		Conditions: []Condition{
			{Kind: CondInput, Index: 0, NormallyOpen: true},
			{Kind: CondInput, Index: 1, NormallyOpen: true},
		},
		Action: Action{Kind: ActOutput, Index: 0},
	}}

	Evaluate(rungs, [image.NumInputs]bool{true, false, false}, img, nil, nil)
	if img.Outputs[0].Load() {
		t.Fatalf("AND chain should be false when any condition is false")
	}
}

func TestEvaluateDisabledRungIsSkipped(t *testing.T) {
	img := image.New()
	img.Outputs[0].Store(true)
	rungs := []Rung{{
		Enabled:    false,
		Conditions: []Condition{{Kind: CondInput, Index: 0, NormallyOpen: true}},
		Action:     Action{Kind: ActReset, Index: 0},
	}}

	Evaluate(rungs, [image.NumInputs]bool{true, false, false}, img, nil, nil)
	if !img.Outputs[0].Load() {
		t.Fatalf("disabled rung must not execute its action")
	}
}

func TestEvaluateMalformedConditionIsFalse(t *testing.T) {
	img := image.New()
	rungs := []Rung{{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondInput, Index: 99, NormallyOpen: true}},
		Action:     Action{Kind: ActOutput, Index: 0},
	}}

	Evaluate(rungs, [image.NumInputs]bool{true, true, true}, img, nil, nil)
	if img.Outputs[0].Load() {
		t.Fatalf("out-of-range condition should evaluate false, not panic or pass")
	}
}

func TestEvaluateYoloFlagOneBasedIndex(t *testing.T) {
	img := image.New()
	img.SetYoloFlag(0, true) // level 1

	rungs := []Rung{{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondYoloFlag, Index: 1, NormallyOpen: true}},
		Action:     Action{Kind: ActOutput, Index: 0},
	}}

	Evaluate(rungs, [image.NumInputs]bool{}, img, nil, nil)
	if !img.Outputs[0].Load() {
		t.Fatalf("YOLO_FLAG Y1 should read yolo_flags[0]")
	}
}

func TestEvaluateTimerActionPopulatesEnableSet(t *testing.T) {
	img := image.New()
	rungs := []Rung{{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondInput, Index: 0, NormallyOpen: true}},
		Action:     Action{Kind: ActTimer, RefName: "T1"},
	}}

	result := Evaluate(rungs, [image.NumInputs]bool{true, false, false}, img, nil, nil)
	if !result.TimerEnable["T1"] {
		t.Fatalf("expected T1 in the enable set")
	}
}

func TestEvaluateResetTimerOnlyFiresWhenRungTrue(t *testing.T) {
	img := image.New()
	rungs := []Rung{{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondInput, Index: 0, NormallyOpen: true}},
		Action:     Action{Kind: ActResetTimer, RefName: "T1"},
	}}

	result := Evaluate(rungs, [image.NumInputs]bool{false, false, false}, img, nil, nil)
	if len(result.ResetTimers) != 0 {
		t.Fatalf("RESET_TIMER must be a no-op on a false rung")
	}

	result = Evaluate(rungs, [image.NumInputs]bool{true, false, false}, img, nil, nil)
	if len(result.ResetTimers) != 1 || result.ResetTimers[0] != "T1" {
		t.Fatalf("expected T1 reset request, got %v", result.ResetTimers)
	}
}

func TestEvaluateOutputMirrorRangeNotWritableByMemoryActions(t *testing.T) {
	img := image.New()
	img.SetOutput(0, true) // Memory[46] mirrors Outputs[0]

	rungs := []Rung{{
		Enabled:    true,
		Conditions: []Condition{{Kind: CondInput, Index: 0, NormallyOpen: true}},
		Action:     Action{Kind: ActMemoryReset, Index: image.MemOutputMirrStart},
	}}

	Evaluate(rungs, [image.NumInputs]bool{true, false, false}, img, nil, nil)
	if !img.Memory[image.MemOutputMirrStart].Load() {
		t.Fatalf("a rung must not be able to clear the output mirror directly")
	}
}

func TestEvaluateMergeOrderIsDeclarationOrder(t *testing.T) {
	img := image.New()
	rungs := []Rung{
		{Enabled: true, Action: Action{Kind: ActReset, Index: 0}},
		{Enabled: true, Action: Action{Kind: ActSet, Index: 0}},
	}
	// Empty condition list means "always true"; rung 1 forces Outputs[0]
	// false, rung 2 then SETs it true, declaration order must mean rung 2
	// wins, not some alphabetic or stable-sort reordering.
	Evaluate(rungs, [image.NumInputs]bool{}, img, nil, nil)
	if !img.Outputs[0].Load() {
		t.Fatalf("expected later rung in declaration order to win")
	}
}
