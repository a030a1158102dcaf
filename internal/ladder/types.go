// Package ladder implements the ladder-logic condition/action model and the
// per-cycle evaluator described in spec §3.3, §3.4 and §4.1.
//
// Condition and Action are small tagged variants, not polymorphic objects:
// the evaluator's per-cycle cost is dominated by the dispatch loop over
// rungs, and a flat variant keeps that loop a single type switch instead of
// a virtual call per condition.
package ladder

// ConditionKind tags what a Condition reads.
type ConditionKind string

const (
	CondInput     ConditionKind = "INPUT"
	CondOutput    ConditionKind = "OUTPUT"
	CondMemory    ConditionKind = "MEMORY"
	CondTimer     ConditionKind = "TIMER"
	CondCounter   ConditionKind = "COUNTER"
	CondYoloFlag  ConditionKind = "YOLO_FLAG"
)

// ActionKind tags what a Action does.
type ActionKind string

const (
	ActOutput       ActionKind = "OUTPUT"
	ActSet          ActionKind = "SET"
	ActReset        ActionKind = "RESET"
	ActMemorySet    ActionKind = "MEMORY_SET"
	ActMemoryReset  ActionKind = "MEMORY_RESET"
	ActTimer        ActionKind = "TIMER"
	ActCounter      ActionKind = "COUNTER"
	ActResetTimer   ActionKind = "RESET_TIMER"
	ActResetCounter ActionKind = "RESET_COUNTER"
)

// Condition is one contact in a rung's condition chain. Name carries the
// raw symbolic handle (I0, Q3, M12, T_name, C_name, Y2) for diagnostics;
// Index is the pre-resolved numeric index for I/Q/M/Y kinds, resolved once
// at config-load time rather than re-parsed every cycle: zero-based for
// I/Q/M, one-based as written for Y (Y1 is Index 1; the evaluator maps it
// to YoloFlags[0]) (spec §9's
// dynamic-name-resolution note). RefName holds the timer/counter name for
// TIMER/COUNTER conditions, where there is no fixed slot to pre-resolve to.
type Condition struct {
	Kind         ConditionKind
	Name         string
	Index        int
	RefName      string
	NormallyOpen bool
}

// Action is the single action a rung performs. Same pre-resolution scheme
// as Condition.
type Action struct {
	Kind    ActionKind
	Name    string
	Index   int
	RefName string
}

// Source marks which rung list a Rung came from, system rungs evaluate
// before user rungs (spec §4.1 "Merge order").
type Source string

const (
	SourceSystem Source = "system"
	SourceUser   Source = "user"
)

// Rung is a single conditions-to-action row of ladder logic.
type Rung struct {
	ID         string
	Enabled    bool
	Conditions []Condition
	Action     Action
	Source     Source
}

// TimerConfig names a timer usable by TIMER/RESET_TIMER conditions/actions.
type TimerConfig struct {
	Name          string
	PresetSeconds float64
	Alias         string
}

// CounterConfig names a counter usable by COUNTER/RESET_COUNTER conditions/actions.
type CounterConfig struct {
	Name        string
	PresetCount int32
	Alias       string
}
