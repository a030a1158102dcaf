package ladder

import "github.com/fenwick-automation/ladderd/internal/image"

// TimerView is the evaluator's read-only borrow of the timer bank. The
// evaluator never mutates timer state directly, it only reads Done bits
// and accumulates an enable set that the scan loop feeds to the bank's
// Update on the *next* cycle (spec §9's cyclic-reference note: the
// evaluator takes immutable borrows for reads, the scan loop holds the
// mutable handle for updates).
type TimerView interface {
	Done(name string) bool
}

// CounterView is the analogous read-only borrow of the counter bank.
type CounterView interface {
	Done(name string) bool
}

// CycleResult is what one evaluation pass produces: the next cycle's
// timer-enable and counter-trigger sets. Presence in the set means "a rung
// asserted this name true at least once during the cycle"; absence means
// false. This matches spec §4.1's action-dispatch table, where a false
// rung is a no-op (it never clears a name another rung already asserted
// true this cycle) rather than an explicit "disable".
type CycleResult struct {
	TimerEnable    map[string]bool
	CounterTrigger map[string]bool
	ResetTimers    []string
	ResetCounters  []string
}

// Evaluate runs one cycle of the merged rung list against the given input
// snapshot and process image. It is a pure function of its arguments plus
// the image's current Outputs/Memory/YoloFlags cells: evaluation never
// touches GPIO, never fails, and a malformed condition or action (unknown
// kind, out-of-range index, unparseable name) is treated as a no-op for
// that item (spec §4.1 "Failure semantics").
func Evaluate(rungs []Rung, inputs [image.NumInputs]bool, img *image.Image, timers TimerView, counters CounterView) CycleResult {
	result := CycleResult{
		TimerEnable:    make(map[string]bool),
		CounterTrigger: make(map[string]bool),
	}

	for _, rung := range rungs {
		if !rung.Enabled {
			continue
		}
		ok := evaluateConditions(rung.Conditions, inputs, img, timers, counters)
		executeAction(rung.Action, img, ok, &result)
	}

	return result
}

// evaluateConditions ANDs conditions in declaration order, short-circuiting
// on the first false. An empty list yields true. Order is authoritative; no
// stable sort is assumed or permitted (spec §4.1).
func evaluateConditions(conds []Condition, inputs [image.NumInputs]bool, img *image.Image, timers TimerView, counters CounterView) bool {
	for _, c := range conds {
		if !evaluateCondition(c, inputs, img, timers, counters) {
			return false
		}
	}
	return true
}

func evaluateCondition(c Condition, inputs [image.NumInputs]bool, img *image.Image, timers TimerView, counters CounterView) bool {
	var raw bool
	switch c.Kind {
	case CondInput:
		if c.Index < 0 || c.Index >= image.NumInputs {
			raw = false
		} else {
			raw = inputs[c.Index]
		}
	case CondOutput:
		if c.Index < 0 || c.Index >= image.NumOutputs {
			raw = false
		} else {
			raw = img.Outputs[c.Index].Load()
		}
	case CondMemory:
		if c.Index < 0 || c.Index >= image.NumMemory {
			raw = false
		} else {
			raw = img.Memory[c.Index].Load()
		}
	case CondTimer:
		raw = timers != nil && timers.Done(c.RefName)
	case CondCounter:
		raw = counters != nil && counters.Done(c.RefName)
	case CondYoloFlag:
		// one-based input (Y1..Y10), zero-based storage.
		idx := c.Index - 1
		if idx < 0 || idx >= image.NumYolo {
			raw = false
		} else {
			raw = img.YoloFlags[idx].Load()
		}
	default:
		raw = false
	}

	if c.NormallyOpen {
		return raw
	}
	return !raw
}

// memoryWritable reports whether a memory cell may be written by the
// evaluator. Memory[46..51] are output mirrors, overwritten after the
// evaluator runs, and writes to them from a rung are ignored (spec §4.1).
func memoryWritable(idx int) bool {
	return idx >= 0 && idx < image.NumMemory &&
		!(idx >= image.MemOutputMirrStart && idx <= image.MemOutputMirrEnd)
}

func executeAction(a Action, img *image.Image, rungTrue bool, result *CycleResult) {
	switch a.Kind {
	case ActOutput:
		if a.Index < 0 || a.Index >= image.NumOutputs {
			return
		}
		img.Outputs[a.Index].Store(rungTrue)

	case ActSet:
		if !rungTrue || a.Index < 0 || a.Index >= image.NumOutputs {
			return
		}
		img.Outputs[a.Index].Store(true)

	case ActReset:
		if !rungTrue || a.Index < 0 || a.Index >= image.NumOutputs {
			return
		}
		img.Outputs[a.Index].Store(false)

	case ActMemorySet:
		if !rungTrue || !memoryWritable(a.Index) {
			return
		}
		img.Memory[a.Index].Store(true)
		refreshYoloMirror(img, a.Index, true)

	case ActMemoryReset:
		if !rungTrue || !memoryWritable(a.Index) {
			return
		}
		img.Memory[a.Index].Store(false)
		refreshYoloMirror(img, a.Index, false)

	case ActTimer:
		if rungTrue && a.RefName != "" {
			result.TimerEnable[a.RefName] = true
		}

	case ActCounter:
		if rungTrue && a.RefName != "" {
			result.CounterTrigger[a.RefName] = true
		}

	case ActResetTimer:
		// "Unconditionally" refers to the reset itself ignoring the
		// timer's current state, not to the rung: RESET_TIMER is still
		// a no-op on a false rung (spec §4.1's action table).
		if rungTrue && a.RefName != "" {
			result.ResetTimers = append(result.ResetTimers, a.RefName)
		}

	case ActResetCounter:
		if rungTrue && a.RefName != "" {
			result.ResetCounters = append(result.ResetCounters, a.RefName)
		}
	}
}

// refreshYoloMirror keeps Memory[40..45] and YoloFlags[0..5] mutually
// consistent when a MEMORY_SET/MEMORY_RESET action targets that range
// directly (spec §3.2: "writes to either route must refresh both").
func refreshYoloMirror(img *image.Image, memIdx int, v bool) {
	if memIdx < image.MemYoloStatusStart || memIdx > image.MemYoloStatusEnd {
		return
	}
	img.YoloFlags[memIdx-image.MemYoloStatusStart].Store(v)
}
