package config

import (
	"fmt"
	"strconv"

	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/ladder"
)

// parseHandle splits a symbolic handle like "I0", "Q3", "M12", "Y2" into its
// letter prefix and decimal index. Pre-resolving this at load time avoids
// re-parsing names every cycle (spec §9's dynamic-name-resolution note).
func parseHandle(want byte, s string) (int, error) {
	if len(s) < 2 || s[0] != want {
		return 0, fmt.Errorf("handle %q: expected prefix %q", s, want)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, fmt.Errorf("handle %q: bad index: %w", s, err)
	}
	return n, nil
}

func resolveCondition(e ConditionEntry) (ladder.Condition, error) {
	c := ladder.Condition{NormallyOpen: e.NormallyOpen}

	switch e.Type {
	case "input":
		if e.Input == nil {
			return c, fmt.Errorf("condition type input: missing input field")
		}
		idx, err := parseHandle('I', *e.Input)
		if err != nil {
			return c, err
		}
		c.Kind = ladder.CondInput
		c.Name = *e.Input
		c.Index = idx

	case "output":
		if e.Output == nil {
			return c, fmt.Errorf("condition type output: missing output field")
		}
		idx, err := parseHandle('Q', *e.Output)
		if err != nil {
			return c, err
		}
		c.Kind = ladder.CondOutput
		c.Name = *e.Output
		c.Index = idx

	case "memory":
		if e.Memory == nil {
			return c, fmt.Errorf("condition type memory: missing memory field")
		}
		idx, err := parseHandle('M', *e.Memory)
		if err != nil {
			return c, err
		}
		c.Kind = ladder.CondMemory
		c.Name = *e.Memory
		c.Index = idx

	case "timer":
		if e.Timer == nil {
			return c, fmt.Errorf("condition type timer: missing timer field")
		}
		c.Kind = ladder.CondTimer
		c.Name = "T_" + *e.Timer
		c.RefName = *e.Timer

	case "counter":
		if e.Counter == nil {
			return c, fmt.Errorf("condition type counter: missing counter field")
		}
		c.Kind = ladder.CondCounter
		c.Name = "C_" + *e.Counter
		c.RefName = *e.Counter

	case "yolo_flag":
		if e.YoloFlag == nil {
			return c, fmt.Errorf("condition type yolo_flag: missing yolo_flag field")
		}
		idx, err := parseHandle('Y', *e.YoloFlag)
		if err != nil {
			return c, err
		}
		c.Kind = ladder.CondYoloFlag
		c.Name = *e.YoloFlag
		c.Index = idx

	default:
		return c, fmt.Errorf("unknown condition type %q", e.Type)
	}

	return c, nil
}

func resolveAction(e ActionEntry) (ladder.Action, error) {
	a := ladder.Action{}

	switch e.Type {
	case "output", "set", "reset", "OUTPUT", "SET", "RESET":
		if e.Output == nil {
			return a, fmt.Errorf("action type %s: missing output field", e.Type)
		}
		idx, err := parseHandle('Q', *e.Output)
		if err != nil {
			return a, err
		}
		a.Name = *e.Output
		a.Index = idx
		switch e.Type {
		case "set", "SET":
			a.Kind = ladder.ActSet
		case "reset", "RESET":
			a.Kind = ladder.ActReset
		default:
			a.Kind = ladder.ActOutput
		}

	case "memory_set", "MEMORY_SET", "memory_reset", "MEMORY_RESET":
		if e.Memory == nil {
			return a, fmt.Errorf("action type %s: missing memory field", e.Type)
		}
		idx, err := parseHandle('M', *e.Memory)
		if err != nil {
			return a, err
		}
		a.Name = *e.Memory
		a.Index = idx
		if e.Type == "memory_set" || e.Type == "MEMORY_SET" {
			a.Kind = ladder.ActMemorySet
		} else {
			a.Kind = ladder.ActMemoryReset
		}

	case "timer", "TIMER":
		if e.Timer == nil {
			return a, fmt.Errorf("action type timer: missing timer field")
		}
		a.Kind = ladder.ActTimer
		a.Name = "T_" + *e.Timer
		a.RefName = *e.Timer

	case "reset_timer", "RESET_TIMER":
		if e.Timer == nil {
			return a, fmt.Errorf("action type reset_timer: missing timer field")
		}
		a.Kind = ladder.ActResetTimer
		a.Name = "T_" + *e.Timer
		a.RefName = *e.Timer

	case "counter", "COUNTER":
		if e.Counter == nil {
			return a, fmt.Errorf("action type counter: missing counter field")
		}
		a.Kind = ladder.ActCounter
		a.Name = "C_" + *e.Counter
		a.RefName = *e.Counter

	case "reset_counter", "RESET_COUNTER":
		if e.Counter == nil {
			return a, fmt.Errorf("action type reset_counter: missing counter field")
		}
		a.Kind = ladder.ActResetCounter
		a.Name = "C_" + *e.Counter
		a.RefName = *e.Counter

	default:
		return a, fmt.Errorf("unknown action type %q", e.Type)
	}

	return a, nil
}

func resolveRung(e RungEntry, source ladder.Source) (ladder.Rung, error) {
	r := ladder.Rung{
		ID:      e.ID,
		Enabled: e.Enabled,
		Source:  source,
	}

	r.Conditions = make([]ladder.Condition, 0, len(e.Conditions))
	for _, ce := range e.Conditions {
		c, err := resolveCondition(ce)
		if err != nil {
			return r, fmt.Errorf("rung %s: %w", e.ID, err)
		}
		r.Conditions = append(r.Conditions, c)
	}

	act, err := resolveAction(e.Action)
	if err != nil {
		return r, fmt.Errorf("rung %s: %w", e.ID, err)
	}
	r.Action = act

	return r, nil
}

func resolveTimers(entries []TimerEntry) []ladder.TimerConfig {
	out := make([]ladder.TimerConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, ladder.TimerConfig{Name: e.Name, PresetSeconds: e.Preset, Alias: e.Alias})
	}
	return out
}

func resolveCounters(entries []CounterEntry) []ladder.CounterConfig {
	out := make([]ladder.CounterConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, ladder.CounterConfig{Name: e.Name, PresetCount: e.Preset, Alias: e.Alias})
	}
	return out
}

// validateRungs enforces spec §3.3 invariant 1: every TIMER/COUNTER
// condition and every TIMER/RESET_TIMER/COUNTER/RESET_COUNTER action must
// reference a name present in the timer/counter config lists.
func validateRungs(rungs []ladder.Rung, timers []ladder.TimerConfig, counters []ladder.CounterConfig) error {
	timerNames := make(map[string]bool, len(timers))
	for _, t := range timers {
		timerNames[t.Name] = true
	}
	if len(timers) > image.NumTimers {
		return fmt.Errorf("too many timers: %d > max %d", len(timers), image.NumTimers)
	}
	counterNames := make(map[string]bool, len(counters))
	for _, c := range counters {
		counterNames[c.Name] = true
	}
	if len(counters) > image.NumCounters {
		return fmt.Errorf("too many counters: %d > max %d", len(counters), image.NumCounters)
	}

	for _, r := range rungs {
		for _, c := range r.Conditions {
			if c.Kind == ladder.CondTimer && !timerNames[c.RefName] {
				return fmt.Errorf("rung %s: condition references unknown timer %q", r.ID, c.RefName)
			}
			if c.Kind == ladder.CondCounter && !counterNames[c.RefName] {
				return fmt.Errorf("rung %s: condition references unknown counter %q", r.ID, c.RefName)
			}
		}
		switch r.Action.Kind {
		case ladder.ActTimer, ladder.ActResetTimer:
			if !timerNames[r.Action.RefName] {
				return fmt.Errorf("rung %s: action references unknown timer %q", r.ID, r.Action.RefName)
			}
		case ladder.ActCounter, ladder.ActResetCounter:
			if !counterNames[r.Action.RefName] {
				return fmt.Errorf("rung %s: action references unknown counter %q", r.ID, r.Action.RefName)
			}
		}
	}
	return nil
}
