// Package config implements the reload-safe configuration pipeline from
// spec §4.3: two rung lists (system, user) plus timer/counter definitions,
// merged into a single evaluation list, swappable atomically at rung-list
// granularity.
package config

// File is the unified-mode configuration file shape (spec §6.2): one file
// holding timers, counters and rungs together.
type File struct {
	Timers   []TimerEntry   `json:"timers"`
	Counters []CounterEntry `json:"counters"`
	Rungs    []RungEntry    `json:"rungs"`
}

// TimerEntry is one timer definition as read from JSON.
type TimerEntry struct {
	Name   string  `json:"name"`
	Preset float64 `json:"preset"`
	Alias  string  `json:"alias"`
}

// CounterEntry is one counter definition as read from JSON.
type CounterEntry struct {
	Name   string `json:"name"`
	Preset int32  `json:"preset"`
	Alias  string `json:"alias"`
}

// ConditionEntry is one contact as read from JSON. Exactly one of the
// pointer fields is populated, selected by Type (spec §6.2: "<field> is one
// of input, output, memory, timer, counter depending on type").
type ConditionEntry struct {
	Type         string  `json:"type"`
	NormallyOpen bool    `json:"normally_open"`
	Input        *string `json:"input,omitempty"`
	Output       *string `json:"output,omitempty"`
	Memory       *string `json:"memory,omitempty"`
	Timer        *string `json:"timer,omitempty"`
	Counter      *string `json:"counter,omitempty"`
	YoloFlag     *string `json:"yolo_flag,omitempty"`
}

// ActionEntry is one rung action as read from JSON.
type ActionEntry struct {
	Type    string  `json:"type"`
	Output  *string `json:"output,omitempty"`
	Memory  *string `json:"memory,omitempty"`
	Timer   *string `json:"timer,omitempty"`
	Counter *string `json:"counter,omitempty"`
}

// RungEntry is one rung as read from JSON.
type RungEntry struct {
	ID         string           `json:"id"`
	Enabled    bool             `json:"enabled"`
	Conditions []ConditionEntry `json:"conditions"`
	Action     ActionEntry      `json:"action"`
}

// SystemFile is the split-mode system file: rungs only (spec §6.2).
type SystemFile struct {
	Rungs []RungEntry `json:"rungs"`
}

// UserFile is the split-mode user file: timers, counters and rungs.
type UserFile struct {
	Timers   []TimerEntry   `json:"timers"`
	Counters []CounterEntry `json:"counters"`
	Rungs    []RungEntry    `json:"rungs"`
}
