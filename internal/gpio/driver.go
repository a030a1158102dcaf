// Package gpio is the consumed GPIO line driver from spec §6.1: bit-level
// read/write of named lines on a single Linux GPIO chip character device.
package gpio

import "github.com/fenwick-automation/ladderd/internal/image"

// Config names the chip and line offsets to request. EnableLine is
// active-low (spec §6.1): 0 enables downstream peripherals, 1 disables
// them. IndicatorLine is optional; a negative offset disables it.
type Config struct {
	Chip          string
	InputLines    [image.NumInputs]int
	OutputLines   [image.NumOutputs]int
	EnableLine    int
	IndicatorLine int // -1 if absent
}

// Driver is the interface the scan loop, Modbus front-end, and emergency
// paths use to talk to physical I/O. It is consumed, not specified by this
// system, §1 lists the GPIO line driver as an external collaborator, but
// a complete rewrite needs a concrete adapter, provided in gpiod_driver.go.
type Driver interface {
	ReadInput(i int) (bool, error)
	ReadAllInputs() ([image.NumInputs]bool, error)
	WriteOutput(i int, v bool) error
	WriteAllOutputs(v [image.NumOutputs]bool) error

	SetEnable(enabled bool) error
	IsEnabled() bool

	HasIndicator() bool
	SetIndicator(v bool) error
	ToggleIndicator() error

	// EmergencyShutdown drives all outputs to 0, the enable line to 1
	// (disabled), and the indicator to 1 (safe/idle), spec §6.1.
	EmergencyShutdown() error

	Close() error
}
