package gpio

import (
	"fmt"
	"sync"

	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/warthog618/gpiod"
)

// gpiodDriver is the production Driver, backed by the Linux GPIO
// character-device ABI via warthog618/gpiod. Grounded on
// original_source/plc_cpp's gpio_driver.h, which wraps the same
// chip/line/bulk-request model from libgpiod's C API; gpiod is the
// idiomatic pure-Go binding for that ABI (see DESIGN.md for why periph.io
// and the deprecated sysfs GPIO ABI were not chosen instead).
type gpiodDriver struct {
	chip *gpiod.Chip

	mu        sync.Mutex
	inputs    [image.NumInputs]*gpiod.Line
	outputs   [image.NumOutputs]*gpiod.Line
	enable    *gpiod.Line
	indicator *gpiod.Line

	enabled      bool
	indicatorVal bool
}

// Open requests the configured lines as inputs/outputs and returns a ready
// Driver. Output lines are requested with an initial value of 0, per spec
// §6.1.
func Open(cfg Config) (Driver, error) {
	chip, err := gpiod.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("gpio: open chip %s: %w", cfg.Chip, err)
	}

	d := &gpiodDriver{chip: chip}

	for i, offset := range cfg.InputLines {
		l, err := chip.RequestLine(offset, gpiod.AsInput)
		if err != nil {
			d.releaseAll()
			return nil, fmt.Errorf("gpio: request input line %d: %w", offset, err)
		}
		d.inputs[i] = l
	}

	for i, offset := range cfg.OutputLines {
		l, err := chip.RequestLine(offset, gpiod.AsOutput(0))
		if err != nil {
			d.releaseAll()
			return nil, fmt.Errorf("gpio: request output line %d: %w", offset, err)
		}
		d.outputs[i] = l
	}

	l, err := chip.RequestLine(cfg.EnableLine, gpiod.AsOutput(1))
	if err != nil {
		d.releaseAll()
		return nil, fmt.Errorf("gpio: request enable line %d: %w", cfg.EnableLine, err)
	}
	d.enable = l

	if cfg.IndicatorLine >= 0 {
		l, err := chip.RequestLine(cfg.IndicatorLine, gpiod.AsOutput(1))
		if err != nil {
			d.releaseAll()
			return nil, fmt.Errorf("gpio: request indicator line %d: %w", cfg.IndicatorLine, err)
		}
		d.indicator = l
		d.indicatorVal = true
	}

	return d, nil
}

func (d *gpiodDriver) ReadInput(i int) (bool, error) {
	if i < 0 || i >= image.NumInputs {
		return false, fmt.Errorf("gpio: input index %d out of range", i)
	}
	v, err := d.inputs[i].Value()
	if err != nil {
		return false, fmt.Errorf("gpio: read input %d: %w", i, err)
	}
	return v != 0, nil
}

func (d *gpiodDriver) ReadAllInputs() ([image.NumInputs]bool, error) {
	var out [image.NumInputs]bool
	for i := range out {
		v, err := d.ReadInput(i)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *gpiodDriver) WriteOutput(i int, v bool) error {
	if i < 0 || i >= image.NumOutputs {
		return fmt.Errorf("gpio: output index %d out of range", i)
	}
	val := 0
	if v {
		val = 1
	}
	if err := d.outputs[i].SetValue(val); err != nil {
		return fmt.Errorf("gpio: write output %d: %w", i, err)
	}
	return nil
}

func (d *gpiodDriver) WriteAllOutputs(v [image.NumOutputs]bool) error {
	for i, val := range v {
		if err := d.WriteOutput(i, val); err != nil {
			return err
		}
	}
	return nil
}

func (d *gpiodDriver) SetEnable(enabled bool) error {
	// Active-low: 0 enables, 1 disables (spec §6.1).
	val := 1
	if enabled {
		val = 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enable.SetValue(val); err != nil {
		return fmt.Errorf("gpio: set enable: %w", err)
	}
	d.enabled = enabled
	return nil
}

func (d *gpiodDriver) IsEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *gpiodDriver) HasIndicator() bool { return d.indicator != nil }

func (d *gpiodDriver) SetIndicator(v bool) error {
	if d.indicator == nil {
		return nil
	}
	val := 0
	if v {
		val = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.indicator.SetValue(val); err != nil {
		return fmt.Errorf("gpio: set indicator: %w", err)
	}
	d.indicatorVal = v
	return nil
}

func (d *gpiodDriver) ToggleIndicator() error {
	d.mu.Lock()
	next := !d.indicatorVal
	d.mu.Unlock()
	return d.SetIndicator(next)
}

func (d *gpiodDriver) EmergencyShutdown() error {
	var firstErr error
	for i := range d.outputs {
		if err := d.WriteOutput(i, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := d.SetEnable(false); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.SetIndicator(true); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (d *gpiodDriver) releaseAll() {
	for _, l := range d.inputs {
		if l != nil {
			l.Close()
		}
	}
	for _, l := range d.outputs {
		if l != nil {
			l.Close()
		}
	}
	if d.enable != nil {
		d.enable.Close()
	}
	if d.indicator != nil {
		d.indicator.Close()
	}
}

func (d *gpiodDriver) Close() error {
	d.releaseAll()
	return d.chip.Close()
}
