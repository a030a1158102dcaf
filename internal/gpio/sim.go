package gpio

import (
	"sync"

	"github.com/fenwick-automation/ladderd/internal/image"
)

// Sim is an in-memory Driver standing in for real hardware, constructed
// directly by package tests. It never touches /dev/gpiochipN.
type Sim struct {
	mu        sync.Mutex
	inputs    [image.NumInputs]bool
	outputs   [image.NumOutputs]bool
	enabled   bool
	indicator bool
	hasInd    bool
}

// NewSim returns a Sim driver. hasIndicator mirrors whether the simulated
// board wires up an indicator line.
func NewSim(hasIndicator bool) *Sim {
	return &Sim{indicator: true, hasInd: hasIndicator}
}

// SetInput lets a test drive a simulated input line.
func (s *Sim) SetInput(i int, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < image.NumInputs {
		s.inputs[i] = v
	}
}

func (s *Sim) ReadInput(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= image.NumInputs {
		return false, errOutOfRange("input", i)
	}
	return s.inputs[i], nil
}

func (s *Sim) ReadAllInputs() ([image.NumInputs]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs, nil
}

func (s *Sim) WriteOutput(i int, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= image.NumOutputs {
		return errOutOfRange("output", i)
	}
	s.outputs[i] = v
	return nil
}

// Outputs returns a snapshot of the simulated output lines, for assertions.
func (s *Sim) Outputs() [image.NumOutputs]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs
}

func (s *Sim) WriteAllOutputs(v [image.NumOutputs]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = v
	return nil
}

func (s *Sim) SetEnable(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return nil
}

func (s *Sim) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Sim) HasIndicator() bool { return s.hasInd }

func (s *Sim) SetIndicator(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicator = v
	return nil
}

func (s *Sim) ToggleIndicator() error {
	s.mu.Lock()
	next := !s.indicator
	s.mu.Unlock()
	return s.SetIndicator(next)
}

func (s *Sim) EmergencyShutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outputs {
		s.outputs[i] = false
	}
	s.enabled = false
	s.indicator = true
	return nil
}

func (s *Sim) Close() error { return nil }

func errOutOfRange(kind string, i int) error {
	return &outOfRangeError{kind: kind, index: i}
}

type outOfRangeError struct {
	kind  string
	index int
}

func (e *outOfRangeError) Error() string {
	return "gpio: " + e.kind + " index out of range"
}
