// Package timer implements the on-delay timer state machine and bank from
// spec §3.4 and §4.2.
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/ladder"
)

// state is one timer's internal state machine, per spec §3.4.
type state struct {
	name    string
	alias   string
	preset  float64 // seconds
	running bool
	done    bool
	elapsed float64
	startTs time.Time
	doneTs  time.Time
}

// update advances one timer by one cycle given the cycle's enable signal
// and the current wall-clock time. Returns the public (running, done,
// elapsed) fields to project into the image.
func (s *state) update(enable bool, now time.Time) (running, done bool, elapsed float64) {
	switch {
	case enable && !s.running:
		s.running = true
		s.startTs = now
		s.done = false
		s.elapsed = 0

	case enable && s.running:
		s.elapsed = now.Sub(s.startTs).Seconds()
		if s.elapsed >= s.preset {
			s.done = true
			s.running = false
			s.doneTs = now
		}

	case !enable && !s.done:
		s.reset()

	case !enable && s.done:
		// Hold done=true for a further preset seconds from doneTs, then
		// reset (spec §9's confirmed pulse-stretch behavior).
		if now.Sub(s.doneTs).Seconds() >= s.preset {
			s.reset()
		}
	}
	return s.running, s.done, s.elapsed
}

func (s *state) reset() {
	s.running = false
	s.done = false
	s.elapsed = 0
	s.startTs = time.Time{}
	s.doneTs = time.Time{}
}

// Bank is a keyed collection of timer state machines, each also projected
// into a fixed process-image slot for external visibility.
type Bank struct {
	mu      sync.Mutex
	byName  map[string]*state
	slotOf  map[string]int
	order   []string // insertion order, for stable slot reuse on rebuild
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{
		byName: make(map[string]*state),
		slotOf: make(map[string]int),
	}
}

// Add registers a timer, assigning it the lowest free process-image slot.
// Fails if the name already exists or all NumTimers slots are in use.
func (b *Bank) Add(name string, preset float64, alias string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byName[name]; exists {
		return fmt.Errorf("timer: name %q already exists", name)
	}
	if len(b.order) >= image.NumTimers {
		return fmt.Errorf("timer: bank full (max %d)", image.NumTimers)
	}

	slot := len(b.order)
	b.byName[name] = &state{name: name, alias: alias, preset: preset}
	b.slotOf[name] = slot
	b.order = append(b.order, name)
	return nil
}

// Done reports the done bit for name, or false if name is unknown, used
// by the evaluator's TimerView borrow.
func (b *Bank) Done(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.byName[name]
	if !ok {
		return false
	}
	return s.done
}

// Update advances every timer using the previous cycle's enable set and
// writes each timer's public fields into its image slot (spec §4.2's
// ordering: the bank consumes the enable set computed by the *previous*
// cycle, producing a one-cycle deterministic delay).
func (b *Bank) Update(img *image.Image, now time.Time, enable map[string]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range b.order {
		s := b.byName[name]
		running, done, elapsed := s.update(enable[name], now)

		slot := &img.Timers[b.slotOf[name]]
		slot.Running.Store(running)
		slot.Done.Store(done)
		slot.SetElapsed(elapsed)
		slot.SetPreset(s.preset)
	}
}

// Sync discards the previous bank contents and rebuilds byName/slotOf/order
// from scratch against a freshly loaded timer configuration list (spec.md
// line 95: "a config reload that changes names discards the previous bank
// and rebuilds"). A name present in both the old and new config keeps its
// running state machine (running/done/elapsed survive the reload); a name
// absent from the new config is dropped entirely. Slots are reassigned
// densely in config list order, and any image slot beyond the new count is
// cleared so a shrinking reload doesn't leave stale published state behind.
func (b *Bank) Sync(img *image.Image, configs []ladder.TimerConfig) error {
	if len(configs) > image.NumTimers {
		return fmt.Errorf("timer: bank full (max %d)", image.NumTimers)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	byName := make(map[string]*state, len(configs))
	slotOf := make(map[string]int, len(configs))
	order := make([]string, 0, len(configs))

	for i, c := range configs {
		if _, dup := byName[c.Name]; dup {
			return fmt.Errorf("timer: duplicate name %q in config", c.Name)
		}
		s, ok := b.byName[c.Name]
		if !ok {
			s = &state{name: c.Name}
		}
		s.alias = c.Alias
		s.preset = c.PresetSeconds
		byName[c.Name] = s
		slotOf[c.Name] = i
		order = append(order, c.Name)
	}

	b.byName = byName
	b.slotOf = slotOf
	b.order = order

	if img != nil {
		for i := len(order); i < image.NumTimers; i++ {
			slot := &img.Timers[i]
			slot.Running.Store(false)
			slot.Done.Store(false)
			slot.SetElapsed(0)
			slot.SetPreset(0)
		}
	}
	return nil
}

// Reset resets a single named timer, if it exists.
func (b *Bank) Reset(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.byName[name]; ok {
		s.reset()
	}
}

// ResetAll resets every timer in the bank.
func (b *Bank) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.byName {
		s.reset()
	}
}

// Len returns the number of timers currently registered.
func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Names returns the registered timer names in slot order.
func (b *Bank) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}
