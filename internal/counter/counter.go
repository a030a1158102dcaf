// Package counter implements the up-counter-with-edge-detect state machine
// and bank from spec §3.4 and §4.2.
package counter

import (
	"fmt"
	"sync"

	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/ladder"
)

type state struct {
	name       string
	alias      string
	preset     int32
	done       bool
	count      int32
	lastSignal bool
}

// update advances one counter by one cycle given the cycle's trigger
// signal, per spec §3.4.
func (s *state) update(signal bool) (done bool, count int32) {
	if signal && !s.lastSignal {
		s.count++
		if s.count >= s.preset {
			s.done = true
		}
	}
	s.lastSignal = signal
	return s.done, s.count
}

func (s *state) reset() {
	s.count = 0
	s.done = false
	s.lastSignal = false
}

// Bank is a keyed collection of counter state machines, each also projected
// into a fixed process-image slot for external visibility.
type Bank struct {
	mu     sync.Mutex
	byName map[string]*state
	slotOf map[string]int
	order  []string
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{
		byName: make(map[string]*state),
		slotOf: make(map[string]int),
	}
}

// Add registers a counter, assigning it the lowest free process-image slot.
func (b *Bank) Add(name string, preset int32, alias string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byName[name]; exists {
		return fmt.Errorf("counter: name %q already exists", name)
	}
	if len(b.order) >= image.NumCounters {
		return fmt.Errorf("counter: bank full (max %d)", image.NumCounters)
	}

	slot := len(b.order)
	b.byName[name] = &state{name: name, alias: alias, preset: preset}
	b.slotOf[name] = slot
	b.order = append(b.order, name)
	return nil
}

// Done reports the done bit for name, or false if name is unknown.
func (b *Bank) Done(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.byName[name]
	if !ok {
		return false
	}
	return s.done
}

// Update advances every counter using the previous cycle's trigger set and
// writes each counter's public fields into its image slot.
func (b *Bank) Update(img *image.Image, trigger map[string]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range b.order {
		s := b.byName[name]
		done, count := s.update(trigger[name])

		slot := &img.Counters[b.slotOf[name]]
		slot.Done.Store(done)
		slot.Count.Store(count)
		slot.Preset.Store(s.preset)
	}
}

// Sync discards the previous bank contents and rebuilds byName/slotOf/order
// from scratch against a freshly loaded counter configuration list,
// mirroring timer.Bank's Sync (spec.md line 95: "a config reload that
// changes names discards the previous bank and rebuilds"). A name present
// in both the old and new config keeps its running count/done state; a name
// absent from the new config is dropped entirely. Slots are reassigned
// densely in config list order, and any image slot beyond the new count is
// cleared so a shrinking reload doesn't leave stale published state behind.
func (b *Bank) Sync(img *image.Image, configs []ladder.CounterConfig) error {
	if len(configs) > image.NumCounters {
		return fmt.Errorf("counter: bank full (max %d)", image.NumCounters)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	byName := make(map[string]*state, len(configs))
	slotOf := make(map[string]int, len(configs))
	order := make([]string, 0, len(configs))

	for i, c := range configs {
		if _, dup := byName[c.Name]; dup {
			return fmt.Errorf("counter: duplicate name %q in config", c.Name)
		}
		s, ok := b.byName[c.Name]
		if !ok {
			s = &state{name: c.Name}
		}
		s.alias = c.Alias
		s.preset = c.PresetCount
		byName[c.Name] = s
		slotOf[c.Name] = i
		order = append(order, c.Name)
	}

	b.byName = byName
	b.slotOf = slotOf
	b.order = order

	if img != nil {
		for i := len(order); i < image.NumCounters; i++ {
			slot := &img.Counters[i]
			slot.Done.Store(false)
			slot.Count.Store(0)
			slot.Preset.Store(0)
		}
	}
	return nil
}

// Reset resets a single named counter, if it exists.
func (b *Bank) Reset(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.byName[name]; ok {
		s.reset()
	}
}

// ResetAll resets every counter in the bank.
func (b *Bank) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.byName {
		s.reset()
	}
}

// Len returns the number of counters currently registered.
func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Names returns the registered counter names in slot order.
func (b *Bank) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}
