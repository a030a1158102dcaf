package timer

import (
	"testing"
	"time"

	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/ladder"
)

func TestBankOnDelayTimerBasics(t *testing.T) {
	b := NewBank()
	if err := b.Add("T1", 1.0, ""); err != nil {
		t.Fatalf("Add: %v", err)
	}

	img := image.New()
	start := time.Now()

	b.Update(img, start, map[string]bool{"T1": true})
	if img.Timers[0].Done.Load() {
		t.Fatalf("timer should not be done immediately on enable")
	}
	if !img.Timers[0].Running.Load() {
		t.Fatalf("timer should be running once enabled")
	}

	b.Update(img, start.Add(1500*time.Millisecond), map[string]bool{"T1": true})
	if !img.Timers[0].Done.Load() {
		t.Fatalf("timer should be done once elapsed exceeds preset")
	}
}

func TestBankResetOnDisableBeforeDone(t *testing.T) {
	b := NewBank()
	b.Add("T1", 5.0, "")
	img := image.New()
	start := time.Now()

	b.Update(img, start, map[string]bool{"T1": true})
	b.Update(img, start.Add(1*time.Second), map[string]bool{"T1": false})

	if img.Timers[0].Running.Load() {
		t.Fatalf("timer should stop running once disabled before done")
	}
	if img.Timers[0].GetElapsed() != 0 {
		t.Fatalf("timer elapsed should reset to 0 on disable before done")
	}
}

func TestBankHoldsDoneForPulseStretchThenResets(t *testing.T) {
	b := NewBank()
	b.Add("T1", 1.0, "")
	img := image.New()
	start := time.Now()

	b.Update(img, start, map[string]bool{"T1": true})
	b.Update(img, start.Add(1100*time.Millisecond), map[string]bool{"T1": true})
	if !img.Timers[0].Done.Load() {
		t.Fatalf("expected done after preset elapsed")
	}

	// Disable immediately after done: done should hold for another preset
	// duration (the deliberate pulse-stretch behavior), not clear at once.
	doneTs := start.Add(1100 * time.Millisecond)
	b.Update(img, doneTs.Add(500*time.Millisecond), map[string]bool{"T1": false})
	if !img.Timers[0].Done.Load() {
		t.Fatalf("done bit should still be held mid pulse-stretch window")
	}

	b.Update(img, doneTs.Add(1200*time.Millisecond), map[string]bool{"T1": false})
	if img.Timers[0].Done.Load() {
		t.Fatalf("done bit should clear once the pulse-stretch window elapses")
	}
}

func TestBankDoneViewUnknownNameIsFalse(t *testing.T) {
	b := NewBank()
	if b.Done("nope") {
		t.Fatalf("unknown timer name should report not-done")
	}
}

func TestBankAddDuplicateNameFails(t *testing.T) {
	b := NewBank()
	b.Add("T1", 1.0, "")
	if err := b.Add("T1", 2.0, ""); err == nil {
		t.Fatalf("expected error on duplicate timer name")
	}
}

func TestBankFullRejectsBeyondCapacity(t *testing.T) {
	b := NewBank()
	for i := 0; i < image.NumTimers; i++ {
		if err := b.Add(string(rune('A'+i)), 1.0, ""); err != nil {
			t.Fatalf("unexpected error filling bank: %v", err)
		}
	}
	if err := b.Add("overflow", 1.0, ""); err == nil {
		t.Fatalf("expected error when bank is full")
	}
}

func TestBankSyncAddsNewAndUpdatesExisting(t *testing.T) {
	b := NewBank()
	b.Add("T1", 1.0, "")

	err := b.Sync(nil, []ladder.TimerConfig{{Name: "T1", PresetSeconds: 2.0}, {Name: "T2", PresetSeconds: 3.0}})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 timers after sync, got %d", b.Len())
	}
}

func TestBankSyncDiscardsNamesAbsentFromNewConfig(t *testing.T) {
	b := NewBank()
	b.Add("T1", 1.0, "")
	b.Add("T2", 2.0, "")
	img := image.New()

	if err := b.Sync(img, []ladder.TimerConfig{{Name: "T2", PresetSeconds: 5.0}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("expected T1 to be discarded, got %d timers", b.Len())
	}
	for _, name := range b.Names() {
		if name == "T1" {
			t.Fatalf("T1 should have been discarded by the rebuild")
		}
	}
	// The vacated slot (T1 was slot 0, T2 now occupies slot 0) must not
	// retain stale published state for any slot beyond the new count.
	if img.Timers[1].Done.Load() || img.Timers[1].Running.Load() {
		t.Fatalf("expected slot 1 cleared after the bank shrank to 1 timer")
	}
}

func TestBankSyncPreservesStateForSurvivingNames(t *testing.T) {
	b := NewBank()
	b.Add("T1", 1.0, "")
	img := image.New()
	start := time.Now()
	b.Update(img, start, map[string]bool{"T1": true})

	if err := b.Sync(img, []ladder.TimerConfig{{Name: "T1", PresetSeconds: 9.0}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	b.Update(img, start.Add(10*time.Millisecond), map[string]bool{"T1": true})
	if !img.Timers[0].Running.Load() {
		t.Fatalf("expected T1's running state to survive a sync that keeps its name")
	}
}
