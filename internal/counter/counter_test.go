package counter

import (
	"testing"

	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/ladder"
)

func TestBankCountsRisingEdgesOnly(t *testing.T) {
	b := NewBank()
	b.Add("C1", 3, "")
	img := image.New()

	b.Update(img, map[string]bool{"C1": true})
	b.Update(img, map[string]bool{"C1": true}) // held high, no new edge
	if img.Counters[0].Count.Load() != 1 {
		t.Fatalf("expected count 1 after one rising edge, got %d", img.Counters[0].Count.Load())
	}

	b.Update(img, map[string]bool{"C1": false})
	b.Update(img, map[string]bool{"C1": true})
	if img.Counters[0].Count.Load() != 2 {
		t.Fatalf("expected count 2 after second rising edge, got %d", img.Counters[0].Count.Load())
	}
}

func TestBankDoneAtPreset(t *testing.T) {
	b := NewBank()
	b.Add("C1", 2, "")
	img := image.New()

	b.Update(img, map[string]bool{"C1": true})
	b.Update(img, map[string]bool{"C1": false})
	if img.Counters[0].Done.Load() {
		t.Fatalf("should not be done before preset reached")
	}
	b.Update(img, map[string]bool{"C1": true})
	if !img.Counters[0].Done.Load() {
		t.Fatalf("should be done once count reaches preset")
	}
}

func TestBankResetClearsCountAndDone(t *testing.T) {
	b := NewBank()
	b.Add("C1", 1, "")
	img := image.New()

	b.Update(img, map[string]bool{"C1": true})
	b.Reset("C1")
	b.Update(img, map[string]bool{"C1": false})
	if img.Counters[0].Count.Load() != 0 || img.Counters[0].Done.Load() {
		t.Fatalf("expected count and done cleared after reset")
	}
}

func TestBankSync(t *testing.T) {
	b := NewBank()
	b.Add("C1", 1, "")
	if err := b.Sync(nil, []ladder.CounterConfig{{Name: "C1", PresetCount: 5}, {Name: "C2", PresetCount: 2}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 counters, got %d", b.Len())
	}
}

func TestBankSyncDiscardsNamesAbsentFromNewConfig(t *testing.T) {
	b := NewBank()
	b.Add("C1", 1, "")
	b.Add("C2", 2, "")
	img := image.New()

	if err := b.Sync(img, []ladder.CounterConfig{{Name: "C2", PresetCount: 5}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("expected C1 to be discarded, got %d counters", b.Len())
	}
	for _, name := range b.Names() {
		if name == "C1" {
			t.Fatalf("C1 should have been discarded by the rebuild")
		}
	}
	if img.Counters[1].Count.Load() != 0 || img.Counters[1].Done.Load() {
		t.Fatalf("expected slot 1 cleared after the bank shrank to 1 counter")
	}
}

func TestBankSyncPreservesStateForSurvivingNames(t *testing.T) {
	b := NewBank()
	b.Add("C1", 5, "")
	img := image.New()
	b.Update(img, map[string]bool{"C1": true})

	if err := b.Sync(img, []ladder.CounterConfig{{Name: "C1", PresetCount: 9}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	b.Update(img, map[string]bool{"C1": false})
	b.Update(img, map[string]bool{"C1": true})
	if img.Counters[0].Count.Load() != 2 {
		t.Fatalf("expected C1's accumulated count to survive a sync that keeps its name, got %d", img.Counters[0].Count.Load())
	}
}
