package vision

import (
	"context"
	"testing"
	"time"

	"github.com/fenwick-automation/ladderd/internal/image"
)

func TestSetFlagUpdatesMirror(t *testing.T) {
	img := image.New()
	m := New(img)

	if err := m.SetFlag(1, true); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}
	if !img.YoloFlags[0].Load() || !img.Memory[image.MemYoloStatusStart].Load() {
		t.Fatalf("expected level 1 to map to YoloFlags[0] and its memory mirror")
	}
}

func TestSetFlagRejectsOutOfRangeLevel(t *testing.T) {
	img := image.New()
	m := New(img)

	if err := m.SetFlag(0, true); err == nil {
		t.Fatalf("expected error for level 0")
	}
	if err := m.SetFlag(image.NumYolo+1, true); err == nil {
		t.Fatalf("expected error for level beyond NumYolo")
	}
}

func TestFlagsSnapshotOrder(t *testing.T) {
	img := image.New()
	m := New(img)
	m.SetFlag(1, true)
	m.SetFlag(3, true)

	flags := m.Flags()
	if !flags[0] || flags[1] || !flags[2] {
		t.Fatalf("unexpected flags snapshot: %+v", flags)
	}
}

func TestWaitReadyReturnsOnceSet(t *testing.T) {
	img := image.New()
	m := New(img)

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.SetReady()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
}

func TestWaitReadyRespectsContextCancellation(t *testing.T) {
	img := image.New()
	m := New(img)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.WaitReady(ctx); err == nil {
		t.Fatalf("expected WaitReady to return an error once the context is cancelled")
	}
}
