package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchDebouncesBurstIntoOneCallback(t *testing.T) {
	w, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write initial file: %v", err)
	}

	events := make(chan WatchEvent, 10)
	if err := w.Watch(path, func(e WatchEvent) { events <- e }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Burst of writes within the debounce window must collapse to one event.
	for i := 0; i < 5; i++ {
		os.WriteFile(path, []byte("{}"), 0o644)
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatalf("expected a debounced callback after the write burst")
	}

	select {
	case <-events:
		t.Fatalf("expected exactly one callback for the whole burst")
	case <-time.After(500 * time.Millisecond):
	}
}
