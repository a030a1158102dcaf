// Package watcher wraps fsnotify for the config hot-reload path
// (spec-extension §4.8): watch the active rung-list file(s) and call back
// into the config.Store's reload methods on change, debounced so a burst
// of writes from an editor or atomic-rename deploy collapses into one
// reload.
package watcher

import (
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType classifies a filesystem change.
type EventType string

const (
	EventCreated  EventType = "Created"
	EventModified EventType = "Modified"
	EventDeleted  EventType = "Deleted"
	EventRenamed  EventType = "Renamed"
)

// WatchEvent is one filtered fsnotify event handed to a Watch callback.
type WatchEvent struct {
	Type EventType
	Path string
}

// debounce is how long to wait after the last event on a path before
// firing its callback (spec-extension §4.8: "250 ms debounce").
const debounce = 250 * time.Millisecond

// Watcher wraps an fsnotify.Watcher, debouncing per-path bursts of events
// before invoking the registered callback.
type Watcher struct {
	fsw *fsnotify.Watcher
	log *log.Logger
}

// New returns a ready Watcher.
func New(logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, log: logger}, nil
}

// Watch adds path to the watch set and invokes callback at most once per
// debounce window after the last observed change to it.
func (w *Watcher) Watch(path string, callback func(WatchEvent)) error {
	if err := w.fsw.Add(path); err != nil {
		return err
	}

	go w.loop(path, callback)
	return nil
}

func (w *Watcher) loop(path string, callback func(WatchEvent)) {
	var timer *time.Timer
	var pending WatchEvent
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			var et EventType
			switch {
			case event.Has(fsnotify.Write):
				et = EventModified
			case event.Has(fsnotify.Create):
				et = EventCreated
			case event.Has(fsnotify.Remove):
				et = EventDeleted
			case event.Has(fsnotify.Rename):
				et = EventRenamed
			default:
				continue
			}
			pending = WatchEvent{Type: et, Path: event.Name}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			callback(pending)
			timerC = nil

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Printf("watcher: %v", err)
			}
		}
	}
}

// Close stops all watches.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
