package config

import (
	"fmt"
	"log"

	"github.com/fenwick-automation/ladderd/internal/watcher"
)

// WatchUnified watches a unified config file and reloads the Store on every
// debounced change, logging and retaining the prior configuration on a
// failed reload (spec §4.3: "an invalid reload leaves prior config
// untouched").
func (s *Store) WatchUnified(path string, logger *log.Logger) (*watcher.Watcher, error) {
	w, err := watcher.New(logger)
	if err != nil {
		return nil, err
	}
	err = w.Watch(path, func(ev watcher.WatchEvent) {
		if ev.Type == watcher.EventDeleted {
			return
		}
		if err := s.ReloadUnified(path); err != nil {
			if logger != nil {
				logger.Printf("config: reload %s failed, keeping prior config: %v", path, err)
			}
			return
		}
		if logger != nil {
			logger.Printf("config: reloaded %s", path)
		}
	})
	if err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// WatchUserConfig watches whichever of unifiedPath/systemPath/userPath are
// non-empty and calls ReloadUserConfig on every debounced change to any of
// them (spec §6.4's reload_user_config: unified tried first, falling back
// to the split system+user files). At least one path must be non-empty.
func (s *Store) WatchUserConfig(unifiedPath, systemPath, userPath string, logger *log.Logger) (*watcher.Watcher, error) {
	w, err := watcher.New(logger)
	if err != nil {
		return nil, err
	}

	reload := func(ev watcher.WatchEvent) {
		if ev.Type == watcher.EventDeleted {
			return
		}
		if err := s.ReloadUserConfig(unifiedPath, systemPath, userPath); err != nil {
			if logger != nil {
				logger.Printf("config: reload failed, keeping prior config: %v", err)
			}
			return
		}
		if logger != nil {
			logger.Printf("config: reloaded %s", ev.Path)
		}
	}

	watched := false
	for _, p := range []string{unifiedPath, systemPath, userPath} {
		if p == "" {
			continue
		}
		if err := w.Watch(p, reload); err != nil {
			w.Close()
			return nil, err
		}
		watched = true
	}
	if !watched {
		w.Close()
		return nil, fmt.Errorf("config: no unified or split configuration path to watch")
	}
	return w, nil
}
