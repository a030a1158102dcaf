package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validUnified = `{
  "timers": [{"name": "T1", "preset": 1.5}],
  "counters": [{"name": "C1", "preset": 3}],
  "rungs": [
    {
      "id": "r1",
      "enabled": true,
      "conditions": [{"type": "input", "input": "I0", "normally_open": true}],
      "action": {"type": "output", "output": "Q0"}
    }
  ]
}`

const invalidUnified = `{
  "rungs": [
    {
      "id": "bad",
      "enabled": true,
      "conditions": [{"type": "timer", "timer": "T_UNDECLARED"}],
      "action": {"type": "output", "output": "Q0"}
    }
  ]
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadUnifiedSuccess(t *testing.T) {
	s := NewStore()
	path := writeTemp(t, "config.json", validUnified)
	if err := s.LoadUnified(path); err != nil {
		t.Fatalf("LoadUnified: %v", err)
	}
	if len(s.Merged()) != 1 {
		t.Fatalf("expected 1 rung, got %d", len(s.Merged()))
	}
	if len(s.Timers()) != 1 || len(s.Counters()) != 1 {
		t.Fatalf("expected 1 timer and 1 counter")
	}
}

func TestLoadUnifiedRejectsUndeclaredTimerReference(t *testing.T) {
	s := NewStore()
	path := writeTemp(t, "config.json", invalidUnified)
	if err := s.LoadUnified(path); err == nil {
		t.Fatalf("expected validation error for undeclared timer reference")
	}
}

func TestFailedReloadKeepsPriorConfig(t *testing.T) {
	s := NewStore()
	goodPath := writeTemp(t, "good.json", validUnified)
	if err := s.LoadUnified(goodPath); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	badPath := writeTemp(t, "bad.json", invalidUnified)
	if err := s.ReloadUnified(badPath); err == nil {
		t.Fatalf("expected reload to fail validation")
	}

	if len(s.Merged()) != 1 {
		t.Fatalf("a failed reload must leave the prior configuration untouched, got %d rungs", len(s.Merged()))
	}
}

func TestSystemUserMergeOrder(t *testing.T) {
	s := NewStore()
	sysPath := writeTemp(t, "system.json", `{"rungs":[{"id":"sys1","enabled":true,"conditions":[],"action":{"type":"output","output":"Q0"}}]}`)
	userPath := writeTemp(t, "user.json", `{"rungs":[{"id":"user1","enabled":true,"conditions":[],"action":{"type":"output","output":"Q1"}}]}`)

	if err := s.LoadSystem(sysPath); err != nil {
		t.Fatalf("LoadSystem: %v", err)
	}
	if err := s.LoadUser(userPath); err != nil {
		t.Fatalf("LoadUser: %v", err)
	}

	merged := s.Merged()
	if len(merged) != 2 || merged[0].ID != "sys1" || merged[1].ID != "user1" {
		t.Fatalf("expected system rungs before user rungs, got %+v", merged)
	}
}

func TestClearEmptiesStore(t *testing.T) {
	s := NewStore()
	path := writeTemp(t, "config.json", validUnified)
	s.LoadUnified(path)
	s.Clear()
	if len(s.Merged()) != 0 {
		t.Fatalf("expected empty store after Clear")
	}
}
