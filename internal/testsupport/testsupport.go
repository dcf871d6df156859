// Package testsupport provides helpers for constructing isolated
// configurations and stores in tests.
package testsupport

import (
	"testing"

	"stride/internal/config"
	"stride/internal/store"
)

// NewConfig returns a validated config rooted in per-test temp directories.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate test config: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a fresh store on a temp database and registers cleanup.
func MustOpenStore(t *testing.T) *store.Store {
	t.Helper()

	cfg := NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}
