package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"stride/internal/config"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "stride", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Matching.AutoAcceptThreshold != 90 {
		t.Fatalf("unexpected auto accept threshold: %d", cfg.Matching.AutoAcceptThreshold)
	}
	if cfg.Matching.ReviewThreshold != 40 {
		t.Fatalf("unexpected review threshold: %d", cfg.Matching.ReviewThreshold)
	}
	if cfg.Matching.TieBand != 10 {
		t.Fatalf("unexpected tie band: %d", cfg.Matching.TieBand)
	}
	if cfg.Matching.CandidateLimit != 50 {
		t.Fatalf("unexpected candidate limit: %d", cfg.Matching.CandidateLimit)
	}
	if cfg.Import.Workers != 4 {
		t.Fatalf("unexpected import workers: %d", cfg.Import.Workers)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if got := cfg.DatabasePath(); got != filepath.Join(wantData, "stride.db") {
		t.Fatalf("unexpected database path: %q", got)
	}
}

func TestLoadParsesFileAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stride.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[matching]
auto_accept_threshold = 85
review_threshold = 35
tie_band = 5

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Matching.AutoAcceptThreshold != 85 {
		t.Fatalf("unexpected auto accept threshold: %d", cfg.Matching.AutoAcceptThreshold)
	}
	if cfg.Matching.ReviewThreshold != 35 {
		t.Fatalf("unexpected review threshold: %d", cfg.Matching.ReviewThreshold)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	// Unset sections fall back to defaults.
	if cfg.Matching.CandidateLimit != 50 {
		t.Fatalf("unexpected candidate limit: %d", cfg.Matching.CandidateLimit)
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stride.toml")
	content := `
[matching]
auto_accept_threshold = 30
review_threshold = 40
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for review >= auto accept")
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Matching.AutoAcceptThreshold != config.Default().Matching.AutoAcceptThreshold {
		t.Fatalf("sample should carry defaults, got %d", cfg.Matching.AutoAcceptThreshold)
	}
}
