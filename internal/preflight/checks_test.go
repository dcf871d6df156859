package preflight_test

import (
	"path/filepath"
	"testing"

	"stride/internal/preflight"
	"stride/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := preflight.CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Errorf("existing dir failed: %s", result.Detail)
	}

	missing := preflight.CheckDirectoryAccess("Data directory", filepath.Join(dir, "nope"))
	if missing.Passed {
		t.Error("missing dir passed")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	if result := preflight.CheckDiskSpace("Disk space", dir, 1); !result.Passed {
		t.Errorf("1 MB requirement failed: %s", result.Detail)
	}
	// An absurd requirement must fail rather than pass vacuously.
	if result := preflight.CheckDiskSpace("Disk space", dir, 1<<40); result.Passed {
		t.Error("exabyte requirement passed")
	}
}

func TestRunCoversImportPrerequisites(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	results := preflight.Run(cfg)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !preflight.AllPassed(results) {
		for _, result := range results {
			t.Logf("%s: passed=%v detail=%s", result.Name, result.Passed, result.Detail)
		}
		t.Error("expected all checks to pass in temp dirs")
	}
}
