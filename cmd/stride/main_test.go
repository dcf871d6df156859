package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"stride/internal/ingest"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	want := []string{"ingest", "review", "runner", "status", "config"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRenderTableAlignment(t *testing.T) {
	out := renderTable(
		[]string{"Name", "Score"},
		[][]string{{"robert smith", "95"}, {"jane doe", "5"}},
		2,
	)
	if !strings.Contains(out, "robert smith") || !strings.Contains(out, "95") {
		t.Errorf("table output missing rows:\n%s", out)
	}
}

func TestWriteJSON(t *testing.T) {
	cmd := &cobra.Command{}
	var buf strings.Builder
	cmd.SetOut(&buf)

	if err := writeJSON(cmd, map[string]int{"score": 95}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"score": 95`) || !strings.HasSuffix(out, "\n") {
		t.Errorf("writeJSON output = %q", out)
	}
}

func TestRenderSummary(t *testing.T) {
	cmd := &cobra.Command{}
	var buf strings.Builder
	cmd.SetOut(&buf)

	renderSummary(cmd, &ingest.Summary{
		BatchID:       "batch-1",
		Total:         3,
		AutoMatched:   1,
		PendingReview: 1,
		NewIdentities: 1,
		Elapsed:       1500 * time.Millisecond,
	})

	out := buf.String()
	for _, want := range []string{"batch-1", "Auto-matched", "Pending review", "New identities"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestParseID(t *testing.T) {
	if _, err := parseID("12"); err != nil {
		t.Errorf("parseID(12) errored: %v", err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := parseID(bad); err == nil {
			t.Errorf("parseID(%q) accepted", bad)
		}
	}
}

func TestJoinReasons(t *testing.T) {
	if got := joinReasons(nil); got != "-" {
		t.Errorf("joinReasons(nil) = %q", got)
	}
	if got := joinReasons([]string{"name_exact", "city_match"}); got != "name_exact, city_match" {
		t.Errorf("joinReasons = %q", got)
	}
}
