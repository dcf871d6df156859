package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"stride/internal/logging"
)

func TestConsoleFormatIncludesComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logging.NewComponentLogger(logger, "matcher").Info("scored candidate",
		logging.Int("score", 87),
		logging.String("reason", "name exact"),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO matcher: scored candidate") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "score=87") {
		t.Fatalf("missing score attr: %q", line)
	}
	if !strings.Contains(line, `reason="name exact"`) {
		t.Fatalf("expected quoted attr value: %q", line)
	}
}

func TestConsoleLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn should be emitted: %q", out)
	}
}

func TestJSONFormatProducesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("ingested", logging.Int64("runner_id", 42))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "ingested" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["runner_id"] != float64(42) {
		t.Fatalf("unexpected runner_id: %v", record["runner_id"])
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
