package ingest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stride/internal/ingest"
)

var batch = ingest.Batch{
	Provider: "chronotrack",
	RaceID:   "race-2026-austin",
	RaceDate: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
}

func TestDecodeCSV(t *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"source_result_id,name,location,age,gender,finish_time,overall_place,bib",
		"ct-1,Robert Smith,\"Austin, TX\",34,M,3:14:22,12,1043",
		"ct-2,Ana Silva,\"Miami, FL\",,F,3:22:01,19,2201",
	}, "\n"))

	records, err := ingest.DecodeCSV(input, batch)
	if err != nil {
		t.Fatalf("decode csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	first := records[0]
	if first.Provider != "chronotrack" || first.RaceID != "race-2026-austin" {
		t.Errorf("batch fields not applied: %+v", first)
	}
	if first.SourceResultID != "ct-1" || first.Name != "Robert Smith" {
		t.Errorf("record fields = %+v", first)
	}
	if first.Location != "Austin, TX" || first.Age != 34 || first.OverallPlace != 12 {
		t.Errorf("parsed fields = %+v", first)
	}

	// Missing age stays zero rather than failing the row.
	if records[1].Age != 0 {
		t.Errorf("missing age = %d, want 0", records[1].Age)
	}
}

func TestDecodeJSONWithBirthDate(t *testing.T) {
	input := strings.NewReader(`[
        {"source_result_id": "rs-1", "name": "Chris Lee", "location": "Seattle, WA",
         "birth_date": "1990-03-15", "gender": "M", "finish_time": "2:58:40"}
    ]`)

	records, err := ingest.DecodeJSON(input, batch)
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].BirthDate.IsZero() || records[0].BirthDate.Year() != 1990 {
		t.Errorf("birth date = %v", records[0].BirthDate)
	}
}

func TestDecodeFileRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xml")
	if err := os.WriteFile(path, []byte("<results/>"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := ingest.DecodeFile(path, batch); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestDecodeCSVInvalidBirthDate(t *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"source_result_id,name,birth_date",
		"ct-1,Robert Smith,03/15/1990",
	}, "\n"))

	if _, err := ingest.DecodeCSV(input, batch); err == nil {
		t.Fatal("expected birth_date parse error")
	}
}
