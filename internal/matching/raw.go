package matching

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedRecord indicates a raw record is missing required fields and
// was rejected before any matching attempt. Nothing is persisted.
var ErrMalformedRecord = errors.New("malformed raw record")

// RawResult is one imported race result prior to resolution.
type RawResult struct {
	Provider       string    `json:"provider"`
	SourceResultID string    `json:"source_result_id"`
	RaceID         string    `json:"race_id"`
	Name           string    `json:"name"`
	Location       string    `json:"location,omitempty"`
	Age            int       `json:"age,omitempty"`
	BirthDate      time.Time `json:"birth_date,omitzero"`
	Gender         string    `json:"gender,omitempty"`
	RaceDate       time.Time `json:"race_date,omitzero"`
	FinishTime     string    `json:"finish_time,omitempty"`
	OverallPlace   int       `json:"overall_place,omitempty"`
	GenderPlace    int       `json:"gender_place,omitempty"`
	DivisionPlace  int       `json:"division_place,omitempty"`
}

// Validate rejects records the engine cannot resolve. Missing optional
// attributes degrade to neutral scores instead; only provenance and the name
// are hard requirements.
func (r RawResult) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Provider) == "" {
		missing = append(missing, "provider")
	}
	if strings.TrimSpace(r.SourceResultID) == "" {
		missing = append(missing, "source_result_id")
	}
	if strings.TrimSpace(r.RaceID) == "" {
		missing = append(missing, "race_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedRecord, strings.Join(missing, ", "))
	}
	return nil
}

// Snapshot serializes the record for storage in a review entry. Decoded
// lazily when the entry is rendered or resolved.
func (r RawResult) Snapshot() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode raw record: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot restores a raw record from a review entry payload.
func DecodeSnapshot(raw string) (RawResult, error) {
	var record RawResult
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return RawResult{}, fmt.Errorf("decode raw record: %w", err)
	}
	return record, nil
}
