package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stride/internal/matching"
)

// Batch describes where a file's records come from. Provider and race apply
// to every record in the file; per-record rows carry only runner fields.
type Batch struct {
	Provider string
	RaceID   string
	RaceDate time.Time
}

// DecodeFile parses a provider export into raw records. The format is
// chosen by extension: .csv and .json are supported.
func DecodeFile(path string, batch Batch) ([]matching.RawResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return DecodeCSV(file, batch)
	case ".json":
		return DecodeJSON(file, batch)
	default:
		return nil, fmt.Errorf("unsupported import format %q", filepath.Ext(path))
	}
}

// DecodeCSV reads a header-driven CSV export. Recognized headers:
// source_result_id, name, location, age, birth_date, gender, finish_time,
// overall_place, gender_place, division_place. Unrecognized columns are
// ignored so provider exports can carry extra fields.
func DecodeCSV(r io.Reader, batch Batch) ([]matching.RawResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []matching.RawResult
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", line, err)
		}

		record := matching.RawResult{
			Provider:       batch.Provider,
			RaceID:         batch.RaceID,
			RaceDate:       batch.RaceDate,
			SourceResultID: field(row, "source_result_id"),
			Name:           field(row, "name"),
			Location:       field(row, "location"),
			Gender:         field(row, "gender"),
			FinishTime:     field(row, "finish_time"),
		}
		record.Age = parseIntField(field(row, "age"))
		record.OverallPlace = parseIntField(field(row, "overall_place"))
		record.GenderPlace = parseIntField(field(row, "gender_place"))
		record.DivisionPlace = parseIntField(field(row, "division_place"))
		if birth := field(row, "birth_date"); birth != "" {
			parsed, err := time.Parse("2006-01-02", birth)
			if err != nil {
				return nil, fmt.Errorf("csv row %d: parse birth_date %q: %w", line, birth, err)
			}
			record.BirthDate = parsed
		}
		records = append(records, record)
	}
	return records, nil
}

type jsonRecord struct {
	SourceResultID string `json:"source_result_id"`
	Name           string `json:"name"`
	Location       string `json:"location"`
	Age            int    `json:"age"`
	BirthDate      string `json:"birth_date"`
	Gender         string `json:"gender"`
	FinishTime     string `json:"finish_time"`
	OverallPlace   int    `json:"overall_place"`
	GenderPlace    int    `json:"gender_place"`
	DivisionPlace  int    `json:"division_place"`
}

// DecodeJSON reads an array of result objects.
func DecodeJSON(r io.Reader, batch Batch) ([]matching.RawResult, error) {
	var rows []jsonRecord
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode json import: %w", err)
	}

	records := make([]matching.RawResult, 0, len(rows))
	for i, row := range rows {
		record := matching.RawResult{
			Provider:       batch.Provider,
			RaceID:         batch.RaceID,
			RaceDate:       batch.RaceDate,
			SourceResultID: row.SourceResultID,
			Name:           row.Name,
			Location:       row.Location,
			Age:            row.Age,
			Gender:         row.Gender,
			FinishTime:     row.FinishTime,
			OverallPlace:   row.OverallPlace,
			GenderPlace:    row.GenderPlace,
			DivisionPlace:  row.DivisionPlace,
		}
		if row.BirthDate != "" {
			parsed, err := time.Parse("2006-01-02", row.BirthDate)
			if err != nil {
				return nil, fmt.Errorf("json record %d: parse birth_date %q: %w", i, row.BirthDate, err)
			}
			record.BirthDate = parsed
		}
		records = append(records, record)
	}
	return records, nil
}

func parseIntField(value string) int {
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
