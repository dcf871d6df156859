package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const resultColumns = `id, runner_id, race_id, source_provider, source_result_id,
    raw_runner_name, raw_location, raw_age, finish_time, overall_place, gender_place,
    division_place, matching_score, needs_review, import_batch_id, created_at`

func insertResult(ctx context.Context, db dbtx, result *Result) error {
	now := time.Now().UTC()
	result.CreatedAt = now

	res, err := db.ExecContext(
		ctx,
		`INSERT INTO results (
            runner_id, race_id, source_provider, source_result_id, raw_runner_name,
            raw_location, raw_age, finish_time, overall_place, gender_place,
            division_place, matching_score, needs_review, import_batch_id, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunnerID,
		result.RaceID,
		result.SourceProvider,
		result.SourceResultID,
		result.RawRunnerName,
		result.RawLocation,
		nullableInt(result.RawAge),
		result.FinishTime,
		nullableInt(result.OverallPlace),
		nullableInt(result.GenderPlace),
		nullableInt(result.DivisionPlace),
		result.MatchingScore,
		boolToInt(result.NeedsReview),
		result.ImportBatchID,
		timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	result.ID = id
	return nil
}

// AttachResult atomically writes a result against an existing identity and
// bumps its result counter.
func (s *Store) AttachResult(ctx context.Context, runnerID int64, result *Result) error {
	return s.transact(ctx, func(tx *sql.Tx) error {
		result.RunnerID = runnerID
		if err := insertResult(ctx, tx, result); err != nil {
			return err
		}
		return incrementResultCount(ctx, tx, runnerID)
	})
}

// GetResultBySource looks up a persisted result by its provenance key. Used
// to recognize duplicate imports before any resolution work happens.
func (s *Store) GetResultBySource(ctx context.Context, provider, sourceResultID string) (*Result, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+resultColumns+` FROM results WHERE source_provider = ? AND source_result_id = ?`,
		provider, sourceResultID,
	)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s/%s: %w", provider, sourceResultID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get result by source: %w", err)
	}
	return result, nil
}

// ListResultsForRunner returns a runner's results, most recent first.
func (s *Store) ListResultsForRunner(ctx context.Context, runnerID int64, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+resultColumns+` FROM results WHERE runner_id = ? ORDER BY id DESC LIMIT ?`,
		runnerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func scanResult(scanner interface{ Scan(dest ...any) error }) (*Result, error) {
	var (
		id            int64
		runnerID      int64
		raceID        string
		provider      string
		sourceID      string
		rawName       string
		rawLocation   string
		rawAge        sql.NullInt64
		finishTime    string
		overallPlace  sql.NullInt64
		genderPlace   sql.NullInt64
		divisionPlace sql.NullInt64
		matchingScore int
		needsReview   int
		batchID       string
		createdRaw    string
	)

	if err := scanner.Scan(
		&id,
		&runnerID,
		&raceID,
		&provider,
		&sourceID,
		&rawName,
		&rawLocation,
		&rawAge,
		&finishTime,
		&overallPlace,
		&genderPlace,
		&divisionPlace,
		&matchingScore,
		&needsReview,
		&batchID,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	result := &Result{
		ID:             id,
		RunnerID:       runnerID,
		RaceID:         raceID,
		SourceProvider: provider,
		SourceResultID: sourceID,
		RawRunnerName:  rawName,
		RawLocation:    rawLocation,
		FinishTime:     finishTime,
		MatchingScore:  matchingScore,
		NeedsReview:    needsReview != 0,
		ImportBatchID:  batchID,
	}
	if rawAge.Valid {
		result.RawAge = int(rawAge.Int64)
	}
	if overallPlace.Valid {
		result.OverallPlace = int(overallPlace.Int64)
	}
	if genderPlace.Valid {
		result.GenderPlace = int(genderPlace.Int64)
	}
	if divisionPlace.Valid {
		result.DivisionPlace = int(divisionPlace.Int64)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		result.CreatedAt = created
	}
	return result, nil
}
