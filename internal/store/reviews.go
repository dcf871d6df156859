package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const reviewColumns = `id, runner_id, raw_record, match_score, match_reasons, status,
    source_provider, source_result_id, race_id, reviewed_by, reviewed_at, created_at`

func insertReviewEntry(ctx context.Context, db dbtx, entry *ReviewEntry) error {
	now := time.Now().UTC()
	entry.CreatedAt = now
	if entry.Status == "" {
		entry.Status = StatusPending
	}

	var reviewedAt any
	if entry.ReviewedAt != nil {
		reviewedAt = timestamp(*entry.ReviewedAt)
	}

	res, err := db.ExecContext(
		ctx,
		`INSERT INTO runner_matches (
            runner_id, raw_record, match_score, match_reasons, status,
            source_provider, source_result_id, race_id, reviewed_by, reviewed_at, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableRunnerID(entry.RunnerID),
		entry.RawRecord,
		entry.MatchScore,
		marshalStrings(entry.MatchReasons),
		string(entry.Status),
		entry.SourceProvider,
		entry.SourceResultID,
		entry.RaceID,
		nullableString(entry.ReviewedBy),
		reviewedAt,
		timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert review entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// SavePendingReview records a borderline match for manual review. The result
// row itself is not written until a reviewer decides; only the provenance key
// and raw snapshot are held.
func (s *Store) SavePendingReview(ctx context.Context, entry *ReviewEntry) error {
	entry.Status = StatusPending
	return insertReviewEntry(ctx, s.db, entry)
}

// GetReviewEntry fetches a review entry by id.
func (s *Store) GetReviewEntry(ctx context.Context, id int64) (*ReviewEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM runner_matches WHERE id = ?`, id)
	entry, err := scanReviewEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get review entry: %w", err)
	}
	return entry, nil
}

// GetReviewBySource looks up the latest review entry for a provenance key.
// Duplicate ingests of a record parked in review resolve their outcome here.
func (s *Store) GetReviewBySource(ctx context.Context, provider, sourceResultID string) (*ReviewEntry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+reviewColumns+` FROM runner_matches
         WHERE source_provider = ? AND source_result_id = ?
         ORDER BY id DESC LIMIT 1`,
		provider, sourceResultID,
	)
	entry, err := scanReviewEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review entry %s/%s: %w", provider, sourceResultID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get review by source: %w", err)
	}
	return entry, nil
}

// ListReviewEntries returns entries matching the filter, oldest first so the
// review queue drains in arrival order.
func (s *Store) ListReviewEntries(ctx context.Context, filter ReviewFilter) ([]*ReviewEntry, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Provider != "" {
		conditions = append(conditions, "source_provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.RaceID != "" {
		conditions = append(conditions, "race_id = ?")
		args = append(args, filter.RaceID)
	}
	if filter.MinScore > 0 {
		conditions = append(conditions, "match_score >= ?")
		args = append(args, filter.MinScore)
	}

	query := `SELECT ` + reviewColumns + ` FROM runner_matches`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review entries: %w", err)
	}
	defer rows.Close()

	var entries []*ReviewEntry
	for rows.Next() {
		entry, err := scanReviewEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListReviewsForRunner returns an identity's match history, newest first:
// auto-match audit entries plus resolved and pending review entries.
func (s *Store) ListReviewsForRunner(ctx context.Context, runnerID int64, limit int) ([]*ReviewEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+reviewColumns+` FROM runner_matches WHERE runner_id = ? ORDER BY id DESC LIMIT ?`,
		runnerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews for runner: %w", err)
	}
	defer rows.Close()

	var entries []*ReviewEntry
	for rows.Next() {
		entry, err := scanReviewEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CreateIdentityWithResult atomically creates a new runner identity and
// attaches its first result.
func (s *Store) CreateIdentityWithResult(ctx context.Context, runner *Runner, result *Result) error {
	return s.transact(ctx, func(tx *sql.Tx) error {
		runner.ResultCount = 1
		if err := insertRunner(ctx, tx, runner); err != nil {
			return err
		}
		result.RunnerID = runner.ID
		return insertResult(ctx, tx, result)
	})
}

// SaveAutoMatched atomically attaches a result to an existing identity and
// writes the auto-match audit entry. The identity itself is not rescored;
// confidence only moves on explicit reviewer approvals.
func (s *Store) SaveAutoMatched(ctx context.Context, runner *Runner, result *Result, entry *ReviewEntry) error {
	return s.transact(ctx, func(tx *sql.Tx) error {
		result.RunnerID = runner.ID
		if err := insertResult(ctx, tx, result); err != nil {
			return err
		}
		if err := incrementResultCount(ctx, tx, runner.ID); err != nil {
			return err
		}
		entry.RunnerID = runner.ID
		entry.Status = StatusAutoMatched
		return insertReviewEntry(ctx, tx, entry)
	})
}

// ApplyApproval atomically marks a pending entry approved, writes the held
// result against the approved identity, and persists the reviewer-driven
// identity updates (alternate names, confidence, counters). The runner is
// re-read inside the transaction and handed to update, so approvals of
// different entries against the same identity never lose an increment. The
// status flip is guarded so that two concurrent reviewers of one entry
// cannot both win; the loser gets ErrEntryResolved.
func (s *Store) ApplyApproval(ctx context.Context, entryID int64, reviewedBy string, runnerID int64, result *Result, update func(*Runner) error) (*Runner, error) {
	var runner *Runner
	err := s.transact(ctx, func(tx *sql.Tx) error {
		if err := resolveEntry(ctx, tx, entryID, StatusApproved, reviewedBy, runnerID); err != nil {
			return err
		}
		var err error
		runner, err = getRunner(ctx, tx, runnerID)
		if err != nil {
			return err
		}
		if err := update(runner); err != nil {
			return err
		}
		result.RunnerID = runner.ID
		if err := insertResult(ctx, tx, result); err != nil {
			return err
		}
		return updateRunnerIdentity(ctx, tx, runner)
	})
	if err != nil {
		return nil, err
	}
	return runner, nil
}

// ApplyRejection atomically marks a pending entry rejected and creates a
// fresh identity for the held record, since a rejection asserts the record
// belongs to someone else.
func (s *Store) ApplyRejection(ctx context.Context, entryID int64, reviewedBy string, newRunner *Runner, result *Result) error {
	return s.transact(ctx, func(tx *sql.Tx) error {
		newRunner.ResultCount = 1
		if err := insertRunner(ctx, tx, newRunner); err != nil {
			return err
		}
		if err := resolveEntry(ctx, tx, entryID, StatusRejected, reviewedBy, newRunner.ID); err != nil {
			return err
		}
		result.RunnerID = newRunner.ID
		return insertResult(ctx, tx, result)
	})
}

// resolveEntry flips a pending entry to a terminal status. The WHERE clause
// on status makes the first writer win.
func resolveEntry(ctx context.Context, db dbtx, entryID int64, status ReviewStatus, reviewedBy string, runnerID int64) error {
	res, err := db.ExecContext(
		ctx,
		`UPDATE runner_matches
         SET status = ?, reviewed_by = ?, reviewed_at = ?, runner_id = ?
         WHERE id = ? AND status = ?`,
		string(status),
		nullableString(reviewedBy),
		timestamp(time.Now().UTC()),
		nullableRunnerID(runnerID),
		entryID,
		string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("resolve review entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runner_matches WHERE id = ?`, entryID).Scan(&exists); err != nil {
			return fmt.Errorf("check review entry: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("review entry %d: %w", entryID, ErrNotFound)
		}
		return fmt.Errorf("review entry %d: %w", entryID, ErrEntryResolved)
	}
	return nil
}

func nullableRunnerID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func scanReviewEntry(scanner interface{ Scan(dest ...any) error }) (*ReviewEntry, error) {
	var (
		id          int64
		runnerID    sql.NullInt64
		rawRecord   string
		matchScore  int
		reasonsRaw  string
		status      string
		provider    string
		sourceID    string
		raceID      string
		reviewedBy  sql.NullString
		reviewedRaw sql.NullString
		createdRaw  string
	)

	if err := scanner.Scan(
		&id,
		&runnerID,
		&rawRecord,
		&matchScore,
		&reasonsRaw,
		&status,
		&provider,
		&sourceID,
		&raceID,
		&reviewedBy,
		&reviewedRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	entry := &ReviewEntry{
		ID:             id,
		RawRecord:      rawRecord,
		MatchScore:     matchScore,
		MatchReasons:   unmarshalStrings(reasonsRaw),
		Status:         ReviewStatus(status),
		SourceProvider: provider,
		SourceResultID: sourceID,
		RaceID:         raceID,
	}
	if runnerID.Valid {
		entry.RunnerID = runnerID.Int64
	}
	if reviewedBy.Valid {
		entry.ReviewedBy = reviewedBy.String
	}
	if reviewedRaw.Valid {
		if reviewed, err := parseTimeString(reviewedRaw.String); err == nil {
			entry.ReviewedAt = &reviewed
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}
