package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// dbtx abstracts *sql.DB and *sql.Tx so row operations compose into the
// transactional resolution writes.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const runnerColumns = `id, name, normalized_name, first_token, last_token, gender, birth_year,
    city, state, alternate_names, matching_confidence, confirmed_matches, result_count,
    created_at, updated_at`

// InsertRunner persists a new identity and assigns its surrogate key.
func (s *Store) InsertRunner(ctx context.Context, runner *Runner) error {
	return insertRunner(ctx, s.db, runner)
}

func insertRunner(ctx context.Context, db dbtx, runner *Runner) error {
	now := time.Now().UTC()
	runner.CreatedAt = now
	runner.UpdatedAt = now

	res, err := db.ExecContext(
		ctx,
		`INSERT INTO runners (
            name, normalized_name, first_token, last_token, gender, birth_year,
            city, state, alternate_names, matching_confidence, confirmed_matches,
            result_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runner.Name,
		runner.NormalizedName,
		runner.FirstToken,
		runner.LastToken,
		runner.Gender,
		nullableInt(runner.BirthYear),
		runner.City,
		runner.State,
		marshalStrings(runner.AlternateNames),
		runner.MatchingConfidence,
		runner.ConfirmedMatches,
		runner.ResultCount,
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert runner: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	runner.ID = id
	return nil
}

// GetRunner fetches a runner identity by id.
func (s *Store) GetRunner(ctx context.Context, id int64) (*Runner, error) {
	return getRunner(ctx, s.db, id)
}

func getRunner(ctx context.Context, db dbtx, id int64) (*Runner, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runnerColumns+` FROM runners WHERE id = ?`, id)
	runner, err := scanRunner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("runner %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get runner: %w", err)
	}
	return runner, nil
}

// FindCandidates returns identities sharing the blocking key (normalized
// last-name token), bounded by limit. Identities in the given state sort
// ahead of the rest, then by id: when the block's population exceeds the
// limit, the cut must never drop a same-token same-state identity in favor
// of an out-of-state one. Cross-state renames fall to the loose pass.
func (s *Store) FindCandidates(ctx context.Context, lastToken, state string, limit int) ([]*Runner, error) {
	if lastToken == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runnerColumns+` FROM runners WHERE last_token = ?
         ORDER BY (state <> '' AND state = ?) DESC, id LIMIT ?`,
		lastToken, state, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()
	return collectRunners(rows)
}

// FindCandidatesLoose is the fallback pass when blocking returns nothing:
// it matches on first-name token and state instead, catching married-name
// changes and surname misspellings at the cost of a wider scan.
func (s *Store) FindCandidatesLoose(ctx context.Context, firstToken, state string, limit int) ([]*Runner, error) {
	if firstToken == "" || state == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runnerColumns+` FROM runners WHERE first_token = ? AND state = ? ORDER BY id LIMIT ?`,
		firstToken, state, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find candidates loose: %w", err)
	}
	defer rows.Close()
	return collectRunners(rows)
}

// FindRunnerByIdentity looks up an identity by its exact normalized name and
// state. Used for the insert-if-absent check that keeps concurrent imports
// from creating duplicate identities for the same new person.
func (s *Store) FindRunnerByIdentity(ctx context.Context, normalizedName, state string) (*Runner, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runnerColumns+` FROM runners WHERE normalized_name = ? AND state = ? ORDER BY id LIMIT 1`,
		normalizedName, state,
	)
	runner, err := scanRunner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find runner by identity: %w", err)
	}
	return runner, nil
}

func updateRunnerIdentity(ctx context.Context, db dbtx, runner *Runner) error {
	runner.UpdatedAt = time.Now().UTC()
	res, err := db.ExecContext(
		ctx,
		`UPDATE runners
         SET alternate_names = ?, matching_confidence = ?, confirmed_matches = ?,
             result_count = ?, updated_at = ?
         WHERE id = ?`,
		marshalStrings(runner.AlternateNames),
		runner.MatchingConfidence,
		runner.ConfirmedMatches,
		runner.ResultCount,
		timestamp(runner.UpdatedAt),
		runner.ID,
	)
	if err != nil {
		return fmt.Errorf("update runner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("runner %d: %w", runner.ID, ErrNotFound)
	}
	return nil
}

func incrementResultCount(ctx context.Context, db dbtx, runnerID int64) error {
	_, err := db.ExecContext(
		ctx,
		`UPDATE runners SET result_count = result_count + 1, updated_at = ? WHERE id = ?`,
		timestamp(time.Now().UTC()),
		runnerID,
	)
	if err != nil {
		return fmt.Errorf("increment result count: %w", err)
	}
	return nil
}

func collectRunners(rows *sql.Rows) ([]*Runner, error) {
	var runners []*Runner
	for rows.Next() {
		runner, err := scanRunner(rows)
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner)
	}
	return runners, rows.Err()
}

func scanRunner(scanner interface{ Scan(dest ...any) error }) (*Runner, error) {
	var (
		id            int64
		name          string
		normalized    string
		firstToken    string
		lastToken     string
		gender        string
		birthYear     sql.NullInt64
		city          string
		state         string
		alternatesRaw string
		confidence    int
		confirmed     int
		resultCount   int
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&name,
		&normalized,
		&firstToken,
		&lastToken,
		&gender,
		&birthYear,
		&city,
		&state,
		&alternatesRaw,
		&confidence,
		&confirmed,
		&resultCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	runner := &Runner{
		ID:                 id,
		Name:               name,
		NormalizedName:     normalized,
		FirstToken:         firstToken,
		LastToken:          lastToken,
		Gender:             gender,
		City:               city,
		State:              state,
		AlternateNames:     unmarshalStrings(alternatesRaw),
		MatchingConfidence: confidence,
		ConfirmedMatches:   confirmed,
		ResultCount:        resultCount,
	}
	if birthYear.Valid {
		runner.BirthYear = int(birthYear.Int64)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		runner.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		runner.UpdatedAt = updated
	}
	return runner, nil
}
