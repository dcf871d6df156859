// Package review implements the review queue: listing pending match
// proposals and applying reviewer decisions to the identity store.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stride/internal/config"
	"stride/internal/identity"
	"stride/internal/logging"
	"stride/internal/matching"
	"stride/internal/store"
)

// Manager applies reviewer decisions. Resolution of one entry is a single
// transaction with a first-writer-wins guard; a losing concurrent attempt
// surfaces store.ErrEntryResolved and the caller must refresh.
type Manager struct {
	store  *store.Store
	cfg    config.Matching
	logger *slog.Logger
}

// NewManager builds a review queue manager.
func NewManager(st *store.Store, cfg config.Matching, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:  st,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "review"),
	}
}

// ListPending returns pending entries matching the filter, oldest first.
func (m *Manager) ListPending(ctx context.Context, filter store.ReviewFilter) ([]*store.ReviewEntry, error) {
	filter.Status = store.StatusPending
	return m.store.ListReviewEntries(ctx, filter)
}

// Get fetches a single review entry by id.
func (m *Manager) Get(ctx context.Context, id int64) (*store.ReviewEntry, error) {
	return m.store.GetReviewEntry(ctx, id)
}

// Approve confirms the proposed match: the entry flips to approved, the held
// result is written against the candidate identity, any new name variant is
// merged into the alternate set, and the identity's confidence is
// recomputed from the confirmed match.
func (m *Manager) Approve(ctx context.Context, entryID int64, reviewerID string) (*store.ReviewEntry, error) {
	entry, raw, err := m.loadPending(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.RunnerID == 0 {
		return nil, fmt.Errorf("review entry %d proposes no candidate identity", entryID)
	}

	normalized := identity.Normalize(identity.Raw{
		Name:     raw.Name,
		Location: raw.Location,
		Age:      raw.Age,
		Gender:   raw.Gender,
		RaceDate: raw.RaceDate,
	})

	// The identity updates run against the runner row as read inside the
	// approval transaction; a concurrent approval of a sibling entry for the
	// same runner cannot overwrite this one's counters.
	result := matching.BuildResult(raw, "", entry.MatchScore, true)
	runner, err := m.store.ApplyApproval(ctx, entryID, reviewerID, entry.RunnerID, result, func(runner *store.Runner) error {
		if normalized.FullName != runner.NormalizedName && !runner.HasAlternate(normalized.FullName) {
			runner.AlternateNames = append(runner.AlternateNames, normalized.FullName)
		}
		runner.MatchingConfidence = NextConfidence(runner.MatchingConfidence, entry.MatchScore, runner.ConfirmedMatches)
		runner.ConfirmedMatches++
		runner.ResultCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "approved match",
		logging.Int64("entry_id", entryID),
		logging.Int64("runner_id", runner.ID),
		logging.String("reviewer", reviewerID),
		logging.Int("confidence", runner.MatchingConfidence))

	return m.store.GetReviewEntry(ctx, entryID)
}

// Reject asserts the record belongs to someone else: the entry flips to
// rejected and a fresh identity is created for the held record. Rejection
// never discards the result, it redirects it.
func (m *Manager) Reject(ctx context.Context, entryID int64, reviewerID string) (*store.ReviewEntry, error) {
	_, raw, err := m.loadPending(ctx, entryID)
	if err != nil {
		return nil, err
	}

	normalized := identity.Normalize(identity.Raw{
		Name:     raw.Name,
		Location: raw.Location,
		Age:      raw.Age,
		Gender:   raw.Gender,
		RaceDate: raw.RaceDate,
	})
	runner := matching.NewRunnerIdentity(raw, normalized, m.cfg.NewIdentityConfidence)

	result := matching.BuildResult(raw, "", 0, true)
	if err := m.store.ApplyRejection(ctx, entryID, reviewerID, runner, result); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "rejected match",
		logging.Int64("entry_id", entryID),
		logging.Int64("new_runner_id", runner.ID),
		logging.String("reviewer", reviewerID))

	return m.store.GetReviewEntry(ctx, entryID)
}

func (m *Manager) loadPending(ctx context.Context, entryID int64) (*store.ReviewEntry, matching.RawResult, error) {
	entry, err := m.store.GetReviewEntry(ctx, entryID)
	if err != nil {
		return nil, matching.RawResult{}, err
	}
	if entry.Status != store.StatusPending {
		return nil, matching.RawResult{}, fmt.Errorf("review entry %d: %w", entryID, store.ErrEntryResolved)
	}
	if strings.TrimSpace(entry.RawRecord) == "" {
		return nil, matching.RawResult{}, fmt.Errorf("review entry %d has no raw record", entryID)
	}
	raw, err := matching.DecodeSnapshot(entry.RawRecord)
	if err != nil {
		return nil, matching.RawResult{}, fmt.Errorf("review entry %d: %w", entryID, err)
	}
	return entry, raw, nil
}
