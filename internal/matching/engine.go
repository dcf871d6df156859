package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"stride/internal/config"
	"stride/internal/identity"
	"stride/internal/logging"
	"stride/internal/store"
)

// Engine resolves raw race results against the runner identity store. Safe
// for concurrent use; identity creation is serialized per identity key.
type Engine struct {
	store  *store.Store
	cfg    config.Matching
	scorer *Scorer
	policy Policy
	logger *slog.Logger
	keys   *keyedMutex
}

// NewEngine builds a resolution engine on top of the store.
func NewEngine(st *store.Store, cfg config.Matching, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:  st,
		cfg:    cfg,
		scorer: NewScorer(cfg),
		policy: PolicyFromConfig(cfg),
		logger: logging.NewComponentLogger(logger, "matching"),
		keys:   newKeyedMutex(),
	}
}

// Resolution is the outcome of ingesting one raw record.
type Resolution struct {
	Outcome  Outcome
	RunnerID int64
	EntryID  int64
	Score    int
	Reasons  []string

	// Duplicate reports the record was already ingested and the resolution
	// reflects the prior outcome rather than a fresh match.
	Duplicate bool
}

// Ingest resolves one raw record: validate, check for a prior ingest of the
// same provenance key, search and score candidates, then apply the
// acceptance policy. Each record's writes are a single transaction; a
// failure leaves no partial identity or orphaned entry behind.
func (e *Engine) Ingest(ctx context.Context, raw RawResult, batchID string) (*Resolution, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	if resolution, err := e.priorResolution(ctx, raw); err != nil {
		return nil, err
	} else if resolution != nil {
		e.logger.DebugContext(ctx, "duplicate record",
			logging.String("provider", raw.Provider),
			logging.String("source_result_id", raw.SourceResultID),
			logging.String("outcome", string(resolution.Outcome)))
		return resolution, nil
	}

	normalized := identity.Normalize(identity.Raw{
		Name:      raw.Name,
		Location:  raw.Location,
		Age:       raw.Age,
		BirthDate: raw.BirthDate,
		Gender:    raw.Gender,
		RaceDate:  raw.RaceDate,
	})

	candidates, err := e.findCandidates(ctx, normalized)
	if err != nil {
		return nil, err
	}

	scored := make([]Candidate, 0, len(candidates))
	for _, runner := range candidates {
		scored = append(scored, Candidate{
			Runner: runner,
			Score:  e.scorer.Score(normalized, runner, raw.RaceDate),
		})
	}
	rankCandidates(scored)

	outcome, best := e.policy.Decide(scored)
	switch outcome {
	case OutcomeAutoMatched:
		return e.autoMatch(ctx, raw, batchID, best)
	case OutcomePendingReview:
		return e.queueReview(ctx, raw, best)
	default:
		return e.createIdentity(ctx, raw, normalized, batchID)
	}
}

// priorResolution reconstructs the outcome of an earlier ingest of the same
// (provider, source result id). Returns nil when the record is new.
func (e *Engine) priorResolution(ctx context.Context, raw RawResult) (*Resolution, error) {
	result, err := e.store.GetResultBySource(ctx, raw.Provider, raw.SourceResultID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if result != nil {
		resolution := &Resolution{
			RunnerID:  result.RunnerID,
			Score:     result.MatchingScore,
			Duplicate: true,
		}
		entry, err := e.store.GetReviewBySource(ctx, raw.Provider, raw.SourceResultID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		switch {
		case entry != nil && entry.Status == store.StatusAutoMatched:
			resolution.Outcome = OutcomeAutoMatched
			resolution.Reasons = entry.MatchReasons
		case entry != nil && entry.Status == store.StatusApproved:
			resolution.Outcome = OutcomeAutoMatched
			resolution.EntryID = entry.ID
		default:
			// No entry (direct new identity) or a rejected entry whose
			// record was redirected to a fresh identity.
			resolution.Outcome = OutcomeNewIdentity
		}
		return resolution, nil
	}

	entry, err := e.store.GetReviewBySource(ctx, raw.Provider, raw.SourceResultID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if entry.Status != store.StatusPending {
		return nil, nil
	}
	return &Resolution{
		Outcome:   OutcomePendingReview,
		RunnerID:  entry.RunnerID,
		EntryID:   entry.ID,
		Score:     entry.MatchScore,
		Reasons:   entry.MatchReasons,
		Duplicate: true,
	}, nil
}

// findCandidates runs the blocked search on the last-name token, preferring
// the record's state inside the block, falling back to the loose first-name
// plus state pass only when the block comes up empty.
func (e *Engine) findCandidates(ctx context.Context, n identity.Normalized) ([]*store.Runner, error) {
	candidates, err := e.store.FindCandidates(ctx, n.LastToken, n.State, e.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("candidate search: %w", err)
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	candidates, err = e.store.FindCandidatesLoose(ctx, n.FirstToken, n.State, e.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("loose candidate search: %w", err)
	}
	return candidates, nil
}

func (e *Engine) autoMatch(ctx context.Context, raw RawResult, batchID string, best *Candidate) (*Resolution, error) {
	snapshot, err := raw.Snapshot()
	if err != nil {
		return nil, err
	}

	result := BuildResult(raw, batchID, best.Score.Total, false)
	entry := &store.ReviewEntry{
		RawRecord:      snapshot,
		MatchScore:     best.Score.Total,
		MatchReasons:   best.Score.Reasons,
		SourceProvider: raw.Provider,
		SourceResultID: raw.SourceResultID,
		RaceID:         raw.RaceID,
	}
	if err := e.store.SaveAutoMatched(ctx, best.Runner, result, entry); err != nil {
		return nil, fmt.Errorf("save auto match: %w", err)
	}

	e.logger.InfoContext(ctx, "auto matched",
		logging.String("provider", raw.Provider),
		logging.String("source_result_id", raw.SourceResultID),
		logging.Int64("runner_id", best.Runner.ID),
		logging.Int("score", best.Score.Total))

	return &Resolution{
		Outcome:  OutcomeAutoMatched,
		RunnerID: best.Runner.ID,
		EntryID:  entry.ID,
		Score:    best.Score.Total,
		Reasons:  best.Score.Reasons,
	}, nil
}

func (e *Engine) queueReview(ctx context.Context, raw RawResult, best *Candidate) (*Resolution, error) {
	snapshot, err := raw.Snapshot()
	if err != nil {
		return nil, err
	}

	entry := &store.ReviewEntry{
		RunnerID:       best.Runner.ID,
		RawRecord:      snapshot,
		MatchScore:     best.Score.Total,
		MatchReasons:   best.Score.Reasons,
		SourceProvider: raw.Provider,
		SourceResultID: raw.SourceResultID,
		RaceID:         raw.RaceID,
	}
	if err := e.store.SavePendingReview(ctx, entry); err != nil {
		return nil, fmt.Errorf("queue review: %w", err)
	}

	e.logger.InfoContext(ctx, "queued for review",
		logging.String("provider", raw.Provider),
		logging.String("source_result_id", raw.SourceResultID),
		logging.Int64("candidate_id", best.Runner.ID),
		logging.Int("score", best.Score.Total))

	return &Resolution{
		Outcome:  OutcomePendingReview,
		RunnerID: best.Runner.ID,
		EntryID:  entry.ID,
		Score:    best.Score.Total,
		Reasons:  best.Score.Reasons,
	}, nil
}

func (e *Engine) createIdentity(ctx context.Context, raw RawResult, n identity.Normalized, batchID string) (*Resolution, error) {
	unlock := e.keys.lock(n.Key())
	defer unlock()

	// Another record in the batch may have created this identity while we
	// waited on the key lock.
	existing, err := e.store.FindRunnerByIdentity(ctx, n.FullName, n.State)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result := BuildResult(raw, batchID, 0, false)
		if err := e.store.AttachResult(ctx, existing.ID, result); err != nil {
			return nil, fmt.Errorf("attach result: %w", err)
		}
		return &Resolution{Outcome: OutcomeNewIdentity, RunnerID: existing.ID}, nil
	}

	runner := NewRunnerIdentity(raw, n, e.cfg.NewIdentityConfidence)
	result := BuildResult(raw, batchID, 0, false)
	if err := e.store.CreateIdentityWithResult(ctx, runner, result); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	e.logger.InfoContext(ctx, "created identity",
		logging.String("provider", raw.Provider),
		logging.String("source_result_id", raw.SourceResultID),
		logging.Int64("runner_id", runner.ID),
		logging.String("name", runner.NormalizedName))

	return &Resolution{Outcome: OutcomeNewIdentity, RunnerID: runner.ID}, nil
}

// NewRunnerIdentity builds a fresh identity from a raw record. Shared with
// the review manager's rejection path.
func NewRunnerIdentity(raw RawResult, n identity.Normalized, confidence int) *store.Runner {
	birthYear := 0
	if !raw.BirthDate.IsZero() {
		birthYear = raw.BirthDate.Year()
	} else {
		birthYear = identity.BirthYearFor(n.AgeEstimate, raw.RaceDate)
	}

	return &store.Runner{
		Name:               strings.TrimSpace(raw.Name),
		NormalizedName:     n.FullName,
		FirstToken:         n.FirstToken,
		LastToken:          n.LastToken,
		Gender:             string(n.Gender),
		BirthYear:          birthYear,
		City:               n.City,
		State:              n.State,
		MatchingConfidence: confidence,
	}
}

func BuildResult(raw RawResult, batchID string, score int, needsReview bool) *store.Result {
	return &store.Result{
		RaceID:         raw.RaceID,
		SourceProvider: raw.Provider,
		SourceResultID: raw.SourceResultID,
		RawRunnerName:  raw.Name,
		RawLocation:    raw.Location,
		RawAge:         raw.Age,
		FinishTime:     raw.FinishTime,
		OverallPlace:   raw.OverallPlace,
		GenderPlace:    raw.GenderPlace,
		DivisionPlace:  raw.DivisionPlace,
		MatchingScore:  score,
		NeedsReview:    needsReview,
		ImportBatchID:  batchID,
	}
}
