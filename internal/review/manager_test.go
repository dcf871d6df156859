package review_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"stride/internal/config"
	"stride/internal/matching"
	"stride/internal/review"
	"stride/internal/store"
	"stride/internal/testsupport"
)

var raceDate = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

// seedPendingEntry ingests an identity and then a borderline variant so a
// pending review entry exists.
func seedPendingEntry(t *testing.T) (*store.Store, *review.Manager, *matching.Resolution, int64) {
	t.Helper()

	st := testsupport.MustOpenStore(t)
	cfg := config.Default().Matching
	engine := matching.NewEngine(st, cfg, nil)
	manager := review.NewManager(st, cfg, nil)
	ctx := context.Background()

	seed, err := engine.Ingest(ctx, matching.RawResult{
		Provider:       "chronotrack",
		SourceResultID: "ct-1",
		RaceID:         "race-2026-austin",
		Name:           "Robert Smith",
		Location:       "Austin, TX",
		Age:            34,
		RaceDate:       raceDate,
	}, "")
	if err != nil {
		t.Fatalf("seed ingest: %v", err)
	}

	pending, err := engine.Ingest(ctx, matching.RawResult{
		Provider:       "chronotrack",
		SourceResultID: "ct-2",
		RaceID:         "race-2026-dallas",
		Name:           "R. Smith",
		Location:       "Dallas, TX",
		Age:            36,
		RaceDate:       raceDate,
		FinishTime:     "1:38:03",
	}, "")
	if err != nil {
		t.Fatalf("pending ingest: %v", err)
	}
	if pending.Outcome != matching.OutcomePendingReview {
		t.Fatalf("outcome = %q, want pending_review", pending.Outcome)
	}

	return st, manager, pending, seed.RunnerID
}

func TestApproveMergesIntoIdentity(t *testing.T) {
	st, manager, pending, runnerID := seedPendingEntry(t)
	ctx := context.Background()

	entry, err := manager.Approve(ctx, pending.EntryID, "reviewer-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if entry.Status != store.StatusApproved {
		t.Errorf("status = %q, want approved", entry.Status)
	}
	if entry.ReviewedBy != "reviewer-1" || entry.ReviewedAt == nil {
		t.Errorf("reviewer fields not set: %+v", entry)
	}

	runner, err := st.GetRunner(ctx, runnerID)
	if err != nil {
		t.Fatalf("get runner: %v", err)
	}
	if !runner.HasAlternate("r smith") {
		t.Errorf("alternates = %v, want to include %q", runner.AlternateNames, "r smith")
	}
	if runner.ConfirmedMatches != 1 {
		t.Errorf("confirmed matches = %d, want 1", runner.ConfirmedMatches)
	}
	if entry.MatchScore != 60 {
		t.Fatalf("match score = %d, want 60", entry.MatchScore)
	}
	// First approval averages the seed confidence 70 with the score 60.
	if runner.MatchingConfidence != 65 {
		t.Errorf("confidence = %d, want 65", runner.MatchingConfidence)
	}
	if runner.ResultCount != 2 {
		t.Errorf("result count = %d, want 2", runner.ResultCount)
	}

	result, err := st.GetResultBySource(ctx, "chronotrack", "ct-2")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.RunnerID != runnerID {
		t.Errorf("result attached to %d, want %d", result.RunnerID, runnerID)
	}
	if !result.NeedsReview {
		t.Error("reviewed result not flagged as having needed review")
	}
}

func TestApproveRaisesNameScoreForFutureRecords(t *testing.T) {
	st, manager, pending, runnerID := seedPendingEntry(t)
	ctx := context.Background()

	if _, err := manager.Approve(ctx, pending.EntryID, "reviewer-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	engine := matching.NewEngine(st, config.Default().Matching, nil)
	resolution, err := engine.Ingest(ctx, matching.RawResult{
		Provider:       "chronotrack",
		SourceResultID: "ct-3",
		RaceID:         "race-2026-houston",
		Name:           "R. Smith",
		Location:       "Austin, TX",
		Age:            34,
		RaceDate:       raceDate,
	}, "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	// The confirmed alternate makes the name exact now; with city and age
	// also matching this clears the auto-accept threshold.
	if resolution.Outcome != matching.OutcomeAutoMatched {
		t.Errorf("outcome = %q (score %d), want auto_matched", resolution.Outcome, resolution.Score)
	}
	if resolution.RunnerID != runnerID {
		t.Errorf("runner = %d, want %d", resolution.RunnerID, runnerID)
	}
}

func TestRejectCreatesNewIdentity(t *testing.T) {
	st, manager, pending, seedRunnerID := seedPendingEntry(t)
	ctx := context.Background()

	entry, err := manager.Reject(ctx, pending.EntryID, "reviewer-1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if entry.Status != store.StatusRejected {
		t.Errorf("status = %q, want rejected", entry.Status)
	}
	if entry.RunnerID == 0 || entry.RunnerID == seedRunnerID {
		t.Fatalf("rejected entry runner = %d, want fresh identity", entry.RunnerID)
	}

	fresh, err := st.GetRunner(ctx, entry.RunnerID)
	if err != nil {
		t.Fatalf("get fresh runner: %v", err)
	}
	if fresh.NormalizedName != "r smith" {
		t.Errorf("fresh identity name = %q", fresh.NormalizedName)
	}
	if fresh.ResultCount != 1 {
		t.Errorf("fresh result count = %d, want 1", fresh.ResultCount)
	}

	result, err := st.GetResultBySource(ctx, "chronotrack", "ct-2")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.RunnerID != entry.RunnerID {
		t.Errorf("result attached to %d, want %d", result.RunnerID, entry.RunnerID)
	}

	seedRunner, err := st.GetRunner(ctx, seedRunnerID)
	if err != nil {
		t.Fatalf("get seed runner: %v", err)
	}
	if seedRunner.ResultCount != 1 || seedRunner.ConfirmedMatches != 0 {
		t.Errorf("seed identity mutated by rejection: %+v", seedRunner)
	}
}

func TestConcurrentResolutionConflicts(t *testing.T) {
	_, manager, pending, _ := seedPendingEntry(t)
	ctx := context.Background()

	if _, err := manager.Approve(ctx, pending.EntryID, "reviewer-1"); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	if _, err := manager.Approve(ctx, pending.EntryID, "reviewer-2"); !errors.Is(err, store.ErrEntryResolved) {
		t.Errorf("second approve err = %v, want ErrEntryResolved", err)
	}
	if _, err := manager.Reject(ctx, pending.EntryID, "reviewer-2"); !errors.Is(err, store.ErrEntryResolved) {
		t.Errorf("reject after approve err = %v, want ErrEntryResolved", err)
	}
}

func TestApproveSiblingEntriesBothCount(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	manager := review.NewManager(st, config.Default().Matching, nil)
	ctx := context.Background()

	runner := &store.Runner{
		Name:               "Robert Smith",
		NormalizedName:     "robert smith",
		FirstToken:         "robert",
		LastToken:          "smith",
		State:              "TX",
		MatchingConfidence: 70,
	}
	seed := &store.Result{
		RaceID:         "race-2026-austin",
		SourceProvider: "chronotrack",
		SourceResultID: "ct-1",
		RawRunnerName:  "Robert Smith",
	}
	if err := st.CreateIdentityWithResult(ctx, runner, seed); err != nil {
		t.Fatalf("seed identity: %v", err)
	}

	// Two distinct pending entries propose the same identity.
	entryIDs := make([]int64, 2)
	for i := range entryIDs {
		raw := matching.RawResult{
			Provider:       "chronotrack",
			SourceResultID: fmt.Sprintf("ct-%d", i+2),
			RaceID:         "race-2026-dallas",
			Name:           "R. Smith",
			Location:       "Dallas, TX",
			Age:            36,
			RaceDate:       raceDate,
		}
		snapshot, err := raw.Snapshot()
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		entry := &store.ReviewEntry{
			RunnerID:       runner.ID,
			RawRecord:      snapshot,
			MatchScore:     60,
			SourceProvider: raw.Provider,
			SourceResultID: raw.SourceResultID,
			RaceID:         raw.RaceID,
		}
		if err := st.SavePendingReview(ctx, entry); err != nil {
			t.Fatalf("save pending %d: %v", i, err)
		}
		entryIDs[i] = entry.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, len(entryIDs))
	for i, id := range entryIDs {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = manager.Approve(ctx, id, "reviewer-1")
		}(i, id)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
	}

	updated, err := st.GetRunner(ctx, runner.ID)
	if err != nil {
		t.Fatalf("get runner: %v", err)
	}
	if updated.ConfirmedMatches != 2 {
		t.Errorf("confirmed matches = %d, want 2", updated.ConfirmedMatches)
	}
	if updated.ResultCount != 3 {
		t.Errorf("result count = %d, want 3", updated.ResultCount)
	}
}

func TestListPendingFiltersAndOrders(t *testing.T) {
	_, manager, pending, _ := seedPendingEntry(t)
	ctx := context.Background()

	entries, err := manager.ListPending(ctx, store.ReviewFilter{})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != pending.EntryID {
		t.Fatalf("pending = %+v, want entry %d", entries, pending.EntryID)
	}

	entries, err = manager.ListPending(ctx, store.ReviewFilter{Provider: "runsignup"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("filtered pending = %d entries, want 0", len(entries))
	}

	// The status filter cannot be overridden into terminal states.
	if _, err := manager.Approve(ctx, pending.EntryID, "reviewer-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	entries, err = manager.ListPending(ctx, store.ReviewFilter{Status: store.StatusApproved})
	if err != nil {
		t.Fatalf("list after approve: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("pending after approve = %d entries, want 0", len(entries))
	}
}

func TestNextConfidence(t *testing.T) {
	cases := []struct {
		name            string
		current         int
		score           int
		confirmedBefore int
		want            int
	}{
		{"first approval averages", 70, 60, 0, 65},
		{"later approvals move less", 70, 100, 2, 78},
		{"floor", 55, 0, 0, 50},
		{"ceiling", 100, 100, 5, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := review.NextConfidence(tc.current, tc.score, tc.confirmedBefore); got != tc.want {
				t.Errorf("NextConfidence(%d, %d, %d) = %d, want %d",
					tc.current, tc.score, tc.confirmedBefore, got, tc.want)
			}
		})
	}
}
