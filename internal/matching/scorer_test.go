package matching

import (
	"testing"
	"time"

	"stride/internal/config"
	"stride/internal/identity"
	"stride/internal/store"
)

var raceDate = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func normalizedFrom(t *testing.T, name, location string, age int, gender string) identity.Normalized {
	t.Helper()
	return identity.Normalize(identity.Raw{
		Name:     name,
		Location: location,
		Age:      age,
		Gender:   gender,
		RaceDate: raceDate,
	})
}

func storedRunner(name, city, state string, birthYear int) *store.Runner {
	full, tokens := identity.NormalizeName(name)
	runner := &store.Runner{
		ID:                 1,
		Name:               name,
		NormalizedName:     full,
		City:               city,
		State:              state,
		BirthYear:          birthYear,
		MatchingConfidence: 70,
	}
	if len(tokens) > 0 {
		runner.FirstToken = tokens[0]
		runner.LastToken = tokens[len(tokens)-1]
	}
	return runner
}

func hasReason(reasons []string, want string) bool {
	for _, reason := range reasons {
		if reason == want {
			return true
		}
	}
	return false
}

func TestScoreMiddleInitialAgainstFullName(t *testing.T) {
	scorer := NewScorer(config.Default().Matching)

	raw := normalizedFrom(t, "Robert J. Smith", "Austin, TX", 34, "")
	runner := storedRunner("Robert Smith", "austin", "TX", 1992)
	runner.AlternateNames = []string{"bob smith"}

	score := scorer.Score(raw, runner, raceDate)

	if score.Name != 95 {
		t.Errorf("name score = %d, want 95", score.Name)
	}
	if score.Location != 100 {
		t.Errorf("location score = %d, want 100", score.Location)
	}
	if score.Age != 100 {
		t.Errorf("age score = %d, want 100", score.Age)
	}
	if score.Total < 90 {
		t.Errorf("total = %d, want >= 90", score.Total)
	}
	for _, want := range []string{"name_similar", "city_match", "exact_age"} {
		if !hasReason(score.Reasons, want) {
			t.Errorf("reasons %v missing %q", score.Reasons, want)
		}
	}
}

func TestScoreAbbreviatedNameDifferentCity(t *testing.T) {
	scorer := NewScorer(config.Default().Matching)

	raw := normalizedFrom(t, "R. Smith", "Dallas, TX", 36, "")
	runner := storedRunner("Robert Smith", "austin", "TX", 1992)

	score := scorer.Score(raw, runner, raceDate)

	if score.Total < 40 || score.Total >= 90 {
		t.Errorf("total = %d, want review band [40,90)", score.Total)
	}
	if !hasReason(score.Reasons, "state_match") {
		t.Errorf("reasons %v missing state_match", score.Reasons)
	}
	if hasReason(score.Reasons, "city_match") {
		t.Errorf("reasons %v must not contain city_match", score.Reasons)
	}
	if hasReason(score.Reasons, "exact_age") {
		t.Errorf("reasons %v must not contain exact_age", score.Reasons)
	}
}

func TestScoreExactMatchEverywhere(t *testing.T) {
	scorer := NewScorer(config.Default().Matching)

	raw := normalizedFrom(t, "Jane Doe", "Portland, OR", 29, "F")
	runner := storedRunner("Jane Doe", "portland", "OR", 1997)
	runner.Gender = "F"

	score := scorer.Score(raw, runner, raceDate)

	if score.Name != 100 {
		t.Errorf("name score = %d, want 100", score.Name)
	}
	if !hasReason(score.Reasons, "name_exact") {
		t.Errorf("reasons %v missing name_exact", score.Reasons)
	}
	if !hasReason(score.Reasons, "gender_match") {
		t.Errorf("reasons %v missing gender_match", score.Reasons)
	}
	if score.Total < 90 {
		t.Errorf("total = %d, want >= 90", score.Total)
	}
}

func TestScoreAlternateNameMonotonicity(t *testing.T) {
	scorer := NewScorer(config.Default().Matching)

	raw := normalizedFrom(t, "Bobby Smith", "", 0, "")
	runner := storedRunner("Robert Smith", "", "", 0)

	before := scorer.Score(raw, runner, raceDate)

	runner.AlternateNames = []string{"bobby smith"}
	after := scorer.Score(raw, runner, raceDate)

	if after.Name < before.Name {
		t.Errorf("name score dropped from %d to %d after adding alternate", before.Name, after.Name)
	}
	if after.Name != 100 {
		t.Errorf("name score = %d, want 100 for alternate match", after.Name)
	}
	if !hasReason(after.Reasons, "alternate_name") {
		t.Errorf("reasons %v missing alternate_name", after.Reasons)
	}
}

func TestScoreMissingFieldsAreNeutral(t *testing.T) {
	scorer := NewScorer(config.Default().Matching)

	raw := normalizedFrom(t, "Jane Doe", "", 0, "")
	runner := storedRunner("Jane Doe", "", "", 0)

	score := scorer.Score(raw, runner, raceDate)

	if score.Location != 50 || score.Age != 50 || score.Gender != 50 {
		t.Errorf("neutral scores = loc %d, age %d, gender %d, want 50 each",
			score.Location, score.Age, score.Gender)
	}
}

func TestScoreGenderMismatch(t *testing.T) {
	scorer := NewScorer(config.Default().Matching)

	raw := normalizedFrom(t, "Chris Lee", "", 0, "F")
	runner := storedRunner("Chris Lee", "", "", 0)
	runner.Gender = "M"

	score := scorer.Score(raw, runner, raceDate)
	if score.Gender != 0 {
		t.Errorf("gender score = %d, want 0", score.Gender)
	}
}

func TestScoreAgeDegradesLinearly(t *testing.T) {
	scorer := NewScorer(config.Default().Matching)
	runner := storedRunner("Sam Green", "", "", 1986) // age 40 at race date

	cases := []struct {
		age  int
		want int
	}{
		{40, 100},
		{41, 100}, // within self-reported tolerance
		{42, 50},
		{43, 0},
		{45, 0},
	}
	for _, tc := range cases {
		raw := normalizedFrom(t, "Sam Green", "", tc.age, "")
		score := scorer.Score(raw, runner, raceDate)
		if score.Age != tc.want {
			t.Errorf("age %d: score = %d, want %d", tc.age, score.Age, tc.want)
		}
	}
}

func TestTokenOverlapIgnoresUnmatchedInitials(t *testing.T) {
	cases := []struct {
		raw       string
		candidate string
		want      int
	}{
		{"robert j smith", "robert smith", 95},
		{"r smith", "robert smith", 71},
		{"mary jones", "robert smith", 0},
		{"anne marie hall", "anne hall", 63},
	}
	for _, tc := range cases {
		_, rawTokens := identity.NormalizeName(tc.raw)
		_, candTokens := identity.NormalizeName(tc.candidate)
		if got := tokenOverlap(rawTokens, candTokens); got != tc.want {
			t.Errorf("overlap(%q, %q) = %d, want %d", tc.raw, tc.candidate, got, tc.want)
		}
	}
}

func TestRankCandidatesTieBreaks(t *testing.T) {
	high := Candidate{Runner: &store.Runner{ID: 3, MatchingConfidence: 80, ResultCount: 2}, Score: Score{Total: 75}}
	midConfidence := Candidate{Runner: &store.Runner{ID: 2, MatchingConfidence: 70, ResultCount: 9}, Score: Score{Total: 75}}
	lowID := Candidate{Runner: &store.Runner{ID: 1, MatchingConfidence: 70, ResultCount: 9}, Score: Score{Total: 75}}

	candidates := []Candidate{midConfidence, lowID, high}
	rankCandidates(candidates)

	wantOrder := []int64{3, 1, 2}
	for i, want := range wantOrder {
		if candidates[i].Runner.ID != want {
			t.Fatalf("position %d = runner %d, want %d", i, candidates[i].Runner.ID, want)
		}
	}
}

func TestDecidePolicy(t *testing.T) {
	policy := PolicyFromConfig(config.Default().Matching)

	if outcome, _ := policy.Decide(nil); outcome != OutcomeNewIdentity {
		t.Errorf("empty candidates = %q, want new_identity", outcome)
	}

	low := []Candidate{{Runner: &store.Runner{ID: 1}, Score: Score{Total: 30}}}
	if outcome, _ := policy.Decide(low); outcome != OutcomeNewIdentity {
		t.Errorf("low score = %q, want new_identity", outcome)
	}

	mid := []Candidate{{Runner: &store.Runner{ID: 1}, Score: Score{Total: 65}}}
	if outcome, best := policy.Decide(mid); outcome != OutcomePendingReview || best == nil {
		t.Errorf("mid score = %q, want pending_review with candidate", outcome)
	}

	clear := []Candidate{
		{Runner: &store.Runner{ID: 1}, Score: Score{Total: 95}},
		{Runner: &store.Runner{ID: 2}, Score: Score{Total: 45}},
	}
	if outcome, best := policy.Decide(clear); outcome != OutcomeAutoMatched || best.Runner.ID != 1 {
		t.Errorf("clear winner = %q, want auto_matched runner 1", outcome)
	}

	tied := []Candidate{
		{Runner: &store.Runner{ID: 1}, Score: Score{Total: 95}},
		{Runner: &store.Runner{ID: 2}, Score: Score{Total: 90}},
	}
	if outcome, _ := policy.Decide(tied); outcome != OutcomePendingReview {
		t.Errorf("tied high scores = %q, want pending_review", outcome)
	}

	tiedBelowReview := []Candidate{
		{Runner: &store.Runner{ID: 1}, Score: Score{Total: 95}},
		{Runner: &store.Runner{ID: 2}, Score: Score{Total: 35}},
	}
	if outcome, _ := policy.Decide(tiedBelowReview); outcome != OutcomeAutoMatched {
		t.Errorf("runner-up below review threshold = %q, want auto_matched", outcome)
	}
}
