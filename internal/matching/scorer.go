package matching

import (
	"math"
	"sort"
	"strings"
	"time"

	"stride/internal/config"
	"stride/internal/identity"
	"stride/internal/store"
)

// Attribute weights. They sum to 100 so the weighted combination stays on
// the 0-100 scale.
const (
	weightName       = 45
	weightLocation   = 20
	weightAge        = 20
	weightGender     = 10
	weightConfidence = 5
)

// neutralScore is what an attribute contributes when either side has no
// data. Missing information is neither evidence for nor against a match.
const neutralScore = 50

// partialNameCap keeps token-overlap scores below the exact-match score so
// an exact or confirmed-alternate name always outranks a partial one.
const partialNameCap = 95

// Score is the result of comparing one raw record against one candidate.
type Score struct {
	Total   int
	Reasons []string

	Name       int
	Location   int
	Age        int
	Gender     int
	Confidence int
}

// Candidate pairs a stored identity with its score against the raw record.
// Ephemeral; review entries persist only the top candidate's id and score.
type Candidate struct {
	Runner *store.Runner
	Score  Score
}

// Scorer computes pairwise similarity between a normalized raw record and a
// stored identity. Stateless and safe for concurrent use.
type Scorer struct {
	maxAgeDiff int
	strong     int
}

// NewScorer builds a scorer from the matching configuration.
func NewScorer(cfg config.Matching) *Scorer {
	return &Scorer{
		maxAgeDiff: cfg.MaxAgeDiffYears,
		strong:     cfg.StrongMatchThreshold,
	}
}

// Score compares the normalized record against a candidate identity. The
// race date converts the candidate's birth year into an age for comparison.
func (s *Scorer) Score(n identity.Normalized, runner *store.Runner, raceDate time.Time) Score {
	var score Score

	var nameReason string
	score.Name, nameReason = s.scoreName(n, runner)
	if nameReason != "" {
		score.Reasons = append(score.Reasons, nameReason)
	}

	var locationReason string
	score.Location, locationReason = scoreLocation(n, runner)
	if locationReason != "" {
		score.Reasons = append(score.Reasons, locationReason)
	}

	var ageReason string
	score.Age, ageReason = s.scoreAge(n, runner, raceDate)
	if ageReason != "" {
		score.Reasons = append(score.Reasons, ageReason)
	}

	score.Gender = scoreGender(n.Gender, runner.Gender)
	if score.Gender >= s.strong && score.Gender == 100 {
		score.Reasons = append(score.Reasons, "gender_match")
	}

	score.Confidence = clampScore(runner.MatchingConfidence)
	if score.Confidence >= s.strong {
		score.Reasons = append(score.Reasons, "high_confidence")
	}

	weighted := weightName*score.Name +
		weightLocation*score.Location +
		weightAge*score.Age +
		weightGender*score.Gender +
		weightConfidence*score.Confidence
	score.Total = clampScore(int(math.Round(float64(weighted) / 100)))

	return score
}

// scoreName returns 100 for an exact normalized or confirmed-alternate
// match, otherwise an initial-aware token overlap capped below exact.
func (s *Scorer) scoreName(n identity.Normalized, runner *store.Runner) (int, string) {
	if n.FullName == "" || runner.NormalizedName == "" {
		return neutralScore, ""
	}
	if n.FullName == runner.NormalizedName {
		return 100, "name_exact"
	}
	if runner.HasAlternate(n.FullName) {
		return 100, "alternate_name"
	}

	best := tokenOverlap(n.Tokens, strings.Fields(runner.NormalizedName))
	for _, alt := range runner.AlternateNames {
		if overlap := tokenOverlap(n.Tokens, strings.Fields(alt)); overlap > best {
			best = overlap
		}
	}
	if best >= s.strong {
		return best, "name_similar"
	}
	return best, ""
}

// tokenOverlap is a Jaccard-style overlap over name tokens with special
// handling for initials: an initial matching a full token's first letter
// earns half credit, and an initial matching nothing is ignored entirely
// rather than counted against the union. "robert j smith" therefore scores
// the cap against "robert smith" while "r smith" lands lower.
func tokenOverlap(rawTokens, candidateTokens []string) int {
	if len(rawTokens) == 0 || len(candidateTokens) == 0 {
		return 0
	}

	usedRaw := make([]bool, len(rawTokens))
	usedCandidate := make([]bool, len(candidateTokens))
	var credits float64
	var pairs int

	// Full token matches first.
	for i, raw := range rawTokens {
		for j, cand := range candidateTokens {
			if usedCandidate[j] || raw != cand {
				continue
			}
			usedRaw[i] = true
			usedCandidate[j] = true
			credits++
			pairs++
			break
		}
	}

	// Initials against remaining full tokens, half credit each way.
	matchInitials := func(initials []string, usedInitials []bool, full []string, usedFull []bool) {
		for i, tok := range initials {
			if usedInitials[i] || len(tok) != 1 {
				continue
			}
			for j, cand := range full {
				if usedFull[j] || len(cand) < 2 || !strings.HasPrefix(cand, tok) {
					continue
				}
				usedInitials[i] = true
				usedFull[j] = true
				credits += 0.5
				pairs++
				break
			}
		}
	}
	matchInitials(rawTokens, usedRaw, candidateTokens, usedCandidate)
	matchInitials(candidateTokens, usedCandidate, rawTokens, usedRaw)

	union := pairs
	for i, tok := range rawTokens {
		if !usedRaw[i] && len(tok) > 1 {
			union++
		}
	}
	for j, tok := range candidateTokens {
		if !usedCandidate[j] && len(tok) > 1 {
			union++
		}
	}
	if union == 0 {
		return 0
	}

	scaled := int(math.Round(credits / float64(union) * partialNameCap))
	if scaled > partialNameCap {
		scaled = partialNameCap
	}
	return scaled
}

// scoreLocation compares city and state. A shared state with differing or
// unknown cities is still weak evidence, recorded as state_match even though
// it scores below the strong threshold.
func scoreLocation(n identity.Normalized, runner *store.Runner) (int, string) {
	if !n.HasLocation() || (runner.City == "" && runner.State == "") {
		return neutralScore, ""
	}
	if n.State != "" && runner.State != "" {
		if n.State != runner.State {
			return 0, ""
		}
		if n.City != "" && runner.City != "" && n.City == runner.City {
			return 100, "city_match"
		}
		return 50, "state_match"
	}
	// States not comparable; fall back to the cities alone.
	if n.City != "" && runner.City != "" {
		if n.City == runner.City {
			return 100, "city_match"
		}
		return 0, ""
	}
	return neutralScore, ""
}

func (s *Scorer) scoreAge(n identity.Normalized, runner *store.Runner, raceDate time.Time) (int, string) {
	candidateAge := identity.AgeAtRace(runner.BirthYear, raceDate)
	if !n.HasAge() || candidateAge == 0 {
		return neutralScore, ""
	}

	diff := n.AgeEstimate - candidateAge
	if diff < 0 {
		diff = -diff
	}

	tolerance := n.AgeTolerance
	if diff <= tolerance {
		if diff == 0 {
			return 100, "exact_age"
		}
		return 100, "age_close"
	}
	if diff >= s.maxAgeDiff {
		return 0, ""
	}

	scaled := int(math.Round(100 * float64(s.maxAgeDiff-diff) / float64(s.maxAgeDiff-tolerance)))
	if scaled >= s.strong {
		return scaled, "age_close"
	}
	return scaled, ""
}

func scoreGender(raw identity.Gender, candidate string) int {
	if raw == identity.GenderUnknown || candidate == "" {
		return neutralScore
	}
	if string(raw) == candidate {
		return 100
	}
	return 0
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// rankCandidates orders candidates best first. Equal totals break on higher
// historical confidence, then more prior results, then lowest id so the
// ordering is deterministic.
func rankCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		if a.Runner.MatchingConfidence != b.Runner.MatchingConfidence {
			return a.Runner.MatchingConfidence > b.Runner.MatchingConfidence
		}
		if a.Runner.ResultCount != b.Runner.ResultCount {
			return a.Runner.ResultCount > b.Runner.ResultCount
		}
		return a.Runner.ID < b.Runner.ID
	})
}
