package matching

import "stride/internal/config"

// Outcome is the terminal classification of one raw record.
type Outcome string

const (
	OutcomeAutoMatched   Outcome = "auto_matched"
	OutcomePendingReview Outcome = "pending_review"
	OutcomeNewIdentity   Outcome = "new_identity"
)

// Policy holds the acceptance thresholds. All values come from
// configuration; see config.Matching for their meaning.
type Policy struct {
	AutoAccept      int
	ReviewThreshold int
	TieBand         int
}

// PolicyFromConfig extracts the decision thresholds.
func PolicyFromConfig(cfg config.Matching) Policy {
	return Policy{
		AutoAccept:      cfg.AutoAcceptThreshold,
		ReviewThreshold: cfg.ReviewThreshold,
		TieBand:         cfg.TieBand,
	}
}

// Decide applies the acceptance policy to ranked candidates and returns the
// outcome plus the top candidate when one is referenced. The candidates must
// already be ordered by rankCandidates.
//
// A top score at or above the auto-accept threshold resolves without review
// unless a runner-up above the review threshold sits within the tie band,
// which makes the match ambiguous. Scores between the review and auto-accept
// thresholds queue for review. Anything below the review threshold, or an
// empty candidate set, creates a new identity.
func (p Policy) Decide(ranked []Candidate) (Outcome, *Candidate) {
	if len(ranked) == 0 {
		return OutcomeNewIdentity, nil
	}

	best := &ranked[0]
	if best.Score.Total < p.ReviewThreshold {
		return OutcomeNewIdentity, nil
	}

	ambiguous := false
	if len(ranked) > 1 {
		second := ranked[1]
		if second.Score.Total >= p.ReviewThreshold &&
			best.Score.Total-second.Score.Total <= p.TieBand {
			ambiguous = true
		}
	}

	if best.Score.Total >= p.AutoAccept && !ambiguous {
		return OutcomeAutoMatched, best
	}
	return OutcomePendingReview, best
}
