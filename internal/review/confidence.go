package review

import "math"

// Confidence bounds for identities with at least one confirmed match. The
// floor keeps a run of low-scoring approvals from dragging an identity into
// never-auto-matching territory; the ceiling is the scale maximum.
const (
	confidenceFloor   = 50
	confidenceCeiling = 100
)

// NextConfidence blends a confirmed match's score into the identity's
// rolling confidence as a bounded moving average. confirmedBefore is the
// count of previously confirmed matches, so the first approval averages the
// seed confidence with the match score and later approvals move it less.
// Deterministic: replaying the same approvals in order yields the same value.
func NextConfidence(current, matchScore, confirmedBefore int) int {
	weight := float64(confirmedBefore + 2)
	next := float64(current) + (float64(matchScore)-float64(current))/weight

	blended := int(math.Round(next))
	if blended < confidenceFloor {
		return confidenceFloor
	}
	if blended > confidenceCeiling {
		return confidenceCeiling
	}
	return blended
}
