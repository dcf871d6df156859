package store

import (
	"strings"
	"time"
)

// ReviewStatus represents the lifecycle of a review entry.
type ReviewStatus string

const (
	StatusPending     ReviewStatus = "pending"
	StatusApproved    ReviewStatus = "approved"
	StatusRejected    ReviewStatus = "rejected"
	StatusAutoMatched ReviewStatus = "auto_matched"
)

var allStatuses = []ReviewStatus{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusAutoMatched,
}

var statusSet = func() map[ReviewStatus]struct{} {
	set := make(map[ReviewStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known review statuses.
func AllStatuses() []ReviewStatus {
	cp := make([]ReviewStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known ReviewStatus.
func ParseStatus(value string) (ReviewStatus, bool) {
	normalized := ReviewStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status can no longer change.
func (s ReviewStatus) IsTerminal() bool {
	return s != StatusPending
}

// Runner is a canonical runner identity. Identities are created on first
// unmatched result and mutated only through review approvals; they are
// never deleted.
type Runner struct {
	ID int64

	// Name is the display name as first imported; NormalizedName and the
	// token columns are the comparable forms candidate search keys on.
	Name           string
	NormalizedName string
	FirstToken     string
	LastToken      string

	Gender    string
	BirthYear int // 0 when unknown
	City      string
	State     string

	// AlternateNames holds confirmed raw name variants merged by approvals.
	AlternateNames []string

	// MatchingConfidence (0-100) is a derived value; recompute it through
	// review confidence updates, never mutate it ad hoc. ConfirmedMatches
	// backs deterministic recomputation.
	MatchingConfidence int
	ConfirmedMatches   int
	ResultCount        int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAlternate reports whether the identity already carries the given
// normalized name variant.
func (r *Runner) HasAlternate(normalized string) bool {
	for _, alt := range r.AlternateNames {
		if alt == normalized {
			return true
		}
	}
	return false
}

// Result is one imported race result after resolution. Provenance fields
// (source provider, source result id, raw name/location/age) are immutable.
type Result struct {
	ID             int64
	RunnerID       int64
	RaceID         string
	SourceProvider string
	SourceResultID string

	RawRunnerName string
	RawLocation   string
	RawAge        int // 0 when not provided

	FinishTime    string
	OverallPlace  int
	GenderPlace   int
	DivisionPlace int

	MatchingScore int
	NeedsReview   bool
	ImportBatchID string

	CreatedAt time.Time
}

// ReviewEntry is a persisted pending decision or auto-match audit record.
type ReviewEntry struct {
	ID int64

	// RunnerID references the proposed candidate; zero proposes a new
	// identity.
	RunnerID int64

	// RawRecord is the serialized raw result snapshot, decoded lazily at
	// review time.
	RawRecord string

	MatchScore   int
	MatchReasons []string
	Status       ReviewStatus

	SourceProvider string
	SourceResultID string
	RaceID         string

	ReviewedBy string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// ReviewFilter narrows ListReviewEntries. Zero values match everything.
type ReviewFilter struct {
	Status   ReviewStatus
	Provider string
	RaceID   string
	MinScore int
	Limit    int
}

// HealthSummary aggregates store counts for diagnostics.
type HealthSummary struct {
	Runners        int
	Results        int
	PendingReviews int
	ByStatus       map[ReviewStatus]int
}
