package analytics

import "time"

// HistoryEntry is one graded attempt appended to the user's history log.
// Entries are immutable once appended; the log is chronological, oldest
// first. Cumulative is nil when the snapshot read failed for this attempt:
// an absent block is recoverable, wrong totals frozen into the log are not.
type HistoryEntry struct {
	TestAttemptID string             `json:"test_attempt_id"`
	Timestamp     time.Time          `json:"timestamp"`
	SubjectScores map[string]float64 `json:"subject_scores"`
	Accuracy      float64            `json:"accuracy"`
	Percentile    float64            `json:"percentile"`
	Cumulative    *CumulativeStats   `json:"cumulative_stats,omitempty"`
}

// CumulativeStats mirrors the user's snapshot at the time of the entry.
// The accuracy and percentile fields are running sums, not means (legacy
// semantics preserved from the analytics table).
type CumulativeStats struct {
	AttemptCount  int                `json:"attempt_no"`
	SubjectTotals map[string]float64 `json:"subject_totals"`
	AccuracySum   float64            `json:"accuracy"`
	PercentileSum float64            `json:"percentile"`
}

// ChapterDelta is one chapter's contribution from a single graded attempt.
type ChapterDelta struct {
	Correct        int
	Incorrect      int
	Unattempted    int
	TotalQuestions int
}

// SubjectGroup maps declared-section positions to one subject bucket.
// Making the mapping explicit replaces the positional 0-1/2-3/4-5
// convention the aggregation historically hardcoded.
type SubjectGroup struct {
	Name     string
	Sections []int
}

// DefaultSubjectGroups reproduces the historical positional convention.
func DefaultSubjectGroups() []SubjectGroup {
	return []SubjectGroup{
		{Name: "physics", Sections: []int{0, 1}},
		{Name: "chemistry", Sections: []int{2, 3}},
		{Name: "mathematics", Sections: []int{4, 5}},
	}
}

// GroupNames returns the configured group names in declaration order.
func GroupNames(groups []SubjectGroup) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names
}
