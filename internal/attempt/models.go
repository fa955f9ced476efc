package attempt

// StudentTest is one submitted attempt row.
type StudentTest struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	TestID    string         `json:"test_id"`
	Answers   map[string]any `json:"answers"`
	ResultURL string         `json:"result_url"`
}

// TestRecord points at the published definition blob for a test.
type TestRecord struct {
	TestID string `json:"testID"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// AnalyticsSnapshot is the per-user running totals row. The legacy *_avg
// column names survive in the schema for compatibility, but every value
// here is a cumulative sum across attempts, never a mean.
type AnalyticsSnapshot struct {
	UserID        string
	AttemptCount  int
	SubjectTotals map[string]float64 // subject group name -> summed score
	AccuracySum   float64
	PercentileSum float64
	HistoryURL    string
}
