package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinco2025/prepAIred-backend/internal/attempt"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
	"github.com/pinco2025/prepAIred-backend/internal/scoring"
)

// AttemptStore is the narrow slice of the row store this service needs.
type AttemptStore interface {
	GetStudentTest(ctx context.Context, id string) (attempt.StudentTest, error)
	GetAnalytics(ctx context.Context, userID string) (attempt.AnalyticsSnapshot, bool, error)
	UpsertAnalytics(ctx context.Context, snap attempt.AnalyticsSnapshot) error
	SetHistoryURL(ctx context.Context, userID, url string) error
}

// ResultFetcher loads a persisted score result document from its URL.
type ResultFetcher interface {
	Fetch(ctx context.Context, url string) (scoring.ScoreResult, error)
}

// Service folds one graded attempt into the user's analytics: snapshot
// totals in the row store, history log, and chapter stats in the content
// store. The three persistence steps are independent: one failing never
// rolls back the others, so a retry of the whole pipeline must be deduped
// by attempt id upstream.
type Service struct {
	Attempts AttemptStore
	Results  ResultFetcher
	History  *Historian
	Chapters *ChapterMerger
	Groups   []SubjectGroup
	Now      func() time.Time
	Log      *logger.Logger
}

// Outcome reports what one ProcessAttempt call accomplished. Warnings
// lists persistence steps that failed after the attempt itself was
// successfully resolved and scored.
type Outcome struct {
	UserID       string             `json:"user_id"`
	AttemptCount int                `json:"attempt_no"`
	Accuracy     float64            `json:"accuracy"`
	Percentile   float64            `json:"percentile"`
	Subjects     map[string]float64 `json:"subject_scores"`
	HistoryURL   string             `json:"history_url,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// ProcessAttempt drives the full aggregation for one graded attempt. A
// returned error means the attempt could not be resolved or its result
// document could not be fetched; partial persistence failures come back
// as Outcome.Warnings instead.
func (s *Service) ProcessAttempt(ctx context.Context, testAttemptID string) (Outcome, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	st, err := s.Attempts.GetStudentTest(ctx, testAttemptID)
	if err != nil {
		return Outcome{}, err
	}
	if st.UserID == "" {
		return Outcome{}, fmt.Errorf("attempt %s: missing user id", testAttemptID)
	}
	if st.ResultURL == "" {
		return Outcome{}, fmt.Errorf("attempt %s: no result document yet", testAttemptID)
	}

	res, err := s.Results.Fetch(ctx, st.ResultURL)
	if err != nil {
		return Outcome{}, fmt.Errorf("attempt %s: %w", testAttemptID, err)
	}

	subjects := s.subjectScores(res)
	accuracy := 0.0
	if res.TotalStats.TotalAttempted > 0 {
		accuracy = float64(res.TotalStats.TotalCorrect) / float64(res.TotalStats.TotalAttempted) * 100
	}
	percentile := scoring.EstimatePercentile(res.TotalStats.TotalScore, res.Anchor99ile)

	// Snapshot update: cumulative sums, per legacy semantics. A failed
	// read leaves the running totals unknown, so the upsert is skipped
	// (writing totals rebuilt from zero would clobber the existing row).
	snap, _, readErr := s.Attempts.GetAnalytics(ctx, st.UserID)
	snap.UserID = st.UserID
	snap.AttemptCount++
	if snap.SubjectTotals == nil {
		snap.SubjectTotals = map[string]float64{}
	}
	for name, score := range subjects {
		snap.SubjectTotals[name] += score
	}
	snap.AccuracySum += accuracy
	snap.PercentileSum += percentile

	out := Outcome{
		UserID:       st.UserID,
		AttemptCount: snap.AttemptCount,
		Accuracy:     accuracy,
		Percentile:   percentile,
		Subjects:     subjects,
	}

	snapErr := readErr
	if snapErr == nil {
		snapErr = s.Attempts.UpsertAnalytics(ctx, snap)
	}
	if snapErr != nil {
		s.Log.Error("analytics snapshot update failed",
			"user_id", st.UserID, "attempt_id", testAttemptID, "error", snapErr)
		out.Warnings = append(out.Warnings, "snapshot: "+snapErr.Error())
	}

	entry := HistoryEntry{
		TestAttemptID: testAttemptID,
		Timestamp:     now().UTC(),
		SubjectScores: subjects,
		Accuracy:      accuracy,
		Percentile:    percentile,
	}
	// Only record running totals actually derived from the stored row;
	// entries are immutable, so a block built on a failed read would bake
	// wrong totals into the log forever.
	if readErr == nil {
		entry.Cumulative = &CumulativeStats{
			AttemptCount:  snap.AttemptCount,
			SubjectTotals: snap.SubjectTotals,
			AccuracySum:   snap.AccuracySum,
			PercentileSum: snap.PercentileSum,
		}
	}
	historyURL, histErr := s.History.Append(ctx, st.UserID, entry)
	if histErr != nil {
		s.Log.Error("history append failed",
			"user_id", st.UserID, "attempt_id", testAttemptID, "error", histErr)
		out.Warnings = append(out.Warnings, "history: "+histErr.Error())
	} else {
		out.HistoryURL = historyURL
		if err := s.Attempts.SetHistoryURL(ctx, st.UserID, historyURL); err != nil {
			s.Log.Error("history url update failed", "user_id", st.UserID, "error", err)
			out.Warnings = append(out.Warnings, "history_url: "+err.Error())
		}
	}

	if _, chErr := s.Chapters.Merge(ctx, st.UserID, chapterDeltas(res)); chErr != nil {
		s.Log.Error("chapter stats merge failed",
			"user_id", st.UserID, "attempt_id", testAttemptID, "error", chErr)
		out.Warnings = append(out.Warnings, "chapter_stats: "+chErr.Error())
	}

	s.Log.Info("attempt processed",
		"attempt_id", testAttemptID, "user_id", st.UserID,
		"attempt_no", out.AttemptCount, "warnings", len(out.Warnings))
	return out, nil
}

// subjectScores sums section scores into subject buckets using the
// configured position table. Section indexes past the declared list
// contribute nothing; sections not covered by any group are ignored.
func (s *Service) subjectScores(res scoring.ScoreResult) map[string]float64 {
	groups := s.Groups
	if len(groups) == 0 {
		groups = DefaultSubjectGroups()
	}
	out := make(map[string]float64, len(groups))
	for _, g := range groups {
		total := 0.0
		for _, idx := range g.Sections {
			if idx < 0 || idx >= len(res.Sections) {
				continue
			}
			if agg, ok := res.SectionScores[res.Sections[idx].Name]; ok {
				total += agg.Score
			}
		}
		out[g.Name] = total
	}
	return out
}

func chapterDeltas(res scoring.ScoreResult) map[string]ChapterDelta {
	deltas := make(map[string]ChapterDelta, len(res.ChapterScores))
	for code, agg := range res.ChapterScores {
		deltas[code] = ChapterDelta{
			Correct:        agg.Correct,
			Incorrect:      agg.Incorrect,
			Unattempted:    agg.Unattempted,
			TotalQuestions: agg.TotalQuestions,
		}
	}
	return deltas
}

// ValidateGroups rejects configurations the snapshot row cannot hold.
var ErrTooManyGroups = errors.New("analytics: more than three subject groups configured")

func ValidateGroups(groups []SubjectGroup) error {
	if len(groups) > 3 {
		return ErrTooManyGroups
	}
	return nil
}
