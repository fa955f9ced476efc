package analytics

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/pinco2025/prepAIred-backend/internal/attempt"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
	"github.com/pinco2025/prepAIred-backend/internal/scoring"
)

/* ---------------- Fake row store and result fetcher ---------------- */

type fakeAttemptStore struct {
	tests      map[string]attempt.StudentTest
	snapshots  map[string]attempt.AnalyticsSnapshot
	getErr     error
	upsertErr  error
	historyErr error
	upserts    int
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		tests:     map[string]attempt.StudentTest{},
		snapshots: map[string]attempt.AnalyticsSnapshot{},
	}
}

func (f *fakeAttemptStore) GetStudentTest(_ context.Context, id string) (attempt.StudentTest, error) {
	st, ok := f.tests[id]
	if !ok {
		return attempt.StudentTest{}, attempt.ErrStudentTestNotFound
	}
	return st, nil
}

func (f *fakeAttemptStore) GetAnalytics(_ context.Context, userID string) (attempt.AnalyticsSnapshot, bool, error) {
	if f.getErr != nil {
		return attempt.AnalyticsSnapshot{}, false, f.getErr
	}
	snap, ok := f.snapshots[userID]
	return snap, ok, nil
}

func (f *fakeAttemptStore) UpsertAnalytics(_ context.Context, snap attempt.AnalyticsSnapshot) error {
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.snapshots[snap.UserID] = snap
	return nil
}

func (f *fakeAttemptStore) SetHistoryURL(_ context.Context, userID, url string) error {
	if f.historyErr != nil {
		return f.historyErr
	}
	snap := f.snapshots[userID]
	snap.UserID = userID
	snap.HistoryURL = url
	f.snapshots[userID] = snap
	return nil
}

type fakeResultFetcher struct {
	results map[string]scoring.ScoreResult
	err     error
}

func (f *fakeResultFetcher) Fetch(_ context.Context, url string) (scoring.ScoreResult, error) {
	if f.err != nil {
		return scoring.ScoreResult{}, f.err
	}
	res, ok := f.results[url]
	if !ok {
		return scoring.ScoreResult{}, errors.New("result document not found: " + url)
	}
	return res, nil
}

func sampleResult() scoring.ScoreResult {
	return scoring.ScoreResult{
		TestID:      "t1",
		Anchor99ile: 200,
		Sections: []scoring.Section{
			{Name: "Physics A"}, {Name: "Physics B"},
			{Name: "Chemistry A"}, {Name: "Chemistry B"},
			{Name: "Maths A"}, {Name: "Maths B"},
		},
		SectionScores: map[string]*scoring.Aggregate{
			"Physics A":   {Score: 12},
			"Physics B":   {Score: 4},
			"Chemistry A": {Score: 8},
			"Chemistry B": {Score: -1},
			"Maths A":     {Score: 16},
			"Maths B":     {Score: 0},
		},
		ChapterScores: map[string]*scoring.Aggregate{
			"Optics": {Score: 8, Correct: 2, Incorrect: 1, Unattempted: 1, TotalQuestions: 4},
		},
		TotalStats: scoring.TotalStats{
			TotalScore:       39,
			TotalAttempted:   20,
			TotalCorrect:     12,
			TotalWrong:       8,
			TotalUnattempted: 10,
			TotalQuestions:   30,
		},
	}
}

func newTestService(store *fakeAttemptStore, docs *fakeDocStore, results *fakeResultFetcher) *Service {
	return &Service{
		Attempts: store,
		Results:  results,
		History:  &Historian{Docs: docs, Log: logger.NewNop()},
		Chapters: &ChapterMerger{Docs: docs, Log: logger.NewNop(), Now: fixedNow},
		Now:      fixedNow,
		Log:      logger.NewNop(),
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestProcessAttempt_FirstAttempt(t *testing.T) {
	store := newFakeAttemptStore()
	store.tests["st1"] = attempt.StudentTest{ID: "st1", UserID: "u1", TestID: "t1", ResultURL: "res://st1"}
	results := &fakeResultFetcher{results: map[string]scoring.ScoreResult{"res://st1": sampleResult()}}
	docs := newFakeDocStore()
	svc := newTestService(store, docs, results)

	out, err := svc.ProcessAttempt(context.Background(), "st1")
	if err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", out.Warnings)
	}
	if out.AttemptCount != 1 {
		t.Errorf("attempt_no = %d, want 1", out.AttemptCount)
	}
	if !almostEqual(out.Accuracy, 60) {
		t.Errorf("accuracy = %v, want 60 (12 correct of 20 attempted)", out.Accuracy)
	}
	if !almostEqual(out.Subjects["physics"], 16) || !almostEqual(out.Subjects["chemistry"], 7) || !almostEqual(out.Subjects["mathematics"], 16) {
		t.Errorf("subjects = %v, want section pairs summed", out.Subjects)
	}
	if want := scoring.EstimatePercentile(39, 200); !almostEqual(out.Percentile, want) {
		t.Errorf("percentile = %v, want %v", out.Percentile, want)
	}

	snap := store.snapshots["u1"]
	if snap.AttemptCount != 1 || !almostEqual(snap.AccuracySum, out.Accuracy) {
		t.Errorf("snapshot = %+v, want first-attempt totals", snap)
	}
	if snap.HistoryURL == "" || snap.HistoryURL != out.HistoryURL {
		t.Errorf("history url not recorded: snap=%q out=%q", snap.HistoryURL, out.HistoryURL)
	}
	if len(readLog(t, docs, "u1")) != 1 {
		t.Error("history log should hold one entry")
	}
	if _, ok := docs.docs[chapterStatsPath("u1")]; !ok {
		t.Error("chapter stats document missing")
	}
}

func TestProcessAttempt_TotalsAccumulate(t *testing.T) {
	store := newFakeAttemptStore()
	store.tests["st1"] = attempt.StudentTest{ID: "st1", UserID: "u1", ResultURL: "res://a"}
	store.tests["st2"] = attempt.StudentTest{ID: "st2", UserID: "u1", ResultURL: "res://a"}
	results := &fakeResultFetcher{results: map[string]scoring.ScoreResult{"res://a": sampleResult()}}
	docs := newFakeDocStore()
	svc := newTestService(store, docs, results)
	ctx := context.Background()

	first, err := svc.ProcessAttempt(ctx, "st1")
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	second, err := svc.ProcessAttempt(ctx, "st2")
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if second.AttemptCount != 2 {
		t.Errorf("attempt_no = %d, want 2", second.AttemptCount)
	}

	snap := store.snapshots["u1"]
	if !almostEqual(snap.AccuracySum, first.Accuracy+second.Accuracy) {
		t.Errorf("accuracy sum = %v, want running total, not mean", snap.AccuracySum)
	}
	if !almostEqual(snap.SubjectTotals["physics"], 32) {
		t.Errorf("physics total = %v, want 32 across two identical attempts", snap.SubjectTotals["physics"])
	}
	entries := readLog(t, docs, "u1")
	if len(entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(entries))
	}
	if entries[1].Cumulative.AttemptCount != 2 {
		t.Errorf("cumulative attempt_no in log = %d, want 2", entries[1].Cumulative.AttemptCount)
	}
}

func TestProcessAttempt_ZeroAttemptedMeansZeroAccuracy(t *testing.T) {
	res := sampleResult()
	res.TotalStats = scoring.TotalStats{TotalUnattempted: 30, TotalQuestions: 30}
	store := newFakeAttemptStore()
	store.tests["st1"] = attempt.StudentTest{ID: "st1", UserID: "u1", ResultURL: "res://a"}
	results := &fakeResultFetcher{results: map[string]scoring.ScoreResult{"res://a": res}}
	svc := newTestService(store, newFakeDocStore(), results)

	out, err := svc.ProcessAttempt(context.Background(), "st1")
	if err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}
	if out.Accuracy != 0 {
		t.Errorf("accuracy = %v, want 0 when nothing was attempted", out.Accuracy)
	}
}

func TestProcessAttempt_FatalErrors(t *testing.T) {
	store := newFakeAttemptStore()
	store.tests["no-user"] = attempt.StudentTest{ID: "no-user", ResultURL: "res://a"}
	store.tests["no-result"] = attempt.StudentTest{ID: "no-result", UserID: "u1"}
	store.tests["bad-fetch"] = attempt.StudentTest{ID: "bad-fetch", UserID: "u1", ResultURL: "res://missing"}
	svc := newTestService(store, newFakeDocStore(), &fakeResultFetcher{results: map[string]scoring.ScoreResult{}})

	for _, id := range []string{"absent", "no-user", "no-result", "bad-fetch"} {
		if _, err := svc.ProcessAttempt(context.Background(), id); err == nil {
			t.Errorf("attempt %q: expected an error", id)
		}
	}
}

func TestProcessAttempt_PersistenceFailuresAreWarnings(t *testing.T) {
	store := newFakeAttemptStore()
	store.tests["st1"] = attempt.StudentTest{ID: "st1", UserID: "u1", ResultURL: "res://a"}
	store.upsertErr = errors.New("row store down")
	results := &fakeResultFetcher{results: map[string]scoring.ScoreResult{"res://a": sampleResult()}}
	docs := newFakeDocStore()
	docs.writeErr = errors.New("content store down")
	svc := newTestService(store, docs, results)

	out, err := svc.ProcessAttempt(context.Background(), "st1")
	if err != nil {
		t.Fatalf("persistence failures must not fail the call: %v", err)
	}
	if len(out.Warnings) != 3 {
		t.Fatalf("warnings = %v, want snapshot, history and chapter_stats", out.Warnings)
	}
	for i, prefix := range []string{"snapshot:", "history:", "chapter_stats:"} {
		if !strings.HasPrefix(out.Warnings[i], prefix) {
			t.Errorf("warning %d = %q, want prefix %q", i, out.Warnings[i], prefix)
		}
	}
	// The attempt was still scored.
	if out.AttemptCount != 1 || out.Accuracy == 0 {
		t.Errorf("outcome = %+v, want scored values despite warnings", out)
	}
}

func TestProcessAttempt_SnapshotReadFailureOmitsCumulative(t *testing.T) {
	store := newFakeAttemptStore()
	store.tests["st1"] = attempt.StudentTest{ID: "st1", UserID: "u1", ResultURL: "res://a"}
	store.getErr = errors.New("row store down")
	results := &fakeResultFetcher{results: map[string]scoring.ScoreResult{"res://a": sampleResult()}}
	docs := newFakeDocStore()
	svc := newTestService(store, docs, results)

	out, err := svc.ProcessAttempt(context.Background(), "st1")
	if err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}
	if len(out.Warnings) != 1 || !strings.HasPrefix(out.Warnings[0], "snapshot:") {
		t.Fatalf("warnings = %v, want only the snapshot step", out.Warnings)
	}
	if store.upserts != 0 {
		t.Error("unknown running totals must not be written back")
	}
	entries := readLog(t, docs, "u1")
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	if entries[0].Cumulative != nil {
		t.Errorf("cumulative = %+v, want omitted when the snapshot read failed", entries[0].Cumulative)
	}
	if entries[0].TestAttemptID != "st1" || entries[0].Accuracy != out.Accuracy {
		t.Errorf("entry = %+v, want per-attempt values intact", entries[0])
	}
}

func TestProcessAttempt_HistoryURLFailureIsIsolated(t *testing.T) {
	store := newFakeAttemptStore()
	store.tests["st1"] = attempt.StudentTest{ID: "st1", UserID: "u1", ResultURL: "res://a"}
	store.historyErr = errors.New("column gone")
	results := &fakeResultFetcher{results: map[string]scoring.ScoreResult{"res://a": sampleResult()}}
	docs := newFakeDocStore()
	svc := newTestService(store, docs, results)

	out, err := svc.ProcessAttempt(context.Background(), "st1")
	if err != nil {
		t.Fatalf("ProcessAttempt: %v", err)
	}
	if len(out.Warnings) != 1 || !strings.HasPrefix(out.Warnings[0], "history_url:") {
		t.Errorf("warnings = %v, want only the history_url step", out.Warnings)
	}
	if out.HistoryURL == "" {
		t.Error("history document itself was written, outcome should carry its url")
	}
}

func TestValidateGroups(t *testing.T) {
	if err := ValidateGroups(DefaultSubjectGroups()); err != nil {
		t.Errorf("default groups rejected: %v", err)
	}
	four := []SubjectGroup{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	if !errors.Is(ValidateGroups(four), ErrTooManyGroups) {
		t.Error("four groups should be rejected")
	}
}
