package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/pinco2025/prepAIred-backend/internal/contentstore"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
)

/* ---------------- In-memory fake satisfying contentstore.Store ---------------- */

type fakeDocStore struct {
	docs map[string]contentstore.Document
	// conflictsLeft makes the next N writes fail with a revision conflict.
	conflictsLeft int
	writeErr      error
	writes        int
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: map[string]contentstore.Document{}}
}

func (f *fakeDocStore) Read(_ context.Context, path string) (contentstore.Document, bool, error) {
	doc, ok := f.docs[path]
	return doc, ok, nil
}

func (f *fakeDocStore) Write(_ context.Context, path string, content []byte, rev string) (contentstore.Document, error) {
	f.writes++
	if f.writeErr != nil {
		return contentstore.Document{}, f.writeErr
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return contentstore.Document{}, contentstore.ErrRevisionConflict
	}
	cur, ok := f.docs[path]
	if ok && cur.Rev != rev {
		return contentstore.Document{}, contentstore.ErrRevisionConflict
	}
	if !ok && rev != "" {
		return contentstore.Document{}, contentstore.ErrRevisionConflict
	}
	doc := contentstore.Document{
		Content:     content,
		Rev:         fmt.Sprintf("rev-%d", f.writes),
		DownloadURL: "https://raw.example.com/" + path,
	}
	f.docs[path] = doc
	return doc, nil
}

// seed plants raw content with a fixed rev, bypassing the write checks.
func (f *fakeDocStore) seed(path, content string) {
	f.docs[path] = contentstore.Document{Content: []byte(content), Rev: "seeded"}
}

func testHistorian(docs contentstore.Store) *Historian {
	return &Historian{Docs: docs, Log: logger.NewNop()}
}

func entryFor(id string) HistoryEntry {
	return HistoryEntry{
		TestAttemptID: id,
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func readLog(t *testing.T, f *fakeDocStore, userID string) []HistoryEntry {
	t.Helper()
	doc, ok := f.docs[historyPath(userID)]
	if !ok {
		t.Fatal("history document missing")
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(doc.Content, &entries); err != nil {
		t.Fatalf("history document not a sequence: %v", err)
	}
	return entries
}

func TestHistorian_AppendOnly(t *testing.T) {
	f := newFakeDocStore()
	h := testHistorian(f)
	ctx := context.Background()

	const n = 4
	for i := 0; i < n; i++ {
		url, err := h.Append(ctx, "u1", entryFor(fmt.Sprintf("a%d", i)))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if url == "" {
			t.Fatalf("append %d returned no download url", i)
		}
	}

	entries := readLog(t, f, "u1")
	if len(entries) != n {
		t.Fatalf("log has %d entries, want %d", len(entries), n)
	}
	for i, e := range entries {
		if want := fmt.Sprintf("a%d", i); e.TestAttemptID != want {
			t.Errorf("entry %d = %s, want %s (call order must be preserved)", i, e.TestAttemptID, want)
		}
	}
}

func TestHistorian_MalformedContentResets(t *testing.T) {
	f := newFakeDocStore()
	f.seed(historyPath("u1"), `{"not":"a list"}`)
	h := testHistorian(f)

	if _, err := h.Append(context.Background(), "u1", entryFor("a1")); err != nil {
		t.Fatalf("append over malformed content: %v", err)
	}
	entries := readLog(t, f, "u1")
	if len(entries) != 1 || entries[0].TestAttemptID != "a1" {
		t.Errorf("log = %+v, want single fresh entry", entries)
	}
}

func TestHistorian_RetriesOnConflict(t *testing.T) {
	f := newFakeDocStore()
	f.conflictsLeft = 2
	h := testHistorian(f)

	if _, err := h.Append(context.Background(), "u1", entryFor("a1")); err != nil {
		t.Fatalf("append with transient conflicts: %v", err)
	}
	if f.writes != 3 {
		t.Errorf("writes = %d, want 3 (two conflicts then success)", f.writes)
	}
}

func TestHistorian_GivesUpAfterBoundedAttempts(t *testing.T) {
	f := newFakeDocStore()
	f.conflictsLeft = 10
	h := testHistorian(f)

	if _, err := h.Append(context.Background(), "u1", entryFor("a1")); err == nil {
		t.Fatal("append should fail once retries are exhausted")
	}
	if f.writes != mergeAttempts {
		t.Errorf("writes = %d, want %d", f.writes, mergeAttempts)
	}
}
