package contentstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFSStore_RoundTrip(t *testing.T) {
	st, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, ok, err := st.Read(ctx, "chapter_stats/u1.json"); err != nil || ok {
		t.Fatalf("fresh store read: ok=%v err=%v", ok, err)
	}

	doc, err := st.Write(ctx, "chapter_stats/u1.json", []byte(`{"a":1}`), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.Rev == "" {
		t.Fatal("create returned empty rev")
	}

	got, ok, err := st.Read(ctx, "chapter_stats/u1.json")
	if err != nil || !ok {
		t.Fatalf("read back: ok=%v err=%v", ok, err)
	}
	if got.Rev != doc.Rev {
		t.Errorf("rev changed on read: %q vs %q", got.Rev, doc.Rev)
	}
	if string(got.Content) != `{"a":1}` {
		t.Errorf("content = %q", got.Content)
	}

	// Update with the current rev succeeds and changes the rev.
	doc2, err := st.Write(ctx, "chapter_stats/u1.json", []byte(`{"a":2}`), doc.Rev)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if doc2.Rev == doc.Rev {
		t.Error("rev did not change after content change")
	}
}

func TestFSStore_Conflicts(t *testing.T) {
	st, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	doc, err := st.Write(ctx, "x.json", []byte("one"), "")
	if err != nil {
		t.Fatal(err)
	}

	// Stale rev must not overwrite.
	if _, err := st.Write(ctx, "x.json", []byte("two"), "stale"); !errors.Is(err, ErrRevisionConflict) {
		t.Errorf("stale rev: err = %v, want ErrRevisionConflict", err)
	}
	// Create-without-rev against an existing document must not overwrite.
	if _, err := st.Write(ctx, "x.json", []byte("two"), ""); !errors.Is(err, ErrRevisionConflict) {
		t.Errorf("blind create: err = %v, want ErrRevisionConflict", err)
	}
	// The original content survived both attempts.
	got, _, err := st.Read(ctx, "x.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Content) != "one" || got.Rev != doc.Rev {
		t.Errorf("document mutated by failed writes: %q", got.Content)
	}
}

func TestFSStore_RejectsEscapingPaths(t *testing.T) {
	base := t.TempDir()
	st, err := NewFSStore(base)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, path := range []string{"../outside.json", "..", "a/../../outside.json"} {
		if _, err := st.Write(ctx, path, []byte("x"), ""); err == nil {
			t.Errorf("write %q: expected rejection", path)
		}
		if _, ok, err := st.Read(ctx, path); err == nil && ok {
			t.Errorf("read %q: expected rejection", path)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(base), "outside.json")); err == nil {
		t.Fatal("escaping write landed outside the store")
	}

	// Dotted segments that stay inside the base still resolve.
	if _, err := st.Write(ctx, "a/../inside.json", []byte("x"), ""); err != nil {
		t.Errorf("in-store path rejected: %v", err)
	}
}
