// Package contentstore is a read-modify-write client for a remote
// version-controlled file store. Every write must present the revision
// token obtained from the most recent read of that path; a stale token
// fails the write so callers can re-read and retry instead of losing a
// concurrent update.
package contentstore

import (
	"context"
	"errors"
	"fmt"
)

// Document is one versioned blob.
type Document struct {
	Content []byte
	// Rev is the optimistic-concurrency token (a content hash). Empty for
	// a document that does not exist yet.
	Rev string
	// DownloadURL is the public raw URL when the backend provides one.
	DownloadURL string
}

// Store is the narrow persistence interface the merge algorithms depend on.
type Store interface {
	// Read returns the document at path. A missing document is not an
	// error: ok is false and the returned document carries no revision.
	Read(ctx context.Context, path string) (doc Document, ok bool, err error)
	// Write replaces the document at path. rev must be the revision from
	// the latest read, or empty to create a new document. A mismatch
	// returns ErrRevisionConflict.
	Write(ctx context.Context, path string, content []byte, rev string) (Document, error)
}

// ErrRevisionConflict reports a stale revision token. The caller should
// re-read and merge before retrying.
var ErrRevisionConflict = errors.New("contentstore: revision conflict")

// TransientError wraps network and server-side failures that are safe to
// retry on read. Retrying a write after an ambiguous failure requires a
// fresh read first: the remote write may have landed.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("contentstore: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable after a fresh read.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
