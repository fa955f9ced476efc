package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FSStore keeps documents under a base directory for offline and dev use.
// The revision token is the hex sha256 of the current content; the
// check-and-set is guarded by an in-process lock, which is enough for the
// single-process offline mode this driver serves.
type FSStore struct {
	mu   sync.Mutex
	base string
}

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Read(_ context.Context, path string) (Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(path)
}

func (s *FSStore) Write(_ context.Context, path string, content []byte, rev string) (Document, error) {
	if path == "" {
		return Document{}, errors.New("contentstore: empty path")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, err := s.readLocked(path)
	if err != nil {
		return Document{}, err
	}
	if ok && cur.Rev != rev {
		return Document{}, fmt.Errorf("write %s: %w", path, ErrRevisionConflict)
	}
	if !ok && rev != "" {
		return Document{}, fmt.Errorf("write %s: %w", path, ErrRevisionConflict)
	}

	dst, err := s.join(path)
	if err != nil {
		return Document{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Document{}, err
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return Document{}, err
	}
	return Document{Content: content, Rev: contentRev(content), DownloadURL: s.fileURL(path)}, nil
}

func (s *FSStore) readLocked(path string) (Document, bool, error) {
	src, err := s.join(path)
	if err != nil {
		return Document{}, false, err
	}
	content, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, false, nil
		}
		return Document{}, false, err
	}
	return Document{Content: content, Rev: contentRev(content), DownloadURL: s.fileURL(path)}, true, nil
}

// join resolves path under the base directory. Paths whose ".." segments
// would resolve outside base are rejected, so the driver cannot touch
// files it does not own no matter what path it is handed.
func (s *FSStore) join(path string) (string, error) {
	dst := filepath.Join(s.base, path)
	rel, err := filepath.Rel(s.base, dst)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("contentstore: path %q escapes the store", path)
	}
	return dst, nil
}

func (s *FSStore) fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.Join(s.base, path)}
	return u.String()
}

func contentRev(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
