package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pinco2025/prepAIred-backend/internal/contentstore"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
)

// mergeAttempts bounds the read-modify-write loop on revision conflicts.
const mergeAttempts = 3

// Historian appends scoring events to per-user history documents in the
// content store.
type Historian struct {
	Docs contentstore.Store
	Log  *logger.Logger
}

func historyPath(userID string) string {
	return "user_analytics/" + userID + ".json"
}

// Append reads the user's history log, appends entry, and writes the full
// sequence back under the revision read. Malformed existing content is
// discarded and the log restarts at this entry: this log is non-critical
// and availability wins over strict integrity here.
func (h *Historian) Append(ctx context.Context, userID string, entry HistoryEntry) (string, error) {
	path := historyPath(userID)
	var lastErr error
	for attempt := 0; attempt < mergeAttempts; attempt++ {
		doc, ok, err := h.Docs.Read(ctx, path)
		if err != nil {
			return "", fmt.Errorf("history read: %w", err)
		}

		var entries []HistoryEntry
		if ok {
			if err := json.Unmarshal(doc.Content, &entries); err != nil {
				h.Log.Warn("history document malformed, resetting",
					"user_id", userID, "error", err)
				entries = nil
			}
		}
		entries = append(entries, entry)

		content, err := json.MarshalIndent(entries, "", "    ")
		if err != nil {
			return "", err
		}
		written, err := h.Docs.Write(ctx, path, content, doc.Rev)
		if err == nil {
			return written.DownloadURL, nil
		}
		if !errors.Is(err, contentstore.ErrRevisionConflict) {
			return "", fmt.Errorf("history write: %w", err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("history merge gave up after %d attempts: %w", mergeAttempts, lastErr)
}
