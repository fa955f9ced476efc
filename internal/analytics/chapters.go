package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pinco2025/prepAIred-backend/internal/contentstore"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
)

// ChapterStat is one chapter's cumulative counters. Attempted is always
// recomputed as Correct+Incorrect at merge time, never accumulated
// separately, so it cannot drift.
type ChapterStat struct {
	Code           string `json:"-"`
	Attempted      int    `json:"attempted"`
	Unattempted    int    `json:"unattempted"`
	Correct        int    `json:"correct"`
	Incorrect      int    `json:"incorrect"`
	TotalQuestions int    `json:"total_questions"`
}

// ChapterStatsDocument is the per-user chapter mapping, kept sorted
// ascending by attempt count so consumers can render the least-practiced
// chapters first without sorting client-side. Order is significant, so
// the JSON object is marshaled and parsed positionally.
type ChapterStatsDocument struct {
	Chapters    []ChapterStat
	LastUpdated time.Time
}

func (d ChapterStatsDocument) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"chapters":{`)
	for i, ch := range d.Chapters {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ch.Code)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ch)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`},"last_updated":`)
	ts, err := json.Marshal(d.LastUpdated)
	if err != nil {
		return nil, err
	}
	buf.Write(ts)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *ChapterStatsDocument) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		switch key {
		case "chapters":
			if err := d.decodeChapters(dec); err != nil {
				return err
			}
		case "last_updated":
			if err := dec.Decode(&d.LastUpdated); err != nil {
				return err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	return expectDelim(dec, '}')
}

func (d *ChapterStatsDocument) decodeChapters(dec *json.Decoder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	d.Chapters = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		code, _ := keyTok.(string)
		var ch ChapterStat
		if err := dec.Decode(&ch); err != nil {
			return err
		}
		ch.Code = code
		d.Chapters = append(d.Chapters, ch)
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("chapter stats: expected %q, got %v", want, tok)
	}
	return nil
}

// merge folds deltas into the document, applying chapter codes in sorted
// order so first-seen insertion is deterministic, then stable-sorts by
// the recomputed attempt count.
func (d *ChapterStatsDocument) merge(deltas map[string]ChapterDelta, now time.Time) {
	index := make(map[string]int, len(d.Chapters))
	for i, ch := range d.Chapters {
		index[ch.Code] = i
	}

	codes := make([]string, 0, len(deltas))
	for code := range deltas {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		i, ok := index[code]
		if !ok {
			d.Chapters = append(d.Chapters, ChapterStat{Code: code})
			i = len(d.Chapters) - 1
			index[code] = i
		}
		delta := deltas[code]
		ch := &d.Chapters[i]
		ch.Correct += delta.Correct
		ch.Incorrect += delta.Incorrect
		ch.Unattempted += delta.Unattempted
		ch.TotalQuestions += delta.TotalQuestions
	}
	for i := range d.Chapters {
		d.Chapters[i].Attempted = d.Chapters[i].Correct + d.Chapters[i].Incorrect
	}
	sort.SliceStable(d.Chapters, func(i, j int) bool {
		return d.Chapters[i].Attempted < d.Chapters[j].Attempted
	})
	d.LastUpdated = now
}

// ChapterMerger folds per-attempt chapter deltas into the running
// per-user chapter stats document.
type ChapterMerger struct {
	Docs contentstore.Store
	Log  *logger.Logger
	Now  func() time.Time
}

func chapterStatsPath(userID string) string {
	return "chapter_stats/" + userID + ".json"
}

func (m *ChapterMerger) Merge(ctx context.Context, userID string, deltas map[string]ChapterDelta) (ChapterStatsDocument, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	path := chapterStatsPath(userID)

	var lastErr error
	for attempt := 0; attempt < mergeAttempts; attempt++ {
		raw, ok, err := m.Docs.Read(ctx, path)
		if err != nil {
			return ChapterStatsDocument{}, fmt.Errorf("chapter stats read: %w", err)
		}
		var doc ChapterStatsDocument
		if ok {
			if err := json.Unmarshal(raw.Content, &doc); err != nil {
				m.Log.Warn("chapter stats document malformed, resetting",
					"user_id", userID, "error", err)
				doc = ChapterStatsDocument{}
			}
		}

		doc.merge(deltas, now().UTC())

		content, err := json.MarshalIndent(doc, "", "    ")
		if err != nil {
			return ChapterStatsDocument{}, err
		}
		if _, err := m.Docs.Write(ctx, path, content, raw.Rev); err == nil {
			return doc, nil
		} else if !errors.Is(err, contentstore.ErrRevisionConflict) {
			return ChapterStatsDocument{}, fmt.Errorf("chapter stats write: %w", err)
		} else {
			lastErr = err
		}
	}
	return ChapterStatsDocument{}, fmt.Errorf("chapter stats merge gave up after %d attempts: %w", mergeAttempts, lastErr)
}
