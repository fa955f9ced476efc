// Package topics loads the static chapter -> topic lookup table consumed
// by the scoring engine's topic-tag aggregation.
package topics

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pinco2025/prepAIred-backend/internal/scoring"
)

// Load reads the lookup file once at startup. An empty path yields an
// empty map: scoring then skips topic aggregation entirely, which is the
// documented non-fatal behavior for unknown chapters.
func Load(path string) (scoring.TopicMap, error) {
	if path == "" {
		return scoring.TopicMap{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topic map: %w", err)
	}
	var m scoring.TopicMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("topic map %s: %w", path, err)
	}
	return m, nil
}
