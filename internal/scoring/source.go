package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Source fetches test definitions and stored score results from their
// public URLs (raw files in the content repository).
type Source struct {
	HTTP *http.Client
}

func NewSource() *Source {
	return &Source{HTTP: &http.Client{Timeout: 15 * time.Second}}
}

// FetchDefinition GETs a test definition blob. Any failure reads as
// "source unreachable" to the caller.
func (s *Source) FetchDefinition(ctx context.Context, url string) (TestDefinition, error) {
	var def TestDefinition
	if err := s.getJSON(ctx, url, &def); err != nil {
		return TestDefinition{}, fmt.Errorf("test definition source: %w", err)
	}
	return def, nil
}

// FetchResult GETs a previously persisted score result document.
func (s *Source) FetchResult(ctx context.Context, url string) (ScoreResult, error) {
	var res ScoreResult
	if err := s.getJSON(ctx, url, &res); err != nil {
		return ScoreResult{}, fmt.Errorf("score result source: %w", err)
	}
	return res, nil
}

func (s *Source) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
