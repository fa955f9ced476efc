package contentstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.github.com"

// GitHubStore talks to the GitHub repository contents API. The file blob
// sha doubles as the revision token: GitHub rejects an update whose sha no
// longer matches the current file, which gives us the write precondition
// for free.
type GitHubStore struct {
	HTTP    *http.Client
	APIBase string
	Token   string
	Repo    string // "owner/name"
}

func NewGitHubStore(token, repo string) *GitHubStore {
	return &GitHubStore{
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		APIBase: defaultAPIBase,
		Token:   token,
		Repo:    repo,
	}
}

type contentsResponse struct {
	SHA         string `json:"sha"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	DownloadURL string `json:"download_url"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content contentsResponse `json:"content"`
}

func (s *GitHubStore) Read(ctx context.Context, path string) (Document, bool, error) {
	req, err := s.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Document{}, false, err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return Document{}, false, &TransientError{Op: "read " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Document{}, false, nil
	case resp.StatusCode/100 != 2:
		return Document{}, false, &TransientError{Op: "read " + path, Err: statusErr(resp.StatusCode)}
	}

	var cr contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Document{}, false, &TransientError{Op: "read " + path, Err: err}
	}
	content, err := decodeContent(cr)
	if err != nil {
		return Document{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	return Document{Content: content, Rev: cr.SHA, DownloadURL: cr.DownloadURL}, true, nil
}

func (s *GitHubStore) Write(ctx context.Context, path string, content []byte, rev string) (Document, error) {
	body, _ := json.Marshal(putRequest{
		Message: "Update " + path,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     rev,
	})
	req, err := s.newRequest(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return Document{}, &TransientError{Op: "write " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusUnprocessableEntity:
		// 409: sha is stale. 422: creating a path that already exists
		// (an empty rev raced a concurrent create).
		return Document{}, fmt.Errorf("write %s: %w", path, ErrRevisionConflict)
	case resp.StatusCode/100 != 2:
		return Document{}, &TransientError{Op: "write " + path, Err: statusErr(resp.StatusCode)}
	}

	var pr putResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Document{}, &TransientError{Op: "write " + path, Err: err}
	}
	return Document{Content: content, Rev: pr.Content.SHA, DownloadURL: pr.Content.DownloadURL}, nil
}

func (s *GitHubStore) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	url := fmt.Sprintf("%s/repos/%s/contents/%s", strings.TrimSuffix(s.APIBase, "/"), s.Repo, path)
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	return req, nil
}

func decodeContent(cr contentsResponse) ([]byte, error) {
	if cr.Encoding != "" && cr.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding %q", cr.Encoding)
	}
	// The API wraps base64 payloads with newlines.
	compact := strings.ReplaceAll(cr.Content, "\n", "")
	return base64.StdEncoding.DecodeString(compact)
}

func statusErr(code int) error {
	return fmt.Errorf("unexpected status %d", code)
}
