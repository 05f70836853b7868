package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/pinboard/internal/apperr"
)

// Client talks to a remote snapshot API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a client for the API rooted at baseURL (for example
// "http://localhost:8080/api"). httpClient may be nil.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  logger.With("component", "snapshot-client"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("snapshot: encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("snapshot: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("snapshot: %s %s: %w", method, path, apperr.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("snapshot: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("snapshot: decode response: %w", err)
	}
	return nil
}

// Create posts s to the remote store.
func (c *Client) Create(ctx context.Context, s Snapshot) (CreateResult, error) {
	var res CreateResult
	if err := c.do(ctx, http.MethodPost, "/snapshots", s, &res); err != nil {
		return CreateResult{}, err
	}
	if !res.Success {
		return CreateResult{}, fmt.Errorf("snapshot: create rejected by server")
	}
	return res, nil
}

type listResponse struct {
	Success   bool              `json:"success"`
	Snapshots []json.RawMessage `json:"snapshots"`
}

// List fetches snapshots matching f. Transport failures, non-OK statuses and
// undecodable bodies yield an empty result rather than an error; individual
// malformed records are skipped.
func (c *Client) List(ctx context.Context, f Filter) ([]Snapshot, error) {
	q := url.Values{}
	if f.SessionID != "" {
		q.Set("sessionId", f.SessionID)
	}
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	if f.ViewID != "" {
		q.Set("viewId", f.ViewID)
	}
	path := "/snapshots"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var res listResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		c.logger.Warn("list snapshots failed", slog.String("error", err.Error()))
		return []Snapshot{}, nil
	}

	out := make([]Snapshot, 0, len(res.Snapshots))
	for i, raw := range res.Snapshots {
		var s Snapshot
		if err := json.Unmarshal(raw, &s); err != nil || s.ID == "" {
			c.logger.Warn("skipping malformed snapshot", slog.Int("index", i))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Get fetches one snapshot.
func (c *Client) Get(ctx context.Context, id string) (*Snapshot, error) {
	var s Snapshot
	if err := c.do(ctx, http.MethodGet, "/snapshots/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
