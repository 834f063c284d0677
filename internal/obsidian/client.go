// Package obsidian is the Note Store client: it talks to the Obsidian
// Local REST API for DQL search and note content retrieval.
package obsidian

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/models"
)

const dqlContentType = "application/vnd.olrapi.dataview.dql+txt"

// Config carries the connection settings for the Local REST API plugin.
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Insecure bool // the plugin serves a self-signed certificate by default
}

// Client issues authenticated requests against the Note Store.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a Client from config.
func NewClient(cfg Config) *Client {
	transport := http.DefaultTransport
	if cfg.Insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Ping verifies the store is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	c.auth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("note store unreachable: %w: %w", apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("note store returned %s: %w", resp.Status, apperr.ErrUnavailable)
	}
	return nil
}

// searchHit is one row of a DQL table response.
type searchHit struct {
	Filename string  `json:"filename"`
	Result   noteRow `json:"result"`
}

type noteRow struct {
	Path     string          `json:"path"`
	Filename string          `json:"filename"`
	Mtime    json.RawMessage `json:"mtime"`
	Size     int             `json:"size"`
	Tags     []string        `json:"tags"`
}

// Search executes a DQL query and maps the result rows to notes.
// Query syntax errors come back as non-2xx responses; the body is
// preserved in the error so the refinement agent can feed it back.
func (c *Client) Search(ctx context.Context, dql string) ([]models.Note, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/", strings.NewReader(dql))
	if err != nil {
		return nil, err
	}
	c.auth(req)
	req.Header.Set("Content-Type", dqlContentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("obsidian: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("obsidian: search failed: %s: %s", resp.Status, readBody(resp.Body))
	}

	var hits []searchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("obsidian: decode search response: %w", err)
	}

	notes := make([]models.Note, 0, len(hits))
	for _, h := range hits {
		name := h.Result.Filename
		if name == "" {
			name = h.Filename
		}
		notes = append(notes, models.NewNote(
			h.Result.Path,
			name,
			h.Result.Size,
			h.Result.Tags,
			parseMtime(h.Result.Mtime),
		))
	}
	return notes, nil
}

// NoteContent fetches the raw markdown body of a note by vault path.
// The API answers with plain markdown or a JSON document depending on
// content negotiation; both are handled.
func (c *Client) NoteContent(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/vault/"+escapePath(path), nil)
	if err != nil {
		return "", err
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("obsidian: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("obsidian: note %s: %w", path, apperr.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("obsidian: fetch %s failed: %s: %s", path, resp.Status, readBody(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("obsidian: read %s: %w", path, err)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var doc struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return "", fmt.Errorf("obsidian: decode %s: %w", path, err)
		}
		return doc.Content, nil
	}
	return string(body), nil
}

// SampleCandidates returns notes older than days with at least minSize
// bytes, oldest first, restricted by folders and schema exclusions.
func (c *Client) SampleCandidates(ctx context.Context, days, minSize int, folders, excludedTags []string) ([]models.Note, error) {
	where := combineAnd(
		OlderThanFilter(days, minSize),
		FolderFilter(folders),
		ExcludedTagFilter(excludedTags),
	)
	return c.Search(ctx, NotesQuery(where, "file.mtime ASC"))
}

// FindByPattern resolves a glob-style name pattern against the vault.
func (c *Client) FindByPattern(ctx context.Context, pattern string, folders, excludedTags []string) ([]models.Note, error) {
	where := combineAnd(
		PatternFilter(pattern),
		FolderFilter(folders),
		ExcludedTagFilter(excludedTags),
	)
	return c.Search(ctx, NotesQuery(where, "file.name ASC"))
}

// FindByName looks a note up by exact name first, then falls back to a
// case-insensitive substring match.
func (c *Client) FindByName(ctx context.Context, name string, folders, excludedTags []string) ([]models.Note, error) {
	exact, err := c.Search(ctx, NotesQuery(combineAnd(
		NameFilter(name),
		FolderFilter(folders),
		ExcludedTagFilter(excludedTags),
	), "file.name ASC"))
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return exact, nil
	}
	return c.Search(ctx, NotesQuery(combineAnd(
		NameContainsFilter(name),
		FolderFilter(folders),
		ExcludedTagFilter(excludedTags),
	), "file.name ASC"))
}

func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 2048))
	return strings.TrimSpace(string(b))
}

// parseMtime accepts the two representations Dataview emits over REST:
// epoch milliseconds or an ISO timestamp string.
func parseMtime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-07:00", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
