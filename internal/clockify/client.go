package clockify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/barakshechter/clockadoodledoo/internal/cache"
)

const defaultBaseURL = "https://api.clockify.me/api/v1"

const timeFormat = "2006-01-02T15:04:05Z"

// TTLs per resource volatility: workspace and project lists change rarely,
// entries change every few seconds while a timer runs.
const (
	listTTL     = 300 * time.Second
	volatileTTL = 5 * time.Second
)

// APIError is a non-2xx response from the Clockify API.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clockify API error (status %d): %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// ErrNoActiveEntry is returned by operations that require a running time entry.
var ErrNoActiveEntry = errors.New("no active time entry")

// Client wraps the Clockify REST API. Every read goes through the injected
// cache; every mutator ends with a forced re-read of the active entry so
// callers observe post-write state instead of a stale cached value.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	logger     *slog.Logger
}

func NewClient(apiKey, baseURL string, store *cache.Cache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  store,
		logger: logger,
	}
}

// doRequest issues one request. Failures are not retried; the caller either
// surfaces the error or the next periodic refresh re-fetches naturally.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("clockify API request", "method", method, "path", path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("API request transport error", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("clockify API response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("API request failed", "method", method, "path", path, "status", resp.StatusCode, "response", truncate(string(respBody), 200))
		return nil, &APIError{Status: resp.StatusCode, Method: method, Path: path, Body: string(respBody)}
	}

	return respBody, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// CurrentUser returns the identity behind the API key.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	return cache.Compute(c.cache, "user", cache.Options{TTL: volatileTTL}, func() (*User, error) {
		var user User
		if err := c.getJSON(ctx, "/user", &user); err != nil {
			return nil, fmt.Errorf("getting user: %w", err)
		}
		return &user, nil
	})
}

func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	return cache.Compute(c.cache, "workspaces", cache.Options{TTL: listTTL}, func() ([]Workspace, error) {
		var workspaces []Workspace
		if err := c.getJSON(ctx, "/workspaces", &workspaces); err != nil {
			return nil, fmt.Errorf("listing workspaces: %w", err)
		}
		return workspaces, nil
	})
}

func (c *Client) Projects(ctx context.Context, workspaceID string) ([]Project, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace ID is empty")
	}
	return cache.Compute(c.cache, "projects:"+workspaceID, cache.Options{TTL: listTTL}, func() ([]Project, error) {
		path := fmt.Sprintf("/workspaces/%s/projects?page-size=500&archived=false", workspaceID)
		var projects []Project
		if err := c.getJSON(ctx, path, &projects); err != nil {
			return nil, fmt.Errorf("getting projects: %w", err)
		}
		return projects, nil
	})
}

// RecentEntries lists the user's most recent time entries, newest first,
// optionally filtered by project. projectID == "" lists across all projects.
func (c *Client) RecentEntries(ctx context.Context, workspaceID, userID, projectID string) ([]TimeEntry, error) {
	keyProject := projectID
	if keyProject == "" {
		keyProject = "*"
	}
	key := fmt.Sprintf("entries:%s:%s:%s", workspaceID, userID, keyProject)
	return cache.Compute(c.cache, key, cache.Options{TTL: volatileTTL}, func() ([]TimeEntry, error) {
		path := fmt.Sprintf("/workspaces/%s/user/%s/time-entries?page-size=200", workspaceID, userID)
		if projectID != "" {
			path += "&project=" + projectID
		}
		var entries []TimeEntry
		if err := c.getJSON(ctx, path, &entries); err != nil {
			return nil, fmt.Errorf("getting time entries: %w", err)
		}
		return entries, nil
	})
}

// LastEntries returns the user's n most recent time entries.
func (c *Client) LastEntries(ctx context.Context, workspaceID, userID string, n int) ([]TimeEntry, error) {
	key := fmt.Sprintf("entries:%s:%s:*:%d", workspaceID, userID, n)
	return cache.Compute(c.cache, key, cache.Options{TTL: volatileTTL}, func() ([]TimeEntry, error) {
		path := fmt.Sprintf("/workspaces/%s/user/%s/time-entries?page-size=%d", workspaceID, userID, n)
		var entries []TimeEntry
		if err := c.getJSON(ctx, path, &entries); err != nil {
			return nil, fmt.Errorf("getting last %d time entries: %w", n, err)
		}
		return entries, nil
	})
}

// ActiveEntry returns the user's running time entry, or nil when nothing is
// running. bypass forces a fresh read regardless of cache freshness.
func (c *Client) ActiveEntry(ctx context.Context, workspaceID, userID string, bypass bool) (*TimeEntry, error) {
	key := fmt.Sprintf("active:%s:%s", workspaceID, userID)
	return cache.Compute(c.cache, key, cache.Options{TTL: volatileTTL, Force: bypass}, func() (*TimeEntry, error) {
		path := fmt.Sprintf("/workspaces/%s/user/%s/time-entries?page-size=1&in-progress=true", workspaceID, userID)
		var entries []TimeEntry
		if err := c.getJSON(ctx, path, &entries); err != nil {
			return nil, fmt.Errorf("getting active time entry: %w", err)
		}
		if len(entries) == 0 {
			return nil, nil
		}
		return &entries[0], nil
	})
}

// StopCurrentEntry ends the running entry, if any, and returns the active
// entry as observed by a forced re-read (nil once the stop took effect).
func (c *Client) StopCurrentEntry(ctx context.Context, workspaceID, userID string) (*TimeEntry, error) {
	entry, err := c.ActiveEntry(ctx, workspaceID, userID, true)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		if err := c.stopEntry(ctx, workspaceID, userID, time.Now().UTC()); err != nil {
			return nil, err
		}
	}
	return c.ActiveEntry(ctx, workspaceID, userID, true)
}

func (c *Client) stopEntry(ctx context.Context, workspaceID, userID string, end time.Time) error {
	path := fmt.Sprintf("/workspaces/%s/user/%s/time-entries", workspaceID, userID)
	if _, err := c.doRequest(ctx, http.MethodPatch, path, stopEntryRequest{End: end.Format(timeFormat)}); err != nil {
		return fmt.Errorf("stopping time entry: %w", err)
	}
	return nil
}

// StartEntry stops any running entry and starts a new one on the given
// project. The old entry is ended at exactly the new entry's start so the
// timeline chains without a gap, and the description is prefilled from the
// most recent non-empty description used on that project.
func (c *Client) StartEntry(ctx context.Context, workspaceID, userID, projectID string) (*TimeEntry, error) {
	entry, err := c.ActiveEntry(ctx, workspaceID, userID, true)
	if err != nil {
		return nil, err
	}

	start := time.Now().UTC()
	if entry != nil {
		if err := c.stopEntry(ctx, workspaceID, userID, start); err != nil {
			return nil, err
		}
	}

	description := ""
	if recent, err := c.RecentEntries(ctx, workspaceID, userID, projectID); err != nil {
		c.logger.Debug("description prefill unavailable", "project", projectID, "error", err)
	} else {
		for _, e := range recent {
			if e.Description != "" {
				description = e.Description
				break
			}
		}
	}

	path := fmt.Sprintf("/workspaces/%s/time-entries", workspaceID)
	req := startEntryRequest{
		Start:       start.Format(timeFormat),
		ProjectID:   projectID,
		Description: description,
	}
	if _, err := c.doRequest(ctx, http.MethodPost, path, req); err != nil {
		return nil, fmt.Errorf("starting time entry: %w", err)
	}

	return c.ActiveEntry(ctx, workspaceID, userID, true)
}

// UpdateActiveEntry applies a partial update to the running entry, keeping
// project, task, tags and billable unchanged. Absent patch fields keep their
// current values. Returns nil without error when nothing is running.
func (c *Client) UpdateActiveEntry(ctx context.Context, workspaceID, userID string, patch EntryPatch) (*TimeEntry, error) {
	entry, err := c.ActiveEntry(ctx, workspaceID, userID, true)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	description := entry.Description
	if patch.Description != nil {
		description = *patch.Description
	}
	start := entry.TimeInterval.Start
	if patch.Start != nil {
		start = *patch.Start
	}

	req := updateEntryRequest{
		Start:       start.UTC().Format(timeFormat),
		ProjectID:   entry.ProjectID,
		TaskID:      entry.TaskID,
		TagIDs:      entry.TagIDs,
		Billable:    entry.Billable,
		Description: description,
	}
	path := fmt.Sprintf("/workspaces/%s/time-entries/%s", workspaceID, entry.ID)
	if _, err := c.doRequest(ctx, http.MethodPut, path, req); err != nil {
		return nil, fmt.Errorf("updating active time entry: %w", err)
	}

	return c.ActiveEntry(ctx, workspaceID, userID, true)
}

// UpdateEntry rewrites an existing entry with a new end time, preserving its
// other fields. Used to extend a predecessor entry when the active entry's
// start moves.
func (c *Client) UpdateEntry(ctx context.Context, workspaceID string, entry TimeEntry, end time.Time) error {
	req := updateEntryRequest{
		Start:       entry.TimeInterval.Start.UTC().Format(timeFormat),
		End:         end.UTC().Format(timeFormat),
		ProjectID:   entry.ProjectID,
		TaskID:      entry.TaskID,
		TagIDs:      entry.TagIDs,
		Billable:    entry.Billable,
		Description: entry.Description,
	}
	path := fmt.Sprintf("/workspaces/%s/time-entries/%s", workspaceID, entry.ID)
	if _, err := c.doRequest(ctx, http.MethodPut, path, req); err != nil {
		return fmt.Errorf("updating time entry %s: %w", entry.ID, err)
	}
	return nil
}
