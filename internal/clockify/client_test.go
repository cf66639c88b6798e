package clockify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/barakshechter/clockadoodledoo/internal/cache"
	"github.com/barakshechter/clockadoodledoo/internal/clockify"
)

// fakeAPI serves canned Clockify responses and records every mutation body.
type fakeAPI struct {
	mu              sync.Mutex
	active          string // JSON object, "" for none running
	recent          string // JSON array for unfiltered entry listings
	recentByProject map[string]string
	projects        string
	workspaces      string

	activeGets  int
	recentGets  int
	projectGets int
	patches     []string
	posts       []string
	puts        []string
	putPaths    []string

	onPost func(body string)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/projects"):
		f.projectGets++
		io.WriteString(w, orEmptyList(f.projects))
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/workspaces"):
		io.WriteString(w, orEmptyList(f.workspaces))
	case r.Method == http.MethodGet && strings.Contains(path, "/time-entries") && r.URL.Query().Get("in-progress") == "true":
		f.activeGets++
		if f.active == "" {
			io.WriteString(w, "[]")
		} else {
			io.WriteString(w, "["+f.active+"]")
		}
	case r.Method == http.MethodGet && strings.Contains(path, "/time-entries"):
		f.recentGets++
		if p := r.URL.Query().Get("project"); p != "" {
			io.WriteString(w, orEmptyList(f.recentByProject[p]))
		} else {
			io.WriteString(w, orEmptyList(f.recent))
		}
	case r.Method == http.MethodPatch:
		f.patches = append(f.patches, string(body))
		f.active = ""
		io.WriteString(w, "{}")
	case r.Method == http.MethodPost:
		f.posts = append(f.posts, string(body))
		if f.onPost != nil {
			f.onPost(string(body))
		}
		io.WriteString(w, "{}")
	case r.Method == http.MethodPut:
		f.puts = append(f.puts, string(body))
		f.putPaths = append(f.putPaths, path)
		io.WriteString(w, "{}")
	default:
		http.NotFound(w, r)
	}
}

func orEmptyList(s string) string {
	if s == "" {
		return "[]"
	}
	return s
}

func newTestClient(t *testing.T, api http.Handler) *clockify.Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := cache.New(30 * time.Second)
	t.Cleanup(store.Close)

	return clockify.NewClient("test-key", srv.URL, store, nil)
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("decoding body %q: %v", body, err)
	}
	return m
}

const runningEntry = `{"id":"e1","description":"old words","projectId":"p1","billable":true,"tagIds":["t1"],"timeInterval":{"start":"2024-03-01T09:00:00Z","end":null}}`

func TestProjectsCached(t *testing.T) {
	api := &fakeAPI{
		projects: `[{"id":"p1","name":"Backend","clientId":"c1","clientName":"Acme"}]`,
	}
	client := newTestClient(t, api)
	ctx := context.Background()

	projects, err := client.Projects(ctx, "ws")
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].ClientName != "Acme" {
		t.Fatalf("got projects %+v", projects)
	}

	if _, err := client.Projects(ctx, "ws"); err != nil {
		t.Fatal(err)
	}
	if api.projectGets != 1 {
		t.Errorf("got %d project fetches, want 1 (second call should hit cache)", api.projectGets)
	}
}

func TestActiveEntryCachedAndBypassed(t *testing.T) {
	api := &fakeAPI{active: runningEntry}
	client := newTestClient(t, api)
	ctx := context.Background()

	entry, err := client.ActiveEntry(ctx, "ws", "u", false)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || entry.ID != "e1" {
		t.Fatalf("got entry %+v, want e1", entry)
	}
	if !entry.Running() {
		t.Error("entry with null end should report Running")
	}

	if _, err := client.ActiveEntry(ctx, "ws", "u", false); err != nil {
		t.Fatal(err)
	}
	if api.activeGets != 1 {
		t.Errorf("got %d fetches after cached read, want 1", api.activeGets)
	}

	if _, err := client.ActiveEntry(ctx, "ws", "u", true); err != nil {
		t.Fatal(err)
	}
	if api.activeGets != 2 {
		t.Errorf("got %d fetches after bypass read, want 2", api.activeGets)
	}
}

func TestStopCurrentEntry(t *testing.T) {
	api := &fakeAPI{active: runningEntry}
	client := newTestClient(t, api)

	entry, err := client.StopCurrentEntry(context.Background(), "ws", "u")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Errorf("got active entry %+v after stop, want nil", entry)
	}
	if len(api.patches) != 1 {
		t.Fatalf("got %d PATCH calls, want 1", len(api.patches))
	}
	if _, ok := decodeBody(t, api.patches[0])["end"]; !ok {
		t.Error("PATCH body missing end timestamp")
	}
	// One forced read before the write, one after.
	if api.activeGets != 2 {
		t.Errorf("got %d active-entry fetches, want 2", api.activeGets)
	}
}

func TestStopCurrentEntryNoActive(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	entry, err := client.StopCurrentEntry(context.Background(), "ws", "u")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Errorf("got entry %+v, want nil", entry)
	}
	if len(api.patches) != 0 {
		t.Errorf("got %d PATCH calls with nothing running, want 0", len(api.patches))
	}
}

func TestStartEntryChainsAndPrefillsDescription(t *testing.T) {
	api := &fakeAPI{
		active: runningEntry,
		recentByProject: map[string]string{
			"p2": `[
				{"id":"e9","description":"","projectId":"p2","timeInterval":{"start":"2024-03-01T08:00:00Z","end":"2024-03-01T08:30:00Z"}},
				{"id":"e8","description":"fix flaky test","projectId":"p2","timeInterval":{"start":"2024-03-01T07:00:00Z","end":"2024-03-01T08:00:00Z"}}
			]`,
		},
	}
	api.onPost = func(body string) {
		// The remote now reports the new entry as running.
		api.active = `{"id":"e2","description":"fix flaky test","projectId":"p2","timeInterval":{"start":"2024-03-01T10:00:00Z","end":null}}`
	}
	client := newTestClient(t, api)

	entry, err := client.StartEntry(context.Background(), "ws", "u", "p2")
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || entry.ID != "e2" {
		t.Fatalf("got entry %+v, want refreshed e2", entry)
	}

	if len(api.patches) != 1 || len(api.posts) != 1 {
		t.Fatalf("got %d PATCH / %d POST calls, want 1 / 1", len(api.patches), len(api.posts))
	}

	patch := decodeBody(t, api.patches[0])
	post := decodeBody(t, api.posts[0])

	// The old entry's end and the new entry's start must be the same instant.
	if patch["end"] != post["start"] {
		t.Errorf("old end %v != new start %v, timeline has a gap", patch["end"], post["start"])
	}
	if post["projectId"] != "p2" {
		t.Errorf("got projectId %v, want p2", post["projectId"])
	}
	if post["description"] != "fix flaky test" {
		t.Errorf("got description %v, want most recent non-empty description", post["description"])
	}
}

func TestUpdateActiveEntryNoActive(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	desc := "anything"
	entry, err := client.UpdateActiveEntry(context.Background(), "ws", "u", clockify.EntryPatch{Description: &desc})
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Errorf("got entry %+v, want nil", entry)
	}
	if len(api.puts) != 0 {
		t.Errorf("got %d PUT calls with nothing running, want 0", len(api.puts))
	}
}

func TestUpdateActiveEntryMergesFields(t *testing.T) {
	api := &fakeAPI{active: runningEntry}
	client := newTestClient(t, api)

	desc := "new words"
	if _, err := client.UpdateActiveEntry(context.Background(), "ws", "u", clockify.EntryPatch{Description: &desc}); err != nil {
		t.Fatal(err)
	}

	if len(api.puts) != 1 {
		t.Fatalf("got %d PUT calls, want 1", len(api.puts))
	}
	if !strings.HasSuffix(api.putPaths[0], "/time-entries/e1") {
		t.Errorf("PUT path %q, want .../time-entries/e1", api.putPaths[0])
	}

	put := decodeBody(t, api.puts[0])
	if put["description"] != "new words" {
		t.Errorf("got description %v, want new words", put["description"])
	}
	// Unsupplied fields keep their current values.
	if put["start"] != "2024-03-01T09:00:00Z" {
		t.Errorf("got start %v, want existing start preserved", put["start"])
	}
	if put["projectId"] != "p1" {
		t.Errorf("got projectId %v, want p1", put["projectId"])
	}
	if put["billable"] != true {
		t.Errorf("got billable %v, want true", put["billable"])
	}
}

func TestUpdateEntrySetsEnd(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	oldEnd := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	entry := clockify.TimeEntry{
		ID:           "e7",
		Description:  "earlier work",
		ProjectID:    "p1",
		TimeInterval: clockify.TimeInterval{Start: start, End: &oldEnd},
	}

	newEnd := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := client.UpdateEntry(context.Background(), "ws", entry, newEnd); err != nil {
		t.Fatal(err)
	}

	if len(api.puts) != 1 {
		t.Fatalf("got %d PUT calls, want 1", len(api.puts))
	}
	put := decodeBody(t, api.puts[0])
	if put["end"] != "2024-03-01T09:30:00Z" {
		t.Errorf("got end %v, want new end", put["end"])
	}
	if put["start"] != "2024-03-01T08:00:00Z" {
		t.Errorf("got start %v, want original start", put["start"])
	}
	if put["description"] != "earlier work" {
		t.Errorf("got description %v, want original description", put["description"])
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"workspace not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	store := cache.New(30 * time.Second)
	t.Cleanup(store.Close)
	client := clockify.NewClient("test-key", srv.URL, store, nil)

	_, err := client.Projects(context.Background(), "nope")
	if err == nil {
		t.Fatal("got nil error, want APIError")
	}
	var apiErr *clockify.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("got status %d, want 404", apiErr.Status)
	}
}

func TestFetchFailureNotCached(t *testing.T) {
	fail := true
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if fail {
			http.Error(w, "temporary", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `[{"id":"w1","name":"Main"}]`)
	}))
	t.Cleanup(srv.Close)

	store := cache.New(30 * time.Second)
	t.Cleanup(store.Close)
	client := clockify.NewClient("test-key", srv.URL, store, nil)
	ctx := context.Background()

	if _, err := client.Workspaces(ctx); err == nil {
		t.Fatal("got nil error, want failure")
	}

	// Failures are not cached as negative results; the next call re-fetches.
	mu.Lock()
	fail = false
	mu.Unlock()

	workspaces, err := client.Workspaces(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(workspaces) != 1 || workspaces[0].ID != "w1" {
		t.Fatalf("got workspaces %+v", workspaces)
	}
	if calls != 2 {
		t.Errorf("got %d calls, want 2", calls)
	}
}
