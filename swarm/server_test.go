package swarm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amonks/swarmboard/project"
	"github.com/amonks/swarmboard/reconcile"
	"github.com/amonks/swarmboard/status"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testNow = time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)

const loginDocument = "# Terminal 1 - Tasks\n\n## Current Work\n- [ ] Implement user login page\n- [x] Update README\n"

func newTestProject(t *testing.T, dir, name string) project.Project {
	t.Helper()
	root := filepath.Join(dir, name)
	writeTestFile(t, filepath.Join(root, project.ConfigFile), "PROJECT_NAME=\""+name+"\"\nSTATUS=\"active\"\n")
	p, err := project.Open(root)
	if err != nil {
		t.Fatalf("open project: %v", err)
	}
	return p
}

func newTestServer(t *testing.T, opts ServerOptions) *Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	server, err := NewServer(opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Close(); err != nil {
			t.Errorf("close server: %v", err)
		}
	})
	return server
}

func serve(t *testing.T, server *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(data)
	}
	request := httptest.NewRequest(method, path, body)
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)
	return response
}

func decodeBody(t *testing.T, response *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(response.Body).Decode(dest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStatusWithoutProjectReturnsNotFound(t *testing.T) {
	server := newTestServer(t, ServerOptions{})

	response := serve(t, server, http.MethodGet, "/api/status", nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", response.Code)
	}
	var payload map[string]string
	decodeBody(t, response, &payload)
	if payload["error"] != ErrNoProject.Error() {
		t.Fatalf("expected no project error, got %q", payload["error"])
	}
}

func TestStatusReturnsSnapshot(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	writeTestFile(t, p.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{Project: p})

	response := serve(t, server, http.MethodGet, "/api/status", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", response.Code, response.Body.String())
	}
	var snapshot status.Snapshot
	decodeBody(t, response, &snapshot)
	if snapshot.ProjectName != "demo" {
		t.Fatalf("expected project demo, got %q", snapshot.ProjectName)
	}
	if !snapshot.Timestamp.Equal(testNow) {
		t.Fatalf("expected injected timestamp, got %v", snapshot.Timestamp)
	}
	entry, ok := snapshot.Terminal(1)
	if !ok {
		t.Fatalf("expected terminal 1 in snapshot")
	}
	if len(entry.Tasks.Pending) != 1 || len(entry.Tasks.Completed) != 1 {
		t.Fatalf("unexpected task grouping: %+v", entry.Tasks)
	}
}

func TestStatusRejectsPost(t *testing.T) {
	server := newTestServer(t, ServerOptions{})

	response := serve(t, server, http.MethodPost, "/api/status", nil)
	if response.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", response.Code)
	}
	if allow := response.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow GET, got %q", allow)
	}
}

func TestProjectsListsAndSwitches(t *testing.T) {
	projectsDir := t.TempDir()
	first := newTestProject(t, projectsDir, "alpha")
	second := newTestProject(t, projectsDir, "beta")
	writeTestFile(t, second.DocumentPath(2), "- [ ] Write integration tests\n")
	server := newTestServer(t, ServerOptions{Project: first, ProjectsDir: projectsDir})

	response := serve(t, server, http.MethodGet, "/api/projects", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.Code)
	}
	var projects projectsResponse
	decodeBody(t, response, &projects)
	if len(projects.Projects) != 2 || projects.Projects[0].Name != "alpha" || projects.Projects[1].Name != "beta" {
		t.Fatalf("unexpected projects: %+v", projects.Projects)
	}
	if projects.Active != "alpha" {
		t.Fatalf("expected active alpha, got %q", projects.Active)
	}

	response = serve(t, server, http.MethodPost, "/api/project", projectRequest{Name: "beta"})
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", response.Code, response.Body.String())
	}
	var switched projectResponse
	decodeBody(t, response, &switched)
	if switched.Project.Name != "beta" || switched.Snapshot.ProjectName != "beta" {
		t.Fatalf("unexpected switch response: %+v", switched)
	}
	if _, ok := switched.Snapshot.Terminal(2); !ok {
		t.Fatalf("expected beta snapshot to include terminal 2")
	}
	if active, _ := server.Project(); active.Name != "beta" {
		t.Fatalf("expected active project beta, got %q", active.Name)
	}
}

func TestSwitchProjectMovesTheWatch(t *testing.T) {
	projectsDir := t.TempDir()
	first := newTestProject(t, projectsDir, "alpha")
	second := newTestProject(t, projectsDir, "beta")
	writeTestFile(t, first.DocumentPath(1), loginDocument)
	writeTestFile(t, second.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{
		Project:     first,
		ProjectsDir: projectsDir,
		Watch:       true,
		Debounce:    20 * time.Millisecond,
	})
	oldWatcher := server.current().watcher
	if oldWatcher == nil {
		t.Fatalf("expected a watcher on alpha")
	}

	response := serve(t, server, http.MethodPost, "/api/project", projectRequest{Name: "beta"})
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", response.Code, response.Body.String())
	}
	select {
	case <-oldWatcher.done:
	default:
		t.Fatalf("expected alpha's watcher to be closed by the switch")
	}
	newWatcher := server.current().watcher
	if newWatcher == nil || newWatcher == oldWatcher {
		t.Fatalf("expected a fresh watcher on beta")
	}

	sub := server.hub.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Run(ctx) }()

	writeTestFile(t, first.DocumentPath(1), loginDocument+"- [ ] Write integration tests\n")
	select {
	case snapshot := <-sub.C:
		t.Fatalf("expected no publish for alpha's document, got %+v", snapshot)
	case <-time.After(300 * time.Millisecond):
	}

	writeTestFile(t, second.DocumentPath(1), loginDocument+"- [ ] Write integration tests\n")
	select {
	case snapshot := <-sub.C:
		if snapshot.ProjectName != "beta" {
			t.Fatalf("expected beta snapshot, got %q", snapshot.ProjectName)
		}
	case <-time.After(watchTimeout):
		t.Fatalf("expected publish for beta's document")
	}

	// Dropping the last subscriber leaves the watch in place.
	server.hub.Unsubscribe(sub.ID)
	if server.hub.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", server.hub.Len())
	}
	select {
	case <-newWatcher.done:
		t.Fatalf("expected beta's watcher to outlive its subscribers")
	default:
	}
	if server.current().watcher != newWatcher {
		t.Fatalf("expected beta's watcher to stay active")
	}

	next := server.hub.Subscribe()
	defer server.hub.Unsubscribe(next.ID)
	writeTestFile(t, second.DocumentPath(2), "- [ ] Deploy staging\n")
	select {
	case snapshot := <-next.C:
		if _, ok := snapshot.Terminal(2); !ok {
			t.Fatalf("expected terminal 2 in beta snapshot, got %+v", snapshot)
		}
	case <-time.After(watchTimeout):
		t.Fatalf("expected publish after resubscribing")
	}
}

func TestProjectSwitchErrors(t *testing.T) {
	projectsDir := t.TempDir()
	server := newTestServer(t, ServerOptions{ProjectsDir: projectsDir})

	cases := []struct {
		name    string
		payload any
		want    int
	}{
		{name: "missing", payload: projectRequest{Name: "nope"}, want: http.StatusNotFound},
		{name: "traversal", payload: projectRequest{Name: "../etc"}, want: http.StatusBadRequest},
		{name: "neither", payload: projectRequest{}, want: http.StatusBadRequest},
		{name: "both", payload: projectRequest{Name: "a", Path: "/tmp"}, want: http.StatusBadRequest},
		{name: "unknown field", payload: map[string]string{"project": "a"}, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			response := serve(t, server, http.MethodPost, "/api/project", tc.payload)
			if response.Code != tc.want {
				t.Fatalf("expected status %d, got %d: %s", tc.want, response.Code, response.Body.String())
			}
		})
	}
}

func TestMergeAppendsTasks(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	server := newTestServer(t, ServerOptions{Project: p})

	response := serve(t, server, http.MethodPost, "/api/merge", mergeRequest{Request: "- write parser tests"})
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", response.Code, response.Body.String())
	}
	var result reconcile.Result
	decodeBody(t, response, &result)
	if !result.Applied || len(result.Accepted) != 1 {
		t.Fatalf("unexpected merge result: %+v", result)
	}
	data, err := os.ReadFile(p.DocumentPath(1))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !strings.Contains(string(data), "- [ ] write parser tests\n") {
		t.Fatalf("expected merged task in document, got %q", data)
	}

	response = serve(t, server, http.MethodPost, "/api/merge", mergeRequest{Request: "- write parser tests"})
	decodeBody(t, response, &result)
	if result.Applied || len(result.Duplicates) != 1 {
		t.Fatalf("expected duplicate on second merge, got %+v", result)
	}
}

func TestMergeRejectsEmptyRequest(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	server := newTestServer(t, ServerOptions{Project: p})

	response := serve(t, server, http.MethodPost, "/api/merge", mergeRequest{Request: "  "})
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", response.Code)
	}
}

func TestMergeWithoutProjectReturnsNotFound(t *testing.T) {
	server := newTestServer(t, ServerOptions{})

	response := serve(t, server, http.MethodPost, "/api/merge", mergeRequest{Request: "- write parser tests"})
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", response.Code)
	}
}

func TestUpdateMarksTask(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	writeTestFile(t, p.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{Project: p})

	response := serve(t, server, http.MethodPost, "/api/update", updateRequest{Terminal: 1, Task: "implement user login page"})
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", response.Code, response.Body.String())
	}
	var payload updateResponse
	decodeBody(t, response, &payload)
	if !payload.Updated {
		t.Fatalf("expected update")
	}
	data, err := os.ReadFile(p.DocumentPath(1))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !strings.Contains(string(data), "- [x] Implement user login page\n") {
		t.Fatalf("expected task marked complete, got %q", data)
	}

	reopen := false
	response = serve(t, server, http.MethodPost, "/api/update", updateRequest{Terminal: 1, Task: "Update README", Completed: &reopen})
	decodeBody(t, response, &payload)
	if !payload.Updated {
		t.Fatalf("expected reopen")
	}
	data, err = os.ReadFile(p.DocumentPath(1))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !strings.Contains(string(data), "- [ ] Update README\n") {
		t.Fatalf("expected task reopened, got %q", data)
	}
}

func TestUpdateNoMatchIsNotAnError(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	writeTestFile(t, p.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{Project: p})

	response := serve(t, server, http.MethodPost, "/api/update", updateRequest{Terminal: 1, Task: "deploy staging cluster"})
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.Code)
	}
	var payload updateResponse
	decodeBody(t, response, &payload)
	if payload.Updated {
		t.Fatalf("expected no update")
	}
}

func TestUpdateValidatesRequest(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	server := newTestServer(t, ServerOptions{Project: p})

	cases := []struct {
		name    string
		payload any
	}{
		{name: "terminal zero", payload: updateRequest{Terminal: 0, Task: "x"}},
		{name: "terminal six", payload: updateRequest{Terminal: 6, Task: "x"}},
		{name: "blank task", payload: updateRequest{Terminal: 1, Task: " "}},
		{name: "unknown field", payload: map[string]any{"terminal": 1, "task": "x", "done": true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			response := serve(t, server, http.MethodPost, "/api/update", tc.payload)
			if response.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", response.Code, response.Body.String())
			}
		})
	}
}

func TestRefreshPublishesAndRecordsHistory(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	writeTestFile(t, p.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{Project: p, History: true})
	sub := server.hub.Subscribe()
	defer server.hub.Unsubscribe(sub.ID)

	response := serve(t, server, http.MethodPost, "/api/refresh", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", response.Code, response.Body.String())
	}
	select {
	case snapshot := <-sub.C:
		if snapshot.ProjectName != "demo" {
			t.Fatalf("unexpected snapshot: %+v", snapshot)
		}
	default:
		t.Fatalf("expected refresh to broadcast")
	}

	active := server.current()
	entries, err := active.history.List(context.Background(), "demo", 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != SourceRefresh {
		t.Fatalf("expected one refresh entry, got %+v", entries)
	}
	if _, err := os.Stat(p.HistoryPath()); err != nil {
		t.Fatalf("expected history database: %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	writeTestFile(t, p.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{Project: p})

	serve(t, server, http.MethodPost, "/api/refresh", nil)
	serve(t, server, http.MethodPost, "/api/merge", mergeRequest{Request: "- write parser tests"})

	response := serve(t, server, http.MethodGet, "/metrics", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.Code)
	}
	body := response.Body.String()
	for _, want := range []string{
		`swarmboard_publishes_total{source="refresh"} 1`,
		`swarmboard_merges_total{outcome="applied"} 1`,
		`swarmboard_tasks_added_total 1`,
		`swarmboard_overall_progress_percent{project="demo"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics to contain %q, got %s", want, body)
		}
	}
}

func TestSubscribeStreamsInitialAndPublishedSnapshots(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	writeTestFile(t, p.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{Project: p})
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := NewClient(httpServer.URL)
	snapshots, errs := client.Subscribe(ctx)

	first := <-snapshots
	if first.ProjectName != "demo" {
		t.Fatalf("expected initial snapshot, got %+v", first)
	}

	writeTestFile(t, p.DocumentPath(2), "- [x] Write integration tests\n")
	if _, err := server.Publish(ctx, SourceRefresh); err != nil {
		t.Fatalf("publish: %v", err)
	}
	second := <-snapshots
	if _, ok := second.Terminal(2); !ok {
		t.Fatalf("expected published snapshot to include terminal 2, got %+v", second)
	}

	cancel()
	for range snapshots {
	}
	if err := <-errs; err != nil {
		t.Fatalf("expected clean end, got %v", err)
	}
}

func TestRunPublishesOnHeartbeat(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	server := newTestServer(t, ServerOptions{Project: p, Heartbeat: 10 * time.Millisecond})
	sub := server.hub.Subscribe()
	defer server.hub.Unsubscribe(sub.ID)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	select {
	case <-sub.C:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected heartbeat publish")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunPublishesOnFileChange(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	writeTestFile(t, p.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{Project: p, Watch: true, Debounce: 20 * time.Millisecond})
	sub := server.hub.Subscribe()
	defer server.hub.Unsubscribe(sub.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Run(ctx) }()

	writeTestFile(t, p.DocumentPath(1), loginDocument+"- [ ] Write integration tests\n")
	select {
	case snapshot := <-sub.C:
		entry, ok := snapshot.Terminal(1)
		if !ok || len(entry.Tasks.All) != 3 {
			t.Fatalf("expected updated terminal 1, got %+v", snapshot)
		}
	case <-time.After(watchTimeout):
		t.Fatalf("expected watch publish")
	}
}

func TestRunPublishesFromBothSources(t *testing.T) {
	p := newTestProject(t, t.TempDir(), "demo")
	writeTestFile(t, p.DocumentPath(1), loginDocument)
	server := newTestServer(t, ServerOptions{
		Project:   p,
		Heartbeat: 10 * time.Millisecond,
		Watch:     true,
		Debounce:  20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	writeTestFile(t, p.DocumentPath(1), loginDocument+"- [ ] Write integration tests\n")
	deadline := time.Now().Add(watchTimeout)
	for {
		heartbeats := testutil.ToFloat64(server.metrics.publishes.WithLabelValues(SourceHeartbeat))
		changes := testutil.ToFloat64(server.metrics.publishes.WithLabelValues(SourceWatch))
		if heartbeats > 0 && changes > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected heartbeat and watch publishes, got %v and %v", heartbeats, changes)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(watchTimeout):
		t.Fatalf("expected Run to return after cancel")
	}
}

func TestRequestPanicReturnsInternalError(t *testing.T) {
	var logs bytes.Buffer
	server := newTestServer(t, ServerOptions{Logger: log.New(&logs, "", 0)})
	handler := server.recoverHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)

	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", response.Code)
	}
	var payload map[string]string
	decodeBody(t, response, &payload)
	if payload["error"] != "internal server error" {
		t.Fatalf("expected internal server error, got %q", payload["error"])
	}
	if !strings.Contains(logs.String(), "panic handling request GET /api/status: boom") {
		t.Fatalf("expected panic log, got %q", logs.String())
	}
}

func TestRootRedirectsToBoard(t *testing.T) {
	server := newTestServer(t, ServerOptions{})

	response := serve(t, server, http.MethodGet, "/", nil)
	if response.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", response.Code)
	}
	if location := response.Header().Get("Location"); location != "/web/board" {
		t.Fatalf("expected redirect to board, got %q", location)
	}
}
