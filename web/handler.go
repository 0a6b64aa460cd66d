package web

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"

	internalstrings "github.com/amonks/swarmboard/internal/strings"
	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/project"
	"github.com/amonks/swarmboard/reconcile"
	"github.com/amonks/swarmboard/status"
)

// Options configures the web handler.
type Options struct {
	BaseURL string
}

// Handler serves the kanban board. It reads and writes through the swarm
// API rather than touching project files itself.
type Handler struct {
	baseURL   string
	client    *http.Client
	mux       *http.ServeMux
	templates *template.Template

	mu       sync.Mutex
	snapshot *status.Snapshot
	flash    *boardFlash
}

// boardFlash carries the outcome of a form post to the next board render.
type boardFlash struct {
	err     string
	notice  string
	merge   *reconcile.Result
	request string
}

// NewHandler creates a new web handler.
func NewHandler(opts Options) *Handler {
	handler := &Handler{
		baseURL:   internalstrings.TrimTrailingSlash(opts.BaseURL),
		client:    &http.Client{},
		templates: newTemplates(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/web/board", handler.handleBoard)
	mux.HandleFunc("/web/board/toggle", handler.handleToggle)
	mux.HandleFunc("/web/board/merge", handler.handleMerge)
	mux.HandleFunc("/web/board/project", handler.handleProject)
	handler.mux = mux
	return handler
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type pageData struct {
	Snapshot     *status.Snapshot
	Columns      []column
	Projects     []project.Metadata
	Active       string
	FetchError   string
	Error        string
	Notice       string
	Merge        *reconcile.Result
	MergeRequest string
}

type column struct {
	Terminal int
	Entry    *status.Terminal
}

func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	baseURL := h.requestBaseURL(r)
	snapshot, err := h.refreshSnapshot(r.Context(), baseURL)
	fetchError := ""
	if err != nil {
		fetchError = err.Error()
	}
	var projects projectsResponse
	if err := callJSON(r.Context(), h.client, http.MethodGet, baseURL, "/api/projects", nil, &projects); err != nil && fetchError == "" {
		fetchError = err.Error()
	}

	data := pageData{
		Snapshot:   snapshot,
		Columns:    buildColumns(snapshot),
		Projects:   projects.Projects,
		Active:     projects.Active,
		FetchError: fetchError,
	}
	if flash := h.consumeFlash(); flash != nil {
		data.Error = flash.err
		data.Notice = flash.notice
		data.Merge = flash.merge
		data.MergeRequest = flash.request
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = h.templates.ExecuteTemplate(w, "page", data)
}

func buildColumns(snapshot *status.Snapshot) []column {
	columns := make([]column, 0, ledger.TerminalCount)
	for _, terminal := range ledger.Terminals() {
		col := column{Terminal: terminal}
		if snapshot != nil {
			if entry, ok := snapshot.Terminal(terminal); ok {
				col.Entry = &entry
			}
		}
		columns = append(columns, col)
	}
	return columns
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.setFlash(boardFlash{err: "invalid form input"})
		http.Redirect(w, r, "/web/board", http.StatusSeeOther)
		return
	}
	terminal, err := strconv.Atoi(trimmedFormValue(r, "terminal"))
	if err != nil {
		h.setFlash(boardFlash{err: "terminal must be a number"})
		http.Redirect(w, r, "/web/board", http.StatusSeeOther)
		return
	}
	task := trimmedFormValue(r, "task")
	if task == "" {
		h.setFlash(boardFlash{err: "task is required"})
		http.Redirect(w, r, "/web/board", http.StatusSeeOther)
		return
	}
	completed := trimmedFormValue(r, "completed") == "true"

	var response updateResponse
	request := updateRequest{Terminal: terminal, Task: task, Completed: &completed}
	if err := callJSON(r.Context(), h.client, http.MethodPost, h.requestBaseURL(r), "/api/update", request, &response); err != nil {
		h.setFlash(boardFlash{err: err.Error()})
	} else if !response.Updated {
		h.setFlash(boardFlash{err: fmt.Sprintf("no task matching %q in terminal %d", task, terminal)})
	}
	http.Redirect(w, r, "/web/board", http.StatusSeeOther)
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.setFlash(boardFlash{err: "invalid form input"})
		http.Redirect(w, r, "/web/board", http.StatusSeeOther)
		return
	}
	text := strings.TrimSpace(r.FormValue("request"))
	if text == "" {
		h.setFlash(boardFlash{err: "request is required"})
		http.Redirect(w, r, "/web/board", http.StatusSeeOther)
		return
	}
	dryRun := trimmedFormValue(r, "dry_run") == "true"

	var result mergeResponse
	request := mergeRequest{Request: text, DryRun: dryRun}
	if err := callJSON(r.Context(), h.client, http.MethodPost, h.requestBaseURL(r), "/api/merge", request, &result); err != nil {
		h.setFlash(boardFlash{err: err.Error(), request: text})
		http.Redirect(w, r, "/web/board", http.StatusSeeOther)
		return
	}
	flash := boardFlash{merge: &result}
	if dryRun {
		flash.request = text
	}
	h.setFlash(flash)
	http.Redirect(w, r, "/web/board", http.StatusSeeOther)
}

func (h *Handler) handleProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.setFlash(boardFlash{err: "invalid form input"})
		http.Redirect(w, r, "/web/board", http.StatusSeeOther)
		return
	}
	name := trimmedFormValue(r, "name")
	if name == "" {
		h.setFlash(boardFlash{err: "project name is required"})
		http.Redirect(w, r, "/web/board", http.StatusSeeOther)
		return
	}
	var response projectResponse
	if err := callJSON(r.Context(), h.client, http.MethodPost, h.requestBaseURL(r), "/api/project", projectRequest{Name: name}, &response); err != nil {
		h.setFlash(boardFlash{err: err.Error()})
	} else {
		h.setFlash(boardFlash{notice: "switched to " + response.Project.Name})
	}
	http.Redirect(w, r, "/web/board", http.StatusSeeOther)
}

func (h *Handler) requestBaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// refreshSnapshot fetches the current snapshot. On failure it returns the
// last snapshot it saw along with the error.
func (h *Handler) refreshSnapshot(ctx context.Context, baseURL string) (*status.Snapshot, error) {
	var snapshot status.Snapshot
	err := callJSON(ctx, h.client, http.MethodGet, baseURL, "/api/status", nil, &snapshot)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		return h.snapshot, err
	}
	h.snapshot = &snapshot
	return &snapshot, nil
}

func (h *Handler) consumeFlash() *boardFlash {
	h.mu.Lock()
	defer h.mu.Unlock()
	flash := h.flash
	h.flash = nil
	return flash
}

func (h *Handler) setFlash(flash boardFlash) {
	h.mu.Lock()
	h.flash = &flash
	h.mu.Unlock()
}

func trimmedFormValue(r *http.Request, key string) string {
	return internalstrings.TrimSpace(r.FormValue(key))
}

func writeMethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
