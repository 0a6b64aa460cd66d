package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	internalstrings "github.com/amonks/swarmboard/internal/strings"
	"github.com/amonks/swarmboard/history"
	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/project"
	"github.com/amonks/swarmboard/reconcile"
	"github.com/amonks/swarmboard/status"
	"github.com/amonks/swarmboard/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// ErrNoProject is returned when an operation needs an active project and
// none is loaded.
var ErrNoProject = errors.New("no project loaded")

// ServerOptions configures a swarm server.
type ServerOptions struct {
	// Project is loaded at startup when set.
	Project project.Project

	// ProjectsDir is scanned by /api/projects and used to resolve project
	// names on switch.
	ProjectsDir string

	// Heartbeat is the interval between unconditional publishes. Zero
	// disables the heartbeat.
	Heartbeat time.Duration

	// Watch enables publishing on filesystem changes.
	Watch    bool
	Debounce time.Duration

	// History records snapshot changes in the project's history database.
	History bool

	DuplicateThreshold float64
	UpdateThreshold    float64

	// Now supplies snapshot and task-section timestamps.
	Now func() time.Time

	Logger *log.Logger
}

// Server publishes project snapshots and serves the swarm API.
type Server struct {
	projectsDir string
	heartbeat   time.Duration
	watch       bool
	debounce    time.Duration
	history     bool
	mergeOpts   reconcile.Options
	aggregator  *status.Aggregator
	hub         *Hub
	registry    *prometheus.Registry
	metrics     *metrics
	logger      *log.Logger
	triggers    chan string

	// mu guards the active project and its watcher. Snapshots are computed
	// outside it.
	mu     sync.Mutex
	active *activeProject
}

type activeProject struct {
	project project.Project
	merger  *reconcile.Merger
	watcher *Watcher
	history *history.Store
}

// NewServer creates a swarm server.
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "swarm: ", log.LstdFlags)
	}
	registry := prometheus.NewRegistry()
	s := &Server{
		projectsDir: opts.ProjectsDir,
		heartbeat:   opts.Heartbeat,
		watch:       opts.Watch,
		debounce:    opts.Debounce,
		history:     opts.History,
		mergeOpts: reconcile.Options{
			Now:                opts.Now,
			DuplicateThreshold: opts.DuplicateThreshold,
			UpdateThreshold:    opts.UpdateThreshold,
			Logger:             logger,
		},
		aggregator: status.NewAggregator(status.Options{Now: opts.Now}),
		hub:        NewHub(),
		registry:   registry,
		metrics:    newMetrics(registry),
		logger:     logger,
		triggers:   make(chan string, 1),
	}
	if !opts.Project.IsZero() {
		if err := s.SetProject(opts.Project); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Project returns the active project, if any.
func (s *Server) Project() (project.Project, bool) {
	active := s.current()
	if active == nil {
		return project.Project{}, false
	}
	return active.project, true
}

// SetProject makes p the active project. The previous project's watch is
// torn down before the new one is established.
func (s *Server) SetProject(p project.Project) error {
	if p.IsZero() {
		return fmt.Errorf("project is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.closeActive(s.active)
		s.active = nil
	}

	next := &activeProject{
		project: p,
		merger:  reconcile.NewMerger(ledger.Open(p), s.mergeOpts),
	}
	if s.watch {
		watcher, err := NewWatcher(p.WatchDirs(), WatcherOptions{
			Debounce: s.debounce,
			OnChange: func() { s.trigger(SourceWatch) },
			Logger:   s.logger,
		})
		if err != nil {
			s.logf("watch %s: %v", p.Name, err)
		} else {
			next.watcher = watcher
		}
	}
	if s.history {
		store, err := history.Open(p.HistoryPath())
		if err != nil {
			s.logf("history %s: %v", p.Name, err)
		} else {
			next.history = store
		}
	}
	s.active = next
	s.logf("active project is %s (%s)", p.Name, p.Root)
	return nil
}

func (s *Server) closeActive(active *activeProject) {
	if active.watcher != nil {
		if err := active.watcher.Close(); err != nil {
			s.logf("close watcher: %v", err)
		}
	}
	if active.history != nil {
		if err := active.history.Close(); err != nil {
			s.logf("close history: %v", err)
		}
	}
}

func (s *Server) current() *activeProject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close releases the active project's watcher and history database.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.closeActive(s.active)
		s.active = nil
	}
	return nil
}

// Snapshot computes the active project's snapshot.
func (s *Server) Snapshot(ctx context.Context) (status.Snapshot, error) {
	active := s.current()
	if active == nil {
		return status.Snapshot{}, ErrNoProject
	}
	return s.snapshot(ctx, active.project)
}

func (s *Server) snapshot(ctx context.Context, p project.Project) (status.Snapshot, error) {
	started := time.Now()
	snapshot, err := s.aggregator.Snapshot(ctx, p)
	if err != nil {
		return status.Snapshot{}, err
	}
	s.metrics.observeSnapshot(p.Name, snapshot.OverallProgress, time.Since(started))
	return snapshot, nil
}

// Publish computes the active project's snapshot and broadcasts it to
// every subscriber.
func (s *Server) Publish(ctx context.Context, source string) (status.Snapshot, error) {
	active := s.current()
	if active == nil {
		return status.Snapshot{}, ErrNoProject
	}
	snapshot, err := s.snapshot(ctx, active.project)
	if err != nil {
		return status.Snapshot{}, err
	}
	s.hub.Broadcast(snapshot)
	s.metrics.publishes.WithLabelValues(source).Inc()
	if active.history != nil {
		if _, err := active.history.Record(ctx, snapshot, source); err != nil {
			s.logf("record history: %v", err)
		}
	}
	return snapshot, nil
}

// trigger requests a publish from Run. Requests made while one is pending
// are coalesced.
func (s *Server) trigger(source string) {
	select {
	case s.triggers <- source:
	default:
	}
}

// Run publishes on every heartbeat tick and on every triggered change until
// ctx is done. The two sources publish from separate goroutines, so a slow
// heartbeat snapshot never delays a change snapshot.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.heartbeat > 0 {
		g.Go(func() error {
			s.runHeartbeat(ctx)
			return nil
		})
	}
	g.Go(func() error {
		s.runTriggers(ctx)
		return nil
	})
	return g.Wait()
}

func (s *Server) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishLogged(ctx, SourceHeartbeat)
		}
	}
}

func (s *Server) runTriggers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case source := <-s.triggers:
			s.publishLogged(ctx, source)
		}
	}
}

func (s *Server) publishLogged(ctx context.Context, source string) {
	if _, err := s.Publish(ctx, source); err != nil && !errors.Is(err, ErrNoProject) && ctx.Err() == nil {
		s.logf("publish (%s): %v", source, err)
	}
}

// Handler returns the HTTP handler for the swarm API.
func (s *Server) Handler() http.Handler {
	return s.handler("")
}

func (s *Server) handler(baseURL string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/projects", s.handleProjects)
	mux.HandleFunc("/api/project", s.handleProject)
	mux.HandleFunc("/api/subscribe", s.handleSubscribe)
	mux.HandleFunc("/api/merge", s.handleMerge)
	mux.HandleFunc("/api/update", s.handleUpdate)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	webHandler := web.NewHandler(web.Options{BaseURL: baseURL})
	mux.Handle("/web/", webHandler)
	mux.Handle("/web", http.RedirectHandler("/web/board", http.StatusFound))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/web/board", http.StatusFound)
	})
	return s.recoverHandler(mux)
}

// Serve runs the server on the given address until interrupted.
func (s *Server) Serve(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := &http.Server{
		Addr:        addr,
		Handler:     s.handler(resolveWebBaseURL(addr)),
		ErrorLog:    s.logger,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	runErrs := make(chan error, 1)
	go func() {
		runErrs <- s.Run(ctx)
	}()

	listenErrs := make(chan error, 1)
	go func() {
		listenErrs <- server.ListenAndServe()
	}()
	s.logf("listening on %s", addr)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	select {
	case err := <-listenErrs:
		cancel()
		<-runErrs
		closeErr := s.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logf("server stopped: %v", err)
			return errors.Join(err, closeErr)
		}
		return closeErr
	case <-interrupts:
		s.logf("interrupt received, shutting down")
		// Cancelling the base context ends open subscriptions so that
		// Shutdown does not wait on them.
		cancel()
		runErr := <-runErrs
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		shutdownErr := server.Shutdown(shutdownCtx)
		shutdownCancel()
		listenErr := <-listenErrs
		if errors.Is(listenErr, http.ErrServerClosed) {
			listenErr = nil
		}
		if errors.Is(shutdownErr, http.ErrServerClosed) {
			shutdownErr = nil
		}
		closeErr := s.Close()
		return errors.Join(runErr, shutdownErr, listenErr, closeErr)
	}
}

const shutdownTimeout = 5 * time.Second

func resolveWebBaseURL(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return internalstrings.TrimTrailingSlash(trimmed)
	}
	host := trimmed
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	if strings.HasPrefix(host, "0.0.0.0:") {
		host = "127.0.0.1:" + strings.TrimPrefix(host, "0.0.0.0:")
	}
	return "http://" + host
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	snapshot, err := s.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	projects, err := project.Discover(s.projectsDir)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	response := projectsResponse{Projects: projects}
	if active, ok := s.Project(); ok {
		response.Active = active.Name
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var payload projectRequest
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	name := internalstrings.TrimSpace(payload.Name)
	path := internalstrings.TrimSpace(payload.Path)
	if (name == "") == (path == "") {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("exactly one of name or path is required"))
		return
	}

	var p project.Project
	var err error
	if path != "" {
		p, err = project.Open(path)
	} else {
		p, err = project.Find(s.projectsDir, name)
	}
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	if err := s.SetProject(p); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	snapshot, err := s.Publish(r.Context(), SourceSwitch)
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: p, Snapshot: snapshot})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("response does not support streaming"))
		return
	}
	ctx := r.Context()
	subscription := s.hub.Subscribe()
	s.metrics.subscribers.Set(float64(s.hub.Len()))
	defer func() {
		s.hub.Unsubscribe(subscription.ID)
		s.metrics.subscribers.Set(float64(s.hub.Len()))
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	encoder := json.NewEncoder(w)

	snapshot, err := s.Snapshot(ctx)
	switch {
	case err == nil:
		if err := encoder.Encode(snapshot); err != nil {
			return
		}
	case errors.Is(err, ErrNoProject):
	default:
		s.logRequestError(r, http.StatusInternalServerError, err)
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-subscription.C:
			if !ok {
				return
			}
			if err := encoder.Encode(snapshot); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var payload mergeRequest
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := payload.validate(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	active := s.current()
	if active == nil {
		s.writeError(w, r, http.StatusNotFound, ErrNoProject)
		return
	}
	result, err := active.merger.Merge(r.Context(), payload.Request, reconcile.MergeOptions{DryRun: payload.DryRun})
	s.metrics.observeMerge(result, err)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if result.Applied {
		s.trigger(SourceMerge)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var payload updateRequest
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := payload.validate(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	active := s.current()
	if active == nil {
		s.writeError(w, r, http.StatusNotFound, ErrNoProject)
		return
	}
	updated, err := active.merger.UpdateStatus(r.Context(), payload.Terminal, payload.Task, payload.completed())
	s.metrics.observeUpdate(updated, err)
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	if updated {
		s.trigger(SourceUpdate)
	}
	writeJSON(w, http.StatusOK, updateResponse{Updated: updated})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	snapshot, err := s.Publish(r.Context(), SourceRefresh)
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoProject), errors.Is(err, project.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, project.ErrInvalidProjectName), errors.Is(err, ledger.ErrInvalidTerminal):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) recoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writer := &responseTracker{ResponseWriter: w}
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logf("panic handling request %s %s: %v\n%s", r.Method, r.URL.Path, recovered, debug.Stack())
				if writer.wroteHeader {
					return
				}
				writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(writer, r)
	})
}

type projectsResponse struct {
	Projects []project.Metadata `json:"projects"`
	Active   string             `json:"active,omitempty"`
}

type projectRequest struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

type projectResponse struct {
	Project  project.Project `json:"project"`
	Snapshot status.Snapshot `json:"snapshot"`
}

type updateResponse struct {
	Updated bool `json:"updated"`
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	s.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	return false
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("unexpected extra JSON data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logRequestError(r, status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) logRequestError(r *http.Request, status int, err error) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf("request %s %s failed (%d): %v", r.Method, r.URL.Path, status, err)
}

func (s *Server) logf(format string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

type responseTracker struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *responseTracker) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseTracker) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(data)
}

func (w *responseTracker) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
