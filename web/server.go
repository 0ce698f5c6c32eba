// ABOUTME: HTTP server for the agent task front end behind a single chi router.
// ABOUTME: Task CRUD as JSON, per-task SSE event streams, page rendering, and workspace downloads.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/skytodmoon/OpenManus/task"
)

// Server is the task front end: it owns the task manager, the template
// engine, and the agent runner that produces events.
type Server struct {
	mgr       *task.Manager
	templates *TemplateEngine
	router    chi.Router
	runner    AgentRunner
	workspace Workspace
	addr      string
	log       logrus.FieldLogger
}

// ServerConfig holds the configuration for the web server.
type ServerConfig struct {
	Addr         string      // listen address (default: "127.0.0.1:5172")
	DataDir      string      // directory for the task database; empty disables persistence
	WorkspaceDir string      // agent output directory served by /download
	Runner       AgentRunner // produces steps for created tasks; nil tasks stay pending
	Logger       logrus.FieldLogger
}

// NewServer creates a Server with the given configuration. It initializes
// the task manager (restoring persisted tasks when a data directory is set)
// and sets up routing.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:5172"
	}
	if cfg.WorkspaceDir == "" {
		return nil, fmt.Errorf("WorkspaceDir must not be empty")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	mgrOpts := []task.ManagerOption{task.WithLogger(cfg.Logger)}
	if cfg.DataDir != "" {
		store, err := task.OpenStore(filepath.Join(cfg.DataDir, "tasks.db"))
		if err != nil {
			return nil, fmt.Errorf("opening task store: %w", err)
		}
		mgrOpts = append(mgrOpts, task.WithStore(store))
	}
	mgr, err := task.NewManager(mgrOpts...)
	if err != nil {
		return nil, fmt.Errorf("initializing task manager: %w", err)
	}

	tmpl, err := NewTemplateEngine()
	if err != nil {
		return nil, fmt.Errorf("initializing templates: %w", err)
	}

	s := &Server{
		mgr:       mgr,
		templates: tmpl,
		runner:    cfg.Runner,
		workspace: NewWorkspace(cfg.WorkspaceDir),
		addr:      cfg.Addr,
		log:       cfg.Logger,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Manager exposes the task manager so embedding programs (demo seeding,
// tests) can drive task state directly.
func (s *Server) Manager() *task.Manager {
	return s.mgr
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer returns an http.Server configured for this handler. The write
// timeout is generous because SSE connections stay open for the lifetime of
// a task.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.addr).Info("web server listening")
	return s.HTTPServer().ListenAndServe()
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/", s.handleIndex)
	r.Get("/chat", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/download", s.handleDownload)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.handleTaskList)
		r.Post("/", s.handleTaskCreate)

		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", s.handleTaskGet)
			r.Get("/view", s.handleTaskView)
			r.Get("/events", s.handleTaskEvents)
		})
	})

	return r
}

// handleIndex renders the main chat page with the task history sidebar.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title: "OpenManus",
		Tasks: s.mgr.List(),
	}
	if err := s.templates.Render(w, "index.html", data); err != nil {
		s.log.WithError(err).Error("rendering index")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// handleHealth returns a JSON health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTaskList returns all tasks as a JSON array, newest first.
func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.List())
}

// handleTaskCreate creates a task from a JSON {"prompt": ...} body and kicks
// off the agent runner in the background. The response carries only the task
// ID; clients attach to /tasks/{id}/events for progress.
func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isMaxBytesError(err) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeDetail(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	t, err := s.mgr.Create(prompt)
	if err != nil {
		s.log.WithError(err).Error("creating task")
		writeDetail(w, http.StatusInternalServerError, "Failed to create task")
		return
	}

	if s.runner != nil {
		go s.runTask(t.ID, prompt)
	}

	writeJSON(w, http.StatusOK, map[string]string{"task_id": t.ID})
}

// runTask drives the agent runner for one task in the background, converting
// panics and errors into a failed terminal state so the feed always closes.
func (s *Server) runTask(taskID, prompt string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.WithFields(logrus.Fields{"task": taskID, "panic": rec}).Error("agent runner panicked")
			_ = s.mgr.Fail(taskID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	if err := s.mgr.SetRunning(taskID); err != nil {
		s.log.WithError(err).WithField("task", taskID).Warn("marking task running")
		return
	}
	if err := s.runner.Run(s.mgr, taskID, prompt); err != nil {
		_ = s.mgr.Fail(taskID, err.Error())
	}
}

// handleTaskGet returns the full task snapshot as JSON.
func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	t, err := s.mgr.Get(taskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Task not found")
			return
		}
		writeDetail(w, http.StatusInternalServerError, "Failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleTaskView renders a finished task as a standalone page with the
// prompt, the step record, and the final result rendered as markdown.
func (s *Server) handleTaskView(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	t, err := s.mgr.Get(taskID)
	if err != nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	data := PageData{
		Title: "Task " + shortID(t.ID),
		Task:  t,
	}
	if len(t.Steps) > 0 {
		data.ResultHTML = renderMarkdown(t.Steps[len(t.Steps)-1].Content)
	}
	if err := s.templates.Render(w, "task_view.html", data); err != nil {
		s.log.WithError(err).Error("rendering task_view")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the {"detail": ...} error shape used by every non-2xx
// JSON response.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// isMaxBytesError reports whether err (or any error in its chain) is an
// *http.MaxBytesError, indicating the request body exceeded the size limit.
func isMaxBytesError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// shortID returns the first segment of a UUID for page titles.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
