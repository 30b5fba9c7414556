// Package server exposes the forks read model over an HTTP/JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/agents"
	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/installed"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/preview"
	"github.com/fxding/forks/pkg/registry"
	"github.com/fxding/forks/pkg/search"
	"github.com/fxding/forks/pkg/service"
	"github.com/fxding/forks/pkg/staleness"
)

// Backend is the part of service.Service the API reads from.
type Backend interface {
	Snapshot(ctx context.Context) (*service.Snapshot, error)
	Refresh(ctx context.Context) (*service.Snapshot, error)
	RefreshRegistry(ctx context.Context, force bool) (staleness.Report, *service.Snapshot, error)
	SkillMarkdownPath(ctx context.Context, name string) (string, error)
	Catalog() *agents.Catalog
	Home() string
}

// Searcher queries the remote skill directory.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// Server represents the API server
type Server struct {
	router   *mux.Router
	backend  Backend
	searcher Searcher
	config   *Config
	server   *http.Server
}

// Config holds the configuration for the API server
type Config struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Address is the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// New creates an API server. searcher may be nil, in which case
// /api/search answers 503.
func New(config *Config, backend Backend, searcher Searcher) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router:   mux.NewRouter(),
		backend:  backend,
		searcher: searcher,
		config:   config,
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{name}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/sources", s.handleListSources).Methods("GET")
	api.HandleFunc("/agents", s.handleListAgents).Methods("GET")
	api.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	api.HandleFunc("/registry/refresh", s.handleRegistryRefresh).Methods("POST")
	api.HandleFunc("/search", s.handleSearch).Methods("GET")

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSONResponse(w, map[string]string{"status": "ok"})
	}).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Debug("HTTP request")
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SkillsResponse is returned by GET /api/skills.
type SkillsResponse struct {
	Skills  []installed.Skill `json:"skills"`
	Total   int               `json:"total"`
	TakenAt time.Time         `json:"takenAt"`
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	snap, err := s.backend.Snapshot(r.Context())
	if err != nil {
		s.writeErrorResponse(w, r, statusFor(err), "failed to load skills", err)
		return
	}

	filter, err := presenter.NewFilter(r.URL.Query().Get("filter"))
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "invalid filter", err)
		return
	}
	agent := r.URL.Query().Get("agent")
	updates := r.URL.Query().Get("updates") == "true"

	out := make([]installed.Skill, 0, len(snap.Installed))
	for _, sk := range snap.Installed {
		if !filter.Match(sk.Name, sk.Source) {
			continue
		}
		if agent != "" && !sk.HasAgent(agent) {
			continue
		}
		if updates && !sk.UpdateAvailable {
			continue
		}
		out = append(out, sk)
	}

	s.writeJSONResponse(w, SkillsResponse{Skills: out, Total: len(out), TakenAt: snap.TakenAt})
}

// SkillResponse is returned by GET /api/skills/{name}.
type SkillResponse struct {
	Skill    installed.Skill   `json:"skill"`
	Markdown *preview.Document `json:"markdown,omitempty"`
}

// handleGetSkill handles GET /api/skills/{name}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		s.writeErrorResponse(w, r, statusFor(err), "failed to load skills", err)
		return
	}
	sk, ok := installed.Find(snap.Installed, name)
	if !ok {
		s.writeErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("skill %q not installed", name), nil)
		return
	}

	resp := SkillResponse{Skill: sk}
	if path, err := s.backend.SkillMarkdownPath(ctx, name); err == nil {
		if doc, err := preview.RenderFile(path); err == nil {
			resp.Markdown = doc
		} else {
			logger.G(ctx).WithError(err).WithField("path", path).Warn("failed to render skill markdown")
		}
	}
	s.writeJSONResponse(w, resp)
}

// handleListSources handles GET /api/sources
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	snap, err := s.backend.Snapshot(r.Context())
	if err != nil {
		s.writeErrorResponse(w, r, statusFor(err), "failed to load sources", err)
		return
	}
	srcs := snap.Sources
	if srcs == nil {
		srcs = []registry.Source{}
	}
	s.writeJSONResponse(w, map[string]any{"sources": srcs, "total": len(srcs)})
}

// handleListAgents handles GET /api/agents
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	catalog := s.backend.Catalog()
	defs := catalog.All()
	if r.URL.Query().Get("detected") == "true" {
		defs = catalog.Detected(s.backend.Home())
	}
	if defs == nil {
		defs = []agents.Definition{}
	}
	s.writeJSONResponse(w, map[string]any{"agents": defs, "total": len(defs)})
}

// handleRefresh handles POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.backend.Refresh(r.Context())
	if err != nil {
		s.writeErrorResponse(w, r, statusFor(err), "failed to refresh", err)
		return
	}
	s.writeJSONResponse(w, snap)
}

// RegistryRefreshResponse is returned by POST /api/registry/refresh.
type RegistryRefreshResponse struct {
	Report   staleness.Report  `json:"report"`
	Error    string            `json:"error,omitempty"`
	Snapshot *service.Snapshot `json:"snapshot"`
}

// handleRegistryRefresh handles POST /api/registry/refresh
func (s *Server) handleRegistryRefresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	report, snap, err := s.backend.RefreshRegistry(r.Context(), force)
	if err != nil {
		s.writeErrorResponse(w, r, statusFor(err), "failed to refresh registry", err)
		return
	}
	resp := RegistryRefreshResponse{Report: report, Snapshot: snap}
	if report.Err != nil {
		resp.Error = report.Err.Error()
	}
	s.writeJSONResponse(w, resp)
}

// handleSearch handles GET /api/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		s.writeErrorResponse(w, r, http.StatusServiceUnavailable, "search is not configured", nil)
		return
	}
	results, err := s.searcher.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusBadGateway, "search failed", err)
		return
	}
	s.writeJSONResponse(w, map[string]any{"skills": results})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errdefs.ErrSkillNotFound), errors.Is(err, errdefs.ErrSourceNotFound):
		return http.StatusNotFound
	case errdefs.IsCancelled(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	if err != nil {
		logger.G(r.Context()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err != nil {
		response["detail"] = err.Error()
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode error response")
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.config.Address())
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.G(ctx).WithField("address", ln.Addr().String()).Info("serving forks API")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
