// Package server exposes the assistant over HTTP: chat routing, skill
// registry management, the executor audit log and metrics summaries.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/zoe-assistant/zoe/pkg/logger"
	"github.com/zoe-assistant/zoe/pkg/metrics"
	"github.com/zoe-assistant/zoe/pkg/presenter"
	"github.com/zoe-assistant/zoe/pkg/router"
	"github.com/zoe-assistant/zoe/pkg/skills"
)

const (
	defaultAuditLimit   = 50
	defaultMetricsRange = 24 * time.Hour
	shutdownTimeout     = 30 * time.Second
)

// Config holds the HTTP server settings.
type Config struct {
	Host string
	Port int
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Summarizer produces aggregate intent metrics for the API.
type Summarizer interface {
	Summary(ctx context.Context, since time.Time) ([]metrics.IntentSummary, error)
}

// Server wires the chat router, skill registry and executor audit log
// into an HTTP API.
type Server struct {
	config     *Config
	chats      *router.Router
	registry   *skills.Registry
	executor   *skills.Executor
	summarizer Summarizer

	mux    *mux.Router
	server *http.Server
}

// NewServer builds the API server. summarizer may be nil when metrics
// persistence is disabled.
func NewServer(config *Config, chats *router.Router, registry *skills.Registry, executor *skills.Executor, summarizer Summarizer) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:     config,
		chats:      chats,
		registry:   registry,
		executor:   executor,
		summarizer: summarizer,
		mux:        mux.NewRouter(),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.Use(s.loggingMiddleware)
	s.mux.Use(s.corsMiddleware)

	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chat", s.handleChat).Methods("POST")
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/reload", s.handleReloadSkills).Methods("POST")
	api.HandleFunc("/skills/audit", s.handleAuditLog).Methods("GET")
	api.HandleFunc("/skills/{name}/approve", s.handleApproveSkill).Methods("POST")
	api.HandleFunc("/metrics/summary", s.handleMetricsSummary).Methods("GET")

	s.mux.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.mux,
	}

	presenter.Info(fmt.Sprintf("Starting API server on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Message == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "message is required", nil)
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	response := s.chats.Route(r.Context(), req.UserID, req.SessionID, req.Message)
	s.writeJSONResponse(w, response)
}

type skillSummary struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Source           string   `json:"source"`
	Version          string   `json:"version"`
	Active           bool     `json:"active"`
	Priority         int      `json:"priority"`
	Triggers         []string `json:"triggers"`
	AllowedEndpoints []string `json:"allowed_endpoints"`
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	all := s.registry.Skills()
	summaries := make([]skillSummary, 0, len(all))
	for _, skill := range all {
		summaries = append(summaries, skillSummary{
			Name:             skill.Name,
			Description:      skill.Description,
			Source:           string(skill.Source),
			Version:          skill.Version,
			Active:           skill.Active,
			Priority:         skill.Priority,
			Triggers:         skill.Triggers,
			AllowedEndpoints: skill.AllowedEndpoints,
		})
	}
	s.writeJSONResponse(w, map[string]any{"skills": summaries, "count": len(summaries)})
}

func (s *Server) handleApproveSkill(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	approved, err := s.registry.ApproveSkill(r.Context(), name)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to approve skill", err)
		return
	}
	if !approved {
		s.writeErrorResponse(w, http.StatusNotFound, "skill not found", nil)
		return
	}
	s.writeJSONResponse(w, map[string]any{"approved": name, "success": true})
}

func (s *Server) handleReloadSkills(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Load(r.Context()); err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to reload skills", err)
		return
	}
	s.writeJSONResponse(w, map[string]any{"success": true, "count": len(s.registry.Skills())})
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeErrorResponse(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = parsed
	}

	entries := s.executor.CallLog(limit)
	s.writeJSONResponse(w, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		s.writeErrorResponse(w, http.StatusNotImplemented, "metrics persistence is disabled", nil)
		return
	}

	since := time.Now().Add(-defaultMetricsRange)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "invalid since timestamp", err)
			return
		}
		since = parsed
	}

	summary, err := s.summarizer.Summary(r.Context(), since)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to summarize metrics", err)
		return
	}
	s.writeJSONResponse(w, map[string]any{"intents": summary, "since": since})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{"status": "ok"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}
