// Package server exposes the HTTP surface: metrics scrape, health queries,
// the websocket stream, and administrative triggers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsdeck/opsdeck/internal/alert"
	"github.com/opsdeck/opsdeck/internal/backup"
	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/storage"
	"github.com/opsdeck/opsdeck/internal/monitor"
	"github.com/opsdeck/opsdeck/internal/stream"
)

// Server hosts the dashboard backend API.
type Server struct {
	orchestrator *monitor.Orchestrator
	hub          *stream.Hub
	backups      *backup.Manager
	backupRepo   storage.BackupRepository
	dispatcher   *alert.Dispatcher
	httpServer   *http.Server
	log          *slog.Logger
}

// New creates the server and its router.
func New(
	port int,
	orchestrator *monitor.Orchestrator,
	hub *stream.Hub,
	backups *backup.Manager,
	backupRepo storage.BackupRepository,
	dispatcher *alert.Dispatcher,
) *Server {
	s := &Server{
		orchestrator: orchestrator,
		hub:          hub,
		backups:      backups,
		backupRepo:   backupRepo,
		dispatcher:   dispatcher,
		log:          slog.Default().With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(recordMetrics)

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleHealthDetailed)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", hub.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/backups", s.handleRunBackup)
		r.Get("/backups", s.handleListBackups)
		r.Post("/backups/{filename}/restore", s.handleRestore)
		r.Post("/push/subscriptions/{userID}", s.handleSubscribe)
		r.Delete("/push/subscriptions/{userID}", s.handleUnsubscribe)
		r.Get("/notifications/{userID}", s.handleNotifications)
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the snapshot summary. Always best-effort: partial
// probe failures show as unhealthy counts, never as an error response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.orchestrator.Snapshot()

	status := "healthy"
	if snapshot.Summary.UnhealthyCount > 0 {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"summary": snapshot.Summary,
	})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Snapshot())
}

func (s *Server) handleRunBackup(w http.ResponseWriter, r *http.Request) {
	record, err := s.backups.RunBackup(r.Context(), domain.BackupManual)
	if errors.Is(err, backup.ErrBackupInProgress) {
		writeError(w, http.StatusConflict, "backup already in progress")
		return
	}
	if err != nil {
		s.log.Error("Backup trigger failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backup could not start")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	records, err := s.backupRepo.List(r.Context(), limit)
	if err != nil {
		s.log.Error("Failed to list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	err := s.backups.RestoreBackup(r.Context(), filename)
	switch {
	case errors.Is(err, backup.ErrInvalidFilename):
		writeError(w, http.StatusBadRequest, "invalid backup filename")
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "backup artifact not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "filename": filename})
	}
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var body struct {
		Endpoint string                  `json:"endpoint"`
		Keys     domain.SubscriptionKeys `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "invalid subscription payload")
		return
	}

	sub := &domain.PushSubscription{
		UserID:   userID,
		Endpoint: body.Endpoint,
		Keys:     body.Keys,
	}
	if err := s.dispatcher.Subscribe(r.Context(), sub); err != nil {
		s.log.Error("Subscribe failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.dispatcher.Unsubscribe(r.Context(), userID); err != nil {
		s.log.Error("Unsubscribe failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	notifications, err := s.dispatcher.Notifications(r.Context(), userID)
	if err != nil {
		s.log.Error("Failed to load notifications", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
