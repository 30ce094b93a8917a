// Package server exposes health, metrics and the notification API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vanlang-budget/budget-guardian/pkg/model"
	"github.com/vanlang-budget/budget-guardian/pkg/monitor"
	"github.com/vanlang-budget/budget-guardian/pkg/storage"
)

// Checker runs a threshold check on demand.
type Checker interface {
	RunThresholdCheck(ctx context.Context) (int, error)
}

// Server provides health, metrics and notification endpoints.
type Server struct {
	checker       Checker
	notifications storage.NotificationStore
	logger        *slog.Logger
	router        chi.Router
}

// NewServer creates an API server.
func NewServer(checker Checker, notifications storage.NotificationStore, logger *slog.Logger) *Server {
	s := &Server{
		checker:       checker,
		notifications: notifications,
		logger:        logger.With("component", "server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checks/thresholds", s.handleThresholdCheck)
		r.Get("/users/{userID}/notifications", s.handleListNotifications)
		r.Post("/notifications/{id}/read", s.handleMarkRead)
	})

	s.router = r
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleThresholdCheck(w http.ResponseWriter, r *http.Request) {
	count, err := s.checker.RunThresholdCheck(r.Context())
	if errors.Is(err, monitor.ErrCheckRunning) {
		writeError(w, http.StatusConflict, "threshold check already running")
		return
	}
	if err != nil {
		// The monitor has already logged the failure.
		writeError(w, http.StatusInternalServerError, "threshold check failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"notifications": count})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := model.NotificationFilter{
		UserID:     chi.URLParam(r, "userID"),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	list, err := s.notifications.ListNotifications(ctx, filter)
	if err != nil {
		s.logger.Error("list notifications", "user", filter.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	err := s.notifications.MarkNotificationRead(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "notification not found")
	case err != nil:
		s.logger.Error("mark notification read", "notification", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
