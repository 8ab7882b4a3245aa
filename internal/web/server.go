// Package web exposes a small ops surface next to the bot: a health probe,
// the scheduler status and a manual reminder trigger for debugging stuck
// deliveries.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/inconshreveable/log15"

	"hiretrack/internal/scheduler"
	"hiretrack/internal/tracker"
)

// Server is the ops HTTP server.
type Server struct {
	sched *scheduler.Scheduler
	log   log.Logger
	srv   *http.Server
}

// New builds the server on the given listen address.
func New(addr string, sched *scheduler.Scheduler) *Server {
	s := &Server{
		sched: sched,
		log:   log.New("module", "web"),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/debug/scheduler", s.handleSchedulerStatus)
	r.Post("/debug/reminders/{id}/trigger", s.handleTriggerReminder)

	return r
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Start: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Status())
}

func (s *Server) handleTriggerReminder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid reminder id", http.StatusBadRequest)
		return
	}

	err = s.sched.TriggerReminder(r.Context(), uint(id))
	switch {
	case errors.Is(err, tracker.ErrReminderNotFound):
		http.Error(w, "Reminder not found", http.StatusNotFound)
	case errors.Is(err, scheduler.ErrReminderAlreadySent):
		http.Error(w, "Reminder already sent", http.StatusConflict)
	case err != nil:
		s.log.Error("manual trigger failed", "reminder", id, "err", err)
		http.Error(w, "Delivery failed", http.StatusBadGateway)
	default:
		s.log.Info("reminder triggered manually", "reminder", id)
		writeJSON(w, http.StatusOK, map[string]any{"status": "delivered", "id": id})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
