package httpapi

import (
	"DocVerify/internal/core/domain"
	"DocVerify/internal/core/ports"
	"DocVerify/internal/shared/config"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the intake gateway. It accepts verification events from the
// backend, validates them and enqueues them; everything downstream is
// asynchronous and observable only via the stats surface.
type Server struct {
	repo ports.EventRepository
	cfg  *config.HTTPConfig
	log  zerolog.Logger
	srv  *http.Server
}

// NewServer creates the intake HTTP server.
func NewServer(repo ports.EventRepository, cfg *config.HTTPConfig, baseLogger *zerolog.Logger) *Server {
	s := &Server{
		repo: repo,
		cfg:  cfg,
		log:  baseLogger.With().Str("component", "http_server").Logger(),
	}
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(baseLogger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(baseLogger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	guard := newAllowList(s.cfg.AllowedIPs, baseLogger)
	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware)
		r.Post("/events", s.handleEnqueue)
		r.Get("/queue/stats", s.handleStats)
	})

	return r
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("Intake server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("Shutting down intake server")
		return s.srv.Shutdown(shutdownCtx)
	}
}

// intakePayload mirrors the event the backend POSTs on document creation.
type intakePayload struct {
	UserID         string `json:"userId"`
	IdentityNumber string `json:"identityNumber"`
	EventType      string `json:"eventType"`
	EventData      struct {
		ID             string `json:"id"`
		DocumentNumber string `json:"documentNumber"`
	} `json:"eventData"`
}

// handleEnqueue validates and enqueues one event. The caller only learns
// accept/reject here; verification outcomes arrive later via the backend
// update, never synchronously.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var payload intakePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.log.Warn().Err(err).Msg("Rejected unparseable intake payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	event := &domain.Event{
		UserID:         payload.UserID,
		IdentityNumber: payload.IdentityNumber,
		EventType:      domain.EventType(payload.EventType),
		RecordID:       payload.EventData.ID,
		DocumentNumber: payload.EventData.DocumentNumber,
	}

	id, err := s.repo.Enqueue(r.Context(), event)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
			return
		}
		s.log.Error().Err(err).Msg("Failed to enqueue event")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event store unavailable"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": string(domain.StatusNew)})
}

// handleStats exposes per-status queue counts for operability.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Stats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read queue stats")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
