// Package api provides the read-only HTTP API server for moodpulse.
//
// It exposes the combined mood store, per-entity latest and historical
// records, the current schedule slot, the last run report, and a WebSocket
// channel that announces finished runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/moodpulse/internal/config"
	"github.com/seenimoa/moodpulse/internal/infra"
	"github.com/seenimoa/moodpulse/internal/logger"
	"github.com/seenimoa/moodpulse/internal/report"
	"github.com/seenimoa/moodpulse/internal/store"
	"github.com/seenimoa/moodpulse/pkg/models"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

// Version is reported by /health. The CLI overrides it at startup.
var Version = "dev"

// cacheTTL bounds how stale a cached artifact can be when no run
// notification invalidates it (e.g. runs from a separate "run" process).
const cacheTTL = 30 * time.Second

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	files   *store.FileStore
	cache   *infra.Cache[any]
	wsHub   *WSHub
	now     func() time.Time
	started time.Time
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, files *store.FileStore) *Server {
	srv := &Server{
		cfg:     cfg,
		files:   files,
		cache:   infra.NewCache[any](cacheTTL),
		wsHub:   NewWSHub(),
		now:     time.Now,
		started: time.Now(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// NotifyRun drops cached artifacts and tells WebSocket clients a run
// finished. It is registered as a scheduler listener in daemon mode.
func (s *Server) NotifyRun(report *models.RunReport) {
	s.cache.Flush()
	s.wsHub.Broadcast(WSMessage{Type: store.EventRunCompleted, Data: report})
}

// Addr returns the listen address from the configuration.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.API.Host, strconv.Itoa(s.cfg.API.Port))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start WebSocket hub and the cache janitor
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.wsHub.Run(hubCtx)
	go s.cleanCache(hubCtx, cacheTTL)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.WithField("addr", httpSrv.Addr).Info("API server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// cleanCache drops expired cache entries every interval until ctx is done.
func (s *Server) cleanCache(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cache.Cleanup()
		}
	}
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		// Health check
		r.Get("/health", s.handleHealth)

		// API v1 routes
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/health", s.handleHealth)

			// Moods
			r.Get("/moods", s.handleMoods)
			r.Get("/moods/{id}", s.handleMood)
			r.Get("/moods/{id}/history", s.handleHistory)
			r.Get("/moods/{id}/history/{slot}", s.handleSnapshot)

			// Schedule & runs
			r.Get("/slot", s.handleSlot)
			r.Get("/runs/last", s.handleLastRun)

			// Configuration
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})

		// Digest
		r.Get("/report", s.handleReport)

		// Raw artifacts, same layout as the output directory.
		r.Handle("/data/*", http.StripPrefix("/data/", http.FileServer(http.Dir(s.files.Dir()))))
	})

	// WebSocket, outside the request timeout.
	r.Get("/api/v1/ws", s.handleWebSocket)

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SlotResponse describes the current and next schedule boundaries.
type SlotResponse struct {
	Current       utils.Slot `json:"current"`
	Next          utils.Slot `json:"next"`
	ScheduleHours []int      `json:"scheduleHours"`
	Timezone      string     `json:"timezone"`
}

// HistoryResponse lists an entity's snapshot labels, newest first.
type HistoryResponse struct {
	EntityID string   `json:"entityId"`
	Slots    []string `json:"slots"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"version":    Version,
			"uptime":     s.now().Sub(s.started).Round(time.Second).String(),
			"time_kst":   utils.FormatDateTimeKST(s.now()),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleMoods(w http.ResponseWriter, r *http.Request) {
	v, err := s.cache.GetOrLoad("moods", func() (any, error) { return s.loadStore() })
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: v})
}

func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := s.cache.GetOrLoad("latest:"+id, func() (any, error) { return s.files.Latest(id) })
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: v})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	labels, err := s.files.History(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(labels) {
		labels = labels[:limit]
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: HistoryResponse{EntityID: id, Slots: labels}})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := s.files.Snapshot(chi.URLParam(r, "id"), chi.URLParam(r, "slot"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	hours := s.cfg.Pipeline.ScheduleHours
	if len(hours) == 0 {
		hours = utils.DefaultScheduleHours
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: SlotResponse{
			Current:       utils.AlignSlot(now, hours),
			Next:          utils.NextSlot(now, hours),
			ScheduleHours: hours,
			Timezone:      utils.KST.String(),
		},
	})
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	v, err := s.cache.GetOrLoad("last_run", func() (any, error) { return s.files.LoadReport() })
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: v})
}

// handleReport renders the mood digest. Query parameters: lang (a
// translation key, default "en") and format ("html" or "text").
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	st, err := s.loadStore()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	run, err := s.files.LoadReport()
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeStoreError(w, r, err)
		return
	}

	cfg := report.DefaultConfig()
	cfg.Now = s.now
	if lang := r.URL.Query().Get("lang"); lang != "" {
		cfg.Lang = lang
	}

	if report.Format(r.URL.Query().Get("format")) == report.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.GenerateText(st, run, cfg)))
		return
	}

	page, err := report.GenerateHTML(st, run, cfg)
	if err != nil {
		logger.Log.WithError(err).Error("rendering digest failed")
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

// ============================================================
// Helpers
// ============================================================

// loadStore reads the combined store, rebuilding it from the per-entity
// latest records when the file is unreadable.
func (s *Server) loadStore() (models.Store, error) {
	st, err := s.files.Load()
	if err == nil {
		return st, nil
	}
	logger.Log.WithError(err).Warn("combined store unreadable, serving records rebuilt from latest")
	return s.files.Rebuild()
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	logger.Log.WithError(err).WithField("path", r.URL.Path).Error("reading artifact failed")
	writeError(w, http.StatusInternalServerError, "failed to read artifact")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
