package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mcpdeck/internal/app"
	"mcpdeck/internal/config"
	"mcpdeck/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP/WebSocket host layer over the core. It performs no
// authentication; callers are assumed pre-authenticated by the surrounding
// deployment.
type Server struct {
	core       *app.Core
	httpServer *http.Server
}

// New creates the host layer listening on the dashboard address.
func New(core *app.Core, cfg config.DashboardConfig) *Server {
	s := &Server{core: core}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/servers", s.handleListServers)
		r.Post("/servers", s.handleCreateServer)
		r.Post("/servers/start", s.handleBulkStart)
		r.Post("/servers/stop", s.handleBulkStop)

		r.Route("/servers/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetServer)
			r.Put("/config", s.handleConfigureServer)
			r.Delete("/", s.handleDeleteServer)
			r.Post("/start", s.handleStartServer)
			r.Post("/stop", s.handleStopServer)
			r.Post("/restart", s.handleRestartServer)
			r.Post("/observations", s.handleRecordObservation)
		})

		r.Get("/events", s.handleEvents)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, used by tests and embedding servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown or a listener
// error.
func (s *Server) ListenAndServe() error {
	logging.Info("Server", "Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
