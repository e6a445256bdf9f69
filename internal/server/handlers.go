package server

import (
	"encoding/json"
	"net/http"
	"time"

	"mcpdeck/internal/api"

	"github.com/go-chi/chi/v5"
)

// createServerRequest is the body of POST /api/v1/servers.
type createServerRequest struct {
	Name   string           `json:"name"`
	Config api.ServerConfig `json:"config"`
}

// bulkRequest is the body of the bulk start/stop endpoints.
type bulkRequest struct {
	IDs []string `json:"ids"`
}

// observationRequest is the body of POST /api/v1/servers/{id}/observations.
// Whatever fronts a managed server reports completed requests here; the
// collector aggregates them into the latency and error-rate metrics.
type observationRequest struct {
	LatencyMs float64 `json:"latencyMs"`
	Error     bool    `json:"error"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	filter := api.ServerFilter{
		NameContains: r.URL.Query().Get("name"),
		Status:       api.ServerStatus(r.URL.Query().Get("status")),
	}
	servers := s.core.ListServers(filter)
	if servers == nil {
		servers = []*api.Server{}
	}
	writeJSON(w, http.StatusOK, servers)
}

func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req createServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.NewValidationError("body", "invalid JSON: %v", err))
		return
	}
	srv, err := s.core.CreateServer(req.Name, req.Config)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, srv)
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	srv, err := s.core.GetServer(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleConfigureServer(w http.ResponseWriter, r *http.Request) {
	var cfg api.ServerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, api.NewValidationError("body", "invalid JSON: %v", err))
		return
	}
	srv, err := s.core.ConfigureServer(chi.URLParam(r, "id"), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	if err := s.core.DeleteServer(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartServer(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.core.StartServer)
}

func (s *Server) handleStopServer(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.core.StopServer)
}

func (s *Server) handleRestartServer(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.core.RestartServer)
}

// lifecycleOp runs one lifecycle operation and returns the server's state
// right after the transition was accepted.
func (s *Server) lifecycleOp(w http.ResponseWriter, r *http.Request, op func(string) error) {
	id := chi.URLParam(r, "id")
	if err := op(id); err != nil {
		writeError(w, err)
		return
	}
	srv, err := s.core.GetServer(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, srv)
}

func (s *Server) handleRecordObservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.core.GetServer(id); err != nil {
		writeError(w, err)
		return
	}
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.NewValidationError("body", "invalid JSON: %v", err))
		return
	}
	if req.LatencyMs < 0 {
		writeError(w, api.NewValidationError("latencyMs", "must not be negative, got %v", req.LatencyMs))
		return
	}
	s.core.RecordRequest(id, time.Duration(req.LatencyMs*float64(time.Millisecond)), req.Error)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleBulkStart(w http.ResponseWriter, r *http.Request) {
	s.bulkOp(w, r, s.core.BulkStart)
}

func (s *Server) handleBulkStop(w http.ResponseWriter, r *http.Request) {
	s.bulkOp(w, r, s.core.BulkStop)
}

func (s *Server) bulkOp(w http.ResponseWriter, r *http.Request, op func([]string) []api.OperationResult) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.NewValidationError("body", "invalid JSON: %v", err))
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, api.NewValidationError("ids", "at least one server id is required"))
		return
	}
	writeJSON(w, http.StatusOK, op(req.IDs))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case api.IsValidation(err):
		status = http.StatusBadRequest
	case api.IsNotFound(err):
		status = http.StatusNotFound
	case api.IsConflict(err):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
