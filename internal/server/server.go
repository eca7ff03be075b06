package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dsas-mobility/fleet-migration/internal/config"
	"github.com/dsas-mobility/fleet-migration/internal/storage"
)

// Stages reported by /status when no stage is requested.
var Stages = []string{"convert", "upload", "reset"}

const (
	defaultLimit = 10
	maxLimit     = 500
)

// Server exposes the migrated vehicles read-only over HTTP
type Server struct {
	config  config.ServerConfig
	storage storage.Storage
	server  *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, store storage.Storage) *Server {
	s := &Server{
		config:  cfg,
		storage: store,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /vehicles", s.handleVehicles)
	mux.HandleFunc("GET /vehicles/{sku}", s.handleVehicleBySKU)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleVehicles lists vehicles ordered by SKU
func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultLimit, 1)
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := queryInt(r, "offset", 0, 0)

	vehicles, err := s.storage.GetVehicles(r.Context(), limit, offset)
	if err != nil {
		slog.Error("failed to list vehicles", "error", err)
		http.Error(w, fmt.Sprintf("Failed to retrieve vehicles: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicles": vehicles,
		"count":    len(vehicles),
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleVehicleBySKU(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")
	if sku == "" {
		http.Error(w, "Invalid SKU", http.StatusBadRequest)
		return
	}

	vehicle, err := s.storage.GetVehicleBySKU(r.Context(), sku)
	if err != nil {
		slog.Error("failed to get vehicle", "sku", sku, "error", err)
		http.Error(w, fmt.Sprintf("Failed to retrieve vehicle: %v", err), http.StatusInternalServerError)
		return
	}
	if vehicle == nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, vehicle)
}

// handleStatus returns the last run of one stage (?stage=) or of all of them
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stages := Stages
	if stage := r.URL.Query().Get("stage"); stage != "" {
		stages = []string{stage}
	}

	out := make(map[string]interface{}, len(stages))
	for _, stage := range stages {
		status, err := s.storage.GetMigrationStatus(r.Context(), stage)
		if err != nil {
			slog.Error("failed to get migration status", "stage", stage, "error", err)
			http.Error(w, fmt.Sprintf("Failed to retrieve status: %v", err), http.StatusInternalServerError)
			return
		}
		out[stage] = status
	}

	writeJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, def, min int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < min {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
