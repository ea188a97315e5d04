package handlers

import (
	"net/http"

	"github.com/bimakw/swap-router/internal/domain/graph"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Tokens  int    `json:"tokens"`
	Pools   int    `json:"pools"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	version string
	graph   *graph.TokenGraph
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, g *graph.TokenGraph) *HealthHandler {
	return &HealthHandler{version: version, graph: g}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.graph.Stats()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
		Tokens:  stats.Nodes,
		Pools:   stats.Pools,
	})
}
