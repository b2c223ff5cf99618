package handler

import (
	"net/http"
	"runtime"
	"time"

	"ge-offer-relay/internal/service"
	"ge-offer-relay/pkg/response"
)

// StartTime tracks when the relay started for uptime calculation
var StartTime = time.Now()

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	svc *service.RelayService
}

// New creates a new handler.
func New(svc *service.RelayService) *Handler {
	return &Handler{svc: svc}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready             bool      `json:"ready"`
	Timestamp         time.Time `json:"timestamp"`
	PendingDeliveries int       `json:"pending_deliveries"`
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	response.OK(w, ReadyResponse{
		Ready:             true,
		Timestamp:         time.Now().UTC(),
		PendingDeliveries: h.svc.PendingDeliveries(),
	})
}

// StatusResponse represents the unified status response for monitoring.
type StatusResponse struct {
	Service           string  `json:"service"`
	Status            string  `json:"status"`
	Timestamp         string  `json:"timestamp"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
	PendingDeliveries int     `json:"pending_deliveries"`
	MemoryMB          float64 `json:"memory_mb"`
}

// Status handles GET /api/status - unified health check for monitoring
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	resp := StatusResponse{
		Service:           "ge-offer-relay",
		Status:            "ok",
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds:     int64(time.Since(StartTime).Seconds()),
		PendingDeliveries: h.svc.PendingDeliveries(),
		MemoryMB:          float64(int(memoryMB*100)) / 100,
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
