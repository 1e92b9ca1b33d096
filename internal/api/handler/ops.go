// Package handler provides HTTP handlers for the disruption API.
package handler

import (
	"net/http"
	"time"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api/models"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api/response"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	ready     func() error
}

// NewOpsHandler creates a new OpsHandler. ready reports whether the
// service can resolve articles; it may be nil.
func NewOpsHandler(version, buildTime string, ready func() error) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		ready:     ready,
	}
}

// HealthCheck handles GET /v1/ops/health, the liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.ready != nil {
		if err := h.ready(); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"reason": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}
