package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dhima/dbclient/internal/api/response"
	"github.com/dhima/dbclient/internal/logging"
	"github.com/dhima/dbclient/internal/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KeepaliveReporter exposes the outcome of the last keepalive ping.
type KeepaliveReporter interface {
	Status() scheduler.Status
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	pinger    Pinger
	keepalive KeepaliveReporter
	logger    logging.Logger
}

// NewHealthHandler creates a new health check handler. keepalive may be nil.
func NewHealthHandler(pinger Pinger, keepalive KeepaliveReporter, logger logging.Logger) *HealthHandler {
	return &HealthHandler{pinger: pinger, keepalive: keepalive, logger: logger}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status" example:"ok"`
	Service   string            `json:"service" example:"dbclient"`
	Version   string            `json:"version" example:"1.0.0"`
	Database  string            `json:"database" example:"up"`
	Keepalive *scheduler.Status `json:"keepalive,omitempty"`
} // @name HealthResponse

// Health godoc
// @Summary Health check endpoint
// @Description Pings the database connection and reports the last keepalive result
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	health := HealthResponse{
		Status:   "ok",
		Service:  "dbclient",
		Version:  "1.0.0",
		Database: "up",
	}
	if h.keepalive != nil {
		status := h.keepalive.Status()
		health.Keepalive = &status
	}

	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Warn("health check ping failed",
			zap.Error(err),
			logging.RequestID(response.GetRequestID(c)),
		)
		health.Status = "degraded"
		health.Database = "down"
		response.Success(c, http.StatusServiceUnavailable, health, "")
		return
	}

	response.OK(c, health)
}
