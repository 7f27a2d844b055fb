package handlers

import (
	"github.com/dhima/dbclient/internal/api/response"
	"github.com/dhima/dbclient/internal/statements"
	"github.com/gin-gonic/gin"
)

// StatsProvider exposes statement counters.
type StatsProvider interface {
	Stats() statements.Stats
}

// MetricsHandler handles metrics requests.
type MetricsHandler struct {
	stats StatsProvider
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(stats StatsProvider) *MetricsHandler {
	return &MetricsHandler{stats: stats}
}

// OperationMetrics summarises one statement verb.
type OperationMetrics struct {
	Succeeded     int64   `json:"succeeded" example:"120"`
	Failed        int64   `json:"failed" example:"3"`
	AvgDurationMs float64 `json:"avg_duration_ms" example:"1.7"`
} // @name OperationMetrics

// MetricsResponse represents the metrics response.
type MetricsResponse struct {
	Operations    map[string]OperationMetrics `json:"operations"`
	AuditFailures int64                       `json:"audit_failures" example:"0"`
} // @name MetricsResponse

// Metrics godoc
// @Summary Get statement metrics
// @Description Returns per-verb success and failure counts, average latency and audit publish failures
// @Tags System
// @Produce json
// @Success 200 {object} MetricsResponse
// @Router /metrics [get]
func (h *MetricsHandler) Metrics(c *gin.Context) {
	stats := h.stats.Stats()

	metrics := MetricsResponse{
		Operations:    make(map[string]OperationMetrics, len(stats.Operations)),
		AuditFailures: stats.AuditFailures,
	}
	for op, st := range stats.Operations {
		m := OperationMetrics{Succeeded: st.Succeeded, Failed: st.Failed}
		if calls := st.Succeeded + st.Failed; calls > 0 {
			m.AvgDurationMs = float64(st.TotalTime.Microseconds()) / 1000 / float64(calls)
		}
		metrics.Operations[op] = m
	}

	response.OK(c, metrics)
}
