package handlers

import (
	"github.com/dhima/followup-engine/internal/api/response"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/models"
	"github.com/gin-gonic/gin"
)

// StatsSource exposes cumulative engine counters. *scheduler.Engine satisfies it.
type StatsSource interface {
	Stats() models.EngineStats
}

// RunningReporter reports whether background polling is active.
type RunningReporter interface {
	Running() bool
}

// MetricsHandler handles metrics requests.
type MetricsHandler struct {
	logger logging.Logger
	stats  StatsSource
	poller RunningReporter
}

// NewMetricsHandler creates a new metrics handler. poller may be nil.
func NewMetricsHandler(logger logging.Logger, stats StatsSource, poller RunningReporter) *MetricsHandler {
	return &MetricsHandler{logger: logger, stats: stats, poller: poller}
}

// Metrics godoc
// @Summary Get engine metrics
// @Description Returns cumulative execution counters since process start
// @Tags System
// @Produce json
// @Success 200 {object} models.EngineStats
// @Router /metrics [get]
func (h *MetricsHandler) Metrics(c *gin.Context) {
	stats := h.stats.Stats()
	if h.poller != nil {
		stats.PollerActive = h.poller.Running()
	}
	response.OK(c, stats)
}
