package handlers

import (
	"context"
	"net/http"

	"github.com/dhima/followup-engine/internal/api/middleware"
	"github.com/dhima/followup-engine/internal/api/response"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PollerControl starts and stops background dispatching. *scheduler.Poller satisfies it.
type PollerControl interface {
	Start(ctx context.Context, orgID string) bool
	Stop()
	Status() (running bool, orgID string)
}

// PollerStatus is the poller state returned by the API.
type PollerStatus struct {
	Running bool   `json:"running" example:"true"`
	OrgID   string `json:"org_id,omitempty" example:"org-1"`
} // @name PollerStatus

// PollerHandler controls the in-process poller.
type PollerHandler struct {
	logger logging.Logger
	poller PollerControl
}

// NewPollerHandler creates a new poller handler.
func NewPollerHandler(logger logging.Logger, poller PollerControl) *PollerHandler {
	return &PollerHandler{
		logger: logger.With(zap.String("handler", "poller")),
		poller: poller,
	}
}

// Start godoc
// @Summary Start polling
// @Description Starts dispatching due follow-ups for the organization on the configured interval. A running poller is left untouched.
// @Tags Poller
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Success 202 {object} PollerStatus
// @Success 200 {object} PollerStatus "Poller already running"
// @Router /api/v1/poller/start [post]
func (h *PollerHandler) Start(c *gin.Context) {
	// The poller outlives this request.
	started := h.poller.Start(context.Background(), middleware.OrgID(c))
	running, orgID := h.poller.Status()
	status := PollerStatus{Running: running, OrgID: orgID}

	if !started {
		response.Success(c, http.StatusOK, status, "poller already running")
		return
	}
	h.logger.Info("poller started via api",
		zap.String("org_id", orgID),
		zap.String("request_id", response.GetRequestID(c)),
	)
	response.Accepted(c, status, "poller started")
}

// Stop godoc
// @Summary Stop polling
// @Description Cancels future ticks. A batch already in progress completes.
// @Tags Poller
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Success 200 {object} PollerStatus
// @Router /api/v1/poller/stop [post]
func (h *PollerHandler) Stop(c *gin.Context) {
	h.poller.Stop()
	response.Success(c, http.StatusOK, PollerStatus{}, "poller stopped")
}

// Status godoc
// @Summary Poller status
// @Tags Poller
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Success 200 {object} PollerStatus
// @Router /api/v1/poller [get]
func (h *PollerHandler) Status(c *gin.Context) {
	running, orgID := h.poller.Status()
	response.OK(c, PollerStatus{Running: running, OrgID: orgID})
}
