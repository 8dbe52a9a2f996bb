package handlers

import (
	"context"

	"github.com/dhima/followup-engine/internal/api/middleware"
	"github.com/dhima/followup-engine/internal/api/response"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActivityLister reads the audit trail. *events.Service satisfies it.
type ActivityLister interface {
	ListActivity(ctx context.Context, orgID, followUpID string) ([]models.ActivityLog, error)
}

// ActivityHandler handles activity log queries.
type ActivityHandler struct {
	logger  logging.Logger
	service ActivityLister
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(service ActivityLister, logger logging.Logger) *ActivityHandler {
	return &ActivityHandler{
		logger:  logger.With(zap.String("handler", "activity")),
		service: service,
	}
}

// ListActivity godoc
// @Summary List follow-up activity
// @Description Returns the recorded execution outcomes of a follow-up, oldest first
// @Tags FollowUps
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Follow-up ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/followups/{id}/activity [get]
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	followUpID := c.Param("id")
	logs, err := h.service.ListActivity(c.Request.Context(), middleware.OrgID(c), followUpID)
	if handleServiceError(c, h.logger, err, "list activity") {
		return
	}

	h.logger.Debug("listed activity",
		zap.String("followup_id", followUpID),
		zap.Int("count", len(logs)),
	)
	response.OK(c, logs)
}
