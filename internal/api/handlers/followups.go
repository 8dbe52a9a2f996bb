package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dhima/followup-engine/internal/api/middleware"
	"github.com/dhima/followup-engine/internal/api/response"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FollowUpExecutor runs follow-ups. *scheduler.Engine satisfies it.
type FollowUpExecutor interface {
	Execute(ctx context.Context, followUpID, orgID string, dryRun bool) (*models.ExecutionResult, error)
	ExecuteBatch(ctx context.Context, orgID string, limit int) (*models.BatchResult, error)
}

// FollowUpReader reads and reschedules follow-ups. *sequences.Service satisfies it.
type FollowUpReader interface {
	GetFollowUp(ctx context.Context, orgID, followUpID string) (*models.FollowUp, error)
	ListDue(ctx context.Context, orgID string, limit int) ([]models.FollowUp, error)
	Reschedule(ctx context.Context, orgID, followUpID string, at time.Time) (*models.FollowUp, error)
}

// FollowUpHandler handles follow-up execution and lookup requests.
type FollowUpHandler struct {
	logger   logging.Logger
	executor FollowUpExecutor
	reader   FollowUpReader
}

// NewFollowUpHandler creates a new follow-up handler.
func NewFollowUpHandler(logger logging.Logger, executor FollowUpExecutor, reader FollowUpReader) *FollowUpHandler {
	return &FollowUpHandler{
		logger:   logger.With(zap.String("handler", "followup")),
		executor: executor,
		reader:   reader,
	}
}

// ListDue godoc
// @Summary List due follow-ups
// @Description Returns pending follow-ups whose scheduled time has passed, oldest first
// @Tags FollowUps
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param limit query int false "Maximum results" default(50) minimum(1) maximum(500)
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse "Invalid query parameters"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/followups/due [get]
func (h *FollowUpHandler) ListDue(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(c, "invalid query parameters", "limit must be an integer")
			return
		}
		limit = n
	}

	due, err := h.reader.ListDue(c.Request.Context(), middleware.OrgID(c), limit)
	if handleServiceError(c, h.logger, err, "list due follow-ups") {
		return
	}
	response.OK(c, due)
}

// GetFollowUp godoc
// @Summary Get a follow-up
// @Tags FollowUps
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Follow-up ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse "Follow-up not found"
// @Router /api/v1/followups/{id} [get]
func (h *FollowUpHandler) GetFollowUp(c *gin.Context) {
	fu, err := h.reader.GetFollowUp(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if handleServiceError(c, h.logger, err, "get follow-up") {
		return
	}
	response.OK(c, fu)
}

// Execute godoc
// @Summary Execute a follow-up
// @Description Evaluates triggers and sends the follow-up now. With dry_run=true nothing is sent or written.
// @Tags FollowUps
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Follow-up ID"
// @Param dry_run query bool false "Preview without sending"
// @Success 200 {object} models.ExecutionResult
// @Failure 404 {object} response.ErrorResponse "Follow-up not found"
// @Failure 409 {object} response.ErrorResponse "Follow-up already executing"
// @Failure 503 {object} response.ErrorResponse "State store unavailable"
// @Router /api/v1/followups/{id}/execute [post]
func (h *FollowUpHandler) Execute(c *gin.Context) {
	followUpID := c.Param("id")
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))

	result, err := h.executor.Execute(c.Request.Context(), followUpID, middleware.OrgID(c), dryRun)
	if handleServiceError(c, h.logger, err, "execute follow-up") {
		return
	}

	h.logger.Info("follow-up executed",
		zap.String("followup_id", followUpID),
		zap.String("status", string(result.Status)),
		zap.Bool("dry_run", dryRun),
		zap.String("request_id", response.GetRequestID(c)),
	)
	response.OK(c, result)
}

// Reschedule godoc
// @Summary Reschedule a follow-up
// @Description Moves a pending follow-up, or schedules a new attempt for a failed or skipped one
// @Tags FollowUps
// @Accept json
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Follow-up ID"
// @Param request body models.RescheduleRequest true "New schedule"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Failure 404 {object} response.ErrorResponse "Follow-up not found"
// @Router /api/v1/followups/{id}/reschedule [post]
func (h *FollowUpHandler) Reschedule(c *gin.Context) {
	var req models.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reschedule request",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	fu, err := h.reader.Reschedule(c.Request.Context(), middleware.OrgID(c), c.Param("id"), req.ScheduledAt)
	if handleServiceError(c, h.logger, err, "reschedule follow-up") {
		return
	}
	response.Success(c, http.StatusOK, fu, "follow-up rescheduled")
}

// ExecuteBatch godoc
// @Summary Execute due follow-ups
// @Description Runs one dispatch of due follow-ups for the organization
// @Tags FollowUps
// @Accept json
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param request body models.BatchRequest false "Batch size"
// @Success 200 {object} models.BatchResult
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Failure 503 {object} response.ErrorResponse "State store unavailable"
// @Router /api/v1/followups/batch [post]
func (h *FollowUpHandler) ExecuteBatch(c *gin.Context) {
	var req models.BatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body", err.Error())
			return
		}
	}

	result, err := h.executor.ExecuteBatch(c.Request.Context(), middleware.OrgID(c), req.Limit)
	if handleServiceError(c, h.logger, err, "execute batch") {
		return
	}
	response.OK(c, result)
}
