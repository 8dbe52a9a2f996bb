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

// SequenceService is the sequence-level surface. *sequences.Service satisfies it.
type SequenceService interface {
	GenerateFollowUps(ctx context.Context, orgID, sequenceID string, req models.GenerateFollowUpsRequest) (*models.GenerateFollowUpsResponse, error)
	CancelSequenceForContact(ctx context.Context, orgID, sequenceID string, req models.CancelSequenceRequest) (*models.CancelSequenceResponse, error)
	SequenceSummary(ctx context.Context, orgID, sequenceID string) (*models.SequenceSummary, error)
	ContactSummary(ctx context.Context, orgID, contactID string) (*models.ContactSummary, error)
	SyncStepCount(ctx context.Context, orgID, sequenceID string) (int, error)
}

// SequenceHandler handles sequence enrollment, cancellation and summaries.
type SequenceHandler struct {
	logger  logging.Logger
	service SequenceService
}

// NewSequenceHandler creates a new sequence handler.
func NewSequenceHandler(logger logging.Logger, service SequenceService) *SequenceHandler {
	return &SequenceHandler{
		logger:  logger.With(zap.String("handler", "sequence")),
		service: service,
	}
}

// GenerateFollowUps godoc
// @Summary Enroll contacts into a sequence
// @Description Creates one pending follow-up per step for every contact
// @Tags Sequences
// @Accept json
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Sequence ID"
// @Param request body models.GenerateFollowUpsRequest true "Contacts to enroll"
// @Success 201 {object} models.GenerateFollowUpsResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Failure 404 {object} response.ErrorResponse "Sequence or contact not found"
// @Router /api/v1/sequences/{id}/followups [post]
func (h *SequenceHandler) GenerateFollowUps(c *gin.Context) {
	var req models.GenerateFollowUpsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid generate request",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	sequenceID := c.Param("id")
	result, err := h.service.GenerateFollowUps(c.Request.Context(), middleware.OrgID(c), sequenceID, req)
	if handleServiceError(c, h.logger, err, "generate follow-ups") {
		return
	}

	h.logger.Info("follow-ups generated",
		zap.String("sequence_id", sequenceID),
		zap.Int("created", result.Created),
		zap.String("request_id", response.GetRequestID(c)),
	)
	response.Created(c, result, "follow-ups generated")
}

// CancelSequence godoc
// @Summary Cancel a sequence for a contact
// @Description Marks every pending follow-up of the contact in the sequence as canceled
// @Tags Sequences
// @Accept json
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Sequence ID"
// @Param request body models.CancelSequenceRequest true "Contact to stop"
// @Success 200 {object} models.CancelSequenceResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Failure 404 {object} response.ErrorResponse "Sequence not found"
// @Router /api/v1/sequences/{id}/cancel [post]
func (h *SequenceHandler) CancelSequence(c *gin.Context) {
	var req models.CancelSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.service.CancelSequenceForContact(c.Request.Context(), middleware.OrgID(c), c.Param("id"), req)
	if handleServiceError(c, h.logger, err, "cancel sequence") {
		return
	}
	response.OK(c, result)
}

// SequenceSummary godoc
// @Summary Summarize a sequence
// @Tags Sequences
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Sequence ID"
// @Success 200 {object} models.SequenceSummary
// @Failure 404 {object} response.ErrorResponse "Sequence not found"
// @Router /api/v1/sequences/{id}/summary [get]
func (h *SequenceHandler) SequenceSummary(c *gin.Context) {
	summary, err := h.service.SequenceSummary(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if handleServiceError(c, h.logger, err, "sequence summary") {
		return
	}
	response.OK(c, summary)
}

// SyncStepCount godoc
// @Summary Recompute a sequence's step count
// @Tags Sequences
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Sequence ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse "Sequence not found"
// @Router /api/v1/sequences/{id}/step-count [post]
func (h *SequenceHandler) SyncStepCount(c *gin.Context) {
	n, err := h.service.SyncStepCount(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if handleServiceError(c, h.logger, err, "sync step count") {
		return
	}
	response.OK(c, gin.H{"total_steps": n})
}

// ContactSequences godoc
// @Summary List a contact's sequences
// @Description Shows progress of the contact through every sequence they are enrolled in
// @Tags Contacts
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param id path string true "Contact ID"
// @Success 200 {object} models.ContactSummary
// @Failure 404 {object} response.ErrorResponse "Contact not found"
// @Router /api/v1/contacts/{id}/sequences [get]
func (h *SequenceHandler) ContactSequences(c *gin.Context) {
	summary, err := h.service.ContactSummary(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if handleServiceError(c, h.logger, err, "contact summary") {
		return
	}
	response.OK(c, summary)
}
