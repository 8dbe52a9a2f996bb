package handlers

import (
	"errors"

	"github.com/dhima/followup-engine/internal/api/response"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/scheduler"
	"github.com/dhima/followup-engine/internal/sequences"
	"github.com/dhima/followup-engine/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleServiceError maps domain errors to HTTP responses. It returns true
// when a response has been written.
func handleServiceError(c *gin.Context, logger logging.Logger, err error, operation string) bool {
	if err == nil {
		return false
	}

	var (
		validationErr sequences.ValidationError
		storeErr      *scheduler.StoreError
	)
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(c, "validation failed", validationErr.Error())
	case errors.Is(err, scheduler.ErrInvalidInput):
		response.BadRequest(c, "invalid input", err.Error())
	case errors.Is(err, storage.ErrFollowUpNotFound):
		response.NotFound(c, "follow-up not found")
	case errors.Is(err, storage.ErrSequenceNotFound):
		response.NotFound(c, "sequence not found")
	case errors.Is(err, storage.ErrContactNotFound):
		response.NotFound(c, "contact not found")
	case errors.Is(err, storage.ErrStepNotFound):
		response.NotFound(c, "sequence step not found")
	case errors.Is(err, scheduler.ErrAlreadyExecuting):
		response.Conflict(c, "follow-up is already executing", nil)
	case errors.As(err, &storeErr):
		logger.Error(operation+" failed",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.ServiceUnavailable(c, "state store unavailable")
	default:
		logger.Error(operation+" failed",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.InternalServerError(c, "internal server error")
	}
	return true
}
