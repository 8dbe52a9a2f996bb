package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dhima/followup-engine/internal/api/middleware"
	"github.com/dhima/followup-engine/internal/api/response"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const signalSchema = `{
  "type": "object",
  "required": ["contact_id", "type"],
  "properties": {
    "contact_id":  {"type": "string", "minLength": 1},
    "sequence_id": {"type": "string", "minLength": 1},
    "followup_id": {"type": "string", "minLength": 1},
    "type":        {"type": "string", "enum": ["reply", "unsubscribe", "bounce", "open", "click"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "additionalProperties": false
}`

var signalSchemaLoader = gojsonschema.NewStringLoader(signalSchema)

// SignalRecorder stores inbound trigger signals. *sequences.Service satisfies it.
type SignalRecorder interface {
	RecordSignal(ctx context.Context, orgID string, req models.RecordSignalRequest) (*models.Signal, error)
}

// SignalHandler receives trigger-source signals such as replies and unsubscribes.
type SignalHandler struct {
	logger   logging.Logger
	recorder SignalRecorder
}

// NewSignalHandler creates a new signal handler.
func NewSignalHandler(logger logging.Logger, recorder SignalRecorder) *SignalHandler {
	return &SignalHandler{
		logger:   logger.With(zap.String("handler", "signal")),
		recorder: recorder,
	}
}

// RecordSignal godoc
// @Summary Record a contact signal
// @Description Validates the payload against the signal schema and stores it. An unsubscribe cancels every pending follow-up of the contact.
// @Tags Signals
// @Accept json
// @Produce json
// @Param X-Org-ID header string true "Organization ID"
// @Param signal body models.RecordSignalRequest true "Signal"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse "Invalid payload or schema validation failed"
// @Failure 404 {object} response.ErrorResponse "Contact not found"
// @Router /api/v1/signals [post]
func (h *SignalHandler) RecordSignal(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "invalid payload", err.Error())
		return
	}

	result, err := gojsonschema.Validate(signalSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		h.logger.Warn("invalid signal payload",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid payload", err.Error())
		return
	}
	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		h.logger.Warn("signal schema validation failed",
			zap.Strings("errors", errorMessages),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "payload schema validation failed", fmt.Sprintf("validation errors: %v", errorMessages))
		return
	}

	var req models.RecordSignalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.BadRequest(c, "invalid payload", err.Error())
		return
	}

	signal, err := h.recorder.RecordSignal(c.Request.Context(), middleware.OrgID(c), req)
	if handleServiceError(c, h.logger, err, "record signal") {
		return
	}

	h.logger.Info("signal recorded",
		zap.String("signal_id", signal.ID),
		zap.String("contact_id", signal.ContactID),
		zap.String("type", string(signal.Type)),
		zap.String("request_id", response.GetRequestID(c)),
	)
	response.Created(c, signal, "signal recorded")
}
