package sequences

import (
	"context"
	"strings"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const unsubscribeReason = "contact unsubscribed"

var validSignalTypes = map[models.SignalType]bool{
	models.SignalTypeReply:       true,
	models.SignalTypeUnsubscribe: true,
	models.SignalTypeBounce:      true,
	models.SignalTypeOpen:        true,
	models.SignalTypeClick:       true,
}

// RecordSignal stores a contact signal for the trigger evaluator. Engagement
// signals tied to a follow-up stamp it; an unsubscribe also cancels every
// pending follow-up of the contact.
func (s *Service) RecordSignal(ctx context.Context, orgID string, req models.RecordSignalRequest) (*models.Signal, error) {
	contactID := strings.TrimSpace(req.ContactID)
	if contactID == "" {
		return nil, NewValidationError("contact_id is required")
	}
	if !validSignalTypes[req.Type] {
		return nil, NewValidationError("unsupported signal type: %s", req.Type)
	}
	if _, err := s.store.GetContact(ctx, orgID, contactID); err != nil {
		return nil, err
	}

	signal := &models.Signal{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		ContactID:  contactID,
		SequenceID: req.SequenceID,
		FollowUpID: req.FollowUpID,
		Type:       req.Type,
		OccurredAt: s.now(),
	}
	if req.OccurredAt != nil {
		signal.OccurredAt = req.OccurredAt.UTC()
	}

	if err := s.store.CreateSignal(ctx, signal); err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("org_id", orgID),
		zap.String("contact_id", contactID),
		zap.String("signal", string(signal.Type)))

	switch signal.Type {
	case models.SignalTypeOpen, models.SignalTypeClick, models.SignalTypeReply:
		if signal.FollowUpID != nil {
			if err := s.store.MarkFollowUpEngagement(ctx, orgID, *signal.FollowUpID, signal.Type, signal.OccurredAt); err != nil {
				log.Warn("failed to stamp engagement", zap.String("followup_id", *signal.FollowUpID), zap.Error(err))
			}
		}
	case models.SignalTypeUnsubscribe:
		if err := s.store.MarkContactUnsubscribed(ctx, orgID, contactID); err != nil {
			return nil, err
		}
		count, err := s.store.CancelFollowUpsForContact(ctx, orgID, contactID, "", unsubscribeReason)
		if err != nil {
			return nil, err
		}
		log.Info("contact unsubscribed", zap.Int64("canceled", count))
	}

	log.Debug("signal recorded", zap.String("signal_id", signal.ID))
	return signal, nil
}
