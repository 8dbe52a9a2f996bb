package triggers

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/internal/storage"
	"go.uber.org/zap"
)

// Reasons reported for ineligible follow-ups.
const (
	ReasonSequenceCanceled   = "sequence canceled for contact"
	ReasonSequenceMissing    = "sequence no longer exists"
	ReasonSequenceInactive   = "sequence is inactive"
	ReasonUnsubscribed       = "contact unsubscribed"
	ReasonBounced            = "contact email bounced"
	ReasonReplied            = "contact replied"
	ReasonSendingPaused      = "organization sending is paused"
	ReasonPreviousStepUnsent = "previous step not sent"
)

// Store is the read access the evaluator needs; storage.MySQLClient satisfies it.
type Store interface {
	GetFollowUp(ctx context.Context, orgID, followUpID string) (*models.FollowUp, error)
	GetSequence(ctx context.Context, orgID, sequenceID string) (*models.Sequence, error)
	GetContact(ctx context.Context, orgID, contactID string) (*models.Contact, error)
	GetOrgPolicy(ctx context.Context, orgID string) (models.OrgPolicy, error)
	ListSignals(ctx context.Context, orgID, contactID string) ([]models.Signal, error)
	ListFollowUpsByContact(ctx context.Context, orgID, contactID string) ([]models.FollowUp, error)
}

// Evaluator decides whether a scheduled follow-up may still fire.
// It never writes.
type Evaluator struct {
	store  Store
	logger *zap.Logger
}

func NewEvaluator(store Store, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{store: store, logger: logger}
}

// Evaluate loads the follow-up and collects every reason it should not be sent.
// A missing follow-up or contact is returned as an error; a missing sequence is
// treated as a reason.
func (e *Evaluator) Evaluate(ctx context.Context, followUpID, orgID string) (models.TriggerEvaluation, error) {
	followUp, err := e.store.GetFollowUp(ctx, orgID, followUpID)
	if err != nil {
		return models.TriggerEvaluation{}, fmt.Errorf("load follow-up: %w", err)
	}

	if followUp.Status != models.FollowUpStatusPending {
		reason := fmt.Sprintf("follow-up is %s", followUp.Status)
		if followUp.Status == models.FollowUpStatusCanceled {
			reason = ReasonSequenceCanceled
		}
		return ineligible(reason), nil
	}

	var reasons []string

	seq, err := e.store.GetSequence(ctx, orgID, followUp.SequenceID)
	switch {
	case errors.Is(err, storage.ErrSequenceNotFound):
		reasons = append(reasons, ReasonSequenceMissing)
	case err != nil:
		return models.TriggerEvaluation{}, fmt.Errorf("load sequence: %w", err)
	case !seq.Active:
		reasons = append(reasons, ReasonSequenceInactive)
	}

	contact, err := e.store.GetContact(ctx, orgID, followUp.ContactID)
	if err != nil {
		return models.TriggerEvaluation{}, fmt.Errorf("load contact: %w", err)
	}

	policy, err := e.store.GetOrgPolicy(ctx, orgID)
	if err != nil {
		return models.TriggerEvaluation{}, fmt.Errorf("load org policy: %w", err)
	}

	signals, err := e.store.ListSignals(ctx, orgID, followUp.ContactID)
	if err != nil {
		return models.TriggerEvaluation{}, fmt.Errorf("load signals: %w", err)
	}

	unsubscribed, bounced, replied := contact.Unsubscribed, false, false
	for _, s := range signals {
		switch s.Type {
		case models.SignalTypeUnsubscribe:
			unsubscribed = true
		case models.SignalTypeBounce:
			bounced = true
		case models.SignalTypeReply:
			if appliesTo(s, followUp) {
				replied = true
			}
		}
	}
	if unsubscribed {
		reasons = append(reasons, ReasonUnsubscribed)
	}
	if bounced {
		reasons = append(reasons, ReasonBounced)
	}
	if replied && policy.StopOnReply {
		reasons = append(reasons, ReasonReplied)
	}
	if policy.SendingPaused {
		reasons = append(reasons, ReasonSendingPaused)
	}

	if policy.RequirePreviousStep && followUp.StepNumber > 1 {
		sent, err := e.previousStepSent(ctx, followUp)
		if err != nil {
			return models.TriggerEvaluation{}, err
		}
		if !sent {
			reasons = append(reasons, ReasonPreviousStepUnsent)
		}
	}

	if len(reasons) > 0 {
		e.logger.Debug("follow-up ineligible",
			zap.String("followup_id", followUpID),
			zap.Strings("reasons", reasons))
		return models.TriggerEvaluation{Eligible: false, Reasons: reasons}, nil
	}
	return models.TriggerEvaluation{Eligible: true}, nil
}

func (e *Evaluator) previousStepSent(ctx context.Context, followUp *models.FollowUp) (bool, error) {
	siblings, err := e.store.ListFollowUpsByContact(ctx, followUp.OrgID, followUp.ContactID)
	if err != nil {
		return false, fmt.Errorf("load contact follow-ups: %w", err)
	}
	for _, s := range siblings {
		if s.SequenceID == followUp.SequenceID &&
			s.StepNumber == followUp.StepNumber-1 &&
			s.Status == models.FollowUpStatusSent {
			return true, nil
		}
	}
	return false, nil
}

// appliesTo reports whether a reply counts against the follow-up: it must come
// after the follow-up was scheduled and belong to its sequence or to none.
func appliesTo(s models.Signal, followUp *models.FollowUp) bool {
	if s.SequenceID != nil && *s.SequenceID != followUp.SequenceID {
		return false
	}
	return s.OccurredAt.After(followUp.CreatedAt)
}

func ineligible(reasons ...string) models.TriggerEvaluation {
	return models.TriggerEvaluation{Eligible: false, Reasons: reasons}
}
