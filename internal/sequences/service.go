package sequences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/internal/storage"
	"github.com/dhima/followup-engine/pkg/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultDueLimit = 50
	maxDueLimit     = 500

	defaultCancelReason = "sequence canceled for contact"
)

// Store is the persistence surface of the sequence service.
type Store interface {
	GetSequence(ctx context.Context, orgID, sequenceID string) (*models.Sequence, error)
	ListSteps(ctx context.Context, sequenceID string) ([]models.Step, error)
	UpdateSequenceStepCount(ctx context.Context, orgID, sequenceID string, totalSteps int) error
	GetContact(ctx context.Context, orgID, contactID string) (*models.Contact, error)
	MarkContactUnsubscribed(ctx context.Context, orgID, contactID string) error

	GetFollowUp(ctx context.Context, orgID, followUpID string) (*models.FollowUp, error)
	ListDueFollowUps(ctx context.Context, orgID string, now time.Time, limit int) ([]models.FollowUp, error)
	ListFollowUpsBySequence(ctx context.Context, orgID, sequenceID string) ([]models.FollowUp, error)
	ListFollowUpsByContact(ctx context.Context, orgID, contactID string) ([]models.FollowUp, error)
	CreateFollowUps(ctx context.Context, followUps []models.FollowUp) (int, error)
	RescheduleFollowUp(ctx context.Context, orgID, followUpID string, at time.Time) error
	CancelFollowUpsForContact(ctx context.Context, orgID, contactID, sequenceID, reason string) (int64, error)
	MarkFollowUpEngagement(ctx context.Context, orgID, followUpID string, signal models.SignalType, at time.Time) error

	CreateSignal(ctx context.Context, signal *models.Signal) error
}

// Service implements the follow-up operations around the engine: enrollment,
// rescheduling, cancellation, summaries and signal intake.
type Service struct {
	store  Store
	clock  clock.Clock
	logger *zap.Logger
}

// NewService creates a sequence service.
func NewService(store Store, logger *zap.Logger) *Service {
	return NewServiceWithClock(store, logger, clock.RealClock{})
}

// NewServiceWithClock creates a sequence service with a custom time source.
func NewServiceWithClock(store Store, logger *zap.Logger, clk clock.Clock) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{store: store, clock: clk, logger: logger.With(zap.String("component", "sequences"))}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// GenerateFollowUps enrolls contacts into a sequence. Each step is scheduled
// its delay after the previous step and snapped into the step's send window.
// Steps that already hold a pending follow-up for the contact are skipped.
func (s *Service) GenerateFollowUps(ctx context.Context, orgID, sequenceID string, req models.GenerateFollowUpsRequest) (*models.GenerateFollowUpsResponse, error) {
	contactIDs := uniqueNonEmpty(req.ContactIDs)
	if len(contactIDs) == 0 {
		return nil, NewValidationError("at least one contact id is required")
	}

	seq, err := s.store.GetSequence(ctx, orgID, sequenceID)
	if err != nil {
		return nil, err
	}
	if !seq.Active {
		return nil, NewValidationError("sequence %s is inactive", sequenceID)
	}

	steps, err := s.store.ListSteps(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, NewValidationError("sequence %s has no steps", sequenceID)
	}

	now := s.now()
	start := now
	if req.StartAt != nil {
		start = req.StartAt.UTC()
	}

	resp := &models.GenerateFollowUpsResponse{SequenceID: sequenceID}
	var created []models.FollowUp
	for _, contactID := range contactIDs {
		if _, err := s.store.GetContact(ctx, orgID, contactID); err != nil {
			return nil, fmt.Errorf("contact %s: %w", contactID, err)
		}

		pending, err := s.pendingSteps(ctx, orgID, contactID, sequenceID)
		if err != nil {
			return nil, err
		}

		at := start
		for _, step := range steps {
			at, err = NextSendTime(step.SendWindow, step.Timezone, at.Add(step.Delay()))
			if err != nil {
				return nil, NewValidationError("step %d: %v", step.StepNumber, err)
			}
			if pending[step.ID] {
				resp.Skipped++
				continue
			}
			created = append(created, models.FollowUp{
				ID:          uuid.NewString(),
				OrgID:       orgID,
				SequenceID:  sequenceID,
				StepID:      step.ID,
				StepNumber:  step.StepNumber,
				CampaignID:  seq.CampaignID,
				ContactID:   contactID,
				ScheduledAt: at,
				Status:      models.FollowUpStatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}

	// The store enforces one pending row per step and contact; rows that lost
	// a race with a concurrent enrollment come back uncounted.
	inserted, err := s.store.CreateFollowUps(ctx, created)
	if err != nil {
		return nil, err
	}
	resp.Created = inserted
	resp.Skipped += len(created) - inserted

	s.logger.Info("follow-ups generated",
		zap.String("org_id", orgID),
		zap.String("sequence_id", sequenceID),
		zap.Int("contacts", len(contactIDs)),
		zap.Int("created", resp.Created),
		zap.Int("skipped", resp.Skipped))
	return resp, nil
}

// pendingSteps returns the step ids of the sequence that already have a
// pending follow-up for the contact.
func (s *Service) pendingSteps(ctx context.Context, orgID, contactID, sequenceID string) (map[string]bool, error) {
	existing, err := s.store.ListFollowUpsByContact(ctx, orgID, contactID)
	if err != nil {
		return nil, err
	}
	pending := make(map[string]bool)
	for _, fu := range existing {
		if fu.SequenceID == sequenceID && fu.Status == models.FollowUpStatusPending {
			pending[fu.StepID] = true
		}
	}
	return pending, nil
}

// GetFollowUp returns one follow-up.
func (s *Service) GetFollowUp(ctx context.Context, orgID, followUpID string) (*models.FollowUp, error) {
	return s.store.GetFollowUp(ctx, orgID, followUpID)
}

// ListDue returns pending follow-ups that are due now. The limit is clamped
// to [1, 500] and defaults to 50.
func (s *Service) ListDue(ctx context.Context, orgID string, limit int) ([]models.FollowUp, error) {
	if limit <= 0 {
		limit = defaultDueLimit
	}
	if limit > maxDueLimit {
		limit = maxDueLimit
	}
	return s.store.ListDueFollowUps(ctx, orgID, s.now(), limit)
}

// Reschedule moves a pending follow-up. A failed or skipped follow-up keeps
// its history and a new pending record is created for the same step.
// Sent and canceled follow-ups cannot be rescheduled.
func (s *Service) Reschedule(ctx context.Context, orgID, followUpID string, at time.Time) (*models.FollowUp, error) {
	if at.IsZero() {
		return nil, NewValidationError("scheduled_at is required")
	}
	at = at.UTC()

	fu, err := s.store.GetFollowUp(ctx, orgID, followUpID)
	if err != nil {
		return nil, err
	}

	switch fu.Status {
	case models.FollowUpStatusPending:
		if err := s.store.RescheduleFollowUp(ctx, orgID, followUpID, at); err != nil {
			return nil, err
		}
		s.logger.Info("follow-up rescheduled",
			zap.String("followup_id", followUpID),
			zap.Time("scheduled_at", at))
		return s.store.GetFollowUp(ctx, orgID, followUpID)

	case models.FollowUpStatusFailed, models.FollowUpStatusSkipped:
		pending, err := s.pendingSteps(ctx, orgID, fu.ContactID, fu.SequenceID)
		if err != nil {
			return nil, err
		}
		if pending[fu.StepID] {
			return nil, NewValidationError("step %d already has a pending follow-up for this contact", fu.StepNumber)
		}

		now := s.now()
		retry := models.FollowUp{
			ID:          uuid.NewString(),
			OrgID:       fu.OrgID,
			SequenceID:  fu.SequenceID,
			StepID:      fu.StepID,
			StepNumber:  fu.StepNumber,
			CampaignID:  fu.CampaignID,
			ContactID:   fu.ContactID,
			ScheduledAt: at,
			Status:      models.FollowUpStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		inserted, err := s.store.CreateFollowUps(ctx, []models.FollowUp{retry})
		if err != nil {
			return nil, err
		}
		if inserted == 0 {
			return nil, NewValidationError("step %d already has a pending follow-up for this contact", fu.StepNumber)
		}
		s.logger.Info("follow-up retry scheduled",
			zap.String("followup_id", followUpID),
			zap.String("retry_id", retry.ID),
			zap.Time("scheduled_at", at))
		return &retry, nil

	default:
		return nil, NewValidationError("cannot reschedule a %s follow-up", fu.Status)
	}
}

// CancelSequenceForContact marks every pending follow-up of the contact in
// the sequence as canceled. It does not coordinate with executions already in
// flight; a send that finishes afterwards overwrites the canceled status.
func (s *Service) CancelSequenceForContact(ctx context.Context, orgID, sequenceID string, req models.CancelSequenceRequest) (*models.CancelSequenceResponse, error) {
	contactID := strings.TrimSpace(req.ContactID)
	if contactID == "" {
		return nil, NewValidationError("contact_id is required")
	}
	if _, err := s.store.GetSequence(ctx, orgID, sequenceID); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultCancelReason
	}

	count, err := s.store.CancelFollowUpsForContact(ctx, orgID, contactID, sequenceID, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sequence canceled for contact",
		zap.String("org_id", orgID),
		zap.String("sequence_id", sequenceID),
		zap.String("contact_id", contactID),
		zap.Int64("canceled", count))
	return &models.CancelSequenceResponse{Canceled: count}, nil
}

// SequenceSummary rolls up the follow-ups of a sequence.
func (s *Service) SequenceSummary(ctx context.Context, orgID, sequenceID string) (*models.SequenceSummary, error) {
	seq, err := s.store.GetSequence(ctx, orgID, sequenceID)
	if err != nil {
		return nil, err
	}
	followUps, err := s.store.ListFollowUpsBySequence(ctx, orgID, sequenceID)
	if err != nil {
		return nil, err
	}
	summary := SummarizeSequence(*seq, followUps)
	return &summary, nil
}

// ContactSummary lists every sequence the contact participates in.
func (s *Service) ContactSummary(ctx context.Context, orgID, contactID string) (*models.ContactSummary, error) {
	if _, err := s.store.GetContact(ctx, orgID, contactID); err != nil {
		return nil, err
	}
	followUps, err := s.store.ListFollowUpsByContact(ctx, orgID, contactID)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for _, fu := range followUps {
		if _, seen := totals[fu.SequenceID]; seen {
			continue
		}
		seq, err := s.store.GetSequence(ctx, orgID, fu.SequenceID)
		switch {
		case errors.Is(err, storage.ErrSequenceNotFound):
			totals[fu.SequenceID] = maxStep(followUps, fu.SequenceID)
		case err != nil:
			return nil, err
		default:
			totals[fu.SequenceID] = seq.TotalSteps
		}
	}

	summary := SummarizeContact(contactID, totals, followUps)
	return &summary, nil
}

// SyncStepCount recomputes a sequence's total step count from its steps.
func (s *Service) SyncStepCount(ctx context.Context, orgID, sequenceID string) (int, error) {
	if _, err := s.store.GetSequence(ctx, orgID, sequenceID); err != nil {
		return 0, err
	}
	steps, err := s.store.ListSteps(ctx, sequenceID)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpdateSequenceStepCount(ctx, orgID, sequenceID, len(steps)); err != nil {
		return 0, err
	}
	return len(steps), nil
}

func maxStep(followUps []models.FollowUp, sequenceID string) int {
	highest := 0
	for _, fu := range followUps {
		if fu.SequenceID == sequenceID && fu.StepNumber > highest {
			highest = fu.StepNumber
		}
	}
	return highest
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
