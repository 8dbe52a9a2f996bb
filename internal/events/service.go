package events

import (
	"context"
	"fmt"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/pkg/clock"
	platformEvents "github.com/dhima/followup-engine/platform/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service records the activity trail of follow-up executions and forwards
// lifecycle events to the publisher. It is registered with the engine as an
// observer for every lifecycle event.
type Service struct {
	store     ActivityStore
	publisher EventPublisher
	clock     clock.Clock
	logger    *zap.Logger
}

// NewService creates a new event service. publisher may be nil, in which
// case lifecycle events are only logged.
func NewService(store ActivityStore, publisher EventPublisher, logger *zap.Logger) *Service {
	return NewServiceWithClock(store, publisher, logger, clock.RealClock{})
}

// NewServiceWithClock allows injecting a custom clock for deterministic tests.
func NewServiceWithClock(store ActivityStore, publisher EventPublisher, logger *zap.Logger, clk clock.Clock) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, publisher: publisher, clock: clk, logger: logger}
}

// Record persists one activity row.
func (s *Service) Record(ctx context.Context, entry models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.clock.Now().UTC()
	}
	if err := s.store.CreateActivityLog(ctx, &entry); err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

// ListActivity returns the activity trail of a follow-up, oldest first.
func (s *Service) ListActivity(ctx context.Context, orgID, followUpID string) ([]models.ActivityLog, error) {
	logs, err := s.store.ListActivityLogs(ctx, orgID, followUpID)
	if err != nil {
		s.logger.Error("failed to list activity logs",
			zap.String("followup_id", followUpID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return logs, nil
}

func (s *Service) FollowUpSent(ctx context.Context, ev models.FollowUpEvent) {
	s.publish(ctx, ev.FollowUpID, string(ev.Type), ev.OccurredAt, ev)
}

func (s *Service) FollowUpFailed(ctx context.Context, ev models.FollowUpEvent) {
	s.publish(ctx, ev.FollowUpID, string(ev.Type), ev.OccurredAt, ev)
}

func (s *Service) FollowUpSkipped(ctx context.Context, ev models.FollowUpEvent) {
	s.publish(ctx, ev.FollowUpID, string(ev.Type), ev.OccurredAt, ev)
}

func (s *Service) BatchStarted(ctx context.Context, ev models.BatchEvent) {
	s.publish(ctx, ev.OrgID, string(ev.Type), ev.OccurredAt, ev)
}

func (s *Service) BatchCompleted(ctx context.Context, ev models.BatchEvent) {
	s.publish(ctx, ev.OrgID, string(ev.Type), ev.OccurredAt, ev)
}

// publishTimeout bounds how long a send waits on an unreachable broker.
const publishTimeout = 5 * time.Second

// publish never fails the caller; the follow-up status is already persisted.
func (s *Service) publish(ctx context.Context, key, eventType string, at time.Time, payload any) {
	if s.publisher == nil {
		s.logger.Debug("lifecycle event", zap.String("event_type", eventType), zap.String("key", key))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := platformEvents.Message{Key: key, Type: eventType, OccurredAt: at, Payload: payload}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to publish lifecycle event",
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err))
	}
}
