package events

import (
	"context"

	"github.com/dhima/followup-engine/internal/models"
	platformEvents "github.com/dhima/followup-engine/platform/events"
)

// ActivityStore defines persistence required by the event service.
type ActivityStore interface {
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
	ListActivityLogs(ctx context.Context, orgID, followUpID string) ([]models.ActivityLog, error)
}

// EventPublisher abstracts the Kafka publisher for testability.
type EventPublisher interface {
	Publish(ctx context.Context, msg platformEvents.Message) error
}
