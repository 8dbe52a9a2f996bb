package models

import "time"

// LifecycleEventType identifies a follow-up engine lifecycle event.
type LifecycleEventType string

const (
	LifecycleEventSent           LifecycleEventType = "followup.sent"
	LifecycleEventFailed         LifecycleEventType = "followup.failed"
	LifecycleEventSkipped        LifecycleEventType = "followup.skipped"
	LifecycleEventBatchStarted   LifecycleEventType = "batch.started"
	LifecycleEventBatchCompleted LifecycleEventType = "batch.completed"
)

// FollowUpEvent is emitted once per terminal execution outcome.
type FollowUpEvent struct {
	Type         LifecycleEventType `json:"type"`
	OrgID        string             `json:"org_id"`
	FollowUpID   string             `json:"followup_id"`
	SequenceID   string             `json:"sequence_id"`
	StepNumber   int                `json:"step_number"`
	ContactID    string             `json:"contact_id"`
	ContactEmail string             `json:"contact_email,omitempty"`
	DeliveryRef  string             `json:"delivery_ref,omitempty"`
	Reasons      []string           `json:"reasons,omitempty"`
	Error        string             `json:"error,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// BatchEvent is emitted around a non-empty dispatch.
type BatchEvent struct {
	Type       LifecycleEventType `json:"type"`
	OrgID      string             `json:"org_id"`
	Due        int                `json:"due"`
	Result     *BatchResult       `json:"result,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// ActivityLog is one audit row written for an execution outcome.
type ActivityLog struct {
	ID         string             `json:"id"`
	OrgID      string             `json:"org_id"`
	FollowUpID string             `json:"followup_id"`
	ContactID  string             `json:"contact_id"`
	SequenceID string             `json:"sequence_id"`
	EventType  LifecycleEventType `json:"event_type"`
	Status     FollowUpStatus     `json:"status"`
	Detail     string             `json:"detail,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// EngineStats are cumulative counters since process start.
type EngineStats struct {
	Processed    int64 `json:"processed" example:"1250"`
	Sent         int64 `json:"sent" example:"1100"`
	Failed       int64 `json:"failed" example:"50"`
	Skipped      int64 `json:"skipped" example:"100"`
	Batches      int64 `json:"batches" example:"40"`
	InFlight     int   `json:"in_flight" example:"3"`
	PollerActive bool  `json:"poller_active"`
} // @name EngineStats
