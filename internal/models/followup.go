package models

import "time"

// FollowUpStatus is the lifecycle status of a scheduled follow-up.
type FollowUpStatus string

const (
	FollowUpStatusPending  FollowUpStatus = "pending"
	FollowUpStatusSent     FollowUpStatus = "sent"
	FollowUpStatusFailed   FollowUpStatus = "failed"
	FollowUpStatusSkipped  FollowUpStatus = "skipped"
	FollowUpStatusCanceled FollowUpStatus = "canceled"
)

// IsTerminal reports whether no further transition is allowed for the record.
func (s FollowUpStatus) IsTerminal() bool {
	return s != FollowUpStatusPending
}

// FollowUp is a single scheduled outreach action for one contact at one sequence step.
type FollowUp struct {
	ID             string         `json:"id"`
	OrgID          string         `json:"org_id"`
	SequenceID     string         `json:"sequence_id"`
	StepID         string         `json:"step_id"`
	StepNumber     int            `json:"step_number"`
	CampaignID     string         `json:"campaign_id"`
	ContactID      string         `json:"contact_id"`
	ScheduledAt    time.Time      `json:"scheduled_at"`
	Status         FollowUpStatus `json:"status"`
	AttemptCount   int            `json:"attempt_count"`
	LastError      *string        `json:"last_error,omitempty"`
	Outcome        *string        `json:"outcome,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	SentMessageRef *string        `json:"sent_message_ref,omitempty"`
	OpenedAt       *time.Time     `json:"opened_at,omitempty"`
	ClickedAt      *time.Time     `json:"clicked_at,omitempty"`
	RepliedAt      *time.Time     `json:"replied_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// StatusUpdate carries the fields written together with a status transition.
// Nil pointers leave the stored column untouched.
type StatusUpdate struct {
	Outcome          *string
	LastError        *string
	SentAt           *time.Time
	SentMessageRef   *string
	IncrementAttempt bool
	UpdatedAt        time.Time
}

// TriggerEvaluation is the transient eligibility decision for one follow-up.
type TriggerEvaluation struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// ExecutionResult describes the outcome of executing one follow-up.
type ExecutionResult struct {
	FollowUpID   string         `json:"followup_id" example:"8d2b3c1e-0f6a-4c55-9a57-2fd1b0c1a001"`
	Status       FollowUpStatus `json:"status" example:"sent"`
	ContactID    string         `json:"contact_id"`
	ContactEmail string         `json:"contact_email" example:"ada@example.com"`
	Outcome      string         `json:"outcome,omitempty"`
	DurationMs   int64          `json:"duration_ms" example:"42"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	DryRun       bool           `json:"dry_run"`
} // @name ExecutionResult

// BatchResult aggregates the executions of one dispatch.
type BatchResult struct {
	TotalProcessed int               `json:"total_processed" example:"12"`
	TotalSent      int               `json:"total_sent" example:"10"`
	TotalFailed    int               `json:"total_failed" example:"1"`
	TotalSkipped   int               `json:"total_skipped" example:"1"`
	Executions     []ExecutionResult `json:"executions"`
	DurationMs     int64             `json:"duration_ms" example:"812"`
} // @name BatchResult

// Add folds a single execution into the running totals. A follow-up canceled
// after it was listed did not fire, so it counts as skipped.
func (b *BatchResult) Add(r ExecutionResult) {
	b.TotalProcessed++
	switch r.Status {
	case FollowUpStatusSent:
		b.TotalSent++
	case FollowUpStatusSkipped, FollowUpStatusCanceled:
		b.TotalSkipped++
	default:
		b.TotalFailed++
	}
	b.Executions = append(b.Executions, r)
}

// RescheduleRequest moves a follow-up to a new time.
type RescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required" example:"2025-11-05T15:00:00Z"`
} // @name RescheduleRequest

// BatchRequest controls the size of a manual dispatch.
type BatchRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=500" example:"50"`
} // @name BatchRequest
