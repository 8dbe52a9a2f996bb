package models

import "time"

// Sequence is a named, ordered set of steps attached to a campaign.
type Sequence struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	CampaignID string    `json:"campaign_id"`
	Name       string    `json:"name"`
	TotalSteps int       `json:"total_steps"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Step is one message of a sequence. Its delay is relative to the previous step.
type Step struct {
	ID         string `json:"id"`
	SequenceID string `json:"sequence_id"`
	StepNumber int    `json:"step_number"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	DelayDays  int    `json:"delay_days"`
	DelayHours int    `json:"delay_hours"`
	// SendWindow is an optional cron expression the scheduled time is snapped to,
	// e.g. "0 9 * * 1-5" for weekday mornings.
	SendWindow string `json:"send_window,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

// Delay returns the offset from the previous step.
func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// GenerateFollowUpsRequest enrolls contacts into a sequence.
type GenerateFollowUpsRequest struct {
	ContactIDs []string   `json:"contact_ids" binding:"required,min=1"`
	StartAt    *time.Time `json:"start_at,omitempty" example:"2025-11-05T09:00:00Z"`
} // @name GenerateFollowUpsRequest

// GenerateFollowUpsResponse reports how many follow-ups were created.
type GenerateFollowUpsResponse struct {
	SequenceID string `json:"sequence_id"`
	Created    int    `json:"created" example:"9"`
	Skipped    int    `json:"skipped" example:"0"`
} // @name GenerateFollowUpsResponse

// CancelSequenceRequest stops a sequence for one contact.
type CancelSequenceRequest struct {
	ContactID string `json:"contact_id" binding:"required"`
	Reason    string `json:"reason,omitempty" example:"manually stopped"`
} // @name CancelSequenceRequest

// CancelSequenceResponse reports how many pending follow-ups were canceled.
type CancelSequenceResponse struct {
	Canceled int64 `json:"canceled" example:"2"`
} // @name CancelSequenceResponse

// SequenceSummary rolls up the follow-ups of one sequence.
type SequenceSummary struct {
	SequenceID string                 `json:"sequence_id"`
	TotalSteps int                    `json:"total_steps"`
	Total      int                    `json:"total"`
	ByStatus   map[FollowUpStatus]int `json:"by_status"`
	OpenRate   float64                `json:"open_rate"`
	ClickRate  float64                `json:"click_rate"`
	ReplyRate  float64                `json:"reply_rate"`
} // @name SequenceSummary

// ContactSequenceState classifies a contact's progress through one sequence.
type ContactSequenceState string

const (
	ContactSequenceActive    ContactSequenceState = "active"
	ContactSequenceCompleted ContactSequenceState = "completed"
	ContactSequenceCanceled  ContactSequenceState = "canceled"
)

// ContactSequence is one sequence a contact participates in.
type ContactSequence struct {
	SequenceID string               `json:"sequence_id"`
	State      ContactSequenceState `json:"state"`
	TotalSteps int                  `json:"total_steps"`
	Sent       int                  `json:"sent"`
	Pending    int                  `json:"pending"`
	NextDueAt  *time.Time           `json:"next_due_at,omitempty"`
	LastSentAt *time.Time           `json:"last_sent_at,omitempty"`
}

// ContactSummary groups all sequences for a contact.
type ContactSummary struct {
	ContactID string            `json:"contact_id"`
	Sequences []ContactSequence `json:"sequences"`
} // @name ContactSummary
