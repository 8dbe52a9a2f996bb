package models

import "time"

// Contact is the recipient of a follow-up.
type Contact struct {
	ID           string `json:"id"`
	OrgID        string `json:"org_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	FirstName    string `json:"first_name"`
	Unsubscribed bool   `json:"unsubscribed"`
}

// SignalType enumerates the trigger-source signals the evaluator reacts to.
type SignalType string

const (
	SignalTypeReply       SignalType = "reply"
	SignalTypeUnsubscribe SignalType = "unsubscribe"
	SignalTypeBounce      SignalType = "bounce"
	SignalTypeOpen        SignalType = "open"
	SignalTypeClick       SignalType = "click"
)

// Signal records something a contact did that can disqualify future steps.
type Signal struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	ContactID  string     `json:"contact_id"`
	SequenceID *string    `json:"sequence_id,omitempty"`
	FollowUpID *string    `json:"followup_id,omitempty"`
	Type       SignalType `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// RecordSignalRequest is the inbound payload for trigger-source signals.
type RecordSignalRequest struct {
	ContactID  string     `json:"contact_id"`
	SequenceID *string    `json:"sequence_id,omitempty"`
	FollowUpID *string    `json:"followup_id,omitempty"`
	Type       SignalType `json:"type" example:"reply"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
} // @name RecordSignalRequest

// OrgPolicy holds organization-level sending rules.
type OrgPolicy struct {
	OrgID               string `json:"org_id"`
	SendingPaused       bool   `json:"sending_paused"`
	StopOnReply         bool   `json:"stop_on_reply"`
	RequirePreviousStep bool   `json:"require_previous_step"`
}

// DefaultOrgPolicy is applied when an organization has no stored policy.
func DefaultOrgPolicy(orgID string) OrgPolicy {
	return OrgPolicy{
		OrgID:               orgID,
		StopOnReply:         true,
		RequirePreviousStep: true,
	}
}

// RenderedMessage is a step template with contact placeholders substituted.
type RenderedMessage struct {
	FollowUpID string `json:"followup_id"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// DeliveryReceipt is returned by a send channel after accepting a message.
type DeliveryReceipt struct {
	DeliveryRef string    `json:"delivery_ref"`
	Channel     string    `json:"channel"`
	AcceptedAt  time.Time `json:"accepted_at"`
}
