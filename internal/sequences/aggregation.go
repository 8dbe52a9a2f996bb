package sequences

import (
	"time"

	"github.com/dhima/followup-engine/internal/models"
)

var allStatuses = []models.FollowUpStatus{
	models.FollowUpStatusPending,
	models.FollowUpStatusSent,
	models.FollowUpStatusFailed,
	models.FollowUpStatusSkipped,
	models.FollowUpStatusCanceled,
}

// SummarizeSequence counts follow-ups by status. Engagement rates are
// computed over sent follow-ups only and are zero when nothing was sent.
func SummarizeSequence(seq models.Sequence, followUps []models.FollowUp) models.SequenceSummary {
	summary := models.SequenceSummary{
		SequenceID: seq.ID,
		TotalSteps: seq.TotalSteps,
		Total:      len(followUps),
		ByStatus:   make(map[models.FollowUpStatus]int, len(allStatuses)),
	}
	for _, s := range allStatuses {
		summary.ByStatus[s] = 0
	}

	var sent, opened, clicked, replied int
	for _, fu := range followUps {
		summary.ByStatus[fu.Status]++
		if fu.Status != models.FollowUpStatusSent {
			continue
		}
		sent++
		if fu.OpenedAt != nil {
			opened++
		}
		if fu.ClickedAt != nil {
			clicked++
		}
		if fu.RepliedAt != nil {
			replied++
		}
	}

	if sent > 0 {
		summary.OpenRate = float64(opened) / float64(sent)
		summary.ClickRate = float64(clicked) / float64(sent)
		summary.ReplyRate = float64(replied) / float64(sent)
	}
	return summary
}

// SummarizeContact groups a contact's follow-ups by sequence, in order of
// first appearance. totalSteps maps sequence id to its step count.
func SummarizeContact(contactID string, totalSteps map[string]int, followUps []models.FollowUp) models.ContactSummary {
	summary := models.ContactSummary{ContactID: contactID, Sequences: []models.ContactSequence{}}

	index := make(map[string]int)
	canceled := make(map[string]bool)
	for _, fu := range followUps {
		i, ok := index[fu.SequenceID]
		if !ok {
			i = len(summary.Sequences)
			index[fu.SequenceID] = i
			summary.Sequences = append(summary.Sequences, models.ContactSequence{
				SequenceID: fu.SequenceID,
				TotalSteps: totalSteps[fu.SequenceID],
			})
		}
		cs := &summary.Sequences[i]

		switch fu.Status {
		case models.FollowUpStatusCanceled:
			canceled[fu.SequenceID] = true
		case models.FollowUpStatusPending:
			cs.Pending++
			cs.NextDueAt = earliest(cs.NextDueAt, fu.ScheduledAt)
		case models.FollowUpStatusSent:
			cs.Sent++
			if fu.SentAt != nil {
				cs.LastSentAt = latest(cs.LastSentAt, *fu.SentAt)
			}
		}
	}

	for i := range summary.Sequences {
		cs := &summary.Sequences[i]
		switch {
		case canceled[cs.SequenceID]:
			cs.State = models.ContactSequenceCanceled
		case cs.Pending == 0 && cs.Sent == cs.TotalSteps:
			cs.State = models.ContactSequenceCompleted
		default:
			cs.State = models.ContactSequenceActive
		}
	}
	return summary
}

func earliest(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.Before(*cur) {
		return &t
	}
	return cur
}

func latest(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.After(*cur) {
		return &t
	}
	return cur
}
