package fakes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/internal/storage"
	"github.com/dhima/followup-engine/pkg/clock"
)

// FakeStore is an in-memory stand-in for storage.MySQLClient. Exported maps
// may be seeded directly before the code under test runs.
type FakeStore struct {
	mu sync.Mutex

	FollowUps    map[string]models.FollowUp
	Sequences    map[string]models.Sequence
	Steps        map[string]models.Step
	Contacts     map[string]models.Contact
	Policies     map[string]models.OrgPolicy
	Signals      []models.Signal
	ActivityLogs []models.ActivityLog

	Clock clock.Clock

	// Injected failures.
	ListDueErr  error
	GetErr      error
	UpdateErr   error
	ContactErr  error
	SignalsErr  error
	ActivityErr error

	// StaleContactReads hides pending rows from ListFollowUpsByContact, as a
	// read racing a concurrent enrollment would.
	StaleContactReads bool

	UpdateCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		FollowUps: make(map[string]models.FollowUp),
		Sequences: make(map[string]models.Sequence),
		Steps:     make(map[string]models.Step),
		Contacts:  make(map[string]models.Contact),
		Policies:  make(map[string]models.OrgPolicy),
		Clock:     clock.RealClock{},
	}
}

func (f *FakeStore) now() time.Time {
	return f.Clock.Now().UTC()
}

// Get returns a copy of a stored follow-up for assertions.
func (f *FakeStore) Get(id string) models.FollowUp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FollowUps[id]
}

func sortByScheduled(out []models.FollowUp) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
}

func (f *FakeStore) ListDueFollowUps(_ context.Context, orgID string, now time.Time, limit int) ([]models.FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListDueErr != nil {
		return nil, f.ListDueErr
	}
	out := make([]models.FollowUp, 0)
	for _, fu := range f.FollowUps {
		if fu.OrgID == orgID && fu.Status == models.FollowUpStatusPending && !fu.ScheduledAt.After(now) {
			out = append(out, fu)
		}
	}
	sortByScheduled(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeStore) GetFollowUp(_ context.Context, orgID, followUpID string) (*models.FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	fu, ok := f.FollowUps[followUpID]
	if !ok || fu.OrgID != orgID {
		return nil, storage.ErrFollowUpNotFound
	}
	cpy := fu
	return &cpy, nil
}

func (f *FakeStore) listWhere(match func(models.FollowUp) bool) []models.FollowUp {
	out := make([]models.FollowUp, 0)
	for _, fu := range f.FollowUps {
		if match(fu) {
			out = append(out, fu)
		}
	}
	sortByScheduled(out)
	return out
}

func (f *FakeStore) ListFollowUpsBySequence(_ context.Context, orgID, sequenceID string) ([]models.FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listWhere(func(fu models.FollowUp) bool {
		return fu.OrgID == orgID && fu.SequenceID == sequenceID
	}), nil
}

func (f *FakeStore) ListFollowUpsByContact(_ context.Context, orgID, contactID string) ([]models.FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listWhere(func(fu models.FollowUp) bool {
		if f.StaleContactReads && fu.Status == models.FollowUpStatusPending {
			return false
		}
		return fu.OrgID == orgID && fu.ContactID == contactID
	}), nil
}

// CreateFollowUps mirrors the store's pending-slot index: a pending row for a
// (sequence, step, contact) that already has one is left out of the count.
func (f *FakeStore) CreateFollowUps(_ context.Context, followUps []models.FollowUp) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fu := range followUps {
		if _, exists := f.FollowUps[fu.ID]; exists {
			return 0, fmt.Errorf("duplicate follow-up %s", fu.ID)
		}
	}
	now := f.now()
	inserted := 0
	for _, fu := range followUps {
		if fu.Status == models.FollowUpStatusPending && f.hasPendingLocked(fu) {
			continue
		}
		if fu.CreatedAt.IsZero() {
			fu.CreatedAt = now
		}
		fu.UpdatedAt = fu.CreatedAt
		f.FollowUps[fu.ID] = fu
		inserted++
	}
	return inserted, nil
}

func (f *FakeStore) hasPendingLocked(candidate models.FollowUp) bool {
	for _, fu := range f.FollowUps {
		if fu.Status == models.FollowUpStatusPending &&
			fu.SequenceID == candidate.SequenceID &&
			fu.StepNumber == candidate.StepNumber &&
			fu.ContactID == candidate.ContactID {
			return true
		}
	}
	return false
}

func (f *FakeStore) UpdateFollowUpStatus(_ context.Context, followUpID string, status models.FollowUpStatus, update models.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	fu, ok := f.FollowUps[followUpID]
	if !ok {
		return storage.ErrFollowUpNotFound
	}
	fu.Status = status
	if update.Outcome != nil {
		fu.Outcome = update.Outcome
	}
	if update.LastError != nil {
		fu.LastError = update.LastError
	}
	if update.SentAt != nil {
		fu.SentAt = update.SentAt
	}
	if update.SentMessageRef != nil {
		fu.SentMessageRef = update.SentMessageRef
	}
	if update.IncrementAttempt {
		fu.AttemptCount++
	}
	fu.UpdatedAt = update.UpdatedAt
	f.FollowUps[followUpID] = fu
	return nil
}

func (f *FakeStore) RescheduleFollowUp(_ context.Context, orgID, followUpID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fu, ok := f.FollowUps[followUpID]
	if !ok || fu.OrgID != orgID || fu.Status != models.FollowUpStatusPending {
		return storage.ErrFollowUpNotFound
	}
	fu.ScheduledAt = at.UTC()
	fu.UpdatedAt = f.now()
	f.FollowUps[followUpID] = fu
	return nil
}

func (f *FakeStore) CancelFollowUpsForContact(_ context.Context, orgID, contactID, sequenceID, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, fu := range f.FollowUps {
		if fu.OrgID != orgID || fu.ContactID != contactID || fu.Status != models.FollowUpStatusPending {
			continue
		}
		if sequenceID != "" && fu.SequenceID != sequenceID {
			continue
		}
		r := reason
		fu.Status = models.FollowUpStatusCanceled
		fu.Outcome = &r
		fu.UpdatedAt = f.now()
		f.FollowUps[id] = fu
		count++
	}
	return count, nil
}

func (f *FakeStore) MarkFollowUpEngagement(_ context.Context, orgID, followUpID string, signal models.SignalType, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fu, ok := f.FollowUps[followUpID]
	if !ok || fu.OrgID != orgID {
		return storage.ErrFollowUpNotFound
	}
	stamp := at.UTC()
	switch signal {
	case models.SignalTypeOpen:
		if fu.OpenedAt == nil {
			fu.OpenedAt = &stamp
		}
	case models.SignalTypeClick:
		if fu.ClickedAt == nil {
			fu.ClickedAt = &stamp
		}
	case models.SignalTypeReply:
		if fu.RepliedAt == nil {
			fu.RepliedAt = &stamp
		}
	default:
		return fmt.Errorf("signal %q does not track engagement", signal)
	}
	f.FollowUps[followUpID] = fu
	return nil
}

func (f *FakeStore) GetSequence(_ context.Context, orgID, sequenceID string) (*models.Sequence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sequences[sequenceID]
	if !ok || s.OrgID != orgID {
		return nil, storage.ErrSequenceNotFound
	}
	cpy := s
	return &cpy, nil
}

func (f *FakeStore) ListSteps(_ context.Context, sequenceID string) ([]models.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Step, 0)
	for _, s := range f.Steps {
		if s.SequenceID == sequenceID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

func (f *FakeStore) GetStep(_ context.Context, stepID string) (*models.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Steps[stepID]
	if !ok {
		return nil, storage.ErrStepNotFound
	}
	cpy := s
	return &cpy, nil
}

func (f *FakeStore) UpdateSequenceStepCount(_ context.Context, orgID, sequenceID string, totalSteps int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sequences[sequenceID]
	if !ok || s.OrgID != orgID {
		return storage.ErrSequenceNotFound
	}
	s.TotalSteps = totalSteps
	s.UpdatedAt = f.now()
	f.Sequences[sequenceID] = s
	return nil
}

func (f *FakeStore) GetContact(_ context.Context, orgID, contactID string) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ContactErr != nil {
		return nil, f.ContactErr
	}
	c, ok := f.Contacts[contactID]
	if !ok || c.OrgID != orgID {
		return nil, storage.ErrContactNotFound
	}
	cpy := c
	return &cpy, nil
}

func (f *FakeStore) MarkContactUnsubscribed(_ context.Context, orgID, contactID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Contacts[contactID]
	if !ok || c.OrgID != orgID {
		return storage.ErrContactNotFound
	}
	c.Unsubscribed = true
	f.Contacts[contactID] = c
	return nil
}

func (f *FakeStore) GetOrgPolicy(_ context.Context, orgID string) (models.OrgPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Policies[orgID]; ok {
		return p, nil
	}
	return models.DefaultOrgPolicy(orgID), nil
}

func (f *FakeStore) CreateSignal(_ context.Context, signal *models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Signals = append(f.Signals, *signal)
	return nil
}

func (f *FakeStore) ListSignals(_ context.Context, orgID, contactID string) ([]models.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SignalsErr != nil {
		return nil, f.SignalsErr
	}
	out := make([]models.Signal, 0)
	for _, s := range f.Signals {
		if s.OrgID == orgID && s.ContactID == contactID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (f *FakeStore) CreateActivityLog(_ context.Context, entry *models.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ActivityErr != nil {
		return f.ActivityErr
	}
	f.ActivityLogs = append(f.ActivityLogs, *entry)
	return nil
}

func (f *FakeStore) ListActivityLogs(_ context.Context, orgID, followUpID string) ([]models.ActivityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ActivityLog, 0)
	for _, l := range f.ActivityLogs {
		if l.OrgID == orgID && l.FollowUpID == followUpID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ErrUnavailable is a generic injected infrastructure failure.
var ErrUnavailable = errors.New("store unavailable")
