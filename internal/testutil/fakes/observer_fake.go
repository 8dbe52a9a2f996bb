package fakes

import (
	"context"
	"sync"

	"github.com/dhima/followup-engine/internal/models"
)

// FakeObserver implements every lifecycle observer capability and records the events.
type FakeObserver struct {
	mu      sync.Mutex
	Sent    []models.FollowUpEvent
	Failed  []models.FollowUpEvent
	Skipped []models.FollowUpEvent
	Batches []models.BatchEvent
}

func (o *FakeObserver) FollowUpSent(_ context.Context, e models.FollowUpEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Sent = append(o.Sent, e)
}

func (o *FakeObserver) FollowUpFailed(_ context.Context, e models.FollowUpEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Failed = append(o.Failed, e)
}

func (o *FakeObserver) FollowUpSkipped(_ context.Context, e models.FollowUpEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Skipped = append(o.Skipped, e)
}

func (o *FakeObserver) BatchStarted(_ context.Context, e models.BatchEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Batches = append(o.Batches, e)
}

func (o *FakeObserver) BatchCompleted(_ context.Context, e models.BatchEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Batches = append(o.Batches, e)
}

// Counts returns the number of sent, failed and skipped events seen.
func (o *FakeObserver) Counts() (sent, failed, skipped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Sent), len(o.Failed), len(o.Skipped)
}

// SentOnly records only sent events, for capability subscription tests.
type SentOnly struct {
	mu     sync.Mutex
	Events []models.FollowUpEvent
}

func (o *SentOnly) FollowUpSent(_ context.Context, e models.FollowUpEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, e)
}
