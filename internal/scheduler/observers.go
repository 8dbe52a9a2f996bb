package scheduler

import (
	"context"

	"github.com/dhima/followup-engine/internal/models"
)

// SentObserver is notified after a follow-up is delivered and persisted.
type SentObserver interface {
	FollowUpSent(ctx context.Context, event models.FollowUpEvent)
}

// FailedObserver is notified after a send failure is persisted.
type FailedObserver interface {
	FollowUpFailed(ctx context.Context, event models.FollowUpEvent)
}

// SkippedObserver is notified after an ineligible follow-up is marked skipped.
type SkippedObserver interface {
	FollowUpSkipped(ctx context.Context, event models.FollowUpEvent)
}

// BatchObserver is notified around every non-empty batch.
type BatchObserver interface {
	BatchStarted(ctx context.Context, event models.BatchEvent)
	BatchCompleted(ctx context.Context, event models.BatchEvent)
}

type observers struct {
	sent    []SentObserver
	failed  []FailedObserver
	skipped []SkippedObserver
	batch   []BatchObserver
}

func (o *observers) register(v any) {
	if s, ok := v.(SentObserver); ok {
		o.sent = append(o.sent, s)
	}
	if f, ok := v.(FailedObserver); ok {
		o.failed = append(o.failed, f)
	}
	if s, ok := v.(SkippedObserver); ok {
		o.skipped = append(o.skipped, s)
	}
	if b, ok := v.(BatchObserver); ok {
		o.batch = append(o.batch, b)
	}
}

func (o *observers) notifySent(ctx context.Context, ev models.FollowUpEvent) {
	for _, s := range o.sent {
		s.FollowUpSent(ctx, ev)
	}
}

func (o *observers) notifyFailed(ctx context.Context, ev models.FollowUpEvent) {
	for _, f := range o.failed {
		f.FollowUpFailed(ctx, ev)
	}
}

func (o *observers) notifySkipped(ctx context.Context, ev models.FollowUpEvent) {
	for _, s := range o.skipped {
		s.FollowUpSkipped(ctx, ev)
	}
}

func (o *observers) notifyBatchStarted(ctx context.Context, ev models.BatchEvent) {
	for _, b := range o.batch {
		b.BatchStarted(ctx, ev)
	}
}

func (o *observers) notifyBatchCompleted(ctx context.Context, ev models.BatchEvent) {
	for _, b := range o.batch {
		b.BatchCompleted(ctx, ev)
	}
}
