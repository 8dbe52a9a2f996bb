package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/pkg/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultMaxConcurrency = 5
	defaultBatchLimit     = 50
	defaultSendTimeout    = 30 * time.Second
	defaultStoreTimeout   = 10 * time.Second
)

// Store is the state store surface used by the engine.
type Store interface {
	ListDueFollowUps(ctx context.Context, orgID string, now time.Time, limit int) ([]models.FollowUp, error)
	GetFollowUp(ctx context.Context, orgID, followUpID string) (*models.FollowUp, error)
	GetContact(ctx context.Context, orgID, contactID string) (*models.Contact, error)
	GetStep(ctx context.Context, stepID string) (*models.Step, error)
	UpdateFollowUpStatus(ctx context.Context, followUpID string, status models.FollowUpStatus, update models.StatusUpdate) error
}

// TriggerEvaluator decides whether a follow-up may still fire.
type TriggerEvaluator interface {
	Evaluate(ctx context.Context, followUpID, orgID string) (models.TriggerEvaluation, error)
}

// SendChannel delivers rendered messages.
type SendChannel interface {
	Send(ctx context.Context, msg models.RenderedMessage, contact models.Contact) (*models.DeliveryReceipt, error)
}

// ActivityRecorder stores audit rows. Failures are logged, never propagated.
type ActivityRecorder interface {
	Record(ctx context.Context, entry models.ActivityLog) error
}

// Engine executes due follow-ups. One Engine owns one in-flight set, so run a
// single Engine per process.
type Engine struct {
	store     Store
	evaluator TriggerEvaluator
	channel   SendChannel
	activity  ActivityRecorder
	logger    *zap.Logger
	clock     clock.Clock
	tracer    trace.Tracer

	maxConcurrency  int
	batchLimit      int
	sendTimeout     time.Duration
	storeTimeout    time.Duration
	activityTimeout time.Duration

	observers observers
	inflight  *inflightSet

	processed atomic.Int64
	sent      atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	batches   atomic.Int64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithMaxConcurrency sets the chunk size and parallelism bound of a batch.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithBatchLimit sets the default number of due follow-ups fetched per batch.
func WithBatchLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchLimit = n
		}
	}
}

// WithSendTimeout bounds each send channel call.
func WithSendTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sendTimeout = d
		}
	}
}

// WithStoreTimeout bounds each store and activity call.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
			e.activityTimeout = d
		}
	}
}

// WithObservers subscribes lifecycle observers. Each value is registered for
// every observer interface it implements.
func WithObservers(obs ...any) Option {
	return func(e *Engine) {
		for _, o := range obs {
			e.observers.register(o)
		}
	}
}

// NewEngine wires an Engine with its collaborators.
func NewEngine(store Store, evaluator TriggerEvaluator, channel SendChannel, activity ActivityRecorder, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:           store,
		evaluator:       evaluator,
		channel:         channel,
		activity:        activity,
		logger:          logger.With(zap.String("component", "engine")),
		clock:           clock.RealClock{},
		tracer:          otel.Tracer("github.com/dhima/followup-engine/internal/scheduler"),
		maxConcurrency:  defaultMaxConcurrency,
		batchLimit:      defaultBatchLimit,
		sendTimeout:     defaultSendTimeout,
		storeTimeout:    defaultStoreTimeout,
		activityTimeout: defaultStoreTimeout,
		inflight:        newInflightSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxConcurrency returns the configured parallelism bound.
func (e *Engine) MaxConcurrency() int { return e.maxConcurrency }

// BatchLimit returns the default batch size.
func (e *Engine) BatchLimit() int { return e.batchLimit }

// Stats returns cumulative counters since the engine was created.
func (e *Engine) Stats() models.EngineStats {
	return models.EngineStats{
		Processed: e.processed.Load(),
		Sent:      e.sent.Load(),
		Failed:    e.failed.Load(),
		Skipped:   e.skipped.Load(),
		Batches:   e.batches.Load(),
		InFlight:  e.inflight.len(),
	}
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout)
}
