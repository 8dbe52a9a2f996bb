package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"go.uber.org/zap"
)

// Dispatcher runs one batch of due follow-ups. Engine satisfies it.
type Dispatcher interface {
	ExecuteBatch(ctx context.Context, orgID string, limit int) (*models.BatchResult, error)
}

// Poller periodically dispatches due follow-ups for one organization.
type Poller struct {
	dispatcher Dispatcher
	interval   time.Duration
	limit      int
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	orgID   string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller builds a poller that dispatches limit follow-ups every interval.
func NewPoller(dispatcher Dispatcher, interval time.Duration, limit int, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		dispatcher: dispatcher,
		interval:   interval,
		limit:      limit,
		logger:     logger.With(zap.String("component", "poller")),
	}
}

// Start runs one dispatch immediately and then one per interval until Stop
// or ctx cancellation. Starting a running poller is a no-op and returns false.
func (p *Poller) Start(ctx context.Context, orgID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Warn("poller already running", zap.String("org_id", p.orgID))
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.running = true
	p.orgID = orgID
	p.cancel = cancel
	p.done = done

	go p.loop(loopCtx, orgID, done)
	p.logger.Info("poller started",
		zap.String("org_id", orgID),
		zap.Duration("interval", p.interval),
		zap.Int("limit", p.limit))
	return true
}

// Stop cancels future ticks. A batch already in progress runs to completion
// in the background.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	p.running = false
	p.logger.Info("poller stopped", zap.String("org_id", p.orgID))
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Status returns the running flag and the organization being polled.
func (p *Poller) Status() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, p.orgID
}

func (p *Poller) loop(ctx context.Context, orgID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx, orgID)
	for {
		select {
		case <-ctx.Done():
			p.markStopped(done)
			return
		case <-ticker.C:
			p.tick(ctx, orgID)
		}
	}
}

// markStopped clears the running flag when the parent context ends the loop.
func (p *Poller) markStopped(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.running = false
	}
}

func (p *Poller) tick(ctx context.Context, orgID string) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll tick panicked", zap.String("org_id", orgID), zap.Any("panic", r))
		}
	}()

	// Stop cancels future ticks only; the dispatch itself is not interrupted.
	result, err := p.dispatcher.ExecuteBatch(context.WithoutCancel(ctx), orgID, p.limit)
	if err != nil {
		p.logger.Error("poll tick failed", zap.String("org_id", orgID), zap.Error(err))
		return
	}
	if result != nil && result.TotalProcessed > 0 {
		p.logger.Info("poll tick dispatched",
			zap.String("org_id", orgID),
			zap.Int("processed", result.TotalProcessed),
			zap.Int("failed", result.TotalFailed))
	}
}

// Run polls every organization in orgIDs until ctx is done.
func Run(ctx context.Context, dispatcher Dispatcher, interval time.Duration, limit int, logger *zap.Logger, orgIDs ...string) error {
	if len(orgIDs) == 0 {
		return fmt.Errorf("%w: at least one organization id is required", ErrInvalidInput)
	}
	pollers := make([]*Poller, 0, len(orgIDs))
	for _, orgID := range orgIDs {
		p := NewPoller(dispatcher, interval, limit, logger)
		p.Start(ctx, orgID)
		pollers = append(pollers, p)
	}
	<-ctx.Done()
	for _, p := range pollers {
		p.Stop()
	}
	return nil
}
