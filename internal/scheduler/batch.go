package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExecuteBatch executes up to limit due follow-ups in chunks of MaxConcurrency.
// Chunks run one after another; members of a chunk run in parallel and never
// cancel each other. Member errors are reported as failed executions, so the
// only errors returned are invalid input and a failure to list due work.
//
// A non-positive limit falls back to the configured batch limit.
func (e *Engine) ExecuteBatch(ctx context.Context, orgID string, limit int) (*models.BatchResult, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = e.batchLimit
	}

	ctx, span := e.tracer.Start(ctx, "scheduler.ExecuteBatch", trace.WithAttributes(
		attribute.String("org.id", orgID),
		attribute.Int("batch.limit", limit),
	))
	defer span.End()
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		span.SetAttributes(attribute.String("request.id", requestID))
	}

	start := e.clock.Now()
	result := &models.BatchResult{Executions: []models.ExecutionResult{}}

	due, err := e.listDue(ctx, orgID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(due) == 0 {
		return result, nil
	}

	log := e.logger.With(zap.String("org_id", orgID)).With(logging.ContextFields(ctx)...)
	log.Info("batch started", zap.Int("due", len(due)), zap.Int("max_concurrency", e.maxConcurrency))
	e.observers.notifyBatchStarted(ctx, models.BatchEvent{
		Type:       models.LifecycleEventBatchStarted,
		OrgID:      orgID,
		Due:        len(due),
		OccurredAt: start.UTC(),
	})

	for _, chunk := range chunkFollowUps(due, e.maxConcurrency) {
		for _, r := range e.runChunk(ctx, orgID, chunk) {
			result.Add(r)
		}
	}

	result.DurationMs = e.since(start)
	e.batches.Add(1)
	span.SetAttributes(
		attribute.Int("batch.processed", result.TotalProcessed),
		attribute.Int("batch.failed", result.TotalFailed),
	)
	log.Info("batch completed",
		zap.Int("processed", result.TotalProcessed),
		zap.Int("sent", result.TotalSent),
		zap.Int("failed", result.TotalFailed),
		zap.Int("skipped", result.TotalSkipped),
		zap.Int64("duration_ms", result.DurationMs))
	e.observers.notifyBatchCompleted(ctx, models.BatchEvent{
		Type:       models.LifecycleEventBatchCompleted,
		OrgID:      orgID,
		Due:        len(due),
		Result:     result,
		OccurredAt: e.clock.Now().UTC(),
	})
	return result, nil
}

func (e *Engine) listDue(ctx context.Context, orgID string, limit int) ([]models.FollowUp, error) {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()

	due, err := e.store.ListDueFollowUps(ctx, orgID, e.clock.Now().UTC(), limit)
	if err != nil {
		return nil, &StoreError{Op: "list due", Err: err}
	}
	return due, nil
}

// runChunk executes every member and waits for all of them. Results keep the
// chunk order.
func (e *Engine) runChunk(ctx context.Context, orgID string, chunk []models.FollowUp) []models.ExecutionResult {
	results := make([]models.ExecutionResult, len(chunk))

	var g errgroup.Group
	g.SetLimit(e.maxConcurrency)
	for i, fu := range chunk {
		i, fu := i, fu
		g.Go(func() error {
			results[i] = e.executeMember(ctx, orgID, fu)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) executeMember(ctx context.Context, orgID string, fu models.FollowUp) (res models.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("follow-up execution panicked",
				zap.String("followup_id", fu.ID),
				zap.Any("panic", r))
			res = failedEntry(fu, fmt.Errorf("panic: %v", r))
		}
	}()

	r, err := e.Execute(ctx, fu.ID, orgID, false)
	if err != nil {
		e.logger.Warn("follow-up execution error",
			zap.String("followup_id", fu.ID),
			zap.Error(err))
		return failedEntry(fu, err)
	}
	return *r
}

func failedEntry(fu models.FollowUp, err error) models.ExecutionResult {
	msg := err.Error()
	return models.ExecutionResult{
		FollowUpID:   fu.ID,
		Status:       models.FollowUpStatusFailed,
		ContactID:    fu.ContactID,
		ErrorMessage: &msg,
	}
}

func chunkFollowUps(items []models.FollowUp, size int) [][]models.FollowUp {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]models.FollowUp, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
