package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const reasonSeparator = "; "

// Execute runs one follow-up end to end: guard, evaluate, then skip, preview
// or send, and persist the outcome. Ineligibility and send failures are
// reported in the result; only invalid input, duplicate execution, missing
// records and store failures return an error.
//
// A dry run never writes, sends or notifies.
func (e *Engine) Execute(ctx context.Context, followUpID, orgID string, dryRun bool) (*models.ExecutionResult, error) {
	if strings.TrimSpace(followUpID) == "" || strings.TrimSpace(orgID) == "" {
		return nil, fmt.Errorf("%w: follow-up id and organization id are required", ErrInvalidInput)
	}

	ctx, span := e.tracer.Start(ctx, "scheduler.Execute", trace.WithAttributes(
		attribute.String("followup.id", followUpID),
		attribute.String("org.id", orgID),
		attribute.Bool("dry_run", dryRun),
	))
	defer span.End()
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		span.SetAttributes(attribute.String("request.id", requestID))
	}

	if !e.inflight.acquire(followUpID) {
		span.SetStatus(codes.Error, "already executing")
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExecuting, followUpID)
	}
	defer e.inflight.release(followUpID)

	result, err := e.execute(ctx, followUpID, orgID, dryRun)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("followup.status", string(result.Status)))
	return result, nil
}

func (e *Engine) execute(ctx context.Context, followUpID, orgID string, dryRun bool) (*models.ExecutionResult, error) {
	start := e.clock.Now()
	log := e.logger.With(zap.String("followup_id", followUpID), zap.String("org_id", orgID)).
		With(logging.ContextFields(ctx)...)

	evaluation, err := e.evaluate(ctx, followUpID, orgID)
	if err != nil {
		return nil, storeErr("evaluate", err)
	}

	followUp, contact, err := e.load(ctx, followUpID, orgID)
	if err != nil {
		return nil, err
	}

	result := &models.ExecutionResult{
		FollowUpID:   followUp.ID,
		ContactID:    contact.ID,
		ContactEmail: contact.Email,
		DryRun:       dryRun,
	}

	// Terminal records never transition again; report their current state.
	if followUp.Status.IsTerminal() {
		result.Status = followUp.Status
		result.Outcome = strings.Join(evaluation.Reasons, reasonSeparator)
		result.DurationMs = e.since(start)
		return result, nil
	}

	if !evaluation.Eligible {
		result.Status = models.FollowUpStatusSkipped
		result.Outcome = strings.Join(evaluation.Reasons, reasonSeparator)
		if !dryRun {
			if err := e.persistSkip(ctx, followUp, contact, evaluation.Reasons, result.Outcome); err != nil {
				return nil, err
			}
			log.Info("follow-up skipped", zap.Strings("reasons", evaluation.Reasons))
		}
		result.DurationMs = e.since(start)
		return result, nil
	}

	step, err := e.loadStep(ctx, followUp.StepID)
	if err != nil {
		return nil, err
	}
	msg := Render(followUp.ID, *step, *contact)

	if dryRun {
		result.Status = models.FollowUpStatusPending
		result.Outcome = fmt.Sprintf("dry run: would send %q to %s", msg.Subject, msg.To)
		result.DurationMs = e.since(start)
		return result, nil
	}

	receipt, sendErr := e.send(ctx, msg, *contact)
	if sendErr != nil {
		sendErr = &SendError{FollowUpID: followUp.ID, Err: sendErr}
		errMsg := sendErr.Error()
		if err := e.persistFailure(ctx, followUp, contact, errMsg); err != nil {
			return nil, err
		}
		log.Warn("follow-up send failed", zap.Error(sendErr))
		result.Status = models.FollowUpStatusFailed
		result.Outcome = "send failed"
		result.ErrorMessage = &errMsg
		result.DurationMs = e.since(start)
		return result, nil
	}

	if err := e.persistSent(ctx, followUp, contact, receipt); err != nil {
		return nil, err
	}
	log.Info("follow-up sent", zap.String("delivery_ref", receipt.DeliveryRef))

	result.Status = models.FollowUpStatusSent
	result.Outcome = "sent via " + receipt.Channel
	result.DurationMs = e.since(start)
	return result, nil
}

func (e *Engine) evaluate(ctx context.Context, followUpID, orgID string) (models.TriggerEvaluation, error) {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.evaluator.Evaluate(ctx, followUpID, orgID)
}

func (e *Engine) load(ctx context.Context, followUpID, orgID string) (*models.FollowUp, *models.Contact, error) {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()

	followUp, err := e.store.GetFollowUp(ctx, orgID, followUpID)
	if err != nil {
		return nil, nil, storeErr("load follow-up", err)
	}
	contact, err := e.store.GetContact(ctx, orgID, followUp.ContactID)
	if err != nil {
		return nil, nil, storeErr("load contact", err)
	}
	return followUp, contact, nil
}

func (e *Engine) loadStep(ctx context.Context, stepID string) (*models.Step, error) {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()

	step, err := e.store.GetStep(ctx, stepID)
	if err != nil {
		return nil, storeErr("load step", err)
	}
	return step, nil
}

func (e *Engine) send(ctx context.Context, msg models.RenderedMessage, contact models.Contact) (*models.DeliveryReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	receipt, err := e.channel.Send(ctx, msg, contact)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("channel returned no receipt")
	}
	return receipt, nil
}

func (e *Engine) updateStatus(ctx context.Context, followUpID string, status models.FollowUpStatus, update models.StatusUpdate) error {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.store.UpdateFollowUpStatus(ctx, followUpID, status, update); err != nil {
		return storeErr("update status", err)
	}
	return nil
}

func (e *Engine) persistSkip(ctx context.Context, followUp *models.FollowUp, contact *models.Contact, reasons []string, outcome string) error {
	now := e.clock.Now().UTC()
	if err := e.updateStatus(ctx, followUp.ID, models.FollowUpStatusSkipped, models.StatusUpdate{
		Outcome:   &outcome,
		UpdatedAt: now,
	}); err != nil {
		return err
	}
	e.processed.Add(1)
	e.skipped.Add(1)

	ev := e.followUpEvent(models.LifecycleEventSkipped, followUp, contact, now)
	ev.Reasons = reasons
	e.recordActivity(ctx, followUp, models.FollowUpStatusSkipped, models.LifecycleEventSkipped, outcome, now)
	e.observers.notifySkipped(ctx, ev)
	return nil
}

func (e *Engine) persistFailure(ctx context.Context, followUp *models.FollowUp, contact *models.Contact, errMsg string) error {
	now := e.clock.Now().UTC()
	outcome := "send failed"
	if err := e.updateStatus(ctx, followUp.ID, models.FollowUpStatusFailed, models.StatusUpdate{
		Outcome:          &outcome,
		LastError:        &errMsg,
		IncrementAttempt: true,
		UpdatedAt:        now,
	}); err != nil {
		return err
	}
	e.processed.Add(1)
	e.failed.Add(1)

	ev := e.followUpEvent(models.LifecycleEventFailed, followUp, contact, now)
	ev.Error = errMsg
	e.recordActivity(ctx, followUp, models.FollowUpStatusFailed, models.LifecycleEventFailed, errMsg, now)
	e.observers.notifyFailed(ctx, ev)
	return nil
}

func (e *Engine) persistSent(ctx context.Context, followUp *models.FollowUp, contact *models.Contact, receipt *models.DeliveryReceipt) error {
	now := e.clock.Now().UTC()
	outcome := "sent via " + receipt.Channel
	if err := e.updateStatus(ctx, followUp.ID, models.FollowUpStatusSent, models.StatusUpdate{
		Outcome:        &outcome,
		SentAt:         &now,
		SentMessageRef: &receipt.DeliveryRef,
		UpdatedAt:      now,
	}); err != nil {
		return err
	}
	e.processed.Add(1)
	e.sent.Add(1)

	ev := e.followUpEvent(models.LifecycleEventSent, followUp, contact, now)
	ev.DeliveryRef = receipt.DeliveryRef
	e.observers.notifySent(ctx, ev)
	e.recordActivity(ctx, followUp, models.FollowUpStatusSent, models.LifecycleEventSent, receipt.DeliveryRef, now)
	return nil
}

// recordActivity is best effort: failures are logged and swallowed.
func (e *Engine) recordActivity(ctx context.Context, followUp *models.FollowUp, status models.FollowUpStatus, eventType models.LifecycleEventType, detail string, at time.Time) {
	if e.activity == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.activityTimeout)
	defer cancel()

	err := e.activity.Record(ctx, models.ActivityLog{
		ID:         uuid.NewString(),
		OrgID:      followUp.OrgID,
		FollowUpID: followUp.ID,
		ContactID:  followUp.ContactID,
		SequenceID: followUp.SequenceID,
		EventType:  eventType,
		Status:     status,
		Detail:     detail,
		OccurredAt: at,
	})
	if err != nil {
		e.logger.Warn("failed to record activity",
			zap.String("followup_id", followUp.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func (e *Engine) followUpEvent(t models.LifecycleEventType, followUp *models.FollowUp, contact *models.Contact, at time.Time) models.FollowUpEvent {
	return models.FollowUpEvent{
		Type:         t,
		OrgID:        followUp.OrgID,
		FollowUpID:   followUp.ID,
		SequenceID:   followUp.SequenceID,
		StepNumber:   followUp.StepNumber,
		ContactID:    followUp.ContactID,
		ContactEmail: contact.Email,
		OccurredAt:   at,
	}
}

func (e *Engine) since(start time.Time) int64 {
	return e.clock.Now().Sub(start).Milliseconds()
}
