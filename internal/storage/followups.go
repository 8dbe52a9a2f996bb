package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dhima/followup-engine/internal/models"
)

const followUpColumns = `
	id, org_id, sequence_id, step_id, step_number, campaign_id, contact_id,
	scheduled_at, status, attempt_count, last_error, outcome, sent_at,
	sent_message_ref, opened_at, clicked_at, replied_at, created_at, updated_at`

func scanFollowUp(row rowScanner) (models.FollowUp, error) {
	var (
		f                                      models.FollowUp
		lastError, outcome, sentRef            sql.NullString
		sentAt, openedAt, clickedAt, repliedAt sql.NullTime
	)
	err := row.Scan(
		&f.ID, &f.OrgID, &f.SequenceID, &f.StepID, &f.StepNumber, &f.CampaignID, &f.ContactID,
		&f.ScheduledAt, &f.Status, &f.AttemptCount, &lastError, &outcome, &sentAt,
		&sentRef, &openedAt, &clickedAt, &repliedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return models.FollowUp{}, err
	}
	f.ScheduledAt = f.ScheduledAt.UTC()
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	f.LastError = stringPtr(lastError)
	f.Outcome = stringPtr(outcome)
	f.SentMessageRef = stringPtr(sentRef)
	f.SentAt = timePtr(sentAt)
	f.OpenedAt = timePtr(openedAt)
	f.ClickedAt = timePtr(clickedAt)
	f.RepliedAt = timePtr(repliedAt)
	return f, nil
}

func (c *MySQLClient) queryFollowUps(ctx context.Context, query string, args ...any) ([]models.FollowUp, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query follow-ups: %w", err)
	}
	defer rows.Close()

	followUps := make([]models.FollowUp, 0)
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan follow-up: %w", err)
		}
		followUps = append(followUps, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow-ups: %w", err)
	}
	return followUps, nil
}

// ListDueFollowUps returns pending follow-ups scheduled at or before now,
// oldest first, capped at limit.
func (c *MySQLClient) ListDueFollowUps(ctx context.Context, orgID string, now time.Time, limit int) ([]models.FollowUp, error) {
	query := `SELECT ` + followUpColumns + `
		FROM followups
		WHERE org_id = ?
		  AND status = 'pending'
		  AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, id ASC
		LIMIT ?`
	return c.queryFollowUps(ctx, query, orgID, now.UTC(), limit)
}

// GetFollowUp loads one follow-up scoped to an organization.
func (c *MySQLClient) GetFollowUp(ctx context.Context, orgID, followUpID string) (*models.FollowUp, error) {
	query := `SELECT ` + followUpColumns + ` FROM followups WHERE id = ? AND org_id = ?`
	f, err := scanFollowUp(c.db.QueryRowContext(ctx, query, followUpID, orgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFollowUpNotFound
		}
		return nil, fmt.Errorf("scan follow-up: %w", err)
	}
	return &f, nil
}

// ListFollowUpsBySequence returns every follow-up of a sequence.
func (c *MySQLClient) ListFollowUpsBySequence(ctx context.Context, orgID, sequenceID string) ([]models.FollowUp, error) {
	query := `SELECT ` + followUpColumns + `
		FROM followups
		WHERE org_id = ? AND sequence_id = ?
		ORDER BY scheduled_at ASC, id ASC`
	return c.queryFollowUps(ctx, query, orgID, sequenceID)
}

// ListFollowUpsByContact returns every follow-up of a contact across sequences.
func (c *MySQLClient) ListFollowUpsByContact(ctx context.Context, orgID, contactID string) ([]models.FollowUp, error) {
	query := `SELECT ` + followUpColumns + `
		FROM followups
		WHERE org_id = ? AND contact_id = ?
		ORDER BY scheduled_at ASC, id ASC`
	return c.queryFollowUps(ctx, query, orgID, contactID)
}

// CreateFollowUps inserts follow-ups in one transaction and returns how many
// were stored. A pending row whose (sequence, step, contact) already holds a
// pending follow-up is rejected by idx_followups_pending_slot and left out of
// the count; any other insert error aborts the whole batch.
func (c *MySQLClient) CreateFollowUps(ctx context.Context, followUps []models.FollowUp) (int, error) {
	if len(followUps) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO followups (
			id, org_id, sequence_id, step_id, step_number, campaign_id, contact_id,
			scheduled_at, status, attempt_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare follow-up insert: %w", err)
	}
	defer stmt.Close()

	now := c.now()
	inserted := 0
	for _, f := range followUps {
		created := f.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err := stmt.ExecContext(ctx,
			f.ID, f.OrgID, f.SequenceID, f.StepID, f.StepNumber, f.CampaignID, f.ContactID,
			f.ScheduledAt.UTC(), f.Status, f.AttemptCount, created.UTC(), created.UTC(),
		)
		if err != nil {
			// Both MySQL and SQLite roll back only the failing statement.
			if isPendingSlotConflict(err) {
				continue
			}
			return 0, fmt.Errorf("insert follow-up %s: %w", f.ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return inserted, nil
}

// UpdateFollowUpStatus writes a status transition together with its outcome fields.
// Nil fields in update keep their stored values.
func (c *MySQLClient) UpdateFollowUpStatus(ctx context.Context, followUpID string, status models.FollowUpStatus, update models.StatusUpdate) error {
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = c.now()
	}
	increment := 0
	if update.IncrementAttempt {
		increment = 1
	}

	query := `
		UPDATE followups
		SET status = ?,
		    outcome = COALESCE(?, outcome),
		    last_error = COALESCE(?, last_error),
		    sent_at = COALESCE(?, sent_at),
		    sent_message_ref = COALESCE(?, sent_message_ref),
		    attempt_count = attempt_count + ?,
		    updated_at = ?
		WHERE id = ?`

	result, err := c.db.ExecContext(ctx, query,
		status,
		update.Outcome,
		update.LastError,
		nullableTime(update.SentAt),
		update.SentMessageRef,
		increment,
		updatedAt.UTC(),
		followUpID,
	)
	if err != nil {
		return fmt.Errorf("failed to update follow-up status: %w", err)
	}
	return expectRows(result, ErrFollowUpNotFound)
}

// RescheduleFollowUp moves a pending follow-up to a new time.
func (c *MySQLClient) RescheduleFollowUp(ctx context.Context, orgID, followUpID string, at time.Time) error {
	result, err := c.db.ExecContext(ctx, `
		UPDATE followups
		SET scheduled_at = ?, updated_at = ?
		WHERE id = ? AND org_id = ? AND status = 'pending'`,
		at.UTC(), c.now(), followUpID, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule follow-up: %w", err)
	}
	return expectRows(result, ErrFollowUpNotFound)
}

// CancelFollowUpsForContact marks every pending follow-up of the contact as
// canceled. An empty sequenceID cancels across all sequences.
func (c *MySQLClient) CancelFollowUpsForContact(ctx context.Context, orgID, contactID, sequenceID, reason string) (int64, error) {
	query := `
		UPDATE followups
		SET status = 'canceled', outcome = ?, updated_at = ?
		WHERE org_id = ? AND contact_id = ? AND status = 'pending'`
	args := []any{reason, c.now(), orgID, contactID}
	if sequenceID != "" {
		query += ` AND sequence_id = ?`
		args = append(args, sequenceID)
	}

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel follow-ups: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return count, nil
}

// MarkFollowUpEngagement stamps the first open, click or reply on a follow-up.
func (c *MySQLClient) MarkFollowUpEngagement(ctx context.Context, orgID, followUpID string, signal models.SignalType, at time.Time) error {
	var column string
	switch signal {
	case models.SignalTypeOpen:
		column = "opened_at"
	case models.SignalTypeClick:
		column = "clicked_at"
	case models.SignalTypeReply:
		column = "replied_at"
	default:
		return fmt.Errorf("signal %q does not track engagement", signal)
	}

	query := `UPDATE followups SET ` + column + ` = COALESCE(` + column + `, ?), updated_at = ? WHERE id = ? AND org_id = ?`
	result, err := c.db.ExecContext(ctx, query, at.UTC(), c.now(), followUpID, orgID)
	if err != nil {
		return fmt.Errorf("failed to mark engagement: %w", err)
	}
	return expectRows(result, ErrFollowUpNotFound)
}
