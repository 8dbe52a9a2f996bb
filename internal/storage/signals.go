package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dhima/followup-engine/internal/models"
)

// CreateSignal persists a contact signal.
func (c *MySQLClient) CreateSignal(ctx context.Context, signal *models.Signal) error {
	query := `
		INSERT INTO contact_signals (id, org_id, contact_id, sequence_id, followup_id, type, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query,
		signal.ID,
		signal.OrgID,
		signal.ContactID,
		signal.SequenceID,
		signal.FollowUpID,
		signal.Type,
		signal.OccurredAt.UTC(),
		c.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// ListSignals returns the signals of a contact in the order they occurred.
func (c *MySQLClient) ListSignals(ctx context.Context, orgID, contactID string) ([]models.Signal, error) {
	query := `
		SELECT id, org_id, contact_id, sequence_id, followup_id, type, occurred_at
		FROM contact_signals
		WHERE org_id = ? AND contact_id = ?
		ORDER BY occurred_at ASC, id ASC`

	rows, err := c.db.QueryContext(ctx, query, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	signals := make([]models.Signal, 0)
	for rows.Next() {
		var (
			s                      models.Signal
			sequenceID, followUpID sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.OrgID, &s.ContactID, &sequenceID, &followUpID, &s.Type, &s.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.SequenceID = stringPtr(sequenceID)
		s.FollowUpID = stringPtr(followUpID)
		s.OccurredAt = s.OccurredAt.UTC()
		signals = append(signals, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}
	return signals, nil
}
