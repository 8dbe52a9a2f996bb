package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dhima/followup-engine/internal/models"
)

// GetSequence loads a sequence scoped to an organization.
func (c *MySQLClient) GetSequence(ctx context.Context, orgID, sequenceID string) (*models.Sequence, error) {
	query := `
		SELECT id, org_id, campaign_id, name, total_steps, active, created_at, updated_at
		FROM sequences
		WHERE id = ? AND org_id = ?`

	var s models.Sequence
	err := c.db.QueryRowContext(ctx, query, sequenceID, orgID).Scan(
		&s.ID, &s.OrgID, &s.CampaignID, &s.Name, &s.TotalSteps, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSequenceNotFound
		}
		return nil, fmt.Errorf("scan sequence: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

const stepColumns = `id, sequence_id, step_number, subject, body, delay_days, delay_hours, send_window, timezone`

func scanStep(row rowScanner) (models.Step, error) {
	var (
		s                    models.Step
		sendWindow, timezone sql.NullString
	)
	if err := row.Scan(
		&s.ID, &s.SequenceID, &s.StepNumber, &s.Subject, &s.Body,
		&s.DelayDays, &s.DelayHours, &sendWindow, &timezone,
	); err != nil {
		return models.Step{}, err
	}
	s.SendWindow = sendWindow.String
	s.Timezone = timezone.String
	return s, nil
}

// ListSteps returns the steps of a sequence ordered by step number.
func (c *MySQLClient) ListSteps(ctx context.Context, sequenceID string) ([]models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM sequence_steps WHERE sequence_id = ? ORDER BY step_number ASC`

	rows, err := c.db.QueryContext(ctx, query, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	steps := make([]models.Step, 0)
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}
	return steps, nil
}

// GetStep loads a single step by id.
func (c *MySQLClient) GetStep(ctx context.Context, stepID string) (*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM sequence_steps WHERE id = ?`
	s, err := scanStep(c.db.QueryRowContext(ctx, query, stepID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStepNotFound
		}
		return nil, fmt.Errorf("scan step: %w", err)
	}
	return &s, nil
}

// UpdateSequenceStepCount stores the derived total step count of a sequence.
func (c *MySQLClient) UpdateSequenceStepCount(ctx context.Context, orgID, sequenceID string, totalSteps int) error {
	result, err := c.db.ExecContext(ctx, `
		UPDATE sequences SET total_steps = ?, updated_at = ?
		WHERE id = ? AND org_id = ?`,
		totalSteps, c.now(), sequenceID, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to update step count: %w", err)
	}
	return expectRows(result, ErrSequenceNotFound)
}
