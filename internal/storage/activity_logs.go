package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dhima/followup-engine/internal/models"
)

// CreateActivityLog appends an audit row for an execution outcome.
func (c *MySQLClient) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (id, org_id, followup_id, contact_id, sequence_id, event_type, status, detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var detail sql.NullString
	if entry.Detail != "" {
		detail = sql.NullString{String: entry.Detail, Valid: true}
	}

	_, err := c.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrgID,
		entry.FollowUpID,
		entry.ContactID,
		entry.SequenceID,
		entry.EventType,
		entry.Status,
		detail,
		entry.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

// ListActivityLogs returns the audit trail of one follow-up, oldest first.
func (c *MySQLClient) ListActivityLogs(ctx context.Context, orgID, followUpID string) ([]models.ActivityLog, error) {
	query := `
		SELECT id, org_id, followup_id, contact_id, sequence_id, event_type, status, detail, occurred_at
		FROM activity_logs
		WHERE org_id = ? AND followup_id = ?
		ORDER BY occurred_at ASC, id ASC`

	rows, err := c.db.QueryContext(ctx, query, orgID, followUpID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.ActivityLog, 0)
	for rows.Next() {
		var (
			entry  models.ActivityLog
			detail sql.NullString
		)
		if err := rows.Scan(
			&entry.ID, &entry.OrgID, &entry.FollowUpID, &entry.ContactID, &entry.SequenceID,
			&entry.EventType, &entry.Status, &detail, &entry.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		entry.Detail = detail.String
		entry.OccurredAt = entry.OccurredAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity logs: %w", err)
	}
	return logs, nil
}
