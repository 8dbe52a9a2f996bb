package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dhima/followup-engine/internal/models"
)

// GetContact loads a contact scoped to an organization.
func (c *MySQLClient) GetContact(ctx context.Context, orgID, contactID string) (*models.Contact, error) {
	query := `
		SELECT id, org_id, email, name, first_name, unsubscribed
		FROM contacts
		WHERE id = ? AND org_id = ?`

	var (
		contact         models.Contact
		name, firstName sql.NullString
	)
	err := c.db.QueryRowContext(ctx, query, contactID, orgID).Scan(
		&contact.ID, &contact.OrgID, &contact.Email, &name, &firstName, &contact.Unsubscribed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	contact.Name = name.String
	contact.FirstName = firstName.String
	return &contact, nil
}

// MarkContactUnsubscribed flags a contact so no further follow-ups are sent.
func (c *MySQLClient) MarkContactUnsubscribed(ctx context.Context, orgID, contactID string) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE contacts SET unsubscribed = ? WHERE id = ? AND org_id = ?`,
		true, contactID, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe contact: %w", err)
	}
	return expectRows(result, ErrContactNotFound)
}

// GetOrgPolicy loads sending rules for an organization, falling back to
// models.DefaultOrgPolicy when none is stored.
func (c *MySQLClient) GetOrgPolicy(ctx context.Context, orgID string) (models.OrgPolicy, error) {
	query := `
		SELECT org_id, sending_paused, stop_on_reply, require_previous_step
		FROM org_policies
		WHERE org_id = ?`

	var p models.OrgPolicy
	err := c.db.QueryRowContext(ctx, query, orgID).Scan(
		&p.OrgID, &p.SendingPaused, &p.StopOnReply, &p.RequirePreviousStep,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultOrgPolicy(orgID), nil
		}
		return models.OrgPolicy{}, fmt.Errorf("scan org policy: %w", err)
	}
	return p, nil
}
