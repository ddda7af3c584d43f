package store

import (
	"context"
	"errors"

	"github.com/memberdesk/memberdesk/internal/models"
)

// Sentinel errors for stakeholder store operations
var (
	ErrStakeholderNotFound = errors.New("stakeholder not found")
	ErrLastOwner           = errors.New("cannot remove the last owner stakeholder")
)

// StakeholderStore manages internal-only stakeholder annotations.
type StakeholderStore interface {
	// Upsert inserts or replaces the stakeholder row for (org, user).
	Upsert(ctx context.Context, s *models.Stakeholder) error

	// Delete removes a stakeholder row. Removing the organization's only owner
	// fails with ErrLastOwner; reassign ownership first.
	Delete(ctx context.Context, orgID, userID string) error

	// ListByOrg returns all stakeholders of one organization.
	ListByOrg(ctx context.Context, orgID string) ([]*models.Stakeholder, error)
}
