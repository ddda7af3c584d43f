package store

import (
	"context"
	"errors"

	"github.com/memberdesk/memberdesk/internal/models"
)

// Sentinel errors for membership store operations
var (
	ErrMembershipNotFound = errors.New("membership not found")
)

// MemberWithOrg is a membership row joined with its organization's name and
// personal flag, the shape the reconciliation report consumes.
type MemberWithOrg struct {
	Membership    models.Membership
	OrgName       string
	OrgIsPersonal bool
}

// MembershipStore defines the interface for the local membership cache.
// At most one row exists per (user, organization) pair.
type MembershipStore interface {
	// Upsert inserts a membership row, or refreshes directory id, role, email
	// and display name when the (org, user) pair already exists.
	Upsert(ctx context.Context, m *models.Membership) error

	// Get retrieves the membership row for a (org, user) pair.
	// Returns ErrMembershipNotFound if absent.
	Get(ctx context.Context, orgID, userID string) (*models.Membership, error)

	// Delete removes the membership row for a (org, user) pair.
	// Returns ErrMembershipNotFound if absent.
	Delete(ctx context.Context, orgID, userID string) error

	// ListByOrg returns all cached memberships of one organization, ordered by
	// creation time ascending for deterministic migration batches.
	ListByOrg(ctx context.Context, orgID string) ([]*models.Membership, error)

	// ListWithOrg returns every membership joined with its organization.
	ListWithOrg(ctx context.Context) ([]*MemberWithOrg, error)
}
