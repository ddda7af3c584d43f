package store

import (
	"context"
	"errors"

	"github.com/memberdesk/memberdesk/internal/models"
)

// Sentinel errors for contact store operations
var (
	ErrContactNotFound = errors.New("contact not found")
)

// ContactStore manages known email contacts and their organization links.
type ContactStore interface {
	// Create inserts a contact row.
	Create(ctx context.Context, c *models.Contact) error

	// LinkByDomain attaches every unlinked contact whose email domain matches
	// to the given organization. Returns the number of contacts linked.
	LinkByDomain(ctx context.Context, orgID, domain string) (int64, error)

	// ListByOrg returns all contacts linked to one organization.
	ListByOrg(ctx context.Context, orgID string) ([]*models.Contact, error)
}
