package store

import (
	"context"
	"errors"

	"github.com/memberdesk/memberdesk/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
)

// OrganizationStore defines the interface for the local organization cache.
// Rows are keyed by the external directory's opaque organization id.
type OrganizationStore interface {
	// Create inserts a new organization row.
	// Returns ErrOrganizationAlreadyExists if the id is already present.
	Create(ctx context.Context, org *models.Organization) error

	// Get retrieves an organization by directory id.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Get(ctx context.Context, orgID string) (*models.Organization, error)

	// Update updates an existing organization row.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Update(ctx context.Context, org *models.Organization) error

	// List returns every organization row. The reconciliation report and the
	// fuzzy matcher operate over the full set.
	List(ctx context.Context) ([]*models.Organization, error)

	// SetPrimaryDomain updates the cached primary-domain field. A nil domain
	// clears it (no claims remain after a release).
	SetPrimaryDomain(ctx context.Context, orgID string, domain *string) error
}
