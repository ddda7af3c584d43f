package store

import (
	"context"
	"errors"

	"github.com/memberdesk/memberdesk/internal/models"
)

// Sentinel errors for excluded domain store operations
var (
	ErrExcludedDomainExists = errors.New("excluded domain already exists")
)

// ExcludedDomainStore manages the admin-managed personal-domain entries that
// extend the hard-coded free-email-provider exclusion set.
type ExcludedDomainStore interface {
	// Add inserts an exclusion entry.
	// Returns ErrExcludedDomainExists if the domain is already excluded.
	Add(ctx context.Context, e *models.ExcludedDomain) error

	// Remove deletes an exclusion entry. Removing an absent domain is a no-op.
	Remove(ctx context.Context, domain string) error

	// List returns all admin-managed exclusion entries.
	List(ctx context.Context) ([]*models.ExcludedDomain, error)
}
