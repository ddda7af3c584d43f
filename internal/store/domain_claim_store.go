package store

import (
	"context"
	"errors"

	"github.com/memberdesk/memberdesk/internal/models"
)

// Sentinel errors for domain claim store operations
var (
	ErrClaimNotFound        = errors.New("domain claim not found")
	ErrDomainAlreadyClaimed = errors.New("domain already claimed")
)

// DomainClaimStore defines the interface for the domain claim ledger rows.
// The unique constraint on domain is the local arbiter for conflicting claims.
type DomainClaimStore interface {
	// Create inserts a claim row.
	// Returns ErrDomainAlreadyClaimed if any organization already holds the domain.
	Create(ctx context.Context, claim *models.DomainClaim) error

	// GetByDomain retrieves the claim holding a domain, whoever owns it.
	// Returns ErrClaimNotFound if no organization has claimed the domain.
	GetByDomain(ctx context.Context, domain string) (*models.DomainClaim, error)

	// ListByOrg returns all claims held by one organization, verified claims
	// first, then by creation time ascending (the primary-election order).
	ListByOrg(ctx context.Context, orgID string) ([]*models.DomainClaim, error)

	// List returns every claim row.
	List(ctx context.Context) ([]*models.DomainClaim, error)

	// SetVerified updates the verified flag on an organization's claim.
	SetVerified(ctx context.Context, orgID, domain string, verified bool) error

	// SetPrimary makes the given claim the organization's primary, clearing any
	// previous primary flag and updating the organization's cached
	// primary-domain field in the same transaction. A primary claim is always
	// marked verified. A nil domain clears the primary flag and the cached
	// field without electing a replacement.
	// Returns ErrClaimNotFound if the organization does not hold the domain.
	SetPrimary(ctx context.Context, orgID string, domain *string) error

	// Delete removes an organization's claim on a domain.
	// Returns ErrClaimNotFound if the organization does not hold the domain.
	Delete(ctx context.Context, orgID, domain string) error
}
