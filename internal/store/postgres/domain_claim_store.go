package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
	"github.com/rs/zerolog/log"
)

// DomainClaimStore implements store.DomainClaimStore using PostgreSQL.
// The unique constraint on domain_claims.domain enforces the one-owner rule.
type DomainClaimStore struct {
	pool *pgxpool.Pool
}

// NewDomainClaimStore creates a new PostgreSQL-backed domain claim store.
func NewDomainClaimStore(pool *pgxpool.Pool) *DomainClaimStore {
	return &DomainClaimStore{
		pool: pool,
	}
}

const claimColumns = `claim_id, org_id, domain, is_primary, verified, source, created_at`

// Create inserts a claim row.
func (s *DomainClaimStore) Create(ctx context.Context, claim *models.DomainClaim) error {
	query := `
		INSERT INTO domain_claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		claim.ID,
		claim.OrgID,
		claim.Domain,
		claim.IsPrimary,
		claim.Verified,
		claim.Source,
		claim.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create domain claim: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", claim.OrgID).
		Str("domain", claim.Domain).
		Msg("Created domain claim")

	return nil
}

// GetByDomain retrieves the claim holding a domain, whoever owns it.
func (s *DomainClaimStore) GetByDomain(ctx context.Context, domain string) (*models.DomainClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM domain_claims WHERE domain = $1`

	claim, err := scanClaim(s.pool.QueryRow(ctx, query, domain))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get domain claim: %w", err)
	}

	return claim, nil
}

// ListByOrg returns all claims held by one organization in primary-election
// order: verified first, then earliest created.
func (s *DomainClaimStore) ListByOrg(ctx context.Context, orgID string) ([]*models.DomainClaim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM domain_claims
		WHERE org_id = $1
		ORDER BY verified DESC, created_at ASC
	`

	return s.queryClaims(ctx, query, orgID)
}

// List returns every claim row.
func (s *DomainClaimStore) List(ctx context.Context) ([]*models.DomainClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM domain_claims ORDER BY domain`

	return s.queryClaims(ctx, query)
}

// SetVerified updates the verified flag on an organization's claim.
func (s *DomainClaimStore) SetVerified(ctx context.Context, orgID, domain string, verified bool) error {
	query := `UPDATE domain_claims SET verified = $3 WHERE org_id = $1 AND domain = $2`

	result, err := s.pool.Exec(ctx, query, orgID, domain, verified)
	if err != nil {
		return fmt.Errorf("failed to set verified: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrClaimNotFound
	}

	return nil
}

// SetPrimary makes the given claim the organization's primary. The previous
// primary flag, the new one, and the organization's cached primary-domain
// field all change in one transaction. A nil domain clears the primary.
func (s *DomainClaimStore) SetPrimary(ctx context.Context, orgID string, domain *string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx, `
		UPDATE domain_claims SET is_primary = FALSE WHERE org_id = $1 AND is_primary
	`, orgID)
	if err != nil {
		return fmt.Errorf("failed to clear primary claim: %w", mapPostgresError(err))
	}

	if domain != nil {
		result, err := tx.Exec(ctx, `
			UPDATE domain_claims SET is_primary = TRUE, verified = TRUE
			WHERE org_id = $1 AND domain = $2
		`, orgID, *domain)
		if err != nil {
			return fmt.Errorf("failed to set primary claim: %w", mapPostgresError(err))
		}
		if result.RowsAffected() == 0 {
			return store.ErrClaimNotFound
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE organizations SET primary_domain = $2, updated_at = now() WHERE org_id = $1
	`, orgID, domain)
	if err != nil {
		return fmt.Errorf("failed to update cached primary domain: %w", mapPostgresError(err))
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit primary reassignment: %w", err)
	}

	log.Debug().
		Str("org_id", orgID).
		Msg("Reassigned primary domain")

	return nil
}

// Delete removes an organization's claim on a domain.
func (s *DomainClaimStore) Delete(ctx context.Context, orgID, domain string) error {
	query := `DELETE FROM domain_claims WHERE org_id = $1 AND domain = $2`

	result, err := s.pool.Exec(ctx, query, orgID, domain)
	if err != nil {
		return fmt.Errorf("failed to delete domain claim: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrClaimNotFound
	}

	log.Debug().
		Str("org_id", orgID).
		Str("domain", domain).
		Msg("Deleted domain claim")

	return nil
}

func (s *DomainClaimStore) queryClaims(ctx context.Context, query string, args ...any) ([]*models.DomainClaim, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list domain claims: %w", err)
	}
	defer rows.Close()

	var claims []*models.DomainClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan domain claim: %w", err)
		}
		claims = append(claims, claim)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domain claims: %w", err)
	}

	return claims, nil
}

func scanClaim(row pgx.Row) (*models.DomainClaim, error) {
	var claim models.DomainClaim
	err := row.Scan(
		&claim.ID,
		&claim.OrgID,
		&claim.Domain,
		&claim.IsPrimary,
		&claim.Verified,
		&claim.Source,
		&claim.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &claim, nil
}
