package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
	"github.com/rs/zerolog/log"
)

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with the other stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

const organizationColumns = `
	org_id, name, is_personal, primary_domain,
	subscription_status, subscription_canceled_at, subscription_amount, subscription_period_end,
	engagement_score, interest_level, is_prospect, disqualified,
	created_at, updated_at
`

// Create inserts a new organization row.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		org.ID,
		org.Name,
		org.IsPersonal,
		org.PrimaryDomain,
		org.SubscriptionStatus,
		org.SubscriptionCanceledAt,
		org.SubscriptionAmount,
		org.SubscriptionPeriodEnd,
		org.EngagementScore,
		org.InterestLevel,
		org.IsProspect,
		org.Disqualified,
		org.CreatedAt,
		org.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", org.ID).
		Str("name", org.Name).
		Msg("Created organization")

	return nil
}

// Get retrieves an organization by directory id.
func (s *OrganizationStore) Get(ctx context.Context, orgID string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE org_id = $1`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// Update updates an existing organization row.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()

	query := `
		UPDATE organizations SET
			name = $2,
			is_personal = $3,
			primary_domain = $4,
			subscription_status = $5,
			subscription_canceled_at = $6,
			subscription_amount = $7,
			subscription_period_end = $8,
			engagement_score = $9,
			interest_level = $10,
			is_prospect = $11,
			disqualified = $12,
			updated_at = $13
		WHERE org_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		org.ID,
		org.Name,
		org.IsPersonal,
		org.PrimaryDomain,
		org.SubscriptionStatus,
		org.SubscriptionCanceledAt,
		org.SubscriptionAmount,
		org.SubscriptionPeriodEnd,
		org.EngagementScore,
		org.InterestLevel,
		org.IsProspect,
		org.Disqualified,
		org.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update organization: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Debug().
		Str("org_id", org.ID).
		Msg("Updated organization")

	return nil
}

// List returns every organization row ordered by id.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY org_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}

	return orgs, nil
}

// SetPrimaryDomain updates the cached primary-domain field.
func (s *OrganizationStore) SetPrimaryDomain(ctx context.Context, orgID string, domain *string) error {
	query := `UPDATE organizations SET primary_domain = $2, updated_at = now() WHERE org_id = $1`

	result, err := s.pool.Exec(ctx, query, orgID, domain)
	if err != nil {
		return fmt.Errorf("failed to set primary domain: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	return nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.IsPersonal,
		&org.PrimaryDomain,
		&org.SubscriptionStatus,
		&org.SubscriptionCanceledAt,
		&org.SubscriptionAmount,
		&org.SubscriptionPeriodEnd,
		&org.EngagementScore,
		&org.InterestLevel,
		&org.IsProspect,
		&org.Disqualified,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}
