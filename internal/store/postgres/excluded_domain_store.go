package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memberdesk/memberdesk/internal/models"
)

// ExcludedDomainStore implements store.ExcludedDomainStore using PostgreSQL.
type ExcludedDomainStore struct {
	pool *pgxpool.Pool
}

// NewExcludedDomainStore creates a new PostgreSQL-backed excluded domain store.
func NewExcludedDomainStore(pool *pgxpool.Pool) *ExcludedDomainStore {
	return &ExcludedDomainStore{
		pool: pool,
	}
}

// Add inserts an exclusion entry.
func (s *ExcludedDomainStore) Add(ctx context.Context, e *models.ExcludedDomain) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO excluded_domains (domain, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, strings.ToLower(e.Domain), e.Reason, e.CreatedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add excluded domain: %w", mapPostgresError(err))
	}

	return nil
}

// Remove deletes an exclusion entry. Removing an absent domain is a no-op.
func (s *ExcludedDomainStore) Remove(ctx context.Context, domain string) error {
	query := `DELETE FROM excluded_domains WHERE domain = $1`

	if _, err := s.pool.Exec(ctx, query, strings.ToLower(domain)); err != nil {
		return fmt.Errorf("failed to remove excluded domain: %w", err)
	}

	return nil
}

// List returns all admin-managed exclusion entries.
func (s *ExcludedDomainStore) List(ctx context.Context) ([]*models.ExcludedDomain, error) {
	query := `
		SELECT domain, reason, created_by, created_at
		FROM excluded_domains
		ORDER BY domain
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list excluded domains: %w", err)
	}
	defer rows.Close()

	var out []*models.ExcludedDomain
	for rows.Next() {
		var e models.ExcludedDomain
		if err := rows.Scan(&e.Domain, &e.Reason, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan excluded domain: %w", err)
		}
		out = append(out, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating excluded domains: %w", err)
	}

	return out, nil
}
