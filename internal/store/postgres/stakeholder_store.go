package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
)

// StakeholderStore implements store.StakeholderStore using PostgreSQL.
type StakeholderStore struct {
	pool *pgxpool.Pool
}

// NewStakeholderStore creates a new PostgreSQL-backed stakeholder store.
func NewStakeholderStore(pool *pgxpool.Pool) *StakeholderStore {
	return &StakeholderStore{
		pool: pool,
	}
}

// Upsert inserts or replaces the stakeholder row for (org, user).
func (s *StakeholderStore) Upsert(ctx context.Context, sh *models.Stakeholder) error {
	query := `
		INSERT INTO stakeholders (org_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (org_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`

	_, err := s.pool.Exec(ctx, query, sh.OrgID, sh.UserID, sh.Role)
	if err != nil {
		return fmt.Errorf("failed to upsert stakeholder: %w", mapPostgresError(err))
	}

	return nil
}

// Delete removes a stakeholder row. Removing the organization's only owner
// fails with ErrLastOwner.
func (s *StakeholderStore) Delete(ctx context.Context, orgID, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	var role string
	err = tx.QueryRow(ctx, `
		SELECT role FROM stakeholders WHERE org_id = $1 AND user_id = $2 FOR UPDATE
	`, orgID, userID).Scan(&role)
	if err != nil {
		return store.ErrStakeholderNotFound
	}

	if role == models.StakeholderRoleOwner {
		var owners int
		err = tx.QueryRow(ctx, `
			SELECT count(*) FROM stakeholders WHERE org_id = $1 AND role = 'owner'
		`, orgID).Scan(&owners)
		if err != nil {
			return fmt.Errorf("failed to count owners: %w", err)
		}
		if owners <= 1 {
			return store.ErrLastOwner
		}
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM stakeholders WHERE org_id = $1 AND user_id = $2
	`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete stakeholder: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stakeholder delete: %w", err)
	}

	return nil
}

// ListByOrg returns all stakeholders of one organization.
func (s *StakeholderStore) ListByOrg(ctx context.Context, orgID string) ([]*models.Stakeholder, error) {
	query := `
		SELECT org_id, user_id, role, created_at
		FROM stakeholders
		WHERE org_id = $1
		ORDER BY user_id
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stakeholders: %w", err)
	}
	defer rows.Close()

	var out []*models.Stakeholder
	for rows.Next() {
		var sh models.Stakeholder
		if err := rows.Scan(&sh.OrgID, &sh.UserID, &sh.Role, &sh.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stakeholder: %w", err)
		}
		out = append(out, &sh)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stakeholders: %w", err)
	}

	return out, nil
}
