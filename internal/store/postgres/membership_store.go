package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
	"github.com/rs/zerolog/log"
)

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// NewMembershipStore creates a new PostgreSQL-backed membership store.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{
		pool: pool,
	}
}

const membershipColumns = `membership_id, directory_id, org_id, user_id, role, email, display_name, created_at, updated_at`

// Upsert inserts a membership row, or refreshes the mutable columns when the
// (org, user) pair already exists.
func (s *MembershipStore) Upsert(ctx context.Context, m *models.Membership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	query := `
		INSERT INTO org_memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (org_id, user_id) DO UPDATE SET
			directory_id = EXCLUDED.directory_id,
			role = EXCLUDED.role,
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		m.ID,
		m.DirectoryID,
		m.OrgID,
		m.UserID,
		m.Role,
		m.Email,
		m.DisplayName,
		m.CreatedAt,
		m.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", m.OrgID).
		Str("user_id", m.UserID).
		Msg("Upserted membership")

	return nil
}

// Get retrieves the membership row for a (org, user) pair.
func (s *MembershipStore) Get(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM org_memberships WHERE org_id = $1 AND user_id = $2`

	m, err := scanMembership(s.pool.QueryRow(ctx, query, orgID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// Delete removes the membership row for a (org, user) pair.
func (s *MembershipStore) Delete(ctx context.Context, orgID, userID string) error {
	query := `DELETE FROM org_memberships WHERE org_id = $1 AND user_id = $2`

	result, err := s.pool.Exec(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	return nil
}

// ListByOrg returns all cached memberships of one organization.
func (s *MembershipStore) ListByOrg(ctx context.Context, orgID string) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM org_memberships
		WHERE org_id = $1
		ORDER BY created_at ASC, user_id ASC
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var members []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return members, nil
}

// ListWithOrg returns every membership joined with its organization's name and
// personal flag.
func (s *MembershipStore) ListWithOrg(ctx context.Context) ([]*store.MemberWithOrg, error) {
	query := `
		SELECT m.membership_id, m.directory_id, m.org_id, m.user_id, m.role,
		       m.email, m.display_name, m.created_at, m.updated_at,
		       o.name, o.is_personal
		FROM org_memberships m
		JOIN organizations o ON o.org_id = m.org_id
		ORDER BY m.org_id, m.user_id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships with org: %w", err)
	}
	defer rows.Close()

	var out []*store.MemberWithOrg
	for rows.Next() {
		var row store.MemberWithOrg
		err := rows.Scan(
			&row.Membership.ID,
			&row.Membership.DirectoryID,
			&row.Membership.OrgID,
			&row.Membership.UserID,
			&row.Membership.Role,
			&row.Membership.Email,
			&row.Membership.DisplayName,
			&row.Membership.CreatedAt,
			&row.Membership.UpdatedAt,
			&row.OrgName,
			&row.OrgIsPersonal,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership with org: %w", err)
		}
		out = append(out, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships with org: %w", err)
	}

	return out, nil
}

func scanMembership(row pgx.Row) (*models.Membership, error) {
	var m models.Membership
	err := row.Scan(
		&m.ID,
		&m.DirectoryID,
		&m.OrgID,
		&m.UserID,
		&m.Role,
		&m.Email,
		&m.DisplayName,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
