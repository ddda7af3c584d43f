package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/rs/zerolog/log"
)

// ContactStore implements store.ContactStore using PostgreSQL.
type ContactStore struct {
	pool *pgxpool.Pool
}

// NewContactStore creates a new PostgreSQL-backed contact store.
func NewContactStore(pool *pgxpool.Pool) *ContactStore {
	return &ContactStore{
		pool: pool,
	}
}

// Create inserts a contact row.
func (s *ContactStore) Create(ctx context.Context, c *models.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO contacts (contact_id, email, display_name, org_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, c.ID, c.Email, c.DisplayName, c.OrgID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", mapPostgresError(err))
	}

	return nil
}

// LinkByDomain attaches every unlinked contact whose email domain matches to
// the given organization.
func (s *ContactStore) LinkByDomain(ctx context.Context, orgID, domain string) (int64, error) {
	query := `
		UPDATE contacts SET org_id = $1
		WHERE org_id IS NULL AND lower(split_part(email, '@', 2)) = $2
	`

	result, err := s.pool.Exec(ctx, query, orgID, strings.ToLower(domain))
	if err != nil {
		return 0, fmt.Errorf("failed to link contacts by domain: %w", mapPostgresError(err))
	}

	linked := result.RowsAffected()
	if linked > 0 {
		log.Debug().
			Str("org_id", orgID).
			Str("domain", domain).
			Int64("linked", linked).
			Msg("Linked contacts by domain")
	}

	return linked, nil
}

// ListByOrg returns all contacts linked to one organization.
func (s *ContactStore) ListByOrg(ctx context.Context, orgID string) ([]*models.Contact, error) {
	query := `
		SELECT contact_id, email, display_name, org_id, created_at
		FROM contacts
		WHERE org_id = $1
		ORDER BY email
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.DisplayName, &c.OrgID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		out = append(out, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return out, nil
}
