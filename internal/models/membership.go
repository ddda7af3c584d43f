package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Membership is the local cache row for a directory (user, organization, role)
// tuple, denormalized with the user's email and display name for fast querying.
// The external directory is the source of truth; the cache is rebuildable.
type Membership struct {
	ID          uuid.UUID `json:"id"`           // local row id
	DirectoryID string    `json:"directory_id"` // external directory membership id
	OrgID       string    `json:"org_id"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EmailDomain returns the lowercased domain part of the member's email address,
// or "" if the address has no domain part.
func (m *Membership) EmailDomain() string {
	_, domain, ok := strings.Cut(m.Email, "@")
	if !ok || domain == "" {
		return ""
	}
	return strings.ToLower(domain)
}
