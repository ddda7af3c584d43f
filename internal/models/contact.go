package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Contact is a known email address that may or may not be linked to an
// organization yet. Unlinked contacts are attached to an organization when it
// claims their email domain.
type Contact struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name,omitempty"`
	OrgID       *string   `json:"org_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmailDomain returns the lowercased domain part of the contact's address.
func (c *Contact) EmailDomain() string {
	_, domain, ok := strings.Cut(c.Email, "@")
	if !ok || domain == "" {
		return ""
	}
	return strings.ToLower(domain)
}

// ExcludedDomain is an admin-managed entry extending the hard-coded
// free-email-provider exclusion set used by the reconciliation report.
type ExcludedDomain struct {
	Domain    string    `json:"domain"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
