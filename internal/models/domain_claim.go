package models

import (
	"time"

	"github.com/google/uuid"
)

// ClaimSource records where a domain claim came from.
const (
	ClaimSourceWorkOS = "workos" // synced from the external directory
	ClaimSourceImport = "import" // seeded by a discovery/import job
	ClaimSourceManual = "manual" // added by an admin
)

// DomainClaim asserts that an organization owns an email domain.
// A domain maps to at most one organization (unique constraint on domain),
// and an organization has at most one primary claim. IsPrimary implies Verified.
type DomainClaim struct {
	ID        uuid.UUID `json:"id"`
	OrgID     string    `json:"org_id"`
	Domain    string    `json:"domain"`
	IsPrimary bool      `json:"is_primary"`
	Verified  bool      `json:"verified"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
