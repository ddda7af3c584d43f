package models

import (
	"time"
)

// StakeholderRole is the relationship an admin-team user has to an organization.
const (
	StakeholderRoleOwner      = "owner"
	StakeholderRoleInterested = "interested"
	StakeholderRoleConnected  = "connected"
)

// Stakeholder is an internal-only annotation linking an admin-team user to an
// organization. Not mirrored to the external directory. At most one row per
// (organization, user) pair.
type Stakeholder struct {
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
