package models

import (
	"time"
)

// InterestLevel is the manually-set interest level for a prospect organization.
type InterestLevel string

const (
	InterestLevelLow      InterestLevel = "low"
	InterestLevelMedium   InterestLevel = "medium"
	InterestLevelHigh     InterestLevel = "high"
	InterestLevelVeryHigh InterestLevel = "very_high"
)

// Organization mirrors an organization from the external directory service,
// plus locally-maintained subscription and engagement attributes.
// The ID is the opaque directory organization id and is never generated locally.
type Organization struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPersonal bool   `json:"is_personal"` // individual workspace rather than a company org

	// PrimaryDomain caches the domain of the is_primary claim. It is kept in
	// lockstep with domain_claims by the ledger; SyncDomains repairs drift.
	PrimaryDomain *string `json:"primary_domain,omitempty"`

	SubscriptionStatus     *string    `json:"subscription_status,omitempty"`
	SubscriptionCanceledAt *time.Time `json:"subscription_canceled_at,omitempty"`
	SubscriptionAmount     *int64     `json:"subscription_amount,omitempty"` // cents
	SubscriptionPeriodEnd  *time.Time `json:"subscription_period_end,omitempty"`

	EngagementScore *int           `json:"engagement_score,omitempty"` // 0-100, externally computed
	InterestLevel   *InterestLevel `json:"interest_level,omitempty"`

	IsProspect   bool `json:"is_prospect"`
	Disqualified bool `json:"disqualified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsMember reports whether the organization has an active, non-canceled
// subscription. Comped/free members carry an active subscription too.
func (o *Organization) IsMember() bool {
	return o.SubscriptionStatus != nil &&
		*o.SubscriptionStatus == "active" &&
		o.SubscriptionCanceledAt == nil
}
