package reconcile

import (
	"github.com/memberdesk/memberdesk/internal/models"
)

// Tier is the derived membership tier of an organization.
type Tier string

const (
	TierMember     Tier = "member"
	TierEngaged    Tier = "engaged"
	TierRegistered Tier = "registered"
	TierProspect   Tier = "prospect"
)

// EngagementContext carries the optional engagement flags a caller may supply
// to DeriveTier. When HasUsers is nil the classifier runs in its
// backward-compatible mode: any non-member is a prospect.
type EngagementContext struct {
	HasUsers        *bool
	HasEngagedUsers *bool
}

// DeriveTier maps an organization's subscription and engagement state to a
// tier, evaluated in strict priority order with first match winning:
// member, then engaged, then registered, then prospect. Total for every input.
func DeriveTier(org *models.Organization, ec EngagementContext) Tier {
	if org.IsMember() {
		return TierMember
	}

	if ec.HasUsers == nil {
		// Backward-compatible mode: engagement context not supplied.
		return TierProspect
	}

	if !*ec.HasUsers {
		return TierProspect
	}

	if ec.HasEngagedUsers != nil && *ec.HasEngagedUsers {
		return TierEngaged
	}

	return TierRegistered
}

// ScoreToFires maps a 0-100 engagement score to the bounded 0-4 fire display
// count. Total: out-of-range scores clamp to the nearest bucket.
func ScoreToFires(score int) int {
	switch {
	case score < 16:
		return 0
	case score <= 35:
		return 1
	case score <= 55:
		return 2
	case score <= 75:
		return 3
	default:
		return 4
	}
}
