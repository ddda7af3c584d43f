package reconcile

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/memberdesk/memberdesk/internal/directory"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
	"github.com/memberdesk/memberdesk/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Auditor compares one organization's cached memberships against the
// directory and optionally repairs the cache to match.
type Auditor struct {
	orgs      store.OrganizationStore
	members   store.MembershipStore
	directory directory.Client
}

// NewAuditor creates an auditor over the shared stores and directory client.
func NewAuditor(orgs store.OrganizationStore, members store.MembershipStore, dir directory.Client) *Auditor {
	return &Auditor{
		orgs:      orgs,
		members:   members,
		directory: dir,
	}
}

// MembershipDrift is one divergence between the cache and the directory.
type MembershipDrift struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

// AuditReport is the outcome of one membership audit.
type AuditReport struct {
	OrgID string `json:"org_id"`

	// MissingLocally are directory memberships with no cache row.
	MissingLocally []MembershipDrift `json:"missing_locally"`

	// StaleLocally are cache rows the directory no longer has.
	StaleLocally []MembershipDrift `json:"stale_locally"`

	// Repaired reports whether the divergences were written back to the cache.
	Repaired bool `json:"repaired"`
}

// InSync reports whether the cache matched the directory exactly.
func (r *AuditReport) InSync() bool {
	return len(r.MissingLocally) == 0 && len(r.StaleLocally) == 0
}

// AuditMemberships drains the directory's membership list for the
// organization and diffs it against the cache. With repair set, missing rows
// are inserted and stale rows deleted; membership keys are (org, user), so
// role or email drift on an existing pair is refreshed through the same
// upsert path.
func (a *Auditor) AuditMemberships(ctx context.Context, orgID string, repair bool) (*AuditReport, error) {
	if _, err := a.orgs.Get(ctx, orgID); err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, newError(KindNotFound, "organization not found")
		}
		return nil, err
	}

	upstream, err := a.directory.ListMemberships(ctx, orgID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, newError(KindNotFound, "organization not found in directory")
		}
		return nil, wrapError(KindUpstreamUnavailable, err, "listing directory memberships")
	}

	cached, err := a.members.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	upstreamByUser := make(map[string]*directory.Membership, len(upstream))
	for _, m := range upstream {
		upstreamByUser[m.UserID] = m
	}
	cachedByUser := make(map[string]*models.Membership, len(cached))
	for _, m := range cached {
		cachedByUser[m.UserID] = m
	}

	report := &AuditReport{OrgID: orgID}

	for userID, m := range upstreamByUser {
		if _, ok := cachedByUser[userID]; ok {
			continue
		}
		report.MissingLocally = append(report.MissingLocally, MembershipDrift{
			UserID: userID,
			Email:  m.Email,
			Role:   m.Role,
		})
	}
	for userID, m := range cachedByUser {
		if _, ok := upstreamByUser[userID]; ok {
			continue
		}
		report.StaleLocally = append(report.StaleLocally, MembershipDrift{
			UserID: userID,
			Email:  m.Email,
			Role:   m.Role,
		})
	}

	sort.Slice(report.MissingLocally, func(i, j int) bool {
		return report.MissingLocally[i].UserID < report.MissingLocally[j].UserID
	})
	sort.Slice(report.StaleLocally, func(i, j int) bool {
		return report.StaleLocally[i].UserID < report.StaleLocally[j].UserID
	})

	if repair && !report.InSync() {
		if err := a.repair(ctx, orgID, report, upstreamByUser); err != nil {
			return nil, err
		}
		report.Repaired = true
	}

	return report, nil
}

func (a *Auditor) repair(ctx context.Context, orgID string, report *AuditReport, upstream map[string]*directory.Membership) error {
	now := time.Now()
	for _, drift := range report.MissingLocally {
		m := upstream[drift.UserID]
		cached := &models.Membership{
			ID:          uuid.New(),
			DirectoryID: m.ID,
			OrgID:       orgID,
			UserID:      m.UserID,
			Role:        m.Role,
			Email:       m.Email,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := a.members.Upsert(ctx, cached); err != nil {
			return err
		}
	}

	for _, drift := range report.StaleLocally {
		if err := a.members.Delete(ctx, orgID, drift.UserID); err != nil && !errors.Is(err, store.ErrMembershipNotFound) {
			return err
		}
	}

	repaired := int64(len(report.MissingLocally) + len(report.StaleLocally))
	telemetry.GetMetrics().MembershipAuditRepairsTotal.Add(ctx, repaired)

	log.Info().
		Str("org_id", orgID).
		Int("inserted", len(report.MissingLocally)).
		Int("deleted", len(report.StaleLocally)).
		Msg("membership cache repaired")

	return nil
}
