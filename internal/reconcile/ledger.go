package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/memberdesk/memberdesk/internal/directory"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
	"github.com/memberdesk/memberdesk/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Ledger owns the local domain -> organization mapping and keeps it
// synchronized with the external directory. Writes always go to the directory
// first; the local row is only touched after the upstream write succeeds, so
// the ledger can be rebuilt from the directory at any time.
type Ledger struct {
	orgs      store.OrganizationStore
	claims    store.DomainClaimStore
	contacts  store.ContactStore
	directory directory.Client
}

// NewLedger creates a ledger over the shared stores and directory client.
func NewLedger(orgs store.OrganizationStore, claims store.DomainClaimStore, contacts store.ContactStore, dir directory.Client) *Ledger {
	return &Ledger{
		orgs:      orgs,
		claims:    claims,
		contacts:  contacts,
		directory: dir,
	}
}

// ClaimResult reports the outcome of a ClaimDomain call.
type ClaimResult struct {
	Claim *models.DomainClaim `json:"claim"`

	// AlreadyClaimed is true on the no-op path: the organization already held
	// a verified claim on the domain.
	AlreadyClaimed bool `json:"already_claimed"`

	// ContactsLinked counts previously-unlinked contacts attached to the
	// organization as a side effect.
	ContactsLinked int64 `json:"contacts_linked"`
}

// ClaimDomain claims a domain for an organization, writing to the external
// directory first and the local ledger second. Personal organizations cannot
// own claims. A domain held by a different organization fails with
// KindDomainConflict carrying the current owner.
func (l *Ledger) ClaimDomain(ctx context.Context, orgID, rawDomain string, asPrimary bool) (*ClaimResult, error) {
	domain, err := NormalizeDomain(rawDomain)
	if err != nil {
		return nil, err
	}

	org, err := l.orgs.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, newError(KindNotFound, "organization %s not found", orgID)
		}
		return nil, err
	}

	if org.IsPersonal {
		return nil, newError(KindOperationNotApplicable, "personal organization %s cannot claim a domain", orgID)
	}

	existing, err := l.claims.GetByDomain(ctx, domain)
	if err != nil && !errors.Is(err, store.ErrClaimNotFound) {
		return nil, err
	}

	if existing != nil && existing.OrgID != orgID {
		telemetry.GetMetrics().ClaimConflictsTotal.Add(ctx, 1)
		owner := &OrgRef{ID: existing.OrgID}
		if ownerOrg, err := l.orgs.Get(ctx, existing.OrgID); err == nil {
			owner.Name = ownerOrg.Name
		}
		e := newError(KindDomainConflict, "domain %s is already claimed by %s", domain, existing.OrgID)
		e.ConflictingOrg = owner
		return nil, e
	}

	if existing != nil && existing.Verified {
		return &ClaimResult{Claim: existing, AlreadyClaimed: true}, nil
	}

	// The directory is the system of record: write there first. No local
	// mutation happens unless this succeeds.
	upstream, err := l.directory.AddDomain(ctx, orgID, domain)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, wrapError(KindNotFound, err, "organization %s not found upstream", orgID)
		}
		return nil, wrapError(KindUpstreamUnavailable, err, "directory domain write failed")
	}

	var claim *models.DomainClaim
	if existing != nil {
		if err := l.claims.SetVerified(ctx, orgID, domain, upstream.Verified); err != nil {
			return nil, err
		}
		existing.Verified = upstream.Verified
		claim = existing
	} else {
		claim = &models.DomainClaim{
			ID:        uuid.New(),
			OrgID:     orgID,
			Domain:    domain,
			Verified:  upstream.Verified,
			Source:    models.ClaimSourceManual,
			CreatedAt: time.Now(),
		}
		if err := l.claims.Create(ctx, claim); err != nil {
			if errors.Is(err, store.ErrDomainAlreadyClaimed) {
				// Lost a race with a concurrent claim; the unique constraint
				// is the local arbiter.
				return nil, newError(KindDomainConflict, "domain %s is already claimed", domain)
			}
			return nil, err
		}
	}

	if asPrimary {
		if err := l.claims.SetPrimary(ctx, orgID, &domain); err != nil {
			return nil, err
		}
		claim.IsPrimary = true
		claim.Verified = true
	}

	telemetry.GetMetrics().ClaimsTotal.Add(ctx, 1)

	result := &ClaimResult{Claim: claim}

	// Best effort: re-link contacts whose address domain now belongs to this
	// organization. Failure never rolls back the claim.
	linked, err := l.contacts.LinkByDomain(ctx, orgID, domain)
	if err != nil {
		log.Warn().Err(err).
			Str("org_id", orgID).
			Str("domain", domain).
			Msg("contact re-link after domain claim failed")
	} else {
		result.ContactsLinked = linked
		telemetry.GetMetrics().ContactsLinkedTotal.Add(ctx, linked)
	}

	return result, nil
}

// ReleaseResult reports the outcome of a ReleaseDomain call.
type ReleaseResult struct {
	Domain string `json:"domain"`

	// NewPrimary is the deterministically elected replacement when the
	// released claim was the primary, or nil if no claims remain.
	NewPrimary *string `json:"new_primary,omitempty"`
}

// ReleaseDomain releases an organization's claim on a domain, removing it from
// the external directory first. If the released claim was primary, a
// replacement is elected: verified claims beat unverified ones, earliest
// created wins within each group.
func (l *Ledger) ReleaseDomain(ctx context.Context, orgID, rawDomain string) (*ReleaseResult, error) {
	domain, err := NormalizeDomain(rawDomain)
	if err != nil {
		return nil, err
	}

	claim, err := l.claims.GetByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, store.ErrClaimNotFound) {
			return nil, newError(KindNotFound, "no claim on domain %s", domain)
		}
		return nil, err
	}
	if claim.OrgID != orgID {
		return nil, newError(KindNotFound, "organization %s does not hold domain %s", orgID, domain)
	}

	if err := l.directory.RemoveDomain(ctx, orgID, domain); err != nil {
		// A domain already absent upstream is fine; the local delete below is
		// exactly the repair for that.
		if !errors.Is(err, directory.ErrNotFound) {
			return nil, wrapError(KindUpstreamUnavailable, err, "directory domain removal failed")
		}
	}

	if err := l.claims.Delete(ctx, orgID, domain); err != nil {
		return nil, err
	}

	telemetry.GetMetrics().ReleasesTotal.Add(ctx, 1)

	result := &ReleaseResult{Domain: domain}

	if claim.IsPrimary {
		remaining, err := l.claims.ListByOrg(ctx, orgID)
		if err != nil {
			return nil, err
		}

		if len(remaining) > 0 {
			// ListByOrg returns election order: verified first, then oldest.
			elected := remaining[0].Domain
			if err := l.claims.SetPrimary(ctx, orgID, &elected); err != nil {
				return nil, err
			}
			result.NewPrimary = &elected
			telemetry.GetMetrics().PrimaryElectionsTotal.Add(ctx, 1)
		} else {
			if err := l.claims.SetPrimary(ctx, orgID, nil); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

// SetPrimary marks an existing claim as the organization's primary domain.
func (l *Ledger) SetPrimary(ctx context.Context, orgID, rawDomain string) error {
	domain, err := NormalizeDomain(rawDomain)
	if err != nil {
		return err
	}

	claim, err := l.claims.GetByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, store.ErrClaimNotFound) {
			return newError(KindNotFound, "no claim on domain %s", domain)
		}
		return err
	}
	if claim.OrgID != orgID {
		return newError(KindNotFound, "organization %s does not hold domain %s", orgID, domain)
	}

	return l.claims.SetPrimary(ctx, orgID, &domain)
}

// SyncReport lists the repairs made by SyncDomains.
type SyncReport struct {
	// Inserted are the claim rows created for cached primary domains that had
	// no mirror in the ledger.
	Inserted []DomainSyncGap `json:"inserted"`

	// Conflicts are cached primary domains that could not be repaired because
	// another organization holds the claim.
	Conflicts []DomainSyncConflict `json:"conflicts"`
}

// DomainSyncGap is an organization whose cached primary domain has no claim row.
type DomainSyncGap struct {
	OrgID  string `json:"org_id"`
	Domain string `json:"domain"`
}

// DomainSyncConflict is a sync gap that another organization's claim blocks.
type DomainSyncConflict struct {
	OrgID      string `json:"org_id"`
	Domain     string `json:"domain"`
	OwnerOrgID string `json:"owner_org_id"`
}

// SyncDomains inserts missing claim rows for cached primary domains, scoped to
// one organization or system-wide when orgID is nil. Idempotent: already
// mirrored domains are untouched. This is the read-repair path for the window
// where the directory has a domain the local cache has not learned about.
func (l *Ledger) SyncDomains(ctx context.Context, orgID *string) (*SyncReport, error) {
	var orgs []*models.Organization

	if orgID != nil {
		org, err := l.orgs.Get(ctx, *orgID)
		if err != nil {
			if errors.Is(err, store.ErrOrganizationNotFound) {
				return nil, newError(KindNotFound, "organization %s not found", *orgID)
			}
			return nil, err
		}
		orgs = []*models.Organization{org}
	} else {
		var err error
		orgs, err = l.orgs.List(ctx)
		if err != nil {
			return nil, err
		}
	}

	report := &SyncReport{}

	for _, org := range orgs {
		if org.PrimaryDomain == nil || org.IsPersonal {
			continue
		}
		domain := *org.PrimaryDomain

		existing, err := l.claims.GetByDomain(ctx, domain)
		if err != nil && !errors.Is(err, store.ErrClaimNotFound) {
			return nil, err
		}

		if existing != nil {
			if existing.OrgID != org.ID {
				report.Conflicts = append(report.Conflicts, DomainSyncConflict{
					OrgID:      org.ID,
					Domain:     domain,
					OwnerOrgID: existing.OrgID,
				})
			}
			continue
		}

		// Only take the primary flag if no other claim already holds it;
		// the cached field and the flag rejoin on the next SetPrimary.
		hasPrimary := false
		held, err := l.claims.ListByOrg(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range held {
			if c.IsPrimary {
				hasPrimary = true
				break
			}
		}

		claim := &models.DomainClaim{
			ID:        uuid.New(),
			OrgID:     org.ID,
			Domain:    domain,
			IsPrimary: !hasPrimary,
			Verified:  true,
			Source:    models.ClaimSourceWorkOS,
			CreatedAt: time.Now(),
		}
		if err := l.claims.Create(ctx, claim); err != nil {
			return nil, err
		}

		telemetry.GetMetrics().SyncRepairsTotal.Add(ctx, 1)

		log.Info().
			Str("org_id", org.ID).
			Str("domain", domain).
			Msg("repaired missing domain claim")

		report.Inserted = append(report.Inserted, DomainSyncGap{OrgID: org.ID, Domain: domain})
	}

	return report, nil
}
