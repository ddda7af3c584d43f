package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
	"github.com/memberdesk/memberdesk/internal/telemetry"
)

// orphanUserLimit caps the affected-user sample on each orphan domain.
const orphanUserLimit = 10

// reportConcurrency bounds the fan-out when assembling the report's
// sub-sections, matching the batch size used elsewhere against upstream APIs.
const reportConcurrency = 10

// Detector computes the read-only reconciliation report over the ledger, the
// membership cache and the organization mirror. Nothing here mutates state;
// the report is recomputed on every request.
type Detector struct {
	orgs     store.OrganizationStore
	claims   store.DomainClaimStore
	members  store.MembershipStore
	excluded store.ExcludedDomainStore
}

// NewDetector creates a detector over the shared stores.
func NewDetector(orgs store.OrganizationStore, claims store.DomainClaimStore, members store.MembershipStore, excluded store.ExcludedDomainStore) *Detector {
	return &Detector{
		orgs:     orgs,
		claims:   claims,
		members:  members,
		excluded: excluded,
	}
}

// OrphanUser is one member using an orphan domain, with the organization they
// currently belong to so an operator can claim the domain for it.
type OrphanUser struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	OrgID   string `json:"org_id"`
	OrgName string `json:"org_name"`
}

// OrphanDomain is a domain in active use by member emails but claimed by
// nobody and cached by no organization.
type OrphanDomain struct {
	Domain    string       `json:"domain"`
	UserCount int          `json:"user_count"`
	Users     []OrphanUser `json:"users"`
}

// MisalignedUser is a member of a personal workspace whose email domain is
// claimed by a company organization they have not joined yet.
type MisalignedUser struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Domain        string `json:"domain"`
	CurrentOrgID  string `json:"current_org_id"`
	TargetOrgID   string `json:"target_org_id"`
	TargetOrgName string `json:"target_org_name"`
}

// ConflictingClaim is another organization's claim on a domain used by the
// unverified organization's members.
type ConflictingClaim struct {
	Domain       string `json:"domain"`
	OwnerOrgID   string `json:"owner_org_id"`
	OwnerOrgName string `json:"owner_org_name"`
}

// UnverifiedOrg is a company organization with members but no verified claim.
type UnverifiedOrg struct {
	OrgID             string             `json:"org_id"`
	Name              string             `json:"name"`
	MemberCount       int                `json:"member_count"`
	ConflictingClaims []ConflictingClaim `json:"conflicting_claims,omitempty"`
}

// OrgDomainRef is one organization's appearance in a related-domain group.
type OrgDomainRef struct {
	OrgID   string `json:"org_id"`
	OrgName string `json:"org_name"`
	Domain  string `json:"domain"`
}

// RelatedDomainGroup is a set of organizations whose domains share a root.
type RelatedDomainGroup struct {
	RootDomain string         `json:"root_domain"`
	Orgs       []OrgDomainRef `json:"orgs"`
}

// OrgGroup is a set of organizations grouped by name similarity.
type OrgGroup struct {
	Orgs []OrgRef `json:"orgs"`
}

// SharedMemberGroup is a set of organizations sharing one member email.
type SharedMemberGroup struct {
	Email string   `json:"email"`
	Orgs  []OrgRef `json:"orgs"`
}

// Report is the assembled six-part reconciliation report.
type Report struct {
	OrphanDomains       []OrphanDomain       `json:"orphan_domains"`
	MisalignedUsers     []MisalignedUser     `json:"misaligned_users"`
	UnverifiedOrgs      []UnverifiedOrg      `json:"unverified_orgs"`
	DomainSyncGaps      []DomainSyncGap      `json:"domain_sync_gaps"`
	RelatedDomainGroups []RelatedDomainGroup `json:"related_domain_groups"`
	SimilarNameGroups   []OrgGroup           `json:"similar_name_groups"`
	SharedMemberGroups  []SharedMemberGroup  `json:"shared_member_groups"`
	GeneratedAt         time.Time            `json:"generated_at"`
}

// reportInputs is the data the sub-reports share, fetched once per run.
type reportInputs struct {
	orgs       []*models.Organization
	orgByID    map[string]*models.Organization
	claims     []*models.DomainClaim
	claimByDom map[string]*models.DomainClaim
	members    []*store.MemberWithOrg
	exclusions ExclusionSet
}

// Run recomputes the full reconciliation report.
func (d *Detector) Run(ctx context.Context) (*Report, error) {
	started := time.Now()

	in, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{GeneratedAt: time.Now()}

	// The sub-reports are independent; build them as a bounded batch. Each
	// writes only its own field of the report.
	builders := []func(){
		func() { report.OrphanDomains = orphanDomains(in) },
		func() { report.MisalignedUsers = misalignedUsers(in) },
		func() { report.UnverifiedOrgs = unverifiedOrgs(in) },
		func() { report.DomainSyncGaps = domainSyncGaps(in) },
		func() { report.RelatedDomainGroups = relatedDomainGroups(in) },
		func() { report.SimilarNameGroups = similarNameGroups(in) },
		func() { report.SharedMemberGroups = sharedMemberGroups(in) },
	}

	sem := make(chan struct{}, reportConcurrency)
	var wg sync.WaitGroup
	for _, build := range builders {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			build()
		}()
	}
	wg.Wait()

	m := telemetry.GetMetrics()
	m.ReportRunsTotal.Add(ctx, 1)
	m.ReportDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	return report, nil
}

func (d *Detector) fetch(ctx context.Context) (*reportInputs, error) {
	orgs, err := d.orgs.List(ctx)
	if err != nil {
		return nil, err
	}

	claims, err := d.claims.List(ctx)
	if err != nil {
		return nil, err
	}

	members, err := d.members.ListWithOrg(ctx)
	if err != nil {
		return nil, err
	}

	exclusions, err := loadExclusions(ctx, d.excluded)
	if err != nil {
		return nil, err
	}

	in := &reportInputs{
		orgs:       orgs,
		orgByID:    make(map[string]*models.Organization, len(orgs)),
		claims:     claims,
		claimByDom: make(map[string]*models.DomainClaim, len(claims)),
		members:    members,
		exclusions: exclusions,
	}
	for _, org := range orgs {
		in.orgByID[org.ID] = org
	}
	for _, claim := range claims {
		in.claimByDom[claim.Domain] = claim
	}

	return in, nil
}

// orphanDomains groups member email addresses by domain and keeps those with
// no claim and no cached primary-domain match.
func orphanDomains(in *reportInputs) []OrphanDomain {
	cachedPrimaries := make(map[string]struct{})
	for _, org := range in.orgs {
		if org.PrimaryDomain != nil {
			cachedPrimaries[*org.PrimaryDomain] = struct{}{}
		}
	}

	byDomain := make(map[string][]OrphanUser)
	for _, m := range in.members {
		domain := m.Membership.EmailDomain()
		if domain == "" || in.exclusions.Excluded(domain) {
			continue
		}
		if _, claimed := in.claimByDom[domain]; claimed {
			continue
		}
		if _, cached := cachedPrimaries[domain]; cached {
			continue
		}
		byDomain[domain] = append(byDomain[domain], OrphanUser{
			UserID:  m.Membership.UserID,
			Email:   m.Membership.Email,
			OrgID:   m.Membership.OrgID,
			OrgName: m.OrgName,
		})
	}

	out := make([]OrphanDomain, 0, len(byDomain))
	for domain, users := range byDomain {
		sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
		sample := users
		if len(sample) > orphanUserLimit {
			sample = sample[:orphanUserLimit]
		}
		out = append(out, OrphanDomain{
			Domain:    domain,
			UserCount: len(users),
			Users:     sample,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserCount != out[j].UserCount {
			return out[i].UserCount > out[j].UserCount
		}
		return out[i].Domain < out[j].Domain
	})

	return out
}

// misalignedUsers finds members of personal workspaces whose email domain is
// claimed by a company organization they are not a member of.
func misalignedUsers(in *reportInputs) []MisalignedUser {
	memberOf := make(map[string]map[string]struct{}) // userID -> orgIDs
	for _, m := range in.members {
		if memberOf[m.Membership.UserID] == nil {
			memberOf[m.Membership.UserID] = make(map[string]struct{})
		}
		memberOf[m.Membership.UserID][m.Membership.OrgID] = struct{}{}
	}

	var out []MisalignedUser
	for _, m := range in.members {
		if !m.OrgIsPersonal {
			continue
		}
		domain := m.Membership.EmailDomain()
		if domain == "" || in.exclusions.Excluded(domain) {
			continue
		}
		claim, ok := in.claimByDom[domain]
		if !ok || claim.OrgID == m.Membership.OrgID {
			continue
		}
		target, ok := in.orgByID[claim.OrgID]
		if !ok || target.IsPersonal {
			continue
		}
		if _, already := memberOf[m.Membership.UserID][target.ID]; already {
			continue
		}
		out = append(out, MisalignedUser{
			UserID:        m.Membership.UserID,
			Email:         m.Membership.Email,
			Domain:        domain,
			CurrentOrgID:  m.Membership.OrgID,
			TargetOrgID:   target.ID,
			TargetOrgName: target.Name,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// unverifiedOrgs finds company organizations with members but no verified
// claim, cross-referenced against other organizations' claims on the same
// member email domains.
func unverifiedOrgs(in *reportInputs) []UnverifiedOrg {
	verified := make(map[string]bool)
	memberCount := make(map[string]int)
	memberDomains := make(map[string]map[string]struct{})

	for _, claim := range in.claims {
		if claim.Verified {
			verified[claim.OrgID] = true
		}
	}
	for _, m := range in.members {
		orgID := m.Membership.OrgID
		memberCount[orgID]++
		domain := m.Membership.EmailDomain()
		if domain == "" || in.exclusions.Excluded(domain) {
			continue
		}
		if memberDomains[orgID] == nil {
			memberDomains[orgID] = make(map[string]struct{})
		}
		memberDomains[orgID][domain] = struct{}{}
	}

	var out []UnverifiedOrg
	for _, org := range in.orgs {
		if org.IsPersonal || memberCount[org.ID] == 0 || verified[org.ID] {
			continue
		}

		entry := UnverifiedOrg{
			OrgID:       org.ID,
			Name:        org.Name,
			MemberCount: memberCount[org.ID],
		}

		for domain := range memberDomains[org.ID] {
			claim, ok := in.claimByDom[domain]
			if !ok || claim.OrgID == org.ID {
				continue
			}
			ownerName := ""
			if owner, ok := in.orgByID[claim.OrgID]; ok {
				ownerName = owner.Name
			}
			entry.ConflictingClaims = append(entry.ConflictingClaims, ConflictingClaim{
				Domain:       domain,
				OwnerOrgID:   claim.OrgID,
				OwnerOrgName: ownerName,
			})
		}
		sort.Slice(entry.ConflictingClaims, func(i, j int) bool {
			return entry.ConflictingClaims[i].Domain < entry.ConflictingClaims[j].Domain
		})

		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out
}

// domainSyncGaps finds organizations whose cached primary domain has no
// mirroring claim row. A cache-consistency check, not an identity anomaly;
// SyncDomains repairs it.
func domainSyncGaps(in *reportInputs) []DomainSyncGap {
	var out []DomainSyncGap
	for _, org := range in.orgs {
		if org.PrimaryDomain == nil {
			continue
		}
		claim, ok := in.claimByDom[*org.PrimaryDomain]
		if ok && claim.OrgID == org.ID {
			continue
		}
		out = append(out, DomainSyncGap{OrgID: org.ID, Domain: *org.PrimaryDomain})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out
}

// relatedDomainGroups groups organizations whose claimed or cached domains
// share a root domain.
func relatedDomainGroups(in *reportInputs) []RelatedDomainGroup {
	type orgDomain struct {
		orgID  string
		domain string
	}

	seen := make(map[orgDomain]struct{})
	var pairs []orgDomain

	add := func(orgID, domain string) {
		if in.exclusions.Excluded(domain) {
			return
		}
		key := orgDomain{orgID: orgID, domain: domain}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		pairs = append(pairs, key)
	}

	for _, claim := range in.claims {
		add(claim.OrgID, claim.Domain)
	}
	for _, org := range in.orgs {
		if org.PrimaryDomain != nil {
			add(org.ID, *org.PrimaryDomain)
		}
	}

	byRoot := make(map[string][]OrgDomainRef)
	for _, p := range pairs {
		name := ""
		if org, ok := in.orgByID[p.orgID]; ok {
			name = org.Name
		}
		root := RootDomain(p.domain)
		byRoot[root] = append(byRoot[root], OrgDomainRef{
			OrgID:   p.orgID,
			OrgName: name,
			Domain:  p.domain,
		})
	}

	var out []RelatedDomainGroup
	for root, refs := range byRoot {
		distinct := make(map[string]struct{})
		for _, ref := range refs {
			distinct[ref.OrgID] = struct{}{}
		}
		if len(distinct) < 2 {
			continue
		}
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].OrgID != refs[j].OrgID {
				return refs[i].OrgID < refs[j].OrgID
			}
			return refs[i].Domain < refs[j].Domain
		})
		out = append(out, RelatedDomainGroup{RootDomain: root, Orgs: refs})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RootDomain < out[j].RootDomain })
	return out
}

// similarNameGroups groups company organizations by fuzzy name matching.
// Grouping follows direct pairwise edges only; a chain of three organizations
// where only adjacent pairs match may land in separate groups.
func similarNameGroups(in *reportInputs) []OrgGroup {
	var candidates []*models.Organization
	for _, org := range in.orgs {
		if org.IsPersonal {
			continue
		}
		candidates = append(candidates, org)
	}

	assigned := make(map[string]struct{})
	var out []OrgGroup

	for i, org := range candidates {
		if _, done := assigned[org.ID]; done {
			continue
		}

		group := []OrgRef{{ID: org.ID, Name: org.Name}}
		for _, other := range candidates[i+1:] {
			if _, done := assigned[other.ID]; done {
				continue
			}
			if NamesMatch(org.Name, other.Name) {
				group = append(group, OrgRef{ID: other.ID, Name: other.Name})
				assigned[other.ID] = struct{}{}
			}
		}

		if len(group) > 1 {
			assigned[org.ID] = struct{}{}
			out = append(out, OrgGroup{Orgs: group})
		}
	}

	return out
}

// sharedMemberGroups finds company organizations sharing member emails.
func sharedMemberGroups(in *reportInputs) []SharedMemberGroup {
	byEmail := make(map[string]map[string]struct{})
	for _, m := range in.members {
		if m.OrgIsPersonal {
			continue
		}
		email := m.Membership.Email
		if email == "" {
			continue
		}
		if byEmail[email] == nil {
			byEmail[email] = make(map[string]struct{})
		}
		byEmail[email][m.Membership.OrgID] = struct{}{}
	}

	var out []SharedMemberGroup
	for email, orgIDs := range byEmail {
		if len(orgIDs) < 2 {
			continue
		}
		var refs []OrgRef
		for orgID := range orgIDs {
			name := ""
			if org, ok := in.orgByID[orgID]; ok {
				name = org.Name
			}
			refs = append(refs, OrgRef{ID: orgID, Name: name})
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
		out = append(out, SharedMemberGroup{Email: email, Orgs: refs})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}
