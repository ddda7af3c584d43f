package directory

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory Client for development and testing. Failure
// injection fields let tests exercise the upstream-first write ordering and
// the migration loop's per-member fault isolation.
type FakeClient struct {
	mu          sync.Mutex
	orgs        map[string]*Organization
	memberships map[string]*Membership
	nextID      int

	// AddDomainErr fails every AddDomain call when set.
	AddDomainErr error

	// RemoveDomainErr fails every RemoveDomain call when set.
	RemoveDomainErr error

	// CreateMembershipErr fails CreateMembership for specific user ids.
	CreateMembershipErr map[string]error

	// DeleteMembershipErr fails DeleteMembership for specific membership ids.
	DeleteMembershipErr map[string]error

	// UnverifiedDomains makes AddDomain return verified=false for these domains.
	UnverifiedDomains map[string]bool
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient creates an empty in-memory directory.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		orgs:                make(map[string]*Organization),
		memberships:         make(map[string]*Membership),
		CreateMembershipErr: make(map[string]error),
		DeleteMembershipErr: make(map[string]error),
		UnverifiedDomains:   make(map[string]bool),
	}
}

// PutOrganization seeds an organization into the fake directory.
func (f *FakeClient) PutOrganization(org *Organization) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *org
	copy.Domains = append([]OrgDomain(nil), org.Domains...)
	f.orgs[org.ID] = &copy
}

// PutMembership seeds a membership and returns its generated id.
func (f *FakeClient) PutMembership(m *Membership) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		f.nextID++
		m.ID = fmt.Sprintf("om_%06d", f.nextID)
	}
	copy := *m
	f.memberships[m.ID] = &copy
	return m.ID
}

func (f *FakeClient) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	org, ok := f.orgs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *org
	copy.Domains = append([]OrgDomain(nil), org.Domains...)
	return &copy, nil
}

func (f *FakeClient) AddDomain(ctx context.Context, orgID, domain string) (*OrgDomain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AddDomainErr != nil {
		return nil, f.AddDomainErr
	}

	org, ok := f.orgs[orgID]
	if !ok {
		return nil, ErrNotFound
	}

	d := OrgDomain{Domain: domain, Verified: !f.UnverifiedDomains[domain]}
	for i, existing := range org.Domains {
		if existing.Domain == domain {
			org.Domains[i] = d
			return &d, nil
		}
	}
	org.Domains = append(org.Domains, d)
	return &d, nil
}

func (f *FakeClient) RemoveDomain(ctx context.Context, orgID, domain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RemoveDomainErr != nil {
		return f.RemoveDomainErr
	}

	org, ok := f.orgs[orgID]
	if !ok {
		return ErrNotFound
	}

	for i, existing := range org.Domains {
		if existing.Domain == domain {
			org.Domains = append(org.Domains[:i], org.Domains[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *FakeClient) CreateMembership(ctx context.Context, orgID, userID, role string) (*Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.CreateMembershipErr[userID]; err != nil {
		return nil, err
	}

	if _, ok := f.orgs[orgID]; !ok {
		return nil, ErrNotFound
	}

	f.nextID++
	m := &Membership{
		ID:     fmt.Sprintf("om_%06d", f.nextID),
		OrgID:  orgID,
		UserID: userID,
		Role:   role,
	}
	f.memberships[m.ID] = m
	copy := *m
	return &copy, nil
}

func (f *FakeClient) DeleteMembership(ctx context.Context, membershipID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.DeleteMembershipErr[membershipID]; err != nil {
		return err
	}

	if _, ok := f.memberships[membershipID]; !ok {
		return ErrNotFound
	}
	delete(f.memberships, membershipID)
	return nil
}

func (f *FakeClient) ListMemberships(ctx context.Context, orgID string) ([]*Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Membership
	for _, m := range f.memberships {
		if m.OrgID == orgID {
			copy := *m
			out = append(out, &copy)
		}
	}
	return out, nil
}

// HasMembership reports whether a user currently belongs to an organization,
// for test assertions on migration outcomes.
func (f *FakeClient) HasMembership(orgID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range f.memberships {
		if m.OrgID == orgID && m.UserID == userID {
			return true
		}
	}
	return false
}
