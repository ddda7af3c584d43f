package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memberdesk/memberdesk/internal/models"
)

// MemoryOrganizationStore is an in-memory implementation of OrganizationStore
// for development and testing.
type MemoryOrganizationStore struct {
	mu   sync.RWMutex
	orgs map[string]*models.Organization
}

// NewMemoryOrganizationStore creates a new in-memory organization store.
func NewMemoryOrganizationStore() *MemoryOrganizationStore {
	return &MemoryOrganizationStore{
		orgs: make(map[string]*models.Organization),
	}
}

func (s *MemoryOrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.ID]; exists {
		return ErrOrganizationAlreadyExists
	}

	s.orgs[org.ID] = copyOrganization(org)
	return nil
}

func (s *MemoryOrganizationStore) Get(ctx context.Context, orgID string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return nil, ErrOrganizationNotFound
	}

	return copyOrganization(org), nil
}

func (s *MemoryOrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.ID]; !exists {
		return ErrOrganizationNotFound
	}

	updated := copyOrganization(org)
	updated.UpdatedAt = time.Now()
	s.orgs[org.ID] = updated
	return nil
}

func (s *MemoryOrganizationStore) List(ctx context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgs := make([]*models.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		orgs = append(orgs, copyOrganization(org))
	}

	// Deterministic order for report assembly and tests
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].ID < orgs[j].ID })

	return orgs, nil
}

func (s *MemoryOrganizationStore) SetPrimaryDomain(ctx context.Context, orgID string, domain *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return ErrOrganizationNotFound
	}

	if domain != nil {
		d := *domain
		org.PrimaryDomain = &d
	} else {
		org.PrimaryDomain = nil
	}
	org.UpdatedAt = time.Now()
	return nil
}

func copyOrganization(org *models.Organization) *models.Organization {
	out := *org
	out.PrimaryDomain = copyString(org.PrimaryDomain)
	out.SubscriptionStatus = copyString(org.SubscriptionStatus)
	out.SubscriptionCanceledAt = copyTime(org.SubscriptionCanceledAt)
	out.SubscriptionPeriodEnd = copyTime(org.SubscriptionPeriodEnd)
	if org.SubscriptionAmount != nil {
		v := *org.SubscriptionAmount
		out.SubscriptionAmount = &v
	}
	if org.EngagementScore != nil {
		v := *org.EngagementScore
		out.EngagementScore = &v
	}
	if org.InterestLevel != nil {
		v := *org.InterestLevel
		out.InterestLevel = &v
	}
	return &out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
