package store

import (
	"context"
	"sort"
	"sync"

	"github.com/memberdesk/memberdesk/internal/models"
)

// MemoryDomainClaimStore is an in-memory implementation of DomainClaimStore
// for development and testing. It holds a reference to the organization store
// so SetPrimary can keep the cached primary-domain field in lockstep, the way
// the PostgreSQL implementation does inside one transaction.
type MemoryDomainClaimStore struct {
	mu     sync.RWMutex
	claims map[string]*models.DomainClaim // keyed by domain
	orgs   *MemoryOrganizationStore
}

// NewMemoryDomainClaimStore creates a new in-memory domain claim store.
func NewMemoryDomainClaimStore(orgs *MemoryOrganizationStore) *MemoryDomainClaimStore {
	return &MemoryDomainClaimStore{
		claims: make(map[string]*models.DomainClaim),
		orgs:   orgs,
	}
}

func (s *MemoryDomainClaimStore) Create(ctx context.Context, claim *models.DomainClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[claim.Domain]; exists {
		return ErrDomainAlreadyClaimed
	}

	c := *claim
	s.claims[claim.Domain] = &c
	return nil
}

func (s *MemoryDomainClaimStore) GetByDomain(ctx context.Context, domain string) (*models.DomainClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, exists := s.claims[domain]
	if !exists {
		return nil, ErrClaimNotFound
	}

	c := *claim
	return &c, nil
}

func (s *MemoryDomainClaimStore) ListByOrg(ctx context.Context, orgID string) ([]*models.DomainClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var claims []*models.DomainClaim
	for _, claim := range s.claims {
		if claim.OrgID == orgID {
			c := *claim
			claims = append(claims, &c)
		}
	}

	sortClaimsForElection(claims)
	return claims, nil
}

func (s *MemoryDomainClaimStore) List(ctx context.Context) ([]*models.DomainClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := make([]*models.DomainClaim, 0, len(s.claims))
	for _, claim := range s.claims {
		c := *claim
		claims = append(claims, &c)
	}

	sort.Slice(claims, func(i, j int) bool { return claims[i].Domain < claims[j].Domain })
	return claims, nil
}

func (s *MemoryDomainClaimStore) SetVerified(ctx context.Context, orgID, domain string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, exists := s.claims[domain]
	if !exists || claim.OrgID != orgID {
		return ErrClaimNotFound
	}

	claim.Verified = verified
	return nil
}

func (s *MemoryDomainClaimStore) SetPrimary(ctx context.Context, orgID string, domain *string) error {
	s.mu.Lock()

	if domain != nil {
		claim, exists := s.claims[*domain]
		if !exists || claim.OrgID != orgID {
			s.mu.Unlock()
			return ErrClaimNotFound
		}
	}

	for _, claim := range s.claims {
		if claim.OrgID != orgID {
			continue
		}
		claim.IsPrimary = domain != nil && claim.Domain == *domain
		if claim.IsPrimary {
			claim.Verified = true
		}
	}
	s.mu.Unlock()

	return s.orgs.SetPrimaryDomain(ctx, orgID, domain)
}

func (s *MemoryDomainClaimStore) Delete(ctx context.Context, orgID, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, exists := s.claims[domain]
	if !exists || claim.OrgID != orgID {
		return ErrClaimNotFound
	}

	delete(s.claims, domain)
	return nil
}

// sortClaimsForElection orders claims the way primary re-election walks them:
// verified before unverified, then earliest created first.
func sortClaimsForElection(claims []*models.DomainClaim) {
	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].Verified != claims[j].Verified {
			return claims[i].Verified
		}
		return claims[i].CreatedAt.Before(claims[j].CreatedAt)
	})
}
