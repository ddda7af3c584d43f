package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/memberdesk/memberdesk/internal/models"
)

// MemoryExcludedDomainStore is an in-memory implementation of
// ExcludedDomainStore for development and testing.
type MemoryExcludedDomainStore struct {
	mu      sync.RWMutex
	domains map[string]*models.ExcludedDomain
}

// NewMemoryExcludedDomainStore creates a new in-memory excluded domain store.
func NewMemoryExcludedDomainStore() *MemoryExcludedDomainStore {
	return &MemoryExcludedDomainStore{
		domains: make(map[string]*models.ExcludedDomain),
	}
}

func (s *MemoryExcludedDomainStore) Add(ctx context.Context, e *models.ExcludedDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain := strings.ToLower(e.Domain)
	if _, exists := s.domains[domain]; exists {
		return ErrExcludedDomainExists
	}

	row := *e
	row.Domain = domain
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	s.domains[domain] = &row
	return nil
}

func (s *MemoryExcludedDomainStore) Remove(ctx context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.domains, strings.ToLower(domain))
	return nil
}

func (s *MemoryExcludedDomainStore) List(ctx context.Context) ([]*models.ExcludedDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ExcludedDomain, 0, len(s.domains))
	for _, e := range s.domains {
		row := *e
		out = append(out, &row)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}
