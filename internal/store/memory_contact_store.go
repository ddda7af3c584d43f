package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/memberdesk/memberdesk/internal/models"
)

// MemoryContactStore is an in-memory implementation of ContactStore for
// development and testing.
type MemoryContactStore struct {
	mu       sync.RWMutex
	contacts map[uuid.UUID]*models.Contact
}

// NewMemoryContactStore creates a new in-memory contact store.
func NewMemoryContactStore() *MemoryContactStore {
	return &MemoryContactStore{
		contacts: make(map[uuid.UUID]*models.Contact),
	}
}

func (s *MemoryContactStore) Create(ctx context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *c
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	row.DisplayName = copyString(c.DisplayName)
	row.OrgID = copyString(c.OrgID)
	s.contacts[row.ID] = &row
	return nil
}

func (s *MemoryContactStore) LinkByDomain(ctx context.Context, orgID, domain string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain = strings.ToLower(domain)
	var linked int64
	for _, c := range s.contacts {
		if c.OrgID == nil && c.EmailDomain() == domain {
			id := orgID
			c.OrgID = &id
			linked++
		}
	}
	return linked, nil
}

func (s *MemoryContactStore) ListByOrg(ctx context.Context, orgID string) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Contact
	for _, c := range s.contacts {
		if c.OrgID != nil && *c.OrgID == orgID {
			row := *c
			row.DisplayName = copyString(c.DisplayName)
			row.OrgID = copyString(c.OrgID)
			out = append(out, &row)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
