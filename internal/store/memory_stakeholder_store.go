package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memberdesk/memberdesk/internal/models"
)

// MemoryStakeholderStore is an in-memory implementation of StakeholderStore
// for development and testing.
type MemoryStakeholderStore struct {
	mu           sync.RWMutex
	stakeholders map[string]*models.Stakeholder // keyed by orgID + "/" + userID
}

// NewMemoryStakeholderStore creates a new in-memory stakeholder store.
func NewMemoryStakeholderStore() *MemoryStakeholderStore {
	return &MemoryStakeholderStore{
		stakeholders: make(map[string]*models.Stakeholder),
	}
}

func (s *MemoryStakeholderStore) Upsert(ctx context.Context, sh *models.Stakeholder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *sh
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	s.stakeholders[sh.OrgID+"/"+sh.UserID] = &row
	return nil
}

func (s *MemoryStakeholderStore) Delete(ctx context.Context, orgID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := orgID + "/" + userID
	sh, exists := s.stakeholders[key]
	if !exists {
		return ErrStakeholderNotFound
	}

	if sh.Role == models.StakeholderRoleOwner {
		owners := 0
		for _, other := range s.stakeholders {
			if other.OrgID == orgID && other.Role == models.StakeholderRoleOwner {
				owners++
			}
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	delete(s.stakeholders, key)
	return nil
}

func (s *MemoryStakeholderStore) ListByOrg(ctx context.Context, orgID string) ([]*models.Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Stakeholder
	for _, sh := range s.stakeholders {
		if sh.OrgID == orgID {
			row := *sh
			out = append(out, &row)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
