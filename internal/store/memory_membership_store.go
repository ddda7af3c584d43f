package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/memberdesk/memberdesk/internal/models"
)

// MemoryMembershipStore is an in-memory implementation of MembershipStore for
// development and testing. It joins against the organization store for
// ListWithOrg, mirroring the SQL join in the PostgreSQL implementation.
type MemoryMembershipStore struct {
	mu      sync.RWMutex
	members map[string]*models.Membership // keyed by orgID + "/" + userID
	orgs    *MemoryOrganizationStore
}

// NewMemoryMembershipStore creates a new in-memory membership store.
func NewMemoryMembershipStore(orgs *MemoryOrganizationStore) *MemoryMembershipStore {
	return &MemoryMembershipStore{
		members: make(map[string]*models.Membership),
		orgs:    orgs,
	}
}

func membershipKey(orgID, userID string) string {
	return orgID + "/" + userID
}

func (s *MemoryMembershipStore) Upsert(ctx context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(m.OrgID, m.UserID)
	row := *m
	if existing, ok := s.members[key]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	row.UpdatedAt = time.Now()
	row.DisplayName = copyString(m.DisplayName)

	s.members[key] = &row
	return nil
}

func (s *MemoryMembershipStore) Get(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.members[membershipKey(orgID, userID)]
	if !exists {
		return nil, ErrMembershipNotFound
	}

	row := *m
	row.DisplayName = copyString(m.DisplayName)
	return &row, nil
}

func (s *MemoryMembershipStore) Delete(ctx context.Context, orgID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(orgID, userID)
	if _, exists := s.members[key]; !exists {
		return ErrMembershipNotFound
	}

	delete(s.members, key)
	return nil
}

func (s *MemoryMembershipStore) ListByOrg(ctx context.Context, orgID string) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []*models.Membership
	for _, m := range s.members {
		if m.OrgID == orgID {
			row := *m
			row.DisplayName = copyString(m.DisplayName)
			members = append(members, &row)
		}
	}

	sort.Slice(members, func(i, j int) bool {
		if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		}
		return members[i].UserID < members[j].UserID
	})

	return members, nil
}

func (s *MemoryMembershipStore) ListWithOrg(ctx context.Context) ([]*MemberWithOrg, error) {
	s.mu.RLock()
	members := make([]*models.Membership, 0, len(s.members))
	for _, m := range s.members {
		row := *m
		row.DisplayName = copyString(m.DisplayName)
		members = append(members, &row)
	}
	s.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		if members[i].OrgID != members[j].OrgID {
			return members[i].OrgID < members[j].OrgID
		}
		return members[i].UserID < members[j].UserID
	})

	out := make([]*MemberWithOrg, 0, len(members))
	for _, m := range members {
		org, err := s.orgs.Get(ctx, m.OrgID)
		if err != nil {
			// Membership rows without a cached organization are skipped, same
			// as the SQL inner join.
			continue
		}
		out = append(out, &MemberWithOrg{
			Membership:    *m,
			OrgName:       org.Name,
			OrgIsPersonal: org.IsPersonal,
		})
	}

	return out, nil
}
