package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memberdesk/memberdesk/internal/directory"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
)

type fixture struct {
	mux       *http.ServeMux
	orgs      *store.MemoryOrganizationStore
	claims    *store.MemoryDomainClaimStore
	members   *store.MemoryMembershipStore
	directory *directory.FakeClient
}

func newFixture() *fixture {
	orgs := store.NewMemoryOrganizationStore()
	claims := store.NewMemoryDomainClaimStore(orgs)
	members := store.NewMemoryMembershipStore(orgs)
	dir := directory.NewFakeClient()

	srv := New(Stores{
		Organizations: orgs,
		Claims:        claims,
		Memberships:   members,
		Stakeholders:  store.NewMemoryStakeholderStore(),
		Contacts:      store.NewMemoryContactStore(),
		Excluded:      store.NewMemoryExcludedDomainStore(),
	}, dir)

	mux := http.NewServeMux()
	srv.Register(mux)

	return &fixture{
		mux:       mux,
		orgs:      orgs,
		claims:    claims,
		members:   members,
		directory: dir,
	}
}

func (f *fixture) seedOrg(t *testing.T, id, name string, personal bool) {
	t.Helper()
	err := f.orgs.Create(context.Background(), &models.Organization{
		ID:         id,
		Name:       name,
		IsPersonal: personal,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	})
	require.NoError(t, err)
	f.directory.PutOrganization(&directory.Organization{ID: id, Name: name})
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestClaimDomainRoute(t *testing.T) {
	t.Run("claims a domain", func(t *testing.T) {
		f := newFixture()
		f.seedOrg(t, "org_acme", "Acme", false)

		w := f.do(t, http.MethodPost, "/api/orgs/org_acme/domains",
			map[string]any{"domain": "acme.com", "primary": true})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Claim models.DomainClaim `json:"claim"`
		}
		decode(t, w, &resp)
		require.Equal(t, "acme.com", resp.Claim.Domain)
		require.True(t, resp.Claim.IsPrimary)
	})

	t.Run("conflict returns 409 with the owner", func(t *testing.T) {
		f := newFixture()
		f.seedOrg(t, "org_acme", "Acme", false)
		f.seedOrg(t, "org_globex", "Globex", false)

		w := f.do(t, http.MethodPost, "/api/orgs/org_acme/domains",
			map[string]any{"domain": "acme.com"})
		require.Equal(t, http.StatusCreated, w.Code)

		w = f.do(t, http.MethodPost, "/api/orgs/org_globex/domains",
			map[string]any{"domain": "acme.com"})
		require.Equal(t, http.StatusConflict, w.Code)

		var resp struct {
			Error struct {
				Kind           string `json:"kind"`
				ConflictingOrg struct {
					ID string `json:"id"`
				} `json:"conflicting_org"`
			} `json:"error"`
		}
		decode(t, w, &resp)
		require.Equal(t, "domain_conflict", resp.Error.Kind)
		require.Equal(t, "org_acme", resp.Error.ConflictingOrg.ID)
	})

	t.Run("invalid domain returns 422", func(t *testing.T) {
		f := newFixture()
		f.seedOrg(t, "org_acme", "Acme", false)

		w := f.do(t, http.MethodPost, "/api/orgs/org_acme/domains",
			map[string]any{"domain": "not a domain"})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("personal organization returns 422", func(t *testing.T) {
		f := newFixture()
		f.seedOrg(t, "org_alice", "Alice", true)

		w := f.do(t, http.MethodPost, "/api/orgs/org_alice/domains",
			map[string]any{"domain": "acme.com"})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("directory outage returns 502", func(t *testing.T) {
		f := newFixture()
		f.seedOrg(t, "org_acme", "Acme", false)
		f.directory.AddDomainErr = directory.ErrUnavailable

		w := f.do(t, http.MethodPost, "/api/orgs/org_acme/domains",
			map[string]any{"domain": "acme.com"})
		require.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("unknown organization returns 404", func(t *testing.T) {
		f := newFixture()

		w := f.do(t, http.MethodPost, "/api/orgs/org_missing/domains",
			map[string]any{"domain": "acme.com"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReleaseAndPrimaryRoutes(t *testing.T) {
	f := newFixture()
	f.seedOrg(t, "org_acme", "Acme", false)

	w := f.do(t, http.MethodPost, "/api/orgs/org_acme/domains", map[string]any{"domain": "acme.com", "primary": true})
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.do(t, http.MethodPost, "/api/orgs/org_acme/domains", map[string]any{"domain": "acme.io"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPut, "/api/orgs/org_acme/domains/acme.io/primary", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/orgs/org_acme/domains", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Claims []models.DomainClaim `json:"claims"`
	}
	decode(t, w, &list)
	require.Len(t, list.Claims, 2)

	w = f.do(t, http.MethodDelete, "/api/orgs/org_acme/domains/acme.io", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rel struct {
		NewPrimary *string `json:"new_primary"`
	}
	decode(t, w, &rel)
	require.NotNil(t, rel.NewPrimary)
	require.Equal(t, "acme.com", *rel.NewPrimary)
}

func TestReportRoute(t *testing.T) {
	f := newFixture()
	f.seedOrg(t, "org_acme", "Acme", false)

	w := f.do(t, http.MethodGet, "/api/reconciliation/report", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report map[string]any
	decode(t, w, &report)
	require.Contains(t, report, "orphan_domains")
	require.Contains(t, report, "misaligned_users")
	require.Contains(t, report, "generated_at")
}

func TestSyncDomainsRoute(t *testing.T) {
	f := newFixture()
	f.seedOrg(t, "org_acme", "Acme", false)
	domain := "acme.com"
	require.NoError(t, f.orgs.SetPrimaryDomain(context.Background(), "org_acme", &domain))

	w := f.do(t, http.MethodPost, "/api/reconciliation/sync-domains", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Inserted []struct {
			OrgID string `json:"org_id"`
		} `json:"inserted"`
	}
	decode(t, w, &report)
	require.Len(t, report.Inserted, 1)
	require.Equal(t, "org_acme", report.Inserted[0].OrgID)
}

func TestMigrateRoute(t *testing.T) {
	f := newFixture()
	f.seedOrg(t, "org_src", "Source", false)
	f.seedOrg(t, "org_dst", "Target", false)

	dirID := f.directory.PutMembership(&directory.Membership{
		OrgID: "org_src", UserID: "user_a", Role: "member", Email: "a@acme.com",
	})
	require.NoError(t, f.members.Upsert(context.Background(), &models.Membership{
		DirectoryID: dirID,
		OrgID:       "org_src",
		UserID:      "user_a",
		Role:        "member",
		Email:       "a@acme.com",
	}))

	w := f.do(t, http.MethodPost, "/api/orgs/org_src/migrate",
		map[string]any{"target_org_id": "org_dst"})
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Success bool `json:"success"`
		Moved   int  `json:"moved"`
	}
	decode(t, w, &report)
	require.True(t, report.Success)
	require.Equal(t, 1, report.Moved)

	t.Run("missing target org id", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/orgs/org_src/migrate", map[string]any{})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTierRoute(t *testing.T) {
	f := newFixture()

	active := "active"
	score := 80
	require.NoError(t, f.orgs.Create(context.Background(), &models.Organization{
		ID:                 "org_acme",
		Name:               "Acme",
		SubscriptionStatus: &active,
		EngagementScore:    &score,
	}))

	w := f.do(t, http.MethodGet, "/api/orgs/org_acme/tier", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tier  string `json:"tier"`
		Fires *int   `json:"fires"`
	}
	decode(t, w, &resp)
	require.Equal(t, "member", resp.Tier)
	require.NotNil(t, resp.Fires)
	require.Equal(t, 4, *resp.Fires)

	t.Run("engagement context via query parameters", func(t *testing.T) {
		require.NoError(t, f.orgs.Create(context.Background(), &models.Organization{
			ID:   "org_beta",
			Name: "Beta",
		}))

		w := f.do(t, http.MethodGet, "/api/orgs/org_beta/tier?has_users=true&has_engaged_users=true", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Tier string `json:"tier"`
		}
		decode(t, w, &resp)
		require.Equal(t, "engaged", resp.Tier)
	})
}

func TestStakeholderRoutes(t *testing.T) {
	f := newFixture()
	f.seedOrg(t, "org_acme", "Acme", false)

	w := f.do(t, http.MethodPut, "/api/orgs/org_acme/stakeholders/user_a",
		map[string]any{"role": "owner"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPut, "/api/orgs/org_acme/stakeholders/user_b",
		map[string]any{"role": "interested"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/orgs/org_acme/stakeholders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Stakeholders []models.Stakeholder `json:"stakeholders"`
	}
	decode(t, w, &list)
	require.Len(t, list.Stakeholders, 2)

	t.Run("unknown role rejected", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/orgs/org_acme/stakeholders/user_c",
			map[string]any{"role": "fan"})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("last owner cannot be removed", func(t *testing.T) {
		w := f.do(t, http.MethodDelete, "/api/orgs/org_acme/stakeholders/user_a", nil)
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("non-owner can be removed", func(t *testing.T) {
		w := f.do(t, http.MethodDelete, "/api/orgs/org_acme/stakeholders/user_b", nil)
		require.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestExcludedDomainRoutes(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/excluded-domains",
		map[string]any{"domain": "Agency.example", "reason": "shared agency domain"})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("duplicate returns 409", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/excluded-domains",
			map[string]any{"domain": "agency.example"})
		require.Equal(t, http.StatusConflict, w.Code)
	})

	w = f.do(t, http.MethodGet, "/api/excluded-domains", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		ExcludedDomains []models.ExcludedDomain `json:"excluded_domains"`
	}
	decode(t, w, &list)
	require.Len(t, list.ExcludedDomains, 1)
	require.Equal(t, "agency.example", list.ExcludedDomains[0].Domain)

	w = f.do(t, http.MethodDelete, "/api/excluded-domains/agency.example", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuditRoute(t *testing.T) {
	f := newFixture()
	f.seedOrg(t, "org_acme", "Acme", false)
	f.directory.PutMembership(&directory.Membership{
		OrgID: "org_acme", UserID: "user_a", Role: "member", Email: "a@acme.com",
	})

	w := f.do(t, http.MethodPost, "/api/orgs/org_acme/audit-memberships",
		map[string]any{"repair": true})
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		MissingLocally []struct {
			UserID string `json:"user_id"`
		} `json:"missing_locally"`
		Repaired bool `json:"repaired"`
	}
	decode(t, w, &report)
	require.Len(t, report.MissingLocally, 1)
	require.True(t, report.Repaired)

	_, err := f.members.Get(context.Background(), "org_acme", "user_a")
	require.NoError(t, err)
}
