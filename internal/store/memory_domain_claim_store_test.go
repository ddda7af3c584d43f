package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memberdesk/memberdesk/internal/models"
)

func claimFixture() (*MemoryOrganizationStore, *MemoryDomainClaimStore) {
	orgs := NewMemoryOrganizationStore()
	return orgs, NewMemoryDomainClaimStore(orgs)
}

func TestMemoryDomainClaimStoreCreate(t *testing.T) {
	ctx := context.Background()
	_, claims := claimFixture()

	require.NoError(t, claims.Create(ctx, &models.DomainClaim{
		OrgID: "org_1", Domain: "acme.com",
	}))

	t.Run("duplicate domain rejected across orgs", func(t *testing.T) {
		err := claims.Create(ctx, &models.DomainClaim{
			OrgID: "org_2", Domain: "acme.com",
		})
		require.ErrorIs(t, err, ErrDomainAlreadyClaimed)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		claim, err := claims.GetByDomain(ctx, "acme.com")
		require.NoError(t, err)

		claim.OrgID = "mutated"

		again, err := claims.GetByDomain(ctx, "acme.com")
		require.NoError(t, err)
		require.Equal(t, "org_1", again.OrgID)
	})
}

func TestMemoryDomainClaimStoreListByOrg(t *testing.T) {
	ctx := context.Background()
	_, claims := claimFixture()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []*models.DomainClaim{
		{OrgID: "org_1", Domain: "late-verified.com", Verified: true, CreatedAt: base.Add(2 * time.Hour)},
		{OrgID: "org_1", Domain: "early-unverified.com", Verified: false, CreatedAt: base},
		{OrgID: "org_1", Domain: "early-verified.com", Verified: true, CreatedAt: base.Add(time.Hour)},
		{OrgID: "org_2", Domain: "other.com", Verified: true, CreatedAt: base},
	}
	for _, row := range rows {
		require.NoError(t, claims.Create(ctx, row))
	}

	list, err := claims.ListByOrg(ctx, "org_1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Verified claims sort ahead of unverified, earliest created first.
	require.Equal(t, "early-verified.com", list[0].Domain)
	require.Equal(t, "late-verified.com", list[1].Domain)
	require.Equal(t, "early-unverified.com", list[2].Domain)
}

func TestMemoryDomainClaimStoreSetPrimary(t *testing.T) {
	ctx := context.Background()
	orgs, claims := claimFixture()

	require.NoError(t, orgs.Create(ctx, &models.Organization{ID: "org_1", Name: "Acme"}))
	require.NoError(t, claims.Create(ctx, &models.DomainClaim{
		OrgID: "org_1", Domain: "acme.com", IsPrimary: true, Verified: true,
	}))
	require.NoError(t, claims.Create(ctx, &models.DomainClaim{
		OrgID: "org_1", Domain: "acme.io",
	}))

	domain := "acme.io"
	require.NoError(t, claims.SetPrimary(ctx, "org_1", &domain))

	t.Run("promotes and verifies the new primary", func(t *testing.T) {
		claim, err := claims.GetByDomain(ctx, "acme.io")
		require.NoError(t, err)
		require.True(t, claim.IsPrimary)
		require.True(t, claim.Verified)
	})

	t.Run("demotes the old primary", func(t *testing.T) {
		claim, err := claims.GetByDomain(ctx, "acme.com")
		require.NoError(t, err)
		require.False(t, claim.IsPrimary)
	})

	t.Run("updates the cached primary domain", func(t *testing.T) {
		org, err := orgs.Get(ctx, "org_1")
		require.NoError(t, err)
		require.NotNil(t, org.PrimaryDomain)
		require.Equal(t, "acme.io", *org.PrimaryDomain)
	})

	t.Run("nil clears every primary flag and the cache", func(t *testing.T) {
		require.NoError(t, claims.SetPrimary(ctx, "org_1", nil))

		for _, d := range []string{"acme.com", "acme.io"} {
			claim, err := claims.GetByDomain(ctx, d)
			require.NoError(t, err)
			require.False(t, claim.IsPrimary)
		}

		org, err := orgs.Get(ctx, "org_1")
		require.NoError(t, err)
		require.Nil(t, org.PrimaryDomain)
	})

	t.Run("unclaimed domain rejected", func(t *testing.T) {
		missing := "missing.com"
		err := claims.SetPrimary(ctx, "org_1", &missing)
		require.ErrorIs(t, err, ErrClaimNotFound)
	})

	t.Run("another org's claim rejected", func(t *testing.T) {
		require.NoError(t, claims.Create(ctx, &models.DomainClaim{
			OrgID: "org_2", Domain: "other.com",
		}))
		other := "other.com"
		err := claims.SetPrimary(ctx, "org_1", &other)
		require.ErrorIs(t, err, ErrClaimNotFound)
	})
}

func TestMemoryDomainClaimStoreDelete(t *testing.T) {
	ctx := context.Background()
	_, claims := claimFixture()

	require.NoError(t, claims.Create(ctx, &models.DomainClaim{
		OrgID: "org_1", Domain: "acme.com",
	}))

	t.Run("scoped to the owning org", func(t *testing.T) {
		err := claims.Delete(ctx, "org_2", "acme.com")
		require.ErrorIs(t, err, ErrClaimNotFound)
	})

	require.NoError(t, claims.Delete(ctx, "org_1", "acme.com"))

	_, err := claims.GetByDomain(ctx, "acme.com")
	require.ErrorIs(t, err, ErrClaimNotFound)
}
