//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	err = RunMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestIntegration_OrganizationStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	orgs := NewOrganizationStore(pool)

	t.Run("create and get", func(t *testing.T) {
		err := orgs.Create(ctx, &models.Organization{ID: "org_acme", Name: "Acme"})
		require.NoError(t, err)

		org, err := orgs.Get(ctx, "org_acme")
		require.NoError(t, err)
		require.Equal(t, "Acme", org.Name)
		require.False(t, org.CreatedAt.IsZero())
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := orgs.Create(ctx, &models.Organization{ID: "org_acme", Name: "Acme Again"})
		require.ErrorIs(t, err, store.ErrOrganizationAlreadyExists)
	})

	t.Run("missing org", func(t *testing.T) {
		_, err := orgs.Get(ctx, "org_missing")
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("set and clear primary domain", func(t *testing.T) {
		domain := "acme.com"
		require.NoError(t, orgs.SetPrimaryDomain(ctx, "org_acme", &domain))

		org, err := orgs.Get(ctx, "org_acme")
		require.NoError(t, err)
		require.NotNil(t, org.PrimaryDomain)
		require.Equal(t, "acme.com", *org.PrimaryDomain)

		require.NoError(t, orgs.SetPrimaryDomain(ctx, "org_acme", nil))
		org, err = orgs.Get(ctx, "org_acme")
		require.NoError(t, err)
		require.Nil(t, org.PrimaryDomain)
	})

	t.Run("update subscription fields", func(t *testing.T) {
		org, err := orgs.Get(ctx, "org_acme")
		require.NoError(t, err)

		active := "active"
		score := 42
		org.SubscriptionStatus = &active
		org.EngagementScore = &score
		require.NoError(t, orgs.Update(ctx, org))

		org, err = orgs.Get(ctx, "org_acme")
		require.NoError(t, err)
		require.NotNil(t, org.SubscriptionStatus)
		require.Equal(t, "active", *org.SubscriptionStatus)
		require.NotNil(t, org.EngagementScore)
		require.Equal(t, 42, *org.EngagementScore)
	})
}

func TestIntegration_DomainClaimStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	orgs := NewOrganizationStore(pool)
	claims := NewDomainClaimStore(pool)

	require.NoError(t, orgs.Create(ctx, &models.Organization{ID: "org_acme", Name: "Acme"}))
	require.NoError(t, orgs.Create(ctx, &models.Organization{ID: "org_globex", Name: "Globex"}))

	t.Run("unique domain constraint across orgs", func(t *testing.T) {
		err := claims.Create(ctx, &models.DomainClaim{
			OrgID: "org_acme", Domain: "acme.com", Verified: true, Source: models.ClaimSourceManual,
		})
		require.NoError(t, err)

		err = claims.Create(ctx, &models.DomainClaim{
			OrgID: "org_globex", Domain: "acme.com", Source: models.ClaimSourceManual,
		})
		require.ErrorIs(t, err, store.ErrDomainAlreadyClaimed)
	})

	t.Run("election ordering", func(t *testing.T) {
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		rows := []*models.DomainClaim{
			{OrgID: "org_acme", Domain: "acme.dev", Verified: false, Source: models.ClaimSourceImport, CreatedAt: base},
			{OrgID: "org_acme", Domain: "acme.io", Verified: true, Source: models.ClaimSourceManual, CreatedAt: base.Add(time.Hour)},
		}
		for _, row := range rows {
			require.NoError(t, claims.Create(ctx, row))
		}

		list, err := claims.ListByOrg(ctx, "org_acme")
		require.NoError(t, err)
		require.Len(t, list, 3)

		// Verified first, then earliest created.
		require.Equal(t, "acme.com", list[0].Domain)
		require.Equal(t, "acme.io", list[1].Domain)
		require.Equal(t, "acme.dev", list[2].Domain)
	})

	t.Run("set primary updates claim and cache atomically", func(t *testing.T) {
		domain := "acme.dev"
		require.NoError(t, claims.SetPrimary(ctx, "org_acme", &domain))

		claim, err := claims.GetByDomain(ctx, "acme.dev")
		require.NoError(t, err)
		require.True(t, claim.IsPrimary)
		require.True(t, claim.Verified, "promotion marks the claim verified")

		org, err := orgs.Get(ctx, "org_acme")
		require.NoError(t, err)
		require.NotNil(t, org.PrimaryDomain)
		require.Equal(t, "acme.dev", *org.PrimaryDomain)
	})

	t.Run("set primary demotes the previous primary", func(t *testing.T) {
		domain := "acme.io"
		require.NoError(t, claims.SetPrimary(ctx, "org_acme", &domain))

		claim, err := claims.GetByDomain(ctx, "acme.dev")
		require.NoError(t, err)
		require.False(t, claim.IsPrimary)
	})

	t.Run("delete scoped to the owning org", func(t *testing.T) {
		err := claims.Delete(ctx, "org_globex", "acme.com")
		require.ErrorIs(t, err, store.ErrClaimNotFound)

		require.NoError(t, claims.Delete(ctx, "org_acme", "acme.com"))
		_, err = claims.GetByDomain(ctx, "acme.com")
		require.ErrorIs(t, err, store.ErrClaimNotFound)
	})
}

func TestIntegration_MembershipStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	orgs := NewOrganizationStore(pool)
	members := NewMembershipStore(pool)

	require.NoError(t, orgs.Create(ctx, &models.Organization{ID: "org_acme", Name: "Acme"}))

	t.Run("upsert refreshes mutable columns", func(t *testing.T) {
		m := &models.Membership{
			DirectoryID: "dm_1",
			OrgID:       "org_acme",
			UserID:      "user_a",
			Role:        "member",
			Email:       "a@acme.com",
		}
		require.NoError(t, members.Upsert(ctx, m))

		m.Role = "admin"
		m.DirectoryID = "dm_1b"
		require.NoError(t, members.Upsert(ctx, m))

		got, err := members.Get(ctx, "org_acme", "user_a")
		require.NoError(t, err)
		require.Equal(t, "admin", got.Role)
		require.Equal(t, "dm_1b", got.DirectoryID)
	})

	t.Run("list joined with organization", func(t *testing.T) {
		rows, err := members.ListWithOrg(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "Acme", rows[0].OrgName)
		require.False(t, rows[0].OrgIsPersonal)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, members.Delete(ctx, "org_acme", "user_a"))
		err := members.Delete(ctx, "org_acme", "user_a")
		require.ErrorIs(t, err, store.ErrMembershipNotFound)
	})
}

func TestIntegration_StakeholderStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	orgs := NewOrganizationStore(pool)
	stakeholders := NewStakeholderStore(pool)

	require.NoError(t, orgs.Create(ctx, &models.Organization{ID: "org_acme", Name: "Acme"}))

	require.NoError(t, stakeholders.Upsert(ctx, &models.Stakeholder{
		OrgID: "org_acme", UserID: "user_a", Role: models.StakeholderRoleOwner,
	}))

	t.Run("sole owner cannot be deleted", func(t *testing.T) {
		err := stakeholders.Delete(ctx, "org_acme", "user_a")
		require.ErrorIs(t, err, store.ErrLastOwner)
	})

	t.Run("delete works with a second owner", func(t *testing.T) {
		require.NoError(t, stakeholders.Upsert(ctx, &models.Stakeholder{
			OrgID: "org_acme", UserID: "user_b", Role: models.StakeholderRoleOwner,
		}))
		require.NoError(t, stakeholders.Delete(ctx, "org_acme", "user_a"))

		list, err := stakeholders.ListByOrg(ctx, "org_acme")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "user_b", list[0].UserID)
	})
}

func TestIntegration_ContactStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	orgs := NewOrganizationStore(pool)
	contacts := NewContactStore(pool)

	require.NoError(t, orgs.Create(ctx, &models.Organization{ID: "org_acme", Name: "Acme"}))

	require.NoError(t, contacts.Create(ctx, &models.Contact{Email: "lead@acme.com"}))
	require.NoError(t, contacts.Create(ctx, &models.Contact{Email: "other@globex.com"}))

	t.Run("link by domain attaches matching unlinked contacts", func(t *testing.T) {
		linked, err := contacts.LinkByDomain(ctx, "org_acme", "acme.com")
		require.NoError(t, err)
		require.Equal(t, int64(1), linked)

		list, err := contacts.ListByOrg(ctx, "org_acme")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "lead@acme.com", list[0].Email)
	})

	t.Run("linking again is a no-op", func(t *testing.T) {
		linked, err := contacts.LinkByDomain(ctx, "org_acme", "acme.com")
		require.NoError(t, err)
		require.Equal(t, int64(0), linked)
	})
}

func TestIntegration_ExcludedDomainStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	excluded := NewExcludedDomainStore(pool)

	require.NoError(t, excluded.Add(ctx, &models.ExcludedDomain{
		Domain: "agency.example", Reason: "shared agency domain",
	}))

	t.Run("duplicate rejected", func(t *testing.T) {
		err := excluded.Add(ctx, &models.ExcludedDomain{Domain: "agency.example"})
		require.ErrorIs(t, err, store.ErrExcludedDomainExists)
	})

	t.Run("list and remove", func(t *testing.T) {
		list, err := excluded.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)

		require.NoError(t, excluded.Remove(ctx, "agency.example"))

		// Removing an absent domain is a no-op.
		require.NoError(t, excluded.Remove(ctx, "agency.example"))

		list, err = excluded.List(ctx)
		require.NoError(t, err)
		require.Empty(t, list)
	})
}
