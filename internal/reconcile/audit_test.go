package reconcile

import (
	"context"
	"testing"

	"github.com/memberdesk/memberdesk/internal/directory"
	"github.com/memberdesk/memberdesk/internal/store"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) auditor() *Auditor {
	return NewAuditor(e.orgs, e.members, e.directory)
}

func TestAuditMemberships(t *testing.T) {
	ctx := context.Background()

	t.Run("in sync", func(t *testing.T) {
		env := newTestEnv()
		env.seedOrg(t, "org_acme", "Acme", false)
		env.seedMember(t, "org_acme", "user_a", "a@acme.com", "member")

		report, err := env.auditor().AuditMemberships(ctx, "org_acme", false)
		require.NoError(t, err)
		require.True(t, report.InSync())
		require.False(t, report.Repaired)
	})

	t.Run("reports drift without repairing", func(t *testing.T) {
		env := newTestEnv()
		env.seedOrg(t, "org_acme", "Acme", false)

		// In the directory but not cached.
		env.directory.PutMembership(&directory.Membership{
			OrgID:  "org_acme",
			UserID: "user_new",
			Role:   "member",
			Email:  "new@acme.com",
		})

		// Cached but long gone upstream.
		m := env.seedMember(t, "org_acme", "user_old", "old@acme.com", "member")
		require.NoError(t, env.directory.DeleteMembership(ctx, m.DirectoryID))

		report, err := env.auditor().AuditMemberships(ctx, "org_acme", false)
		require.NoError(t, err)
		require.False(t, report.InSync())
		require.False(t, report.Repaired)
		require.Len(t, report.MissingLocally, 1)
		require.Equal(t, "user_new", report.MissingLocally[0].UserID)
		require.Len(t, report.StaleLocally, 1)
		require.Equal(t, "user_old", report.StaleLocally[0].UserID)

		// Nothing changed in the cache.
		_, err = env.members.Get(ctx, "org_acme", "user_new")
		require.ErrorIs(t, err, store.ErrMembershipNotFound)
		_, err = env.members.Get(ctx, "org_acme", "user_old")
		require.NoError(t, err)
	})

	t.Run("repairs the cache", func(t *testing.T) {
		env := newTestEnv()
		env.seedOrg(t, "org_acme", "Acme", false)

		env.directory.PutMembership(&directory.Membership{
			OrgID:  "org_acme",
			UserID: "user_new",
			Role:   "admin",
			Email:  "new@acme.com",
		})
		m := env.seedMember(t, "org_acme", "user_old", "old@acme.com", "member")
		require.NoError(t, env.directory.DeleteMembership(ctx, m.DirectoryID))

		report, err := env.auditor().AuditMemberships(ctx, "org_acme", true)
		require.NoError(t, err)
		require.True(t, report.Repaired)

		inserted, err := env.members.Get(ctx, "org_acme", "user_new")
		require.NoError(t, err)
		require.Equal(t, "admin", inserted.Role)
		require.Equal(t, "new@acme.com", inserted.Email)

		_, err = env.members.Get(ctx, "org_acme", "user_old")
		require.ErrorIs(t, err, store.ErrMembershipNotFound)

		// A second audit finds nothing to do.
		report, err = env.auditor().AuditMemberships(ctx, "org_acme", true)
		require.NoError(t, err)
		require.True(t, report.InSync())
		require.False(t, report.Repaired)
	})

	t.Run("unknown organization", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.auditor().AuditMemberships(ctx, "org_missing", false)
		require.Error(t, err)
		require.Equal(t, KindNotFound, KindOf(err))
	})
}
