package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/memberdesk/memberdesk/internal/directory"
	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/store"
	"github.com/memberdesk/memberdesk/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const defaultMemberRole = "member"

// Migrator moves members between organizations through the external
// directory, one member at a time. The directory write ordering is
// create-target-first, delete-source-second: a failure mid-member can leave a
// user in both organizations, never in neither.
type Migrator struct {
	orgs      store.OrganizationStore
	members   store.MembershipStore
	directory directory.Client
}

// NewMigrator creates a migrator over the shared stores and directory client.
func NewMigrator(orgs store.OrganizationStore, members store.MembershipStore, dir directory.Client) *Migrator {
	return &Migrator{
		orgs:      orgs,
		members:   members,
		directory: dir,
	}
}

// MemberResult is the per-member outcome of a migration batch.
type MemberResult struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Moved  bool   `json:"moved"`
	Error  string `json:"error,omitempty"`
}

// MigrationReport is the outcome of one migration batch. Success means every
// member moved; partial batches report Success false with per-member errors.
type MigrationReport struct {
	SourceOrgID string         `json:"source_org_id"`
	TargetOrgID string         `json:"target_org_id"`
	Requested   int            `json:"requested"`
	Moved       int            `json:"moved"`
	Failed      int            `json:"failed"`
	Success     bool           `json:"success"`
	Members     []MemberResult `json:"members"`
}

// MigrateMembers moves members from the source organization to the target.
// A nil userIDs moves every cached member of the source; a supplied list moves
// exactly those users. Members are processed sequentially and a failure on one
// member does not stop the batch.
func (g *Migrator) MigrateMembers(ctx context.Context, sourceOrgID, targetOrgID string, userIDs []string) (*MigrationReport, error) {
	if sourceOrgID == targetOrgID {
		return nil, newError(KindInvalidRequest, "source and target organization are the same")
	}

	if _, err := g.orgs.Get(ctx, sourceOrgID); err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, newError(KindNotFound, "source organization %s not found", sourceOrgID)
		}
		return nil, err
	}

	target, err := g.orgs.Get(ctx, targetOrgID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, newError(KindNotFound, "target organization %s not found", targetOrgID)
		}
		return nil, err
	}
	if target.IsPersonal {
		return nil, newError(KindInvalidTarget, "target organization is a personal workspace")
	}

	batch, err := g.selectMembers(ctx, sourceOrgID, userIDs)
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{
		SourceOrgID: sourceOrgID,
		TargetOrgID: targetOrgID,
		Requested:   len(batch),
	}

	for _, member := range batch {
		result := g.migrateOne(ctx, member, targetOrgID)
		report.Members = append(report.Members, result)
		if result.Moved {
			report.Moved++
		} else {
			report.Failed++
		}
	}
	report.Success = report.Failed == 0

	m := telemetry.GetMetrics()
	m.MembersMigratedTotal.Add(ctx, int64(report.Moved))
	m.MigrationMemberErrorsTotal.Add(ctx, int64(report.Failed))

	log.Info().
		Str("source_org_id", sourceOrgID).
		Str("target_org_id", targetOrgID).
		Int("requested", report.Requested).
		Int("moved", report.Moved).
		Int("failed", report.Failed).
		Msg("membership migration finished")

	return report, nil
}

// selectMembers resolves the batch: all cached members of the source when
// userIDs is nil, otherwise the cached rows of exactly the supplied users.
// A supplied list must be non-empty and hold only non-empty ids; the whole
// batch is rejected before anything is read or moved otherwise.
func (g *Migrator) selectMembers(ctx context.Context, sourceOrgID string, userIDs []string) ([]*models.Membership, error) {
	var wanted map[string]struct{}
	if userIDs != nil {
		if len(userIDs) == 0 {
			return nil, newError(KindInvalidRequest, "user id list is empty")
		}
		wanted = make(map[string]struct{}, len(userIDs))
		for _, id := range userIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				return nil, newError(KindInvalidRequest, "user id list contains an empty entry")
			}
			wanted[id] = struct{}{}
		}
	}

	all, err := g.members.ListByOrg(ctx, sourceOrgID)
	if err != nil {
		return nil, err
	}

	if wanted == nil {
		if len(all) == 0 {
			return nil, newError(KindNoMembersFound, "source organization has no members")
		}
		return all, nil
	}

	var batch []*models.Membership
	for _, m := range all {
		if _, ok := wanted[m.UserID]; ok {
			batch = append(batch, m)
		}
	}
	if len(batch) == 0 {
		return nil, newError(KindNoMembersFound, "none of the requested users are members of the source organization")
	}

	return batch, nil
}

// migrateOne moves a single member: create the target membership upstream,
// delete the source membership upstream, then update the local cache. A
// failure after the create leaves the user in both organizations and the
// cache row on the source, which the reconciliation report will surface.
func (g *Migrator) migrateOne(ctx context.Context, member *models.Membership, targetOrgID string) MemberResult {
	result := MemberResult{UserID: member.UserID, Email: member.Email}

	role := member.Role
	if role == "" {
		log.Warn().
			Str("user_id", member.UserID).
			Str("org_id", member.OrgID).
			Msg("membership has no role, defaulting")
		role = defaultMemberRole
	}

	created, err := g.directory.CreateMembership(ctx, targetOrgID, member.UserID, role)
	if err != nil {
		result.Error = fmt.Sprintf("create target membership: %v", err)
		log.Error().Err(err).
			Str("user_id", member.UserID).
			Str("target_org_id", targetOrgID).
			Msg("failed to create target membership")
		return result
	}

	if err := g.directory.DeleteMembership(ctx, member.DirectoryID); err != nil {
		// The user now exists in both organizations. Cache the new target
		// membership so the duplicate shows up in the report, and leave the
		// source row alone.
		result.Error = fmt.Sprintf("delete source membership: %v", err)
		log.Error().Err(err).
			Str("user_id", member.UserID).
			Str("source_org_id", member.OrgID).
			Str("membership_id", member.DirectoryID).
			Msg("failed to delete source membership, user is in both organizations")
		g.cacheTarget(ctx, member, created, targetOrgID)
		return result
	}

	g.cacheTarget(ctx, member, created, targetOrgID)

	if err := g.members.Delete(ctx, member.OrgID, member.UserID); err != nil && !errors.Is(err, store.ErrMembershipNotFound) {
		log.Warn().Err(err).
			Str("user_id", member.UserID).
			Str("org_id", member.OrgID).
			Msg("failed to remove source membership from cache")
	}

	result.Moved = true
	return result
}

func (g *Migrator) cacheTarget(ctx context.Context, member *models.Membership, created *directory.Membership, targetOrgID string) {
	now := time.Now()
	cached := &models.Membership{
		ID:          uuid.New(),
		DirectoryID: created.ID,
		OrgID:       targetOrgID,
		UserID:      member.UserID,
		Role:        created.Role,
		Email:       member.Email,
		DisplayName: member.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := g.members.Upsert(ctx, cached); err != nil {
		log.Warn().Err(err).
			Str("user_id", member.UserID).
			Str("org_id", targetOrgID).
			Msg("failed to cache target membership")
	}
}
