package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/memberdesk/memberdesk/internal/models"
	"github.com/memberdesk/memberdesk/internal/reconcile"
	"github.com/memberdesk/memberdesk/internal/store"
)

type claimDomainRequest struct {
	Domain  string `json:"domain"`
	Primary bool   `json:"primary"`
}

func (s *Server) handleClaimDomain(w http.ResponseWriter, r *http.Request) {
	var req claimDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := s.ledger.ClaimDomain(r.Context(), r.PathValue("id"), req.Domain, req.Primary)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyClaimed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("id")
	if _, err := s.orgs.Get(r.Context(), orgID); err != nil {
		writeError(w, err)
		return
	}

	claims, err := s.claims.ListByOrg(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

func (s *Server) handleReleaseDomain(w http.ResponseWriter, r *http.Request) {
	result, err := s.ledger.ReleaseDomain(r.Context(), r.PathValue("id"), r.PathValue("domain"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.SetPrimary(r.Context(), r.PathValue("id"), r.PathValue("domain")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.detector.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type syncDomainsRequest struct {
	OrgID *string `json:"org_id"`
}

func (s *Server) handleSyncDomains(w http.ResponseWriter, r *http.Request) {
	var req syncDomainsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}

	report, err := s.ledger.SyncDomains(r.Context(), req.OrgID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type migrateRequest struct {
	TargetOrgID string   `json:"target_org_id"`
	UserIDs     []string `json:"user_ids"`
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.TargetOrgID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "target_org_id is required")
		return
	}

	report, err := s.migrator.MigrateMembers(r.Context(), r.PathValue("id"), req.TargetOrgID, req.UserIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type auditRequest struct {
	Repair bool `json:"repair"`
}

func (s *Server) handleAuditMemberships(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}

	report, err := s.auditor.AuditMemberships(r.Context(), r.PathValue("id"), req.Repair)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type tierResponse struct {
	OrgID string         `json:"org_id"`
	Tier  reconcile.Tier `json:"tier"`
	Fires *int           `json:"fires,omitempty"`
}

// handleTier derives the organization's tier. The optional has_users and
// has_engaged_users query parameters supply the engagement context; without
// has_users the classifier runs in its backward-compatible mode.
func (s *Server) handleTier(w http.ResponseWriter, r *http.Request) {
	org, err := s.orgs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var ec reconcile.EngagementContext
	if v := r.URL.Query().Get("has_users"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "has_users must be a boolean")
			return
		}
		ec.HasUsers = &b
	}
	if v := r.URL.Query().Get("has_engaged_users"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "has_engaged_users must be a boolean")
			return
		}
		ec.HasEngagedUsers = &b
	}

	resp := tierResponse{
		OrgID: org.ID,
		Tier:  reconcile.DeriveTier(org, ec),
	}
	if org.EngagementScore != nil {
		fires := reconcile.ScoreToFires(*org.EngagementScore)
		resp.Fires = &fires
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListStakeholders(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("id")
	if _, err := s.orgs.Get(r.Context(), orgID); err != nil {
		writeError(w, err)
		return
	}

	stakeholders, err := s.stakeholders.ListByOrg(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stakeholders": stakeholders})
}

type upsertStakeholderRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpsertStakeholder(w http.ResponseWriter, r *http.Request) {
	var req upsertStakeholderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	switch req.Role {
	case models.StakeholderRoleOwner, models.StakeholderRoleInterested, models.StakeholderRoleConnected:
	default:
		writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "unknown stakeholder role")
		return
	}

	orgID := r.PathValue("id")
	if _, err := s.orgs.Get(r.Context(), orgID); err != nil {
		writeError(w, err)
		return
	}

	sh := &models.Stakeholder{
		OrgID:     orgID,
		UserID:    r.PathValue("userID"),
		Role:      req.Role,
		CreatedAt: time.Now(),
	}
	if err := s.stakeholders.Upsert(r.Context(), sh); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sh)
}

func (s *Server) handleDeleteStakeholder(w http.ResponseWriter, r *http.Request) {
	err := s.stakeholders.Delete(r.Context(), r.PathValue("id"), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListExcludedDomains(w http.ResponseWriter, r *http.Request) {
	entries, err := s.excluded.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"excluded_domains": entries})
}

type addExcludedDomainRequest struct {
	Domain    string `json:"domain"`
	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by"`
}

func (s *Server) handleAddExcludedDomain(w http.ResponseWriter, r *http.Request) {
	var req addExcludedDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	domain, err := reconcile.NormalizeDomain(req.Domain)
	if err != nil {
		writeError(w, err)
		return
	}

	entry := &models.ExcludedDomain{
		Domain:    domain,
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
		CreatedAt: time.Now(),
	}
	if err := s.excluded.Add(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveExcludedDomain(w http.ResponseWriter, r *http.Request) {
	if err := s.excluded.Remove(r.Context(), r.PathValue("domain")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind           string            `json:"kind"`
	Message        string            `json:"message"`
	ConflictingOrg *reconcile.OrgRef `json:"conflicting_org,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// writeError maps reconcile error kinds and store sentinels onto status
// codes. Wrapped causes stay server-side; only the kind and message go out.
func writeError(w http.ResponseWriter, err error) {
	var re *reconcile.Error
	if errors.As(err, &re) {
		status := http.StatusInternalServerError
		switch re.Kind {
		case reconcile.KindInvalidRequest:
			status = http.StatusBadRequest
		case reconcile.KindNotFound:
			status = http.StatusNotFound
		case reconcile.KindDomainConflict:
			status = http.StatusConflict
		case reconcile.KindInvalidDomainFormat,
			reconcile.KindOperationNotApplicable,
			reconcile.KindInvalidTarget,
			reconcile.KindNoMembersFound:
			status = http.StatusUnprocessableEntity
		case reconcile.KindUpstreamUnavailable:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorBody{Error: errorDetail{
			Kind:           string(re.Kind),
			Message:        re.Message,
			ConflictingOrg: re.ConflictingOrg,
		}})
		return
	}

	switch {
	case errors.Is(err, store.ErrOrganizationNotFound),
		errors.Is(err, store.ErrClaimNotFound),
		errors.Is(err, store.ErrMembershipNotFound),
		errors.Is(err, store.ErrStakeholderNotFound),
		errors.Is(err, store.ErrContactNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrLastOwner):
		writeErrorMessage(w, http.StatusConflict, "last_owner", err.Error())
	case errors.Is(err, store.ErrExcludedDomainExists),
		errors.Is(err, store.ErrDomainAlreadyClaimed),
		errors.Is(err, store.ErrOrganizationAlreadyExists):
		writeErrorMessage(w, http.StatusConflict, "already_exists", err.Error())
	default:
		writeErrorMessage(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
