// Package server is the JSON admin surface over the reconciliation engine.
// Handlers are thin: decode, call into reconcile or the stores, encode,
// mapping error kinds onto status codes.
package server

import (
	"net/http"

	"github.com/memberdesk/memberdesk/internal/directory"
	"github.com/memberdesk/memberdesk/internal/reconcile"
	"github.com/memberdesk/memberdesk/internal/store"
)

type Server struct {
	ledger   *reconcile.Ledger
	detector *reconcile.Detector
	migrator *reconcile.Migrator
	auditor  *reconcile.Auditor

	orgs         store.OrganizationStore
	claims       store.DomainClaimStore
	stakeholders store.StakeholderStore
	excluded     store.ExcludedDomainStore
}

// Stores bundles the store interfaces the server needs.
type Stores struct {
	Organizations store.OrganizationStore
	Claims        store.DomainClaimStore
	Memberships   store.MembershipStore
	Stakeholders  store.StakeholderStore
	Contacts      store.ContactStore
	Excluded      store.ExcludedDomainStore
}

// New wires the reconciliation components over the shared stores and
// directory client.
func New(stores Stores, dir directory.Client) *Server {
	return &Server{
		ledger:       reconcile.NewLedger(stores.Organizations, stores.Claims, stores.Contacts, dir),
		detector:     reconcile.NewDetector(stores.Organizations, stores.Claims, stores.Memberships, stores.Excluded),
		migrator:     reconcile.NewMigrator(stores.Organizations, stores.Memberships, dir),
		auditor:      reconcile.NewAuditor(stores.Organizations, stores.Memberships, dir),
		orgs:         stores.Organizations,
		claims:       stores.Claims,
		stakeholders: stores.Stakeholders,
		excluded:     stores.Excluded,
	}
}

// Register attaches every route to the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orgs/{id}/domains", s.handleClaimDomain)
	mux.HandleFunc("GET /api/orgs/{id}/domains", s.handleListDomains)
	mux.HandleFunc("DELETE /api/orgs/{id}/domains/{domain}", s.handleReleaseDomain)
	mux.HandleFunc("PUT /api/orgs/{id}/domains/{domain}/primary", s.handleSetPrimary)

	mux.HandleFunc("GET /api/reconciliation/report", s.handleReport)
	mux.HandleFunc("POST /api/reconciliation/sync-domains", s.handleSyncDomains)

	mux.HandleFunc("POST /api/orgs/{id}/migrate", s.handleMigrate)
	mux.HandleFunc("POST /api/orgs/{id}/audit-memberships", s.handleAuditMemberships)
	mux.HandleFunc("GET /api/orgs/{id}/tier", s.handleTier)

	mux.HandleFunc("GET /api/orgs/{id}/stakeholders", s.handleListStakeholders)
	mux.HandleFunc("PUT /api/orgs/{id}/stakeholders/{userID}", s.handleUpsertStakeholder)
	mux.HandleFunc("DELETE /api/orgs/{id}/stakeholders/{userID}", s.handleDeleteStakeholder)

	mux.HandleFunc("GET /api/excluded-domains", s.handleListExcludedDomains)
	mux.HandleFunc("POST /api/excluded-domains", s.handleAddExcludedDomain)
	mux.HandleFunc("DELETE /api/excluded-domains/{domain}", s.handleRemoveExcludedDomain)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
