// Package directory is the client for the external organization-directory
// service, the system of record for organizations, their member users, and
// domain verification state. The local database is only a cache of it.
package directory

import (
	"context"
	"errors"
)

// Sentinel errors for directory operations
var (
	// ErrNotFound means the organization, membership or domain is absent upstream.
	ErrNotFound = errors.New("directory: not found")

	// ErrUnavailable means the directory call failed and success must not be
	// assumed. Callers surface this as an upstream-unavailable condition.
	ErrUnavailable = errors.New("directory: service unavailable")
)

// Organization is the directory's view of an organization.
type Organization struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Domains []OrgDomain `json:"domains"`
}

// OrgDomain is a domain attached to a directory organization.
type OrgDomain struct {
	Domain   string `json:"domain"`
	Verified bool   `json:"verified"`
}

// Membership is the directory's (user, organization, role) tuple.
type Membership struct {
	ID     string `json:"id"`
	OrgID  string `json:"organization_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
}

// Client is the interface to the external organization-directory service.
// Every call may fail with an error wrapping ErrUnavailable; callers must not
// guess success.
type Client interface {
	// GetOrganization fetches an organization by id.
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)

	// AddDomain attaches a domain to an organization and returns its state,
	// including whether the directory considers it verified.
	AddDomain(ctx context.Context, orgID, domain string) (*OrgDomain, error)

	// RemoveDomain detaches a domain from an organization.
	RemoveDomain(ctx context.Context, orgID, domain string) error

	// CreateMembership adds a user to an organization with the given role.
	CreateMembership(ctx context.Context, orgID, userID, role string) (*Membership, error)

	// DeleteMembership removes a membership by its directory id.
	DeleteMembership(ctx context.Context, membershipID string) error

	// ListMemberships returns every membership of an organization, draining
	// the directory's cursor pagination before returning.
	ListMemberships(ctx context.Context, orgID string) ([]*Membership, error)
}
