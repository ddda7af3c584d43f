package reconcile

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the route layer: caller-fixable input problems,
// ownership conflicts, and transient upstream failures are distinguished so
// handlers can map them to status codes without seeing provider detail.
type Kind string

const (
	KindInvalidDomainFormat    Kind = "invalid_domain_format"
	KindOperationNotApplicable Kind = "operation_not_applicable"
	KindDomainConflict         Kind = "domain_conflict"
	KindUpstreamUnavailable    Kind = "upstream_unavailable"
	KindInvalidRequest         Kind = "invalid_request"
	KindInvalidTarget          Kind = "invalid_target"
	KindNoMembersFound         Kind = "no_members_found"
	KindNotFound               Kind = "not_found"
)

// OrgRef identifies an organization in reports and conflict errors.
type OrgRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Error is the typed error returned by every reconcile operation. The wrapped
// cause is for server-side logging only and is never echoed to callers.
type Error struct {
	Kind    Kind
	Message string

	// ConflictingOrg is the current owner, set for KindDomainConflict so the
	// caller can offer a merge instead of an overwrite.
	ConflictingOrg *OrgRef

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

// KindOf returns the Kind of a reconcile error, or "" for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
