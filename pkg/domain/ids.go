// Package domain holds typed identifiers shared across modules.
//
// IDs are distinct named types over uuid.UUID so a SessionID can never be
// passed where an OrgID is expected. Parse helpers enforce the invariant
// that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "registrar/pkg/domain-errors"
)

type (
	// SessionID identifies one registration workflow instance.
	SessionID uuid.UUID
	// OrgID identifies the tenant organization a registration belongs to.
	OrgID uuid.UUID
	// AccountID identifies the account record created downstream.
	AccountID uuid.UUID
)

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id OrgID) String() string     { return uuid.UUID(id).String() }
func (id AccountID) String() string { return uuid.UUID(id).String() }

// The IDs travel through JSON (session records, API responses), so they
// serialize as canonical UUID strings rather than byte arrays.

func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id OrgID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id AccountID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *OrgID) UnmarshalText(b []byte) error {
	parsed, err := ParseOrgID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AccountID) UnmarshalText(b []byte) error {
	parsed, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewSessionID generates a fresh random session identifier.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseSessionID parses and validates a session ID from its string form.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parse(s, "session id")
	return SessionID(u), err
}

// ParseOrgID parses and validates an organization ID from its string form.
func ParseOrgID(s string) (OrgID, error) {
	u, err := parse(s, "org id")
	return OrgID(u), err
}

// ParseAccountID parses and validates an account ID from its string form.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parse(s, "account id")
	return AccountID(u), err
}

func parse(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid uuid", label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil uuid", label)
	}
	return u, nil
}
