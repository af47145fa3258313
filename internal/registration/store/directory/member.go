// Package directory implements the duplicate-lookup record stores. Two
// independent backends serve the anti-duplication layer: the member directory
// (primary) and the legacy directory inherited from the previous membership
// system. Email uniqueness is checked against both; person keys live only in
// the primary, representative names only in the legacy store.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"registrar/internal/registration/ports"
)

// MemberStore is the primary member directory, backed by PostgreSQL through
// database/sql.
type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

// FindByEmail looks a member up by email, case-insensitively. No match is
// (nil, nil), not an error.
func (s *MemberStore) FindByEmail(ctx context.Context, email string) (*ports.DirectoryMatch, error) {
	query := `
		SELECT email, first_name || ' ' || last_name
		FROM members
		WHERE lower(email) = lower($1)
		LIMIT 1
	`
	return s.queryOne(ctx, query, strings.TrimSpace(email))
}

// FindByPersonKey looks a member up by the (first name, last name, birth
// date) natural key.
func (s *MemberStore) FindByPersonKey(ctx context.Context, firstName, lastName, birthDate string) (*ports.DirectoryMatch, error) {
	query := `
		SELECT email, first_name || ' ' || last_name
		FROM members
		WHERE lower(first_name) = lower($1)
		  AND lower(last_name) = lower($2)
		  AND birth_date = $3
		LIMIT 1
	`
	return s.queryOne(ctx, query, strings.TrimSpace(firstName), strings.TrimSpace(lastName), birthDate)
}

func (s *MemberStore) queryOne(ctx context.Context, query string, args ...any) (*ports.DirectoryMatch, error) {
	var match ports.DirectoryMatch
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&match.Email, &match.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("member directory lookup: %w", err)
	}
	return &match, nil
}
