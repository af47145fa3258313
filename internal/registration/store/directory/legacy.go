package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"registrar/internal/registration/ports"
)

// LegacyStore is the directory inherited from the previous membership
// system. It runs on its own PostgreSQL cluster and is queried through pgx
// directly; schema and collation rules differ from the primary directory.
type LegacyStore struct {
	pool *pgxpool.Pool
}

func NewLegacyStore(pool *pgxpool.Pool) *LegacyStore {
	return &LegacyStore{pool: pool}
}

// FindByEmail looks a legacy member up by email. No match is (nil, nil).
func (s *LegacyStore) FindByEmail(ctx context.Context, email string) (*ports.DirectoryMatch, error) {
	query := `
		SELECT email_address, full_name
		FROM legacy_members
		WHERE lower(email_address) = lower($1)
		LIMIT 1
	`
	return s.queryOne(ctx, query, strings.TrimSpace(email))
}

// FindRepresentative looks up a registered representative by display name.
// Representative records only exist in the legacy system.
func (s *LegacyStore) FindRepresentative(ctx context.Context, name string) (*ports.DirectoryMatch, error) {
	query := `
		SELECT coalesce(email_address, ''), full_name
		FROM legacy_representatives
		WHERE lower(full_name) = lower($1)
		LIMIT 1
	`
	return s.queryOne(ctx, query, strings.TrimSpace(name))
}

func (s *LegacyStore) queryOne(ctx context.Context, query string, args ...any) (*ports.DirectoryMatch, error) {
	var match ports.DirectoryMatch
	err := s.pool.QueryRow(ctx, query, args...).Scan(&match.Email, &match.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("legacy directory lookup: %w", err)
	}
	return &match, nil
}
