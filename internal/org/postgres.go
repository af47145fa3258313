package org

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// PostgresStore persists organizations in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orgColumns = `id, slug, name, admin_email, active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, o *Org) error {
	_, err := s.db.ExecContext(ctx,
		`insert into organizations (`+orgColumns+`) values ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID.String(), o.Slug, o.Name, o.AdminEmail, o.Active, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("organization slug %q: %w", o.Slug, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*Org, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where slug = lower($1)`, slug)
	return scanOrg(row, slug)
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrgID) (*Org, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where id = $1`, orgID.String())
	return scanOrg(row, orgID.String())
}

func scanOrg(row *sql.Row, ref string) (*Org, error) {
	var o Org
	var rawID string
	err := row.Scan(&rawID, &o.Slug, &o.Name, &o.AdminEmail, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %q: %w", ref, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	parsed, err := id.ParseOrgID(rawID)
	if err != nil {
		return nil, fmt.Errorf("organization %q has a corrupt id: %w", ref, err)
	}
	o.ID = parsed
	return &o, nil
}
