package org

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"registrar/internal/registration/ports"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// Resolver maps organization references to the context registrations run
// under. It implements ports.OrgResolver.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve looks up an organization by slug, falling back to the default
// organization for an empty slug. Inactive organizations resolve as not
// found so suspended tenants stop accepting registrations.
func (r *Resolver) Resolve(ctx context.Context, slug string) (ports.OrgContext, error) {
	if slug == "" {
		slug = DefaultSlug
	}
	o, err := r.store.FindBySlug(ctx, slug)
	if err != nil {
		return ports.OrgContext{}, err
	}
	return r.toContext(ctx, o)
}

// ResolveID looks up an organization by its id.
func (r *Resolver) ResolveID(ctx context.Context, orgID id.OrgID) (ports.OrgContext, error) {
	o, err := r.store.FindByID(ctx, orgID)
	if err != nil {
		return ports.OrgContext{}, err
	}
	return r.toContext(ctx, o)
}

func (r *Resolver) toContext(ctx context.Context, o *Org) (ports.OrgContext, error) {
	if !o.Active {
		r.logger.WarnContext(ctx, "registration against inactive organization", "slug", o.Slug)
		return ports.OrgContext{}, fmt.Errorf("organization %q is inactive: %w", o.Slug, sentinel.ErrNotFound)
	}
	return ports.OrgContext{
		ID:         o.ID,
		Slug:       o.Slug,
		Name:       o.Name,
		AdminEmail: o.AdminEmail,
	}, nil
}

// SeedDefault creates the default organization if the store has none yet.
// Used at startup so a fresh deployment accepts registrations immediately.
func SeedDefault(ctx context.Context, store Store, adminEmail string, logger *slog.Logger) error {
	if _, err := store.FindBySlug(ctx, DefaultSlug); err == nil {
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}

	o, err := New(id.OrgID(uuid.New()), DefaultSlug, "Default Organization", adminEmail, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := store.Create(ctx, o); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil // lost a startup race, someone else seeded it
		}
		return err
	}
	logger.InfoContext(ctx, "seeded default organization", "admin_email", adminEmail)
	return nil
}
