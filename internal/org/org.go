// Package org manages the tenant organizations registrations run under.
// Each organization owns a slug used on the public API, an administrator
// mailbox that receives approval requests, and an active flag that gates new
// registrations.
package org

import (
	"strings"
	"time"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// DefaultSlug is resolved when a registration names no organization.
const DefaultSlug = "default"

// Org is one tenant organization.
//
// Invariants:
//   - Slug is non-empty, lowercase, and unique across organizations
//   - AdminEmail is non-empty; approval requests have nowhere to go without it
//   - An inactive organization accepts no new registrations
type Org struct {
	ID         id.OrgID  `json:"id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	AdminEmail string    `json:"admin_email"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New validates and constructs an organization.
func New(orgID id.OrgID, slug, name, adminEmail string, now time.Time) (*Org, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization slug is required")
	}
	if name = strings.TrimSpace(name); name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization name is required")
	}
	if adminEmail = strings.TrimSpace(adminEmail); adminEmail == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization admin email is required")
	}
	return &Org{
		ID:         orgID,
		Slug:       slug,
		Name:       name,
		AdminEmail: adminEmail,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
