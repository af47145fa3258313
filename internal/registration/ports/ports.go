// Package ports declares the outbound collaborator contracts the orchestrator
// consumes. Implementations live elsewhere (HTTP adapters, test fakes); the
// orchestrator only ever sees these interfaces.
package ports

import (
	"context"
	"fmt"

	"registrar/internal/registration/models"
	id "registrar/pkg/domain"
)

// EntityRef identifies a created downstream record.
type EntityRef struct {
	ID   string
	GUID string
}

// AccountCreation is the result of the standalone account create call. The
// group value decides which education branch the plan takes.
type AccountCreation struct {
	EntityRef
	GroupValue models.AccountGroup
}

// ParentLinkage is the system-injected relationship every dependent entity
// needs to attach to its account.
type ParentLinkage struct {
	AccountID   string
	AccountGUID string
}

// AccountCreator is the only standalone contract: the account exists before
// any linkage does.
type AccountCreator interface {
	CreateStandalone(ctx context.Context, data models.AccountData, org id.OrgID) (AccountCreation, error)
}

type AddressCreator interface {
	Create(ctx context.Context, data models.AddressData, linkage ParentLinkage) (EntityRef, error)
}

type ContactCreator interface {
	Create(ctx context.Context, data models.ContactData, linkage ParentLinkage) (EntityRef, error)
}

type IdentityCreator interface {
	Create(ctx context.Context, data models.IdentityData, linkage ParentLinkage) (EntityRef, error)
}

type ManagementCreator interface {
	Create(ctx context.Context, data models.ManagementData, linkage ParentLinkage) (EntityRef, error)
}

// EducationCreator covers both branches; exactly one is invoked per session,
// selected by the account group value.
type EducationCreator interface {
	CreateOT(ctx context.Context, data models.EducationOT, linkage ParentLinkage) (EntityRef, error)
	CreateOTA(ctx context.Context, data models.EducationOTA, linkage ParentLinkage) (EntityRef, error)
}

// EntityServices bundles the per-entity creation backends.
type EntityServices struct {
	Account    AccountCreator
	Address    AddressCreator
	Contact    ContactCreator
	Identity   IdentityCreator
	Management ManagementCreator
	Education  EducationCreator
}

// AccountStatusSetter flips the external account-status field after an
// administrator decision. This is deliberately separate from the decision
// itself: recording the decision never depends on this call succeeding first.
type AccountStatusSetter interface {
	SetStatus(ctx context.Context, accountGUID string, active bool) error
}

// EmailMessage is one outbound notification. Model is the per-template view
// model struct (see service view models); senders render Template with it.
type EmailMessage struct {
	To       string
	Subject  string
	Template string
	Model    any
}

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// DirectoryMatch is a hit from a duplicate lookup.
type DirectoryMatch struct {
	Email    string
	FullName string
}

// MemberDirectory is the primary record store consulted for duplicates.
// A nil match with nil error means "no duplicate found".
type MemberDirectory interface {
	FindByEmail(ctx context.Context, email string) (*DirectoryMatch, error)
	FindByPersonKey(ctx context.Context, firstName, lastName, birthDate string) (*DirectoryMatch, error)
}

// LegacyDirectory is the secondary, independent record store. Email uniqueness
// is checked against both; representative names only live here.
type LegacyDirectory interface {
	FindByEmail(ctx context.Context, email string) (*DirectoryMatch, error)
	FindRepresentative(ctx context.Context, name string) (*DirectoryMatch, error)
}

// OrgContext is the resolved tenant an initiation runs under.
type OrgContext struct {
	ID         id.OrgID
	Slug       string
	Name       string
	AdminEmail string
}

// OrgResolver maps an org slug (or "" for the default org) to its context.
// Unknown slugs and ids return sentinel.ErrNotFound wrapped.
type OrgResolver interface {
	Resolve(ctx context.Context, slug string) (OrgContext, error)
	ResolveID(ctx context.Context, orgID id.OrgID) (OrgContext, error)
}

// CreationError tags a failed downstream create call with the entity and
// whether a retry is worthwhile.
type CreationError struct {
	Entity    models.EntityType
	Retryable bool
	Err       error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create %s: %v", e.Entity, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// NewCreationError wraps err as a retryable-tagged creation failure.
func NewCreationError(entity models.EntityType, retryable bool, err error) *CreationError {
	return &CreationError{Entity: entity, Retryable: retryable, Err: err}
}
