// Package coordinator drives the entity-creation plan of an approved
// registration: account first, then every dependent entity the payload
// carries, with per-entity failure isolation and a lenient overall success
// policy.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	"registrar/internal/registration/progress"
	"registrar/pkg/requestcontext"
)

// Coordinator executes creation plans against the downstream entity services.
// It mutates the session's progress record through the tracker; persisting
// the mutated session is the caller's job.
type Coordinator struct {
	services ports.EntityServices
	tracker  *progress.Tracker
	logger   *slog.Logger
}

func New(services ports.EntityServices, tracker *progress.Tracker, logger *slog.Logger) *Coordinator {
	return &Coordinator{services: services, tracker: tracker, logger: logger}
}

// Execute runs the plan for everything not yet created. The account is the
// gate: until it exists nothing else is attempted, and an account failure
// fails the whole run. Dependent entities run concurrently and independently;
// one failing never stops the others.
//
// The run succeeds when the account exists and the dependents that failed do
// not outnumber the ones that succeeded. A partially populated account is
// still usable and completable via retry.
func (c *Coordinator) Execute(ctx context.Context, sess *models.RegistrationSession) models.CreationResult {
	now := requestcontext.Now(ctx)
	p := &sess.Progress

	var result models.CreationResult

	if acct := p.Entity(models.EntityAccount); acct == nil || !acct.Success {
		if err := c.createAccount(ctx, sess, now); err != nil {
			c.recordFailure(ctx, p, models.EntityAccount, err, now)
			result.FailedEntities = append(result.FailedEntities, models.EntityAccount)
			return result
		}
		result.CreatedEntities = append(result.CreatedEntities, models.EntityAccount)
	}

	acct := p.Entity(models.EntityAccount)
	result.AccountID = acct.EntityID
	linkage := ports.ParentLinkage{AccountID: acct.EntityID, AccountGUID: p.AccountGUID}

	var (
		mu        sync.Mutex
		succeeded []models.EntityType
		failed    []models.EntityType
	)
	record := func(entity models.EntityType, ref ports.EntityRef, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			c.recordFailure(ctx, p, entity, err, now)
			failed = append(failed, entity)
			return
		}
		c.tracker.RecordSuccess(p, entity, ref.ID, ref.GUID, now)
		succeeded = append(succeeded, entity)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, entity := range c.remaining(p) {
		create, ok := c.creatorFor(entity, &sess.UserData, linkage)
		if !ok {
			continue
		}
		g.Go(func() error {
			ref, err := create(gctx)
			record(entity, ref, err)
			return nil // failures are isolated, never group-fatal
		})
	}
	_ = g.Wait() // goroutines always return nil

	branch, warning := c.educationStep(p, &sess.UserData)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	if branch == "" {
		if warning != "" {
			c.tracker.RecordSkip(p, models.EntityEducation, warning, now)
			result.SkippedEntities = append(result.SkippedEntities, models.EntityEducation)
		}
	} else {
		ref, err := c.createEducation(ctx, branch, &sess.UserData, linkage)
		record(models.EntityEducation, ref, err)
	}

	result.CreatedEntities = append(result.CreatedEntities, orderedSubset(succeeded)...)
	result.FailedEntities = orderedSubset(failed)
	result.Success = len(result.FailedEntities) <= len(succeeded)
	return result
}

// Retry reruns creation for one entity from the retry queue.
func (c *Coordinator) Retry(ctx context.Context, sess *models.RegistrationSession, entity models.EntityType) error {
	now := requestcontext.Now(ctx)
	p := &sess.Progress

	if entity == models.EntityAccount {
		if err := c.createAccount(ctx, sess, now); err != nil {
			c.recordFailure(ctx, p, entity, err, now)
			return err
		}
		return nil
	}

	acct := p.Entity(models.EntityAccount)
	if acct == nil || !acct.Success {
		return fmt.Errorf("cannot retry %s before the account exists", entity)
	}
	linkage := ports.ParentLinkage{AccountID: acct.EntityID, AccountGUID: p.AccountGUID}

	var (
		ref ports.EntityRef
		err error
	)
	if entity == models.EntityEducation {
		branch, warning := c.educationStep(p, &sess.UserData)
		if branch == "" {
			if warning == "" {
				return errors.New("education has nothing left to retry")
			}
			return errors.New(warning)
		}
		ref, err = c.createEducation(ctx, branch, &sess.UserData, linkage)
	} else {
		create, ok := c.creatorFor(entity, &sess.UserData, linkage)
		if !ok {
			return fmt.Errorf("no data to retry %s with", entity)
		}
		ref, err = create(ctx)
	}
	if err != nil {
		c.recordFailure(ctx, p, entity, err, now)
		return err
	}
	c.tracker.RecordSuccess(p, entity, ref.ID, ref.GUID, now)
	return nil
}

func (c *Coordinator) createAccount(ctx context.Context, sess *models.RegistrationSession, now time.Time) error {
	creation, err := c.services.Account.CreateStandalone(ctx, sess.UserData.Account, sess.OrgID)
	if err != nil {
		return err
	}
	c.tracker.RecordSuccess(&sess.Progress, models.EntityAccount, creation.ID, creation.GUID, now)
	sess.Progress.AccountGroup = creation.GroupValue
	c.logger.InfoContext(ctx, "account created",
		"session_id", sess.ID, "account_group", int(creation.GroupValue))
	return nil
}

// remaining lists the dependent entities still owed a creation attempt:
// planned, not yet succeeded, retry budget not spent. Education is handled
// separately because its branch depends on the account group.
func (c *Coordinator) remaining(p *models.Progress) []models.EntityType {
	out := make([]models.EntityType, 0, len(p.Entities))
	for i := range p.Entities {
		row := &p.Entities[i]
		switch row.EntityType {
		case models.EntityAccount, models.EntityEducation:
			continue
		}
		if row.Success || row.RetryCount >= c.tracker.MaxRetries {
			continue
		}
		out = append(out, row.EntityType)
	}
	return out
}

// creatorFor binds an entity type to its downstream create call. ok=false
// means the payload has no data for it.
func (c *Coordinator) creatorFor(entity models.EntityType, req *models.RegistrationRequest, linkage ports.ParentLinkage) (func(context.Context) (ports.EntityRef, error), bool) {
	switch entity {
	case models.EntityAddress:
		if req.Address == nil {
			return nil, false
		}
		return func(ctx context.Context) (ports.EntityRef, error) {
			return c.services.Address.Create(ctx, *req.Address, linkage)
		}, true
	case models.EntityContact:
		if req.Contact == nil {
			return nil, false
		}
		return func(ctx context.Context) (ports.EntityRef, error) {
			return c.services.Contact.Create(ctx, *req.Contact, linkage)
		}, true
	case models.EntityIdentity:
		if req.Identity == nil {
			return nil, false
		}
		return func(ctx context.Context) (ports.EntityRef, error) {
			return c.services.Identity.Create(ctx, *req.Identity, linkage)
		}, true
	case models.EntityManagement:
		if req.Management == nil {
			return nil, false
		}
		return func(ctx context.Context) (ports.EntityRef, error) {
			return c.services.Management.Create(ctx, *req.Management, linkage)
		}, true
	default:
		return nil, false
	}
}

// educationStep decides what to do about education. The account group is
// authoritative; the caller-supplied education type is advisory only. A
// non-empty warning with an empty branch means skip.
func (c *Coordinator) educationStep(p *models.Progress, req *models.RegistrationRequest) (models.EducationType, string) {
	row := p.Entity(models.EntityEducation)
	if row == nil || row.Success || row.RetryCount >= c.tracker.MaxRetries {
		return "", ""
	}

	branch := p.AccountGroup.EducationBranch()
	if branch == "" {
		return "", fmt.Sprintf("education skipped: account group %d maps to no branch", int(p.AccountGroup))
	}
	switch branch {
	case models.EducationTypeOT:
		if req.EducationOT == nil {
			return "", "education skipped: account group selects OT but no OT data was supplied"
		}
	case models.EducationTypeOTA:
		if req.EducationOTA == nil {
			return "", "education skipped: account group selects OTA but no OTA data was supplied"
		}
	}
	if req.EducationType != "" && req.EducationType != branch {
		// Divergence is tolerated; the group decides, the flag just mislabeled it.
		return branch, fmt.Sprintf("education type %q requested but account group selects %q", req.EducationType, branch)
	}
	return branch, ""
}

func (c *Coordinator) createEducation(ctx context.Context, branch models.EducationType, req *models.RegistrationRequest, linkage ports.ParentLinkage) (ports.EntityRef, error) {
	if branch == models.EducationTypeOTA {
		return c.services.Education.CreateOTA(ctx, *req.EducationOTA, linkage)
	}
	return c.services.Education.CreateOT(ctx, *req.EducationOT, linkage)
}

// recordFailure books the failure and honors the retryable tag on creation
// errors: a non-retryable failure never sits on the retry queue.
func (c *Coordinator) recordFailure(ctx context.Context, p *models.Progress, entity models.EntityType, err error, now time.Time) {
	c.tracker.RecordFailure(p, entity, err, now)

	var cErr *ports.CreationError
	if errors.As(err, &cErr) && !cErr.Retryable {
		p.DequeueRetry(entity)
	}
	c.logger.WarnContext(ctx, "entity creation failed", "entity", entity, "error", err)
}

// orderedSubset re-sorts a set of entity types into dependency order.
func orderedSubset(entities []models.EntityType) []models.EntityType {
	if len(entities) == 0 {
		return nil
	}
	member := make(map[models.EntityType]bool, len(entities))
	for _, e := range entities {
		member[e] = true
	}
	out := make([]models.EntityType, 0, len(entities))
	for _, e := range models.AllEntityTypes {
		if member[e] {
			out = append(out, e)
		}
	}
	return out
}
