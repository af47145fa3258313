package validation

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
)

// DuplicateValidator consults both record stores for an existing person. The
// three lookup groups (email in both directories, person key in the member
// directory, representative name in the legacy one) run concurrently; the
// first hit wins and later hits are discarded.
//
// A directory outage is not a duplicate. Unless Strict is set, a failed
// lookup is logged and the person is treated as new; registration staying
// open during a directory incident is preferred over false rejections.
type DuplicateValidator struct {
	members ports.MemberDirectory
	legacy  ports.LegacyDirectory
	logger  *slog.Logger

	// Strict turns lookup failures into validator errors instead of
	// treating them as "no duplicate found".
	Strict bool

	mu   sync.Mutex
	last *DuplicateHit
}

func NewDuplicateValidator(members ports.MemberDirectory, legacy ports.LegacyDirectory, logger *slog.Logger) *DuplicateValidator {
	return &DuplicateValidator{members: members, legacy: legacy, logger: logger}
}

func (v *DuplicateValidator) Name() string { return ValidatorDuplicate }

// LastHit returns the duplicate found by the most recent Validate call, or
// nil. The pipeline reads it after the run to enrich the outcome.
func (v *DuplicateValidator) LastHit() *DuplicateHit {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

func (v *DuplicateValidator) Validate(ctx context.Context, req *models.RegistrationRequest) (Result, error) {
	v.mu.Lock()
	v.last = nil
	v.mu.Unlock()

	type lookup struct {
		matchedOn string
		field     string
		run       func(context.Context) (*ports.DirectoryMatch, error)
	}

	lookups := []lookup{
		{
			matchedOn: "email",
			field:     "account.email",
			run: func(ctx context.Context) (*ports.DirectoryMatch, error) {
				return v.members.FindByEmail(ctx, req.Account.Email)
			},
		},
		{
			matchedOn: "email",
			field:     "account.email",
			run: func(ctx context.Context) (*ports.DirectoryMatch, error) {
				return v.legacy.FindByEmail(ctx, req.Account.Email)
			},
		},
		{
			matchedOn: "person_key",
			field:     "account",
			run: func(ctx context.Context) (*ports.DirectoryMatch, error) {
				return v.members.FindByPersonKey(ctx, req.Account.FirstName, req.Account.LastName, req.Account.BirthDate)
			},
		},
	}
	if mgmt := req.Management; mgmt != nil && mgmt.IsRepresentative && mgmt.RepresentativeName != "" {
		lookups = append(lookups, lookup{
			matchedOn: "representative_name",
			field:     "management.representative_name",
			run: func(ctx context.Context) (*ports.DirectoryMatch, error) {
				return v.legacy.FindRepresentative(ctx, mgmt.RepresentativeName)
			},
		})
	}

	var (
		mu   sync.Mutex
		res  Result
		hit  *DuplicateHit
		g, _ = errgroup.WithContext(ctx)
	)
	for _, lk := range lookups {
		g.Go(func() error {
			match, err := lk.run(ctx)
			if err != nil {
				if v.Strict {
					return err
				}
				v.logger.WarnContext(ctx, "duplicate lookup failed, treating as no duplicate",
					"matched_on", lk.matchedOn, "error", err)
				return nil
			}
			if match == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if hit == nil {
				hit = &DuplicateHit{ExistingEmail: match.Email, MatchedOn: lk.matchedOn}
				res.addError(lk.field, "duplicate", "an existing record matches this "+lk.matchedOn)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	v.mu.Lock()
	v.last = hit
	v.mu.Unlock()
	return res, nil
}
