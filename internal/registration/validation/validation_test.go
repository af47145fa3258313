package validation

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/testutil"
)

func validRequest() *models.RegistrationRequest {
	return &models.RegistrationRequest{
		Account: models.AccountData{
			Email:     "jane.doe@example.com",
			FirstName: "Jane",
			LastName:  "Doe",
			BirthDate: "1990-04-12",
		},
		Address: &models.AddressData{
			Street:     "1 Main St",
			City:       "Springfield",
			PostalCode: "12345",
			Country:    "NL",
		},
		Contact: &models.ContactData{
			PrimaryEmail: "jane.doe@example.com",
		},
	}
}

func fieldsOf(res Result) []string {
	fields := make([]string, 0, len(res.Errors))
	for _, fe := range res.Errors {
		fields = append(fields, fe.Field)
	}
	return fields
}

func TestEntityValidator(t *testing.T) {
	v := NewEntityValidator()

	tests := []struct {
		name       string
		mutate     func(*models.RegistrationRequest)
		wantFields []string
	}{
		{
			name:   "valid request passes",
			mutate: func(*models.RegistrationRequest) {},
		},
		{
			name:       "missing email",
			mutate:     func(r *models.RegistrationRequest) { r.Account.Email = "" },
			wantFields: []string{"account.email"},
		},
		{
			name:       "malformed email",
			mutate:     func(r *models.RegistrationRequest) { r.Account.Email = "not-an-email" },
			wantFields: []string{"account.email"},
		},
		{
			name:       "malformed birth date",
			mutate:     func(r *models.RegistrationRequest) { r.Account.BirthDate = "12/04/1990" },
			wantFields: []string{"account.birth_date"},
		},
		{
			name: "unknown document type",
			mutate: func(r *models.RegistrationRequest) {
				r.Identity = &models.IdentityData{DocumentType: "library_card", DocumentNumber: "X1"}
			},
			wantFields: []string{"identity.document_type"},
		},
		{
			name: "representative without a name",
			mutate: func(r *models.RegistrationRequest) {
				r.Management = &models.ManagementData{IsRepresentative: true}
			},
			wantFields: []string{"management.representative_name"},
		},
		{
			name: "incomplete address reports each field once",
			mutate: func(r *models.RegistrationRequest) {
				r.Address = &models.AddressData{Street: "1 Main St"}
			},
			wantFields: []string{"address.city", "address.postal_code", "address.country"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			res, err := v.Validate(context.Background(), req)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.wantFields, fieldsOf(res))
		})
	}
}

func TestCrossEntityValidator(t *testing.T) {
	v := NewCrossEntityValidator()

	t.Run("primary contact email must match account email", func(t *testing.T) {
		req := validRequest()
		req.Contact.PrimaryEmail = "other@example.com"

		res, err := v.Validate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []string{"contact.primary_email"}, fieldsOf(res))
	})

	t.Run("secondary email must differ from primary", func(t *testing.T) {
		req := validRequest()
		req.Contact.SecondaryEmail = req.Contact.PrimaryEmail

		res, err := v.Validate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []string{"contact.secondary_email"}, fieldsOf(res))
	})

	t.Run("residence permit requires an address", func(t *testing.T) {
		req := validRequest()
		req.Address = nil
		req.Identity = &models.IdentityData{DocumentType: "residence_permit", DocumentNumber: "RP-1"}

		res, err := v.Validate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []string{"address"}, fieldsOf(res))
	})

	t.Run("education type contradicting branch data warns without failing", func(t *testing.T) {
		req := validRequest()
		req.EducationType = models.EducationTypeOT
		req.EducationOTA = &models.EducationOTA{Institution: "Acme", FieldOfWork: "Care"}

		res, err := v.Validate(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, res.Errors)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "only OTA data supplied")
	})
}

func TestBusinessRuleValidator(t *testing.T) {
	v := NewBusinessRuleValidator(DefaultBusinessRules())
	ctx := testutil.ContextWithFixedTime()

	t.Run("valid request passes", func(t *testing.T) {
		res, err := v.Validate(ctx, validRequest())
		require.NoError(t, err)
		assert.Empty(t, res.Errors)
	})

	t.Run("restricted email domain", func(t *testing.T) {
		req := validRequest()
		req.Account.Email = "jane@mailinator.com"

		res, err := v.Validate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"account.email"}, fieldsOf(res))
	})

	t.Run("under minimum age as of the request clock", func(t *testing.T) {
		req := validRequest()
		// Fixed clock is 2025-06-15; turns 16 the next day.
		req.Account.BirthDate = "2009-06-16"

		res, err := v.Validate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"account.birth_date"}, fieldsOf(res))
	})

	t.Run("sixteenth birthday today is old enough", func(t *testing.T) {
		req := validRequest()
		req.Account.BirthDate = "2009-06-15"

		res, err := v.Validate(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, res.Errors)
	})

	t.Run("passed away excludes active roles", func(t *testing.T) {
		req := validRequest()
		req.Management = &models.ManagementData{PassedAway: true, IsBoardMember: true}

		res, err := v.Validate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"management.passed_away"}, fieldsOf(res))
	})
}

// fakeDirectory serves both directory interfaces for duplicate tests.
type fakeDirectory struct {
	byEmail     map[string]*ports.DirectoryMatch
	byPersonKey *ports.DirectoryMatch
	byRepName   map[string]*ports.DirectoryMatch
	err         error
}

func (f *fakeDirectory) FindByEmail(_ context.Context, email string) (*ports.DirectoryMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byEmail[email], nil
}

func (f *fakeDirectory) FindByPersonKey(_ context.Context, _, _, _ string) (*ports.DirectoryMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byPersonKey, nil
}

func (f *fakeDirectory) FindRepresentative(_ context.Context, name string) (*ports.DirectoryMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byRepName[name], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDuplicateValidator(t *testing.T) {
	t.Run("no match anywhere", func(t *testing.T) {
		v := NewDuplicateValidator(&fakeDirectory{}, &fakeDirectory{}, discardLogger())

		res, err := v.Validate(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Empty(t, res.Errors)
		assert.Nil(t, v.LastHit())
	})

	t.Run("email match in the member directory", func(t *testing.T) {
		members := &fakeDirectory{byEmail: map[string]*ports.DirectoryMatch{
			"jane.doe@example.com": {Email: "jane.doe@example.com", FullName: "Jane Doe"},
		}}
		v := NewDuplicateValidator(members, &fakeDirectory{}, discardLogger())

		res, err := v.Validate(context.Background(), validRequest())
		require.NoError(t, err)
		require.Len(t, res.Errors, 1)

		hit := v.LastHit()
		require.NotNil(t, hit)
		assert.Equal(t, "jane.doe@example.com", hit.ExistingEmail)
		assert.Equal(t, "email", hit.MatchedOn)
	})

	t.Run("person key match in the member directory", func(t *testing.T) {
		members := &fakeDirectory{byPersonKey: &ports.DirectoryMatch{Email: "old@example.com"}}
		v := NewDuplicateValidator(members, &fakeDirectory{}, discardLogger())

		_, err := v.Validate(context.Background(), validRequest())
		require.NoError(t, err)

		hit := v.LastHit()
		require.NotNil(t, hit)
		assert.Equal(t, "person_key", hit.MatchedOn)
	})

	t.Run("representative name only checked when the flag is set", func(t *testing.T) {
		legacy := &fakeDirectory{byRepName: map[string]*ports.DirectoryMatch{
			"Rep Example": {Email: "rep@example.com"},
		}}
		v := NewDuplicateValidator(&fakeDirectory{}, legacy, discardLogger())

		req := validRequest()
		req.Management = &models.ManagementData{RepresentativeName: "Rep Example"}
		_, err := v.Validate(context.Background(), req)
		require.NoError(t, err)
		assert.Nil(t, v.LastHit(), "lookup must not run without the representative flag")

		req.Management.IsRepresentative = true
		_, err = v.Validate(context.Background(), req)
		require.NoError(t, err)
		hit := v.LastHit()
		require.NotNil(t, hit)
		assert.Equal(t, "representative_name", hit.MatchedOn)
	})

	t.Run("lookup failure is treated as no duplicate", func(t *testing.T) {
		members := &fakeDirectory{err: errors.New("directory down")}
		v := NewDuplicateValidator(members, &fakeDirectory{}, discardLogger())

		res, err := v.Validate(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Empty(t, res.Errors)
		assert.Nil(t, v.LastHit())
	})

	t.Run("strict mode surfaces lookup failures", func(t *testing.T) {
		members := &fakeDirectory{err: errors.New("directory down")}
		v := NewDuplicateValidator(members, &fakeDirectory{}, discardLogger())
		v.Strict = true

		_, err := v.Validate(context.Background(), validRequest())
		require.Error(t, err)
	})

	t.Run("hit from an earlier run does not leak into the next", func(t *testing.T) {
		members := &fakeDirectory{byEmail: map[string]*ports.DirectoryMatch{
			"jane.doe@example.com": {Email: "jane.doe@example.com"},
		}}
		v := NewDuplicateValidator(members, &fakeDirectory{}, discardLogger())

		_, err := v.Validate(context.Background(), validRequest())
		require.NoError(t, err)
		require.NotNil(t, v.LastHit())

		clean := validRequest()
		clean.Account.Email = "someone.else@example.com"
		clean.Contact.PrimaryEmail = clean.Account.Email
		clean.Account.FirstName = "Else"
		_, err = v.Validate(context.Background(), clean)
		require.NoError(t, err)
		assert.Nil(t, v.LastHit())
	})
}

func newPipeline(members ports.MemberDirectory, legacy ports.LegacyDirectory) *Pipeline {
	return NewPipeline(
		NewEntityValidator(),
		NewCrossEntityValidator(),
		NewBusinessRuleValidator(DefaultBusinessRules()),
		NewDuplicateValidator(members, legacy, discardLogger()),
	)
}

func TestPipelineRun(t *testing.T) {
	ctx := testutil.ContextWithFixedTime()

	t.Run("valid request yields a valid outcome", func(t *testing.T) {
		p := newPipeline(&fakeDirectory{}, &fakeDirectory{})

		outcome, err := p.Run(ctx, validRequest())
		require.NoError(t, err)
		assert.True(t, outcome.Valid)
		assert.NoError(t, outcome.Err())
	})

	t.Run("all layers report and every error is kept", func(t *testing.T) {
		members := &fakeDirectory{byEmail: map[string]*ports.DirectoryMatch{
			"jane@mailinator.com": {Email: "jane@mailinator.com"},
		}}
		p := newPipeline(members, &fakeDirectory{})

		req := validRequest()
		req.Account.Email = "jane@mailinator.com" // restricted domain + duplicate
		req.Account.FirstName = ""                // entity failure
		// contact.primary_email now mismatches: cross-entity failure

		outcome, err := p.Run(ctx, req)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.GreaterOrEqual(t, len(outcome.Errors), 4)
		require.NotNil(t, outcome.Duplicate)
	})

	t.Run("validator fault is a system error, not a validation failure", func(t *testing.T) {
		dup := &fakeDirectory{err: errors.New("boom")}
		strict := NewDuplicateValidator(dup, &fakeDirectory{}, discardLogger())
		strict.Strict = true
		p := NewPipeline(NewEntityValidator(), strict)

		_, err := p.Run(ctx, validRequest())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func TestOutcomeErrPrecedence(t *testing.T) {
	ctx := testutil.ContextWithFixedTime()

	t.Run("duplicate dominates every other failure", func(t *testing.T) {
		members := &fakeDirectory{byEmail: map[string]*ports.DirectoryMatch{
			"jane.doe@example.com": {Email: "jane.doe@example.com"},
		}}
		p := newPipeline(members, &fakeDirectory{})

		req := validRequest()
		req.Account.FirstName = "" // entity failure alongside the duplicate

		outcome, err := p.Run(ctx, req)
		require.NoError(t, err)

		vErr := outcome.Err()
		require.Error(t, vErr)
		assert.True(t, dErrors.HasCode(vErr, dErrors.CodeDuplicate))
		assert.Equal(t, "jane.doe@example.com", dErrors.DetailOf(vErr, "existing_email"))
		assert.Equal(t, "j***@example.com", dErrors.DetailOf(vErr, "masked_email"))
		assert.Equal(t, "email", dErrors.DetailOf(vErr, "matched_on"))
		assert.NotEmpty(t, dErrors.DetailOf(vErr, "suggestion"))
	})

	t.Run("entity dominates cross-entity and business failures", func(t *testing.T) {
		p := newPipeline(&fakeDirectory{}, &fakeDirectory{})

		req := validRequest()
		req.Account.LastName = ""                                                      // entity
		req.Contact.PrimaryEmail = "other@example.com"                                 // cross-entity
		req.Management = &models.ManagementData{PassedAway: true, IsBoardMember: true} // business

		outcome, err := p.Run(ctx, req)
		require.NoError(t, err)

		vErr := outcome.Err()
		require.Error(t, vErr)
		assert.True(t, dErrors.HasCode(vErr, dErrors.CodeValidation))
		assert.Contains(t, vErr.Error(), "entity validation")
		assert.NotEmpty(t, dErrors.DetailOf(vErr, "account.last_name"))
		assert.Empty(t, dErrors.DetailOf(vErr, "contact.primary_email"))
	})

	t.Run("business failures surface when alone", func(t *testing.T) {
		p := newPipeline(&fakeDirectory{}, &fakeDirectory{})

		req := validRequest()
		req.Account.Email = "jane@tempmail.dev"
		req.Contact.PrimaryEmail = req.Account.Email

		outcome, err := p.Run(ctx, req)
		require.NoError(t, err)

		vErr := outcome.Err()
		require.Error(t, vErr)
		assert.True(t, dErrors.HasCode(vErr, dErrors.CodeValidation))
		assert.Contains(t, vErr.Error(), "business_rules validation")
	})
}
