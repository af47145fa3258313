// Package validation gates every registration intake with four independent
// validators: entity shape, cross-entity consistency, business rules, and
// anti-duplication. The validators run concurrently against the same request
// projection and their results are merged.
package validation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"registrar/internal/registration/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/email"
)

// FieldError is one field-level validation failure with a stable rule name.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result is the outcome of one validator.
type Result struct {
	Errors   []FieldError
	Warnings []string
}

// Merge appends another result into r.
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

func (r *Result) addError(field, rule, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Rule: rule, Message: message})
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator is one layer of the pipeline.
type Validator interface {
	Name() string
	Validate(ctx context.Context, req *models.RegistrationRequest) (Result, error)
}

// DuplicateHit carries the existing account's email through the pipeline so
// the caller can render a masked "you already have an account" message. This
// is the one value that must survive the error channel.
type DuplicateHit struct {
	ExistingEmail string
	MatchedOn     string
}

// Outcome is the merged result of a full pipeline run.
type Outcome struct {
	Valid     bool
	Errors    []FieldError
	Warnings  []string
	Duplicate *DuplicateHit

	// perValidator keeps each layer's errors for dominant-cause selection.
	perValidator map[string][]FieldError
}

// Pipeline composes the four validators. Construction order is irrelevant;
// dominant-cause precedence is fixed (duplicate > entity > cross > business).
type Pipeline struct {
	validators []Validator
}

// NewPipeline builds a pipeline over the given validators.
func NewPipeline(validators ...Validator) *Pipeline {
	return &Pipeline{validators: validators}
}

// Run executes all validators concurrently and merges their results. A
// validator returning an error is a system fault, not a validation failure.
func (p *Pipeline) Run(ctx context.Context, req *models.RegistrationRequest) (*Outcome, error) {
	results := make([]Result, len(p.validators))

	g, ctx := errgroup.WithContext(ctx)
	for i, v := range p.validators {
		g.Go(func() error {
			res, err := v.Validate(ctx, req)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal,
					fmt.Sprintf("%s validator failed", v.Name()))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcome := &Outcome{perValidator: make(map[string][]FieldError)}
	for i, v := range p.validators {
		outcome.Errors = append(outcome.Errors, results[i].Errors...)
		outcome.Warnings = append(outcome.Warnings, results[i].Warnings...)
		outcome.perValidator[v.Name()] = results[i].Errors

		if dup, ok := v.(interface{ LastHit() *DuplicateHit }); ok {
			if hit := dup.LastHit(); hit != nil {
				outcome.Duplicate = hit
			}
		}
	}
	outcome.Valid = len(outcome.Errors) == 0
	return outcome, nil
}

// Err converts an invalid outcome into the dominant domain error. Precedence
// when several layers failed: anti-duplication > entity > cross-entity >
// business-rule. Returns nil for valid outcomes.
func (o *Outcome) Err() error {
	if o.Valid {
		return nil
	}

	if o.Duplicate != nil {
		return dErrors.New(dErrors.CodeDuplicate, "an account for this person already exists").
			WithDetail("existing_email", o.Duplicate.ExistingEmail).
			WithDetail("masked_email", email.Mask(o.Duplicate.ExistingEmail)).
			WithDetail("matched_on", o.Duplicate.MatchedOn).
			WithDetail("suggestion", "it looks like you already have an account; try signing in or resetting your password")
	}

	for _, name := range []string{ValidatorEntity, ValidatorCrossEntity, ValidatorBusinessRules} {
		if fields := o.perValidator[name]; len(fields) > 0 {
			err := dErrors.Newf(dErrors.CodeValidation, "registration payload failed %s validation", name)
			for _, fe := range fields {
				err = err.WithDetail(fe.Field, fe.Message)
			}
			return err
		}
	}

	// Errors without a registered layer (defensive merge of foreign results).
	err := dErrors.New(dErrors.CodeValidation, "registration payload is invalid")
	for _, fe := range o.Errors {
		err = err.WithDetail(fe.Field, fe.Message)
	}
	return err
}

// Validator names, used for precedence and log attribution.
const (
	ValidatorEntity        = "entity"
	ValidatorCrossEntity   = "cross_entity"
	ValidatorBusinessRules = "business_rules"
	ValidatorDuplicate     = "anti_duplication"
)
