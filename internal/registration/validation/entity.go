package validation

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"registrar/internal/registration/models"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// birthDateLayout is the ISO 8601 date format registration payloads use.
const birthDateLayout = "2006-01-02"

// rule is a pure field check: nil means the value passes. Rules compose into
// per-entity validators without reflection or struct tags.
type rule func(field, value string) *FieldError

func required() rule {
	return func(field, value string) *FieldError {
		if value == "" {
			return &FieldError{Field: field, Rule: "required", Message: field + " is required"}
		}
		return nil
	}
}

func emailFormat() rule {
	return func(field, value string) *FieldError {
		if value != "" && !emailPattern.MatchString(value) {
			return &FieldError{Field: field, Rule: "email_format", Message: field + " is not a valid email address"}
		}
		return nil
	}
}

func dateFormat(layout string) rule {
	return func(field, value string) *FieldError {
		if value == "" {
			return nil
		}
		if _, err := time.Parse(layout, value); err != nil {
			return &FieldError{Field: field, Rule: "date_format",
				Message: fmt.Sprintf("%s must use the %s format", field, layout)}
		}
		return nil
	}
}

func maxLen(limit int) rule {
	return func(field, value string) *FieldError {
		if len(value) > limit {
			return &FieldError{Field: field, Rule: "max_length",
				Message: fmt.Sprintf("%s must be at most %d characters", field, limit)}
		}
		return nil
	}
}

func oneOf(allowed ...string) rule {
	return func(field, value string) *FieldError {
		if value == "" {
			return nil
		}
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return &FieldError{Field: field, Rule: "one_of",
			Message: fmt.Sprintf("%s must be one of %v", field, allowed)}
	}
}

func check(res *Result, field, value string, rules ...rule) {
	for _, r := range rules {
		if fe := r(field, value); fe != nil {
			res.Errors = append(res.Errors, *fe)
			return // first failing rule per field is enough
		}
	}
}

// DocumentTypes the identity entity accepts.
var DocumentTypes = []string{"passport", "id_card", "drivers_license", "residence_permit"}

// EntityValidator runs per-entity-type schema checks, each entity judged in
// isolation from its siblings.
type EntityValidator struct{}

func NewEntityValidator() *EntityValidator { return &EntityValidator{} }

func (v *EntityValidator) Name() string { return ValidatorEntity }

func (v *EntityValidator) Validate(_ context.Context, req *models.RegistrationRequest) (Result, error) {
	var res Result

	acct := req.Account
	check(&res, "account.email", acct.Email, required(), emailFormat(), maxLen(254))
	check(&res, "account.first_name", acct.FirstName, required(), maxLen(100))
	check(&res, "account.last_name", acct.LastName, required(), maxLen(100))
	check(&res, "account.birth_date", acct.BirthDate, required(), dateFormat(birthDateLayout))

	if addr := req.Address; addr != nil {
		check(&res, "address.street", addr.Street, required(), maxLen(200))
		check(&res, "address.city", addr.City, required(), maxLen(100))
		check(&res, "address.postal_code", addr.PostalCode, required(), maxLen(16))
		check(&res, "address.country", addr.Country, required(), maxLen(2))
	}

	if contact := req.Contact; contact != nil {
		check(&res, "contact.primary_email", contact.PrimaryEmail, required(), emailFormat())
		check(&res, "contact.secondary_email", contact.SecondaryEmail, emailFormat())
		check(&res, "contact.phone", contact.Phone, maxLen(32))
	}

	if ident := req.Identity; ident != nil {
		check(&res, "identity.document_type", ident.DocumentType, required(), oneOf(DocumentTypes...))
		check(&res, "identity.document_number", ident.DocumentNumber, required(), maxLen(64))
	}

	if ot := req.EducationOT; ot != nil {
		check(&res, "education_ot.institution", ot.Institution, required(), maxLen(200))
		check(&res, "education_ot.degree", ot.Degree, required(), maxLen(200))
	}

	if ota := req.EducationOTA; ota != nil {
		check(&res, "education_ota.institution", ota.Institution, required(), maxLen(200))
		check(&res, "education_ota.field_of_work", ota.FieldOfWork, required(), maxLen(200))
	}

	if mgmt := req.Management; mgmt != nil {
		if mgmt.IsRepresentative {
			check(&res, "management.representative_name", mgmt.RepresentativeName, required(), maxLen(200))
		}
	}

	return res, nil
}
