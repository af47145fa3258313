package validation

import (
	"context"

	"registrar/internal/registration/models"
)

// CrossEntityValidator checks consistency between sibling entities. Each
// entity may be individually well-formed and still contradict its siblings.
type CrossEntityValidator struct{}

func NewCrossEntityValidator() *CrossEntityValidator { return &CrossEntityValidator{} }

func (v *CrossEntityValidator) Name() string { return ValidatorCrossEntity }

func (v *CrossEntityValidator) Validate(_ context.Context, req *models.RegistrationRequest) (Result, error) {
	var res Result

	// The contact's primary email is the account's email; a mismatch means
	// the verification mail and the member record would diverge.
	if contact := req.Contact; contact != nil {
		if contact.PrimaryEmail != "" && contact.PrimaryEmail != req.Account.Email {
			res.addError("contact.primary_email", "email_mismatch",
				"primary contact email must match the account email")
		}
		if contact.SecondaryEmail != "" && contact.SecondaryEmail == contact.PrimaryEmail {
			res.addError("contact.secondary_email", "email_mismatch",
				"secondary contact email must differ from the primary email")
		}
	}

	// A residence permit is only verifiable against a registered address.
	if ident := req.Identity; ident != nil {
		if ident.DocumentType == "residence_permit" && req.Address == nil {
			res.addError("address", "document_requires_address",
				"a residence permit document requires an address")
		}
	}

	// The education-type flag is advisory; contradicting branch data is
	// tolerated (the account group decides later) but worth flagging.
	switch req.EducationType {
	case models.EducationTypeOT:
		if req.EducationOT == nil && req.EducationOTA != nil {
			res.addWarning("education type %s requested but only OTA data supplied", req.EducationType)
		}
	case models.EducationTypeOTA:
		if req.EducationOTA == nil && req.EducationOT != nil {
			res.addWarning("education type %s requested but only OT data supplied", req.EducationType)
		}
	}

	return res, nil
}
