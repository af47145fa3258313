package models

// RegistrationRequest is the full registration payload captured at initiation.
// It is immutable afterward except for system-injected relationship fields
// (account linkage) during entity creation.
type RegistrationRequest struct {
	Account       AccountData     `json:"account"`
	Address       *AddressData    `json:"address,omitempty"`
	Contact       *ContactData    `json:"contact,omitempty"`
	Identity      *IdentityData   `json:"identity,omitempty"`
	Management    *ManagementData `json:"management,omitempty"`
	EducationOT   *EducationOT    `json:"education_ot,omitempty"`
	EducationOTA  *EducationOTA   `json:"education_ota,omitempty"`
	EducationType EducationType   `json:"education_type,omitempty"`
}

// Has reports whether the payload carries data for the given entity type.
// Account is always present; education is present if either branch is.
func (r *RegistrationRequest) Has(entity EntityType) bool {
	switch entity {
	case EntityAccount:
		return true
	case EntityAddress:
		return r.Address != nil
	case EntityContact:
		return r.Contact != nil
	case EntityIdentity:
		return r.Identity != nil
	case EntityEducation:
		return r.EducationOT != nil || r.EducationOTA != nil
	case EntityManagement:
		return r.Management != nil
	default:
		return false
	}
}

// PlannedEntities returns the creation plan for this payload: account plus
// every entity the caller supplied data for, in dependency order.
func (r *RegistrationRequest) PlannedEntities() []EntityType {
	plan := make([]EntityType, 0, len(AllEntityTypes))
	for _, entity := range AllEntityTypes {
		if r.Has(entity) {
			plan = append(plan, entity)
		}
	}
	return plan
}

// AccountData is the standalone account record. BirthDate uses ISO 8601 date
// format (2006-01-02).
type AccountData struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date"`
}

type AddressData struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type ContactData struct {
	PrimaryEmail   string `json:"primary_email"`
	SecondaryEmail string `json:"secondary_email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

type IdentityData struct {
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
}

// ManagementData carries the member's role flags. PassedAway is mutually
// exclusive with every active-role flag.
type ManagementData struct {
	IsBoardMember      bool   `json:"is_board_member"`
	IsRepresentative   bool   `json:"is_representative"`
	RepresentativeName string `json:"representative_name,omitempty"`
	PassedAway         bool   `json:"passed_away"`
}

// ActiveRoleSet reports whether any active-role flag is set.
func (m *ManagementData) ActiveRoleSet() bool {
	return m.IsBoardMember || m.IsRepresentative
}

type EducationOT struct {
	Institution    string `json:"institution"`
	Degree         string `json:"degree"`
	GraduationYear int    `json:"graduation_year,omitempty"`
}

type EducationOTA struct {
	Institution string `json:"institution"`
	FieldOfWork string `json:"field_of_work"`
	Supervisor  string `json:"supervisor,omitempty"`
}
