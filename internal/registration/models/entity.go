package models

// EntityType names one of the sub-records that together constitute a fully
// registered member account. The set is fixed at session creation.
type EntityType string

const (
	EntityAccount    EntityType = "account"
	EntityAddress    EntityType = "address"
	EntityContact    EntityType = "contact"
	EntityIdentity   EntityType = "identity"
	EntityEducation  EntityType = "education"
	EntityManagement EntityType = "management"
)

// AllEntityTypes lists the creation plan in dependency order. Account is
// always first; everything after it depends on the account linkage.
var AllEntityTypes = []EntityType{
	EntityAccount,
	EntityAddress,
	EntityContact,
	EntityIdentity,
	EntityEducation,
	EntityManagement,
}

// EducationType is the caller-supplied education branch selector. It is
// advisory only: the branch actually created is derived from the account
// group returned by account creation.
type EducationType string

const (
	EducationTypeOT  EducationType = "ot"
	EducationTypeOTA EducationType = "ota"
)

// AccountGroup is the numeric group value returned by account creation. It is
// the authoritative source for the education branch.
type AccountGroup int

const (
	AccountGroupUnknown AccountGroup = 0
	AccountGroupOT      AccountGroup = 1
	AccountGroupOTA     AccountGroup = 2
)

// EducationBranch maps an account group to the education branch it mandates.
// Returns "" for unknown groups.
func (g AccountGroup) EducationBranch() EducationType {
	switch g {
	case AccountGroupOT:
		return EducationTypeOT
	case AccountGroupOTA:
		return EducationTypeOTA
	default:
		return ""
	}
}
