package validation

import (
	"context"
	"strconv"
	"strings"
	"time"

	"registrar/internal/registration/models"
	"registrar/pkg/requestcontext"
)

// BusinessRules configures the domain-policy layer.
type BusinessRules struct {
	// MinimumAge in whole years, computed against the request clock.
	MinimumAge int
	// RestrictedDomains are email domains registration is closed to
	// (disposable-mail providers, internal domains).
	RestrictedDomains []string
}

// DefaultBusinessRules mirrors the policy the production deployment runs.
func DefaultBusinessRules() BusinessRules {
	return BusinessRules{
		MinimumAge:        16,
		RestrictedDomains: []string{"mailinator.com", "tempmail.dev", "example.org"},
	}
}

// BusinessRuleValidator enforces domain policy: age floor, closed email
// domains, and management-flag exclusion rules.
type BusinessRuleValidator struct {
	rules BusinessRules
}

func NewBusinessRuleValidator(rules BusinessRules) *BusinessRuleValidator {
	return &BusinessRuleValidator{rules: rules}
}

func (v *BusinessRuleValidator) Name() string { return ValidatorBusinessRules }

func (v *BusinessRuleValidator) Validate(ctx context.Context, req *models.RegistrationRequest) (Result, error) {
	var res Result
	now := requestcontext.Now(ctx)

	if domain := emailDomain(req.Account.Email); domain != "" {
		for _, restricted := range v.rules.RestrictedDomains {
			if strings.EqualFold(domain, restricted) {
				res.addError("account.email", "restricted_domain",
					"registration is not open to addresses on "+restricted)
				break
			}
		}
	}

	if birth, err := time.Parse(birthDateLayout, req.Account.BirthDate); err == nil {
		if age := yearsBetween(birth, now); age < v.rules.MinimumAge {
			res.addError("account.birth_date", "minimum_age",
				"registrants must be at least "+strconv.Itoa(v.rules.MinimumAge)+" years old")
		}
	}
	// Unparseable birth dates are the entity validator's finding, not ours.

	if mgmt := req.Management; mgmt != nil {
		if mgmt.PassedAway && mgmt.ActiveRoleSet() {
			res.addError("management.passed_away", "flag_exclusion",
				"passed away excludes all other active role flags")
		}
	}

	return res, nil
}

func emailDomain(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return addr[at+1:]
}

func yearsBetween(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}
