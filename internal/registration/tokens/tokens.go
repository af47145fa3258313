// Package tokens implements the two single-use-token protocols of the
// registration workflow: email verification and administrator approval. Both
// share the same minting scheme (cryptographically random, prefixed by
// purpose) but differ in expiry and in how a presented token is judged.
package tokens

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"registrar/internal/registration/models"
)

// Token purpose prefixes. The prefix makes a leaked token self-describing in
// logs and support tickets without revealing which session it belongs to.
const (
	PrefixVerification = "vrf_"
	PrefixApprove      = "apr_"
	PrefixReject       = "rej_"
)

const tokenBytes = 32

// Policy bundles the counters and expiries of both protocols.
type Policy struct {
	VerificationTTL time.Duration
	ApprovalTTL     time.Duration
	MaxAttempts     int
	MaxResends      int
}

// DefaultPolicy is the production default: one hour to click the
// verification link with three guesses and three resends, seven days for the
// administrator to decide.
func DefaultPolicy() Policy {
	return Policy{
		VerificationTTL: time.Hour,
		ApprovalTTL:     7 * 24 * time.Hour,
		MaxAttempts:     3,
		MaxResends:      3,
	}
}

// generate mints a purpose-prefixed random token.
func generate(prefix string) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewVerificationToken mints a fresh email-verification token.
func NewVerificationToken() (string, error) {
	return generate(PrefixVerification)
}

// NewApprovalPair mints the approve/reject token pair issued together to the
// administrator.
func NewApprovalPair() (approve, reject string, err error) {
	if approve, err = generate(PrefixApprove); err != nil {
		return "", "", err
	}
	if reject, err = generate(PrefixReject); err != nil {
		return "", "", err
	}
	return approve, reject, nil
}

// IssueVerification stamps a fresh verification token onto the sub-state,
// resetting the attempt counter. The resend counter is left alone; Reissue
// owns it.
func (p Policy) IssueVerification(v *models.VerificationState, now time.Time) error {
	token, err := NewVerificationToken()
	if err != nil {
		return err
	}
	v.Token = token
	v.ExpiresAt = now.Add(p.VerificationTTL)
	v.Attempts = 0
	return nil
}

// Reissue replaces the verification token for a resend. Expired tokens and
// exhausted attempts are both cured this way; only the resend budget is
// finite. Returns false without touching the state when the budget is spent.
func (p Policy) Reissue(v *models.VerificationState, now time.Time) (bool, error) {
	if v.Resends >= p.MaxResends {
		return false, nil
	}
	if err := p.IssueVerification(v, now); err != nil {
		return false, err
	}
	v.Resends++
	return true, nil
}

// IssueApproval stamps a fresh approve/reject pair onto the sub-state.
func (p Policy) IssueApproval(a *models.ApprovalState, now time.Time) error {
	approve, reject, err := NewApprovalPair()
	if err != nil {
		return err
	}
	a.ApproveToken = approve
	a.RejectToken = reject
	a.ExpiresAt = now.Add(p.ApprovalTTL)
	return nil
}

// CheckVerification judges a presented verification token. The checks run in
// a fixed order so the caller always learns the dominant failure: consumed
// replay, then token presence, then expiry, then the attempt budget, then the
// value itself. A value mismatch spends one attempt; every other failure
// leaves the counters alone.
//
// The outcome is a result, not an error: a wrong token is an expected
// user-facing event.
func (p Policy) CheckVerification(v *models.VerificationState, presented string, now time.Time) models.VerifyOutcome {
	if v.VerifiedAt != nil {
		if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(v.ConsumedToken)) == 1 {
			return models.VerifyOutcomeAlreadyVerified
		}
		return models.VerifyOutcomeInvalidToken
	}
	if v.Token == "" || presented == "" {
		return models.VerifyOutcomeInvalidToken
	}
	if now.After(v.ExpiresAt) {
		return models.VerifyOutcomeExpired
	}
	if v.Attempts >= p.MaxAttempts {
		return models.VerifyOutcomeMaxAttempts
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(v.Token)) != 1 {
		v.Attempts++
		return models.VerifyOutcomeInvalidToken
	}
	return models.VerifyOutcomeVerified
}

// Consume marks the verification sub-state verified, retaining the spent
// token for idempotent replay detection.
func Consume(v *models.VerificationState, now time.Time) {
	verified := now
	v.VerifiedAt = &verified
	v.ConsumedToken = v.Token
	v.Token = ""
}

// RemainingAttempts reports the attempt budget left on the current token.
func (p Policy) RemainingAttempts(v *models.VerificationState) int {
	if left := p.MaxAttempts - v.Attempts; left > 0 {
		return left
	}
	return 0
}

// ApprovalAction maps a presented approval token to the decision it stands
// for. Unknown tokens return ok=false.
func ApprovalAction(a *models.ApprovalState, presented string) (models.Decision, bool) {
	if presented == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(a.ApproveToken)) == 1 {
		return models.DecisionApproved, true
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(a.RejectToken)) == 1 {
		return models.DecisionRejected, true
	}
	return "", false
}

// ApprovalExpired reports whether the pair's shared expiry has elapsed.
func ApprovalExpired(a *models.ApprovalState, now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}
