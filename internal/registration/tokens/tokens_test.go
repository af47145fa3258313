package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/registration/models"
	"registrar/pkg/testutil"
)

func TestTokenMinting(t *testing.T) {
	t.Run("verification tokens carry the purpose prefix", func(t *testing.T) {
		token, err := NewVerificationToken()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(token, PrefixVerification))
		assert.Greater(t, len(token), 40)
	})

	t.Run("approval pair is distinct and purpose-prefixed", func(t *testing.T) {
		approve, reject, err := NewApprovalPair()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(approve, PrefixApprove))
		assert.True(t, strings.HasPrefix(reject, PrefixReject))
		assert.NotEqual(t, approve, reject)
	})

	t.Run("successive tokens never repeat", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			token, err := NewVerificationToken()
			require.NoError(t, err)
			assert.False(t, seen[token])
			seen[token] = true
		}
	})
}

func issuedState(t *testing.T, p Policy, now time.Time) *models.VerificationState {
	t.Helper()
	var v models.VerificationState
	require.NoError(t, p.IssueVerification(&v, now))
	return &v
}

func TestCheckVerification(t *testing.T) {
	p := DefaultPolicy()
	now := testutil.FixedTime

	t.Run("correct token verifies", func(t *testing.T) {
		v := issuedState(t, p, now)
		assert.Equal(t, models.VerifyOutcomeVerified, p.CheckVerification(v, v.Token, now))
	})

	t.Run("wrong token spends an attempt", func(t *testing.T) {
		v := issuedState(t, p, now)
		assert.Equal(t, models.VerifyOutcomeInvalidToken, p.CheckVerification(v, "vrf_wrong", now))
		assert.Equal(t, 1, v.Attempts)
		assert.Equal(t, 2, p.RemainingAttempts(v))
	})

	t.Run("empty token is invalid without spending an attempt", func(t *testing.T) {
		v := issuedState(t, p, now)
		assert.Equal(t, models.VerifyOutcomeInvalidToken, p.CheckVerification(v, "", now))
		assert.Zero(t, v.Attempts)
	})

	t.Run("expired token reports expiry before judging the value", func(t *testing.T) {
		v := issuedState(t, p, now)
		late := now.Add(p.VerificationTTL + time.Minute)
		assert.Equal(t, models.VerifyOutcomeExpired, p.CheckVerification(v, v.Token, late))
		assert.Zero(t, v.Attempts)
	})

	t.Run("three wrong attempts lock out even the correct token", func(t *testing.T) {
		v := issuedState(t, p, now)
		for range p.MaxAttempts {
			assert.Equal(t, models.VerifyOutcomeInvalidToken, p.CheckVerification(v, "vrf_wrong", now))
		}
		assert.Equal(t, models.VerifyOutcomeMaxAttempts, p.CheckVerification(v, v.Token, now))
		assert.Equal(t, p.MaxAttempts, v.Attempts, "lockout must not keep counting")
		assert.Zero(t, p.RemainingAttempts(v))
	})

	t.Run("consumed token replays as already verified", func(t *testing.T) {
		v := issuedState(t, p, now)
		token := v.Token
		require.Equal(t, models.VerifyOutcomeVerified, p.CheckVerification(v, token, now))
		Consume(v, now)

		assert.Equal(t, models.VerifyOutcomeAlreadyVerified, p.CheckVerification(v, token, now))
		assert.Equal(t, models.VerifyOutcomeInvalidToken, p.CheckVerification(v, "vrf_other", now))
	})
}

func TestReissue(t *testing.T) {
	p := DefaultPolicy()
	now := testutil.FixedTime

	t.Run("resend replaces the token and resets attempts", func(t *testing.T) {
		v := issuedState(t, p, now)
		old := v.Token
		for range p.MaxAttempts {
			p.CheckVerification(v, "vrf_wrong", now)
		}

		later := now.Add(30 * time.Minute)
		ok, err := p.Reissue(v, later)
		require.NoError(t, err)
		require.True(t, ok)

		assert.NotEqual(t, old, v.Token)
		assert.Zero(t, v.Attempts)
		assert.Equal(t, 1, v.Resends)
		assert.Equal(t, later.Add(p.VerificationTTL), v.ExpiresAt)
		assert.Equal(t, models.VerifyOutcomeVerified, p.CheckVerification(v, v.Token, later))
	})

	t.Run("resend budget is finite", func(t *testing.T) {
		v := issuedState(t, p, now)
		for i := range p.MaxResends {
			ok, err := p.Reissue(v, now)
			require.NoError(t, err)
			require.True(t, ok, "resend %d should be within budget", i+1)
		}

		token := v.Token
		ok, err := p.Reissue(v, now)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, token, v.Token, "a refused resend must not touch the token")
		assert.Equal(t, p.MaxResends, v.Resends)
	})
}

func TestApproval(t *testing.T) {
	p := DefaultPolicy()
	now := testutil.FixedTime

	var a models.ApprovalState
	require.NoError(t, p.IssueApproval(&a, now))

	t.Run("tokens map to their decisions", func(t *testing.T) {
		decision, ok := ApprovalAction(&a, a.ApproveToken)
		require.True(t, ok)
		assert.Equal(t, models.DecisionApproved, decision)

		decision, ok = ApprovalAction(&a, a.RejectToken)
		require.True(t, ok)
		assert.Equal(t, models.DecisionRejected, decision)
	})

	t.Run("unknown and empty tokens are refused", func(t *testing.T) {
		_, ok := ApprovalAction(&a, "apr_forged")
		assert.False(t, ok)
		_, ok = ApprovalAction(&a, "")
		assert.False(t, ok)
	})

	t.Run("shared expiry", func(t *testing.T) {
		assert.False(t, ApprovalExpired(&a, now.Add(6*24*time.Hour)))
		assert.True(t, ApprovalExpired(&a, now.Add(p.ApprovalTTL+time.Second)))
	})
}
