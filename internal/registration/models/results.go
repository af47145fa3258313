package models

import (
	"time"

	id "registrar/pkg/domain"
)

// InitiateResult is returned from a successful initiation.
type InitiateResult struct {
	SessionID id.SessionID `json:"session_id"`
	Status    Status       `json:"status"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// StatusResult is the read-only view of a session for status polling.
type StatusResult struct {
	SessionID   id.SessionID  `json:"session_id"`
	Status      Status        `json:"status"`
	Progress    Progress      `json:"progress"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	LastError   *SessionError `json:"last_error,omitempty"`
}

// VerifyOutcome classifies a verification attempt. A bad token is an
// expected user-facing outcome, not a system fault, so it travels in the
// result rather than the error channel.
type VerifyOutcome string

const (
	VerifyOutcomeVerified        VerifyOutcome = "verified"
	VerifyOutcomeAlreadyVerified VerifyOutcome = "already_verified"
	VerifyOutcomeInvalidToken    VerifyOutcome = "invalid_token"
	VerifyOutcomeExpired         VerifyOutcome = "expired"
	VerifyOutcomeMaxAttempts     VerifyOutcome = "max_attempts_exceeded"
)

// Succeeded reports whether the outcome completed (or had completed) verification.
func (o VerifyOutcome) Succeeded() bool {
	return o == VerifyOutcomeVerified || o == VerifyOutcomeAlreadyVerified
}

// VerifyResult reports the outcome of an email verification attempt.
type VerifyResult struct {
	Outcome           VerifyOutcome `json:"outcome"`
	Status            Status        `json:"status"`
	NextStep          string        `json:"next_step,omitempty"`
	RemainingAttempts int           `json:"remaining_attempts,omitempty"`
	Idempotent        bool          `json:"idempotent,omitempty"`
}

// ResendResult reports the outcome of a verification resend.
type ResendResult struct {
	ResendCount       int  `json:"resend_count"`
	MaxResendsReached bool `json:"max_resends_reached"`
	// Token is the freshly issued verification token. Exposed to the caller
	// only through the email channel in production; handlers never echo it.
	Token string `json:"-"`
}

// ApprovalOutcome classifies an approval-token submission.
type ApprovalOutcome string

const (
	ApprovalOutcomeProcessed ApprovalOutcome = "processed"
	ApprovalOutcomeExpired   ApprovalOutcome = "expired"
)

// ApprovalResult reports the administrator decision as recorded.
type ApprovalResult struct {
	Outcome     ApprovalOutcome `json:"outcome"`
	Status      Status          `json:"status"`
	Decision    Decision        `json:"decision,omitempty"`
	ProcessedBy string          `json:"processed_by,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Idempotent  bool            `json:"idempotent,omitempty"`
}

// CreationResult summarizes one run of the entity creation plan.
type CreationResult struct {
	Success         bool         `json:"success"`
	AccountID       string       `json:"account_id,omitempty"`
	CreatedEntities []EntityType `json:"created_entities"`
	FailedEntities  []EntityType `json:"failed_entities"`
	SkippedEntities []EntityType `json:"skipped_entities,omitempty"`
	Warnings        []string     `json:"warnings,omitempty"`
}
