package models

import (
	"fmt"
	"time"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// Status enumerates the registration workflow states.
type Status string

const (
	StatusStaged              Status = "staged"
	StatusVerificationPending Status = "email_verification_pending"
	StatusEmailVerified       Status = "email_verified"
	StatusPendingApproval     Status = "pending_approval"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusRetryPending        Status = "retry_pending"
	StatusFailed              Status = "failed"
)

// allowedTransitions encodes the state machine. Status is monotonic except
// for the explicit retry path; failed is reachable from any non-terminal
// state on unrecoverable error (handled in CanTransitionTo).
var allowedTransitions = map[Status][]Status{
	StatusStaged:              {StatusVerificationPending},
	StatusVerificationPending: {StatusEmailVerified},
	StatusEmailVerified:       {StatusPendingApproval, StatusRetryPending},
	StatusPendingApproval:     {StatusApproved, StatusRejected},
	StatusApproved:            {StatusProcessing},
	StatusProcessing:          {StatusCompleted, StatusRetryPending},
	StatusRetryPending:        {StatusProcessing, StatusPendingApproval},
	StatusCompleted:           {},
	StatusRejected:            {},
	StatusFailed:              {},
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusFailed
}

// CanTransitionTo reports whether the transition s -> to is legal.
func (s Status) CanTransitionTo(to Status) bool {
	if to == StatusFailed {
		return !s.IsTerminal()
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Decision records the outcome of the administrator review.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// VerificationState is the email-verification sub-state of a session.
type VerificationState struct {
	Token      string     `json:"token,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Attempts   int        `json:"attempts"`
	Resends    int        `json:"resends"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	// ConsumedToken retains the token that completed verification so a
	// replayed link can be recognized and answered idempotently.
	ConsumedToken string `json:"consumed_token,omitempty"`
}

// ApprovalState is the administrator-decision sub-state of a session.
// Exactly one of the two tokens is ever spent to produce a decision; once a
// decision is recorded the fields are frozen.
type ApprovalState struct {
	ApproveToken string     `json:"approve_token,omitempty"`
	RejectToken  string     `json:"reject_token,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Decision     Decision   `json:"decision,omitempty"`
	DecidedBy    string     `json:"decided_by,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

// Decided reports whether an administrator decision has been recorded.
func (a *ApprovalState) Decided() bool { return a.Decision != "" }

// SessionError is the last fatal error a session ran into, retained for
// diagnostics. Cleared only by a successful retry.
type SessionError struct {
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Entity    EntityType `json:"entity,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// RegistrationSession is the aggregate root of one registration workflow.
//
// Invariants:
//   - ID, OrgID, and UserData are immutable after initiation (except
//     system-injected linkage fields during entity creation)
//   - Status changes only through ApplyStatus after CanTransitionTo
//   - Version increments on every persisted write (optimistic concurrency)
//   - Once Status is approved or rejected, Approval fields never change;
//     replays of the decision return the stored result unchanged
type RegistrationSession struct {
	ID           id.SessionID        `json:"id"`
	OrgID        id.OrgID            `json:"org_id"`
	Status       Status              `json:"status"`
	UserData     RegistrationRequest `json:"user_data"`
	Progress     Progress            `json:"progress"`
	Verification VerificationState   `json:"verification"`
	Approval     ApprovalState       `json:"approval"`
	LastError    *SessionError       `json:"last_error,omitempty"`

	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSession stages a fresh registration session.
func NewSession(sessionID id.SessionID, orgID id.OrgID, payload RegistrationRequest, now time.Time, ttl time.Duration) *RegistrationSession {
	sess := &RegistrationSession{
		ID:        sessionID,
		OrgID:     orgID,
		Status:    StatusStaged,
		UserData:  payload,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	sess.Progress = NewProgress(payload.PlannedEntities())
	return sess
}

// IsExpired reports whether the session's absolute expiry has elapsed.
func (s *RegistrationSession) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// RequireStatus guards a transition on the session's current persisted
// status. A mismatch is a conflict naming expected vs actual, per the strict
// side of the dual guard policy; idempotent carve-outs are handled by the
// callers that own them.
func (s *RegistrationSession) RequireStatus(expected ...Status) error {
	for _, want := range expected {
		if s.Status == want {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeConflict,
		"session %s is %s, expected %s", s.ID, s.Status, formatExpected(expected))
}

func formatExpected(expected []Status) string {
	if len(expected) == 1 {
		return string(expected[0])
	}
	out := ""
	for i, st := range expected {
		if i > 0 {
			out += " or "
		}
		out += string(st)
	}
	return out
}

// ApplyStatus transitions the session, validating the edge first.
func (s *RegistrationSession) ApplyStatus(to Status, now time.Time) error {
	if !s.Status.CanTransitionTo(to) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"illegal transition %s -> %s for session %s", s.Status, to, s.ID)
	}
	s.Status = to
	s.UpdatedAt = now
	if to == StatusCompleted {
		completed := now
		s.CompletedAt = &completed
	}
	return nil
}

// RecordFailure moves the session to failed and pins the diagnostic error.
func (s *RegistrationSession) RecordFailure(code, message string, entity EntityType, now time.Time) error {
	if err := s.ApplyStatus(StatusFailed, now); err != nil {
		return err
	}
	s.LastError = &SessionError{Code: code, Message: message, Entity: entity, Timestamp: now}
	return nil
}

// ClearLastError wipes the diagnostic error after a successful retry.
func (s *RegistrationSession) ClearLastError() { s.LastError = nil }

// CanDecide checks that an administrator decision is still possible.
func (s *RegistrationSession) CanDecide() error {
	if s.Approval.Decided() {
		return dErrors.Newf(dErrors.CodeConflict,
			"session %s already %s by %s", s.ID, s.Approval.Decision, s.Approval.DecidedBy)
	}
	return s.RequireStatus(StatusPendingApproval)
}

// ApplyDecision records the administrator decision and freezes the approval
// sub-state. Call CanDecide first.
func (s *RegistrationSession) ApplyDecision(decision Decision, actor, reason string, now time.Time) error {
	to := StatusApproved
	if decision == DecisionRejected {
		to = StatusRejected
	}
	if err := s.ApplyStatus(to, now); err != nil {
		return err
	}
	s.Approval.Decision = decision
	s.Approval.DecidedBy = actor
	s.Approval.Reason = reason
	decidedAt := now
	s.Approval.DecidedAt = &decidedAt
	return nil
}

// StoreKey renders the canonical session-store key for this session.
func StoreKey(sessionID id.SessionID) string {
	return fmt.Sprintf("orchestrator:session:%s", sessionID)
}
