// Package service is the registration orchestrator's callable façade. Every
// inbound operation (initiate, status, verify, resend, approval, entity
// creation, retry) reads the session, computes the new session value, and
// writes it back through the optimistically versioned store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"registrar/internal/platform/metrics"
	"registrar/internal/registration/coordinator"
	"registrar/internal/registration/events"
	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	"registrar/internal/registration/progress"
	sessionstore "registrar/internal/registration/store/session"
	"registrar/internal/registration/tokens"
	"registrar/internal/registration/validation"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"
)

// Next-step hints surfaced to the caller after each operation.
const (
	NextStepVerifyEmail   = "verify_email"
	NextStepAwaitApproval = "await_admin_approval"
	NextStepRetryCreation = "retry_entity_creation"
	NextStepDone          = "done"
)

// DefaultSessionTTL bounds a registration session's total lifetime.
const DefaultSessionTTL = 24 * time.Hour

// Service orchestrates the registration workflow.
type Service struct {
	store       sessionstore.Store
	pipeline    *validation.Pipeline
	coordinator *coordinator.Coordinator
	orgs        ports.OrgResolver
	email       ports.EmailSender
	statuses    ports.AccountStatusSetter

	policy     tokens.Policy
	sessionTTL time.Duration
	logger     *slog.Logger
	events     events.Emitter
	metrics    *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEmitter(emitter events.Emitter) Option {
	return func(s *Service) { s.events = emitter }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTokenPolicy(policy tokens.Policy) Option {
	return func(s *Service) { s.policy = policy }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// New constructs a Service.
func New(
	store sessionstore.Store,
	pipeline *validation.Pipeline,
	coord *coordinator.Coordinator,
	orgs ports.OrgResolver,
	sender ports.EmailSender,
	statuses ports.AccountStatusSetter,
	opts ...Option,
) *Service {
	s := &Service{
		store:       store,
		pipeline:    pipeline,
		coordinator: coord,
		orgs:        orgs,
		email:       sender,
		statuses:    statuses,
		policy:      tokens.DefaultPolicy(),
		sessionTTL:  DefaultSessionTTL,
		logger:      slog.Default(),
		events:      events.NopEmitter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate validates the payload, stages a session, and sends the
// verification email. The session exists once this returns, even if the
// email could not be sent; the resend path covers delivery failures.
func (s *Service) Initiate(ctx context.Context, payload models.RegistrationRequest, orgSlug string) (*models.InitiateResult, error) {
	now := requestcontext.Now(ctx)

	org, err := s.orgs.Resolve(ctx, orgSlug)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown organization %q", orgSlug)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve organization")
	}

	outcome, err := s.pipeline.Run(ctx, &payload)
	if err != nil {
		return nil, err
	}
	if vErr := outcome.Err(); vErr != nil {
		return nil, vErr
	}
	for _, warning := range outcome.Warnings {
		s.logger.InfoContext(ctx, "registration accepted with warning", "warning", warning)
	}

	sess := models.NewSession(id.NewSessionID(), org.ID, payload, now, s.sessionTTL)
	if err := s.policy.IssueVerification(&sess.Verification, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue verification token")
	}
	if err := sess.ApplyStatus(models.StatusVerificationPending, now); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist session")
	}

	s.sendVerificationEmail(ctx, sess)
	s.emit(ctx, events.KindSessionInitiated, sess, nil)
	if s.metrics != nil {
		s.metrics.SessionsInitiated.Inc()
	}
	s.logger.InfoContext(ctx, "registration session initiated",
		"session_id", sess.ID, "org", org.Slug, "entities", len(sess.Progress.Entities))

	return &models.InitiateResult{SessionID: sess.ID, Status: sess.Status, ExpiresAt: sess.ExpiresAt}, nil
}

// GetStatus returns the read-only session view.
func (s *Service) GetStatus(ctx context.Context, sessionID id.SessionID) (*models.StatusResult, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.StatusResult{
		SessionID:   sess.ID,
		Status:      sess.Status,
		Progress:    sess.Progress,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
		ExpiresAt:   sess.ExpiresAt,
		CompletedAt: sess.CompletedAt,
		LastError:   sess.LastError,
	}, nil
}

// VerifyEmail judges the presented token. On success it creates all
// downstream records provisionally and hands the session to the
// administrator; verification is the trigger for side-effecting record
// creation, not just a checkbox. Replaying the consumed token is idempotent.
func (s *Service) VerifyEmail(ctx context.Context, sessionID id.SessionID, token string) (*models.VerifyResult, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	if sess.Verification.VerifiedAt != nil {
		if token != "" && token == sess.Verification.ConsumedToken {
			return &models.VerifyResult{
				Outcome:    models.VerifyOutcomeAlreadyVerified,
				Status:     sess.Status,
				NextStep:   s.nextStep(sess),
				Idempotent: true,
			}, nil
		}
		return nil, sess.RequireStatus(models.StatusVerificationPending)
	}
	if err := sess.RequireStatus(models.StatusVerificationPending); err != nil {
		return nil, err
	}

	outcome := s.policy.CheckVerification(&sess.Verification, token, now)
	if !outcome.Succeeded() {
		// The spent attempt must survive, or guessing would be free.
		sess.UpdatedAt = now
		if err := s.update(ctx, sess); err != nil {
			return nil, err
		}
		return &models.VerifyResult{
			Outcome:           outcome,
			Status:            sess.Status,
			NextStep:          NextStepVerifyEmail,
			RemainingAttempts: s.policy.RemainingAttempts(&sess.Verification),
		}, nil
	}

	tokens.Consume(&sess.Verification, now)
	if err := sess.ApplyStatus(models.StatusEmailVerified, now); err != nil {
		return nil, err
	}
	s.emit(ctx, events.KindEmailVerified, sess, nil)
	if s.metrics != nil {
		s.metrics.EmailsVerified.Inc()
	}

	// Provisional entity creation happens now, before the administrator sees
	// the request.
	result := s.coordinator.Execute(ctx, sess)
	s.bookCreationRun(ctx, sess, result)

	if result.Success {
		if err := s.moveToPendingApproval(ctx, sess, now); err != nil {
			return nil, err
		}
	} else {
		sess.LastError = &models.SessionError{
			Code:      "entity_creation_failed",
			Message:   "provisional entity creation fell below the success threshold",
			Timestamp: now,
		}
		if err := sess.ApplyStatus(models.StatusRetryPending, now); err != nil {
			return nil, err
		}
	}
	if err := s.update(ctx, sess); err != nil {
		return nil, err
	}
	if sess.Status == models.StatusPendingApproval {
		s.afterPendingApproval(ctx, sess)
	}

	return &models.VerifyResult{
		Outcome:  models.VerifyOutcomeVerified,
		Status:   sess.Status,
		NextStep: s.nextStep(sess),
	}, nil
}

// ResendVerification reissues the token. Expired tokens and exhausted
// attempts are both cured here; only the resend budget is final.
func (s *Service) ResendVerification(ctx context.Context, sessionID id.SessionID) (*models.ResendResult, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireStatus(models.StatusVerificationPending); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	ok, err := s.policy.Reissue(&sess.Verification, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not reissue verification token")
	}
	if !ok {
		return &models.ResendResult{
			ResendCount:       sess.Verification.Resends,
			MaxResendsReached: true,
		}, nil
	}

	sess.UpdatedAt = now
	if err := s.update(ctx, sess); err != nil {
		return nil, err
	}

	s.sendVerificationEmail(ctx, sess)
	s.emit(ctx, events.KindVerificationResent, sess, map[string]string{
		"resend_count": strconv.Itoa(sess.Verification.Resends),
	})

	return &models.ResendResult{
		ResendCount:       sess.Verification.Resends,
		MaxResendsReached: sess.Verification.Resends >= s.policy.MaxResends,
		Token:             sess.Verification.Token,
	}, nil
}

// ProcessApproval records the administrator decision. The reference is
// either a session id or one of the two issued tokens; a token implies its
// action. Replays with the same action return the stored result unchanged.
// The external account-status flip and the applicant notification are
// secondary side effects: their failure never rolls the decision back.
func (s *Service) ProcessApproval(ctx context.Context, ref, action, actor, reason string) (*models.ApprovalResult, error) {
	sess, byToken, err := s.resolveApprovalRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	decision, err := s.resolveDecision(sess, ref, byToken, action)
	if err != nil {
		return nil, err
	}

	if sess.Approval.Decided() {
		if sess.Approval.Decision == decision {
			return approvalResult(sess, true), nil
		}
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"session %s already %s by %s", sess.ID, sess.Approval.Decision, sess.Approval.DecidedBy)
	}

	if tokens.ApprovalExpired(&sess.Approval, now) {
		// Status untouched, no side effects.
		return &models.ApprovalResult{Outcome: models.ApprovalOutcomeExpired, Status: sess.Status}, nil
	}

	if err := sess.CanDecide(); err != nil {
		return nil, err
	}
	if err := sess.ApplyDecision(decision, actor, reason, now); err != nil {
		return nil, err
	}
	if err := s.update(ctx, sess); err != nil {
		return nil, err
	}

	kind := events.KindRegistrationApproved
	if decision == models.DecisionRejected {
		kind = events.KindRegistrationRejected
	}
	s.emit(ctx, kind, sess, map[string]string{"actor": actor})
	if s.metrics != nil {
		s.metrics.IncrementDecision(string(decision))
	}
	s.logger.InfoContext(ctx, "administrator decision recorded",
		"session_id", sess.ID, "decision", decision, "actor", actor)

	s.applyDecisionSideEffects(ctx, sess, decision)

	return approvalResult(sess, false), nil
}

// ExecuteEntityCreation finishes the creation plan for an approved session:
// anything not yet created provisionally gets (re)attempted, and the session
// terminates in completed, retry_pending, or failed.
func (s *Service) ExecuteEntityCreation(ctx context.Context, sessionID id.SessionID) (*models.CreationResult, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireStatus(models.StatusApproved); err != nil {
		return nil, err
	}
	return s.runCreation(ctx, sess)
}

// Retry reruns the creation plan for a session parked in retry_pending.
// Before the administrator has seen the session (provisional creation failed
// during verification) a successful retry hands it to approval; afterwards it
// resumes the normal processing path.
func (s *Service) Retry(ctx context.Context, sessionID id.SessionID) (*models.CreationResult, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireStatus(models.StatusRetryPending); err != nil {
		return nil, err
	}
	if sess.Approval.ApproveToken == "" {
		return s.runProvisionalRepair(ctx, sess)
	}
	return s.runCreation(ctx, sess)
}

// runProvisionalRepair reruns provisional creation for a session that never
// reached the administrator.
func (s *Service) runProvisionalRepair(ctx context.Context, sess *models.RegistrationSession) (*models.CreationResult, error) {
	now := requestcontext.Now(ctx)

	result := s.coordinator.Execute(ctx, sess)
	s.bookCreationRun(ctx, sess, result)

	switch {
	case result.Success:
		sess.ClearLastError()
		if err := s.moveToPendingApproval(ctx, sess, now); err != nil {
			return nil, err
		}
	case s.exhaustedBeyondRepair(sess):
		if err := sess.RecordFailure("retries_exhausted",
			"one or more entities spent their retry budget", "", now); err != nil {
			return nil, err
		}
		s.emit(ctx, events.KindRegistrationFailed, sess, map[string]string{"reason": "retries_exhausted"})
	default:
		sess.UpdatedAt = now // stays retry_pending
	}

	if err := s.update(ctx, sess); err != nil {
		return nil, err
	}
	if sess.Status == models.StatusPendingApproval {
		s.afterPendingApproval(ctx, sess)
	}
	return &result, nil
}

// ListPendingApprovals enumerates sessions awaiting an administrator
// decision, for the review listing.
func (s *Service) ListPendingApprovals(ctx context.Context) ([]models.StatusResult, error) {
	ids, err := s.store.ListPendingApproval(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list pending approvals")
	}
	out := make([]models.StatusResult, 0, len(ids))
	for _, sessionID := range ids {
		status, err := s.GetStatus(ctx, sessionID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue // expired between listing and fetch
			}
			return nil, err
		}
		out = append(out, *status)
	}
	return out, nil
}

// SweepExpired fails sessions whose lifetime elapsed. Returns the number of
// sessions swept. Scheduling the sweep is the caller's concern.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := requestcontext.Now(ctx)
	ids, err := s.store.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "could not list expired sessions")
	}

	swept := 0
	for _, sessionID := range ids {
		sess, err := s.store.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return swept, dErrors.Wrap(err, dErrors.CodeInternal, "could not load expired session")
		}
		if sess.Status.IsTerminal() {
			continue
		}
		// The expiry listing can lag behind a lifetime extension (entering
		// pending_approval pushes ExpiresAt out); trust the record, not the
		// listing.
		if !sess.IsExpired(now) {
			continue
		}
		if err := sess.RecordFailure("session_expired", "session lifetime elapsed", "", now); err != nil {
			continue
		}
		if err := s.update(ctx, sess); err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				continue // someone else is working on it; leave it be
			}
			return swept, err
		}
		s.emit(ctx, events.KindRegistrationFailed, sess, map[string]string{"reason": "expired"})
		swept++
	}
	return swept, nil
}

// --- internals ---

func (s *Service) load(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load session")
	}
	if sess.IsExpired(requestcontext.Now(ctx)) && !sess.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeNotFound, "session expired")
	}
	return sess, nil
}

func (s *Service) update(ctx context.Context, sess *models.RegistrationSession) error {
	if err := s.store.Update(ctx, sess); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "session was modified concurrently, retry the operation")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not persist session")
	}
	return nil
}

// runCreation transitions to processing, executes the plan, and settles the
// terminal state.
func (s *Service) runCreation(ctx context.Context, sess *models.RegistrationSession) (*models.CreationResult, error) {
	now := requestcontext.Now(ctx)
	if err := sess.ApplyStatus(models.StatusProcessing, now); err != nil {
		return nil, err
	}
	if err := s.update(ctx, sess); err != nil {
		return nil, err
	}

	result := s.coordinator.Execute(ctx, sess)
	s.bookCreationRun(ctx, sess, result)

	switch {
	case result.Success && len(sess.Progress.RetryQueue) == 0 && len(sess.Progress.Pending()) == 0:
		sess.ClearLastError()
		if err := sess.ApplyStatus(models.StatusCompleted, now); err != nil {
			return nil, err
		}
		if sess.Progress.AccountGUID != "" {
			ttl := sess.ExpiresAt.Sub(now)
			if err := s.store.CacheAccountGUID(ctx, sess.ID, sess.Progress.AccountGUID, ttl); err != nil {
				s.logger.WarnContext(ctx, "could not cache account guid", "session_id", sess.ID, "error", err)
			}
		}
	case result.Success:
		// Usable but incomplete; the retry path finishes the stragglers.
		if err := sess.ApplyStatus(models.StatusRetryPending, now); err != nil {
			return nil, err
		}
	default:
		sess.LastError = &models.SessionError{
			Code:      "entity_creation_failed",
			Message:   "entity creation fell below the success threshold",
			Timestamp: now,
		}
		if err := sess.ApplyStatus(models.StatusRetryPending, now); err != nil {
			return nil, err
		}
	}

	if s.exhaustedBeyondRepair(sess) {
		if err := sess.RecordFailure("retries_exhausted",
			"one or more entities spent their retry budget", "", now); err == nil {
			s.emit(ctx, events.KindRegistrationFailed, sess, map[string]string{"reason": "retries_exhausted"})
		}
	}

	if err := s.update(ctx, sess); err != nil {
		return nil, err
	}

	if sess.Status == models.StatusCompleted {
		s.sendWelcomeEmail(ctx, sess)
		s.emit(ctx, events.KindRegistrationComplete, sess, nil)
	}
	return &result, nil
}

// exhaustedBeyondRepair reports whether the retry path can no longer fix the
// session: something exhausted its budget and nothing is left to retry.
func (s *Service) exhaustedBeyondRepair(sess *models.RegistrationSession) bool {
	if sess.Status != models.StatusRetryPending {
		return false
	}
	p := &sess.Progress
	return len(p.ExhaustedRetries(progress.DefaultMaxRetries)) > 0 && len(p.RetryQueue) == 0
}

func (s *Service) moveToPendingApproval(ctx context.Context, sess *models.RegistrationSession, now time.Time) error {
	if err := s.policy.IssueApproval(&sess.Approval, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not issue approval tokens")
	}
	// The approval window outlives the base session TTL. Keep the session
	// loadable for one more TTL past the window so a late token submission
	// reports "expired" instead of vanishing.
	if deadline := now.Add(s.policy.ApprovalTTL + s.sessionTTL); deadline.After(sess.ExpiresAt) {
		sess.ExpiresAt = deadline
	}
	return sess.ApplyStatus(models.StatusPendingApproval, now)
}

// afterPendingApproval indexes the freshly issued tokens and notifies the
// administrator. Runs after the session is persisted; failures here are
// logged, not fatal, because the tokens are recoverable from the session.
func (s *Service) afterPendingApproval(ctx context.Context, sess *models.RegistrationSession) {
	// Index entries outlive the approval window by the same grace as the
	// session itself, so a token submitted after the window still resolves
	// and reports "expired" instead of "unknown token".
	ttl := s.policy.ApprovalTTL + s.sessionTTL
	for _, token := range []string{sess.Approval.ApproveToken, sess.Approval.RejectToken} {
		if err := s.store.IndexApprovalToken(ctx, token, sess.ID, ttl); err != nil {
			s.logger.ErrorContext(ctx, "could not index approval token",
				"session_id", sess.ID, "error", err)
		}
	}

	org, err := s.orgs.ResolveID(ctx, sess.OrgID)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not resolve org for approval mail",
			"session_id", sess.ID, "error", err)
		return
	}
	msg, err := NewApprovalRequestEmail(sess, org.AdminEmail)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not build approval mail", "session_id", sess.ID, "error", err)
		return
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.bookNotificationFailure(ctx, sess, "approval_request", err)
		return
	}
	s.emit(ctx, events.KindApprovalRequested, sess, nil)
}

func (s *Service) resolveApprovalRef(ctx context.Context, ref string) (*models.RegistrationSession, bool, error) {
	if sessionID, err := id.ParseSessionID(ref); err == nil {
		sess, err := s.load(ctx, sessionID)
		return sess, false, err
	}

	sessionID, err := s.store.FindByApprovalToken(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, true, dErrors.New(dErrors.CodeNotFound, "unknown approval token")
		}
		return nil, true, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up approval token")
	}
	sess, err := s.load(ctx, sessionID)
	return sess, true, err
}

// resolveDecision reconciles the reference and the explicit action. A token
// dictates its action; a session id requires one.
func (s *Service) resolveDecision(sess *models.RegistrationSession, ref string, byToken bool, action string) (models.Decision, error) {
	if byToken {
		decision, ok := tokens.ApprovalAction(&sess.Approval, ref)
		if !ok {
			return "", dErrors.New(dErrors.CodeNotFound, "unknown approval token")
		}
		if action != "" && string(decision) != normalizeAction(action) {
			return "", dErrors.Newf(dErrors.CodeBadRequest,
				"token action mismatch: token says %s, request says %s", decision, action)
		}
		return decision, nil
	}
	switch normalizeAction(action) {
	case string(models.DecisionApproved):
		return models.DecisionApproved, nil
	case string(models.DecisionRejected):
		return models.DecisionRejected, nil
	default:
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown approval action %q", action)
	}
}

func normalizeAction(action string) string {
	switch action {
	case "approve", "approved":
		return string(models.DecisionApproved)
	case "reject", "rejected":
		return string(models.DecisionRejected)
	default:
		return action
	}
}

// applyDecisionSideEffects flips the external account status and notifies the
// applicant. The notification only goes out after the status flip succeeds;
// neither failure rolls the decision back.
func (s *Service) applyDecisionSideEffects(ctx context.Context, sess *models.RegistrationSession, decision models.Decision) {
	guid := sess.Progress.AccountGUID
	if guid == "" {
		s.logger.WarnContext(ctx, "no account to flip status on", "session_id", sess.ID)
		return
	}
	active := decision == models.DecisionApproved
	if err := s.statuses.SetStatus(ctx, guid, active); err != nil {
		s.logger.ErrorContext(ctx, "account status update failed, skipping notification",
			"session_id", sess.ID, "active", active, "error", err)
		return
	}

	msg, err := NewDecisionEmail(sess)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not build decision mail", "session_id", sess.ID, "error", err)
		return
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.bookNotificationFailure(ctx, sess, "decision", err)
	}
}

func (s *Service) sendVerificationEmail(ctx context.Context, sess *models.RegistrationSession) {
	resendsLeft := s.policy.MaxResends - sess.Verification.Resends
	msg, err := NewVerificationEmail(sess, resendsLeft)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not build verification mail", "session_id", sess.ID, "error", err)
		return
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.bookNotificationFailure(ctx, sess, "verification", err)
	}
}

func (s *Service) sendWelcomeEmail(ctx context.Context, sess *models.RegistrationSession) {
	msg, err := NewWelcomeEmail(sess)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not build welcome mail", "session_id", sess.ID, "error", err)
		return
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.bookNotificationFailure(ctx, sess, "welcome", err)
	}
}

func (s *Service) bookNotificationFailure(ctx context.Context, sess *models.RegistrationSession, kind string, err error) {
	if s.metrics != nil {
		s.metrics.NotificationFailures.Inc()
	}
	s.logger.ErrorContext(ctx, "notification email failed",
		"session_id", sess.ID, "email_kind", kind, "error", err)
}

// bookCreationRun emits per-entity events and counts the run.
func (s *Service) bookCreationRun(ctx context.Context, sess *models.RegistrationSession, result models.CreationResult) {
	for _, entity := range result.CreatedEntities {
		s.emit(ctx, events.KindEntityCreated, sess, map[string]string{"entity": string(entity)})
	}
	for _, entity := range result.FailedEntities {
		s.emit(ctx, events.KindEntityFailed, sess, map[string]string{"entity": string(entity)})
		if s.metrics != nil {
			s.metrics.EntityFailures.WithLabelValues(string(entity)).Inc()
		}
	}
	for _, warning := range result.Warnings {
		s.logger.WarnContext(ctx, "entity creation warning", "session_id", sess.ID, "warning", warning)
	}
	if s.metrics != nil {
		label := "failure"
		if result.Success {
			label = "success"
		}
		s.metrics.IncrementCreationRun(label)
	}
}

func (s *Service) emit(ctx context.Context, kind events.Kind, sess *models.RegistrationSession, details map[string]string) {
	s.events.Emit(ctx, events.Event{
		Kind:      kind,
		SessionID: sess.ID,
		OrgID:     sess.OrgID,
		Actor:     requestcontext.ActorID(ctx),
		Details:   details,
	})
}

func (s *Service) nextStep(sess *models.RegistrationSession) string {
	switch sess.Status {
	case models.StatusVerificationPending:
		return NextStepVerifyEmail
	case models.StatusPendingApproval, models.StatusEmailVerified:
		return NextStepAwaitApproval
	case models.StatusRetryPending:
		return NextStepRetryCreation
	default:
		return NextStepDone
	}
}

func approvalResult(sess *models.RegistrationSession, idempotent bool) *models.ApprovalResult {
	return &models.ApprovalResult{
		Outcome:     models.ApprovalOutcomeProcessed,
		Status:      sess.Status,
		Decision:    sess.Approval.Decision,
		ProcessedBy: sess.Approval.DecidedBy,
		ProcessedAt: sess.Approval.DecidedAt,
		Idempotent:  idempotent,
	}
}
