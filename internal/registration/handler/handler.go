// Package handler is the thin HTTP layer over the registration service.
// Handlers decode, delegate, and encode; orchestration rules live in the
// service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"registrar/internal/registration/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/platform/middleware/admin"
	"registrar/pkg/platform/middleware/request"
	"registrar/pkg/platform/middleware/requesttime"
	"registrar/pkg/requestcontext"
)

// Service is the registration orchestrator surface the handlers consume.
type Service interface {
	Initiate(ctx context.Context, payload models.RegistrationRequest, orgSlug string) (*models.InitiateResult, error)
	GetStatus(ctx context.Context, sessionID id.SessionID) (*models.StatusResult, error)
	VerifyEmail(ctx context.Context, sessionID id.SessionID, token string) (*models.VerifyResult, error)
	ResendVerification(ctx context.Context, sessionID id.SessionID) (*models.ResendResult, error)
	ProcessApproval(ctx context.Context, ref, action, actor, reason string) (*models.ApprovalResult, error)
	ExecuteEntityCreation(ctx context.Context, sessionID id.SessionID) (*models.CreationResult, error)
	Retry(ctx context.Context, sessionID id.SessionID) (*models.CreationResult, error)
	ListPendingApprovals(ctx context.Context) ([]models.StatusResult, error)
}

// Handler handles registration endpoints.
type Handler struct {
	logger        *slog.Logger
	registrations Service
	adminTokens   admin.TokenVerifier
}

// New creates a registration Handler.
func New(registrations Service, adminTokens admin.TokenVerifier, logger *slog.Logger) *Handler {
	return &Handler{
		logger:        logger,
		registrations: registrations,
		adminTokens:   adminTokens,
	}
}

// Register mounts the public and administrator routes.
func (h *Handler) Register(r chi.Router) {
	public := chi.NewRouter()
	public.Use(chimiddleware.Recoverer)
	public.Use(request.Middleware)
	public.Use(requesttime.Middleware)
	public.Use(chimiddleware.Timeout(30 * time.Second))
	public.Post("/registrations", h.handleInitiate)
	public.Get("/registrations/{sessionID}", h.handleStatus)
	public.Post("/registrations/{sessionID}/verify", h.handleVerify)
	public.Post("/registrations/{sessionID}/verify/resend", h.handleResend)
	public.Post("/approvals/{token}", h.handleApprovalByToken)

	adminRouter := chi.NewRouter()
	adminRouter.Use(chimiddleware.Recoverer)
	adminRouter.Use(request.Middleware)
	adminRouter.Use(requesttime.Middleware)
	adminRouter.Use(chimiddleware.Timeout(30 * time.Second))
	adminRouter.Use(admin.RequireAdmin(h.adminTokens, h.logger))
	adminRouter.Get("/approvals", h.handleListApprovals)
	adminRouter.Post("/registrations/{sessionID}/decision", h.handleDecision)
	adminRouter.Post("/registrations/{sessionID}/execute", h.handleExecute)
	adminRouter.Post("/registrations/{sessionID}/retry", h.handleRetry)

	r.Mount("/", public)
	r.Mount("/admin", adminRouter)
}

type initiateRequest struct {
	Organization string `json:"organization,omitempty"`
	models.RegistrationRequest
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registrations.Initiate(ctx, req.RegistrationRequest, req.Organization)
	if err != nil {
		h.logFailure(ctx, "initiate registration", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.registrations.GetStatus(ctx, sessionID)
	if err != nil {
		h.logFailure(ctx, "get status", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registrations.VerifyEmail(ctx, sessionID, req.Token)
	if err != nil {
		h.logFailure(ctx, "verify email", err)
		httputil.WriteError(w, err)
		return
	}
	// A wrong or expired token is a typed outcome, not a transport error.
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.registrations.ResendVerification(ctx, sessionID)
	if err != nil {
		h.logFailure(ctx, "resend verification", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type approvalRequest struct {
	Action string `json:"action,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// handleApprovalByToken serves the links in the administrator email. The
// token itself is the credential; no session is required.
func (h *Handler) handleApprovalByToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	var req approvalRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	result, err := h.registrations.ProcessApproval(ctx, token, req.Action, requestcontext.ActorID(ctx), req.Reason)
	if err != nil {
		h.logFailure(ctx, "process approval token", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.registrations.ListPendingApprovals(ctx)
	if err != nil {
		h.logFailure(ctx, "list pending approvals", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"approvals": list})
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registrations.ProcessApproval(ctx, sessionID.String(), req.Action, requestcontext.ActorID(ctx), req.Reason)
	if err != nil {
		h.logFailure(ctx, "process decision", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.registrations.ExecuteEntityCreation(ctx, sessionID)
	if err != nil {
		h.logFailure(ctx, "execute entity creation", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.registrations.Retry(ctx, sessionID)
	if err != nil {
		h.logFailure(ctx, "retry entity creation", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func sessionIDParam(r *http.Request) (id.SessionID, error) {
	return id.ParseSessionID(chi.URLParam(r, "sessionID"))
}

// logFailure keeps the log level proportional to the error: client mistakes
// are warnings, everything else is an error.
func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, op+" failed", attrs...)
	default:
		h.logger.WarnContext(ctx, op+" rejected", attrs...)
	}
}
