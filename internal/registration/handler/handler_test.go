package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/platform/token"
	"registrar/internal/registration/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

type fakeService struct {
	initiateResult *models.InitiateResult
	statusResult   *models.StatusResult
	verifyResult   *models.VerifyResult
	resendResult   *models.ResendResult
	approvalResult *models.ApprovalResult
	creationResult *models.CreationResult
	pending        []models.StatusResult
	err            error

	lastRef    string
	lastAction string
	lastActor  string
	lastToken  string
}

func (f *fakeService) Initiate(_ context.Context, _ models.RegistrationRequest, _ string) (*models.InitiateResult, error) {
	return f.initiateResult, f.err
}

func (f *fakeService) GetStatus(_ context.Context, _ id.SessionID) (*models.StatusResult, error) {
	return f.statusResult, f.err
}

func (f *fakeService) VerifyEmail(_ context.Context, _ id.SessionID, token string) (*models.VerifyResult, error) {
	f.lastToken = token
	return f.verifyResult, f.err
}

func (f *fakeService) ResendVerification(_ context.Context, _ id.SessionID) (*models.ResendResult, error) {
	return f.resendResult, f.err
}

func (f *fakeService) ProcessApproval(_ context.Context, ref, action, actor, _ string) (*models.ApprovalResult, error) {
	f.lastRef, f.lastAction, f.lastActor = ref, action, actor
	return f.approvalResult, f.err
}

func (f *fakeService) ExecuteEntityCreation(_ context.Context, _ id.SessionID) (*models.CreationResult, error) {
	return f.creationResult, f.err
}

func (f *fakeService) Retry(_ context.Context, _ id.SessionID) (*models.CreationResult, error) {
	return f.creationResult, f.err
}

func (f *fakeService) ListPendingApprovals(_ context.Context) ([]models.StatusResult, error) {
	return f.pending, f.err
}

func newTestRouter(svc *fakeService) (http.Handler, *token.Service) {
	tokens := token.NewService("handler-test-key", "registrar", "registrar-admin")
	h := New(svc, tokens, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)
	return r, tokens
}

func postJSON(t *testing.T, router http.Handler, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleInitiate(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		sessionID := id.NewSessionID()
		svc := &fakeService{initiateResult: &models.InitiateResult{
			SessionID: sessionID,
			Status:    models.StatusVerificationPending,
		}}
		router, _ := newTestRouter(svc)

		rec := postJSON(t, router, "/registrations", map[string]any{
			"account": map[string]string{"email": "jane@example.com"},
		}, nil)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var body models.InitiateResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, sessionID, body.SessionID)
	})

	t.Run("validation failure maps to 422", func(t *testing.T) {
		svc := &fakeService{err: dErrors.New(dErrors.CodeValidation, "email is required")}
		router, _ := newTestRouter(svc)

		rec := postJSON(t, router, "/registrations", map[string]any{}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "email is required")
	})

	t.Run("duplicate maps to 409 with details", func(t *testing.T) {
		err := dErrors.New(dErrors.CodeDuplicate, "a registration with this email already exists").
			WithDetail("masked_email", "j***@example.com")
		svc := &fakeService{err: err}
		router, _ := newTestRouter(svc)

		rec := postJSON(t, router, "/registrations", map[string]any{}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "j***@example.com")
	})

	t.Run("malformed body", func(t *testing.T) {
		router, _ := newTestRouter(&fakeService{})
		req := httptest.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		sessionID := id.NewSessionID()
		svc := &fakeService{statusResult: &models.StatusResult{
			SessionID: sessionID,
			Status:    models.StatusPendingApproval,
		}}
		router, _ := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/registrations/"+sessionID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), string(models.StatusPendingApproval))
	})

	t.Run("bad session id", func(t *testing.T) {
		router, _ := newTestRouter(&fakeService{})
		req := httptest.NewRequest(http.MethodGet, "/registrations/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		svc := &fakeService{err: dErrors.New(dErrors.CodeNotFound, "session not found")}
		router, _ := newTestRouter(svc)
		req := httptest.NewRequest(http.MethodGet, "/registrations/"+id.NewSessionID().String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleVerify(t *testing.T) {
	sessionID := id.NewSessionID()

	t.Run("wrong token is a 200 with a typed outcome", func(t *testing.T) {
		svc := &fakeService{verifyResult: &models.VerifyResult{
			Outcome:           models.VerifyOutcomeInvalidToken,
			Status:            models.StatusVerificationPending,
			RemainingAttempts: 2,
		}}
		router, _ := newTestRouter(svc)

		rec := postJSON(t, router, "/registrations/"+sessionID.String()+"/verify",
			map[string]string{"token": "vrf_wrong"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "vrf_wrong", svc.lastToken)

		var body models.VerifyResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, models.VerifyOutcomeInvalidToken, body.Outcome)
		assert.Equal(t, 2, body.RemainingAttempts)
	})

	t.Run("state conflict maps to 409", func(t *testing.T) {
		svc := &fakeService{err: dErrors.New(dErrors.CodeConflict, "expected email_verification_pending")}
		router, _ := newTestRouter(svc)

		rec := postJSON(t, router, "/registrations/"+sessionID.String()+"/verify",
			map[string]string{"token": "vrf_x"}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleApprovalByToken(t *testing.T) {
	svc := &fakeService{approvalResult: &models.ApprovalResult{
		Outcome: models.ApprovalOutcomeProcessed,
		Status:  models.StatusApproved,
	}}
	router, _ := newTestRouter(svc)

	rec := postJSON(t, router, "/approvals/apr_sometoken", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "apr_sometoken", svc.lastRef)
	assert.Empty(t, svc.lastAction, "token implies the action")
}

func TestAdminSurface(t *testing.T) {
	adminHeader := func(tokens *token.Service) http.Header {
		signed, err := tokens.GenerateAdminToken("admin-9", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		h := http.Header{}
		h.Set("Authorization", "Bearer "+signed)
		return h
	}

	t.Run("rejects missing token", func(t *testing.T) {
		router, _ := newTestRouter(&fakeService{})
		req := httptest.NewRequest(http.MethodGet, "/admin/approvals", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects forged token", func(t *testing.T) {
		router, _ := newTestRouter(&fakeService{})
		req := httptest.NewRequest(http.MethodGet, "/admin/approvals", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("lists pending approvals", func(t *testing.T) {
		svc := &fakeService{pending: []models.StatusResult{
			{SessionID: id.NewSessionID(), Status: models.StatusPendingApproval},
		}}
		router, tokens := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/admin/approvals", nil)
		req.Header = adminHeader(tokens)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), string(models.StatusPendingApproval))
	})

	t.Run("decision carries the verified actor", func(t *testing.T) {
		sessionID := id.NewSessionID()
		svc := &fakeService{approvalResult: &models.ApprovalResult{
			Outcome: models.ApprovalOutcomeProcessed,
			Status:  models.StatusRejected,
		}}
		router, tokens := newTestRouter(svc)

		rec := postJSON(t, router, "/admin/registrations/"+sessionID.String()+"/decision",
			map[string]string{"action": "reject", "reason": "incomplete"}, adminHeader(tokens))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, sessionID.String(), svc.lastRef)
		assert.Equal(t, "reject", svc.lastAction)
		assert.Equal(t, "admin-9", svc.lastActor)
	})

	t.Run("manual retry", func(t *testing.T) {
		svc := &fakeService{creationResult: &models.CreationResult{Success: true}}
		router, tokens := newTestRouter(svc)

		rec := postJSON(t, router, "/admin/registrations/"+id.NewSessionID().String()+"/retry",
			nil, adminHeader(tokens))
		assert.Equal(t, http.StatusOK, rec.Code)

		var body models.CreationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
	})
}
