// Package clients holds the HTTP adapters for the downstream member
// management system: one create endpoint per entity record, plus the account
// status flip used after an administrator decision.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	id "registrar/pkg/domain"
)

// EntityClient talks to the member management API. All creates POST a JSON
// payload and read back the created record's id and guid.
type EntityClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewEntityClient(baseURL string, logger *slog.Logger) *EntityClient {
	return &EntityClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Services bundles this client into the per-entity creator contracts.
func (c *EntityClient) Services() ports.EntityServices {
	return ports.EntityServices{
		Account:    c,
		Address:    addressClient{c},
		Contact:    contactClient{c},
		Identity:   identityClient{c},
		Management: managementClient{c},
		Education:  c,
	}
}

type createdRecord struct {
	ID         string `json:"id"`
	GUID       string `json:"guid"`
	GroupValue int    `json:"group_value,omitempty"`
}

type linkedPayload struct {
	AccountID   string `json:"account_id"`
	AccountGUID string `json:"account_guid"`
	Data        any    `json:"data"`
}

// CreateStandalone implements ports.AccountCreator.
func (c *EntityClient) CreateStandalone(ctx context.Context, data models.AccountData, org id.OrgID) (ports.AccountCreation, error) {
	body := struct {
		OrgID string             `json:"org_id"`
		Data  models.AccountData `json:"data"`
	}{OrgID: org.String(), Data: data}

	rec, err := c.post(ctx, models.EntityAccount, "/accounts", body)
	if err != nil {
		return ports.AccountCreation{}, err
	}
	return ports.AccountCreation{
		EntityRef:  ports.EntityRef{ID: rec.ID, GUID: rec.GUID},
		GroupValue: models.AccountGroup(rec.GroupValue),
	}, nil
}

type addressClient struct{ c *EntityClient }

func (a addressClient) Create(ctx context.Context, data models.AddressData, linkage ports.ParentLinkage) (ports.EntityRef, error) {
	return a.c.postLinked(ctx, models.EntityAddress, "/addresses", data, linkage)
}

type contactClient struct{ c *EntityClient }

func (a contactClient) Create(ctx context.Context, data models.ContactData, linkage ports.ParentLinkage) (ports.EntityRef, error) {
	return a.c.postLinked(ctx, models.EntityContact, "/contacts", data, linkage)
}

type identityClient struct{ c *EntityClient }

func (a identityClient) Create(ctx context.Context, data models.IdentityData, linkage ports.ParentLinkage) (ports.EntityRef, error) {
	return a.c.postLinked(ctx, models.EntityIdentity, "/identities", data, linkage)
}

type managementClient struct{ c *EntityClient }

func (a managementClient) Create(ctx context.Context, data models.ManagementData, linkage ports.ParentLinkage) (ports.EntityRef, error) {
	return a.c.postLinked(ctx, models.EntityManagement, "/managements", data, linkage)
}

// CreateOT implements the occupational-training half of ports.EducationCreator.
func (c *EntityClient) CreateOT(ctx context.Context, data models.EducationOT, linkage ports.ParentLinkage) (ports.EntityRef, error) {
	return c.postLinked(ctx, models.EntityEducation, "/educations/ot", data, linkage)
}

// CreateOTA implements the assistant half of ports.EducationCreator.
func (c *EntityClient) CreateOTA(ctx context.Context, data models.EducationOTA, linkage ports.ParentLinkage) (ports.EntityRef, error) {
	return c.postLinked(ctx, models.EntityEducation, "/educations/ota", data, linkage)
}

// SetStatus implements ports.AccountStatusSetter.
func (c *EntityClient) SetStatus(ctx context.Context, accountGUID string, active bool) error {
	body := struct {
		Active bool `json:"active"`
	}{Active: active}
	_, err := c.do(ctx, http.MethodPatch, "/accounts/"+accountGUID+"/status", body)
	return err
}

func (c *EntityClient) postLinked(ctx context.Context, entity models.EntityType, path string, data any, linkage ports.ParentLinkage) (ports.EntityRef, error) {
	rec, err := c.post(ctx, entity, path, linkedPayload{
		AccountID:   linkage.AccountID,
		AccountGUID: linkage.AccountGUID,
		Data:        data,
	})
	if err != nil {
		return ports.EntityRef{}, err
	}
	return ports.EntityRef{ID: rec.ID, GUID: rec.GUID}, nil
}

func (c *EntityClient) post(ctx context.Context, entity models.EntityType, path string, body any) (*createdRecord, error) {
	rec, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		retryable := true
		var httpErr *statusError
		if errors.As(err, &httpErr) {
			// Client-side rejections will not heal on retry.
			retryable = httpErr.status >= 500
		}
		c.logger.WarnContext(ctx, "downstream create failed",
			"entity", entity, "retryable", retryable, "error", err)
		return nil, ports.NewCreationError(entity, retryable, err)
	}
	return rec, nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func (c *EntityClient) do(ctx context.Context, method, path string, body any) (*createdRecord, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{status: resp.StatusCode, body: string(snippet)}
	}

	var rec createdRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return &rec, nil
}
