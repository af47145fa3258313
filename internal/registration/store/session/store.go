// Package session persists RegistrationSession aggregates.
//
// Key layout (Redis implementation):
//
//	orchestrator:session:{sessionID}        the session record (JSON), TTL-bound
//	orchestrator:approval-token:{token}     approval token -> session id index
//	orchestrator:account-guid:{sessionID}   account GUID cache for linkage lookups
//	orchestrator:expiry                     ZSET of session ids scored by expiry
//	orchestrator:pending-approval           SET of sessions awaiting a decision
//
// All auxiliary keys share the session's logical lifetime.
package session

import (
	"context"
	"time"

	"registrar/internal/registration/models"
	id "registrar/pkg/domain"
)

// Error Contract:
//   - Get returns sentinel.ErrNotFound (wrapped) when the session is absent.
//   - Create returns sentinel.ErrConflict when the id already exists.
//   - Update returns sentinel.ErrConflict when the stored version differs from
//     the caller's read version (optimistic concurrency; re-read and retry).
//   - Infrastructure failures are returned wrapped with context.
type Store interface {
	Create(ctx context.Context, sess *models.RegistrationSession) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error)
	Update(ctx context.Context, sess *models.RegistrationSession) error

	// IndexApprovalToken writes one token -> session entry per approval token,
	// expiring with the token pair.
	IndexApprovalToken(ctx context.Context, token string, sessionID id.SessionID, ttl time.Duration) error
	FindByApprovalToken(ctx context.Context, token string) (id.SessionID, error)

	// CacheAccountGUID stores the created account GUID for cheap linkage reads.
	CacheAccountGUID(ctx context.Context, sessionID id.SessionID, guid string, ttl time.Duration) error
	AccountGUID(ctx context.Context, sessionID id.SessionID) (string, error)

	// ListPendingApproval enumerates sessions awaiting an administrator
	// decision, for the admin review listing.
	ListPendingApproval(ctx context.Context) ([]id.SessionID, error)

	// ListExpired returns up to limit sessions whose expiry elapsed before
	// now. The cleanup sweep itself is an external concern; this is its
	// enumeration primitive.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]id.SessionID, error)
}
