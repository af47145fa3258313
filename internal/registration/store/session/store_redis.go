package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"registrar/internal/registration/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix       = "orchestrator:session:"
	approvalTokenKeyPrefix = "orchestrator:approval-token:"
	accountGUIDKeyPrefix   = "orchestrator:account-guid:"
	expiryIndexKey         = "orchestrator:expiry"
	pendingApprovalSetKey  = "orchestrator:pending-approval"
)

var updateConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "registrar_session_update_conflicts_total",
	Help: "Optimistic concurrency conflicts on session writes",
})

// RedisStore is the production session store. Session records are JSON values
// under TTL-bound keys; Update uses WATCH so a concurrent writer surfaces as
// sentinel.ErrConflict instead of a lost update.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func (s *RedisStore) Create(ctx context.Context, sess *models.RegistrationSession) error {
	sess.Version = 1
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s expiry already elapsed: %w", sess.ID, sentinel.ErrExpired)
	}

	ok, err := s.client.SetNX(ctx, sessionKey(sess.ID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists: %w", sess.ID, sentinel.ErrConflict)
	}

	return s.client.ZAdd(ctx, expiryIndexKey, redis.Z{
		Score:  float64(sess.ExpiresAt.Unix()),
		Member: sess.ID.String(),
	}).Err()
}

func (s *RedisStore) Get(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var sess models.RegistrationSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Update writes the session back only if nobody else wrote since the caller's
// read. The read version must match the stored one; the written record
// carries version+1.
func (s *RedisStore) Update(ctx context.Context, sess *models.RegistrationSession) error {
	key := sessionKey(sess.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrNotFound)
		}
		if err != nil {
			return err
		}

		var stored models.RegistrationSession
		if err := json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("unmarshal stored session %s: %w", sess.ID, err)
		}
		if stored.Version != sess.Version {
			return fmt.Errorf("session %s version %d is stale (stored %d): %w",
				sess.ID, sess.Version, stored.Version, sentinel.ErrConflict)
		}

		next := *sess
		next.Version = sess.Version + 1
		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal session %s: %w", sess.ID, err)
		}

		// ExpiresAt can move (entering pending_approval extends the
		// lifetime), so the key TTL and the expiry-index score are refreshed
		// on every write rather than pinned at Create.
		ttl := time.Until(next.ExpiresAt)
		if ttl <= 0 {
			ttl = redis.KeepTTL
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			pipe.ZAdd(ctx, expiryIndexKey, redis.Z{
				Score:  float64(next.ExpiresAt.Unix()),
				Member: sess.ID.String(),
			})
			if next.Status == models.StatusPendingApproval {
				pipe.SAdd(ctx, pendingApprovalSetKey, sess.ID.String())
			} else {
				pipe.SRem(ctx, pendingApprovalSetKey, sess.ID.String())
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		updateConflicts.Inc()
		return fmt.Errorf("session %s modified concurrently: %w", sess.ID, sentinel.ErrConflict)
	}
	if errors.Is(err, sentinel.ErrConflict) {
		updateConflicts.Inc()
		return err
	}
	if err != nil {
		return err
	}

	sess.Version++
	return nil
}

func (s *RedisStore) IndexApprovalToken(ctx context.Context, token string, sessionID id.SessionID, ttl time.Duration) error {
	key := approvalTokenKeyPrefix + token
	return s.client.Set(ctx, key, sessionID.String(), ttl).Err()
}

func (s *RedisStore) FindByApprovalToken(ctx context.Context, token string) (id.SessionID, error) {
	raw, err := s.client.Get(ctx, approvalTokenKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return id.SessionID{}, fmt.Errorf("approval token: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return id.SessionID{}, fmt.Errorf("lookup approval token: %w", err)
	}
	return id.ParseSessionID(raw)
}

func (s *RedisStore) CacheAccountGUID(ctx context.Context, sessionID id.SessionID, guid string, ttl time.Duration) error {
	return s.client.Set(ctx, accountGUIDKeyPrefix+sessionID.String(), guid, ttl).Err()
}

func (s *RedisStore) AccountGUID(ctx context.Context, sessionID id.SessionID) (string, error) {
	guid, err := s.client.Get(ctx, accountGUIDKeyPrefix+sessionID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("account guid for session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get account guid for session %s: %w", sessionID, err)
	}
	return guid, nil
}

func (s *RedisStore) ListPendingApproval(ctx context.Context) ([]id.SessionID, error) {
	members, err := s.client.SMembers(ctx, pendingApprovalSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return parseIDs(members)
}

func (s *RedisStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]id.SessionID, error) {
	members, err := s.client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	return parseIDs(members)
}

func parseIDs(members []string) ([]id.SessionID, error) {
	out := make([]id.SessionID, 0, len(members))
	for _, member := range members {
		sid, err := id.ParseSessionID(member)
		if err != nil {
			// Skip unparseable index entries rather than failing the sweep.
			continue
		}
		out = append(out, sid)
	}
	return out, nil
}
