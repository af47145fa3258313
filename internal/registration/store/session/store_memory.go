package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"registrar/internal/registration/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in process memory for tests and development.
// It honors the same version contract as the Redis store so service-level
// conflict handling is exercised either way.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.RegistrationSession
	tokens   map[string]tokenEntry
	guids    map[id.SessionID]string
}

type tokenEntry struct {
	sessionID id.SessionID
	expiresAt time.Time
}

// NewInMemory constructs an empty in-memory session store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[id.SessionID]*models.RegistrationSession),
		tokens:   make(map[string]tokenEntry),
		guids:    make(map[id.SessionID]string),
	}
}

func (s *InMemoryStore) Create(_ context.Context, sess *models.RegistrationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s already exists: %w", sess.ID, sentinel.ErrConflict)
	}
	sess.Version = 1
	s.sessions[sess.ID] = clone(sess)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	return clone(stored), nil
}

func (s *InMemoryStore) Update(_ context.Context, sess *models.RegistrationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sess.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrNotFound)
	}
	if stored.Version != sess.Version {
		return fmt.Errorf("session %s version %d is stale (stored %d): %w",
			sess.ID, sess.Version, stored.Version, sentinel.ErrConflict)
	}
	sess.Version++
	s.sessions[sess.ID] = clone(sess)
	return nil
}

func (s *InMemoryStore) IndexApprovalToken(_ context.Context, token string, sessionID id.SessionID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = tokenEntry{sessionID: sessionID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) FindByApprovalToken(_ context.Context, token string) (id.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.tokens[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return id.SessionID{}, fmt.Errorf("approval token: %w", sentinel.ErrNotFound)
	}
	return entry.sessionID, nil
}

func (s *InMemoryStore) CacheAccountGUID(_ context.Context, sessionID id.SessionID, guid string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guids[sessionID] = guid
	return nil
}

func (s *InMemoryStore) AccountGUID(_ context.Context, sessionID id.SessionID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	guid, ok := s.guids[sessionID]
	if !ok {
		return "", fmt.Errorf("account guid for session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	return guid, nil
}

func (s *InMemoryStore) ListPendingApproval(_ context.Context) ([]id.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.SessionID
	for sid, sess := range s.sessions {
		if sess.Status == models.StatusPendingApproval {
			out = append(out, sid)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]id.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.SessionID
	for sid, sess := range s.sessions {
		if sess.IsExpired(now) {
			out = append(out, sid)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// clone guards against callers mutating the stored aggregate through shared
// slices. Entity rows and the retry queue are copied; pointer sub-fields are
// value-copied structs.
func clone(sess *models.RegistrationSession) *models.RegistrationSession {
	copied := *sess
	copied.Progress.Entities = append([]models.EntityStatus(nil), sess.Progress.Entities...)
	copied.Progress.RetryQueue = append([]models.EntityType(nil), sess.Progress.RetryQueue...)
	return &copied
}
