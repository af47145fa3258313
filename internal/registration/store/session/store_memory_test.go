package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"registrar/internal/registration/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) makeSession() *models.RegistrationSession {
	payload := models.RegistrationRequest{
		Account: models.AccountData{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", BirthDate: "1990-04-01"},
		Contact: &models.ContactData{PrimaryEmail: "jane@example.com"},
	}
	return models.NewSession(id.NewSessionID(), id.OrgID(uuid.New()), payload, s.now, 24*time.Hour)
}

func (s *InMemoryStoreSuite) TestCreateAndGet() {
	sess := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), sess))
	assert.EqualValues(s.T(), 1, sess.Version)

	got, err := s.store.Get(context.Background(), sess.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), sess.ID, got.ID)
	assert.Equal(s.T(), models.StatusStaged, got.Status)
}

func (s *InMemoryStoreSuite) TestCreateDuplicateConflicts() {
	sess := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), sess))
	err := s.store.Create(context.Background(), sess)
	assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), id.NewSessionID())
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateBumpsVersion() {
	sess := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), sess))

	require.NoError(s.T(), sess.ApplyStatus(models.StatusVerificationPending, s.now.Add(time.Minute)))
	require.NoError(s.T(), s.store.Update(context.Background(), sess))
	assert.EqualValues(s.T(), 2, sess.Version)

	got, err := s.store.Get(context.Background(), sess.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusVerificationPending, got.Status)
}

func (s *InMemoryStoreSuite) TestUpdateStaleVersionConflicts() {
	sess := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), sess))

	first, err := s.store.Get(context.Background(), sess.ID)
	require.NoError(s.T(), err)
	second, err := s.store.Get(context.Background(), sess.ID)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.store.Update(context.Background(), first))

	// second still holds the old version; its write must lose.
	err = s.store.Update(context.Background(), second)
	assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestStoredCopyIsIsolated() {
	sess := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), sess))

	sess.Progress.Entities[0].Success = true

	got, err := s.store.Get(context.Background(), sess.ID)
	require.NoError(s.T(), err)
	assert.False(s.T(), got.Progress.Entities[0].Success)
}

func (s *InMemoryStoreSuite) TestApprovalTokenIndex() {
	sess := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), sess))

	require.NoError(s.T(), s.store.IndexApprovalToken(context.Background(), "apr_abc", sess.ID, time.Hour))

	found, err := s.store.FindByApprovalToken(context.Background(), "apr_abc")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), sess.ID, found)

	_, err = s.store.FindByApprovalToken(context.Background(), "apr_missing")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestAccountGUIDCache() {
	sess := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), sess))

	require.NoError(s.T(), s.store.CacheAccountGUID(context.Background(), sess.ID, "guid-123", time.Hour))
	guid, err := s.store.AccountGUID(context.Background(), sess.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "guid-123", guid)
}

func (s *InMemoryStoreSuite) TestListPendingApproval() {
	pending := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), pending))
	require.NoError(s.T(), pending.ApplyStatus(models.StatusVerificationPending, s.now))
	require.NoError(s.T(), pending.ApplyStatus(models.StatusEmailVerified, s.now))
	require.NoError(s.T(), pending.ApplyStatus(models.StatusPendingApproval, s.now))
	require.NoError(s.T(), s.store.Update(context.Background(), pending))

	staged := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), staged))

	ids, err := s.store.ListPendingApproval(context.Background())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []id.SessionID{pending.ID}, ids)
}

func (s *InMemoryStoreSuite) TestListExpired() {
	sess := s.makeSession()
	require.NoError(s.T(), s.store.Create(context.Background(), sess))

	ids, err := s.store.ListExpired(context.Background(), s.now.Add(time.Hour), 10)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), ids)

	ids, err = s.store.ListExpired(context.Background(), s.now.Add(25*time.Hour), 10)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []id.SessionID{sess.ID}, ids)
}
