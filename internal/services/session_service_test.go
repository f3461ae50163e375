package services

import (
	"context"
	"testing"
	"time"

	"safeguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestSessionService(repo *fakeSessionRepo, dispatcher *fakeDispatcher) SessionService {
	return NewSessionService(repo, newFakeCache(), dispatcher, &fakeTelemetry{},
		nil, testSessionConfig(), testLogger())
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartRequiresRecipients(t *testing.T) {
	svc := newTestSessionService(newFakeSessionRepo(), &fakeDispatcher{})

	_, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:   primitive.NewObjectID(),
		DeviceID: "device-1",
	})

	assert.ErrorIs(t, err, ErrInvalidRecipients)
}

func TestStartRejectsDurationOutOfRange(t *testing.T) {
	svc := newTestSessionService(newFakeSessionRepo(), &fakeDispatcher{})

	_, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:     primitive.NewObjectID(),
		DeviceID:   "device-1",
		Duration:   48 * time.Hour,
		Recipients: testContacts(),
	})

	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestStartDispatchesInitialAlert(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc := newTestSessionService(newFakeSessionRepo(), dispatcher)
	defer svc.Shutdown(context.Background())

	session, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:     primitive.NewObjectID(),
		DeviceID:   "device-1",
		Duration:   time.Minute,
		Recipients: testContacts(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateActive, session.State)

	waitFor(t, time.Second, func() bool {
		return len(dispatcher.callsFor(models.DispatchTriggerStart)) == 1
	})
}

func TestStartRejectsSecondActiveSession(t *testing.T) {
	svc := newTestSessionService(newFakeSessionRepo(), &fakeDispatcher{})
	defer svc.Shutdown(context.Background())

	userID := primitive.NewObjectID()
	_, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:     userID,
		DeviceID:   "device-1",
		Duration:   time.Minute,
		Recipients: testContacts(),
	})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), &StartSessionRequest{
		UserID:     userID,
		DeviceID:   "device-1",
		Duration:   time.Minute,
		Recipients: testContacts(),
	})
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestStopSendsFinalAlertExactlyOnce(t *testing.T) {
	repo := newFakeSessionRepo()
	dispatcher := &fakeDispatcher{}
	svc := newTestSessionService(repo, dispatcher)
	defer svc.Shutdown(context.Background())

	userID := primitive.NewObjectID()
	session, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:     userID,
		DeviceID:   "device-1",
		Duration:   time.Minute,
		Recipients: testContacts(),
	})
	require.NoError(t, err)

	stopped, err := svc.Stop(context.Background(), session.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateStopped, stopped.State)
	require.NotNil(t, stopped.EndedAt)

	// The losing side of the race sees the session already terminal.
	_, err = svc.Stop(context.Background(), session.ID, userID)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	assert.Len(t, dispatcher.callsFor(models.DispatchTriggerFinal), 1)
}

func TestSessionExpires(t *testing.T) {
	repo := newFakeSessionRepo()
	dispatcher := &fakeDispatcher{}
	svc := newTestSessionService(repo, dispatcher)
	defer svc.Shutdown(context.Background())

	userID := primitive.NewObjectID()
	session, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:     userID,
		DeviceID:   "device-1",
		Duration:   30 * time.Millisecond,
		Recipients: testContacts(),
	})
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool {
		current, err := repo.GetByID(context.Background(), session.ID)
		return err == nil && current.State == models.SessionStateExpired
	})

	waitFor(t, time.Second, func() bool {
		return len(dispatcher.callsFor(models.DispatchTriggerFinal)) == 1
	})

	// A stop after expiry must not produce a second final alert.
	_, err = svc.Stop(context.Background(), session.ID, userID)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Len(t, dispatcher.callsFor(models.DispatchTriggerFinal), 1)
}

func TestExtendPushesExpiryOut(t *testing.T) {
	repo := newFakeSessionRepo()
	dispatcher := &fakeDispatcher{}
	svc := newTestSessionService(repo, dispatcher)
	defer svc.Shutdown(context.Background())

	userID := primitive.NewObjectID()
	session, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:     userID,
		DeviceID:   "device-1",
		Duration:   50 * time.Millisecond,
		Recipients: testContacts(),
	})
	require.NoError(t, err)

	extended, err := svc.Extend(context.Background(), session.ID, userID, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateActive, extended.State)
	assert.True(t, extended.ExpiresAt.After(session.ExpiresAt))

	// Well past the original deadline the session must still be active.
	time.Sleep(150 * time.Millisecond)
	current, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateActive, current.State)
	assert.Empty(t, dispatcher.callsFor(models.DispatchTriggerFinal))
}

func TestExtendRejectsStoppedSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestSessionService(repo, &fakeDispatcher{})
	defer svc.Shutdown(context.Background())

	userID := primitive.NewObjectID()
	session, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:     userID,
		DeviceID:   "device-1",
		Duration:   time.Minute,
		Recipients: testContacts(),
	})
	require.NoError(t, err)

	_, err = svc.Stop(context.Background(), session.ID, userID)
	require.NoError(t, err)

	_, err = svc.Extend(context.Background(), session.ID, userID, time.Minute)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestStopUnknownSession(t *testing.T) {
	svc := newTestSessionService(newFakeSessionRepo(), &fakeDispatcher{})

	_, err := svc.Stop(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStopForeignSessionLooksMissing(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestSessionService(repo, &fakeDispatcher{})
	defer svc.Shutdown(context.Background())

	session, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:     primitive.NewObjectID(),
		DeviceID:   "device-1",
		Duration:   time.Minute,
		Recipients: testContacts(),
	})
	require.NoError(t, err)

	_, err = svc.Stop(context.Background(), session.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAcknowledgeCheckinMovesDueTime(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := newTestSessionService(repo, &fakeDispatcher{})
	defer svc.Shutdown(context.Background())

	userID := primitive.NewObjectID()
	session, err := svc.Start(context.Background(), &StartSessionRequest{
		UserID:         userID,
		DeviceID:       "device-1",
		Duration:       time.Minute,
		Recipients:     testContacts(),
		CheckinEnabled: true,
	})
	require.NoError(t, err)
	require.NotNil(t, session.CheckinDueAt)

	acked, err := svc.AcknowledgeCheckin(context.Background(), session.ID, userID)
	require.NoError(t, err)
	require.NotNil(t, acked.LastCheckinAt)
	assert.True(t, acked.CheckinDueAt.After(*acked.LastCheckinAt))
}

func TestRestoreExpiresLapsedSessions(t *testing.T) {
	repo := newFakeSessionRepo()
	dispatcher := &fakeDispatcher{}

	session := &models.EmergencySession{
		UserID:     primitive.NewObjectID(),
		DeviceID:   "device-1",
		State:      models.SessionStateActive,
		Recipients: testContacts(),
		StartedAt:  time.Now().Add(-time.Hour),
		ExpiresAt:  time.Now().Add(-30 * time.Minute),
	}
	require.NoError(t, repo.Create(context.Background(), session))

	svc := newTestSessionService(repo, dispatcher)
	defer svc.Shutdown(context.Background())

	require.NoError(t, svc.Restore(context.Background()))

	current, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateExpired, current.State)
	assert.Len(t, dispatcher.callsFor(models.DispatchTriggerFinal), 1)
}

func TestRestoreResumesLiveSessions(t *testing.T) {
	repo := newFakeSessionRepo()
	dispatcher := &fakeDispatcher{}

	session := &models.EmergencySession{
		UserID:     primitive.NewObjectID(),
		DeviceID:   "device-1",
		State:      models.SessionStateActive,
		Recipients: testContacts(),
		StartedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(80 * time.Millisecond),
	}
	require.NoError(t, repo.Create(context.Background(), session))

	svc := newTestSessionService(repo, dispatcher)
	defer svc.Shutdown(context.Background())

	require.NoError(t, svc.Restore(context.Background()))

	waitFor(t, 2*time.Second, func() bool {
		current, err := repo.GetByID(context.Background(), session.ID)
		return err == nil && current.State == models.SessionStateExpired
	})
}
