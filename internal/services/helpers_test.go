package services

import (
	"context"
	"sync"
	"time"

	"safeguard/internal/config"
	"safeguard/internal/models"
	"safeguard/internal/repositories/interfaces"
	"safeguard/internal/utils"
	"safeguard/pkg/logger"
	"safeguard/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testLogger() *logger.Logger {
	log, _ := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text"})
	return log
}

func testSessionConfig() *config.SessionConfig {
	return &config.SessionConfig{
		DefaultDuration:    30 * time.Minute,
		MinDuration:        10 * time.Millisecond,
		MaxDuration:        24 * time.Hour,
		DispatchInterval:   time.Hour,
		ProviderTimeout:    time.Second,
		SendTimeout:        time.Second,
		CheckinInterval:    time.Hour,
		CheckinGrace:       time.Second,
		MaxLocationSamples: 100,
		TelemetryStale:     2 * time.Minute,
		RetentionPeriod:    30 * 24 * time.Hour,
		JanitorInterval:    time.Hour,
	}
}

// fakeCache is an in-memory CacheService.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]interface{}
	counts map[string]int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: make(map[string]interface{}),
		counts: make(map[string]int64),
	}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[key]; ok {
		if report, ok := v.(*models.TelemetryReport); ok {
			if out, ok := dest.(*models.TelemetryReport); ok {
				*out = *report
				return nil
			}
		}
	}
	return errCacheMiss
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
		delete(f.counts, key)
	}
	return nil
}

func (f *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value
	return true, nil
}

func (f *fakeCache) Increment(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	f.values[key] = f.counts[key]
	return f.counts[key], nil
}

func (f *fakeCache) SetExpire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (f *fakeCache) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return time.Minute, nil
}

func (f *fakeCache) AcquireSessionLock(ctx context.Context, deviceID string, sessionID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := utils.CacheKeyActiveSession + deviceID
	if existing, ok := f.values[key]; ok && existing != sessionID {
		return false, nil
	}
	f.values[key] = sessionID
	return true, nil
}

func (f *fakeCache) ReleaseSessionLock(ctx context.Context, deviceID string) error {
	return f.Delete(ctx, utils.CacheKeyActiveSession+deviceID)
}

func (f *fakeCache) RefreshSessionLock(ctx context.Context, deviceID string, ttl time.Duration) error {
	return nil
}

func (f *fakeCache) SetTelemetry(ctx context.Context, deviceID string, report *models.TelemetryReport, ttl time.Duration) error {
	return f.Set(ctx, utils.CacheKeyTelemetry+deviceID, report, ttl)
}

func (f *fakeCache) GetTelemetry(ctx context.Context, deviceID string) (*models.TelemetryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[utils.CacheKeyTelemetry+deviceID]; ok {
		if report, ok := v.(*models.TelemetryReport); ok {
			copied := *report
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCache) IncrementPinAttempts(ctx context.Context, userID string, window time.Duration) (int64, error) {
	return f.Increment(ctx, utils.CacheKeyPinAttempts+userID)
}

func (f *fakeCache) ResetPinAttempts(ctx context.Context, userID string) error {
	return f.Delete(ctx, utils.CacheKeyPinAttempts+userID)
}

func (f *fakeCache) LockoutPin(ctx context.Context, userID string, duration time.Duration) error {
	return f.Set(ctx, utils.CacheKeyPinLockout+userID, true, duration)
}

func (f *fakeCache) IsPinLockedOut(ctx context.Context, userID string) (bool, error) {
	return f.Exists(ctx, utils.CacheKeyPinLockout+userID)
}

var errCacheMiss = &cacheMissError{}

type cacheMissError struct{}

func (e *cacheMissError) Error() string { return "cache miss" }

// fakeSessionRepo is an in-memory SessionRepository with CAS semantics.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]*models.EmergencySession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[primitive.ObjectID]*models.EmergencySession),
	}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *models.EmergencySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = primitive.NewObjectID()
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) GetActiveByDevice(ctx context.Context, deviceID string) (*models.EmergencySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.DeviceID == deviceID && session.State.IsActive() {
			copied := *session
			return &copied, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *fakeSessionRepo) GetActiveSessions(ctx context.Context) ([]*models.EmergencySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.EmergencySession
	for _, session := range r.sessions {
		if session.State.IsActive() {
			copied := *session
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeSessionRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.EmergencySession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.EmergencySession
	for _, session := range r.sessions {
		if session.UserID == userID {
			copied := *session
			result = append(result, &copied)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	if v, ok := updates["last_checkin_at"].(time.Time); ok {
		session.LastCheckinAt = &v
	}
	if v, ok := updates["checkin_due_at"].(time.Time); ok {
		session.CheckinDueAt = &v
	}
	session.UpdatedAt = time.Now()
	return nil
}

func (r *fakeSessionRepo) TransitionState(ctx context.Context, id primitive.ObjectID, from []models.SessionState, to models.SessionState, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, state := range from {
		if session.State == state {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	session.State = to
	if v, ok := updates["ended_at"].(time.Time); ok {
		session.EndedAt = &v
	}
	session.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeSessionRepo) ExtendExpiry(ctx context.Context, id primitive.ObjectID, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	session.ExpiresAt = expiresAt
	return nil
}

func (r *fakeSessionRepo) AppendLocationSample(ctx context.Context, id primitive.ObjectID, sample *models.LocationSample, maxSamples int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	session.LocationSamples = append(session.LocationSamples, *sample)
	if len(session.LocationSamples) > maxSamples {
		session.LocationSamples = session.LocationSamples[len(session.LocationSamples)-maxSamples:]
	}
	return nil
}

func (r *fakeSessionRepo) SetLastDispatch(ctx context.Context, id primitive.ObjectID, record *models.DispatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	session.LastDispatch = record
	return nil
}

func (r *fakeSessionRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, session := range r.sessions {
		if session.State.IsTerminal() && session.EndedAt != nil && session.EndedAt.Before(cutoff) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// fakeDispatcher records dispatch calls.
type fakeDispatcher struct {
	mu    sync.Mutex
	calls []fakeDispatchCall
}

type fakeDispatchCall struct {
	SessionID primitive.ObjectID
	Trigger   models.DispatchTrigger
	Degraded  bool
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, session *models.EmergencySession, sample *models.LocationSample, trigger models.DispatchTrigger, reasons []string) *models.DispatchRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fakeDispatchCall{
		SessionID: session.ID,
		Trigger:   trigger,
		Degraded:  len(reasons) > 0,
	})
	results := make([]models.DispatchResult, 0, len(session.Recipients))
	for _, recipient := range session.Recipients {
		results = append(results, models.DispatchResult{
			ContactID: recipient.ID,
			Transport: "fake",
			Outcome:   models.DeliveryOutcomeDelivered,
		})
	}
	return &models.DispatchRecord{
		Timestamp: time.Now(),
		Trigger:   trigger,
		Degraded:  len(reasons) > 0,
		Reasons:   reasons,
		Results:   results,
	}
}

func (d *fakeDispatcher) BuildAlertMessage(ctx context.Context, session *models.EmergencySession, sample *models.LocationSample, trigger models.DispatchTrigger) *AlertMessage {
	return &AlertMessage{Title: "test", Body: "test"}
}

func (d *fakeDispatcher) callsFor(trigger models.DispatchTrigger) []fakeDispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var matching []fakeDispatchCall
	for _, call := range d.calls {
		if call.Trigger == trigger {
			matching = append(matching, call)
		}
	}
	return matching
}

// fakeTelemetry returns a fixed sample.
type fakeTelemetry struct {
	mu      sync.Mutex
	sample  *models.LocationSample
	reasons []string
}

func (t *fakeTelemetry) Report(ctx context.Context, deviceID string, report *models.TelemetryReport) error {
	return nil
}

func (t *fakeTelemetry) Latest(ctx context.Context, deviceID string) (*models.TelemetryReport, error) {
	return nil, nil
}

func (t *fakeTelemetry) Sample(ctx context.Context, deviceID string) (*models.LocationSample, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sample, t.reasons
}

func (t *fakeTelemetry) IngestTelemetry(deviceID string, frame *websocket.TelemetryFrame) {}

func testContacts() []models.Contact {
	return []models.Contact{
		{ID: "c1", Name: "Alice", Phone: "+15555550100"},
	}
}
