package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"safeguard/internal/models"
	"safeguard/pkg/geocode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeTransport answers deliverability from a predicate and records sends.
type fakeTransport struct {
	mu         sync.Mutex
	name       string
	canDeliver func(*models.Contact) bool
	outcome    models.DeliveryOutcome
	err        error
	sent       []string
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) CanDeliver(contact *models.Contact) bool {
	if t.canDeliver == nil {
		return true
	}
	return t.canDeliver(contact)
}

func (t *fakeTransport) Send(ctx context.Context, contact *models.Contact, message *AlertMessage) (models.DeliveryOutcome, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, contact.ID)
	if t.err != nil {
		return models.DeliveryOutcomeFailed, "", t.err
	}
	return t.outcome, "msg-" + contact.ID, nil
}

type fakeGeocoder struct {
	address string
	err     error
}

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*geocode.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &geocode.Result{Address: g.address}, nil
}

func testSession(recipients ...models.Contact) *models.EmergencySession {
	now := time.Now()
	return &models.EmergencySession{
		ID:         primitive.NewObjectID(),
		UserID:     primitive.NewObjectID(),
		DeviceID:   "device-1",
		State:      models.SessionStateActive,
		Recipients: recipients,
		StartedAt:  now,
		ExpiresAt:  now.Add(25 * time.Minute),
	}
}

func TestDispatchPrefersHigherRankedTransport(t *testing.T) {
	smsFake := &fakeTransport{name: "sms", outcome: models.DeliveryOutcomeQueued}
	pushFake := &fakeTransport{name: "push", outcome: models.DeliveryOutcomeQueued}
	svc := NewDispatchService([]Transport{smsFake, pushFake}, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Name: "Alice", Phone: "+15555550100", PushToken: "tok"})
	record := svc.Dispatch(context.Background(), session, nil, models.DispatchTriggerStart, nil)

	require.Len(t, record.Results, 1)
	assert.Equal(t, "sms", record.Results[0].Transport)
	assert.Equal(t, models.DeliveryOutcomeQueued, record.Results[0].Outcome)
	assert.Empty(t, pushFake.sent)
}

func TestDispatchFallsBackWhenTransportFails(t *testing.T) {
	smsFake := &fakeTransport{name: "sms", err: errors.New("carrier rejected")}
	pushFake := &fakeTransport{name: "push", outcome: models.DeliveryOutcomeQueued}
	svc := NewDispatchService([]Transport{smsFake, pushFake}, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Name: "Alice", Phone: "+15555550100", PushToken: "tok"})
	record := svc.Dispatch(context.Background(), session, nil, models.DispatchTriggerStart, nil)

	require.Len(t, record.Results, 1)
	assert.Equal(t, "push", record.Results[0].Transport)
	assert.Equal(t, models.DeliveryOutcomeQueued, record.Results[0].Outcome)
	assert.Len(t, smsFake.sent, 1)
}

func TestDispatchSkipsTransportThatCannotDeliver(t *testing.T) {
	smsFake := &fakeTransport{
		name:       "sms",
		outcome:    models.DeliveryOutcomeQueued,
		canDeliver: func(c *models.Contact) bool { return c.Phone != "" },
	}
	pushFake := &fakeTransport{
		name:       "push",
		outcome:    models.DeliveryOutcomeQueued,
		canDeliver: func(c *models.Contact) bool { return c.PushToken != "" },
	}
	svc := NewDispatchService([]Transport{smsFake, pushFake}, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Name: "Alice", PushToken: "tok"})
	record := svc.Dispatch(context.Background(), session, nil, models.DispatchTriggerStart, nil)

	require.Len(t, record.Results, 1)
	assert.Equal(t, "push", record.Results[0].Transport)
	assert.Empty(t, smsFake.sent)
}

func TestDispatchOneRecipientFailingDoesNotBlockOthers(t *testing.T) {
	flaky := &fakeTransport{
		name: "sms",
		err:  errors.New("number unreachable"),
		canDeliver: func(c *models.Contact) bool {
			return c.ID == "c1"
		},
	}
	steady := &fakeTransport{name: "push", outcome: models.DeliveryOutcomeDelivered}
	svc := NewDispatchService([]Transport{flaky, steady}, nil, testSessionConfig(), testLogger())

	session := testSession(
		models.Contact{ID: "c1", Name: "Alice", Phone: "+15555550100"},
		models.Contact{ID: "c2", Name: "Bob", PushToken: "tok"},
	)
	record := svc.Dispatch(context.Background(), session, nil, models.DispatchTriggerStart, nil)

	require.Len(t, record.Results, 2)
	assert.Equal(t, models.DeliveryOutcomeDelivered, record.Results[0].Outcome)
	assert.Equal(t, models.DeliveryOutcomeDelivered, record.Results[1].Outcome)
}

func TestDispatchRecordsFailureWhenAllTransportsFail(t *testing.T) {
	broken := &fakeTransport{name: "sms", err: errors.New("carrier down")}
	svc := NewDispatchService([]Transport{broken}, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Name: "Alice", Phone: "+15555550100"})
	record := svc.Dispatch(context.Background(), session, nil, models.DispatchTriggerStart, nil)

	require.Len(t, record.Results, 1)
	assert.Equal(t, models.DeliveryOutcomeFailed, record.Results[0].Outcome)
	assert.Equal(t, "carrier down", record.Results[0].Error)
	assert.Equal(t, 1, record.FailedCount())
}

func TestDispatchStopsBetweenRecipientsOnCancel(t *testing.T) {
	transport := &fakeTransport{name: "sms", outcome: models.DeliveryOutcomeQueued}
	svc := NewDispatchService([]Transport{transport}, nil, testSessionConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := testSession(
		models.Contact{ID: "c1", Phone: "+15555550100"},
		models.Contact{ID: "c2", Phone: "+15555550101"},
	)
	record := svc.Dispatch(ctx, session, nil, models.DispatchTriggerScheduled, nil)

	assert.Empty(t, record.Results)
	assert.Empty(t, transport.sent)
}

func TestDispatchMarksDegradedRecord(t *testing.T) {
	transport := &fakeTransport{name: "sms", outcome: models.DeliveryOutcomeQueued}
	svc := NewDispatchService([]Transport{transport}, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Phone: "+15555550100"})
	record := svc.Dispatch(context.Background(), session, nil, models.DispatchTriggerScheduled, []string{"telemetry unavailable"})

	assert.True(t, record.Degraded)
	assert.Equal(t, []string{"telemetry unavailable"}, record.Reasons)
}

func TestBuildAlertMessageWithLocation(t *testing.T) {
	svc := NewDispatchService(nil, &fakeGeocoder{address: "1 Main St, Springfield"}, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Phone: "+15555550100"})
	session.Reason = "Walking home alone"
	sample := &models.LocationSample{
		Latitude:  37.4219,
		Longitude: -122.0840,
		Battery:   64,
		Timestamp: time.Now(),
	}

	msg := svc.BuildAlertMessage(context.Background(), session, sample, models.DispatchTriggerStart)

	assert.Contains(t, msg.Body, "EMERGENCY ALERT: Walking home alone.")
	assert.Contains(t, msg.Body, "http://maps.google.com/maps?q=37.4")
	assert.Contains(t, msg.Body, "(1 Main St, Springfield)")
	assert.Contains(t, msg.Body, "Battery: 64%.")
	assert.Contains(t, msg.Body, "Sharing for another")
	assert.NotContains(t, msg.Body, "[last known position]")
}

func TestBuildAlertMessageDefaultsReason(t *testing.T) {
	svc := NewDispatchService(nil, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Phone: "+15555550100"})
	msg := svc.BuildAlertMessage(context.Background(), session, nil, models.DispatchTriggerStart)

	assert.Contains(t, msg.Body, "EMERGENCY ALERT: Feeling unsafe.")
	assert.Contains(t, msg.Body, "Location unavailable.")
}

func TestBuildAlertMessageMarksStaleSample(t *testing.T) {
	svc := NewDispatchService(nil, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Phone: "+15555550100"})
	sample := &models.LocationSample{
		Latitude:  37.4219,
		Longitude: -122.0840,
		Battery:   12,
		Stale:     true,
		Timestamp: time.Now().Add(-10 * time.Minute),
	}

	msg := svc.BuildAlertMessage(context.Background(), session, sample, models.DispatchTriggerScheduled)

	assert.Contains(t, msg.Body, "[last known position]")
}

func TestBuildAlertMessageCheckinMissed(t *testing.T) {
	svc := NewDispatchService(nil, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Phone: "+15555550100"})
	msg := svc.BuildAlertMessage(context.Background(), session, nil, models.DispatchTriggerCheckinMissed)

	assert.Contains(t, msg.Body, "Safety check-in was missed.")
}

func TestBuildAlertMessageFinal(t *testing.T) {
	svc := NewDispatchService(nil, nil, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Phone: "+15555550100"})
	msg := svc.BuildAlertMessage(context.Background(), session, nil, models.DispatchTriggerFinal)

	assert.Equal(t, "Location sharing ended", msg.Title)
	assert.NotContains(t, msg.Body, "EMERGENCY ALERT")
	assert.Equal(t, "session_ended", msg.Data["event"])
}

func TestBuildAlertMessageSurvivesGeocoderFailure(t *testing.T) {
	svc := NewDispatchService(nil, &fakeGeocoder{err: errors.New("quota exceeded")}, testSessionConfig(), testLogger())

	session := testSession(models.Contact{ID: "c1", Phone: "+15555550100"})
	sample := &models.LocationSample{Latitude: 37.4219, Longitude: -122.0840, Battery: 50}

	msg := svc.BuildAlertMessage(context.Background(), session, sample, models.DispatchTriggerStart)

	assert.Contains(t, msg.Body, "http://maps.google.com/maps?q=")
	assert.NotContains(t, msg.Body, "(")
}

func TestSMSOutcomeMapping(t *testing.T) {
	assert.Equal(t, models.DeliveryOutcomeDelivered, smsOutcome("delivered"))
	assert.Equal(t, models.DeliveryOutcomeQueued, smsOutcome("queued"))
	assert.Equal(t, models.DeliveryOutcomeQueued, smsOutcome("sent"))
	assert.Equal(t, models.DeliveryOutcomeFailed, smsOutcome("undelivered"))
}
