package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionState string
type DeliveryOutcome string
type DispatchTrigger string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateActive    SessionState = "active"
	SessionStateExtending SessionState = "extending"
	SessionStateStopped   SessionState = "stopped"
	SessionStateExpired   SessionState = "expired"

	DeliveryOutcomeDelivered DeliveryOutcome = "delivered"
	DeliveryOutcomeQueued    DeliveryOutcome = "queued"
	DeliveryOutcomeFailed    DeliveryOutcome = "failed"

	DispatchTriggerStart         DispatchTrigger = "start"
	DispatchTriggerScheduled     DispatchTrigger = "scheduled"
	DispatchTriggerCheckinMissed DispatchTrigger = "checkin_missed"
	DispatchTriggerFinal         DispatchTrigger = "final"
)

// IsActive reports whether the session accepts extend/dispatch.
// Extending is the transient state written while an extend is being
// persisted; it counts as active.
func (s SessionState) IsActive() bool {
	return s == SessionStateActive || s == SessionStateExtending
}

func (s SessionState) IsTerminal() bool {
	return s == SessionStateStopped || s == SessionStateExpired
}

// DispatchResult is the per-recipient outcome of one alert send.
type DispatchResult struct {
	ContactID string          `json:"contact_id" bson:"contact_id"`
	Transport string          `json:"transport" bson:"transport"`
	Outcome   DeliveryOutcome `json:"outcome" bson:"outcome"`
	MessageID string          `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Error     string          `json:"error,omitempty" bson:"error,omitempty"`
}

// DispatchRecord captures one dispatch cycle: when it ran, why, whether
// a provider degraded into last-known data, and what happened per
// recipient. One recipient failing never fails the record as a whole.
type DispatchRecord struct {
	Timestamp time.Time        `json:"timestamp" bson:"timestamp"`
	Trigger   DispatchTrigger  `json:"trigger" bson:"trigger"`
	Degraded  bool             `json:"degraded" bson:"degraded"`
	Reasons   []string         `json:"degraded_reasons,omitempty" bson:"degraded_reasons,omitempty"`
	Results   []DispatchResult `json:"results" bson:"results"`
}

// FailedCount returns how many recipients could not be reached.
func (r *DispatchRecord) FailedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == DeliveryOutcomeFailed {
			n++
		}
	}
	return n
}

// LocationSample is one point of the session's location trail. Stale
// marks samples carried over from the last known fix after a provider
// failure.
type LocationSample struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Latitude  float64   `json:"latitude" bson:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude"`
	Battery   int       `json:"battery" bson:"battery"`
	Stale     bool      `json:"stale,omitempty" bson:"stale,omitempty"`
}

type EmergencySession struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID          primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	DeviceID        string             `json:"device_id" bson:"device_id" validate:"required"`
	State           SessionState       `json:"state" bson:"state"`
	Reason          string             `json:"reason,omitempty" bson:"reason,omitempty"`
	Recipients      []Contact          `json:"recipients" bson:"recipients" validate:"required,min=1"`
	StartedAt       time.Time          `json:"started_at" bson:"started_at"`
	ExpiresAt       time.Time          `json:"expires_at" bson:"expires_at"`
	EndedAt         *time.Time         `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	LastDispatch    *DispatchRecord    `json:"last_dispatch,omitempty" bson:"last_dispatch,omitempty"`
	LocationSamples []LocationSample   `json:"location_samples,omitempty" bson:"location_samples,omitempty"`
	CheckinDueAt    *time.Time         `json:"checkin_due_at,omitempty" bson:"checkin_due_at,omitempty"`
	LastCheckinAt   *time.Time         `json:"last_checkin_at,omitempty" bson:"last_checkin_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

// Remaining returns the time left until expiry, never negative.
func (s *EmergencySession) Remaining(now time.Time) time.Duration {
	if !now.Before(s.ExpiresAt) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// LastSample returns the most recent location sample, or nil.
func (s *EmergencySession) LastSample() *LocationSample {
	if len(s.LocationSamples) == 0 {
		return nil
	}
	return &s.LocationSamples[len(s.LocationSamples)-1]
}

// Recipient looks up a snapshotted contact by id.
func (s *EmergencySession) Recipient(contactID string) *Contact {
	for i := range s.Recipients {
		if s.Recipients[i].ID == contactID {
			return &s.Recipients[i]
		}
	}
	return nil
}
