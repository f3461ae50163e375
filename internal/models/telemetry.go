package models

import "time"

// TelemetryReport is the latest location and battery reading a device
// has reported. Reports back the location and battery providers the
// session manager samples during a dispatch cycle.
type TelemetryReport struct {
	DeviceID   string    `json:"device_id" bson:"device_id" validate:"required"`
	Latitude   float64   `json:"latitude" bson:"latitude"`
	Longitude  float64   `json:"longitude" bson:"longitude"`
	Accuracy   float64   `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	Battery    int       `json:"battery" bson:"battery"`
	ReportedAt time.Time `json:"reported_at" bson:"reported_at"`
}

// Age returns how old the report is at the given instant.
func (t *TelemetryReport) Age(now time.Time) time.Duration {
	return now.Sub(t.ReportedAt)
}
