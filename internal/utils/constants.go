package utils

import "time"

// Application Constants
const (
	AppName    = "Safeguard"
	AppVersion = "1.0.0"

	// Default values
	DefaultLanguage    = "en"
	DefaultCountryCode = "+1"
	DefaultTimeZone    = "UTC"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Session Constants
	DefaultAlertReason      = "Feeling unsafe"
	MinSessionDuration      = 1 * time.Minute
	MaxSessionDuration      = 24 * time.Hour
	DefaultSessionDuration  = 30 * time.Minute
	DefaultDispatchInterval = 5 * time.Minute
	MaxLocationSamples      = 100
	MaxReasonLength         = 140

	// Safety check-in
	DefaultCheckinInterval = 5 * time.Minute
	DefaultCheckinGrace    = 30 * time.Second

	// PIN
	PinMinLength = 4
	PinMaxLength = 6

	// Dispatch
	ProviderTimeout = 5 * time.Second
	SendTimeout     = 10 * time.Second

	// Retention
	SessionRetentionPeriod = 30 * 24 * time.Hour

	// Rate Limiting
	DefaultRateLimit = 100
	PinRateLimit     = 5
)

// Response Status
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Common error messages
const (
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)

// Cache key prefixes
const (
	CacheKeySession       = "session:"
	CacheKeyActiveSession = "session:active:"
	CacheKeyTelemetry     = "telemetry:"
	CacheKeyPinAttempts   = "sos:attempts:"
	CacheKeyPinLockout    = "sos:lockout:"
)
