package services

import "errors"

var (
	ErrInvalidRecipients = errors.New("at least one recipient is required")
	ErrInvalidDuration   = errors.New("session duration out of range")
	ErrAlreadyActive     = errors.New("device already has an active session")
	ErrNoActiveSession   = errors.New("no active session for device")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrWrongPin          = errors.New("wrong PIN")
	ErrInvalidPin        = errors.New("PIN must be 4 to 6 digits")
	ErrPinNotSet         = errors.New("no PIN configured")
	ErrTooManyAttempts   = errors.New("too many PIN attempts")
	ErrSirenNotArmed     = errors.New("SOS siren is not armed")
)
