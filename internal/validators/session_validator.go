package validators

import (
	"safeguard/internal/utils"
)

type ContactRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=100"`
	Phone     string `json:"phone" validate:"omitempty,phone_number"`
	PushToken string `json:"push_token" validate:"omitempty,max=4096"`
	PhotoURL  string `json:"photo_url" validate:"omitempty,url"`
}

type StartSessionRequest struct {
	Reason          string           `json:"reason" validate:"omitempty,max=140"`
	DurationMinutes int              `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	Recipients      []ContactRequest `json:"recipients" validate:"required,min=1,max=10,dive"`
	CheckinEnabled  bool             `json:"checkin_enabled"`
}

type ExtendSessionRequest struct {
	DurationMinutes int `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
}

type SetPinRequest struct {
	Pin string `json:"pin" validate:"required,pin"`
}

type SilenceRequest struct {
	Pin string `json:"pin" validate:"required,pin"`
}

type TelemetryRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Accuracy  float64 `json:"accuracy" validate:"omitempty,min=0"`
	Battery   int     `json:"battery" validate:"battery"`
}

func ValidateStartSession(req *StartSessionRequest) ValidationErrors {
	errors := ValidateStruct(req)

	// Every recipient needs at least one reachable channel.
	for _, recipient := range req.Recipients {
		if recipient.Phone == "" && recipient.PushToken == "" {
			errors = append(errors, ValidationError{
				Field:   "recipients",
				Tag:     "reachable",
				Value:   recipient.Name,
				Message: "recipient needs a phone number or push token",
			})
		}
	}

	if len(req.Reason) > utils.MaxReasonLength {
		errors = append(errors, ValidationError{
			Field:   "reason",
			Tag:     "max",
			Message: "reason is too long",
		})
	}

	return errors
}

func ValidateExtendSession(req *ExtendSessionRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateTelemetry(req *TelemetryRequest) ValidationErrors {
	return ValidateStruct(req)
}
