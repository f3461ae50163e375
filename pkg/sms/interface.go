package sms

import "context"

// Provider abstracts the SMS gateway used for alert fan-out.
type Provider interface {
	SendSMS(ctx context.Context, request *Request) (*Response, error)
	GetDeliveryStatus(ctx context.Context, messageID string) (*DeliveryStatus, error)
}

type Request struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type Response struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"` // queued, sent, delivered, failed
	Error     string `json:"error,omitempty"`
}

type DeliveryStatus struct {
	MessageID    string `json:"message_id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
