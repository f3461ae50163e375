package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"safeguard/internal/config"
	"safeguard/internal/models"
	"safeguard/internal/utils"
	"safeguard/pkg/geocode"
	"safeguard/pkg/logger"
	"safeguard/pkg/push"
	"safeguard/pkg/sms"
)

// AlertMessage is the rendered content delivered to every recipient of a
// dispatch cycle.
type AlertMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// Transport is one ranked delivery channel. Higher ranked transports are
// tried first; the first queued or delivered result per recipient wins.
type Transport interface {
	Name() string
	CanDeliver(contact *models.Contact) bool
	Send(ctx context.Context, contact *models.Contact, message *AlertMessage) (models.DeliveryOutcome, string, error)
}

type DispatchService interface {
	Dispatch(ctx context.Context, session *models.EmergencySession, sample *models.LocationSample, trigger models.DispatchTrigger, degradedReasons []string) *models.DispatchRecord
	BuildAlertMessage(ctx context.Context, session *models.EmergencySession, sample *models.LocationSample, trigger models.DispatchTrigger) *AlertMessage
}

type dispatchService struct {
	transports []Transport
	geocoder   geocode.Provider
	config     *config.SessionConfig
	logger     *logger.Logger
}

func NewDispatchService(transports []Transport, geocoder geocode.Provider, cfg *config.SessionConfig, log *logger.Logger) DispatchService {
	return &dispatchService{
		transports: transports,
		geocoder:   geocoder,
		config:     cfg,
		logger:     log,
	}
}

// Dispatch fans the alert out to every recipient. One recipient failing
// never prevents the others from being attempted; a cancelled context stops
// the fan-out between recipients, not mid-send.
func (s *dispatchService) Dispatch(ctx context.Context, session *models.EmergencySession, sample *models.LocationSample, trigger models.DispatchTrigger, degradedReasons []string) *models.DispatchRecord {
	record := &models.DispatchRecord{
		Timestamp: time.Now(),
		Trigger:   trigger,
		Degraded:  len(degradedReasons) > 0,
		Reasons:   degradedReasons,
	}

	message := s.BuildAlertMessage(ctx, session, sample, trigger)

	for i := range session.Recipients {
		if ctx.Err() != nil {
			break
		}

		contact := &session.Recipients[i]
		result := s.sendToContact(ctx, contact, message)
		record.Results = append(record.Results, result)
	}

	s.logger.LogDispatchEvent(session.ID, string(trigger), len(record.Results), record.FailedCount(), record.Degraded)

	return record
}

func (s *dispatchService) sendToContact(ctx context.Context, contact *models.Contact, message *AlertMessage) models.DispatchResult {
	result := models.DispatchResult{
		ContactID: contact.ID,
		Outcome:   models.DeliveryOutcomeFailed,
	}

	var lastErr string
	for _, transport := range s.transports {
		if !transport.CanDeliver(contact) {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
		outcome, messageID, err := transport.Send(sendCtx, contact, message)
		cancel()

		if err != nil {
			lastErr = err.Error()
			s.logger.WithFields(map[string]interface{}{
				"transport": transport.Name(),
				"contact":   contact.ID,
			}).WithError(err).Warn("Alert delivery attempt failed")
			continue
		}

		result.Transport = transport.Name()
		result.Outcome = outcome
		result.MessageID = messageID
		return result
	}

	result.Error = lastErr
	if result.Error == "" {
		result.Error = "no transport available for contact"
	}

	return result
}

func (s *dispatchService) BuildAlertMessage(ctx context.Context, session *models.EmergencySession, sample *models.LocationSample, trigger models.DispatchTrigger) *AlertMessage {
	reason := session.Reason
	if reason == "" {
		reason = utils.DefaultAlertReason
	}

	if trigger == models.DispatchTriggerFinal {
		return &AlertMessage{
			Title: "Location sharing ended",
			Body:  fmt.Sprintf("%s has stopped sharing their location.", reason),
			Data: map[string]string{
				"session_id": session.ID.Hex(),
				"event":      "session_ended",
			},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "EMERGENCY ALERT: %s.", reason)

	if sample != nil {
		fmt.Fprintf(&b, " Location: http://maps.google.com/maps?q=%f,%f", sample.Latitude, sample.Longitude)
		if address := s.resolveAddress(ctx, sample); address != "" {
			fmt.Fprintf(&b, " (%s)", address)
		}
		if sample.Stale {
			b.WriteString(" [last known position]")
		}
		fmt.Fprintf(&b, ". Battery: %d%%.", sample.Battery)
	} else {
		b.WriteString(" Location unavailable.")
	}

	if remaining := session.Remaining(time.Now()); remaining > 0 {
		fmt.Fprintf(&b, " Sharing for another %s.", utils.FormatDuration(remaining))
	}

	if trigger == models.DispatchTriggerCheckinMissed {
		b.WriteString(" Safety check-in was missed.")
	}

	return &AlertMessage{
		Title: "Emergency alert",
		Body:  b.String(),
		Data: map[string]string{
			"session_id": session.ID.Hex(),
			"event":      "alert",
			"trigger":    string(trigger),
		},
	}
}

func (s *dispatchService) resolveAddress(ctx context.Context, sample *models.LocationSample) string {
	if s.geocoder == nil {
		return ""
	}

	geoCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()

	result, err := s.geocoder.ReverseGeocode(geoCtx, sample.Latitude, sample.Longitude)
	if err != nil {
		s.logger.WithError(err).Debug("Reverse geocoding failed")
		return ""
	}

	return result.Address
}

// SMS transport

type smsTransport struct {
	name     string
	provider sms.Provider
	from     string
}

func NewSMSTransport(name string, provider sms.Provider, from string) Transport {
	return &smsTransport{
		name:     name,
		provider: provider,
		from:     from,
	}
}

func (t *smsTransport) Name() string {
	return t.name
}

func (t *smsTransport) CanDeliver(contact *models.Contact) bool {
	return contact.Phone != ""
}

func (t *smsTransport) Send(ctx context.Context, contact *models.Contact, message *AlertMessage) (models.DeliveryOutcome, string, error) {
	resp, err := t.provider.SendSMS(ctx, &sms.Request{
		To:      contact.Phone,
		From:    t.from,
		Message: message.Body,
	})
	if err != nil {
		return models.DeliveryOutcomeFailed, "", err
	}

	return smsOutcome(resp.Status), resp.MessageID, nil
}

func smsOutcome(status string) models.DeliveryOutcome {
	switch status {
	case "delivered":
		return models.DeliveryOutcomeDelivered
	case "queued", "accepted", "sending", "sent":
		return models.DeliveryOutcomeQueued
	default:
		return models.DeliveryOutcomeFailed
	}
}

// Push transport

type pushTransport struct {
	name     string
	provider push.Provider
}

func NewPushTransport(name string, provider push.Provider) Transport {
	return &pushTransport{
		name:     name,
		provider: provider,
	}
}

func (t *pushTransport) Name() string {
	return t.name
}

func (t *pushTransport) CanDeliver(contact *models.Contact) bool {
	return contact.PushToken != ""
}

func (t *pushTransport) Send(ctx context.Context, contact *models.Contact, message *AlertMessage) (models.DeliveryOutcome, string, error) {
	resp, err := t.provider.SendNotification(ctx, &push.NotificationRequest{
		Token:    contact.PushToken,
		Title:    message.Title,
		Body:     message.Body,
		Data:     message.Data,
		Sound:    "emergency.caf",
		Priority: "high",
	})
	if err != nil {
		return models.DeliveryOutcomeFailed, "", err
	}

	return models.DeliveryOutcomeQueued, resp.MessageID, nil
}
