package services

import (
	"context"
	"time"

	"safeguard/internal/config"
	"safeguard/internal/models"
	"safeguard/pkg/logger"
	"safeguard/pkg/websocket"
)

// TelemetryService keeps the latest location and battery report per device
// and turns it into dispatch samples, flagging staleness.
type TelemetryService interface {
	Report(ctx context.Context, deviceID string, report *models.TelemetryReport) error
	Latest(ctx context.Context, deviceID string) (*models.TelemetryReport, error)
	Sample(ctx context.Context, deviceID string) (*models.LocationSample, []string)

	// IngestTelemetry satisfies the websocket hub sink.
	IngestTelemetry(deviceID string, frame *websocket.TelemetryFrame)
}

type telemetryService struct {
	cache  CacheService
	config *config.SessionConfig
	logger *logger.Logger
}

func NewTelemetryService(cache CacheService, cfg *config.SessionConfig, log *logger.Logger) TelemetryService {
	return &telemetryService{
		cache:  cache,
		config: cfg,
		logger: log,
	}
}

func (s *telemetryService) Report(ctx context.Context, deviceID string, report *models.TelemetryReport) error {
	if report.ReportedAt.IsZero() {
		report.ReportedAt = time.Now()
	}
	report.DeviceID = deviceID

	// Keep reports around well past the staleness window so a degraded
	// dispatch can still fall back to the last known position.
	ttl := s.config.TelemetryStale * 10
	if err := s.cache.SetTelemetry(ctx, deviceID, report, ttl); err != nil {
		return err
	}

	return nil
}

func (s *telemetryService) Latest(ctx context.Context, deviceID string) (*models.TelemetryReport, error) {
	return s.cache.GetTelemetry(ctx, deviceID)
}

// Sample resolves the dispatch sample for a device. The second return value
// lists degradation reasons; an empty list means a fresh sample.
func (s *telemetryService) Sample(ctx context.Context, deviceID string) (*models.LocationSample, []string) {
	sampleCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()

	report, err := s.cache.GetTelemetry(sampleCtx, deviceID)
	if err != nil {
		s.logger.WithDeviceID(deviceID).WithError(err).Warn("Failed to read device telemetry")
		return nil, []string{"telemetry unavailable"}
	}
	if report == nil {
		return nil, []string{"no telemetry reported"}
	}

	sample := &models.LocationSample{
		Timestamp: report.ReportedAt,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Battery:   report.Battery,
	}

	var reasons []string
	if report.Age(time.Now()) > s.config.TelemetryStale {
		sample.Stale = true
		reasons = append(reasons, "location stale")
	}

	return sample, reasons
}

func (s *telemetryService) IngestTelemetry(deviceID string, frame *websocket.TelemetryFrame) {
	report := &models.TelemetryReport{
		DeviceID:  deviceID,
		Latitude:  frame.Latitude,
		Longitude: frame.Longitude,
		Accuracy:  frame.Accuracy,
		Battery:   frame.Battery,
	}
	if frame.ReportedAt > 0 {
		report.ReportedAt = time.Unix(frame.ReportedAt, 0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ProviderTimeout)
	defer cancel()

	if err := s.Report(ctx, deviceID, report); err != nil {
		s.logger.WithDeviceID(deviceID).WithError(err).Warn("Failed to store telemetry frame")
	}
}
