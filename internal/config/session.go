package config

import (
	"time"
)

type SessionConfig struct {
	DefaultDuration    time.Duration `yaml:"default_duration"`
	MinDuration        time.Duration `yaml:"min_duration"`
	MaxDuration        time.Duration `yaml:"max_duration"`
	DispatchInterval   time.Duration `yaml:"dispatch_interval"`
	ProviderTimeout    time.Duration `yaml:"provider_timeout"`
	SendTimeout        time.Duration `yaml:"send_timeout"`
	CheckinInterval    time.Duration `yaml:"checkin_interval"`
	CheckinGrace       time.Duration `yaml:"checkin_grace"`
	MaxLocationSamples int           `yaml:"max_location_samples"`
	TelemetryStale     time.Duration `yaml:"telemetry_stale_after"`
	RetentionPeriod    time.Duration `yaml:"retention_period"`
	JanitorInterval    time.Duration `yaml:"janitor_interval"`
}

func loadSessionConfig() *SessionConfig {
	return &SessionConfig{
		DefaultDuration:    getEnvAsDuration("SESSION_DEFAULT_DURATION", 30*time.Minute),
		MinDuration:        getEnvAsDuration("SESSION_MIN_DURATION", 1*time.Minute),
		MaxDuration:        getEnvAsDuration("SESSION_MAX_DURATION", 24*time.Hour),
		DispatchInterval:   getEnvAsDuration("SESSION_DISPATCH_INTERVAL", 5*time.Minute),
		ProviderTimeout:    getEnvAsDuration("SESSION_PROVIDER_TIMEOUT", 5*time.Second),
		SendTimeout:        getEnvAsDuration("SESSION_SEND_TIMEOUT", 10*time.Second),
		CheckinInterval:    getEnvAsDuration("SESSION_CHECKIN_INTERVAL", 5*time.Minute),
		CheckinGrace:       getEnvAsDuration("SESSION_CHECKIN_GRACE", 30*time.Second),
		MaxLocationSamples: getEnvAsInt("SESSION_MAX_LOCATION_SAMPLES", 100),
		TelemetryStale:     getEnvAsDuration("TELEMETRY_STALE_AFTER", 2*time.Minute),
		RetentionPeriod:    getEnvAsDuration("SESSION_RETENTION_PERIOD", 30*24*time.Hour),
		JanitorInterval:    getEnvAsDuration("SESSION_JANITOR_INTERVAL", 6*time.Hour),
	}
}
