package config

import (
	"time"
)

type GeocodeConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

func loadGeocodeConfig() *GeocodeConfig {
	return &GeocodeConfig{
		Enabled:        getEnvAsBool("GEOCODE_ENABLED", true),
		APIKey:         getEnv("GOOGLE_MAPS_API_KEY", ""),
		RequestTimeout: getEnvAsDuration("GEOCODE_REQUEST_TIMEOUT", 3*time.Second),
		CacheTTL:       getEnvAsDuration("GEOCODE_CACHE_TTL", 5*time.Minute),
	}
}
