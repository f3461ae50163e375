package geocode

import "context"

// Provider resolves coordinates into a human readable address for alert
// messages. Best effort; alerts go out without an address when it fails.
type Provider interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*Result, error)
}

type Result struct {
	PlaceID string `json:"place_id,omitempty"`
	Address string `json:"address"`
}
