package geocode

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleProvider{
		client: client,
	}, nil
}

func (g *GoogleProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (*Result, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	}

	resp, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocoding failed: %w", err)
	}

	if len(resp) == 0 {
		return nil, fmt.Errorf("no address found for %f,%f", lat, lng)
	}

	return &Result{
		PlaceID: resp[0].PlaceID,
		Address: resp[0].FormattedAddress,
	}, nil
}
