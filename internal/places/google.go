package places

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"github.com/desertthunder/fleetroute/internal/shared"
)

// GoogleOptions configures a [GoogleGeocoder].
type GoogleOptions struct {
	APIKey string
	// RequestsPerSecond throttles calls to the provider; <= 0 means 10.
	RequestsPerSecond float64
	// BaseURL overrides the provider endpoint (tests).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// GoogleGeocoder performs lookups against the Google Maps web services.
type GoogleGeocoder struct {
	client  *maps.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewGoogleGeocoder creates a geocoder. An empty key is a configuration error.
func NewGoogleGeocoder(opts GoogleOptions) (*GoogleGeocoder, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: maps api key not configured", shared.ErrMissingConfig)
	}

	clientOpts := []maps.ClientOption{maps.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, maps.WithHTTPClient(opts.HTTPClient))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &GoogleGeocoder{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  shared.WithLogger(logger, "component", "google"),
	}, nil
}

// Geocode resolves a free-text address.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) ([]Candidate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return nil, fmt.Errorf("%w: geocode %q: %w", shared.ErrUpstreamUnavailable, address, err)
	}

	g.logger.Debug("geocode", "address", address, "results", len(results))
	return toCandidates(results), nil
}

// ReverseGeocode returns the first formatted address for a point.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return "", fmt.Errorf("%w: reverse geocode: %w", shared.ErrUpstreamUnavailable, err)
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return "", fmt.Errorf("%w: no address at %s", shared.ErrPlaceNotFound, FormatCoordinates(lat, lng))
	}

	return results[0].FormattedAddress, nil
}

// PlaceDetails resolves a provider place id.
func (g *GoogleGeocoder) PlaceDetails(ctx context.Context, placeID string) (Candidate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Candidate{}, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := g.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{PlaceID: placeID})
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: place details %s: %w", shared.ErrUpstreamUnavailable, placeID, err)
	}
	if result.FormattedAddress == "" {
		return Candidate{}, fmt.Errorf("%w: %s", shared.ErrPlaceNotFound, placeID)
	}

	loc := result.Geometry.Location
	return NewCandidate(placeID, result.FormattedAddress, loc.Lat, loc.Lng), nil
}

func toCandidates(results []maps.GeocodingResult) []Candidate {
	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		loc := r.Geometry.Location
		out = append(out, NewCandidate(r.PlaceID, r.FormattedAddress, loc.Lat, loc.Lng))
	}
	return out
}
