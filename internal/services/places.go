package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/shared"
)

// StatusError is a non-OK answer from the places proxy.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "places: " + e.Status
	}
	return fmt.Sprintf("places: %s: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case places.StatusInvalidRequest:
		return shared.ErrInvalidInput
	case places.StatusNotFound:
		return shared.ErrPlaceNotFound
	default:
		return shared.ErrUpstreamUnavailable
	}
}

// PlacesService is the client of the places proxy.
type PlacesService struct {
	api Requester
}

var (
	_ places.Searcher        = (*PlacesService)(nil)
	_ places.ReverseGeocoder = (*PlacesService)(nil)
	_ places.DetailsProvider = (*PlacesService)(nil)
)

// NewPlacesService creates a proxy client.
func NewPlacesService(api Requester) *PlacesService {
	return &PlacesService{api: api}
}

// Autocomplete returns the proxy's predictions for query. ZERO_RESULTS is an empty slice.
func (s *PlacesService) Autocomplete(ctx context.Context, query string) ([]places.Prediction, error) {
	var resp places.AutocompleteResponse
	if err := s.api.Request(ctx, http.MethodPost, AutocompleteEndpoint, places.AutocompleteRequest{Query: query}, &resp); err != nil {
		return nil, fmt.Errorf("autocomplete %q: %w", query, err)
	}

	switch resp.Status {
	case places.StatusOK:
		return resp.Predictions, nil
	case places.StatusZeroResults:
		return []places.Prediction{}, nil
	default:
		return nil, &StatusError{Status: resp.Status, Message: resp.ErrorMessage}
	}
}

// Details resolves a provider place id.
func (s *PlacesService) Details(ctx context.Context, placeID string) (*places.PlaceResult, error) {
	var resp places.DetailsResponse
	if err := s.api.Request(ctx, http.MethodPost, DetailsEndpoint, places.DetailsRequest{PlaceID: placeID}, &resp); err != nil {
		return nil, fmt.Errorf("place details %s: %w", placeID, err)
	}
	return placeResult(resp)
}

// Reverse returns the place at a point.
func (s *PlacesService) Reverse(ctx context.Context, lat, lng float64) (*places.PlaceResult, error) {
	var resp places.DetailsResponse
	if err := s.api.Request(ctx, http.MethodPost, ReverseEndpoint, places.ReverseRequest{Lat: lat, Lng: lng}, &resp); err != nil {
		return nil, fmt.Errorf("reverse %s: %w", places.FormatCoordinates(lat, lng), err)
	}
	return placeResult(resp)
}

// Search implements [places.Searcher]. The proxy already widens, merges and caps the results.
func (s *PlacesService) Search(ctx context.Context, query string) ([]places.Candidate, error) {
	predictions, err := s.Autocomplete(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]places.Candidate, 0, len(predictions))
	for _, p := range predictions {
		out = append(out, places.FromPrediction(p))
	}
	return out, nil
}

// ReverseGeocode implements [places.ReverseGeocoder].
func (s *PlacesService) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	res, err := s.Reverse(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	return res.FormattedAddress, nil
}

// PlaceDetails implements [places.DetailsProvider].
func (s *PlacesService) PlaceDetails(ctx context.Context, placeID string) (places.Candidate, error) {
	if strings.HasPrefix(placeID, places.GeocodePlaceIDPrefix) {
		return places.Candidate{}, fmt.Errorf("%w: %s has no details", shared.ErrPlaceNotFound, placeID)
	}

	res, err := s.Details(ctx, placeID)
	if err != nil {
		return places.Candidate{}, err
	}
	loc := res.Geometry.Location
	return places.NewCandidate(placeID, res.FormattedAddress, loc.Lat, loc.Lng), nil
}

func placeResult(resp places.DetailsResponse) (*places.PlaceResult, error) {
	if resp.Status != places.StatusOK {
		return nil, &StatusError{Status: resp.Status, Message: resp.ErrorMessage}
	}
	if resp.Result == nil || resp.Result.FormattedAddress == "" {
		return nil, fmt.Errorf("%w: empty result", shared.ErrPlaceNotFound)
	}
	return resp.Result, nil
}
