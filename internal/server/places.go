package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/shared"
)

const (
	internalError    = "Internal server error"
	keyNotConfigured = "Google Maps API key not configured"
	shortQuery       = "Query must be at least 3 characters long"
	placeIDRequired  = "Place ID is required"
	geocodedNoDetail = "Place details not available for geocoded results"
	placeNotFound    = "Place not found"
	badCoordinates   = "Coordinates out of range"
)

// PlacesOptions configures a [PlacesHandler]. Leaving the lookups nil means no provider key is
// configured and every request is answered REQUEST_DENIED.
type PlacesOptions struct {
	Searcher       places.Searcher
	Details        places.DetailsProvider
	Reverse        places.ReverseGeocoder
	MinQueryLength int
	Logger         *log.Logger
	// Now stamps generated place ids; defaults to [time.Now].
	Now func() time.Time
}

// PlacesHandler serves the places proxy endpoints.
type PlacesHandler struct {
	opts   PlacesOptions
	logger *log.Logger
}

var _ Handler = (*PlacesHandler)(nil)

// NewPlacesHandler creates the proxy handler.
func NewPlacesHandler(opts PlacesOptions) *PlacesHandler {
	if opts.MinQueryLength <= 0 {
		opts.MinQueryLength = places.DefaultMinQueryLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &PlacesHandler{opts: opts, logger: shared.WithLogger(logger, "component", "places-proxy")}
}

// Routes returns the HTTP routes this handler serves.
func (h *PlacesHandler) Routes() []string {
	return []string{
		"/api/places/autocomplete",
		"/api/places/details",
		"/api/places/reverse",
	}
}

// ServeHTTP dispatches on path. Only POST is accepted.
func (h *PlacesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/api/places/autocomplete":
		h.autocomplete(w, r)
	case "/api/places/details":
		h.details(w, r)
	case "/api/places/reverse":
		h.reverse(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *PlacesHandler) autocomplete(w http.ResponseWriter, r *http.Request) {
	var req places.AutocompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid autocomplete body", "err", err)
		writeJSON(w, places.AutocompleteResponse{Status: places.StatusUnknownError, ErrorMessage: internalError})
		return
	}

	if utf8.RuneCountInString(req.Query) < h.opts.MinQueryLength {
		writeJSON(w, places.AutocompleteResponse{Status: places.StatusInvalidRequest, ErrorMessage: shortQuery})
		return
	}
	if h.opts.Searcher == nil {
		writeJSON(w, places.AutocompleteResponse{Status: places.StatusRequestDenied, ErrorMessage: keyNotConfigured})
		return
	}

	results, err := h.opts.Searcher.Search(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("places autocomplete error", "query", req.Query, "err", err)
		writeJSON(w, places.AutocompleteResponse{Status: places.StatusUnknownError, ErrorMessage: internalError})
		return
	}

	if len(results) == 0 {
		writeJSON(w, places.AutocompleteResponse{Status: places.StatusZeroResults, Predictions: []places.Prediction{}})
		return
	}

	stamp := h.opts.Now().UnixMilli()
	predictions := make([]places.Prediction, len(results))
	for i, c := range results {
		c.PlaceID = fmt.Sprintf("%s%d_%d", places.GeocodePlaceIDPrefix, i, stamp)
		predictions[i] = c.ToPrediction()
	}

	writeJSON(w, places.AutocompleteResponse{Status: places.StatusOK, Predictions: predictions})
}

func (h *PlacesHandler) details(w http.ResponseWriter, r *http.Request) {
	var req places.DetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid details body", "err", err)
		writeJSON(w, places.DetailsResponse{Status: places.StatusUnknownError, ErrorMessage: internalError})
		return
	}

	if req.PlaceID == "" {
		writeJSON(w, places.DetailsResponse{Status: places.StatusInvalidRequest, ErrorMessage: placeIDRequired})
		return
	}
	if h.opts.Details == nil {
		writeJSON(w, places.DetailsResponse{Status: places.StatusRequestDenied, ErrorMessage: keyNotConfigured})
		return
	}
	if strings.HasPrefix(req.PlaceID, places.GeocodePlaceIDPrefix) {
		writeJSON(w, places.DetailsResponse{Status: places.StatusNotFound, ErrorMessage: geocodedNoDetail})
		return
	}

	c, err := h.opts.Details.PlaceDetails(r.Context(), req.PlaceID)
	switch {
	case errors.Is(err, shared.ErrPlaceNotFound):
		writeJSON(w, places.DetailsResponse{Status: places.StatusNotFound, ErrorMessage: placeNotFound})
	case err != nil:
		h.logger.Warn("place details failed", "place_id", req.PlaceID, "err", err)
		writeJSON(w, places.DetailsResponse{Status: places.StatusRequestDenied, ErrorMessage: err.Error()})
	default:
		writeJSON(w, places.DetailsResponse{Status: places.StatusOK, Result: placeResult(c)})
	}
}

func (h *PlacesHandler) reverse(w http.ResponseWriter, r *http.Request) {
	var req places.ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid reverse body", "err", err)
		writeJSON(w, places.DetailsResponse{Status: places.StatusUnknownError, ErrorMessage: internalError})
		return
	}

	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeJSON(w, places.DetailsResponse{Status: places.StatusInvalidRequest, ErrorMessage: badCoordinates})
		return
	}
	if h.opts.Reverse == nil {
		writeJSON(w, places.DetailsResponse{Status: places.StatusRequestDenied, ErrorMessage: keyNotConfigured})
		return
	}

	address, err := h.opts.Reverse.ReverseGeocode(r.Context(), req.Lat, req.Lng)
	switch {
	case errors.Is(err, shared.ErrPlaceNotFound):
		writeJSON(w, places.DetailsResponse{Status: places.StatusNotFound, ErrorMessage: placeNotFound})
	case err != nil:
		h.logger.Warn("reverse lookup failed", "lat", req.Lat, "lng", req.Lng, "err", err)
		writeJSON(w, places.DetailsResponse{Status: places.StatusUnknownError, ErrorMessage: internalError})
	default:
		writeJSON(w, places.DetailsResponse{Status: places.StatusOK, Result: placeResult(places.NewCandidate("", address, req.Lat, req.Lng))})
	}
}

func placeResult(c places.Candidate) *places.PlaceResult {
	return &places.PlaceResult{
		FormattedAddress: c.Description,
		Geometry:         places.Geometry{Location: places.LatLng{Lat: c.Latitude, Lng: c.Longitude}},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, internalError, http.StatusInternalServerError)
	}
}
