package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/desertthunder/fleetroute/internal/gateway"
)

// Requester sends a request and decodes a successful JSON body into out.
//
// [gateway.Gateway] satisfies it.
type Requester interface {
	Request(ctx context.Context, method, endpoint string, body, out any) error
}

var _ Requester = (*gateway.Gateway)(nil)

// Backend endpoints, relative to the API base URL.
const (
	VehiclesEndpoint = "/api/vehicles"
	OptimizeEndpoint = "/traffic/routes/optimize"
)

// Places proxy endpoints, relative to the proxy base URL.
const (
	AutocompleteEndpoint = "/api/places/autocomplete"
	DetailsEndpoint      = "/api/places/details"
	ReverseEndpoint      = "/api/places/reverse"
)

func isNotFound(err error) bool {
	var apiErr *gateway.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
