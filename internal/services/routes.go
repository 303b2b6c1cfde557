package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

// RouteService submits optimization requests.
type RouteService struct {
	api Requester
}

// NewRouteService creates an optimizer client.
func NewRouteService(api Requester) *RouteService {
	return &RouteService{api: api}
}

// Optimize submits req. A synchronous backend answers with the optimized route; an asynchronous
// one answers with only a request id and delivers the route over the push channel.
func (s *RouteService) Optimize(ctx context.Context, req models.OptimizeRequest) (*models.OptimizationResult, error) {
	var result models.OptimizationResult
	if err := s.api.Request(ctx, http.MethodPost, OptimizeEndpoint, req, &result); err != nil {
		return nil, fmt.Errorf("failed to optimize route: %w", err)
	}

	if result.RequestID == "" && !result.Complete() {
		return nil, fmt.Errorf("%w: response carried neither a route nor a request id", shared.ErrOptimizationFailed)
	}
	return &result, nil
}
