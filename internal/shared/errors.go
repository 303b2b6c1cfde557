package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrAuthRequired       = fmt.Errorf("authentication required")
	ErrRefreshFailed      = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken     = fmt.Errorf("no refresh token available")

	// Upstream and lookup errors
	ErrUpstreamUnavailable = fmt.Errorf("upstream service unavailable")
	ErrPartialLookup       = fmt.Errorf("lookup variant failed")
	ErrPlaceNotFound       = fmt.Errorf("place not found")
	ErrVehicleNotFound     = fmt.Errorf("vehicle not found")
	ErrPlanNotFound        = fmt.Errorf("plan not found")
	ErrRunNotFound         = fmt.Errorf("optimization run not found")

	// Route planning errors
	ErrValidation         = fmt.Errorf("validation failed")
	ErrOptimizationFailed = fmt.Errorf("route optimization failed")
	ErrInFlight           = fmt.Errorf("an optimization is already in progress")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
