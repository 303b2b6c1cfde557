package models

import (
	"fmt"
	"strings"
	"time"
)

// OptimizeFor selects the objective the optimizer minimizes.
type OptimizeFor string

const (
	OptimizeForTime     OptimizeFor = "time"
	OptimizeForDistance OptimizeFor = "distance"
	OptimizeForFuel     OptimizeFor = "fuel"
)

// ParseOptimizeFor validates s as an [OptimizeFor] value.
func ParseOptimizeFor(s string) (OptimizeFor, error) {
	switch v := OptimizeFor(strings.ToLower(strings.TrimSpace(s))); v {
	case OptimizeForTime, OptimizeForDistance, OptimizeForFuel:
		return v, nil
	default:
		return "", fmt.Errorf("unknown optimization objective %q (want time, distance or fuel)", s)
	}
}

// Preferences are always sent in full.
type Preferences struct {
	AvoidTolls    bool        `json:"avoidTolls"`
	AvoidHighways bool        `json:"avoidHighways"`
	OptimizeFor   OptimizeFor `json:"optimizeFor"`
}

// DefaultPreferences returns tolls and highways allowed, optimizing for time.
func DefaultPreferences() Preferences {
	return Preferences{OptimizeFor: OptimizeForTime}
}

// SessionState is the lifecycle state of an optimization session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateSubmitting SessionState = "submitting"
	StateOptimizing SessionState = "optimizing"
	StateSucceeded  SessionState = "succeeded"
	StateFailed     SessionState = "failed"
)

// Terminal reports whether no further transitions happen without a new submit.
func (s SessionState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Busy reports whether a submission is outstanding.
func (s SessionState) Busy() bool {
	return s == StateSubmitting || s == StateOptimizing
}

// Waypoint is one point of an optimized route.
type Waypoint struct {
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Address          string     `json:"address"`
	Priority         *int       `json:"priority,omitempty"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
}

// OptimizedRoute holds totals in kilometers and seconds.
type OptimizedRoute struct {
	TotalDistance float64    `json:"totalDistance"`
	TotalDuration float64    `json:"totalDuration"`
	Waypoints     []Waypoint `json:"waypoints"`
}

// Metrics are the savings relative to the unoptimized route.
type Metrics struct {
	TimeSaved     float64 `json:"timeSaved"`
	DistanceSaved float64 `json:"distanceSaved"`
	FuelSaved     float64 `json:"fuelSaved"`
}

// OptimizationResult is immutable once received; a new optimization replaces it wholesale.
type OptimizationResult struct {
	RequestID           string          `json:"requestId"`
	OptimizedRoute      *OptimizedRoute `json:"optimizedRoute,omitempty"`
	OptimizationMetrics *Metrics        `json:"optimizationMetrics,omitempty"`
}

// Complete reports whether the result carries a route.
func (r *OptimizationResult) Complete() bool {
	return r != nil && r.OptimizedRoute != nil
}

// OptimizeRequest is the body of the optimize call.
type OptimizeRequest struct {
	VehicleID   string        `json:"vehicleId"`
	Stops       []StopPayload `json:"stops"`
	Preferences Preferences   `json:"preferences"`
}
