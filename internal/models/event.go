package models

import "time"

// Push channel event names.
const (
	EventConnected               = "connected"
	EventOptimizationRequested   = "route_optimization_requested"
	EventRouteOptimized          = "route_optimized"
	EventOptimizationFailed      = "route_optimization_failed"
	EventRouteUpdateRequested    = "route_update_requested"
	EventSubscribeRouteUpdates   = "subscribe_route_updates"
	EventUnsubscribeRouteUpdates = "unsubscribe_route_updates"
)

// EventStatus is the processing status reported in a [RouteEvent].
type EventStatus string

const (
	StatusProcessing EventStatus = "PROCESSING"
	StatusCompleted  EventStatus = "COMPLETED"
	StatusFailed     EventStatus = "FAILED"
)

// RouteEvent is a single push channel message scoped to one request id.
type RouteEvent struct {
	Type      string              `json:"-"`
	RequestID string              `json:"requestId"`
	Status    EventStatus         `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Data      *OptimizationResult `json:"data,omitempty"`
	Error     string              `json:"error,omitempty"`
}
