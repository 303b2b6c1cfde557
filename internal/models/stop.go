package models

import (
	"fmt"
	"time"
)

// Positional labels assigned by the stop collection.
const (
	LabelStart = "Start Location"
	LabelEnd   = "End Location"
)

// StopLabel returns the display label for the stop at index i of a route with n stops.
//
// A single stop is labeled as the start.
func StopLabel(i, n int) string {
	switch {
	case i == 0:
		return LabelStart
	case i == n-1:
		return LabelEnd
	default:
		return fmt.Sprintf("Stop %d", i)
	}
}

// Stop is a geographic waypoint the user intends to visit.
//
// Label and EstimatedArrival are derived and never sent to the backend.
type Stop struct {
	ID               string     `json:"id"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Address          string     `json:"address"`
	Priority         *int       `json:"priority,omitempty"`
	Label            string     `json:"label,omitempty"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
}

// StopPayload is the outbound form of a [Stop] in an optimize request.
type StopPayload struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	Priority  *int    `json:"priority,omitempty"`
}

// Payload strips derived fields from the stop.
func (s Stop) Payload() StopPayload {
	return StopPayload{
		ID:        s.ID,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Address:   s.Address,
		Priority:  s.Priority,
	}
}

// Validate checks that the coordinates are on the globe.
func (s Stop) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", s.Longitude)
	}
	return nil
}

// IntPtr is a convenience for optional priorities.
func IntPtr(v int) *int {
	return &v
}
