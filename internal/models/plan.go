package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PersistedPlan is a named stop list saved locally so it can be optimized later.
type PersistedPlan struct {
	record
	name        string
	vehicleID   string
	preferences Preferences
	stops       []Stop
}

// NewPersistedPlan creates a plan with default preferences and no stops.
func NewPersistedPlan(sequence int, name string) *PersistedPlan {
	return &PersistedPlan{
		record:      newRecord(sequence),
		name:        name,
		preferences: DefaultPreferences(),
	}
}

func (p *PersistedPlan) Name() string { return p.name }
func (p *PersistedPlan) SetName(name string) { p.name = name }
func (p *PersistedPlan) VehicleID() string { return p.vehicleID }
func (p *PersistedPlan) SetVehicleID(id string) { p.vehicleID = id }
func (p *PersistedPlan) Preferences() Preferences { return p.preferences }
func (p *PersistedPlan) SetPreferences(pr Preferences) { p.preferences = pr }

// Stops returns a copy of the plan's ordered stops.
func (p *PersistedPlan) Stops() []Stop {
	out := make([]Stop, len(p.stops))
	copy(out, p.stops)
	return out
}

// SetStops replaces the plan's stops, keeping the given order.
func (p *PersistedPlan) SetStops(stops []Stop) {
	p.stops = make([]Stop, len(stops))
	copy(p.stops, stops)
}

// Validate checks the plan name, objective and stop ids.
func (p *PersistedPlan) Validate() error {
	if p.id == "" {
		return errors.New("plan id is required")
	}
	if strings.TrimSpace(p.name) == "" {
		return errors.New("plan name is required")
	}
	if _, err := ParseOptimizeFor(string(p.preferences.OptimizeFor)); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(p.stops))
	for i, s := range p.stops {
		if s.ID == "" {
			return fmt.Errorf("stop %d has no id", i)
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("duplicate stop id %s", s.ID)
		}
		seen[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stop %s: %w", s.ID, err)
		}
	}
	return nil
}

// OptimizationRun records one submitted optimization and its outcome.
type OptimizationRun struct {
	record
	planID    string
	requestID string
	vehicleID string
	stopCount int
	status    SessionState
	result    *OptimizationResult
	errMsg    string
}

// NewOptimizationRun creates a run in the submitting state.
func NewOptimizationRun(sequence int, vehicleID string, stopCount int) *OptimizationRun {
	return &OptimizationRun{
		record:    newRecord(sequence),
		vehicleID: vehicleID,
		stopCount: stopCount,
		status:    StateSubmitting,
	}
}

func (r *OptimizationRun) PlanID() string { return r.planID }
func (r *OptimizationRun) SetPlanID(id string) { r.planID = id }
func (r *OptimizationRun) RequestID() string { return r.requestID }
func (r *OptimizationRun) SetRequestID(id string) { r.requestID = id }
func (r *OptimizationRun) VehicleID() string { return r.vehicleID }
func (r *OptimizationRun) StopCount() int { return r.stopCount }
func (r *OptimizationRun) Status() SessionState { return r.status }
func (r *OptimizationRun) SetStatus(s SessionState) { r.status = s }
func (r *OptimizationRun) Result() *OptimizationResult { return r.result }
func (r *OptimizationRun) SetResult(res *OptimizationResult) { r.result = res }
func (r *OptimizationRun) ErrorMessage() string { return r.errMsg }
func (r *OptimizationRun) SetErrorMessage(msg string) { r.errMsg = msg }

// Validate checks required fields and the status value.
func (r *OptimizationRun) Validate() error {
	if r.id == "" {
		return errors.New("run id is required")
	}
	if r.vehicleID == "" {
		return errors.New("vehicle id is required")
	}
	switch r.status {
	case StateSubmitting, StateOptimizing, StateSucceeded, StateFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.status)
	}
	return nil
}

// StoredSession is the persisted login so separate CLI invocations share credentials.
type StoredSession struct {
	Identity     Identity
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Validate requires an identity and at least one token.
func (s *StoredSession) Validate() error {
	if s.Identity.ID == "" {
		return errors.New("session identity is required")
	}
	if s.AccessToken == "" && s.RefreshToken == "" {
		return errors.New("session has no tokens")
	}
	return nil
}
