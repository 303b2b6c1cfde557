// Package optimize drives a single route-optimization session.
//
// A [Session] owns the submit lifecycle for a stop collection:
//
//	idle -> submitting -> succeeded            (synchronous backend)
//	idle -> submitting -> optimizing -> succeeded | failed   (push channel)
//	idle -> submitting -> failed               (gateway error)
//
// Only one submission is outstanding at a time. Terminal states are left only by a new Submit.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/push"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/desertthunder/fleetroute/internal/stops"
)

// ValidationMessage is shown when a submit is missing a vehicle or stops.
const ValidationMessage = "Please provide a vehicle ID and at least 2 stops"

// Status texts reported alongside state changes.
const (
	StatusSubmitting      = "Submitting route..."
	StatusQueued          = "Optimization queued"
	StatusOptimizing      = "Optimizing route..."
	StatusUpdateRequested = "Route update requested"
	StatusSucceeded       = "Route optimized successfully"
	StatusFailed          = "Route optimization failed"
)

// ValidationError rejects a submit before any request is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return shared.ErrValidation }

// Optimizer submits an optimization request.
type Optimizer interface {
	Optimize(ctx context.Context, req models.OptimizeRequest) (*models.OptimizationResult, error)
}

// PushChannel delivers asynchronous results for a request id.
type PushChannel interface {
	Subscribe(requestID string, handler push.Handler) (func(), error)
}

// Recorder stores finished runs.
type Recorder interface {
	RecordRun(run *models.OptimizationRun) error
}

// Update is a snapshot sent on every state or status change.
type Update struct {
	State  models.SessionState
	Status string
	Result *models.OptimizationResult
	Err    error
}

// Options configures a [Session].
type Options struct {
	Push     PushChannel
	Recorder Recorder
	Logger   *log.Logger
	// UpdateBuffer sizes the [Session.Updates] channel; updates are dropped when it is full.
	UpdateBuffer int
}

// Session is safe for concurrent use.
type Session struct {
	optimizer Optimizer
	stops     *stops.Collection
	push      PushChannel
	recorder  Recorder
	logger    *log.Logger
	updates   chan Update

	mu        sync.Mutex
	state     models.SessionState
	status    string
	vehicleID string
	planID    string
	prefs     models.Preferences
	result    *models.OptimizationResult
	err       error
	requestID string
	submitted []models.Stop
	run       *models.OptimizationRun
	release   func()
	done      chan struct{}
	closed    bool
}

// NewSession creates an idle session over collection.
func NewSession(optimizer Optimizer, collection *stops.Collection, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if opts.UpdateBuffer <= 0 {
		opts.UpdateBuffer = 16
	}

	return &Session{
		optimizer: optimizer,
		stops:     collection,
		push:      opts.Push,
		recorder:  opts.Recorder,
		logger:    shared.WithLogger(logger, "component", "optimize"),
		updates:   make(chan Update, opts.UpdateBuffer),
		state:     models.StateIdle,
		prefs:     models.DefaultPreferences(),
	}
}

// Updates streams state changes. Slow readers miss intermediate updates, never the final state
// (which is also available from [Session.State] and [Session.Wait]).
func (s *Session) Updates() <-chan Update { return s.updates }

func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status is the user-visible progress text.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result is the last successful result, nil until one arrives.
func (s *Session) Result() *models.OptimizationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err is the failure of the last submission.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// RequestID is the id of the current or last submission.
func (s *Session) RequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

func (s *Session) VehicleID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicleID
}

func (s *Session) SetVehicle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicleID = id
}

func (s *Session) Preferences() models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

func (s *Session) SetPreferences(p models.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

// SetPlan tags recorded runs with a saved plan id.
func (s *Session) SetPlan(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planID = id
}

// Submit sends the current stops for optimization.
//
// It returns once the backend has answered: the session is then succeeded, failed, or optimizing
// and waiting on the push channel. A missing vehicle or fewer than two stops is a
// [*ValidationError] and nothing is sent.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: session closed", shared.ErrInvalidInput)
	}
	if s.state.Busy() {
		s.mu.Unlock()
		return shared.ErrInFlight
	}
	if s.vehicleID == "" || s.stops.Len() < 2 {
		s.mu.Unlock()
		return &ValidationError{Message: ValidationMessage}
	}

	prev := s.release
	s.release = nil

	s.submitted = s.stops.Stops()
	payload := make([]models.StopPayload, len(s.submitted))
	for i, st := range s.submitted {
		payload[i] = st.Payload()
	}
	req := models.OptimizeRequest{
		VehicleID:   s.vehicleID,
		Stops:       payload,
		Preferences: s.prefs,
	}

	s.run = models.NewOptimizationRun(0, s.vehicleID, len(req.Stops))
	s.run.SetID(shared.GenerateID())
	s.run.SetPlanID(s.planID)

	s.state = models.StateSubmitting
	s.status = StatusSubmitting
	s.err = nil
	s.requestID = ""
	s.done = make(chan struct{})
	s.emit()
	s.mu.Unlock()

	if prev != nil {
		prev()
	}

	s.logger.Info("submitting optimization", "vehicle", req.VehicleID, "stops", len(req.Stops), "optimize_for", req.Preferences.OptimizeFor)

	result, err := s.optimizer.Optimize(ctx, req)
	if err == nil && result == nil {
		err = fmt.Errorf("%w: empty response", shared.ErrOptimizationFailed)
	}
	if err != nil {
		s.fail(err)
		return err
	}

	if result.Complete() {
		s.succeed(result)
		return s.Err()
	}

	return s.await(result.RequestID)
}

func (s *Session) await(requestID string) error {
	s.mu.Lock()
	s.requestID = requestID
	s.run.SetRequestID(requestID)
	s.state = models.StateOptimizing
	s.status = StatusOptimizing
	s.emit()
	s.mu.Unlock()

	if s.push == nil {
		err := fmt.Errorf("%w: backend accepted request %s but no push channel is configured", shared.ErrOptimizationFailed, requestID)
		s.fail(err)
		return err
	}

	release, err := s.push.Subscribe(requestID, s.handle)
	if err != nil {
		err = fmt.Errorf("failed to subscribe to %s: %w", requestID, err)
		s.fail(err)
		return err
	}

	s.mu.Lock()
	if s.requestID != requestID || s.state != models.StateOptimizing {
		s.mu.Unlock()
		release()
		return nil
	}
	s.release = release
	s.mu.Unlock()

	s.logger.Info("awaiting optimization", "request_id", requestID)
	return nil
}

// handle processes push events; events for other requests or after a terminal state are ignored.
func (s *Session) handle(ev models.RouteEvent) {
	s.mu.Lock()
	if ev.RequestID != s.requestID || s.state != models.StateOptimizing {
		s.mu.Unlock()
		return
	}

	switch ev.Type {
	case models.EventOptimizationRequested:
		s.status = StatusQueued
		s.emit()
		s.mu.Unlock()
	case models.EventRouteUpdateRequested:
		s.status = StatusUpdateRequested
		s.emit()
		s.mu.Unlock()
	case models.EventRouteOptimized:
		s.mu.Unlock()
		if !ev.Data.Complete() {
			s.logger.Warn("completion event without a route", "request_id", ev.RequestID)
			return
		}
		s.succeed(ev.Data)
	case models.EventOptimizationFailed:
		s.mu.Unlock()
		msg := ev.Error
		if msg == "" {
			msg = StatusFailed
		}
		s.fail(fmt.Errorf("%w: %s", shared.ErrOptimizationFailed, msg))
	default:
		s.mu.Unlock()
	}
}

func (s *Session) succeed(result *models.OptimizationResult) {
	s.mu.Lock()
	if !s.state.Busy() {
		s.mu.Unlock()
		return
	}

	if err := s.stops.Replace(Merge(s.submitted, result.OptimizedRoute.Waypoints)); err != nil {
		s.mu.Unlock()
		s.fail(fmt.Errorf("%w: %w", shared.ErrOptimizationFailed, err))
		return
	}

	if result.RequestID == "" {
		result.RequestID = s.requestID
	}
	s.requestID = result.RequestID
	s.result = result
	s.state = models.StateSucceeded
	s.status = StatusSucceeded
	s.run.SetRequestID(result.RequestID)
	s.run.SetResult(result)
	release := s.finish()
	s.mu.Unlock()

	s.logger.Info("optimization succeeded", "request_id", result.RequestID,
		"distance", shared.FormatDistance(result.OptimizedRoute.TotalDistance),
		"duration", shared.FormatDuration(result.OptimizedRoute.TotalDuration))
	s.cleanup(release)
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if !s.state.Busy() {
		s.mu.Unlock()
		return
	}

	s.err = err
	s.state = models.StateFailed
	s.status = StatusFailed
	s.run.SetErrorMessage(err.Error())
	release := s.finish()
	s.mu.Unlock()

	s.logger.Error("optimization failed", "request_id", s.RequestID(), "err", err)
	s.cleanup(release)
}

// finish records the terminal state; callers hold mu.
func (s *Session) finish() func() {
	s.run.SetStatus(s.state)
	s.emit()
	close(s.done)

	release := s.release
	s.release = nil
	return release
}

func (s *Session) cleanup(release func()) {
	if release != nil {
		release()
	}

	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	if s.recorder != nil && run != nil {
		if err := s.recorder.RecordRun(run); err != nil {
			s.logger.Warn("failed to record run", "run", run.ID(), "err", err)
		}
	}
}

// emit sends a snapshot without blocking; callers hold mu.
func (s *Session) emit() {
	if s.closed {
		return
	}
	u := Update{State: s.state, Status: s.status, Result: s.result, Err: s.err}
	select {
	case s.updates <- u:
	default:
		s.logger.Debug("update dropped, channel full", "state", u.State)
	}
}

// Wait blocks until the current submission reaches a terminal state or ctx ends.
// With nothing submitted it returns the current state immediately.
func (s *Session) Wait(ctx context.Context) (models.SessionState, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// Close releases any push subscription. In-flight work finishes but no longer emits updates.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	release := s.release
	s.release = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}
}

// IsValidation reports whether err rejected a submit client-side.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
