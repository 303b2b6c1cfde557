package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/optimize"
	"github.com/desertthunder/fleetroute/internal/places"
	tu "github.com/desertthunder/fleetroute/internal/testing"
)

type fakeVehicles struct {
	vehicles []models.Vehicle
	err      error
}

func (f *fakeVehicles) List(context.Context, models.VehicleFilter) (*models.VehicleList, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.VehicleList{Vehicles: f.vehicles, Total: len(f.vehicles)}, nil
}

type fakeOptimizer struct {
	requests tu.Recorder[models.OptimizeRequest]
	result   *models.OptimizationResult
	err      error
}

func (f *fakeOptimizer) Optimize(_ context.Context, req models.OptimizeRequest) (*models.OptimizationResult, error) {
	f.requests.Add(req)
	return f.result, f.err
}

func reversed() *models.OptimizationResult {
	return &models.OptimizationResult{
		RequestID: "req-1",
		OptimizedRoute: &models.OptimizedRoute{
			TotalDistance: 157.25,
			TotalDuration: 7260,
			Waypoints: []models.Waypoint{
				{Latitude: 1, Longitude: 1, Address: "B Street"},
				{Latitude: 0, Longitude: 0, Address: "A Street"},
			},
		},
		OptimizationMetrics: &models.Metrics{TimeSaved: 300, DistanceSaved: 4.5, FuelSaved: 0.8},
	}
}

func twoStops() []models.Stop {
	return []models.Stop{
		{ID: "A", Latitude: 0, Longitude: 0, Address: "A Street"},
		{ID: "B", Latitude: 1, Longitude: 1, Address: "B Street"},
	}
}

func newTestModel(t *testing.T, deps Deps) *Model {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	if deps.Searcher == nil {
		deps.Searcher = places.SearcherFunc(func(context.Context, string) ([]places.Candidate, error) { return nil, nil })
	}
	if deps.Optimizer == nil {
		deps.Optimizer = &fakeOptimizer{result: reversed()}
	}
	deps.Debounce = 5 * time.Millisecond

	m, err := NewModel(ctx, deps)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func press(m *Model, keys string) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return cmd
}

func send(m *Model, msg tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: msg})
	return cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m.Update(cmd())
}

func addresses(stops []models.Stop) string {
	out := make([]string, len(stops))
	for i, s := range stops {
		out[i] = s.Address
	}
	return strings.Join(out, ",")
}

func TestStopsView(t *testing.T) {
	t.Run("reorders and removes stops", func(t *testing.T) {
		m := newTestModel(t, Deps{Initial: []models.Stop{
			{ID: "A", Address: "A"}, {ID: "B", Address: "B"}, {ID: "C", Address: "C"},
		}})

		press(m, "J")
		if got := addresses(m.Stops()); got != "B,A,C" {
			t.Fatalf("expected B,A,C after moving down, got %s", got)
		}
		if m.Stops()[0].Label != models.LabelStart || m.Stops()[2].Label != models.LabelEnd {
			t.Errorf("labels not refreshed: %+v", m.Stops())
		}

		press(m, "K")
		if got := addresses(m.Stops()); got != "A,B,C" {
			t.Fatalf("expected A,B,C after moving back up, got %s", got)
		}

		press(m, "K")
		if got := addresses(m.Stops()); got != "A,B,C" {
			t.Errorf("moving the first stop up should be a no-op, got %s", got)
		}

		press(m, "x")
		if got := addresses(m.Stops()); got != "B,C" {
			t.Errorf("expected B,C after removal, got %s", got)
		}
	})

	t.Run("toggles preferences", func(t *testing.T) {
		m := newTestModel(t, Deps{})

		press(m, "t")
		press(m, "w")
		press(m, "m")
		p := m.Session().Preferences()
		if !p.AvoidTolls || !p.AvoidHighways || p.OptimizeFor != models.OptimizeForDistance {
			t.Errorf("unexpected preferences %+v", p)
		}

		press(m, "m")
		press(m, "m")
		if got := m.Session().Preferences().OptimizeFor; got != models.OptimizeForTime {
			t.Errorf("expected mode to cycle back to time, got %s", got)
		}
		if !strings.Contains(m.View(), "optimize for: time") {
			t.Errorf("preferences not rendered: %s", m.View())
		}
	})
}

func TestSearchView(t *testing.T) {
	springfield := places.NewCandidate("p1", "1 Main St, Springfield", 39.8, -89.6)
	var queries tu.Recorder[string]
	searcher := places.SearcherFunc(func(_ context.Context, q string) ([]places.Candidate, error) {
		queries.Add(q)
		return []places.Candidate{springfield}, nil
	})

	t.Run("adds the chosen place", func(t *testing.T) {
		m := newTestModel(t, Deps{Searcher: searcher})

		press(m, "a")
		if m.view != SearchView {
			t.Fatalf("expected search view, got %v", m.view)
		}

		press(m, "main")
		run(t, m, m.waitForResults())

		if got := len(m.searchList.Items()); got != 1 {
			t.Fatalf("expected 1 candidate, got %d", got)
		}
		if q := queries.Items(); len(q) != 1 || q[0] != "main" {
			t.Errorf("expected a single search for main, got %v", q)
		}

		run(t, m, send(m, tea.KeyEnter))

		if m.view != StopsView {
			t.Errorf("expected to return to stops, got %v", m.view)
		}
		stops := m.Stops()
		if len(stops) != 1 || stops[0].Address != springfield.Description || stops[0].Latitude != 39.8 {
			t.Errorf("unexpected stops %+v", stops)
		}
		if m.searchInput.Value() != "" {
			t.Errorf("search input should be cleared")
		}
	})

	t.Run("escape returns without adding", func(t *testing.T) {
		m := newTestModel(t, Deps{Searcher: searcher})

		press(m, "a")
		press(m, "ab")
		send(m, tea.KeyEsc)

		if m.view != StopsView || len(m.Stops()) != 0 {
			t.Errorf("expected stops view with no stops, got %v %v", m.view, m.Stops())
		}
	})

	t.Run("search failure is shown", func(t *testing.T) {
		failing := places.SearcherFunc(func(context.Context, string) ([]places.Candidate, error) {
			return nil, errors.New("proxy down")
		})
		m := newTestModel(t, Deps{Searcher: failing})

		press(m, "a")
		press(m, "main")
		run(t, m, m.waitForResults())

		if !strings.Contains(m.View(), "proxy down") {
			t.Errorf("expected the error in the view, got %s", m.View())
		}
	})
}

func TestVehicleView(t *testing.T) {
	fleet := &fakeVehicles{vehicles: []models.Vehicle{
		{ID: "veh-1", Make: "Ford", Model: "Transit", LicensePlate: "ABC-123", Type: "van"},
		{ID: "veh-2", Make: "Isuzu", Model: "NPR", LicensePlate: "XYZ-789", Type: "truck"},
	}}

	t.Run("selects a vehicle", func(t *testing.T) {
		m := newTestModel(t, Deps{Vehicles: fleet})
		run(t, m, m.fetchVehicles())

		press(m, "v")
		if m.view != VehicleView {
			t.Fatalf("expected vehicle view, got %v", m.view)
		}
		press(m, "j")
		send(m, tea.KeyEnter)

		if got := m.Session().VehicleID(); got != "veh-2" {
			t.Errorf("expected veh-2, got %s", got)
		}
		if !strings.Contains(m.View(), "Isuzu NPR (XYZ-789)") {
			t.Errorf("selected vehicle not rendered: %s", m.View())
		}
	})

	t.Run("load failure leaves a notice", func(t *testing.T) {
		m := newTestModel(t, Deps{Vehicles: &fakeVehicles{err: errors.New("unauthorized")}})
		run(t, m, m.fetchVehicles())

		if !strings.Contains(m.notice, "unauthorized") {
			t.Errorf("expected notice, got %q", m.notice)
		}
	})
}

func TestOptimize(t *testing.T) {
	t.Run("validation keeps the planner open", func(t *testing.T) {
		opt := &fakeOptimizer{result: reversed()}
		m := newTestModel(t, Deps{Optimizer: opt, Initial: twoStops()})

		run(t, m, press(m, "o"))

		if m.view != StopsView {
			t.Errorf("expected stops view, got %v", m.view)
		}
		if m.notice != optimize.ValidationMessage {
			t.Errorf("expected validation message, got %q", m.notice)
		}
		if opt.requests.Len() != 0 {
			t.Errorf("no request should be sent")
		}
	})

	t.Run("shows the optimized route", func(t *testing.T) {
		opt := &fakeOptimizer{result: reversed()}
		m := newTestModel(t, Deps{Optimizer: opt, Initial: twoStops(), VehicleID: "veh-1"})

		cmd := press(m, "o")
		if m.view != OptimizingView {
			t.Fatalf("expected optimizing view, got %v", m.view)
		}
		if !strings.Contains(m.View(), optimize.StatusSubmitting) {
			t.Errorf("expected submitting status, got %s", m.View())
		}
		run(t, m, cmd)

		if m.view != ResultView {
			t.Fatalf("expected result view, got %v", m.view)
		}
		view := m.View()
		for _, want := range []string{optimize.StatusSucceeded, "157.25 km", "2h 1m", "1. Start Location - B Street", "2. End Location - A Street"} {
			if !strings.Contains(view, want) {
				t.Errorf("result missing %q:\n%s", want, view)
			}
		}

		press(m, "r")
		if m.view != StopsView {
			t.Errorf("expected to return to stops, got %v", m.view)
		}
	})

	t.Run("failure is reported", func(t *testing.T) {
		opt := &fakeOptimizer{err: errors.New("HTTP 503: optimizer offline")}
		m := newTestModel(t, Deps{Optimizer: opt, Initial: twoStops(), VehicleID: "veh-1"})

		run(t, m, press(m, "o"))

		if m.view != ResultView {
			t.Fatalf("expected result view, got %v", m.view)
		}
		if !strings.Contains(m.View(), "optimizer offline") {
			t.Errorf("expected failure in view, got %s", m.View())
		}
		if addresses(m.Stops()) != "A Street,B Street" {
			t.Errorf("stops should be unchanged, got %s", addresses(m.Stops()))
		}
	})

	t.Run("session updates drive the status", func(t *testing.T) {
		m := newTestModel(t, Deps{Initial: twoStops(), VehicleID: "veh-1"})
		m.view = OptimizingView

		m.Update(sessionUpdateMsg(optimize.Update{State: models.StateOptimizing, Status: optimize.StatusQueued}))
		if m.status != optimize.StatusQueued {
			t.Errorf("expected queued status, got %q", m.status)
		}
	})
}
