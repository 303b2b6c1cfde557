package models

import (
	"testing"
)

func TestStopLabel(t *testing.T) {
	tc := []struct {
		i, n int
		want string
	}{
		{0, 1, "Start Location"},
		{0, 2, "Start Location"},
		{1, 2, "End Location"},
		{1, 3, "Stop 1"},
		{2, 4, "Stop 2"},
		{3, 4, "End Location"},
	}

	for _, tt := range tc {
		if got := StopLabel(tt.i, tt.n); got != tt.want {
			t.Errorf("StopLabel(%d, %d) = %q, want %q", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestParseOptimizeFor(t *testing.T) {
	for _, in := range []string{"time", "Distance", " fuel "} {
		if _, err := ParseOptimizeFor(in); err != nil {
			t.Errorf("ParseOptimizeFor(%q) unexpected error: %v", in, err)
		}
	}

	if _, err := ParseOptimizeFor("cost"); err == nil {
		t.Error("expected error for unknown objective")
	}
}

func TestVehicleFilterQuery(t *testing.T) {
	q := VehicleFilter{Status: "active", Page: 2}.Query()
	if q.Encode() != "page=2&status=active" {
		t.Errorf("unexpected query %q", q.Encode())
	}

	if (VehicleFilter{}).Query().Encode() != "" {
		t.Error("zero filter should encode to an empty query")
	}
}

func TestIdentityDisplayName(t *testing.T) {
	tc := []struct {
		name string
		id   *Identity
		want string
	}{
		{name: "nil", id: nil, want: ""},
		{name: "full name", id: &Identity{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}, want: "Ada Lovelace"},
		{name: "username", id: &Identity{Username: "ada", Email: "ada@example.com"}, want: "ada"},
		{name: "email", id: &Identity{Email: "ada@example.com"}, want: "ada@example.com"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.DisplayName(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPersistedPlanValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		p := NewPersistedPlan(1, "Monday deliveries")
		p.SetID("plan-1")
		p.SetStops([]Stop{{ID: "a"}, {ID: "b", Latitude: 10}})
		if err := p.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(p *PersistedPlan)
		}{
			{name: "missing id", mutate: func(p *PersistedPlan) { p.SetID("") }},
			{name: "blank name", mutate: func(p *PersistedPlan) { p.SetName("  ") }},
			{name: "bad objective", mutate: func(p *PersistedPlan) { p.SetPreferences(Preferences{OptimizeFor: "cost"}) }},
			{name: "duplicate stop", mutate: func(p *PersistedPlan) { p.SetStops([]Stop{{ID: "a"}, {ID: "a"}}) }},
			{name: "stop without id", mutate: func(p *PersistedPlan) { p.SetStops([]Stop{{}}) }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				p := NewPersistedPlan(1, "plan")
				p.SetID("plan-1")
				tt.mutate(p)
				if err := p.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})
}

func TestOptimizationRunValidate(t *testing.T) {
	r := NewOptimizationRun(1, "veh-1", 3)
	r.SetID("run-1")
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	r.SetStatus(StateIdle)
	if err := r.Validate(); err == nil {
		t.Error("idle is not a valid run status")
	}
}
