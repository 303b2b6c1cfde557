package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/services"
	"github.com/desertthunder/fleetroute/internal/shared"
	tu "github.com/desertthunder/fleetroute/internal/testing"
)

// backend fakes the fleet API and the places proxy on one server.
func backend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+services.VehiclesEndpoint, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.VehicleList{
			Vehicles: []models.Vehicle{
				{ID: "v1", Make: "Ford", Model: "Transit", Year: 2022, Type: "van", Status: "active", LicensePlate: "ABC123"},
			},
			Total: 1, Page: 1, Limit: 20,
		})
	})
	mux.HandleFunc("POST "+services.OptimizeEndpoint, func(w http.ResponseWriter, r *http.Request) {
		var req models.OptimizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		waypoints := make([]models.Waypoint, len(req.Stops))
		for i, s := range req.Stops {
			waypoints[len(req.Stops)-1-i] = models.Waypoint{Latitude: s.Latitude, Longitude: s.Longitude, Address: s.Address}
		}
		json.NewEncoder(w).Encode(models.OptimizationResult{
			RequestID:      "req-1",
			OptimizedRoute: &models.OptimizedRoute{TotalDistance: 12.5, TotalDuration: 1800, Waypoints: waypoints},
		})
	})
	mux.HandleFunc("POST "+services.AutocompleteEndpoint, func(w http.ResponseWriter, r *http.Request) {
		c := places.NewCandidate("geocode_0_1", "1 Main St, Springfield", 10, 20)
		json.NewEncoder(w).Encode(places.AutocompleteResponse{
			Status:      "OK",
			Predictions: []places.Prediction{c.ToPrediction()},
		})
	})
	mux.HandleFunc("POST "+services.ReverseEndpoint, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(places.DetailsResponse{
			Status: "OK",
			Result: &places.PlaceResult{FormattedAddress: "9 Elm St, Shelbyville"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRunner(t *testing.T, baseURL string) (*Runner, *bytes.Buffer) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	config := shared.DefaultConfig()
	if baseURL != "" {
		config.API.BaseURL = baseURL
		config.API.ProxyURL = baseURL
		config.Auth.BaseURL = baseURL
	}
	config.API.PushURL = ""

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.DiscardLogger(),
		Output: output,
		DB:     db,
	})
	t.Cleanup(func() { runner.Close() })
	return runner, output
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "fleetroute", Commands: r.register(), DisableSliceFlagSeparator: true}
	return app.Run(context.Background(), append([]string{"fleetroute"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient == nil || runner.httpClient.Timeout != runner.config.API.Timeout.Duration {
				t.Error("expected httpClient to use the configured API timeout")
			}
		})

		t.Run("does not connect eagerly", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.store != nil || runner.db != nil {
				t.Error("expected backends to be built on first use")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln surrounds with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("done"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "\ndone\n" {
				t.Errorf("expected newline-wrapped text, got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "auth", "vehicles", "places", "plan", "route", "serve", "tui"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil || cmd.Name != want[i] {
				t.Errorf("command %d: expected %s, got %+v", i, want[i], cmd)
			}
		}
	})

	t.Run("decodeJSON", func(t *testing.T) {
		var v models.Vehicle
		if err := decodeJSON(`{"make":"Ford","year":2020}`, &v); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v.Make != "Ford" || v.Year != 2020 {
			t.Errorf("unexpected vehicle %+v", v)
		}

		if err := decodeJSON("{", &v); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestParseStop(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    models.Stop
		wantErr bool
	}{
		{name: "with address", raw: "51.5,-0.12,10 Downing St, London", want: models.Stop{Latitude: 51.5, Longitude: -0.12, Address: "10 Downing St, London"}},
		{name: "coordinates only", raw: "1, 2", want: models.Stop{Latitude: 1, Longitude: 2, Address: places.FormatCoordinates(1, 2)}},
		{name: "missing longitude", raw: "1", wantErr: true},
		{name: "bad latitude", raw: "north,2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStop(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestPlanCommands(t *testing.T) {
	runner, output := newTestRunner(t, "")

	if err := run(runner, "plan", "create", "--vehicle", "v1", "--avoid-tolls", "Depot run"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.Contains(output.String(), "Created plan #1 Depot run") {
		t.Errorf("unexpected create output %q", output.String())
	}
	if plan, err := runner.findPlan("1"); err != nil || plan.Name() != "Depot run" || plan.Sequence() != 1 {
		t.Fatalf("printed number should find the plan, got %v %v", plan, err)
	}

	for _, args := range [][]string{
		{"plan", "add", "--lat", "1", "--lng", "2", "--address", "A Street", "1"},
		{"plan", "add", "--lat", "3", "--lng", "4", "--address", "B Street", "--priority", "2", "Depot run"},
	} {
		if err := run(runner, args...); err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
	}

	t.Run("show lists stops in order", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "plan", "show", "Depot run"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		text := output.String()
		for _, want := range []string{"Vehicle: v1", "Stops: 2", "1. Start Location - A Street", "2. End Location - B Street"} {
			if !strings.Contains(text, want) {
				t.Errorf("expected %q in %q", want, text)
			}
		}
	})

	t.Run("move reorders and relabels", func(t *testing.T) {
		if err := run(runner, "plan", "move", "--from", "2", "--to", "1", "1"); err != nil {
			t.Fatalf("move failed: %v", err)
		}

		plan, err := runner.findPlan("1")
		if err != nil {
			t.Fatalf("find failed: %v", err)
		}
		stops := plan.Stops()
		if stops[0].Address != "B Street" || stops[0].Label != models.LabelStart {
			t.Errorf("expected B Street first, got %+v", stops[0])
		}
		if stops[0].Priority == nil || *stops[0].Priority != 2 {
			t.Errorf("expected priority to survive the move, got %v", stops[0].Priority)
		}
		if !plan.Preferences().AvoidTolls {
			t.Error("expected preferences to be saved")
		}
	})

	t.Run("move out of range fails", func(t *testing.T) {
		if err := run(runner, "plan", "move", "--from", "1", "--to", "5", "1"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("list as JSON", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "plan", "list", "--json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		var got []map[string]any
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON %q: %v", output.String(), err)
		}
		if len(got) != 1 || got[0]["name"] != "Depot run" {
			t.Errorf("unexpected plans %v", got)
		}
	})

	t.Run("remove by position", func(t *testing.T) {
		if err := run(runner, "plan", "remove", "Depot run", "1"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		plan, _ := runner.findPlan("Depot run")
		if stops := plan.Stops(); len(stops) != 1 || stops[0].Address != "A Street" {
			t.Errorf("expected only A Street left, got %+v", stops)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := run(runner, "plan", "delete", "Depot run"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := runner.findPlan("Depot run"); !errors.Is(err, shared.ErrPlanNotFound) {
			t.Errorf("expected ErrPlanNotFound, got %v", err)
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		if err := run(runner, "plan", "show", "nope"); !errors.Is(err, shared.ErrPlanNotFound) {
			t.Errorf("expected ErrPlanNotFound, got %v", err)
		}
	})
}

func TestBackendCommands(t *testing.T) {
	srv := backend(t)

	t.Run("vehicles list", func(t *testing.T) {
		runner, output := newTestRunner(t, srv.URL)
		if err := run(runner, "vehicles", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "Ford Transit") || !strings.Contains(output.String(), "ABC123") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("places search", func(t *testing.T) {
		runner, output := newTestRunner(t, srv.URL)
		if err := run(runner, "places", "search", "main st"); err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if !strings.Contains(output.String(), "1. 1 Main St") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("places search rejects short queries", func(t *testing.T) {
		runner, _ := newTestRunner(t, srv.URL)
		if err := run(runner, "places", "search", "ab"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("plan add resolves queries and points", func(t *testing.T) {
		runner, _ := newTestRunner(t, srv.URL)
		if err := run(runner, "plan", "create", "Trip"); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := run(runner, "plan", "add", "--query", "main st", "Trip"); err != nil {
			t.Fatalf("add query failed: %v", err)
		}
		if err := run(runner, "plan", "add", "--lat", "5", "--lng", "6", "Trip"); err != nil {
			t.Fatalf("add point failed: %v", err)
		}

		plan, _ := runner.findPlan("Trip")
		stops := plan.Stops()
		if len(stops) != 2 {
			t.Fatalf("expected 2 stops, got %d", len(stops))
		}
		if stops[0].Address != "1 Main St, Springfield" || stops[0].Latitude != 10 {
			t.Errorf("unexpected first stop %+v", stops[0])
		}
		if stops[1].Address != "9 Elm St, Shelbyville" || stops[1].Longitude != 6 {
			t.Errorf("unexpected second stop %+v", stops[1])
		}
	})

	t.Run("route optimize saves plan and records run", func(t *testing.T) {
		runner, output := newTestRunner(t, srv.URL)
		dir := t.TempDir()
		outPath := filepath.Join(dir, "route.json")

		if err := run(runner, "plan", "create", "--vehicle", "v1", "Loop"); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		for _, addr := range []string{"A", "B", "C"} {
			if err := run(runner, "plan", "add", "--lat", "1", "--lng", "1", "--address", addr, "Loop"); err != nil {
				t.Fatalf("add failed: %v", err)
			}
		}

		output.Reset()
		err := run(runner, "route", "optimize", "--plan", "Loop", "--format", "json", "--save", "--output", outPath)
		if err != nil {
			t.Fatalf("optimize failed: %v", err)
		}

		var export struct {
			Stops  []models.Stop              `json:"stops"`
			Result *models.OptimizationResult `json:"result"`
		}
		if err := json.Unmarshal(output.Bytes(), &export); err != nil {
			t.Fatalf("invalid JSON %q: %v", output.String(), err)
		}
		if export.Result == nil || export.Result.RequestID != "req-1" {
			t.Errorf("expected request id req-1, got %+v", export.Result)
		}
		if len(export.Stops) != 3 || export.Stops[0].Address != "C" {
			t.Errorf("expected reversed stops, got %+v", export.Stops)
		}

		tu.AssertFileExists(t, outPath)

		plan, _ := runner.findPlan("Loop")
		if got := plan.Stops(); got[0].Address != "C" || got[2].Address != "A" {
			t.Errorf("expected optimized order saved, got %+v", got)
		}

		output.Reset()
		if err := run(runner, "route", "history", "--plan", "Loop"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(output.String(), "succeeded") || !strings.Contains(output.String(), "3 stops") {
			t.Errorf("unexpected history %q", output.String())
		}
	})

	t.Run("route batch optimizes every plan", func(t *testing.T) {
		runner, output := newTestRunner(t, srv.URL)
		dir := t.TempDir()

		for _, name := range []string{"East", "West"} {
			if err := run(runner, "plan", "create", "--vehicle", "v1", name); err != nil {
				t.Fatalf("create failed: %v", err)
			}
			for _, addr := range []string{name + " A", name + " B"} {
				if err := run(runner, "plan", "add", "--lat", "1", "--lng", "1", "--address", addr, name); err != nil {
					t.Fatalf("add failed: %v", err)
				}
			}
		}

		output.Reset()
		if err := run(runner, "route", "batch", "--output-dir", dir, "--rate", "100", "--save"); err != nil {
			t.Fatalf("batch failed: %v", err)
		}
		if !strings.Contains(output.String(), "Optimized 2 of 2 plans") {
			t.Errorf("unexpected output %q", output.String())
		}

		tu.AssertFileExists(t, filepath.Join(dir, "001_east.json"))
		tu.AssertFileExists(t, filepath.Join(dir, "002_west.json"))

		plan, _ := runner.findPlan("West")
		if got := plan.Stops(); got[0].Address != "West B" {
			t.Errorf("expected optimized order saved, got %+v", got)
		}
	})

	t.Run("route optimize keeps commas inside --stop", func(t *testing.T) {
		runner, output := newTestRunner(t, srv.URL)
		err := run(runner, "route", "optimize", "--vehicle", "v1", "--format", "json",
			"--stop", "1,2,A Street", "--stop", "3,4,B Street")
		if err != nil {
			t.Fatalf("optimize failed: %v", err)
		}

		var export struct {
			Stops []models.Stop `json:"stops"`
		}
		if err := json.Unmarshal(output.Bytes(), &export); err != nil {
			t.Fatalf("invalid JSON %q: %v", output.String(), err)
		}
		if len(export.Stops) != 2 || export.Stops[0].Address != "B Street" || export.Stops[1].Latitude != 1 {
			t.Errorf("expected two reversed stops, got %+v", export.Stops)
		}
	})

	t.Run("route optimize validates before submitting", func(t *testing.T) {
		runner, _ := newTestRunner(t, srv.URL)
		err := run(runner, "route", "optimize", "--stop", "1,2,A", "--stop", "3,4,B")
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error without a vehicle, got %v", err)
		}
	})
}

func TestSetupConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	runner, _ := newTestRunner(t, "")
	if err := run(runner, "setup", "config", "--output", path); err != nil {
		t.Fatalf("setup config failed: %v", err)
	}

	tu.AssertFileExists(t, path)
	if !strings.Contains(tu.MustReadFile(t, path), "[api]") {
		t.Error("expected the example config to be written")
	}
}

func TestSetupDatabase(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	dbPath := filepath.Join(dir, "fleet.db")

	if err := shared.CreateConfigFile(configPath); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	example := tu.MustReadFile(t, configPath)
	example = strings.Replace(example, `path = "./fleetroute.db"`, `path = "`+filepath.ToSlash(dbPath)+`"`, 1)
	if err := os.WriteFile(configPath, []byte(example), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	runner, output := newTestRunner(t, "")

	if err := run(runner, "setup", "database", "--config", configPath); err != nil {
		t.Fatalf("setup database failed: %v", err)
	}
	if !strings.Contains(output.String(), "schema 0000, 1 applied") {
		t.Errorf("unexpected output %q", output.String())
	}
	tu.AssertFileExists(t, dbPath)

	output.Reset()
	if err := run(runner, "setup", "database", "--config", configPath, "--rollback"); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if !strings.Contains(output.String(), "Rolled back migration 0000 create_tables") {
		t.Errorf("unexpected output %q", output.String())
	}

	if err := run(runner, "setup", "database", "--config", configPath, "--rollback"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument with nothing applied, got %v", err)
	}
}
