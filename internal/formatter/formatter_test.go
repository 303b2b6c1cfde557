package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
	th "github.com/desertthunder/fleetroute/internal/testing"
)

func optimizedExport() *RouteExport {
	eta := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)
	return &RouteExport{
		Name:        "Morning Run",
		VehicleID:   "veh-1",
		Preferences: models.DefaultPreferences(),
		Stops: []models.Stop{
			{ID: "A", Latitude: 1, Longitude: 1, Address: "1 Depot Rd", Label: models.LabelStart, Priority: models.IntPtr(2)},
			{ID: "B", Latitude: 0, Longitude: 0, Address: "2 Market St, Springfield", Label: models.LabelEnd, EstimatedArrival: &eta},
		},
		Result: &models.OptimizationResult{
			RequestID: "req-1",
			OptimizedRoute: &models.OptimizedRoute{
				TotalDistance: 157.25,
				TotalDuration: 7260,
			},
			OptimizationMetrics: &models.Metrics{TimeSaved: 900, DistanceSaved: 12.5, FuelSaved: 3.456},
		},
	}
}

func draftExport() *RouteExport {
	return &RouteExport{
		Preferences: models.DefaultPreferences(),
		Stops: []models.Stop{
			{ID: "A", Address: "1 Depot Rd"},
			{ID: "B", Address: "2 Market St"},
			{ID: "C", Address: "3 Mill Ln"},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(optimizedExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Position,Label,ID,Address,Latitude,Longitude,Priority,ETA") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,Start Location,A,1 Depot Rd,1.000000,1.000000,2,") {
			t.Errorf("CSV missing first stop, got: %s", output)
		}
		if !strings.Contains(output, `2,End Location,B,"2 Market St, Springfield",0.000000,0.000000,,2025-03-01T14:30:00Z`) {
			t.Errorf("CSV missing quoted second stop, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("optimized", func(t *testing.T) {
			data, err := ExportToMarkdown(optimizedExport())
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Morning Run",
				"**Vehicle**: veh-1",
				"**Stops**: 2",
				"**Optimize for**: time",
				"## Summary",
				"| 157.25 km | 2h 1m | 0h 15m | 12.50 km | 3.46L |",
				"1. **Start Location**: 1 Depot Rd",
				"2. **End Location**: 2 Market St, Springfield (ETA 14:30)",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got: %s", want, output)
				}
			}
		})

		t.Run("draft has no summary", func(t *testing.T) {
			data, err := ExportToMarkdown(draftExport())
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			output := string(data)
			if strings.Contains(output, "## Summary") {
				t.Errorf("draft should not render a summary")
			}
			if !strings.Contains(output, "# Route\n") {
				t.Errorf("expected default title, got: %s", output)
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		t.Run("optimized", func(t *testing.T) {
			data, err := ExportToText(optimizedExport())
			if err != nil {
				t.Fatalf("ExportToText failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"Morning Run",
				"Total Distance: 157.25 km",
				"Total Duration: 2h 1m",
				"Fuel Saved: 3.46L",
				"1. Start Location - 1 Depot Rd",
				"2. End Location - 2 Market St, Springfield",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Text missing %q, got: %s", want, output)
				}
			}
		})

		t.Run("labels unlabeled stops by position", func(t *testing.T) {
			data, err := ExportToText(draftExport())
			if err != nil {
				t.Fatalf("ExportToText failed: %v", err)
			}
			output := string(data)
			for _, want := range []string{"1. Start Location", "2. Stop 1", "3. End Location"} {
				if !strings.Contains(output, want) {
					t.Errorf("Text missing %q, got: %s", want, output)
				}
			}
		})
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(optimizedExport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{`"requestId": "req-1"`, `"totalDistance": 157.25`, `"id": "A"`, `"optimizeFor": "time"`} {
			if !strings.Contains(output, want) {
				t.Errorf("JSON missing %s", want)
			}
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(optimizedExport())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, `"stopCount": 2`) || !strings.Contains(output, `"requestId": "req-1"`) {
			t.Errorf("metadata missing summary fields: %s", output)
		}
		if strings.Contains(output, "Depot") {
			t.Errorf("metadata should not include stops")
		}
	})

	t.Run("Export", func(t *testing.T) {
		for _, format := range []string{"", FormatText, FormatCSV, FormatMarkdown, "md", FormatJSON, "JSON"} {
			if _, err := Export(optimizedExport(), format); err != nil {
				t.Errorf("format %q: %v", format, err)
			}
		}
		if _, err := Export(optimizedExport(), "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(optimizedExport(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.StopsFile != "req-1_stops.csv" {
				t.Errorf("Expected stops file 'req-1_stops.csv', got '%s'", result.StopsFile)
			}
			if result.MetadataFile != "req-1_metadata.json" {
				t.Errorf("Expected metadata file 'req-1_metadata.json', got '%s'", result.MetadataFile)
			}

			th.AssertFileExists(t, result.StopsFile)
			th.AssertFileExists(t, result.MetadataFile)

			if !strings.Contains(th.MustReadFile(t, result.StopsFile), "1 Depot Rd") {
				t.Errorf("CSV missing stop data")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom_export")

			result, err := WriteCSVExport(optimizedExport(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.StopsFile != base+"_stops.csv" {
				t.Errorf("unexpected stops file %s", result.StopsFile)
			}
			th.AssertFileExists(t, result.StopsFile)
			th.AssertFileExists(t, result.MetadataFile)
		})

		t.Run("PlanNameFallback", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			e := draftExport()
			e.Name = "Friday Loop"
			result, err := WriteCSVExport(e, "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.StopsFile != "friday_loop_stops.csv" {
				t.Errorf("unexpected stops file %s", result.StopsFile)
			}
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "routes", "morning")

		path, err := WriteMarkdownExport(optimizedExport(), dir)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}

		th.AssertDirExists(t, dir)
		if path != filepath.Join(dir, "README.md") {
			t.Errorf("unexpected path %s", path)
		}
		if !strings.Contains(th.MustReadFile(t, path), "# Morning Run") {
			t.Errorf("README missing title")
		}
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		path, err := WriteTextExport(optimizedExport(), "")
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if path != "req-1_route.txt" {
			t.Errorf("unexpected path %s", path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("unwritable path", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing", "route.txt")
		if _, err := WriteTextExport(optimizedExport(), missing); err == nil {
			t.Error("expected an error writing into a missing directory")
		}
	})
}
