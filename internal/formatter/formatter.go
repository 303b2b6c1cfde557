// package formatter renders optimized routes and stop lists as CSV, Markdown, JSON and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

// Output formats accepted by [Export].
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// RouteExport is everything needed to render a route: the stops in route order and, once
// optimized, the backend's result.
type RouteExport struct {
	Name        string                     `json:"name,omitempty"`
	VehicleID   string                     `json:"vehicleId,omitempty"`
	Preferences models.Preferences         `json:"preferences"`
	Stops       []models.Stop              `json:"stops"`
	Result      *models.OptimizationResult `json:"result,omitempty"`
}

func (e *RouteExport) title() string {
	if e.Name != "" {
		return e.Name
	}
	if e.Result != nil && e.Result.RequestID != "" {
		return "Route " + e.Result.RequestID
	}
	return "Route"
}

func (e *RouteExport) route() *models.OptimizedRoute {
	if e.Result == nil {
		return nil
	}
	return e.Result.OptimizedRoute
}

func (e *RouteExport) metrics() *models.Metrics {
	if e.Result == nil {
		return nil
	}
	return e.Result.OptimizationMetrics
}

func arrival(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func priority(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// Export renders e in the named format.
func Export(e *RouteExport, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return ExportToText(e)
	case FormatCSV:
		return ExportToCSV(e)
	case FormatMarkdown, "md":
		return ExportToMarkdown(e)
	case FormatJSON:
		return ExportToJSON(e)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV converts a RouteExport to CSV with columns: Position, Label, ID, Address, Latitude, Longitude, Priority, ETA
func ExportToCSV(e *RouteExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Label", "ID", "Address", "Latitude", "Longitude", "Priority", "ETA"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, stop := range e.Stops {
		record := []string{
			strconv.Itoa(i + 1),
			stop.Label,
			stop.ID,
			stop.Address,
			strconv.FormatFloat(stop.Latitude, 'f', 6, 64),
			strconv.FormatFloat(stop.Longitude, 'f', 6, 64),
			priority(stop.Priority),
			arrival(stop.EstimatedArrival),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a RouteExport to Markdown with a summary table and the stop list.
func ExportToMarkdown(e *RouteExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", e.title())

	if e.VehicleID != "" {
		fmt.Fprintf(&buf, "**Vehicle**: %s\n", e.VehicleID)
	}
	fmt.Fprintf(&buf, "**Stops**: %d\n", len(e.Stops))
	fmt.Fprintf(&buf, "**Optimize for**: %s\n\n", e.Preferences.OptimizeFor)

	if r := e.route(); r != nil {
		buf.WriteString("## Summary\n\n")
		buf.WriteString("| Total Distance | Total Duration |")
		m := e.metrics()
		if m != nil {
			buf.WriteString(" Time Saved | Distance Saved | Fuel Saved |")
		}
		buf.WriteString("\n| --- | --- |")
		if m != nil {
			buf.WriteString(" --- | --- | --- |")
		}
		fmt.Fprintf(&buf, "\n| %s | %s |", shared.FormatDistance(r.TotalDistance), shared.FormatDuration(r.TotalDuration))
		if m != nil {
			fmt.Fprintf(&buf, " %s | %s | %s |", shared.FormatDuration(m.TimeSaved), shared.FormatDistance(m.DistanceSaved), shared.FormatFuel(m.FuelSaved))
		}
		buf.WriteString("\n\n")
	}

	buf.WriteString("## Stops\n\n")
	for i, stop := range e.Stops {
		labelPart := ""
		if stop.Label != "" {
			labelPart = fmt.Sprintf("**%s**: ", stop.Label)
		}
		etaPart := ""
		if stop.EstimatedArrival != nil {
			etaPart = fmt.Sprintf(" (ETA %s)", stop.EstimatedArrival.Format("15:04"))
		}
		fmt.Fprintf(&buf, "%d. %s%s%s\n", i+1, labelPart, stop.Address, etaPart)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a RouteExport to plain text.
func ExportToText(e *RouteExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", e.title())
	if e.VehicleID != "" {
		fmt.Fprintf(&buf, "Vehicle: %s\n", e.VehicleID)
	}
	if r := e.route(); r != nil {
		fmt.Fprintf(&buf, "Total Distance: %s\n", shared.FormatDistance(r.TotalDistance))
		fmt.Fprintf(&buf, "Total Duration: %s\n", shared.FormatDuration(r.TotalDuration))
	}
	if m := e.metrics(); m != nil {
		fmt.Fprintf(&buf, "Time Saved: %s\n", shared.FormatDuration(m.TimeSaved))
		fmt.Fprintf(&buf, "Distance Saved: %s\n", shared.FormatDistance(m.DistanceSaved))
		fmt.Fprintf(&buf, "Fuel Saved: %s\n", shared.FormatFuel(m.FuelSaved))
	}
	fmt.Fprintf(&buf, "Stops: %d\n\n", len(e.Stops))

	for i, stop := range e.Stops {
		label := stop.Label
		if label == "" {
			label = models.StopLabel(i, len(e.Stops))
		}
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, label, stop.Address)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a RouteExport to indented JSON.
func ExportToJSON(e *RouteExport) ([]byte, error) {
	return shared.MarshalJSON(e, true)
}

// ToMetadataJSON generates a JSON representation of the route summary (without stops)
func ToMetadataJSON(e *RouteExport) ([]byte, error) {
	meta := struct {
		Name        string             `json:"name,omitempty"`
		VehicleID   string             `json:"vehicleId,omitempty"`
		Preferences models.Preferences `json:"preferences"`
		StopCount   int                `json:"stopCount"`
		RequestID   string             `json:"requestId,omitempty"`
		Route       *struct {
			TotalDistance float64 `json:"totalDistance"`
			TotalDuration float64 `json:"totalDuration"`
		} `json:"route,omitempty"`
		Metrics *models.Metrics `json:"metrics,omitempty"`
	}{
		Name:        e.Name,
		VehicleID:   e.VehicleID,
		Preferences: e.Preferences,
		StopCount:   len(e.Stops),
		Metrics:     e.metrics(),
	}
	if e.Result != nil {
		meta.RequestID = e.Result.RequestID
	}
	if r := e.route(); r != nil {
		meta.Route = &struct {
			TotalDistance float64 `json:"totalDistance"`
			TotalDuration float64 `json:"totalDuration"`
		}{r.TotalDistance, r.TotalDuration}
	}
	return shared.MarshalJSON(meta, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	StopsFile    string
	MetadataFile string
}

func baseName(e *RouteExport) string {
	if e.Result != nil && e.Result.RequestID != "" {
		return e.Result.RequestID
	}
	if e.Name != "" {
		return strings.ReplaceAll(strings.ToLower(e.Name), " ", "_")
	}
	return "route"
}

// WriteCSVExport writes a route as CSV with an accompanying metadata JSON file.
//
// The base filename defaults to the request id (or plan name) & creates {base}_stops.csv and {base}_metadata.json
func WriteCSVExport(e *RouteExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = baseName(e)
	}

	csvData, err := ExportToCSV(e)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	stopsFile := baseFilepath + "_stops.csv"
	if err := os.WriteFile(stopsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(e)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{StopsFile: stopsFile, MetadataFile: metadataFile}, nil
}

// WriteMarkdownExport writes {dir}/README.md, creating the directory. dir defaults to the base name.
func WriteMarkdownExport(e *RouteExport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = baseName(e)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(e)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return mdFile, nil
}

// WriteTextExport writes a route as plain text. Defaults to {base}_route.txt.
func WriteTextExport(e *RouteExport, path string) (string, error) {
	if path == "" {
		path = baseName(e) + "_route.txt"
	}

	textData, err := ExportToText(e)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}
