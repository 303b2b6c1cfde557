package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

var getRuntime = func() string { return runtime.GOOS }

// LatLng is a bare coordinate pair used when building map links.
type LatLng struct {
	Lat float64
	Lng float64
}

func (p LatLng) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// DirectionsURL builds a Google Maps directions link visiting points in order.
//
// The first point is the origin, the last the destination, everything in between a waypoint.
func DirectionsURL(points []LatLng) (string, error) {
	if len(points) < 2 {
		return "", fmt.Errorf("%w: at least 2 points are required", ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("api", "1")
	q.Set("travelmode", "driving")
	q.Set("origin", points[0].String())
	q.Set("destination", points[len(points)-1].String())

	if len(points) > 2 {
		var waypoints []string
		for _, p := range points[1 : len(points)-1] {
			waypoints = append(waypoints, p.String())
		}
		q.Set("waypoints", strings.Join(waypoints, "|"))
	}

	return "https://www.google.com/maps/dir/?" + q.Encode(), nil
}

// OpenBrowser opens the default system browser to the specified URL.
//
// Supports macOS, Linux, and Windows platforms.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	rt := getRuntime()
	switch rt {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
