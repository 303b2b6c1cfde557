package optimize

import (
	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

// Merge turns optimized waypoints into stops by position: waypoint i keeps the id and label of
// prior stop i and takes everything else from the waypoint. Extra waypoints get a fresh id and a
// positional label.
func Merge(prior []models.Stop, waypoints []models.Waypoint) []models.Stop {
	out := make([]models.Stop, len(waypoints))
	for i, w := range waypoints {
		s := models.Stop{
			Latitude:         w.Latitude,
			Longitude:        w.Longitude,
			Address:          w.Address,
			Priority:         w.Priority,
			EstimatedArrival: w.EstimatedArrival,
		}
		if i < len(prior) {
			s.ID = prior[i].ID
			s.Label = prior[i].Label
		} else {
			s.ID = shared.GenerateID()
			s.Label = models.StopLabel(i, len(waypoints))
		}
		out[i] = s
	}
	return out
}
