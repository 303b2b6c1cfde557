package optimize

import (
	"testing"

	"github.com/desertthunder/fleetroute/internal/models"
)

func TestMerge(t *testing.T) {
	prior := []models.Stop{
		{ID: "a", Label: models.LabelStart, Priority: models.IntPtr(2)},
		{ID: "b", Label: models.LabelEnd},
	}

	t.Run("Same Length", func(t *testing.T) {
		got := Merge(prior, []models.Waypoint{{Latitude: 5, Address: "five"}, {Latitude: 6, Address: "six"}})
		if got[0].ID != "a" || got[1].ID != "b" {
			t.Errorf("expected positional ids, got %s %s", got[0].ID, got[1].ID)
		}
		if got[0].Address != "five" {
			t.Errorf("unexpected first stop %+v", got[0])
		}
	})

	t.Run("Priority Follows The Waypoint", func(t *testing.T) {
		got := Merge(prior, []models.Waypoint{
			{Latitude: 1, Address: "B Street"},
			{Latitude: 0, Address: "A Street", Priority: models.IntPtr(2)},
		})
		if got[0].Priority != nil {
			t.Errorf("expected no priority on the reordered first stop, got %d", *got[0].Priority)
		}
		if got[1].Priority == nil || *got[1].Priority != 2 || got[1].Address != "A Street" {
			t.Errorf("expected priority 2 on A Street, got %+v", got[1])
		}
	})

	t.Run("Extra Waypoints Get Fresh Ids", func(t *testing.T) {
		got := Merge(prior, []models.Waypoint{{}, {}, {Address: "extra"}})
		if len(got) != 3 {
			t.Fatalf("expected 3 stops, got %d", len(got))
		}
		if got[2].ID == "" || got[2].ID == "a" || got[2].ID == "b" {
			t.Errorf("expected a fresh id, got %q", got[2].ID)
		}
		if got[2].Label != models.LabelEnd {
			t.Errorf("expected positional label, got %q", got[2].Label)
		}
	})

	t.Run("Fewer Waypoints", func(t *testing.T) {
		got := Merge(prior, []models.Waypoint{{Address: "only"}})
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("unexpected result %+v", got)
		}
	})
}
