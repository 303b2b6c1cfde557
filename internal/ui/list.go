package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/places"
)

var (
	_ list.Item = stopItem{}
	_ list.Item = candidateItem{}
	_ list.Item = vehicleItem{}
)

// stopItem wraps [models.Stop] to implement [list.Item].
type stopItem struct {
	stop models.Stop
}

func (i stopItem) FilterValue() string { return i.stop.Address }
func (i stopItem) Title() string       { return fmt.Sprintf("%s • %s", i.stop.Label, i.stop.Address) }
func (i stopItem) Description() string {
	desc := places.FormatCoordinates(i.stop.Latitude, i.stop.Longitude)
	if i.stop.Priority != nil {
		desc = fmt.Sprintf("%s • priority %d", desc, *i.stop.Priority)
	}
	if i.stop.EstimatedArrival != nil {
		desc = fmt.Sprintf("%s • ETA %s", desc, i.stop.EstimatedArrival.Format("15:04"))
	}
	return desc
}

// candidateItem wraps [places.Candidate] to implement [list.Item].
type candidateItem struct {
	candidate places.Candidate
}

func (i candidateItem) FilterValue() string { return i.candidate.Description }
func (i candidateItem) Title() string       { return i.candidate.MainText }
func (i candidateItem) Description() string { return i.candidate.SecondaryText }

// vehicleItem wraps [models.Vehicle] to implement [list.Item].
type vehicleItem struct {
	vehicle models.Vehicle
}

func (i vehicleItem) FilterValue() string { return i.vehicle.LicensePlate }
func (i vehicleItem) Title() string {
	return fmt.Sprintf("%s %s (%s)", i.vehicle.Make, i.vehicle.Model, i.vehicle.LicensePlate)
}
func (i vehicleItem) Description() string {
	desc := i.vehicle.Type
	if i.vehicle.Status != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.vehicle.Status)
	}
	return desc
}

func stopItems(stops []models.Stop) []list.Item {
	items := make([]list.Item, len(stops))
	for i, s := range stops {
		items[i] = stopItem{stop: s}
	}
	return items
}

func candidateItems(candidates []places.Candidate) []list.Item {
	items := make([]list.Item, len(candidates))
	for i, c := range candidates {
		items[i] = candidateItem{candidate: c}
	}
	return items
}

func vehicleItems(vehicles []models.Vehicle) []list.Item {
	items := make([]list.Item, len(vehicles))
	for i, v := range vehicles {
		items[i] = vehicleItem{vehicle: v}
	}
	return items
}
