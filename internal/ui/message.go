package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/optimize"
	"github.com/desertthunder/fleetroute/internal/places"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgVehiclesFetched MsgKind = iota
	MsgSearchResults
	MsgStopAdded
	MsgSubmitted
	MsgSessionUpdate
)

type vehiclesFetched struct {
	vehicles []models.Vehicle
	err      error
}

type searchResults struct {
	query      string
	candidates []places.Candidate
	err        error
}

type stopAdded struct {
	stop models.Stop
	err  error
}

// vehiclesFetchedMsg is the constructor for [MsgVehiclesFetched]
func vehiclesFetchedMsg(vehicles []models.Vehicle, err error) Msg {
	return Msg{kind: MsgVehiclesFetched, data: vehiclesFetched{vehicles, err}}
}

// searchResultsMsg is the constructor for [MsgSearchResults]
func searchResultsMsg(query string, candidates []places.Candidate, err error) Msg {
	return Msg{kind: MsgSearchResults, data: searchResults{query, candidates, err}}
}

// stopAddedMsg is the constructor for [MsgStopAdded]
func stopAddedMsg(stop models.Stop, err error) Msg {
	return Msg{kind: MsgStopAdded, data: stopAdded{stop, err}}
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(err error) Msg {
	return Msg{kind: MsgSubmitted, data: err}
}

// sessionUpdateMsg is the constructor for [MsgSessionUpdate]
func sessionUpdateMsg(u optimize.Update) Msg {
	return Msg{kind: MsgSessionUpdate, data: u}
}
