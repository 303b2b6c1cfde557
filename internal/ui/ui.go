package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/fleetroute/internal/formatter"
	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/optimize"
	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/desertthunder/fleetroute/internal/stops"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	StopsView ViewState = iota
	SearchView
	VehicleView
	OptimizingView
	ResultView
)

// VehicleLister loads the vehicles a route can be planned for.
type VehicleLister interface {
	List(ctx context.Context, filter models.VehicleFilter) (*models.VehicleList, error)
}

// Deps are the collaborators the planner drives.
type Deps struct {
	Searcher  places.Searcher
	Reverse   places.ReverseGeocoder
	Details   places.DetailsProvider
	Vehicles  VehicleLister
	Optimizer optimize.Optimizer
	Push      optimize.PushChannel
	Recorder  optimize.Recorder
	Logger    *log.Logger
	Debounce  time.Duration

	// Initial seeds the stop list, e.g. from a saved plan.
	Initial     []models.Stop
	PlanID      string
	VehicleID   string
	Preferences *models.Preferences
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	logger   *log.Logger
	vehicles VehicleLister

	collection *stops.Collection
	resolver   *places.Resolver
	session    *optimize.Session
	results    chan Msg

	width       int
	height      int
	stopList    list.Model
	searchInput textinput.Model
	searchList  list.Model
	vehicleList list.Model
	fleet       []models.Vehicle
	notice      string
	status      string
	update      optimize.Update
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a planner over a fresh stop collection.
func NewModel(ctx context.Context, deps Deps) (*Model, error) {
	collection, err := stops.New(deps.Initial...)
	if err != nil {
		return nil, fmt.Errorf("failed to seed stops: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	m := &Model{
		ctx:        ctx,
		view:       StopsView,
		logger:     shared.WithLogger(logger, "component", "ui"),
		vehicles:   deps.Vehicles,
		collection: collection,
		results:    make(chan Msg, 1),
		help:       help.New(),
		keys:       newKeyMap(),
	}

	m.resolver = places.NewResolver(deps.Searcher, deps.Reverse, collection, places.ResolverOptions{
		Debounce:  deps.Debounce,
		Details:   deps.Details,
		Logger:    logger,
		OnResults: m.deliverResults,
	})

	m.session = optimize.NewSession(deps.Optimizer, collection, optimize.Options{
		Push:     deps.Push,
		Recorder: deps.Recorder,
		Logger:   logger,
	})
	m.session.SetVehicle(deps.VehicleID)
	m.session.SetPlan(deps.PlanID)
	if deps.Preferences != nil {
		m.session.SetPreferences(*deps.Preferences)
	}

	m.searchInput = textinput.New()
	m.searchInput.Placeholder = "Search for an address"
	m.searchInput.CharLimit = 200

	m.stopList = newList("Stops", stopItems(collection.Stops()))
	m.searchList = newList("Places", nil)
	m.vehicleList = newList("Vehicles", nil)
	return m, nil
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// Stops returns the current stop list.
func (m *Model) Stops() []models.Stop { return m.collection.Stops() }

// Session exposes the optimization session, mainly for callers that persist its outcome.
func (m *Model) Session() *optimize.Session { return m.session }

// Close stops pending searches and releases any push subscription.
func (m *Model) Close() {
	m.resolver.Close()
	m.session.Close()
}

// deliverResults runs on the resolver's goroutine. Only the newest batch is kept.
func (m *Model) deliverResults(query string, results []places.Candidate, err error) {
	msg := searchResultsMsg(query, results, err)
	for {
		select {
		case m.results <- msg:
			return
		default:
		}
		select {
		case <-m.results:
		default:
		}
	}
}

// Init loads vehicles and starts listening for search results and session updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchVehicles(), m.waitForResults(), m.waitForUpdate(), textinput.Blink)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, l := range []*list.Model{&m.stopList, &m.searchList, &m.vehicleList} {
			l.SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case StopsView:
			return m.handleStopsKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		case VehicleView:
			return m.handleVehicleKeys(msg)
		case OptimizingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgVehiclesFetched:
		data := msg.data.(vehiclesFetched)
		if data.err != nil {
			m.logger.Warn("failed to load vehicles", "err", data.err)
			m.notice = fmt.Sprintf("Could not load vehicles: %v", data.err)
			return m, nil
		}
		m.fleet = data.vehicles
		return m, m.vehicleList.SetItems(vehicleItems(data.vehicles))

	case MsgSearchResults:
		data := msg.data.(searchResults)
		if data.err != nil {
			m.notice = fmt.Sprintf("Search failed: %v", data.err)
		} else if data.query == m.searchInput.Value() {
			m.notice = ""
		}
		cmd := m.searchList.SetItems(candidateItems(data.candidates))
		return m, tea.Batch(cmd, m.waitForResults())

	case MsgStopAdded:
		data := msg.data.(stopAdded)
		if data.err != nil {
			m.notice = fmt.Sprintf("Could not add stop: %v", data.err)
			return m, nil
		}
		m.notice = fmt.Sprintf("Added %s", data.stop.Address)
		m.view = StopsView
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.resolver.SetQuery("")
		cmd := m.refreshStops()
		m.stopList.Select(m.collection.Len() - 1)
		return m, cmd

	case MsgSubmitted:
		err, _ := msg.data.(error)
		switch {
		case err == nil:
		case optimize.IsValidation(err):
			m.view = StopsView
			m.notice = err.Error()
			return m, nil
		case errors.Is(err, shared.ErrInFlight):
			m.notice = err.Error()
			return m, nil
		}
		m.syncSession()
		return m, nil

	case MsgSessionUpdate:
		m.update = msg.data.(optimize.Update)
		m.status = m.update.Status
		m.syncSession()
		return m, m.waitForUpdate()
	}
	return m, nil
}

// syncSession moves to the result view once the session settles.
func (m *Model) syncSession() {
	if m.view != OptimizingView {
		return
	}
	if m.session.State().Terminal() {
		m.status = m.session.Status()
		m.err = m.session.Err()
		m.view = ResultView
		m.refreshStops()
	}
}

func (m *Model) refreshStops() tea.Cmd {
	return m.stopList.SetItems(stopItems(m.collection.Stops()))
}

func (m *Model) handleStopsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.add):
		m.view = SearchView
		m.notice = ""
		return m, m.searchInput.Focus()
	case key.Matches(msg, m.keys.remove):
		if item, ok := m.stopList.SelectedItem().(stopItem); ok {
			if err := m.collection.Remove(item.stop.ID); err != nil {
				m.notice = err.Error()
			}
			return m, m.refreshStops()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp), key.Matches(msg, m.keys.moveDown):
		return m, m.moveSelected(key.Matches(msg, m.keys.moveUp))
	case key.Matches(msg, m.keys.vehicle):
		m.view = VehicleView
		return m, nil
	case key.Matches(msg, m.keys.tolls):
		p := m.session.Preferences()
		p.AvoidTolls = !p.AvoidTolls
		m.session.SetPreferences(p)
		return m, nil
	case key.Matches(msg, m.keys.highways):
		p := m.session.Preferences()
		p.AvoidHighways = !p.AvoidHighways
		m.session.SetPreferences(p)
		return m, nil
	case key.Matches(msg, m.keys.mode):
		p := m.session.Preferences()
		p.OptimizeFor = nextMode(p.OptimizeFor)
		m.session.SetPreferences(p)
		return m, nil
	case key.Matches(msg, m.keys.optimize):
		m.view = OptimizingView
		m.status = optimize.StatusSubmitting
		m.notice = ""
		m.err = nil
		return m, m.submit()
	}

	var cmd tea.Cmd
	m.stopList, cmd = m.stopList.Update(msg)
	return m, cmd
}

func nextMode(current models.OptimizeFor) models.OptimizeFor {
	switch current {
	case models.OptimizeForTime:
		return models.OptimizeForDistance
	case models.OptimizeForDistance:
		return models.OptimizeForFuel
	default:
		return models.OptimizeForTime
	}
}

func (m *Model) moveSelected(up bool) tea.Cmd {
	from := m.stopList.Index()
	to := from + 1
	if up {
		to = from - 1
	}
	if err := m.collection.Reorder(from, to); err != nil {
		return nil
	}
	cmd := m.refreshStops()
	m.stopList.Select(to)
	return cmd
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.view = StopsView
		m.searchInput.Blur()
		return m, nil
	case tea.KeyEnter:
		if item, ok := m.searchList.SelectedItem().(candidateItem); ok {
			return m, m.addCandidate(item.candidate)
		}
		return m, nil
	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.searchList, cmd = m.searchList.Update(msg)
		return m, cmd
	}

	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if after := m.searchInput.Value(); after != before {
		m.resolver.SetQuery(after)
	}
	return m, cmd
}

func (m *Model) handleVehicleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = StopsView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.vehicleList.SelectedItem().(vehicleItem); ok {
			m.session.SetVehicle(item.vehicle.ID)
			m.notice = fmt.Sprintf("Planning for %s", item.Title())
		}
		m.view = StopsView
		return m, nil
	}

	var cmd tea.Cmd
	m.vehicleList, cmd = m.vehicleList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart), key.Matches(msg, m.keys.back):
		m.view = StopsView
		m.err = nil
		return m, m.refreshStops()
	}
	return m, nil
}

func (m *Model) fetchVehicles() tea.Cmd {
	if m.vehicles == nil {
		return nil
	}
	return func() tea.Msg {
		res, err := m.vehicles.List(m.ctx, models.VehicleFilter{})
		if err != nil {
			return vehiclesFetchedMsg(nil, err)
		}
		return vehiclesFetchedMsg(res.Vehicles, nil)
	}
}

func (m *Model) waitForResults() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.results:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates := m.session.Updates()
	return func() tea.Msg {
		select {
		case u := <-updates:
			return sessionUpdateMsg(u)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) addCandidate(c places.Candidate) tea.Cmd {
	return func() tea.Msg {
		stop, err := m.resolver.AddCandidate(m.ctx, c)
		return stopAddedMsg(stop, err)
	}
}

func (m *Model) submit() tea.Cmd {
	return func() tea.Msg {
		return submittedMsg(m.session.Submit(m.ctx))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case StopsView:
		return m.renderStops()
	case SearchView:
		return m.renderSearch()
	case VehicleView:
		return m.renderVehicles()
	case OptimizingView:
		return m.renderOptimizing()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderPreferences() string {
	p := m.session.Preferences()
	vehicle := m.session.VehicleID()
	if vehicle == "" {
		vehicle = styles.warn.Render("none selected")
	} else {
		for _, v := range m.fleet {
			if v.ID == vehicle {
				vehicle = vehicleItem{v}.Title()
				break
			}
		}
	}
	return fmt.Sprintf("%s %s\n%s avoid tolls   %s avoid highways   optimize for: %s",
		styles.label.Render("Vehicle:"), vehicle,
		check(p.AvoidTolls), check(p.AvoidHighways), p.OptimizeFor,
	)
}

func (m *Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	return "\n" + styles.warn.Render(m.notice) + "\n"
}

func (m *Model) renderStops() string {
	body := m.stopList.View()
	if m.collection.Len() == 0 {
		body = styles.title.Render("Stops") + "\n" + styles.help.Render("No stops yet. Press a to search for one.")
	}
	helpKeys := []key.Binding{m.keys.add, m.keys.remove, m.keys.moveUp, m.keys.moveDown, m.keys.vehicle, m.keys.optimize, m.keys.quit}
	prefKeys := []key.Binding{m.keys.tolls, m.keys.highways, m.keys.mode}
	return fmt.Sprintf("%s\n\n%s\n%s\n%s\n%s", body, m.renderPreferences(), m.renderNotice(),
		m.help.ShortHelpView(helpKeys), m.help.ShortHelpView(prefKeys))
}

func (m *Model) renderSearch() string {
	title := styles.title.Render("Add a stop")
	results := m.searchList.View()
	if len(m.searchList.Items()) == 0 {
		results = styles.help.Render("Type at least 3 characters to search.")
	}
	helpKeys := []key.Binding{
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "choose")),
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add")),
		m.keys.back,
	}
	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n%s", title, m.searchInput.View(), results, m.renderNotice(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderVehicles() string {
	body := m.vehicleList.View()
	if len(m.fleet) == 0 {
		body = styles.title.Render("Vehicles") + "\n" + styles.help.Render("No vehicles available.")
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s", body, m.renderNotice(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderOptimizing() string {
	title := styles.title.Render("Optimizing Route")
	status := m.status
	if status == "" {
		status = optimize.StatusSubmitting
	}
	return fmt.Sprintf("%s\n%s\n\n%d stops", title, styles.status.Render(status), m.collection.Len())
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		title := styles.err.Render(optimize.StatusFailed)
		return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.err.Error(), helpView)
	}

	result := m.session.Result()
	if result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	text, err := formatter.ExportToText(&formatter.RouteExport{
		VehicleID:   m.session.VehicleID(),
		Preferences: m.session.Preferences(),
		Stops:       m.collection.Stops(),
		Result:      result,
	})
	if err != nil {
		return styles.err.Render(err.Error())
	}

	title := styles.ok.Render("✓ " + optimize.StatusSucceeded)
	return fmt.Sprintf("%s\n\n%s\n%s", title, strings.TrimRight(string(text), "\n"), "\n"+helpView)
}
