// Package ui implements an interactive route planner using bubbletea's Elm architecture.
//
// The TUI walks through a planning session:
//  1. [StopsView] : Review, reorder and remove stops; toggle route preferences
//  2. [SearchView] : Type an address and pick a place (searches are debounced)
//  3. [VehicleView] : Choose the vehicle the route is planned for
//  4. [OptimizingView] : Follow status updates while the backend optimizes
//  5. [ResultView] : Totals, savings and the reordered stops
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Search results and session updates arrive on channels that are drained by long-lived commands, so neither the
// resolver nor the optimization session ever blocks on the UI.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
