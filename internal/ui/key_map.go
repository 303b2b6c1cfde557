package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	moveUp   key.Binding
	moveDown key.Binding
	enter    key.Binding
	back     key.Binding
	add      key.Binding
	remove   key.Binding
	vehicle  key.Binding
	tolls    key.Binding
	highways key.Binding
	mode     key.Binding
	optimize key.Binding
	restart  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		moveUp:   key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		moveDown: key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		add:      key.NewBinding(key.WithKeys("a", "/"), key.WithHelp("a", "add stop")),
		remove:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove")),
		vehicle:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "vehicle")),
		tolls:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "avoid tolls")),
		highways: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "avoid highways")),
		mode:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "optimize for")),
		optimize: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "optimize")),
		restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "edit stops")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.optimize, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.moveUp, k.moveDown},
		{k.add, k.remove, k.vehicle, k.optimize},
		{k.tolls, k.highways, k.mode},
		{k.back, k.restart, k.quit},
	}
}
