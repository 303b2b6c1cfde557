package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/desertthunder/fleetroute/internal/ui"
)

// TUI launches the interactive route planner.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.connect(); err != nil {
		return err
	}

	deps := ui.Deps{
		Searcher:  r.places,
		Reverse:   r.places,
		Details:   r.places,
		Vehicles:  r.vehicles,
		Optimizer: r.routes,
		Recorder:  r.runs,
		Logger:    r.logger,
		Debounce:  r.config.Places.Debounce.Duration,
		VehicleID: cmd.String("vehicle"),
	}

	base := models.DefaultPreferences()
	if ref := cmd.String("plan"); ref != "" {
		plan, err := r.findPlan(ref)
		if err != nil {
			return err
		}
		deps.Initial = plan.Stops()
		deps.PlanID = plan.ID()
		if deps.VehicleID == "" {
			deps.VehicleID = plan.VehicleID()
		}
		base = plan.Preferences()
	}

	prefs, err := preferences(cmd, base)
	if err != nil {
		return err
	}
	deps.Preferences = &prefs

	client, err := r.pushClient()
	if err != nil {
		return err
	}
	if client != nil {
		pushCtx, stop := context.WithCancel(ctx)
		defer stop()
		go client.Run(pushCtx)
		deps.Push = client
	}

	model, err := ui.NewModel(ctx, deps)
	if err != nil {
		return err
	}
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
