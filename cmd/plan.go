package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/fleetroute/internal/formatter"
	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/desertthunder/fleetroute/internal/stops"
	"github.com/urfave/cli/v3"
)

// preferences reads the shared preference flags on top of base.
func preferences(cmd *cli.Command, base models.Preferences) (models.Preferences, error) {
	if cmd.IsSet("avoid-tolls") {
		base.AvoidTolls = cmd.Bool("avoid-tolls")
	}
	if cmd.IsSet("avoid-highways") {
		base.AvoidHighways = cmd.Bool("avoid-highways")
	}
	if cmd.IsSet("optimize-for") || base.OptimizeFor == "" {
		goal, err := models.ParseOptimizeFor(cmd.String("optimize-for"))
		if err != nil {
			return base, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		base.OptimizeFor = goal
	}
	return base, nil
}

// findPlan resolves a plan by id, sequence number or name.
func (r *Runner) findPlan(ref string) (*models.PersistedPlan, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: plan", shared.ErrMissingArgument)
	}
	if _, err := r.database(); err != nil {
		return nil, err
	}

	if plan, err := r.plans.Get(ref); err == nil {
		return plan, nil
	} else if !errors.Is(err, shared.ErrPlanNotFound) {
		return nil, err
	}

	if seq, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		plan, err := r.plans.GetBySequence(seq)
		if err == nil || !errors.Is(err, shared.ErrPlanNotFound) {
			return plan, err
		}
	}

	return r.plans.GetByName(ref)
}

// PlanCreate saves an empty plan.
func (r *Runner) PlanCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: plan name", shared.ErrMissingArgument)
	}

	if _, err := r.database(); err != nil {
		return err
	}

	prefs, err := preferences(cmd, models.DefaultPreferences())
	if err != nil {
		return err
	}

	plan := models.NewPersistedPlan(0, name)
	plan.SetVehicleID(cmd.String("vehicle"))
	plan.SetPreferences(prefs)
	if err := r.plans.Create(plan); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	r.logger.Info("plan created", "id", plan.ID(), "sequence", plan.Sequence())
	return r.writePlain("✓ Created plan #%d %s\n", plan.Sequence(), name)
}

// PlanAdd appends a stop to a plan from a search or a coordinate.
func (r *Runner) PlanAdd(ctx context.Context, cmd *cli.Command) error {
	plan, err := r.findPlan(cmd.StringArg("plan"))
	if err != nil {
		return err
	}

	query := strings.TrimSpace(cmd.String("query"))
	hasPoint := cmd.IsSet("lat") && cmd.IsSet("lng")
	if query == "" && !hasPoint {
		return fmt.Errorf("%w: --query or --lat and --lng", shared.ErrMissingArgument)
	}

	coll, err := stops.New(plan.Stops()...)
	if err != nil {
		return err
	}

	var stop models.Stop
	if hasPoint && cmd.String("address") != "" {
		stop, err = coll.Add(models.Stop{
			Latitude:  cmd.Float("lat"),
			Longitude: cmd.Float("lng"),
			Address:   cmd.String("address"),
		})
	} else {
		stop, err = r.resolveStop(ctx, coll, query, cmd.Float("lat"), cmd.Float("lng"))
	}
	if err != nil {
		return err
	}

	if cmd.IsSet("priority") {
		p := cmd.Int("priority")
		if stop, err = coll.Update(stop.ID, stops.Patch{Priority: &p}); err != nil {
			return err
		}
	}

	plan.SetStops(coll.Stops())
	if err := r.plans.Update(plan); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	return r.writePlain("✓ Added %s: %s\n", stop.Label, stop.Address)
}

// resolveStop adds the best match for query, or the reverse geocoded point when query is empty.
func (r *Runner) resolveStop(ctx context.Context, coll *stops.Collection, query string, lat, lng float64) (models.Stop, error) {
	if err := r.connect(); err != nil {
		return models.Stop{}, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	resolver := places.NewResolver(r.places, r.places, coll, places.ResolverOptions{
		MinQueryLength: r.config.Places.MinQueryLength,
		Details:        r.places,
		Logger:         r.logger,
	})
	defer resolver.Close()

	if query == "" {
		return resolver.AddFromPoint(ctx, lat, lng)
	}

	results, err := r.places.Search(ctx, query)
	if err != nil {
		return models.Stop{}, err
	}
	if len(results) == 0 {
		return models.Stop{}, fmt.Errorf("%w: %q", shared.ErrPlaceNotFound, query)
	}
	return resolver.AddCandidate(ctx, results[0])
}

// PlanRemove deletes a stop by id or 1-based position.
func (r *Runner) PlanRemove(ctx context.Context, cmd *cli.Command) error {
	plan, err := r.findPlan(cmd.StringArg("plan"))
	if err != nil {
		return err
	}

	ref := cmd.StringArg("stop")
	if ref == "" {
		return fmt.Errorf("%w: stop", shared.ErrMissingArgument)
	}

	coll, err := stops.New(plan.Stops()...)
	if err != nil {
		return err
	}

	id := ref
	if pos, err := strconv.Atoi(ref); err == nil {
		all := coll.Stops()
		if pos < 1 || pos > len(all) {
			return fmt.Errorf("%w: position %d of %d", stops.ErrIndexOutOfRange, pos, len(all))
		}
		id = all[pos-1].ID
	}

	if err := coll.Remove(id); err != nil {
		return err
	}

	plan.SetStops(coll.Stops())
	if err := r.plans.Update(plan); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return r.writePlain("✓ Removed stop, %d remaining\n", coll.Len())
}

// PlanMove moves a stop between 1-based positions.
func (r *Runner) PlanMove(ctx context.Context, cmd *cli.Command) error {
	plan, err := r.findPlan(cmd.StringArg("plan"))
	if err != nil {
		return err
	}

	coll, err := stops.New(plan.Stops()...)
	if err != nil {
		return err
	}

	from, to := cmd.Int("from"), cmd.Int("to")
	if err := coll.Reorder(from-1, to-1); err != nil {
		return err
	}

	plan.SetStops(coll.Stops())
	if err := r.plans.Update(plan); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return r.writePlain("✓ Moved stop %d to %d\n", from, to)
}

// PlanList lists saved plans.
func (r *Runner) PlanList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	plans, err := r.plans.List(map[string]any{"vehicle_id": cmd.String("vehicle")})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]*formatter.RouteExport, len(plans))
		for i, p := range plans {
			out[i] = planExport(p, nil)
		}
		return r.writeJSON(out, true)
	}

	if len(plans) == 0 {
		return r.writePlain("No plans yet. Create one with 'fleetroute plan create <name>'\n")
	}

	r.writePlainHeader("Plans")
	for _, p := range plans {
		vehicle := p.VehicleID()
		if vehicle == "" {
			vehicle = "-"
		}
		r.writePlain("#%-4d %-24s %2d stops  vehicle %s  (%s)\n",
			p.Sequence(), p.Name(), len(p.Stops()), vehicle, p.Preferences().OptimizeFor)
	}
	return nil
}

func planExport(p *models.PersistedPlan, result *models.OptimizationResult) *formatter.RouteExport {
	return &formatter.RouteExport{
		Name:        p.Name(),
		VehicleID:   p.VehicleID(),
		Preferences: p.Preferences(),
		Stops:       p.Stops(),
		Result:      result,
	}
}

// PlanShow prints a plan in the chosen format.
func (r *Runner) PlanShow(ctx context.Context, cmd *cli.Command) error {
	plan, err := r.findPlan(cmd.StringArg("plan"))
	if err != nil {
		return err
	}

	out, err := formatter.Export(planExport(plan, nil), cmd.String("format"))
	if err != nil {
		return err
	}
	_, err = r.output.Write(out)
	return err
}

// PlanDelete removes a plan.
func (r *Runner) PlanDelete(ctx context.Context, cmd *cli.Command) error {
	plan, err := r.findPlan(cmd.StringArg("plan"))
	if err != nil {
		return err
	}

	if err := r.plans.Delete(plan.ID()); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted plan #%d %s\n", plan.Sequence(), plan.Name())
}
