package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/fleetroute/internal/formatter"
	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/optimize"
	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/push"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/desertthunder/fleetroute/internal/stops"
	"github.com/urfave/cli/v3"
)

const defaultWatchTimeout = 2 * time.Minute

// parseStop reads "lat,lng" or "lat,lng,address".
func parseStop(raw string) (models.Stop, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) < 2 {
		return models.Stop{}, fmt.Errorf("%w: stop %q (want lat,lng[,address])", shared.ErrInvalidArgument, raw)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Stop{}, fmt.Errorf("%w: latitude in %q", shared.ErrInvalidArgument, raw)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Stop{}, fmt.Errorf("%w: longitude in %q", shared.ErrInvalidArgument, raw)
	}

	stop := models.Stop{Latitude: lat, Longitude: lng}
	if len(parts) == 3 {
		stop.Address = strings.TrimSpace(parts[2])
	}
	if stop.Address == "" {
		stop.Address = places.FormatCoordinates(lat, lng)
	}
	return stop, nil
}

// pushClient returns nil when watching is off or no push URL is configured.
func (r *Runner) pushClient() (*push.Client, error) {
	if r.config.API.PushURL == "" {
		return nil, nil
	}

	return push.New(push.Options{
		URL:        r.config.API.PushURL,
		HTTPClient: r.store.HTTPClient(),
		Header: func() http.Header {
			req := &http.Request{Header: http.Header{}}
			r.store.Authorize(req)
			return req.Header
		},
		OnStatus: func(connected bool) {
			r.logger.Debug("push channel", "connected", connected)
		},
		Logger: r.logger,
	})
}

// RouteOptimize submits a plan or ad hoc stops and prints the optimized route.
func (r *Runner) RouteOptimize(ctx context.Context, cmd *cli.Command) error {
	var (
		plan  *models.PersistedPlan
		coll  *stops.Collection
		prefs = models.DefaultPreferences()
		err   error
	)

	if ref := cmd.String("plan"); ref != "" {
		if plan, err = r.findPlan(ref); err != nil {
			return err
		}
		if coll, err = stops.New(plan.Stops()...); err != nil {
			return err
		}
		prefs = plan.Preferences()
	} else {
		raw := cmd.StringSlice("stop")
		initial := make([]models.Stop, 0, len(raw))
		for _, s := range raw {
			stop, err := parseStop(s)
			if err != nil {
				return err
			}
			initial = append(initial, stop)
		}
		if coll, err = stops.New(initial...); err != nil {
			return err
		}
	}

	if prefs, err = preferences(cmd, prefs); err != nil {
		return err
	}

	vehicle := cmd.String("vehicle")
	if vehicle == "" && plan != nil {
		vehicle = plan.VehicleID()
	}

	if err := r.connect(); err != nil {
		return err
	}

	opts := optimize.Options{Recorder: r.runs, Logger: r.logger}
	if cmd.Bool("watch") {
		client, err := r.pushClient()
		if err != nil {
			return err
		}
		if client != nil {
			pushCtx, stop := context.WithCancel(ctx)
			defer stop()
			go func() {
				if err := client.Run(pushCtx); err != nil && pushCtx.Err() == nil {
					r.logger.Warn("push channel stopped", "err", err)
				}
			}()
			opts.Push = client
		}
	}

	session := optimize.NewSession(r.routes, coll, opts)
	defer session.Close()

	session.SetVehicle(vehicle)
	session.SetPreferences(prefs)
	if plan != nil {
		session.SetPlan(plan.ID())
	}

	go func() {
		for u := range session.Updates() {
			r.logger.Info(u.Status, "state", u.State)
		}
	}()

	submitCtx, cancel := r.withTimeout(ctx)
	err = session.Submit(submitCtx)
	cancel()
	if err != nil {
		return loginHint(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	state, err := session.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("optimization %s: %w", state, err)
	}

	export := &formatter.RouteExport{
		VehicleID:   vehicle,
		Preferences: prefs,
		Stops:       coll.Stops(),
		Result:      session.Result(),
	}
	if plan != nil {
		export.Name = plan.Name()
	}

	out, err := formatter.Export(export, cmd.String("format"))
	if err != nil {
		return err
	}
	if _, err := r.output.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if path := cmd.String("output"); path != "" {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		r.logger.Info("route written", "path", path)
	}

	if cmd.Bool("save") {
		if plan == nil {
			return fmt.Errorf("%w: --save needs --plan", shared.ErrInvalidArgument)
		}
		plan.SetStops(coll.Stops())
		if err := r.plans.Update(plan); err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}
		r.logger.Info("plan updated with optimized order", "plan", plan.Name())
	}

	if cmd.Bool("open") {
		all := coll.Stops()
		points := make([]shared.LatLng, len(all))
		for i, s := range all {
			points[i] = shared.LatLng{Lat: s.Latitude, Lng: s.Longitude}
		}
		url, err := shared.DirectionsURL(points)
		if err != nil {
			return err
		}
		if err := shared.OpenBrowser(url); err != nil {
			r.writePlain("Open this link: %s\n", url)
		}
	}

	return nil
}

// RouteHistory lists recorded optimization runs.
func (r *Runner) RouteHistory(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	criteria := map[string]any{
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	}
	if ref := cmd.String("plan"); ref != "" {
		plan, err := r.findPlan(ref)
		if err != nil {
			return err
		}
		criteria["plan_id"] = plan.ID()
	}

	runs, err := r.runs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type runJSON struct {
			ID        string                     `json:"id"`
			PlanID    string                     `json:"planId,omitempty"`
			RequestID string                     `json:"requestId,omitempty"`
			VehicleID string                     `json:"vehicleId"`
			Stops     int                        `json:"stops"`
			Status    models.SessionState        `json:"status"`
			Error     string                     `json:"error,omitempty"`
			Result    *models.OptimizationResult `json:"result,omitempty"`
			CreatedAt time.Time                  `json:"createdAt"`
		}
		out := make([]runJSON, len(runs))
		for i, run := range runs {
			out[i] = runJSON{
				ID:        run.ID(),
				PlanID:    run.PlanID(),
				RequestID: run.RequestID(),
				VehicleID: run.VehicleID(),
				Stops:     run.StopCount(),
				Status:    run.Status(),
				Error:     run.ErrorMessage(),
				Result:    run.Result(),
				CreatedAt: run.CreatedAt(),
			}
		}
		return r.writeJSON(out, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No optimizations recorded\n")
	}

	r.writePlainHeader("Optimization history")
	for _, run := range runs {
		detail := run.ErrorMessage()
		if res := run.Result(); res.Complete() {
			detail = fmt.Sprintf("%s, %s", shared.FormatDistance(res.OptimizedRoute.TotalDistance),
				shared.FormatDuration(res.OptimizedRoute.TotalDuration))
		}
		r.writePlain("#%-4d %s  %-9s %2d stops  %s\n",
			run.Sequence(), run.CreatedAt().Format("2006-01-02 15:04"), run.Status(), run.StopCount(), detail)
	}
	return nil
}
