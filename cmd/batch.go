package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/tasks"
)

// RouteBatch optimizes several plans through the batch engine, printing progress as it goes.
func (r *Runner) RouteBatch(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	var plans []*models.PersistedPlan
	if refs := cmd.StringSlice("plan"); len(refs) > 0 {
		for _, ref := range refs {
			plan, err := r.findPlan(ref)
			if err != nil {
				return err
			}
			plans = append(plans, plan)
		}
	} else {
		all, err := r.plans.List(map[string]any{"vehicle_id": cmd.String("vehicle")})
		if err != nil {
			return err
		}
		plans = all
	}

	if len(plans) == 0 {
		return r.writePlain("No plans to optimize\n")
	}

	if err := r.connect(); err != nil {
		return err
	}

	opts := tasks.EngineOptions{
		Optimizer: r.routes,
		Recorder:  r.runs,
		Saver:     r.plans,
		Logger:    r.logger,
	}

	client, err := r.pushClient()
	if err != nil {
		return err
	}
	if client != nil {
		pushCtx, stop := context.WithCancel(ctx)
		defer stop()
		go client.Run(pushCtx)
		opts.Push = client
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range progress {
			r.writePlain("%s\n", u.Message)
		}
	}()

	engine := tasks.NewBatchEngine(opts)
	result, err := engine.Run(ctx, progress, plans, tasks.BatchOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output-dir"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		Timeout:    cmd.Duration("timeout"),
		Save:       cmd.Bool("save"),
	})
	close(progress)
	<-printed
	if err != nil {
		return loginHint(err)
	}

	r.writePlainln("Optimized %d of %d plans into %s", result.Succeeded, result.TotalPlans, result.OutputDirectory)
	if result.Failed > 0 {
		return fmt.Errorf("%d plans failed, see %s", result.Failed, result.ManifestPath)
	}
	return nil
}
