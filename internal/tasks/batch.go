package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/fleetroute/internal/formatter"
	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/optimize"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/desertthunder/fleetroute/internal/stops"
)

const (
	DefaultWorkers   = 3
	MaxWorkers       = 10
	DefaultRateLimit = 2.0
	DefaultTimeout   = 2 * time.Minute
	ManifestFile     = "batch_manifest.json"
)

// BatchOpts contains configuration for batch optimization.
type BatchOpts struct {
	Format     string        // Export format: text, csv, markdown, json
	OutputDir  string        // Base output directory (default: fleetroute_batch_{epoch})
	NumWorkers int           // Concurrent workers (default: 3)
	RateLimit  float64       // Submissions per second (default: 2)
	Timeout    time.Duration // Per-plan wait for an asynchronous result (default: 2m)
	Save       bool          // Write the optimized order back to each plan
}

// PlanResult is the outcome for one plan.
type PlanResult struct {
	PlanID    string                     `json:"planId"`
	PlanName  string                     `json:"planName"`
	Sequence  int                        `json:"sequence"`
	RequestID string                     `json:"requestId,omitempty"`
	Success   bool                       `json:"success"`
	Saved     bool                       `json:"saved,omitempty"`
	Files     []string                   `json:"files,omitempty"`
	Result    *models.OptimizationResult `json:"-"`
	Error     error                      `json:"-"`
	ErrorText string                     `json:"error,omitempty"`
}

// BatchResult summarizes a batch. Results are in the order the plans were given.
type BatchResult struct {
	TotalPlans      int          `json:"totalPlans"`
	Succeeded       int          `json:"succeeded"`
	Failed          int          `json:"failed"`
	OutputDirectory string       `json:"outputDirectory"`
	ManifestPath    string       `json:"-"`
	Results         []PlanResult `json:"results"`
}

type planJob struct {
	index int
	plan  *models.PersistedPlan
}

type indexedResult struct {
	index int
	PlanResult
}

// Run optimizes plans concurrently with rate limiting and progress tracking.
//
// This method implements a worker pool pattern. Partial failures are reported per plan and a
// manifest file summarizing the batch is written to the output directory.
func (e *BatchEngine) Run(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	plans []*models.PersistedPlan,
	opts BatchOpts,
) (*BatchResult, error) {
	if e.optimizer == nil {
		return nil, fmt.Errorf("%w: optimizer not configured", shared.ErrMissingConfig)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: no plans to optimize", shared.ErrInvalidArgument)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("fleetroute_batch_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultWorkers
	}
	if opts.NumWorkers > MaxWorkers {
		opts.NumWorkers = MaxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BatchResult{
		TotalPlans:      len(plans),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlanResult, 0, len(plans)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan planJob, len(plans))
	results := make(chan indexedResult, len(plans))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, jobs, results, opts)
	}

	e.sendProgress(prog, queuedUpdate(len(plans)))
	go func() {
		defer close(jobs)
		for i, plan := range plans {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(plans); j++ {
					results <- indexedResult{index: j, PlanResult: failed(plans[j], err)}
				}
				return
			}
			e.sendProgress(prog, submitUpdate(i+1, len(plans), plan))
			jobs <- planJob{index: i, plan: plan}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]indexedResult, 0, len(plans))
	completed := 0
	for res := range results {
		completed++
		collected = append(collected, res)

		if res.Success {
			result.Succeeded++
			e.sendProgress(prog, succeededUpdate(completed, len(plans), res.PlanResult))
		} else {
			result.Failed++
			e.sendProgress(prog, failedUpdate(completed, len(plans), res.PlanResult))
		}
	}

	slices.SortFunc(collected, func(a, b indexedResult) int { return a.index - b.index })
	for _, res := range collected {
		result.Results = append(result.Results, res.PlanResult)
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestFile)
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("batch completed but failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return result, fmt.Errorf("batch completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	e.sendProgress(prog, manifestUpdate(manifestPath))

	e.logger.Info("batch finished", "plans", result.TotalPlans, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// worker optimizes plans from the jobs channel.
func (e *BatchEngine) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan planJob,
	results chan<- indexedResult,
	opts BatchOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- indexedResult{index: job.index, PlanResult: failed(job.plan, err)}
			continue
		}
		results <- indexedResult{index: job.index, PlanResult: e.optimizePlan(ctx, job.plan, opts)}
	}
}

func failed(plan *models.PersistedPlan, err error) PlanResult {
	return PlanResult{
		PlanID:    plan.ID(),
		PlanName:  plan.Name(),
		Sequence:  plan.Sequence(),
		Error:     err,
		ErrorText: err.Error(),
	}
}

// optimizePlan runs one session to a terminal state and exports the route.
func (e *BatchEngine) optimizePlan(ctx context.Context, plan *models.PersistedPlan, opts BatchOpts) PlanResult {
	coll, err := stops.New(plan.Stops()...)
	if err != nil {
		return failed(plan, err)
	}

	sessionOpts := optimize.Options{Push: e.push, Logger: e.logger}
	if e.recorder != nil {
		sessionOpts.Recorder = e
	}
	session := optimize.NewSession(e.optimizer, coll, sessionOpts)
	defer session.Close()

	session.SetVehicle(plan.VehicleID())
	session.SetPreferences(plan.Preferences())
	session.SetPlan(plan.ID())

	if err := session.Submit(ctx); err != nil {
		return failed(plan, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if _, err := session.Wait(waitCtx); err != nil {
		return failed(plan, err)
	}

	res := PlanResult{
		PlanID:    plan.ID(),
		PlanName:  plan.Name(),
		Sequence:  plan.Sequence(),
		RequestID: session.RequestID(),
		Result:    session.Result(),
	}

	optimized := coll.Stops()
	if opts.Save && e.saver != nil {
		plan.SetStops(optimized)
		if err := e.save(plan); err != nil {
			return failed(plan, fmt.Errorf("failed to save plan: %w", err))
		}
		res.Saved = true
	}

	export := &formatter.RouteExport{
		Name:        plan.Name(),
		VehicleID:   plan.VehicleID(),
		Preferences: plan.Preferences(),
		Stops:       optimized,
		Result:      res.Result,
	}
	files, err := writeExport(export, plan, opts)
	if err != nil {
		return failed(plan, err)
	}

	res.Files = files
	res.Success = true
	return res
}

// writeExport writes one route under OutputDir, named by plan number and name.
func writeExport(e *formatter.RouteExport, plan *models.PersistedPlan, opts BatchOpts) ([]string, error) {
	base := filepath.Join(opts.OutputDir, fmt.Sprintf("%03d_%s", plan.Sequence(), slug(plan.Name())))

	switch opts.Format {
	case formatter.FormatCSV:
		res, err := formatter.WriteCSVExport(e, base)
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		return []string{res.StopsFile, res.MetadataFile}, nil
	case formatter.FormatMarkdown, "md":
		path, err := formatter.WriteMarkdownExport(e, base)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		return []string{path}, nil
	case formatter.FormatText, "txt":
		path, err := formatter.WriteTextExport(e, base+"_route.txt")
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		return []string{path}, nil
	case formatter.FormatJSON:
		data, err := formatter.ExportToJSON(e)
		if err != nil {
			return nil, fmt.Errorf("JSON marshal failed: %w", err)
		}
		path := base + ".json"
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("JSON write failed: %w", err)
		}
		return []string{path}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, opts.Format)
	}
}

func slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "plan"
	}
	return s
}
