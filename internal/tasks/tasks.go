package tasks

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/optimize"
	"github.com/desertthunder/fleetroute/internal/shared"
)

// Engine defines batch operations over saved plans.
type Engine interface {
	// Run optimizes every plan, writes each route to OutputDir and returns per-plan results.
	Run(ctx context.Context, progress chan<- ProgressUpdate, plans []*models.PersistedPlan, opts BatchOpts) (*BatchResult, error)
}

// PlanSaver persists a plan's optimized stop order.
// Satisfied by repositories.PlanRepository.
type PlanSaver interface {
	Update(plan *models.PersistedPlan) error
}

// EngineOptions contains the collaborators shared by every plan in a batch.
type EngineOptions struct {
	Optimizer optimize.Optimizer
	// Push is required when the backend answers asynchronously.
	Push     optimize.PushChannel
	Recorder optimize.Recorder
	Saver    PlanSaver
	Logger   *log.Logger
}

// BatchEngine implements [Engine].
type BatchEngine struct {
	optimizer optimize.Optimizer
	push      optimize.PushChannel
	recorder  optimize.Recorder
	saver     PlanSaver
	logger    *log.Logger

	// SQLite sequence generation is not safe across concurrent writers.
	writeMu sync.Mutex
}

// NewBatchEngine creates a new BatchEngine with the provided collaborators.
func NewBatchEngine(opts EngineOptions) *BatchEngine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &BatchEngine{
		optimizer: opts.Optimizer,
		push:      opts.Push,
		recorder:  opts.Recorder,
		saver:     opts.Saver,
		logger:    shared.WithLogger(logger, "component", "batch"),
	}
}

// RecordRun serializes run recording so sessions in parallel workers never race on the database.
func (e *BatchEngine) RecordRun(run *models.OptimizationRun) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.recorder.RecordRun(run)
}

func (e *BatchEngine) save(plan *models.PersistedPlan) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.saver.Update(plan)
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *BatchEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
