package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

const runColumns = `id, sequence, plan_id, request_id, vehicle_id, stop_count, status, total_distance, total_duration,
	time_saved, distance_saved, fuel_saved, waypoints, error_message, created_at, updated_at, deleted_at`

// RunRepository implements models.Repository[*models.OptimizationRun] for optimization history.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.OptimizationRun] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordRun stores a finished run. It satisfies the optimization session's recorder.
func (r *RunRepository) RecordRun(run *models.OptimizationRun) error {
	return r.Create(run)
}

// Create inserts a run with a generated sequence. An ID already assigned by the caller is kept.
func (r *RunRepository) Create(run *models.OptimizationRun) error {
	sequence, err := NextSequence(r.db, "optimization_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}
	run.SetSequence(sequence)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	cols, err := resultColumns(run.Result())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO optimization_runs (id, sequence, plan_id, request_id, vehicle_id, stop_count, status,
			total_distance, total_duration, time_saved, distance_saved, fuel_saved, waypoints, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{run.ID(), sequence, nullString(run.PlanID()), nullString(run.RequestID()), run.VehicleID(), run.StopCount(), string(run.Status())}
	args = append(args, cols...)
	args = append(args, nullString(run.ErrorMessage()), run.CreatedAt(), run.UpdatedAt())

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.OptimizationRun, error) {
	query := `SELECT ` + runColumns + ` FROM optimization_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// Update stores a run's status, result and error
func (r *RunRepository) Update(run *models.OptimizationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	cols, err := resultColumns(run.Result())
	if err != nil {
		return err
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE optimization_runs
		SET request_id = ?, status = ?, total_distance = ?, total_duration = ?, time_saved = ?, distance_saved = ?,
			fuel_saved = ?, waypoints = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	args := []any{nullString(run.RequestID()), string(run.Status())}
	args = append(args, cols...)
	args = append(args, nullString(run.ErrorMessage()), now, run.ID())

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return affected(result, shared.ErrRunNotFound, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	query := `
		UPDATE optimization_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return affected(result, shared.ErrRunNotFound, id)
}

// List retrieves runs newest first, excluding soft-deleted runs.
//
// Supported criteria: "plan_id" (string), "status" (models.SessionState or string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.OptimizationRun, error) {
	query := `SELECT ` + runColumns + ` FROM optimization_runs WHERE deleted_at IS NULL`
	args := []any{}

	if planID, ok := criteria["plan_id"].(string); ok && planID != "" {
		query += " AND plan_id = ?"
		args = append(args, planID)
	}

	switch status := criteria["status"].(type) {
	case models.SessionState:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.OptimizationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// resultColumns flattens a result into total_distance..waypoints; a nil result is all NULL.
func resultColumns(res *models.OptimizationResult) ([]any, error) {
	cols := make([]any, 6)
	if res == nil {
		return cols, nil
	}

	if route := res.OptimizedRoute; route != nil {
		waypoints, err := json.Marshal(route.Waypoints)
		if err != nil {
			return nil, fmt.Errorf("failed to encode waypoints: %w", err)
		}
		cols[0], cols[1], cols[5] = route.TotalDistance, route.TotalDuration, string(waypoints)
	}
	if m := res.OptimizationMetrics; m != nil {
		cols[2], cols[3], cols[4] = m.TimeSaved, m.DistanceSaved, m.FuelSaved
	}
	return cols, nil
}

func scanRun(row scanner) (*models.OptimizationRun, error) {
	var (
		id            string
		sequence      int
		planID        sql.NullString
		requestID     sql.NullString
		vehicleID     string
		stopCount     int
		status        string
		totalDistance sql.NullFloat64
		totalDuration sql.NullFloat64
		timeSaved     sql.NullFloat64
		distanceSaved sql.NullFloat64
		fuelSaved     sql.NullFloat64
		waypoints     sql.NullString
		errorMessage  sql.NullString
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := row.Scan(&id, &sequence, &planID, &requestID, &vehicleID, &stopCount, &status, &totalDistance, &totalDuration,
		&timeSaved, &distanceSaved, &fuelSaved, &waypoints, &errorMessage, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewOptimizationRun(sequence, vehicleID, stopCount)
	run.SetID(id)
	run.SetPlanID(planID.String)
	run.SetRequestID(requestID.String)
	run.SetStatus(models.SessionState(status))
	run.SetErrorMessage(errorMessage.String)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	if totalDistance.Valid || timeSaved.Valid {
		res := &models.OptimizationResult{RequestID: requestID.String}
		if totalDistance.Valid {
			res.OptimizedRoute = &models.OptimizedRoute{
				TotalDistance: totalDistance.Float64,
				TotalDuration: totalDuration.Float64,
			}
			if waypoints.Valid {
				if err := json.Unmarshal([]byte(waypoints.String), &res.OptimizedRoute.Waypoints); err != nil {
					return nil, fmt.Errorf("failed to decode waypoints: %w", err)
				}
			}
		}
		if timeSaved.Valid {
			res.OptimizationMetrics = &models.Metrics{
				TimeSaved:     timeSaved.Float64,
				DistanceSaved: distanceSaved.Float64,
				FuelSaved:     fuelSaved.Float64,
			}
		}
		run.SetResult(res)
	}

	return run, nil
}
