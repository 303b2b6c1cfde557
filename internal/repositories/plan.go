package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

const planColumns = `id, sequence, name, vehicle_id, avoid_tolls, avoid_highways, optimize_for, created_at, updated_at, deleted_at`

// PlanRepository implements models.Repository[*models.PersistedPlan] for saved stop lists.
//
// Stops live in plan_stops keyed by position and are rewritten as a whole on every update.
type PlanRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.PersistedPlan] = (*PlanRepository)(nil)

// NewPlanRepository creates a new PlanRepository with the given database connection
func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create inserts a new plan and its stops with generated ID and sequence
func (r *PlanRepository) Create(plan *models.PersistedPlan) error {
	sequence, err := NextSequence(r.db, "plans")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	plan.SetID(shared.GenerateID())
	plan.SetSequence(sequence)

	if err := plan.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prefs := plan.Preferences()
	query := `
		INSERT INTO plans (id, sequence, name, vehicle_id, avoid_tolls, avoid_highways, optimize_for, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		plan.ID(),
		sequence,
		plan.Name(),
		nullString(plan.VehicleID()),
		prefs.AvoidTolls,
		prefs.AvoidHighways,
		string(prefs.OptimizeFor),
		plan.CreatedAt(),
		plan.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	if err := insertStops(tx, plan.ID(), plan.Stops()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan: %w", err)
	}
	return nil
}

// Get retrieves a plan by ID, excluding soft-deleted plans
func (r *PlanRepository) Get(id string) (*models.PersistedPlan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = ? AND deleted_at IS NULL`
	return r.load(r.db.QueryRow(query, id), id)
}

// GetBySequence retrieves a plan by its sequence number
func (r *PlanRepository) GetBySequence(sequence int) (*models.PersistedPlan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE sequence = ? AND deleted_at IS NULL`
	return r.load(r.db.QueryRow(query, sequence), fmt.Sprintf("#%d", sequence))
}

// GetByName retrieves the most recent plan with the given name
func (r *PlanRepository) GetByName(name string) (*models.PersistedPlan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE name = ? AND deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`
	return r.load(r.db.QueryRow(query, name), name)
}

// Update modifies an existing plan and replaces its stops
func (r *PlanRepository) Update(plan *models.PersistedPlan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	plan.SetUpdatedAt(now)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prefs := plan.Preferences()
	query := `
		UPDATE plans
		SET name = ?, vehicle_id = ?, avoid_tolls = ?, avoid_highways = ?, optimize_for = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := tx.Exec(query,
		plan.Name(),
		nullString(plan.VehicleID()),
		prefs.AvoidTolls,
		prefs.AvoidHighways,
		string(prefs.OptimizeFor),
		now,
		plan.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if err := affected(result, shared.ErrPlanNotFound, plan.ID()); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM plan_stops WHERE plan_id = ?", plan.ID()); err != nil {
		return fmt.Errorf("failed to clear plan stops: %w", err)
	}
	if err := insertStops(tx, plan.ID(), plan.Stops()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan: %w", err)
	}
	return nil
}

// Delete soft-deletes a plan by ID
func (r *PlanRepository) Delete(id string) error {
	query := `
		UPDATE plans
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return affected(result, shared.ErrPlanNotFound, id)
}

// List retrieves all plans matching the given criteria, excluding soft-deleted plans.
//
// Supported criteria: "vehicle_id" (string).
func (r *PlanRepository) List(criteria map[string]any) ([]*models.PersistedPlan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE deleted_at IS NULL`
	args := []any{}

	if vehicleID, ok := criteria["vehicle_id"].(string); ok && vehicleID != "" {
		query += " AND vehicle_id = ?"
		args = append(args, vehicleID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.PersistedPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, plan := range plans {
		stops, err := r.stops(plan.ID())
		if err != nil {
			return nil, err
		}
		plan.SetStops(stops)
	}

	return plans, nil
}

func (r *PlanRepository) load(row *sql.Row, ref string) (*models.PersistedPlan, error) {
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlanNotFound, ref)
	}
	if err != nil {
		return nil, err
	}

	stops, err := r.stops(plan.ID())
	if err != nil {
		return nil, err
	}
	plan.SetStops(stops)
	return plan, nil
}

func (r *PlanRepository) stops(planID string) ([]models.Stop, error) {
	query := `
		SELECT stop_id, latitude, longitude, address, priority
		FROM plan_stops
		WHERE plan_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan stops: %w", err)
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var (
			s        models.Stop
			priority sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Latitude, &s.Longitude, &s.Address, &priority); err != nil {
			return nil, fmt.Errorf("failed to scan plan stop: %w", err)
		}
		if priority.Valid {
			s.Priority = models.IntPtr(int(priority.Int64))
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for i := range stops {
		stops[i].Label = models.StopLabel(i, len(stops))
	}
	return stops, nil
}

func insertStops(tx *sql.Tx, planID string, stops []models.Stop) error {
	query := `
		INSERT INTO plan_stops (plan_id, position, stop_id, latitude, longitude, address, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for i, s := range stops {
		var priority sql.NullInt64
		if s.Priority != nil {
			priority = sql.NullInt64{Int64: int64(*s.Priority), Valid: true}
		}
		if _, err := tx.Exec(query, planID, i, s.ID, s.Latitude, s.Longitude, s.Address, priority); err != nil {
			return fmt.Errorf("failed to insert stop %s: %w", s.ID, err)
		}
	}
	return nil
}

// scanPlan scans a single row into a [models.PersistedPlan] without its stops
func scanPlan(row scanner) (*models.PersistedPlan, error) {
	var (
		id            string
		sequence      int
		name          string
		vehicleID     sql.NullString
		avoidTolls    bool
		avoidHighways bool
		optimizeFor   string
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := row.Scan(&id, &sequence, &name, &vehicleID, &avoidTolls, &avoidHighways, &optimizeFor, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}

	plan := models.NewPersistedPlan(sequence, name)
	plan.SetID(id)
	plan.SetVehicleID(vehicleID.String)
	plan.SetPreferences(models.Preferences{
		AvoidTolls:    avoidTolls,
		AvoidHighways: avoidHighways,
		OptimizeFor:   models.OptimizeFor(optimizeFor),
	})
	plan.SetCreatedAt(createdAt)
	plan.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		plan.SetDeletedAt(&deletedAt.Time)
	}

	return plan, nil
}
