package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/services"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/urfave/cli/v3"
)

// VehiclesList lists vehicles matching the filter flags.
func (r *Runner) VehiclesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	list, err := r.vehicles.List(ctx, models.VehicleFilter{
		Status: cmd.String("status"),
		Type:   cmd.String("type"),
		Make:   cmd.String("make"),
		Search: cmd.String("search"),
		Page:   cmd.Int("page"),
		Limit:  cmd.Int("limit"),
	})
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(list, true)
	}

	if len(list.Vehicles) == 0 {
		return r.writePlain("No vehicles found\n")
	}

	r.writePlainHeader(fmt.Sprintf("Vehicles (%d of %d)", len(list.Vehicles), list.Total))
	for _, v := range list.Vehicles {
		r.writePlain("%-36s  %-12s  %-20s  %-8s  %s\n", v.ID, v.LicensePlate, v.Make+" "+v.Model, v.Type, v.Status)
	}
	return nil
}

// VehiclesGet shows one vehicle.
func (r *Runner) VehiclesGet(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: vehicle id", shared.ErrMissingArgument)
	}
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	v, err := r.vehicles.Get(ctx, id)
	if err != nil {
		return loginHint(err)
	}
	return r.printVehicle(v, cmd.Bool("json"))
}

func (r *Runner) printVehicle(v *models.Vehicle, asJSON bool) error {
	if asJSON {
		return r.writeJSON(v, true)
	}

	r.writePlain("%s %s (%d)\n", v.Make, v.Model, v.Year)
	r.writePlain("ID: %s\n", v.ID)
	r.writePlain("License plate: %s\n", v.LicensePlate)
	if v.RegistrationNumber != "" {
		r.writePlain("Registration: %s\n", v.RegistrationNumber)
	}
	r.writePlain("Type: %s\n", v.Type)
	r.writePlain("Status: %s\n", v.Status)
	if v.Capacity > 0 {
		r.writePlain("Capacity: %g\n", v.Capacity)
	}
	if v.FuelType != "" {
		r.writePlain("Fuel: %s\n", v.FuelType)
	}
	return nil
}

// VehiclesCreate adds a vehicle from flags or a JSON body.
func (r *Runner) VehiclesCreate(ctx context.Context, cmd *cli.Command) error {
	var v models.Vehicle
	if raw := cmd.String("data"); raw != "" {
		if err := decodeJSON(raw, &v); err != nil {
			return err
		}
	} else {
		v = models.Vehicle{
			Make:               cmd.String("make"),
			Model:              cmd.String("model"),
			Year:               cmd.Int("year"),
			Type:               cmd.String("type"),
			Status:             cmd.String("status"),
			LicensePlate:       cmd.String("license-plate"),
			RegistrationNumber: cmd.String("registration"),
			Capacity:           cmd.Float("capacity"),
			FuelType:           cmd.String("fuel-type"),
		}
	}

	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	created, err := r.vehicles.Create(ctx, v)
	if err != nil {
		return loginHint(err)
	}

	r.logger.Info("vehicle created", "id", created.ID)
	if cmd.Bool("json") {
		return r.writeJSON(created, true)
	}
	return r.writePlain("✓ Created vehicle %s\n", created.ID)
}

// vehicleUpdate collects only the flags the user actually set.
func vehicleUpdate(cmd *cli.Command) services.VehicleUpdate {
	var u services.VehicleUpdate
	str := func(name string, dst **string) {
		if cmd.IsSet(name) {
			v := cmd.String(name)
			*dst = &v
		}
	}

	str("make", &u.Make)
	str("model", &u.Model)
	str("type", &u.Type)
	str("status", &u.Status)
	str("license-plate", &u.LicensePlate)
	str("registration", &u.RegistrationNumber)
	str("fuel-type", &u.FuelType)
	if cmd.IsSet("year") {
		year := cmd.Int("year")
		u.Year = &year
	}
	if cmd.IsSet("capacity") {
		capacity := cmd.Float("capacity")
		u.Capacity = &capacity
	}
	return u
}

// VehiclesUpdate changes the given fields of a vehicle.
func (r *Runner) VehiclesUpdate(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: vehicle id", shared.ErrMissingArgument)
	}
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	updated, err := r.vehicles.Update(ctx, id, vehicleUpdate(cmd))
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(updated, true)
	}
	return r.writePlain("✓ Updated vehicle %s\n", updated.ID)
}

// VehiclesDelete removes a vehicle.
func (r *Runner) VehiclesDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: vehicle id", shared.ErrMissingArgument)
	}
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.vehicles.Delete(ctx, id); err != nil {
		return loginHint(err)
	}
	return r.writePlain("✓ Deleted vehicle %s\n", id)
}
