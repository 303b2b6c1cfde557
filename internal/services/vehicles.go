package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

// VehicleUpdate is a partial update; nil fields are left unchanged.
type VehicleUpdate struct {
	Make               *string  `json:"make,omitempty"`
	Model              *string  `json:"model,omitempty"`
	Year               *int     `json:"year,omitempty"`
	Type               *string  `json:"type,omitempty"`
	Status             *string  `json:"status,omitempty"`
	LicensePlate       *string  `json:"licensePlate,omitempty"`
	RegistrationNumber *string  `json:"registrationNumber,omitempty"`
	Capacity           *float64 `json:"capacity,omitempty"`
	FuelType           *string  `json:"fuelType,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u VehicleUpdate) Empty() bool {
	return u == VehicleUpdate{}
}

// VehicleService manages the vehicle inventory.
type VehicleService struct {
	api Requester
}

// NewVehicleService creates a vehicle client.
func NewVehicleService(api Requester) *VehicleService {
	return &VehicleService{api: api}
}

// List returns one page of vehicles matching filter.
func (s *VehicleService) List(ctx context.Context, filter models.VehicleFilter) (*models.VehicleList, error) {
	endpoint := VehiclesEndpoint
	if q := filter.Query().Encode(); q != "" {
		endpoint += "?" + q
	}

	var list models.VehicleList
	if err := s.api.Request(ctx, http.MethodGet, endpoint, nil, &list); err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return &list, nil
}

// Get fetches a single vehicle.
func (s *VehicleService) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: vehicle id", shared.ErrMissingArgument)
	}

	var v models.Vehicle
	if err := s.api.Request(ctx, http.MethodGet, vehiclePath(id), nil, &v); err != nil {
		return nil, s.wrap(id, err)
	}
	return &v, nil
}

// Create adds a vehicle and returns it as stored by the backend.
func (s *VehicleService) Create(ctx context.Context, v models.Vehicle) (*models.Vehicle, error) {
	if v.Make == "" || v.Model == "" || v.LicensePlate == "" {
		return nil, fmt.Errorf("%w: make, model and license plate are required", shared.ErrValidation)
	}

	var created models.Vehicle
	if err := s.api.Request(ctx, http.MethodPost, VehiclesEndpoint, v, &created); err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	return &created, nil
}

// Update applies a partial update.
func (s *VehicleService) Update(ctx context.Context, id string, u VehicleUpdate) (*models.Vehicle, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: vehicle id", shared.ErrMissingArgument)
	}
	if u.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", shared.ErrValidation)
	}

	var updated models.Vehicle
	if err := s.api.Request(ctx, http.MethodPut, vehiclePath(id), u, &updated); err != nil {
		return nil, s.wrap(id, err)
	}
	return &updated, nil
}

// Delete removes a vehicle.
func (s *VehicleService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: vehicle id", shared.ErrMissingArgument)
	}
	if err := s.api.Request(ctx, http.MethodDelete, vehiclePath(id), nil, nil); err != nil {
		return s.wrap(id, err)
	}
	return nil
}

func (s *VehicleService) wrap(id string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s: %w", shared.ErrVehicleNotFound, id, err)
	}
	return fmt.Errorf("vehicle %s: %w", id, err)
}

func vehiclePath(id string) string {
	return VehiclesEndpoint + "/" + url.PathEscape(id)
}
