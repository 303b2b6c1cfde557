package models

import (
	"net/url"
	"strconv"
)

// Vehicle is a fleet vehicle from the inventory service.
type Vehicle struct {
	ID                 string  `json:"id"`
	Make               string  `json:"make"`
	Model              string  `json:"model"`
	Year               int     `json:"year"`
	Type               string  `json:"type"`
	Status             string  `json:"status"`
	LicensePlate       string  `json:"licensePlate"`
	RegistrationNumber string  `json:"registrationNumber,omitempty"`
	Capacity           float64 `json:"capacity,omitempty"`
	FuelType           string  `json:"fuelType,omitempty"`
}

// VehicleFilter narrows a vehicle listing. Zero values are omitted from the query.
type VehicleFilter struct {
	Status string
	Type   string
	Make   string
	Search string
	Page   int
	Limit  int
}

// Query encodes the filter as URL query parameters.
func (f VehicleFilter) Query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}

	set("status", f.Status)
	set("type", f.Type)
	set("make", f.Make)
	set("search", f.Search)
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// VehicleList is a page of vehicles.
type VehicleList struct {
	Vehicles []Vehicle `json:"vehicles"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}
