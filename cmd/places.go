package main

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlacesSearch prints the places matching a query.
func (r *Runner) PlacesSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if minLen := r.config.Places.MinQueryLength; utf8.RuneCountInString(query) < minLen {
		return fmt.Errorf("%w: query must be at least %d characters", shared.ErrInvalidArgument, minLen)
	}
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	results, err := r.places.Search(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	if len(results) == 0 {
		return r.writePlain("No places found for %q\n", query)
	}

	for i, c := range results {
		r.writePlain("%d. %s\n", i+1, c.MainText)
		if c.SecondaryText != "" {
			r.writePlain("   %s\n", c.SecondaryText)
		}
		if c.HasLocation {
			r.writePlain("   %s\n", places.FormatCoordinates(c.Latitude, c.Longitude))
		}
	}
	return nil
}

// PlacesReverse prints the address at a coordinate.
func (r *Runner) PlacesReverse(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	lat, lng := cmd.Float("lat"), cmd.Float("lng")
	result, err := r.places.Reverse(ctx, lat, lng)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	return r.writePlain("%s\n", result.FormattedAddress)
}
