package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/server"
)

// placesOptions wires the mapping provider, optionally behind the Redis cache.
// Without an API key every lookup is answered with REQUEST_DENIED.
func (r *Runner) placesOptions() (server.PlacesOptions, func(), error) {
	opts := server.PlacesOptions{
		MinQueryLength: r.config.Places.MinQueryLength,
		Logger:         r.logger,
	}
	cleanup := func() {}

	cfg := r.config.Places
	if cfg.APIKey == "" {
		r.logger.Warn("no maps api key configured, place lookups will be denied")
		return opts, cleanup, nil
	}

	google, err := places.NewGoogleGeocoder(places.GoogleOptions{
		APIKey:            cfg.APIKey,
		RequestsPerSecond: cfg.RateLimit,
		HTTPClient:        r.httpClient,
		Logger:            r.logger,
	})
	if err != nil {
		return opts, cleanup, err
	}

	var geocoder places.Geocoder = google
	if addr := r.config.Cache.Addr; addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: r.config.Cache.Password,
			DB:       r.config.Cache.DB,
		})
		cleanup = func() { client.Close() }
		geocoder = places.NewCachedGeocoder(google, client, r.config.Cache.TTL.Duration, r.logger)
		r.logger.Info("geocode cache enabled", "addr", addr)
	}

	opts.Searcher = places.NewVariantSearcher(geocoder, cfg.MaxResults, r.logger)
	opts.Details = google
	opts.Reverse = google
	return opts, cleanup, nil
}

// Serve runs the places proxy until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	opts, cleanup, err := r.placesOptions()
	if err != nil {
		return fmt.Errorf("failed to configure places: %w", err)
	}
	defer cleanup()

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	router := server.NewRouter(server.NewPlacesHandler(opts), r.logger)
	return server.New(addr, router, r.logger).Run(ctx)
}
