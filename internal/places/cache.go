package places

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/fleetroute/internal/shared"
)

const (
	geocodeKeyPrefix = "fleetroute:geocode:"
	// DefaultCacheTTL keeps provider answers for a day.
	DefaultCacheTTL = 24 * time.Hour
)

// CachedGeocoder is a read-through Redis cache in front of a [Geocoder].
//
// Cache failures are logged and bypassed; they never fail a lookup.
type CachedGeocoder struct {
	next   Geocoder
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedGeocoder wraps next. A ttl <= 0 uses [DefaultCacheTTL].
func NewCachedGeocoder(next Geocoder, client *redis.Client, ttl time.Duration, logger *log.Logger) *CachedGeocoder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &CachedGeocoder{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: shared.WithLogger(logger, "component", "geocode-cache"),
	}
}

// CacheKey normalizes an address into its cache key.
func CacheKey(address string) string {
	return geocodeKeyPrefix + strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// Geocode serves from cache when possible and stores non-empty provider answers.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) ([]Candidate, error) {
	key := CacheKey(address)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached []Candidate
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
			c.logger.Debug("cache hit", "key", key)
			return cached, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("cache read failed", "key", key, "err", err)
	}

	results, err := c.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		if b, err := json.Marshal(results); err == nil {
			if err := c.redis.Set(ctx, key, b, c.ttl).Err(); err != nil {
				c.logger.Warn("cache write failed", "key", key, "err", err)
			}
		}
	}

	return results, nil
}

// ReverseGeocode passes through when the wrapped geocoder supports it.
func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	rev, ok := c.next.(ReverseGeocoder)
	if !ok {
		return "", shared.ErrNotImplemented
	}
	return rev.ReverseGeocode(ctx, lat, lng)
}

// PlaceDetails passes through when the wrapped geocoder supports it.
func (c *CachedGeocoder) PlaceDetails(ctx context.Context, placeID string) (Candidate, error) {
	det, ok := c.next.(DetailsProvider)
	if !ok {
		return Candidate{}, shared.ErrNotImplemented
	}
	return det.PlaceDetails(ctx, placeID)
}
