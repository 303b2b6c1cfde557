package places

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/desertthunder/fleetroute/internal/stops"
)

// DefaultDebounce is the quiet period before a search runs.
const DefaultDebounce = 300 * time.Millisecond

// ResolverOptions configures a [Resolver].
type ResolverOptions struct {
	Debounce       time.Duration
	MinQueryLength int
	// Details fills in coordinates for candidates without a location.
	Details DetailsProvider
	// OnResults receives every completed batch, including the empty batch of a too-short query.
	OnResults func(query string, results []Candidate, err error)
	Logger    *log.Logger
}

// Resolver debounces free-text search and turns chosen places and map points into stops.
type Resolver struct {
	searcher Searcher
	reverse  ReverseGeocoder
	stops    *stops.Collection
	opts     ResolverOptions
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	generation   uint64
	timer        *time.Timer
	cancelSearch context.CancelFunc
	query        string
	results      []Candidate
	closed       bool
}

// NewResolver creates a resolver that appends to collection.
func NewResolver(searcher Searcher, reverse ReverseGeocoder, collection *stops.Collection, opts ResolverOptions) *Resolver {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinQueryLength <= 0 {
		opts.MinQueryLength = DefaultMinQueryLength
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		searcher: searcher,
		reverse:  reverse,
		stops:    collection,
		opts:     opts,
		logger:   shared.WithLogger(logger, "component", "resolver"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetQuery restarts the debounce timer. Only the last query of a burst is searched.
func (r *Resolver) SetQuery(query string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.generation++
	gen := r.generation
	r.query = query

	if r.timer != nil {
		r.timer.Stop()
	}
	if r.cancelSearch != nil {
		r.cancelSearch()
		r.cancelSearch = nil
	}

	r.timer = time.AfterFunc(r.opts.Debounce, func() { r.run(gen, query) })
}

// Query returns the most recent query.
func (r *Resolver) Query() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.query
}

// Results returns a copy of the latest completed batch.
func (r *Resolver) Results() []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Candidate, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Resolver) run(gen uint64, query string) {
	r.mu.Lock()
	if r.closed || gen != r.generation {
		r.mu.Unlock()
		return
	}

	if utf8.RuneCountInString(strings.TrimSpace(query)) < r.opts.MinQueryLength {
		r.results = nil
		r.mu.Unlock()
		r.deliver(query, nil, nil)
		return
	}

	ctx, cancel := context.WithCancel(r.ctx)
	r.cancelSearch = cancel
	r.mu.Unlock()

	results, err := r.searcher.Search(ctx, query)
	cancel()

	r.mu.Lock()
	if r.closed || gen != r.generation {
		r.mu.Unlock()
		r.logger.Debug("dropping superseded results", "query", query)
		return
	}
	r.cancelSearch = nil
	if err == nil {
		r.results = results
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("search failed", "query", query, "err", err)
	}
	r.deliver(query, results, err)
}

func (r *Resolver) deliver(query string, results []Candidate, err error) {
	if r.opts.OnResults != nil {
		r.opts.OnResults(query, results, err)
	}
}

// AddCandidate appends a chosen search result as a stop.
// Candidates without coordinates are resolved through the details provider first.
func (r *Resolver) AddCandidate(ctx context.Context, c Candidate) (models.Stop, error) {
	if !c.HasLocation {
		if r.opts.Details == nil {
			return models.Stop{}, fmt.Errorf("%w: %s has no location", shared.ErrPlaceNotFound, c.Description)
		}
		located, err := r.opts.Details.PlaceDetails(ctx, c.PlaceID)
		if err != nil {
			return models.Stop{}, fmt.Errorf("failed to resolve place %s: %w", c.PlaceID, err)
		}
		if c.Description == "" {
			c.Description = located.Description
		}
		c.Latitude, c.Longitude, c.HasLocation = located.Latitude, located.Longitude, true
	}

	return r.stops.Add(models.Stop{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Address:   c.Description,
	})
}

// AddFromPoint reverse geocodes a point and appends it. Nothing is added when the lookup fails.
func (r *Resolver) AddFromPoint(ctx context.Context, lat, lng float64) (models.Stop, error) {
	if r.reverse == nil {
		return models.Stop{}, fmt.Errorf("%w: reverse geocoding unavailable", shared.ErrNotImplemented)
	}

	address, err := r.reverse.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return models.Stop{}, fmt.Errorf("failed to resolve point: %w", err)
	}

	return r.stops.Add(models.Stop{Latitude: lat, Longitude: lng, Address: address})
}

// MoveStop repositions a stop, then refreshes its address.
//
// The new position is kept even when the reverse lookup fails; the address is then left as it was.
func (r *Resolver) MoveStop(ctx context.Context, id string, lat, lng float64) (models.Stop, error) {
	moved, err := r.stops.Update(id, stops.Patch{Latitude: &lat, Longitude: &lng})
	if err != nil {
		return models.Stop{}, err
	}

	if r.reverse == nil {
		return moved, nil
	}

	address, err := r.reverse.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		r.logger.Warn("reverse lookup failed, keeping previous address", "stop", id, "err", err)
		return moved, nil
	}

	return r.stops.Update(id, stops.Patch{Address: &address})
}

// Close stops any pending timer and in-flight search. Later calls to SetQuery are ignored.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.cancelSearch != nil {
		r.cancelSearch()
	}
	r.cancel()
}
