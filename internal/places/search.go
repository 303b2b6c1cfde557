package places

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/fleetroute/internal/shared"
)

// VariantSearcher fans a query out into [Variants] and merges the results.
//
// A failing variant is logged and skipped. When nothing usable comes back the result is an empty
// slice with a nil error, even if every variant failed.
type VariantSearcher struct {
	geocoder   Geocoder
	maxResults int
	logger     *log.Logger
}

// NewVariantSearcher creates a searcher capped at maxResults (<= 0 uses [DefaultMaxResults]).
func NewVariantSearcher(g Geocoder, maxResults int, logger *log.Logger) *VariantSearcher {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &VariantSearcher{geocoder: g, maxResults: maxResults, logger: shared.WithLogger(logger, "component", "places")}
}

// Search issues every variant concurrently and merges them in variant order.
func (s *VariantSearcher) Search(ctx context.Context, query string) ([]Candidate, error) {
	variants := Variants(query)
	batches := make([][]Candidate, len(variants))

	var wg sync.WaitGroup
	for i, v := range variants {
		wg.Add(1)
		go func() {
			defer wg.Done()

			results, err := s.geocoder.Geocode(ctx, v)
			if err != nil {
				s.logger.Warn(shared.ErrPartialLookup.Error(), "variant", v, "err", err)
				return
			}
			batches[i] = results
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []Candidate
	for _, b := range batches {
		for _, c := range b {
			if c.Description == "" {
				continue
			}
			merged = append(merged, c)
		}
	}

	return Dedupe(merged, s.maxResults), nil
}
