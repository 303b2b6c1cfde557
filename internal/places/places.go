// package places turns free text and map coordinates into stops.
//
// Lookups go through small interfaces so the same search logic runs in the CLI (against the
// first-party proxy) and in the proxy itself (against the mapping provider).
package places

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultMaxResults caps a merged search.
	DefaultMaxResults = 8
	// DefaultMinQueryLength is the shortest query that triggers a lookup.
	DefaultMinQueryLength = 3
)

// Candidate is one place a query resolved to.
type Candidate struct {
	PlaceID       string  `json:"placeId"`
	Description   string  `json:"description"`
	MainText      string  `json:"mainText"`
	SecondaryText string  `json:"secondaryText"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	// HasLocation is false when the coordinates must be fetched with a details lookup.
	HasLocation bool `json:"hasLocation"`
}

// NewCandidate builds a candidate from a formatted address and its coordinates.
func NewCandidate(placeID, formatted string, lat, lng float64) Candidate {
	main, secondary := SplitAddress(formatted)
	return Candidate{
		PlaceID:       placeID,
		Description:   formatted,
		MainText:      main,
		SecondaryText: secondary,
		Latitude:      lat,
		Longitude:     lng,
		HasLocation:   true,
	}
}

// Searcher resolves free text into candidates.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Geocoder performs a single forward lookup.
type Geocoder interface {
	Geocode(ctx context.Context, address string) ([]Candidate, error)
}

// ReverseGeocoder turns coordinates into a formatted address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// DetailsProvider resolves a provider place id into a located candidate.
type DetailsProvider interface {
	PlaceDetails(ctx context.Context, placeID string) (Candidate, error)
}

// SearcherFunc adapts a function to [Searcher].
type SearcherFunc func(ctx context.Context, query string) ([]Candidate, error)

func (f SearcherFunc) Search(ctx context.Context, query string) ([]Candidate, error) {
	return f(ctx, query)
}

// Variants widens a query with the suffixes the provider matches best on.
func Variants(query string) []string {
	q := strings.TrimSpace(query)
	return []string{
		q,
		q + " city",
		q + " street",
		q + " address",
	}
}

// SplitAddress splits a formatted address at its first comma.
func SplitAddress(formatted string) (main, secondary string) {
	head, tail, found := strings.Cut(formatted, ",")
	main = strings.TrimSpace(head)
	if main == "" {
		main = formatted
	}
	if found {
		secondary = strings.TrimSpace(tail)
	}
	return main, secondary
}

// Dedupe keeps the first candidate per formatted address, preserving order, up to max entries.
func Dedupe(candidates []Candidate, max int) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, min(len(candidates), max))

	for _, c := range candidates {
		if len(out) >= max {
			break
		}
		if _, ok := seen[c.Description]; ok {
			continue
		}
		seen[c.Description] = struct{}{}
		out = append(out, c)
	}
	return out
}

// FormatCoordinates is the fallback label for an unresolved point.
func FormatCoordinates(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}
