package places

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/stops"
	tu "github.com/desertthunder/fleetroute/internal/testing"
)

// fakeGeocoder answers from a table keyed by the exact query and records every call.
type fakeGeocoder struct {
	mu      sync.Mutex
	answers map[string][]Candidate
	fail    map[string]bool
	calls   []string
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) ([]Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	if f.fail[address] {
		return nil, errors.New("provider exploded")
	}
	return f.answers[address], nil
}

func (f *fakeGeocoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeReverse struct {
	address string
	err     error
}

func (f fakeReverse) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return f.address, f.err
}

func addresses(n int, prefix string) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = NewCandidate("", fmt.Sprintf("%s %d, Springfield", prefix, i), float64(i), float64(i))
	}
	return out
}

func TestHelpers(t *testing.T) {
	t.Run("Variants", func(t *testing.T) {
		got := Variants(" main ")
		want := []string{"main", "main city", "main street", "main address"}
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("SplitAddress", func(t *testing.T) {
		tc := []struct {
			in, main, secondary string
		}{
			{"1600 Amphitheatre Pkwy, Mountain View, CA", "1600 Amphitheatre Pkwy", "Mountain View, CA"},
			{"Springfield", "Springfield", ""},
			{", Nowhere", ", Nowhere", "Nowhere"},
		}
		for _, tt := range tc {
			main, secondary := SplitAddress(tt.in)
			if main != tt.main || secondary != tt.secondary {
				t.Errorf("SplitAddress(%q) = (%q, %q), want (%q, %q)", tt.in, main, secondary, tt.main, tt.secondary)
			}
		}
	})

	t.Run("Dedupe", func(t *testing.T) {
		in := []Candidate{{Description: "a"}, {Description: "b"}, {Description: "a"}, {Description: "c"}}
		got := Dedupe(in, 2)
		if len(got) != 2 || got[0].Description != "a" || got[1].Description != "b" {
			t.Errorf("unexpected dedupe result %+v", got)
		}
	})

	t.Run("Prediction Round Trip", func(t *testing.T) {
		c := NewCandidate("p1", "10 Downing St, London", 51.5, -0.12)
		back := FromPrediction(c.ToPrediction())
		if back != c {
			t.Errorf("got %+v, want %+v", back, c)
		}

		noGeo := FromPrediction(Prediction{PlaceID: "p2", Description: "Somewhere, Else"})
		if noGeo.HasLocation || noGeo.MainText != "Somewhere" {
			t.Errorf("unexpected candidate %+v", noGeo)
		}
	})
}

func TestVariantSearcher(t *testing.T) {
	ctx := context.Background()

	t.Run("Merges Dedupes And Caps", func(t *testing.T) {
		g := &fakeGeocoder{answers: map[string][]Candidate{
			"main":         addresses(5, "Main"),
			"main city":    addresses(5, "Main"),
			"main street":  addresses(3, "Main St"),
			"main address": addresses(4, "Main Ave"),
		}}

		got, err := NewVariantSearcher(g, 0, nil).Search(ctx, "main")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(got) != 8 {
			t.Fatalf("expected 8 results, got %d", len(got))
		}
		seen := map[string]bool{}
		for _, c := range got {
			if seen[c.Description] {
				t.Errorf("duplicate address %q", c.Description)
			}
			seen[c.Description] = true
		}
		if got[0].Description != "Main 0, Springfield" || got[5].Description != "Main St 0, Springfield" {
			t.Errorf("results should keep variant order, got %q and %q", got[0].Description, got[5].Description)
		}
		if g.callCount() != 4 {
			t.Errorf("expected 4 variant lookups, got %d", g.callCount())
		}
	})

	t.Run("Failing Variant Is Absorbed", func(t *testing.T) {
		g := &fakeGeocoder{
			answers: map[string][]Candidate{"elm street": addresses(1, "Elm")},
			fail:    map[string]bool{"elm": true, "elm city": true},
		}

		got, err := NewVariantSearcher(g, 8, nil).Search(ctx, "elm")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected 1 result, got %d", len(got))
		}
	})

	t.Run("All Variants Failing Yields Zero Results", func(t *testing.T) {
		g := &fakeGeocoder{fail: map[string]bool{"x y z": true, "x y z city": true, "x y z street": true, "x y z address": true}}

		got, err := NewVariantSearcher(g, 8, nil).Search(ctx, "x y z")
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no results, got %d", len(got))
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewVariantSearcher(&fakeGeocoder{}, 8, nil).Search(cctx, "main")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// countingSearcher records queries and returns a single candidate per query.
type countingSearcher struct {
	queries tu.Recorder[string]
	delay   time.Duration
}

func (c *countingSearcher) Search(ctx context.Context, q string) ([]Candidate, error) {
	c.queries.Add(q)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []Candidate{NewCandidate("", q+", Town", 1, 1)}, nil
}

type batch struct {
	query   string
	results []Candidate
	err     error
}

func newTestResolver(t *testing.T, s Searcher, rev ReverseGeocoder, got *tu.Recorder[batch]) (*Resolver, *stops.Collection) {
	t.Helper()
	c, err := stops.New()
	if err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}
	r := NewResolver(s, rev, c, ResolverOptions{
		Debounce: 20 * time.Millisecond,
		OnResults: func(q string, res []Candidate, err error) {
			if got != nil {
				got.Add(batch{q, res, err})
			}
		},
	})
	t.Cleanup(r.Close)
	return r, c
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("Short Query Issues No Lookup", func(t *testing.T) {
		s := &countingSearcher{}
		var got tu.Recorder[batch]
		r, _ := newTestResolver(t, s, nil, &got)

		r.SetQuery("ab")
		tu.Eventually(t, time.Second, func() bool { return got.Len() == 1 }, "empty batch delivered")

		if s.queries.Len() != 0 {
			t.Errorf("expected no lookup, got %v", s.queries.Items())
		}
		if len(got.Items()[0].results) != 0 || len(r.Results()) != 0 {
			t.Error("expected results cleared")
		}
	})

	t.Run("Burst Yields Exactly One Batch", func(t *testing.T) {
		s := &countingSearcher{}
		var got tu.Recorder[batch]
		r, _ := newTestResolver(t, s, nil, &got)

		for _, q := range []string{"m", "ma", "mai", "main"} {
			r.SetQuery(q)
			time.Sleep(2 * time.Millisecond)
		}

		tu.Eventually(t, time.Second, func() bool { return got.Len() >= 1 }, "batch delivered")
		time.Sleep(60 * time.Millisecond)

		if s.queries.Len() != 1 || s.queries.Items()[0] != "main" {
			t.Errorf("expected exactly one lookup for main, got %v", s.queries.Items())
		}
		if got.Len() != 1 {
			t.Errorf("expected exactly one delivered batch, got %d", got.Len())
		}
		if res := r.Results(); len(res) != 1 || res[0].Description != "main, Town" {
			t.Errorf("unexpected results %+v", res)
		}
	})

	t.Run("Three Character Query Searches Once", func(t *testing.T) {
		s := &countingSearcher{}
		r, _ := newTestResolver(t, s, nil, nil)

		r.SetQuery("abc")
		tu.Eventually(t, time.Second, func() bool { return s.queries.Len() == 1 }, "lookup issued")
		time.Sleep(50 * time.Millisecond)
		if s.queries.Len() != 1 {
			t.Errorf("expected one lookup, got %d", s.queries.Len())
		}
	})

	t.Run("Superseded In-Flight Results Are Dropped", func(t *testing.T) {
		s := &countingSearcher{delay: 80 * time.Millisecond}
		var got tu.Recorder[batch]
		r, _ := newTestResolver(t, s, nil, &got)

		r.SetQuery("first")
		tu.Eventually(t, time.Second, func() bool { return s.queries.Len() == 1 }, "first lookup started")
		r.SetQuery("second")

		tu.Eventually(t, time.Second, func() bool { return got.Len() >= 1 }, "second batch delivered")
		time.Sleep(100 * time.Millisecond)

		items := got.Items()
		if len(items) != 1 || items[0].query != "second" {
			t.Errorf("expected only the second batch, got %+v", items)
		}
	})

	t.Run("Close Stops Pending Timer", func(t *testing.T) {
		s := &countingSearcher{}
		r, _ := newTestResolver(t, s, nil, nil)

		r.SetQuery("main")
		r.Close()
		time.Sleep(50 * time.Millisecond)

		if s.queries.Len() != 0 {
			t.Error("no lookup should run after Close")
		}
	})

	t.Run("AddFromPoint", func(t *testing.T) {
		r, c := newTestResolver(t, &countingSearcher{}, fakeReverse{address: "1 Infinite Loop, Cupertino"}, nil)

		s, err := r.AddFromPoint(ctx, 37.33, -122.03)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Address != "1 Infinite Loop, Cupertino" || s.Label != models.LabelStart {
			t.Errorf("unexpected stop %+v", s)
		}
		if c.Len() != 1 {
			t.Errorf("expected 1 stop, got %d", c.Len())
		}
	})

	t.Run("AddFromPoint Failure Adds Nothing", func(t *testing.T) {
		r, c := newTestResolver(t, &countingSearcher{}, fakeReverse{err: errors.New("no results")}, nil)

		if _, err := r.AddFromPoint(ctx, 1, 1); err == nil {
			t.Error("expected error")
		}
		if c.Len() != 0 {
			t.Errorf("expected no stops, got %d", c.Len())
		}
	})

	t.Run("MoveStop Keeps Position On Lookup Failure", func(t *testing.T) {
		r, c := newTestResolver(t, &countingSearcher{}, fakeReverse{err: errors.New("quota")}, nil)
		added, err := c.Add(models.Stop{ID: "s1", Latitude: 1, Longitude: 1, Address: "Old Address"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		moved, err := r.MoveStop(ctx, added.ID, 2, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if moved.Latitude != 2 || moved.Longitude != 3 || moved.Address != "Old Address" {
			t.Errorf("unexpected stop %+v", moved)
		}
	})

	t.Run("MoveStop Updates Address", func(t *testing.T) {
		r, c := newTestResolver(t, &countingSearcher{}, fakeReverse{address: "New Address"}, nil)
		if _, err := c.Add(models.Stop{ID: "s1", Address: "Old"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		moved, err := r.MoveStop(ctx, "s1", 5, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if moved.Address != "New Address" {
			t.Errorf("expected address refreshed, got %q", moved.Address)
		}
	})

	t.Run("AddCandidate", func(t *testing.T) {
		t.Run("With Location", func(t *testing.T) {
			r, c := newTestResolver(t, &countingSearcher{}, nil, nil)
			s, err := r.AddCandidate(ctx, NewCandidate("geocode_0_1", "Pier 39, San Francisco", 37.8, -122.4))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Address != "Pier 39, San Francisco" || s.Latitude != 37.8 {
				t.Errorf("unexpected stop %+v", s)
			}
			if c.Len() != 1 {
				t.Error("expected stop added")
			}
		})

		t.Run("Without Location Or Details", func(t *testing.T) {
			r, _ := newTestResolver(t, &countingSearcher{}, nil, nil)
			if _, err := r.AddCandidate(ctx, Candidate{PlaceID: "p", Description: "x"}); err == nil {
				t.Error("expected error")
			}
		})

		t.Run("Resolved Through Details", func(t *testing.T) {
			c, _ := stops.New()
			var calls atomic.Int32
			r := NewResolver(&countingSearcher{}, nil, c, ResolverOptions{Details: detailsFunc(func(_ context.Context, id string) (Candidate, error) {
				calls.Add(1)
				return NewCandidate(id, "Resolved, Place", 4, 5), nil
			})})
			defer r.Close()

			s, err := r.AddCandidate(ctx, Candidate{PlaceID: "ChIJ", Description: "Typed"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if calls.Load() != 1 || s.Latitude != 4 || s.Address != "Typed" {
				t.Errorf("unexpected stop %+v", s)
			}
		})
	})
}

type detailsFunc func(ctx context.Context, id string) (Candidate, error)

func (f detailsFunc) PlaceDetails(ctx context.Context, id string) (Candidate, error) { return f(ctx, id) }
