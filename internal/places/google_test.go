package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/fleetroute/internal/shared"
)

func newMapsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/maps/api/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		switch {
		case q.Get("latlng") != "":
			w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"1 Reverse Rd, Town","geometry":{"location":{"lat":1,"lng":2}},"place_id":"rev"}]}`))
		case q.Get("address") == "nowhere":
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		case q.Get("address") == "denied":
			w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`))
		default:
			w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"742 Evergreen Terrace, Springfield","geometry":{"location":{"lat":44.05,"lng":-123.08}},"place_id":"p1"}]}`))
		}
	})

	mux.HandleFunc("/maps/api/place/details/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","result":{"formatted_address":"Details Ave, City","geometry":{"location":{"lat":3,"lng":4}},"place_id":"` + r.URL.Query().Get("placeid") + `"}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleGeocoder(t *testing.T) {
	ctx := context.Background()

	t.Run("Requires API Key", func(t *testing.T) {
		if _, err := NewGoogleGeocoder(GoogleOptions{}); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	srv := newMapsServer(t)
	g, err := NewGoogleGeocoder(GoogleOptions{APIKey: "test-key", BaseURL: srv.URL, RequestsPerSecond: 100})
	if err != nil {
		t.Fatalf("failed to create geocoder: %v", err)
	}

	t.Run("Geocode", func(t *testing.T) {
		got, err := g.Geocode(ctx, "742 evergreen")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 result, got %d", len(got))
		}
		c := got[0]
		if c.MainText != "742 Evergreen Terrace" || c.SecondaryText != "Springfield" || c.Latitude != 44.05 || !c.HasLocation {
			t.Errorf("unexpected candidate %+v", c)
		}
	})

	t.Run("Geocode Zero Results", func(t *testing.T) {
		got, err := g.Geocode(ctx, "nowhere")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no results, got %d", len(got))
		}
	})

	t.Run("Geocode Provider Error", func(t *testing.T) {
		if _, err := g.Geocode(ctx, "denied"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
	})

	t.Run("ReverseGeocode", func(t *testing.T) {
		addr, err := g.ReverseGeocode(ctx, 1, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != "1 Reverse Rd, Town" {
			t.Errorf("unexpected address %q", addr)
		}
	})

	t.Run("PlaceDetails", func(t *testing.T) {
		c, err := g.PlaceDetails(ctx, "ChIJ123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Description != "Details Ave, City" || c.Latitude != 3 || c.Longitude != 4 {
			t.Errorf("unexpected candidate %+v", c)
		}
	})
}

func TestCachedGeocoder(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
		t.Helper()
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return mr, client
	}

	t.Run("Read Through", func(t *testing.T) {
		mr, client := setup(t)
		g := &fakeGeocoder{answers: map[string][]Candidate{"Main  St": addresses(2, "Main")}}
		cached := NewCachedGeocoder(g, client, time.Hour, nil)

		first, err := cached.Geocode(ctx, "Main  St")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := cached.Geocode(ctx, "main st")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if g.callCount() != 1 {
			t.Errorf("expected one provider call, got %d", g.callCount())
		}
		if len(first) != 2 || len(second) != 2 || second[1].Description != first[1].Description {
			t.Errorf("cached results differ: %+v vs %+v", first, second)
		}
		if !mr.Exists(CacheKey("main st")) {
			t.Error("expected cache entry")
		}
		if ttl := mr.TTL(CacheKey("main st")); ttl != time.Hour {
			t.Errorf("expected 1h ttl, got %v", ttl)
		}
	})

	t.Run("Empty Results Not Cached", func(t *testing.T) {
		mr, client := setup(t)
		cached := NewCachedGeocoder(&fakeGeocoder{}, client, 0, nil)

		if _, err := cached.Geocode(ctx, "void"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mr.Exists(CacheKey("void")) {
			t.Error("empty results should not be cached")
		}
	})

	t.Run("Redis Down Bypasses Cache", func(t *testing.T) {
		mr, client := setup(t)
		mr.Close()

		g := &fakeGeocoder{answers: map[string][]Candidate{"elm": addresses(1, "Elm")}}
		got, err := NewCachedGeocoder(g, client, 0, nil).Geocode(ctx, "elm")
		if err != nil {
			t.Fatalf("cache failure should not fail lookup: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected provider result, got %d", len(got))
		}
	})

	t.Run("Corrupt Entry Refetched", func(t *testing.T) {
		mr, client := setup(t)
		mr.Set(CacheKey("elm"), "not json")

		g := &fakeGeocoder{answers: map[string][]Candidate{"elm": addresses(1, "Elm")}}
		got, err := NewCachedGeocoder(g, client, 0, nil).Geocode(ctx, "elm")
		if err != nil || len(got) != 1 || g.callCount() != 1 {
			t.Errorf("expected provider refetch, got %v %v calls=%d", got, err, g.callCount())
		}
	})

	t.Run("Provider Error Propagates", func(t *testing.T) {
		_, client := setup(t)
		g := &fakeGeocoder{fail: map[string]bool{"boom": true}}
		if _, err := NewCachedGeocoder(g, client, 0, nil).Geocode(ctx, "boom"); err == nil {
			t.Error("expected provider error")
		}
	})

	t.Run("Pass Through", func(t *testing.T) {
		_, client := setup(t)
		cached := NewCachedGeocoder(&fakeGeocoder{}, client, 0, nil)
		if _, err := cached.ReverseGeocode(ctx, 1, 1); !errors.Is(err, shared.ErrNotImplemented) {
			t.Errorf("expected ErrNotImplemented, got %v", err)
		}
	})
}
