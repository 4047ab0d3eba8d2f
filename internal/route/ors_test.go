package route

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestORS(t *testing.T, handler http.Handler) (*ORSClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewORSClient(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestORSRequiresAPIKey(t *testing.T) {
	if _, err := NewORSClient("", ""); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestORSReadyProbesOnceOnSuccess(t *testing.T) {
	var probes int32
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		atomic.AddInt32(&probes, 1)
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		if err := c.Ready(context.Background()); err != nil {
			t.Fatalf("ready: %v", err)
		}
	}
	if n := atomic.LoadInt32(&probes); n != 1 {
		t.Fatalf("probe count = %d, want 1", n)
	}
}

func TestORSReadyFailureNotCached(t *testing.T) {
	var probes int32
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&probes, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.Ready(context.Background()); !errors.Is(err, ErrProviderLoad) {
		t.Fatalf("expected provider load failure, got %v", err)
	}
	// A later call probes again and can succeed.
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("second ready: %v", err)
	}
	if n := atomic.LoadInt32(&probes); n != 2 {
		t.Fatalf("probe count = %d, want 2", n)
	}
}

func TestORSGeocode(t *testing.T) {
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geocode/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if got := r.URL.Query().Get("text"); got != "Kadikoy Istanbul" {
			t.Errorf("text query = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{{
				"geometry":   map[string]any{"coordinates": []float64{29.03, 40.99}},
				"properties": map[string]any{"label": "Kadikoy, Istanbul"},
			}},
		})
	}))

	p, err := c.Geocode(context.Background(), "  Kadikoy   Istanbul ")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	// ORS returns [lon, lat]; the client swaps them.
	if p.Lat != 40.99 || p.Lng != 29.03 {
		t.Fatalf("point = %+v", p)
	}
}

func TestORSGeocodeNoResult(t *testing.T) {
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
	}))

	if _, err := c.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrGeocodeFailure) {
		t.Fatalf("expected geocode failure, got %v", err)
	}
}

func TestORSGeocodeEmptyText(t *testing.T) {
	c, err := NewORSClient("http://127.0.0.1:1", "test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Geocode(context.Background(), "   "); !errors.Is(err, ErrGeocodeFailure) {
		t.Fatalf("expected geocode failure, got %v", err)
	}
}

func TestORSRoute(t *testing.T) {
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/directions/driving-car/geojson" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Coordinates [][]float64 `json:"coordinates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Coordinates) != 2 || body.Coordinates[0][0] != 29.0 || body.Coordinates[0][1] != 40.0 {
			t.Errorf("coordinates = %+v, want [lng lat] order", body.Coordinates)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{{
				"geometry": map[string]any{
					"coordinates": [][]float64{{29.0, 40.0}, {29.5, 40.5}, {30.0, 41.0}},
				},
				"properties": map[string]any{
					"summary": map[string]any{"distance": 12345.6, "duration": 1800.0},
				},
			}},
		})
	}))

	dirs, err := c.Route(context.Background(), LatLng{Lat: 40.0, Lng: 29.0}, LatLng{Lat: 41.0, Lng: 30.0})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(dirs.Path) != 3 {
		t.Fatalf("path length = %d", len(dirs.Path))
	}
	if dirs.Path[0] != (LatLng{Lat: 40.0, Lng: 29.0}) || dirs.Path[2] != (LatLng{Lat: 41.0, Lng: 30.0}) {
		t.Fatalf("path endpoints = %+v", dirs.Path)
	}
	if dirs.DistanceM != 12345.6 || dirs.DurationS != 1800.0 {
		t.Fatalf("summary = %v m, %v s", dirs.DistanceM, dirs.DurationS)
	}
}

func TestORSRouteEmpty(t *testing.T) {
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
	}))

	if _, err := c.Route(context.Background(), LatLng{}, LatLng{Lat: 1, Lng: 1}); !errors.Is(err, ErrRouteCompute) {
		t.Fatalf("expected route compute failure, got %v", err)
	}
}

func TestORSRetriesTransientStatus(t *testing.T) {
	var calls int32
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{{
				"geometry":   map[string]any{"coordinates": []float64{29.03, 40.99}},
				"properties": map[string]any{"label": "ok"},
			}},
		})
	}))

	p, err := c.Geocode(context.Background(), "Kadikoy")
	if err != nil {
		t.Fatalf("geocode after retries: %v", err)
	}
	if p.Lat != 40.99 {
		t.Fatalf("point = %+v", p)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("call count = %d, want 3", n)
	}
}

func TestORSNoRetryOnClientError(t *testing.T) {
	var calls int32
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))

	if _, err := c.Geocode(context.Background(), "Kadikoy"); !errors.Is(err, ErrGeocodeFailure) {
		t.Fatalf("expected geocode failure, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("call count = %d, want 1 (no retry on 403)", n)
	}
}

func TestORSRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	c, _ := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	if _, err := c.Geocode(context.Background(), "Kadikoy"); !errors.Is(err, ErrGeocodeFailure) {
		t.Fatalf("expected geocode failure, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("call count = %d, want 3", n)
	}
}
