package route

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ORSClient talks to an OpenRouteService-compatible geocoding/directions API.
// It retries transient failures with exponential backoff and keeps every call
// on a bounded timeout.
type ORSClient struct {
	baseURL string
	apiKey  string
	profile string
	client  *http.Client

	mu     sync.Mutex
	loaded bool
}

func NewORSClient(baseURL, apiKey string) (*ORSClient, error) {
	if apiKey == "" {
		return nil, errors.New("ors api key is empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	return &ORSClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		profile: "driving-car",
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Ready probes the provider once. Failure is not cached: a later call probes
// again, which is the caller's manual retry.
func (o *ORSClient) Ready(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loaded {
		return nil
	}

	req, err := o.newRequest(ctx, http.MethodGet, o.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderLoad, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderLoad, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ErrProviderLoad, resp.StatusCode)
	}

	o.loaded = true
	return nil
}

type orsGeocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

func (o *ORSClient) Geocode(ctx context.Context, text string) (LatLng, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return LatLng{}, ErrGeocodeFailure
	}

	endpoint := o.baseURL + "/geocode/search"
	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", text)
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return LatLng{}, fmt.Errorf("%w: %v", ErrGeocodeFailure, err)
	}
	defer resp.Body.Close()

	var decoded orsGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return LatLng{}, fmt.Errorf("%w: decode response: %v", ErrGeocodeFailure, err)
	}
	if len(decoded.Features) == 0 || len(decoded.Features[0].Geometry.Coordinates) != 2 {
		return LatLng{}, fmt.Errorf("%w: no result for %q", ErrGeocodeFailure, text)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	return LatLng{Lat: coords[1], Lng: coords[0]}, nil
}

type orsDirectionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

func (o *ORSClient) Route(ctx context.Context, origin, dest LatLng) (Directions, error) {
	endpoint := o.baseURL + "/v2/directions/" + o.profile + "/geojson"
	// ORS wants [lng, lat] pairs.
	payload, err := json.Marshal(map[string]any{
		"coordinates": [][]float64{{origin.Lng, origin.Lat}, {dest.Lng, dest.Lat}},
	})
	if err != nil {
		return Directions{}, fmt.Errorf("%w: %v", ErrRouteCompute, err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return Directions{}, fmt.Errorf("%w: %v", ErrRouteCompute, err)
	}
	defer resp.Body.Close()

	var decoded orsDirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Directions{}, fmt.Errorf("%w: decode response: %v", ErrRouteCompute, err)
	}
	if len(decoded.Features) == 0 || len(decoded.Features[0].Geometry.Coordinates) == 0 {
		return Directions{}, fmt.Errorf("%w: empty route", ErrRouteCompute)
	}

	feature := decoded.Features[0]
	path := make([]LatLng, 0, len(feature.Geometry.Coordinates))
	for _, pair := range feature.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		path = append(path, LatLng{Lat: pair[1], Lng: pair[0]})
	}
	if len(path) == 0 {
		return Directions{}, fmt.Errorf("%w: empty route", ErrRouteCompute)
	}

	return Directions{
		Path:      path,
		DistanceM: feature.Properties.Summary.Distance,
		DurationS: feature.Properties.Summary.Duration,
	}, nil
}

func (o *ORSClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// doWithRetry retries 429/5xx responses and network errors with exponential
// backoff, respecting context cancellation.
func (o *ORSClient) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	const maxAttempts = 3
	backoff := 200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, err
		}

		resp, err := o.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}
		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (o *ORSClient) do(req *http.Request) (*http.Response, error) {
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}
