package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/auth"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/geoloc"
)

// Report is one outbound position sample, shaped for the portal backend.
type Report struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Heading   float64 `json:"heading,omitempty"`
	Timestamp int64   `json:"timestamp"`
	TaskID    string  `json:"taskId,omitempty"`
	Platform  string  `json:"platform,omitempty"`
	Address   string  `json:"address,omitempty"`
	PlaceID   string  `json:"placeId,omitempty"`
}

func buildReport(fix geoloc.Fix, taskID, platform string) Report {
	return Report{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
		Speed:     fix.Speed,
		Heading:   fix.Heading,
		Timestamp: fix.Timestamp,
		TaskID:    taskID,
		Platform:  platform,
		Address:   fix.Address,
		PlaceID:   fix.PlaceID,
	}
}

// Reporter transmits a report to wherever the portal wants it.
type Reporter interface {
	Send(ctx context.Context, report Report) error
}

// HTTPReporter POSTs reports to the portal's position endpoint with a bearer
// credential. 401/403 surface as ErrAuthExpired; everything else that goes
// wrong is ErrTransientSend.
type HTTPReporter struct {
	endpoint string
	tokens   auth.TokenSource
	client   *http.Client
}

func NewHTTPReporter(endpoint string, tokens auth.TokenSource) *HTTPReporter {
	return &HTTPReporter{
		endpoint: endpoint,
		tokens:   tokens,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPReporter) Send(ctx context.Context, report Report) error {
	var token string
	if r.tokens != nil {
		var err error
		token, err = r.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%w: read credential: %v", ErrTransientSend, err)
		}
		// A credential already past its exp claim will only bounce; skip the wire.
		if token != "" && auth.Expired(token, time.Now()) {
			return ErrAuthExpired
		}
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("%w: encode report: %v", ErrTransientSend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransientSend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientSend, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthExpired
	default:
		return fmt.Errorf("%w: status %d", ErrTransientSend, resp.StatusCode)
	}
}
