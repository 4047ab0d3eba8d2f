package geoloc

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/shared/geo"
)

// SimProvider interpolates fixes along a fixed set of waypoints. It stands in
// for device hardware on development hosts and in the e2e tests.
type SimProvider struct {
	mu         sync.Mutex
	waypoints  [][2]float64
	permission PermissionState
	denyGrant  bool
	progress   float64
	handles    int64
	watches    map[WatchHandle]chan struct{}
	observers  []func(PermissionState)
}

// NewSimProvider starts in the unrequested state and grants on request.
// Waypoints are (lat, lng) pairs; at least one is required.
func NewSimProvider(waypoints [][2]float64) *SimProvider {
	return &SimProvider{
		waypoints:  waypoints,
		permission: PermissionUnrequested,
		watches:    map[WatchHandle]chan struct{}{},
	}
}

// DenyRequests makes RequestPermission refuse, for exercising the denied path.
func (p *SimProvider) DenyRequests() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denyGrant = true
}

// Revoke flips a granted permission to denied and notifies observers.
func (p *SimProvider) Revoke() {
	p.mu.Lock()
	p.permission = PermissionDenied
	observers := append([]func(PermissionState){}, p.observers...)
	p.mu.Unlock()

	for _, fn := range observers {
		fn(PermissionDenied)
	}
}

func (p *SimProvider) ObservePermission(fn func(PermissionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

func (p *SimProvider) CheckPermission(_ context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.waypoints) == 0 {
		return PermissionUnavailable, nil
	}
	return p.permission, nil
}

func (p *SimProvider) RequestPermission(_ context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.waypoints) == 0 {
		return PermissionUnavailable, nil
	}
	if p.permission == PermissionUnrequested {
		if p.denyGrant {
			p.permission = PermissionDenied
		} else {
			p.permission = PermissionGranted
		}
	}
	return p.permission, nil
}

func (p *SimProvider) Current(ctx context.Context, _ Options) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.waypoints) == 0 {
		return Fix{}, ErrUnavailable
	}
	if p.permission != PermissionGranted {
		return Fix{}, ErrPermissionDenied
	}
	return p.stepLocked(), nil
}

func (p *SimProvider) Watch(opts WatchOptions, onFix func(Fix), onErr func(error)) (WatchHandle, error) {
	p.mu.Lock()
	if len(p.waypoints) == 0 {
		p.mu.Unlock()
		return 0, ErrUnavailable
	}
	if p.permission != PermissionGranted {
		p.mu.Unlock()
		return 0, ErrPermissionDenied
	}

	p.handles++
	handle := WatchHandle(p.handles)
	done := make(chan struct{})
	p.watches[handle] = done
	p.mu.Unlock()

	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.mu.Lock()
				if p.permission != PermissionGranted {
					p.mu.Unlock()
					onErr(ErrPermissionDenied)
					return
				}
				fix := p.stepLocked()
				p.mu.Unlock()
				onFix(fix)
			}
		}
	}()

	return handle, nil
}

func (p *SimProvider) Unwatch(handle WatchHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if done, ok := p.watches[handle]; ok {
		close(done)
		delete(p.watches, handle)
	}
}

// stepLocked advances along the waypoint path and emits the next fix.
func (p *SimProvider) stepLocked() Fix {
	n := len(p.waypoints)
	if n == 1 {
		wp := p.waypoints[0]
		return Fix{Latitude: wp[0], Longitude: wp[1], Accuracy: 5, Timestamp: time.Now().UnixMilli()}
	}

	pos := p.progress * float64(n-1)
	i := int(math.Min(pos, float64(n-2)))
	frac := pos - float64(i)

	a, b := p.waypoints[i], p.waypoints[i+1]
	lat := a[0] + (b[0]-a[0])*frac
	lng := a[1] + (b[1]-a[1])*frac

	heading := math.Mod(math.Atan2(b[1]-a[1], b[0]-a[0])*180/math.Pi+360, 360)
	speed := geo.HaversineKm(a[0], a[1], b[0], b[1]) * 1000 / 60 // one leg per simulated minute

	p.progress += 0.02
	if p.progress > 1 {
		p.progress = 0
	}

	return Fix{
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  8,
		Speed:     speed,
		Heading:   heading,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ParseWaypoints parses "lat,lng;lat,lng;..." as configured in the env.
func ParseWaypoints(s string) ([][2]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var out [][2]float64
	for _, part := range strings.Split(s, ";") {
		halves := strings.Split(part, ",")
		if len(halves) != 2 {
			return nil, fmt.Errorf("waypoint %q: want lat,lng", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(halves[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint %q: %w", part, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(halves[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint %q: %w", part, err)
		}
		out = append(out, [2]float64{lat, lng})
	}
	return out, nil
}
