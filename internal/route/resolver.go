package route

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/shared/geo"
)

// Provider is the external mapping service: a one-time init that may fail,
// geocoding and driving directions. A successful Route carries a non-empty
// Path; the resolver degrades to markers if an implementation breaks this.
type Provider interface {
	Ready(ctx context.Context) error
	Geocode(ctx context.Context, text string) (LatLng, error)
	Route(ctx context.Context, origin, dest LatLng) (Directions, error)
}

// Resolver turns two endpoint descriptors into a drawable route. It is
// stateless per call; concurrent Resolve calls are independent.
type Resolver struct {
	provider Provider
	cache    *GeocodeCache
	timeout  time.Duration
}

// NewResolver wires a resolver over a provider. cache may be nil.
func NewResolver(provider Provider, cache *GeocodeCache) *Resolver {
	return &Resolver{provider: provider, cache: cache, timeout: 20 * time.Second}
}

// Resolve normalizes or geocodes both endpoints, asks the provider for a
// driving route and falls back to a markers-only degraded result when route
// computation fails. Geocode and provider-load failures fail the whole call;
// nothing is attempted with a half-resolved pair.
func (r *Resolver) Resolve(ctx context.Context, pickup, delivery Descriptor) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.provider.Ready(ctx); err != nil {
		if errors.Is(err, ErrProviderLoad) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrProviderLoad, err)
	}

	origin, err := r.resolveEndpoint(ctx, pickup)
	if err != nil {
		return Result{}, err
	}
	dest, err := r.resolveEndpoint(ctx, delivery)
	if err != nil {
		return Result{}, err
	}

	dirs, err := r.provider.Route(ctx, origin, dest)
	if err != nil {
		log.Printf("route computation failed, degrading to markers: %v", err)
		return degradedResult(origin, dest), nil
	}
	if len(dirs.Path) == 0 {
		// A provider reporting success with no path is treated the same as
		// a compute failure.
		log.Printf("route provider returned an empty path, degrading to markers")
		return degradedResult(origin, dest), nil
	}

	// Markers go on the route's own leg endpoints; the provider may have
	// snapped them to the road network.
	start := dirs.Path[0]
	end := dirs.Path[len(dirs.Path)-1]

	return Result{
		Polyline:       dirs.Path,
		PickupMarker:   Marker{Position: start, Label: "pickup"},
		DeliveryMarker: Marker{Position: end, Label: "delivery"},
		Bounds:         geo.BoundsOf([]float64{start.Lat, end.Lat}, []float64{start.Lng, end.Lng}),
		Degraded:       false,
		DistanceM:      dirs.DistanceM,
		DurationS:      dirs.DurationS,
	}, nil
}

// degradedResult is the markers-only fallback: markers straight at the
// resolved points, no polyline.
func degradedResult(origin, dest LatLng) Result {
	return Result{
		PickupMarker:   Marker{Position: origin, Label: "pickup"},
		DeliveryMarker: Marker{Position: dest, Label: "delivery"},
		Bounds:         geo.BoundsOf([]float64{origin.Lat, dest.Lat}, []float64{origin.Lng, dest.Lng}),
		Degraded:       true,
	}
}

// resolveEndpoint yields a concrete point: concrete coordinates skip
// geocoding entirely, otherwise the address text is geocoded through the
// cache.
func (r *Resolver) resolveEndpoint(ctx context.Context, d Descriptor) (LatLng, error) {
	if p := d.Coords.Normalize(); p != nil {
		return *p, nil
	}
	if d.AddressText == "" {
		return LatLng{}, fmt.Errorf("%w: empty descriptor", ErrGeocodeFailure)
	}

	if r.cache != nil {
		hit, err := r.cache.Get(ctx, d.AddressText)
		if err != nil {
			log.Printf("geocode cache read failed: %v", err)
		} else if hit != nil {
			return *hit, nil
		}
	}

	point, err := r.provider.Geocode(ctx, d.AddressText)
	if err != nil {
		if errors.Is(err, ErrGeocodeFailure) {
			return LatLng{}, err
		}
		return LatLng{}, fmt.Errorf("%w: %v", ErrGeocodeFailure, err)
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, d.AddressText, point); err != nil {
			log.Printf("geocode cache write failed: %v", err)
		}
	}
	return point, nil
}
