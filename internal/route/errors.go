package route

import "errors"

var (
	// ErrGeocodeFailure means an address-only endpoint could not be resolved.
	// No route is attempted with a half-resolved pair.
	ErrGeocodeFailure = errors.New("geocoding failed")
	// ErrRouteCompute means the provider could not produce a driving route.
	// Resolve recovers from it internally with a degraded result; callers
	// never see it.
	ErrRouteCompute = errors.New("route computation failed")
	// ErrProviderLoad means the mapping provider could not be initialized at
	// all. Callers should offer a manual retry instead of auto-retrying.
	ErrProviderLoad = errors.New("map provider failed to load")
)
