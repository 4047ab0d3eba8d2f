package route

import (
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/shared/geo"
)

// LatLng is a resolved WGS-84 point.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Descriptor describes one route endpoint before resolution: free text, a
// coordinate in one of the legacy encodings, or both.
type Descriptor struct {
	AddressText string           `json:"addressText"`
	Coords      *CoordinateValue `json:"coords,omitempty"`
}

// Marker is a drawable map pin.
type Marker struct {
	Position LatLng `json:"position"`
	Label    string `json:"label"`
}

// Result is a drawable route. Polyline is nil on a degraded result, where
// only straight-line markers and bounds are available.
type Result struct {
	Polyline       []LatLng   `json:"polyline"`
	PickupMarker   Marker     `json:"pickupMarker"`
	DeliveryMarker Marker     `json:"deliveryMarker"`
	Bounds         geo.Bounds `json:"bounds"`
	Degraded       bool       `json:"degraded"`
	DistanceM      float64    `json:"distance_m,omitempty"`
	DurationS      float64    `json:"duration_s,omitempty"`
}

// Directions is a computed driving route as returned by the provider. Path
// points are provider-snapped; the first and last are the leg endpoints used
// for marker placement.
type Directions struct {
	Path      []LatLng
	DistanceM float64
	DurationS float64
}
