package geo

import "math"

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two WGS-84 points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Bounds is an axis-aligned bounding box over WGS-84 points.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// BoundsOf computes the tightest box covering all given points.
// Returns a zero box when no points are given.
func BoundsOf(lats, lngs []float64) Bounds {
	if len(lats) == 0 || len(lats) != len(lngs) {
		return Bounds{}
	}
	b := Bounds{MinLat: lats[0], MaxLat: lats[0], MinLng: lngs[0], MaxLng: lngs[0]}
	for i := 1; i < len(lats); i++ {
		b = b.Extend(lats[i], lngs[i])
	}
	return b
}

// Extend grows the box to include the given point.
func (b Bounds) Extend(lat, lng float64) Bounds {
	if lat < b.MinLat {
		b.MinLat = lat
	}
	if lat > b.MaxLat {
		b.MaxLat = lat
	}
	if lng < b.MinLng {
		b.MinLng = lng
	}
	if lng > b.MaxLng {
		b.MaxLng = lng
	}
	return b
}

// Contains reports whether the point lies inside the box, borders included.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}
