package route

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoordinateValue holds a coordinate in whichever encoding the caller sent:
// a "lat,lng" string, a {lat,lng} object or a {latitude,longitude} object.
// The raw bytes are kept so normalization stays a pure decision.
type CoordinateValue struct {
	raw json.RawMessage
}

func (v *CoordinateValue) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}

func (v CoordinateValue) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// CoordsFromString builds a CoordinateValue from a delimited "lat,lng" string.
func CoordsFromString(s string) *CoordinateValue {
	data, _ := json.Marshal(s)
	return &CoordinateValue{raw: data}
}

// CoordsFromLatLng builds a CoordinateValue from a concrete point.
func CoordsFromLatLng(p LatLng) *CoordinateValue {
	data, _ := json.Marshal(p)
	return &CoordinateValue{raw: data}
}

// Normalize reduces any supported encoding to a canonical point. It returns
// nil for anything unparseable and never panics: non-numeric halves, wrong
// arity and non-finite numbers all come back nil.
//
// Object form: lat/lng keys win over latitude/longitude when both are
// present. First match wins; the order carries no further meaning.
func (v *CoordinateValue) Normalize() *LatLng {
	if v == nil || len(v.raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(v.raw, &s); err == nil {
		return parseDelimited(s)
	}

	var obj struct {
		Lat       *float64 `json:"lat"`
		Lng       *float64 `json:"lng"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(v.raw, &obj); err != nil {
		return nil
	}

	if obj.Lat != nil && obj.Lng != nil {
		return finitePoint(*obj.Lat, *obj.Lng)
	}
	if obj.Latitude != nil && obj.Longitude != nil {
		return finitePoint(*obj.Latitude, *obj.Longitude)
	}
	return nil
}

func parseDelimited(s string) *LatLng {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return finitePoint(lat, lng)
}

func finitePoint(lat, lng float64) *LatLng {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return nil
	}
	return &LatLng{Lat: lat, Lng: lng}
}
