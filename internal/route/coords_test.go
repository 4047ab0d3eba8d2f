package route

import (
	"encoding/json"
	"testing"
)

func coordsFromJSON(t *testing.T, raw string) *CoordinateValue {
	t.Helper()
	var v CoordinateValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return &v
}

func TestNormalizeEncodingsAgree(t *testing.T) {
	// All three encodings of the same point normalize identically.
	encodings := map[string]string{
		"string":    `"41.0,29.0"`,
		"lat_lng":   `{"lat":41.0,"lng":29.0}`,
		"long_keys": `{"latitude":41.0,"longitude":29.0}`,
	}

	for name, raw := range encodings {
		p := coordsFromJSON(t, raw).Normalize()
		if p == nil {
			t.Fatalf("%s: expected point", name)
		}
		if p.Lat != 41.0 || p.Lng != 29.0 {
			t.Fatalf("%s: got %+v", name, p)
		}
	}
}

func TestNormalizeStringWhitespace(t *testing.T) {
	p := coordsFromJSON(t, `" 41.0 , 29.0 "`).Normalize()
	if p == nil || p.Lat != 41.0 || p.Lng != 29.0 {
		t.Fatalf("expected trimmed parse, got %+v", p)
	}
}

func TestNormalizeShortKeysWin(t *testing.T) {
	p := coordsFromJSON(t, `{"lat":1.0,"lng":2.0,"latitude":9.0,"longitude":9.0}`).Normalize()
	if p == nil || p.Lat != 1.0 || p.Lng != 2.0 {
		t.Fatalf("lat/lng keys must win, got %+v", p)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	cases := map[string]string{
		"non_numeric":    `"abc,def"`,
		"wrong_arity":    `"41.0"`,
		"three_parts":    `"1,2,3"`,
		"half_object":    `{"lat":41.0}`,
		"mixed_pair":     `{"lat":41.0,"longitude":29.0}`,
		"empty_object":   `{}`,
		"array":          `[41.0,29.0]`,
		"number":         `41`,
		"infinite":       `{"lat":41.0,"lng":1e999}`,
		"empty_string":   `""`,
		"only_delimiter": `","`,
	}

	for name, raw := range cases {
		if p := coordsFromJSON(t, raw).Normalize(); p != nil {
			t.Fatalf("%s: expected nil, got %+v", name, p)
		}
	}
}

func TestNormalizeNilReceiver(t *testing.T) {
	var v *CoordinateValue
	if v.Normalize() != nil {
		t.Fatalf("expected nil for nil value")
	}
	if (&CoordinateValue{}).Normalize() != nil {
		t.Fatalf("expected nil for empty value")
	}
}

func TestCoordsConstructors(t *testing.T) {
	if p := CoordsFromString("40.5,30.5").Normalize(); p == nil || p.Lat != 40.5 {
		t.Fatalf("unexpected point: %+v", p)
	}
	if p := CoordsFromLatLng(LatLng{Lat: 1, Lng: 2}).Normalize(); p == nil || p.Lng != 2 {
		t.Fatalf("unexpected point: %+v", p)
	}
}

func TestCoordinateValueRoundTrip(t *testing.T) {
	var d Descriptor
	if err := json.Unmarshal([]byte(`{"addressText":"Kadikoy","coords":"41.0,29.0"}`), &d); err != nil {
		t.Fatalf("unmarshal descriptor: %v", err)
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	var again Descriptor
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if p := again.Coords.Normalize(); p == nil || p.Lat != 41.0 {
		t.Fatalf("round trip lost coords: %+v", p)
	}
}
