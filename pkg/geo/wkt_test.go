package geo

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDecodePoint(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{"postgis text", "POINT(-46.6 -23.5)", -23.5, -46.6, false},
		{"spaced", "POINT (-20 -10)", -10, -20, false},
		{"ewkt", "SRID=4326;POINT(-20 -10)", -10, -20, false},
		{"not a point", "LINESTRING(0 0, 1 1)", 0, 0, true},
		{"garbage", "POINT(", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, err := DecodePoint(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lat != tt.lat || lon != tt.lon {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.lat, tt.lon, lat, lon)
			}
		})
	}
}

func TestDecodePoint_NotAPoint(t *testing.T) {
	_, _, err := DecodePoint("LINESTRING(0 0, 1 1)")
	if !errors.Is(err, ErrNotAPoint) {
		t.Errorf("expected ErrNotAPoint, got %v", err)
	}
}

func TestEncodeEWKT(t *testing.T) {
	s, err := EncodeEWKT(-10.0, -20.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lat, lon, err := DecodePoint(s)
	if err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	if lat != -10.0 || lon != -20.0 {
		t.Errorf("expected (-10, -20), got (%v, %v) from %q", lat, lon, s)
	}
	if s[:10] != "SRID=4326;" {
		t.Errorf("expected SRID prefix, got %q", s)
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
		want error
	}{
		{"ok", -23.5, -46.6, nil},
		{"poles", 90, 180, nil},
		{"lat high", 90.0001, 0, ErrLatitudeRange},
		{"lon low", 0, -180.5, ErrLongitudeRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateCoordinates(tt.lat, tt.lon); !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// Encoding then decoding returns the exact input coordinates.
func TestProperty_PointRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(lat, lon)) == (lat, lon)", prop.ForAll(
		func(lat, lon float64) bool {
			s, err := EncodeEWKT(lat, lon)
			if err != nil {
				return false
			}
			gotLat, gotLon, err := DecodePoint(s)
			if err != nil {
				return false
			}
			return gotLat == lat && gotLon == lon
		},
		gen.Float64Range(-90, 90),
		gen.Float64Range(-180, 180),
	))

	properties.TestingRun(t)
}
