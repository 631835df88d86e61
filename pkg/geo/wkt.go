// Package geo encodes user locations as WKT points in WGS-84 (SRID 4326).
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// SRID is the spatial reference of every stored point.
const SRID = 4326

var (
	ErrNotAPoint      = errors.New("geometry is not a point")
	ErrEmptyPoint     = errors.New("point is empty")
	ErrLatitudeRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
)

// ValidateCoordinates checks that lat/lon are finite WGS-84 degrees.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ErrLatitudeRange
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return ErrLongitudeRange
	}
	return nil
}

// EncodePoint returns the WKT of a point. Axis order is longitude, latitude.
func EncodePoint(lat, lon float64) (string, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lon, lat})
	s, err := wkt.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode point: %w", err)
	}
	return s, nil
}

// EncodeEWKT returns the point prefixed with its SRID, the form accepted by
// ST_GeogFromText.
func EncodeEWKT(lat, lon float64) (string, error) {
	s, err := EncodePoint(lat, lon)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SRID=%d;%s", SRID, s), nil
}

// DecodePoint parses WKT or EWKT and returns latitude and longitude.
func DecodePoint(text string) (lat, lon float64, err error) {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, ';'); i >= 0 && strings.HasPrefix(strings.ToUpper(text), "SRID=") {
		text = text[i+1:]
	}

	g, err := wkt.Unmarshal(text)
	if err != nil {
		return 0, 0, fmt.Errorf("decode point %q: %w", text, err)
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, ErrNotAPoint
	}
	if p.Empty() {
		return 0, 0, ErrEmptyPoint
	}
	return p.Y(), p.X(), nil
}
