package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// Location is a WGS84 position.
type Location struct {
	Lon float64
	Lat float64
}

// ParsePoint reads a WKT point, "POINT(lon lat)". Case and surrounding
// whitespace are ignored.
func ParsePoint(wkt string) (Location, error) {
	s := strings.TrimSpace(wkt)
	if len(s) < len("POINT()") || !strings.EqualFold(s[:5], "POINT") {
		return Location{}, fmt.Errorf("not a WKT point: %q", wkt)
	}
	s = strings.TrimSpace(s[5:])
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return Location{}, fmt.Errorf("not a WKT point: %q", wkt)
	}
	fields := strings.Fields(s[1 : len(s)-1])
	if len(fields) != 2 {
		return Location{}, fmt.Errorf("WKT point needs 2 coordinates, got %d", len(fields))
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad longitude %q: %w", fields[0], err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad latitude %q: %w", fields[1], err)
	}
	loc := Location{Lon: lon, Lat: lat}
	if !loc.valid() {
		return Location{}, fmt.Errorf("coordinates out of range: %q", wkt)
	}
	return loc, nil
}

func (l Location) valid() bool {
	if math.IsNaN(l.Lon) || math.IsNaN(l.Lat) {
		return false
	}
	return l.Lon >= -180 && l.Lon <= 180 && l.Lat >= -90 && l.Lat <= 90
}

// String formats the location back to WKT, longitude first.
func (l Location) String() string {
	return fmt.Sprintf("POINT(%g %g)", l.Lon, l.Lat)
}

func (l Location) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(l.Lat, l.Lon)
}
