package coord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the coordinate as an orb.Point (lng, lat order).
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// FromPoint converts an orb.Point (lng, lat order) to a LatLng.
func FromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// Valid reports whether the coordinate lies within the WGS84 degree ranges.
func (ll LatLng) Valid() bool {
	return ll.Lat >= -90 && ll.Lat <= 90 && ll.Lng >= -180 && ll.Lng <= 180
}

func (ll LatLng) String() string {
	return fmt.Sprintf("%.7f,%.7f", ll.Lat, ll.Lng)
}

// ParseLatLng parses a "lat,lng" pair.
func ParseLatLng(s string) (LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return LatLng{}, fmt.Errorf("coordinate %q: expected 'lat,lng'", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("coordinate %q: invalid latitude: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("coordinate %q: invalid longitude: %w", s, err)
	}
	ll := LatLng{Lat: lat, Lng: lng}
	if !ll.Valid() {
		return LatLng{}, fmt.Errorf("coordinate %q: out of range", s)
	}
	return ll, nil
}

// Ring converts an ordered vertex list into an orb.Ring. The ring is not
// explicitly closed; orb closes rings implicitly.
func Ring(vertices []LatLng) orb.Ring {
	r := make(orb.Ring, 0, len(vertices))
	for _, v := range vertices {
		r = append(r, v.Point())
	}
	return r
}
