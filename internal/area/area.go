// Package area computes the ground footprint of a roof outline on the earth.
//
// Roof polygons are drawn in geographic coordinates. One degree of longitude
// is not a fixed linear distance, so the area is computed with a spherical
// excess formula rather than a planar cross product over raw degrees.
package area

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/units"
)

// ErrDegeneratePolygon is reported for outlines with fewer than 3 distinct
// vertices. Area functions return 0 for such input instead of failing.
var ErrDegeneratePolygon = errors.New("polygon has fewer than 3 vertices")

// Method selects the spherical area formula.
type Method string

const (
	// MethodOrb uses the Chamberlain–Duquette ring formula from orb/geo.
	MethodOrb Method = "orb"
	// MethodS2 integrates the ring as an s2 loop on the unit sphere.
	MethodS2 Method = "s2"
)

// ParseMethod validates a method name. The empty string selects MethodOrb.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodOrb:
		return MethodOrb, nil
	case MethodS2:
		return MethodS2, nil
	default:
		return "", fmt.Errorf("unknown area method %q (supported: orb, s2)", s)
	}
}

// Calculator computes polygon areas with a fixed method. The zero value uses
// MethodOrb. A Calculator holds no state and is safe for concurrent use.
type Calculator struct {
	Method Method
}

// SquareMeters returns the area enclosed by the vertices in square meters.
// Winding direction does not matter. Self-intersecting outlines are not
// rejected.
func (c Calculator) SquareMeters(vertices []coord.LatLng) float64 {
	ring := trimClosing(coord.Ring(vertices))
	if len(ring) < 3 {
		return 0
	}
	if c.Method == MethodS2 {
		return s2SquareMeters(ring)
	}
	return geo.Area(ring)
}

// SquareFeet returns the enclosed area in square feet.
func (c Calculator) SquareFeet(vertices []coord.LatLng) float64 {
	return units.SqFeet(c.SquareMeters(vertices))
}

// SquareFeet computes the area of a roof outline in square feet using the
// default method.
func SquareFeet(vertices []coord.LatLng) float64 {
	return Calculator{}.SquareFeet(vertices)
}

// SquareMeters computes the area of a roof outline in square meters using the
// default method.
func SquareMeters(vertices []coord.LatLng) float64 {
	return Calculator{}.SquareMeters(vertices)
}

// GeometrySquareMeters returns the area of an arbitrary orb geometry, such as
// a GeoJSON polygon with holes. Non-areal geometries have zero area.
func GeometrySquareMeters(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	return geo.Area(g)
}

// Check reports ErrDegeneratePolygon when the outline cannot enclose an area.
func Check(vertices []coord.LatLng) error {
	if len(trimClosing(coord.Ring(vertices))) < 3 {
		return fmt.Errorf("%d vertices: %w", len(vertices), ErrDegeneratePolygon)
	}
	return nil
}

// trimClosing drops an explicit closing vertex so that vertex counts refer to
// distinct corners.
func trimClosing(r orb.Ring) orb.Ring {
	if len(r) > 1 && r[0].Equal(r[len(r)-1]) {
		return r[:len(r)-1]
	}
	return r
}

// s2SquareMeters measures the ring as an s2 loop. s2 treats the region to
// the left of the edges as the interior, so clockwise rings are reversed
// first; measuring the complement would lose all precision for roof-sized
// areas.
func s2SquareMeters(ring orb.Ring) float64 {
	pts := make([]s2.Point, 0, len(ring))
	add := func(p orb.Point) {
		pt := s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon()))
		if n := len(pts); n > 0 && pts[n-1].ApproxEqual(pt) {
			return
		}
		pts = append(pts, pt)
	}

	if geo.SignedArea(ring) < 0 {
		for i := len(ring) - 1; i >= 0; i-- {
			add(ring[i])
		}
	} else {
		for _, p := range ring {
			add(p)
		}
	}
	if len(pts) < 3 {
		return 0
	}

	steradians := s2.LoopFromPoints(pts).Area()
	if steradians > 2*math.Pi {
		steradians = 4*math.Pi - steradians
	}
	return steradians * orb.EarthRadius * orb.EarthRadius
}
