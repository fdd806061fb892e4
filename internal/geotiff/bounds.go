package geotiff

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/pspoerri/roofmeasure/internal/coord"
)

// Bounds is an axis-aligned WGS84 bounding box. It marshals to JSON as
// [[south, west], [north, east]], the layout map overlay widgets expect.
type Bounds struct {
	SouthWest coord.LatLng
	NorthEast coord.LatLng
}

// Bound returns the box as an orb.Bound (lng, lat order).
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest.Point(), Max: b.NorthEast.Point()}
}

// Center returns the midpoint of the box.
func (b Bounds) Center() coord.LatLng {
	return coord.FromPoint(b.Bound().Center())
}

// Contains reports whether ll lies inside the box.
func (b Bounds) Contains(ll coord.LatLng) bool {
	return b.Bound().Contains(ll.Point())
}

// Translate shifts both corners by the same offset.
func (b Bounds) Translate(dLat, dLng float64) Bounds {
	return Bounds{
		SouthWest: coord.LatLng{Lat: b.SouthWest.Lat + dLat, Lng: b.SouthWest.Lng + dLng},
		NorthEast: coord.LatLng{Lat: b.NorthEast.Lat + dLat, Lng: b.NorthEast.Lng + dLng},
	}
}

func (b Bounds) String() string {
	return fmt.Sprintf("[[%.7f, %.7f], [%.7f, %.7f]]",
		b.SouthWest.Lat, b.SouthWest.Lng, b.NorthEast.Lat, b.NorthEast.Lng)
}

func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([2][2]float64{
		{b.SouthWest.Lat, b.SouthWest.Lng},
		{b.NorthEast.Lat, b.NorthEast.Lng},
	})
}

func (b *Bounds) UnmarshalJSON(data []byte) error {
	var v [2][2]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}
	b.SouthWest = coord.LatLng{Lat: v[0][0], Lng: v[0][1]}
	b.NorthEast = coord.LatLng{Lat: v[1][0], Lng: v[1][1]}
	return nil
}

// cornerBounds reprojects all four raster corners to WGS84 and takes the
// independent min/max of each axis. Two diagonal corners are not enough
// once the grid is rotated relative to north.
func cornerBounds(t GeoTransform, width, height int, proj coord.Projection) Bounds {
	w, h := float64(width), float64(height)
	corners := [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}

	var bound orb.Bound
	for i, c := range corners {
		x, y := t.Apply(c[0], c[1])
		lon, lat := proj.ToWGS84(x, y)
		p := orb.Point{lon, lat}
		if i == 0 {
			bound = p.Bound()
			continue
		}
		bound = bound.Extend(p)
	}
	return Bounds{SouthWest: coord.FromPoint(bound.Min), NorthEast: coord.FromPoint(bound.Max)}
}

// recenter translates b so that its center coincides with ref and returns
// the applied (lat, lng) offset.
func recenter(b Bounds, ref coord.LatLng) (Bounds, coord.LatLng) {
	c := b.Center()
	off := coord.LatLng{Lat: ref.Lat - c.Lat, Lng: ref.Lng - c.Lng}
	return b.Translate(off.Lat, off.Lng), off
}
