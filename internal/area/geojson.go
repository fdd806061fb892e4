package area

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/pspoerri/roofmeasure/internal/coord"
)

// ParseGeoJSON decodes a GeoJSON geometry, Feature or FeatureCollection.
// A collection's features are combined into one orb.Collection.
func ParseGeoJSON(data []byte) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("geojson: %w", err)
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("geojson: %w", err)
		}
		c := make(orb.Collection, 0, len(fc.Features))
		for _, f := range fc.Features {
			if f.Geometry != nil {
				c = append(c, f.Geometry)
			}
		}
		return c, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("geojson: %w", err)
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("geojson: feature has no geometry")
		}
		return f.Geometry, nil
	case "":
		return nil, fmt.Errorf("geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("geojson: %w", err)
		}
		if g.Coordinates == nil {
			return nil, fmt.Errorf("geojson: %s has no coordinates", probe.Type)
		}
		return g.Geometry(), nil
	}
}

// Outline returns the exterior ring of the first polygon found in g as a
// vertex list without the closing vertex.
func Outline(g orb.Geometry) ([]coord.LatLng, error) {
	var ring orb.Ring
	switch g := g.(type) {
	case orb.Ring:
		ring = g
	case orb.Polygon:
		if len(g) > 0 {
			ring = g[0]
		}
	case orb.MultiPolygon:
		if len(g) > 0 && len(g[0]) > 0 {
			ring = g[0][0]
		}
	case orb.Collection:
		for _, c := range g {
			if vs, err := Outline(c); err == nil {
				return vs, nil
			}
		}
	}
	if len(ring) == 0 {
		return nil, fmt.Errorf("geojson: no polygon in %T", g)
	}

	ring = trimClosing(ring)
	vertices := make([]coord.LatLng, len(ring))
	for i, p := range ring {
		vertices[i] = coord.FromPoint(p)
	}
	return vertices, nil
}
