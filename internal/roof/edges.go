// Package roof combines the area and pitch calculators into a full roof
// estimate and measures the linear edges of drawn roof facets.
package roof

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb/geo"

	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/units"
)

// EdgeType classifies one edge of a roof facet.
type EdgeType string

const (
	Ridge   EdgeType = "ridge"
	Valley  EdgeType = "valley"
	Rake    EdgeType = "rake"
	Eave    EdgeType = "eave"
	Hip     EdgeType = "hip"
	Unknown EdgeType = "unknown"
)

// EdgeTypes lists every edge type.
var EdgeTypes = []EdgeType{Ridge, Valley, Rake, Eave, Hip, Unknown}

// ParseEdgeType maps a name to an edge type. Empty and unrecognized names
// are Unknown; the error reports the latter.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case Ridge, Valley, Rake, Eave, Hip, Unknown:
		return t, nil
	case "":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unknown edge type %q", s)
	}
}

func (t *EdgeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEdgeType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Facet is one drawn roof plane. EdgeTypes[i] classifies the edge from
// Vertices[i] to the next vertex; missing entries are Unknown.
type Facet struct {
	Vertices  []coord.LatLng `json:"vertices"`
	EdgeTypes []EdgeType     `json:"edge_types,omitempty"`
	Pitch     string         `json:"pitch,omitempty"`
}

// edges returns the facet's closed edge list with an explicit closing
// vertex dropped.
func (f Facet) edges() [][2]coord.LatLng {
	v := f.Vertices
	if len(v) > 1 && v[0] == v[len(v)-1] {
		v = v[:len(v)-1]
	}
	if len(v) < 2 {
		return nil
	}
	out := make([][2]coord.LatLng, len(v))
	for i := range v {
		out[i] = [2]coord.LatLng{v[i], v[(i+1)%len(v)]}
	}
	return out
}

func (f Facet) edgeType(i int) EdgeType {
	if i < len(f.EdgeTypes) && f.EdgeTypes[i] != "" {
		return f.EdgeTypes[i]
	}
	return Unknown
}

// DistanceFeet returns the great-circle distance between two points in feet.
func DistanceFeet(a, b coord.LatLng) float64 {
	return units.Feet(geo.DistanceHaversine(a.Point(), b.Point()))
}

// Measurements holds summed edge lengths in feet per edge type.
type Measurements struct {
	Ridge   float64 `json:"ridge"`
	Valley  float64 `json:"valley"`
	Rake    float64 `json:"rake"`
	Eave    float64 `json:"eave"`
	Hip     float64 `json:"hip"`
	Unknown float64 `json:"unknown"`
	Total   float64 `json:"total"`
}

func (m *Measurements) add(t EdgeType, feet float64) {
	switch t {
	case Ridge:
		m.Ridge += feet
	case Valley:
		m.Valley += feet
	case Rake:
		m.Rake += feet
	case Eave:
		m.Eave += feet
	case Hip:
		m.Hip += feet
	default:
		m.Unknown += feet
	}
	m.Total += feet
}

// Of returns the summed length of one edge type.
func (m Measurements) Of(t EdgeType) float64 {
	switch t {
	case Ridge:
		return m.Ridge
	case Valley:
		return m.Valley
	case Rake:
		return m.Rake
	case Eave:
		return m.Eave
	case Hip:
		return m.Hip
	default:
		return m.Unknown
	}
}

// LinearMeasurements sums the edge lengths of all facets by edge type.
// Edges shared by two facets are counted once per facet.
func LinearMeasurements(facets []Facet) Measurements {
	var m Measurements
	for _, f := range facets {
		for i, e := range f.edges() {
			m.add(f.edgeType(i), DistanceFeet(e[0], e[1]))
		}
	}
	return m
}

// FacetDetail is the per-facet report line.
type FacetDetail struct {
	Index     int        `json:"index"`
	Vertices  int        `json:"vertices"`
	Perimeter float64    `json:"perimeter_ft"`
	Pitch     string     `json:"pitch"`
	EdgeTypes []EdgeType `json:"edge_types"`
}

// FacetDetails describes each facet: 1-based index, vertex count, perimeter
// in feet rounded to the nearest foot and its pitch label.
func FacetDetails(facets []Facet) []FacetDetail {
	out := make([]FacetDetail, 0, len(facets))
	for i, f := range facets {
		var perimeter float64
		for _, e := range f.edges() {
			perimeter += DistanceFeet(e[0], e[1])
		}
		label := f.Pitch
		if label == "" {
			label = "Unknown"
		}
		types := f.EdgeTypes
		if types == nil {
			types = []EdgeType{}
		}
		out = append(out, FacetDetail{
			Index:     i + 1,
			Vertices:  len(f.Vertices),
			Perimeter: math.Round(perimeter),
			Pitch:     label,
			EdgeTypes: types,
		})
	}
	return out
}
