package roof

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/pspoerri/roofmeasure/internal/area"
	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/pitch"
)

// side is the length in feet of a 0.0001° edge on the equator.
var side = orb.EarthRadius * 0.0001 * math.Pi / 180 * 3.28084

// square is a 0.0001° square on the equator, counter-clockwise from the
// south-west corner: south edge, east edge, north edge, west edge.
var square = []coord.LatLng{
	{Lat: 0, Lng: 0},
	{Lat: 0, Lng: 0.0001},
	{Lat: 0.0001, Lng: 0.0001},
	{Lat: 0.0001, Lng: 0},
}

func TestDistanceFeet(t *testing.T) {
	got := DistanceFeet(square[0], square[1])
	if math.Abs(got-side) > 1e-6 {
		t.Errorf("DistanceFeet = %v, want %v", got, side)
	}
	if d := DistanceFeet(square[0], square[0]); d != 0 {
		t.Errorf("DistanceFeet(same point) = %v, want 0", d)
	}
}

func TestLinearMeasurements(t *testing.T) {
	facets := []Facet{
		{Vertices: square, EdgeTypes: []EdgeType{Eave, Rake, Ridge, Rake}},
		// Closing vertex repeated and edge types missing.
		{Vertices: append(append([]coord.LatLng{}, square...), square[0]), EdgeTypes: []EdgeType{Valley}},
	}
	m := LinearMeasurements(facets)

	const tol = 1e-3
	tests := []struct {
		t    EdgeType
		want float64
	}{
		{Eave, side},
		{Rake, 2 * side},
		{Ridge, side},
		{Valley, side},
		{Hip, 0},
		{Unknown, 3 * side},
	}
	for _, tt := range tests {
		if got := m.Of(tt.t); math.Abs(got-tt.want) > tol {
			t.Errorf("%s = %v, want %v", tt.t, got, tt.want)
		}
	}
	if math.Abs(m.Total-8*side) > tol {
		t.Errorf("Total = %v, want %v", m.Total, 8*side)
	}
}

func TestLinearMeasurements_Empty(t *testing.T) {
	if m := LinearMeasurements(nil); m != (Measurements{}) {
		t.Errorf("LinearMeasurements(nil) = %+v, want zero", m)
	}
	one := []Facet{{Vertices: square[:1], EdgeTypes: []EdgeType{Ridge}}}
	if m := LinearMeasurements(one); m.Total != 0 {
		t.Errorf("single vertex facet Total = %v, want 0", m.Total)
	}
}

func TestFacetDetails(t *testing.T) {
	facets := []Facet{
		{Vertices: square, EdgeTypes: []EdgeType{Eave, Rake, Ridge, Rake}, Pitch: "6/12"},
		{Vertices: square[:3]},
	}
	got := FacetDetails(facets)
	if len(got) != 2 {
		t.Fatalf("FacetDetails returned %d entries, want 2", len(got))
	}

	if got[0].Index != 1 || got[0].Vertices != 4 || got[0].Pitch != "6/12" || len(got[0].EdgeTypes) != 4 {
		t.Errorf("facet 1 = %+v", got[0])
	}
	if want := math.Round(4 * side); got[0].Perimeter != want {
		t.Errorf("facet 1 perimeter = %v, want %v", got[0].Perimeter, want)
	}
	if got[1].Index != 2 || got[1].Pitch != "Unknown" || got[1].EdgeTypes == nil {
		t.Errorf("facet 2 = %+v", got[1])
	}
}

func TestParseEdgeType(t *testing.T) {
	tests := []struct {
		in      string
		want    EdgeType
		wantErr bool
	}{
		{"ridge", Ridge, false},
		{" Valley ", Valley, false},
		{"HIP", Hip, false},
		{"", Unknown, false},
		{"gable", Unknown, true},
	}
	for _, tt := range tests {
		got, err := ParseEdgeType(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseEdgeType(%q) = %q, %v, want %q (err %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}

	var f Facet
	if err := json.Unmarshal([]byte(`{"vertices":[{"lat":1,"lng":2}],"edge_types":["Eave","rake"]}`), &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if f.EdgeTypes[0] != Eave || f.EdgeTypes[1] != Rake {
		t.Errorf("EdgeTypes = %v", f.EdgeTypes)
	}
	if err := json.Unmarshal([]byte(`{"edge_types":["gable"]}`), &f); err == nil {
		t.Error("Unmarshal accepted an unknown edge type")
	}
}

func TestNewEstimate_ManualPitch(t *testing.T) {
	e := NewEstimate(Request{Outline: square, Pitch: pitch.Standard, WastePct: 10})

	wantFootprint := area.SquareFeet(square)
	if math.Abs(e.FootprintSqFt-wantFootprint) > 1e-9 {
		t.Errorf("FootprintSqFt = %v, want %v", e.FootprintSqFt, wantFootprint)
	}
	if e.PitchSource != pitch.SourceManual || e.Multiplier != 1.12 || e.PitchRatio != "" {
		t.Errorf("pitch = %s (%s) x%v ratio %q", e.Pitch, e.PitchSource, e.Multiplier, e.PitchRatio)
	}
	if want := wantFootprint * 1.12 * 1.1; math.Abs(e.AdjustedSqFt-want) > 1e-9 {
		t.Errorf("AdjustedSqFt = %v, want %v", e.AdjustedSqFt, want)
	}
	if len(e.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", e.Warnings)
	}
	if e.Linear != nil || e.Facets != nil {
		t.Error("linear measurements computed without facets")
	}
}

func TestNewEstimate_MeasuredPitchWins(t *testing.T) {
	deg := 33.69
	e := NewEstimate(Request{Outline: square, Pitch: pitch.Flat, MeasuredPitch: &deg, Method: area.MethodS2})
	if e.PitchSource != pitch.SourceMeasured {
		t.Errorf("PitchSource = %s, want measured", e.PitchSource)
	}
	if want := 1 / math.Cos(deg*math.Pi/180); math.Abs(e.Multiplier-want) > 1e-12 {
		t.Errorf("Multiplier = %v, want %v", e.Multiplier, want)
	}
	if e.PitchRatio != "8/12" {
		t.Errorf("PitchRatio = %q, want 8/12", e.PitchRatio)
	}
}

func TestNewEstimate_Warnings(t *testing.T) {
	steep := 89.99
	e := NewEstimate(Request{
		Outline:       square[:2],
		MeasuredPitch: &steep,
		WastePct:      35,
		Facets:        []Facet{{Vertices: square}},
	})

	for _, target := range []error{area.ErrDegeneratePolygon, pitch.ErrInvalidPitchAngle, ErrWasteOutOfRange} {
		found := false
		for _, w := range e.Warnings {
			if errors.Is(w, target) {
				found = true
			}
		}
		if !found {
			t.Errorf("Warnings = %v, missing %v", e.Warnings, target)
		}
	}
	if e.FootprintSqFt != 0 || e.AdjustedSqFt != 0 {
		t.Errorf("degenerate outline areas = %v / %v, want 0", e.FootprintSqFt, e.AdjustedSqFt)
	}
	if e.Multiplier != 1.4 || e.WastePct != 20 {
		t.Errorf("Multiplier = %v, WastePct = %d, want 1.4 and 20", e.Multiplier, e.WastePct)
	}
	if e.Linear == nil || len(e.Facets) != 1 {
		t.Errorf("facet measurements missing: %+v", e)
	}
}
