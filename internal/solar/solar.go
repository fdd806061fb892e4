// Package solar turns a building-insights response of the Google Solar API
// into roofing measurements: the area-weighted predominant pitch, whole
// roof areas in square feet and per-segment summaries.
package solar

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/pitch"
	"github.com/pspoerri/roofmeasure/internal/units"
)

// LatLng is the API's coordinate shape.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LatLng converts to the shared coordinate type.
func (ll LatLng) LatLng() coord.LatLng {
	return coord.LatLng{Lat: ll.Latitude, Lng: ll.Longitude}
}

// Date is a calendar date without time zone.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// SizeAndSunshineStats is the size of a roof or roof segment.
type SizeAndSunshineStats struct {
	AreaMeters2       float64   `json:"areaMeters2"`
	GroundAreaMeters2 float64   `json:"groundAreaMeters2"`
	SunshineQuantiles []float64 `json:"sunshineQuantiles,omitempty"`
}

// RoofSegmentStats describes one planar roof segment.
type RoofSegmentStats struct {
	PitchDegrees              float64              `json:"pitchDegrees"`
	AzimuthDegrees            float64              `json:"azimuthDegrees"`
	Stats                     SizeAndSunshineStats `json:"stats"`
	Center                    LatLng               `json:"center"`
	PlaneHeightAtCenterMeters float64              `json:"planeHeightAtCenterMeters,omitempty"`
}

// SolarPotential is the part of the response that describes the roof.
type SolarPotential struct {
	MaxArrayPanelsCount int                   `json:"maxArrayPanelsCount"`
	WholeRoofStats      *SizeAndSunshineStats `json:"wholeRoofStats,omitempty"`
	RoofSegmentStats    []RoofSegmentStats    `json:"roofSegmentStats"`
}

// BuildingInsights is a buildingInsights:findClosest response.
type BuildingInsights struct {
	Name           string          `json:"name,omitempty"`
	Center         *LatLng         `json:"center,omitempty"`
	ImageryDate    *Date           `json:"imageryDate,omitempty"`
	ImageryQuality string          `json:"imageryQuality,omitempty"`
	SolarPotential *SolarPotential `json:"solarPotential,omitempty"`
}

// Parse decodes a building-insights JSON document.
func Parse(data []byte) (*BuildingInsights, error) {
	var b BuildingInsights
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("building insights: %w", err)
	}
	return &b, nil
}

// WholeRoof holds whole-roof areas in square feet.
type WholeRoof struct {
	AreaSqFt       float64 `json:"area_sq_ft"`
	GroundAreaSqFt float64 `json:"ground_area_sq_ft"`
}

// Segment summarizes one roof segment.
type Segment struct {
	ID           int          `json:"id"`
	PitchDegrees float64      `json:"pitch_degrees"`
	AreaSqFt     float64      `json:"area_sq_ft"`
	Azimuth      float64      `json:"azimuth_degrees"`
	Center       coord.LatLng `json:"center"`
}

// Summary is the roofing view of a building-insights response.
type Summary struct {
	FacetCount              int       `json:"facet_count"`
	PredominantPitchDegrees float64   `json:"predominant_pitch_degrees"`
	PredominantPitchRatio   string    `json:"predominant_pitch_ratio"`
	TotalAreaSqFt           float64   `json:"total_area_sq_ft"`
	WholeRoof               WholeRoof `json:"whole_roof"`
	MaxSolarPanels          int       `json:"max_solar_panels"`
	ImageryDate             string    `json:"imagery_date,omitempty"`
	Segments                []Segment `json:"segments"`
}

// Process summarizes b. It returns nil when the response carries no solar
// potential, for example when no building was found.
func Process(b *BuildingInsights) *Summary {
	if b == nil || b.SolarPotential == nil {
		return nil
	}
	sp := b.SolarPotential
	segs := sp.RoofSegmentStats

	// Predominant pitch is the area-weighted mean over all segments.
	var totalArea, weighted float64
	for _, s := range segs {
		totalArea += s.Stats.AreaMeters2
		weighted += s.PitchDegrees * s.Stats.AreaMeters2
	}
	predominant := 0.0
	if totalArea > 0 {
		predominant = weighted / totalArea
	}

	var whole WholeRoof
	if sp.WholeRoofStats != nil {
		whole.AreaSqFt = math.Round(units.SqFeet(sp.WholeRoofStats.AreaMeters2))
		whole.GroundAreaSqFt = math.Round(units.SqFeet(sp.WholeRoofStats.GroundAreaMeters2))
	}

	s := &Summary{
		FacetCount:              len(segs),
		PredominantPitchDegrees: roundTenth(predominant),
		PredominantPitchRatio:   pitch.RatioFromDegrees(predominant),
		TotalAreaSqFt:           whole.AreaSqFt,
		WholeRoof:               whole,
		MaxSolarPanels:          sp.MaxArrayPanelsCount,
		Segments:                make([]Segment, len(segs)),
	}
	if b.ImageryDate != nil {
		s.ImageryDate = b.ImageryDate.String()
	}
	for i, seg := range segs {
		s.Segments[i] = Segment{
			ID:           i + 1,
			PitchDegrees: roundTenth(seg.PitchDegrees),
			AreaSqFt:     math.Round(units.SqFeet(seg.Stats.AreaMeters2)),
			Azimuth:      math.Round(seg.AzimuthDegrees),
			Center:       seg.Center.LatLng(),
		}
	}
	return s
}

// MeasuredPitch returns the predominant pitch for the hybrid estimate, or
// nil when the response has no segment area to weight by.
func (s *Summary) MeasuredPitch() *float64 {
	if s == nil || s.FacetCount == 0 {
		return nil
	}
	p := s.PredominantPitchDegrees
	return &p
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
