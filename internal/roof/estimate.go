package roof

import (
	"errors"
	"fmt"

	"github.com/pspoerri/roofmeasure/internal/area"
	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/pitch"
	"github.com/pspoerri/roofmeasure/internal/units"
)

// ErrWasteOutOfRange is reported when the requested waste allowance was
// clamped to [pitch.MinWaste, pitch.MaxWaste].
var ErrWasteOutOfRange = errors.New("waste percentage out of range")

// Request is the input of the hybrid estimate.
type Request struct {
	Outline []coord.LatLng
	// Pitch is the manually chosen category.
	Pitch pitch.Category
	// MeasuredPitch, when set, overrides Pitch with a measured angle in
	// degrees, for example the predominant pitch from solar data.
	MeasuredPitch *float64
	WastePct      int
	Method        area.Method
	Facets        []Facet
}

// Estimate is the hybrid roof estimate.
type Estimate struct {
	FootprintSqM  float64       `json:"footprint_sq_m"`
	FootprintSqFt float64       `json:"footprint_sq_ft"`
	Pitch         string        `json:"pitch"`
	PitchSource   pitch.Source  `json:"pitch_source"`
	PitchRatio    string        `json:"pitch_ratio,omitempty"`
	Multiplier    float64       `json:"multiplier"`
	WastePct      int           `json:"waste_pct"`
	AdjustedSqFt  float64       `json:"adjusted_sq_ft"`
	Linear        *Measurements `json:"linear,omitempty"`
	Facets        []FacetDetail `json:"facets,omitempty"`
	// Warnings lists the recovered conditions: a degenerate outline, an
	// invalid pitch angle or a clamped waste allowance.
	Warnings []error `json:"-"`
}

// NewEstimate computes footprint area, pitch multiplier and waste for r.
// It never fails; recovered conditions are listed in Estimate.Warnings.
func NewEstimate(r Request) *Estimate {
	calc := area.Calculator{Method: r.Method}
	e := &Estimate{}

	if err := area.Check(r.Outline); err != nil {
		e.Warnings = append(e.Warnings, err)
	}
	e.FootprintSqM = calc.SquareMeters(r.Outline)
	e.FootprintSqFt = units.SqFeet(e.FootprintSqM)

	setting := pitch.Resolve(r.Pitch, r.MeasuredPitch)
	m, err := setting.Multiplier()
	if err != nil {
		e.Warnings = append(e.Warnings, err)
	}
	e.Pitch = setting.String()
	e.PitchSource = setting.Source()
	e.Multiplier = m
	if setting.Source() == pitch.SourceMeasured {
		e.PitchRatio = pitch.RatioFromDegrees(setting.Degrees())
	}

	e.WastePct = pitch.ClampWaste(r.WastePct)
	if e.WastePct != r.WastePct {
		e.Warnings = append(e.Warnings, fmt.Errorf("%d%% clamped to %d%%: %w", r.WastePct, e.WastePct, ErrWasteOutOfRange))
	}
	e.AdjustedSqFt = pitch.Adjust(e.FootprintSqFt, setting, e.WastePct)

	if len(r.Facets) > 0 {
		lm := LinearMeasurements(r.Facets)
		e.Linear = &lm
		e.Facets = FacetDetails(r.Facets)
	}
	return e
}
