// Package pitch converts a roof footprint into a material estimate by
// applying a slope multiplier and a waste allowance.
package pitch

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pspoerri/roofmeasure/internal/units"
)

// ErrInvalidPitchAngle is returned by Setting.Multiplier for measured angles
// at or above MaxAngle. The returned multiplier is clamped to VerySteep.
var ErrInvalidPitchAngle = errors.New("invalid pitch angle")

const (
	// MaxAngle is the steepest measured pitch accepted before 1/cos diverges.
	MaxAngle = 89.9

	// MinWaste and MaxWaste bound the waste allowance in percent.
	MinWaste = 0
	MaxWaste = 20
)

// Category is a named roof steepness.
type Category int

const (
	Flat Category = iota
	Low
	Standard
	Steep
	VerySteep
)

var categories = [...]struct {
	name       string
	label      string
	multiplier float64
}{
	Flat:      {"flat", "Flat Roof (Walking Surface)", 1.00},
	Low:       {"low", "Low Slope (Slight Incline)", 1.05},
	Standard:  {"standard", "Standard House (Typical)", 1.12},
	Steep:     {"steep", "Steep (Difficult to Walk)", 1.25},
	VerySteep: {"very-steep", "Very Steep (Professional Only)", 1.40},
}

// Categories lists every named steepness from flattest to steepest.
func Categories() []Category {
	return []Category{Flat, Low, Standard, Steep, VerySteep}
}

// Multiplier returns the fixed slope factor of the category.
func (c Category) Multiplier() float64 {
	if c < Flat || c > VerySteep {
		return categories[Standard].multiplier
	}
	return categories[c].multiplier
}

// Label returns the human-readable description shown next to the selector.
func (c Category) Label() string {
	if c < Flat || c > VerySteep {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categories[c].label
}

func (c Category) String() string {
	if c < Flat || c > VerySteep {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categories[c].name
}

// ParseCategory accepts category names case-insensitively; "verysteep" and
// "very_steep" are accepted as spellings of VerySteep.
func ParseCategory(s string) (Category, error) {
	norm := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	if norm == "verysteep" {
		norm = "very-steep"
	}
	for _, c := range Categories() {
		if categories[c].name == norm {
			return c, nil
		}
	}
	return Standard, fmt.Errorf("unknown pitch %q (supported: flat, low, standard, steep, very-steep)", s)
}

// Source records where a pitch setting came from.
type Source string

const (
	SourceManual   Source = "manual"
	SourceMeasured Source = "measured"
)

// Setting is exactly one of a named category or a measured angle.
type Setting struct {
	source   Source
	category Category
	degrees  float64
}

// Named selects a category from the fixed table.
func Named(c Category) Setting {
	return Setting{source: SourceManual, category: c}
}

// Measured selects a pitch measured in degrees from horizontal.
func Measured(degrees float64) Setting {
	return Setting{source: SourceMeasured, degrees: degrees}
}

// Resolve implements the hybrid selection: a measured angle, when present,
// wins over the manually chosen category.
func Resolve(manual Category, measured *float64) Setting {
	if measured != nil {
		return Measured(*measured)
	}
	return Named(manual)
}

// Source reports whether the setting is manual or measured.
func (s Setting) Source() Source {
	if s.source == "" {
		return SourceManual
	}
	return s.source
}

// Category returns the named category; only meaningful for manual settings.
func (s Setting) Category() Category { return s.category }

// Degrees returns the measured angle; only meaningful for measured settings.
func (s Setting) Degrees() float64 { return s.degrees }

func (s Setting) String() string {
	if s.Source() == SourceMeasured {
		return fmt.Sprintf("%.1f°", s.degrees)
	}
	return s.category.String()
}

// Multiplier returns the slope factor. Measured angles use 1/cos(θ); angles
// at or below zero give 1. Angles at or above MaxAngle (or NaN) return the
// VerySteep factor together with ErrInvalidPitchAngle.
func (s Setting) Multiplier() (float64, error) {
	if s.Source() == SourceManual {
		return s.category.Multiplier(), nil
	}
	switch {
	case math.IsNaN(s.degrees) || s.degrees >= MaxAngle:
		return VerySteep.Multiplier(), fmt.Errorf("%.3f° (max %.1f°): %w", s.degrees, MaxAngle, ErrInvalidPitchAngle)
	case s.degrees <= 0:
		return 1, nil
	default:
		return 1 / math.Cos(units.DegToRad(s.degrees)), nil
	}
}

// ClampWaste limits a waste percentage to [MinWaste, MaxWaste].
func ClampWaste(pct int) int {
	if pct < MinWaste {
		return MinWaste
	}
	if pct > MaxWaste {
		return MaxWaste
	}
	return pct
}

// Adjust returns base × pitch multiplier × (1 + waste/100), in that order.
// Out-of-range waste is clamped and invalid angles use the clamped
// multiplier; callers that need to surface those conditions use
// Setting.Multiplier and ClampWaste directly.
func Adjust(baseSqFt float64, s Setting, wastePct int) float64 {
	m, _ := s.Multiplier()
	return baseSqFt * m * (1 + float64(ClampWaste(wastePct))/100)
}

// RatioFromDegrees renders a pitch angle as the traditional rise over a
// 12-unit run, rounded to the nearest half: 33.7° → "8/12".
func RatioFromDegrees(degrees float64) string {
	rise := math.Tan(units.DegToRad(degrees)) * 12
	rounded := math.Round(rise*2) / 2
	return fmt.Sprintf("%g/12", rounded)
}
