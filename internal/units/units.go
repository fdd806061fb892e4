// Package units holds the numeric conversion constants shared by the area and
// raster pipelines.
package units

import "math"

const (
	// SqMetersToSqFeet converts square meters to square feet.
	SqMetersToSqFeet = 10.7639
	// MetersToFeet converts linear meters to feet.
	MetersToFeet = 3.28084
)

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// SqFeet converts an area in square meters to square feet.
func SqFeet(sqMeters float64) float64 {
	return sqMeters * SqMetersToSqFeet
}

// Feet converts a length in meters to feet.
func Feet(meters float64) float64 {
	return meters * MetersToFeet
}
