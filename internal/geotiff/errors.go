package geotiff

import "errors"

// Fatal conditions: Decode returns them as its error and no image.
var (
	// ErrMalformedRaster is returned when the byte stream is not a readable
	// TIFF, declares zero bands, or uses an encoding this package cannot read.
	ErrMalformedRaster = errors.New("malformed raster")

	// ErrUnsupportedBandLayout is returned for band counts other than 1 or ≥3.
	ErrUnsupportedBandLayout = errors.New("unsupported band layout")
)

// Non-fatal conditions: reported in Result.Warnings while Result.Bounds is nil.
var (
	// ErrMissingGeoreference means no geotransform strategy succeeded.
	ErrMissingGeoreference = errors.New("missing georeference")

	// ErrUnrecognizedProjection means the raster's CRS code has no projection.
	ErrUnrecognizedProjection = errors.New("unrecognized projection")
)
