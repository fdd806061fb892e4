package geotiff

import (
	"context"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// renderImage turns decoded samples into a displayable RGBA image. Three or
// more bands map bands 0, 1, 2 to R, G, B. A single band is stretched
// linearly from its min..max onto 0..255 grey.
func renderImage(ctx context.Context, r *Raster) (*image.RGBA, error) {
	switch n := len(r.Bands); {
	case n >= 3:
		return renderRGB(ctx, r)
	case n == 1:
		return renderGrey(ctx, r)
	default:
		return nil, fmt.Errorf("%d bands: %w", n, ErrUnsupportedBandLayout)
	}
}

func renderRGB(ctx context.Context, r *Raster) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	red, green, blue := r.Bands[0], r.Bands[1], r.Bands[2]
	for y := 0; y < r.Height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := img.Pix[y*img.Stride : y*img.Stride+4*r.Width]
		for x := 0; x < r.Width; x++ {
			i := y*r.Width + x
			row[4*x] = clampByte(red[i])
			row[4*x+1] = clampByte(green[i])
			row[4*x+2] = clampByte(blue[i])
			row[4*x+3] = 255
		}
	}
	return img, nil
}

func renderGrey(ctx context.Context, r *Raster) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	samples := r.Bands[0]
	lo, hi := sampleRange(samples)
	span := hi - lo
	if span == 0 {
		span = 1
	}
	for y := 0; y < r.Height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := img.Pix[y*img.Stride : y*img.Stride+4*r.Width]
		for x := 0; x < r.Width; x++ {
			v := clampByte((samples[y*r.Width+x] - lo) / span * 255)
			row[4*x], row[4*x+1], row[4*x+2], row[4*x+3] = v, v, v, 255
		}
	}
	return img, nil
}

// sampleRange returns the min and max sample, ignoring NaN.
func sampleRange(v []float64) (lo, hi float64) {
	if len(v) == 0 {
		return 0, 0
	}
	if !floats.HasNaN(v) {
		return floats.Min(v), floats.Max(v)
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range v {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// clampByte rounds v to the nearest byte value, saturating at 0 and 255.
// NaN maps to 0.
func clampByte(v float64) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
