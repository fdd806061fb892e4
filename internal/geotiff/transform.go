package geotiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GeoTransform maps pixel space to the raster's native CRS:
//
//	X = OriginX + px*ResX + py*SkewX
//	Y = OriginY + px*SkewY + py*ResY
//
// (px, py) = (0, 0) is the top-left corner of the top-left pixel. ResY is
// negative for north-up rasters.
type GeoTransform struct {
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
	ResX    float64 `json:"res_x"`
	ResY    float64 `json:"res_y"`
	SkewX   float64 `json:"skew_x,omitempty"`
	SkewY   float64 `json:"skew_y,omitempty"`
}

// Apply maps a pixel-space position to native CRS coordinates.
func (t GeoTransform) Apply(px, py float64) (x, y float64) {
	x = t.OriginX + px*t.ResX + py*t.SkewX
	y = t.OriginY + px*t.SkewY + py*t.ResY
	return
}

func (t GeoTransform) matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.ResX, t.SkewX, t.OriginX,
		t.SkewY, t.ResY, t.OriginY,
		0, 0, 1,
	})
}

// Valid reports whether the transform is finite and invertible.
func (t GeoTransform) Valid() bool {
	for _, v := range []float64{t.OriginX, t.OriginY, t.ResX, t.ResY, t.SkewX, t.SkewY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(mat.Det(t.matrix())) > 1e-300
}

// Invert returns a function mapping native CRS coordinates back to pixel space.
func (t GeoTransform) Invert() (func(x, y float64) (px, py float64), error) {
	var inv mat.Dense
	if err := inv.Inverse(t.matrix()); err != nil {
		return nil, fmt.Errorf("inverting geotransform: %w", err)
	}
	a, b, c := inv.At(0, 0), inv.At(0, 1), inv.At(0, 2)
	d, e, f := inv.At(1, 0), inv.At(1, 1), inv.At(1, 2)
	return func(x, y float64) (px, py float64) {
		return a*x + b*y + c, d*x + e*y + f
	}, nil
}

// PixelSize returns the ground size of one pixel along each axis in CRS units.
func (t GeoTransform) PixelSize() (sx, sy float64) {
	return math.Hypot(t.ResX, t.SkewY), math.Hypot(t.SkewX, t.ResY)
}

// transformStrategy is one georeference encoding. extract reports false
// when the encoding is absent or unusable.
type transformStrategy struct {
	name    string
	extract func(ifd *IFD, keys GeoKeys, opts *Options) (GeoTransform, bool)
}

// transformStrategies are tried in order; the first success wins.
var transformStrategies = []transformStrategy{
	{"explicit", explicitTransform},
	{"tiepoint+scale", tiepointTransform},
	{"model transformation", modelTransformation},
}

// resolveTransform returns the first usable geotransform and the name of
// the strategy that produced it.
func resolveTransform(ifd *IFD, keys GeoKeys, opts *Options) (GeoTransform, string, error) {
	for _, s := range transformStrategies {
		if t, ok := s.extract(ifd, keys, opts); ok && t.Valid() {
			return t, s.name, nil
		}
	}
	return GeoTransform{}, "", ErrMissingGeoreference
}

// explicitTransform uses a caller-supplied origin and resolution, typically
// from a world file.
func explicitTransform(_ *IFD, _ GeoKeys, opts *Options) (GeoTransform, bool) {
	if opts == nil || opts.Transform == nil {
		return GeoTransform{}, false
	}
	return *opts.Transform, true
}

// tiepointTransform combines ModelTiepoint [I, J, K, X, Y, Z], which maps
// pixel (I, J) to (X, Y), with ModelPixelScale [ScaleX, ScaleY, ScaleZ].
// Raster rows grow downward while northings grow upward, so ScaleY is negated.
func tiepointTransform(ifd *IFD, keys GeoKeys, _ *Options) (GeoTransform, bool) {
	if len(ifd.ModelTiepoint) < 6 || len(ifd.ModelPixelScale) < 2 {
		return GeoTransform{}, false
	}
	tp, scale := ifd.ModelTiepoint, ifd.ModelPixelScale
	t := GeoTransform{
		ResX:    scale[0],
		ResY:    -scale[1],
		OriginX: tp[3] - tp[0]*scale[0],
		OriginY: tp[4] + tp[1]*scale[1],
	}
	return pixelIsPointShift(t, keys), true
}

// modelTransformation reads the row-major 4x4 ModelTransformation matrix.
func modelTransformation(ifd *IFD, keys GeoKeys, _ *Options) (GeoTransform, bool) {
	m := ifd.ModelTransformation
	if len(m) < 16 {
		return GeoTransform{}, false
	}
	t := GeoTransform{
		ResX:    m[0],
		SkewX:   m[1],
		OriginX: m[3],
		SkewY:   m[4],
		ResY:    m[5],
		OriginY: m[7],
	}
	return pixelIsPointShift(t, keys), true
}

// pixelIsPointShift moves an origin given for the top-left pixel center to
// the pixel's top-left corner.
func pixelIsPointShift(t GeoTransform, keys GeoKeys) GeoTransform {
	if !keys.PixelIsPoint() {
		return t
	}
	t.OriginX, t.OriginY = t.Apply(-0.5, -0.5)
	return t
}
