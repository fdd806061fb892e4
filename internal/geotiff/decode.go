// Package geotiff decodes georeferenced rasters into a displayable image and
// the WGS84 box the image covers.
//
// Decoding runs in a fixed order. The container is parsed and the pixels are
// decoded; failures there are fatal. The geotransform, the CRS and the
// reprojected bounds are resolved next; failures there only leave
// Result.Bounds nil and add a warning. An optional reference coordinate
// finally recenters the bounds.
package geotiff

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/pspoerri/roofmeasure/internal/coord"
)

// Options controls Decode. The zero value decodes with the raster's own
// georeference metadata and no recentering.
type Options struct {
	// Reference, when set, recenters the bounds on this coordinate.
	Reference *coord.LatLng

	// Transform overrides the raster's georeference metadata, typically
	// with the contents of a world file.
	Transform *GeoTransform

	// EPSG overrides the CRS code from the GeoKeys.
	EPSG int
}

// Result is a decoded raster.
type Result struct {
	Image  *image.RGBA
	Raster *Raster
	Bands  int
	Width  int
	Height int

	// EPSG is the raster's CRS code, 0 when unknown.
	EPSG int
	// EPSGInferred is set when EPSG was guessed from the coordinate ranges.
	EPSGInferred bool
	Keys         GeoKeys

	// Transform is nil when no georeference strategy succeeded.
	Transform       *GeoTransform
	TransformSource string

	// Bounds is nil when the raster could not be placed on the map.
	Bounds *Bounds
	// Offset is the (lat, lng) translation applied by recentering.
	Offset coord.LatLng

	NoData *float64

	// Warnings lists the non-fatal conditions met while georeferencing.
	Warnings []error

	proj    coord.Projection
	toPixel func(x, y float64) (px, py float64)
}

// Decode parses a GeoTIFF and renders its primary image. Malformed
// containers and unsupported band layouts are returned as errors; missing
// or unusable georeference metadata is reported in Result.Warnings.
func Decode(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := parseTIFF(data)
	if err != nil {
		return nil, err
	}
	ifd := primaryIFD(f.ifds)

	if spp := ifd.SamplesPerPixel; spp == 2 {
		return nil, fmt.Errorf("%d bands: %w", spp, ErrUnsupportedBandLayout)
	}

	raster, err := readRaster(ctx, f, ifd)
	if err != nil {
		return nil, err
	}
	img, err := renderImage(ctx, raster)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Image:  img,
		Raster: raster,
		Bands:  len(raster.Bands),
		Width:  raster.Width,
		Height: raster.Height,
		Keys:   parseGeoKeys(ifd),
		NoData: parseNoData(ifd.NoData),
	}
	res.georeference(ifd, &opts)
	return res, nil
}

// primaryIFD returns the first full-resolution image, skipping overviews
// and masks.
func primaryIFD(ifds []IFD) *IFD {
	for i := range ifds {
		if ifds[i].SubfileType&(1|4) == 0 {
			return &ifds[i]
		}
	}
	return &ifds[0]
}

// georeference resolves transform, projection and bounds, recording
// failures as warnings.
func (r *Result) georeference(ifd *IFD, opts *Options) {
	t, source, err := resolveTransform(ifd, r.Keys, opts)
	if err != nil {
		r.Warnings = append(r.Warnings, err)
		return
	}
	r.Transform, r.TransformSource = &t, source

	r.EPSG = r.Keys.EPSG()
	if opts.EPSG != 0 {
		r.EPSG = opts.EPSG
	}
	// World files carry no CRS; embedded tags without GeoKeys are not
	// guessed at, since a local grid can fall within lon/lat ranges.
	if r.EPSG == 0 && opts.Transform != nil {
		if epsg := inferEPSG(t, r.Width, r.Height); epsg != 0 {
			r.EPSG, r.EPSGInferred = epsg, true
		}
	}

	proj := coord.ForEPSG(r.EPSG)
	if proj == nil && r.EPSG == 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("no coordinate reference system: %w", ErrUnrecognizedProjection))
		return
	}
	if proj == nil {
		r.Warnings = append(r.Warnings, fmt.Errorf("EPSG:%d: %w", r.EPSG, ErrUnrecognizedProjection))
		return
	}
	toPixel, err := t.Invert()
	if err != nil {
		r.Warnings = append(r.Warnings, fmt.Errorf("%v: %w", err, ErrMissingGeoreference))
		return
	}

	b := cornerBounds(t, r.Width, r.Height, proj)
	if opts.Reference != nil {
		b, r.Offset = recenter(b, *opts.Reference)
	}
	r.Bounds, r.proj, r.toPixel = &b, proj, toPixel
}

// inferEPSG guesses the CRS of a world-file raster without GeoKeys. Only geographic
// lon/lat ranges are recognised; projected CRSs cannot be told apart from
// coordinates alone.
func inferEPSG(t GeoTransform, width, height int) int {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range [4][2]float64{{0, 0}, {float64(width), 0}, {0, float64(height)}, {float64(width), float64(height)}} {
		x, y := t.Apply(c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	if minX >= -180 && maxX <= 180 && minY >= -90 && maxY <= 90 {
		return coord.EPSGWGS84
	}
	return 0
}

func parseNoData(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Georeferenced reports whether the raster has bounds.
func (r *Result) Georeferenced() bool {
	return r.Bounds != nil
}

// HasWarning reports whether any warning matches target.
func (r *Result) HasWarning(target error) bool {
	for _, w := range r.Warnings {
		if errors.Is(w, target) {
			return true
		}
	}
	return false
}

// SampleAt returns the raw band values of the pixel under a WGS84
// coordinate, for example the DSM elevation or the solar flux of a roof.
// It reports false outside the raster, for nodata pixels and for rasters
// without bounds. Recentering is taken into account.
func (r *Result) SampleAt(ll coord.LatLng) ([]float64, bool) {
	if r.Bounds == nil || r.proj == nil || r.toPixel == nil {
		return nil, false
	}
	x, y := r.proj.FromWGS84(ll.Lng-r.Offset.Lng, ll.Lat-r.Offset.Lat)
	px, py := r.toPixel(x, y)
	ix, iy := int(math.Floor(px)), int(math.Floor(py))
	if ix < 0 || iy < 0 || ix >= r.Width || iy >= r.Height {
		return nil, false
	}

	vals := make([]float64, len(r.Raster.Bands))
	for b := range vals {
		vals[b] = r.Raster.At(b, ix, iy)
		if r.NoData != nil && vals[b] == *r.NoData {
			return nil, false
		}
	}
	return vals, true
}

// GroundResolution returns the pixel size in meters on the ground at the
// center of the bounds, or 0 without bounds.
func (r *Result) GroundResolution() float64 {
	if r.Bounds == nil || r.Transform == nil {
		return 0
	}
	sx, _ := r.Transform.PixelSize()
	return coord.PixelSizeInGroundMeters(sx, r.EPSG, r.Bounds.Center().Lat)
}

// SuggestedZoom returns the deepest web map zoom level that displays the
// raster without upsampling, or 0 without bounds.
func (r *Result) SuggestedZoom() int {
	res := r.GroundResolution()
	if res == 0 {
		return 0
	}
	return coord.MaxZoomForResolution(res, r.Bounds.Center().Lat, coord.DefaultTileSize)
}

// Info summarises a GeoTIFF's structure without decoding pixels.
type Info struct {
	ByteOrder       string
	BigTIFF         bool
	IFDs            []IFD
	Keys            GeoKeys
	EPSG            int
	Transform       *GeoTransform
	TransformSource string
	Bounds          *Bounds
	Warnings        []error
}

// Inspect parses the container and resolves the georeference of the primary
// image without reading any pixel data.
func Inspect(data []byte, opts Options) (*Info, error) {
	f, err := parseTIFF(data)
	if err != nil {
		return nil, err
	}
	ifd := primaryIFD(f.ifds)

	r := &Result{
		Width:  int(ifd.Width),
		Height: int(ifd.Height),
		Keys:   parseGeoKeys(ifd),
	}
	r.georeference(ifd, &opts)

	info := &Info{
		ByteOrder:       "little-endian",
		BigTIFF:         f.bigTIFF,
		IFDs:            f.ifds,
		Keys:            r.Keys,
		EPSG:            r.EPSG,
		Transform:       r.Transform,
		TransformSource: r.TransformSource,
		Bounds:          r.Bounds,
		Warnings:        r.Warnings,
	}
	if f.bo == binary.BigEndian {
		info.ByteOrder = "big-endian"
	}
	return info, nil
}
