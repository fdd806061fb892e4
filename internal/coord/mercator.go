package coord

import "math"

const (
	// EarthCircumference is the equatorial circumference in meters at zoom 0.
	EarthCircumference = 40075016.685578488
	// OriginShift is half the earth's circumference.
	OriginShift = EarthCircumference / 2.0
	// DefaultTileSize is the standard web map tile dimension.
	DefaultTileSize = 256
	// MaxZoom is the deepest zoom level web maps commonly serve.
	MaxZoom = 22
)

// WebMercatorProj implements the Projection interface for EPSG:3857.
type WebMercatorProj struct{}

func (w *WebMercatorProj) EPSG() int { return EPSGWebMercator }

func (w *WebMercatorProj) ToWGS84(x, y float64) (lon, lat float64) {
	lon = (x / OriginShift) * 180.0
	lat = (y / OriginShift) * 180.0
	lat = 180.0 / math.Pi * (2.0*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return
}

func (w *WebMercatorProj) FromWGS84(lon, lat float64) (x, y float64) {
	x = lon * OriginShift / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * OriginShift / 180.0
	return
}

// ResolutionAtLat returns the ground resolution in meters/pixel at the given
// latitude and zoom level for tiles of the given size.
func ResolutionAtLat(lat float64, zoom, tileSize int) float64 {
	return EarthCircumference * math.Cos(lat*math.Pi/180.0) / math.Pow(2, float64(zoom)) / float64(tileSize)
}

// MaxZoomForResolution returns the deepest web map zoom level whose ground
// resolution is still at least pixelSize meters, so that an overlay is not
// upsampled. Non-positive sizes return 0.
func MaxZoomForResolution(pixelSize, centerLat float64, tileSize int) int {
	if pixelSize <= 0 {
		return 0
	}
	for z := MaxZoom; z >= 0; z-- {
		if ResolutionAtLat(centerLat, z, tileSize) >= pixelSize {
			return z
		}
	}
	return 0
}

// PixelSizeInGroundMeters converts a pixel size expressed in CRS units into
// meters on the ground at the given latitude. Geographic CRS units are
// degrees; Web Mercator meters shrink with cos(lat); UTM units are meters.
func PixelSizeInGroundMeters(pixelSize float64, epsg int, lat float64) float64 {
	switch epsg {
	case EPSGWGS84:
		return pixelSize * EarthCircumference / 360.0 * math.Cos(lat*math.Pi/180.0)
	case EPSGWebMercator:
		return pixelSize * math.Cos(lat*math.Pi/180.0)
	default:
		return pixelSize
	}
}
