package coord

import "fmt"

// Projection defines the interface for converting between a source CRS and WGS84.
type Projection interface {
	// ToWGS84 converts source CRS coordinates to WGS84 longitude/latitude (degrees).
	ToWGS84(x, y float64) (lon, lat float64)

	// FromWGS84 converts WGS84 longitude/latitude (degrees) to source CRS coordinates.
	FromWGS84(lon, lat float64) (x, y float64)

	// EPSG returns the EPSG code for this projection.
	EPSG() int
}

// EPSG code ranges for the WGS84 UTM zones.
const (
	EPSGWGS84       = 4326
	EPSGWebMercator = 3857
	EPSGUTMNorth    = 32600
	EPSGUTMSouth    = 32700
)

// ForEPSG returns a Projection for the given EPSG code.
// Returns nil if the EPSG code is not supported.
func ForEPSG(epsg int) Projection {
	switch {
	case epsg == EPSGWGS84:
		return &WGS84Identity{}
	case epsg == EPSGWebMercator:
		return &WebMercatorProj{}
	case epsg > EPSGUTMNorth && epsg <= EPSGUTMNorth+60:
		return &UTM{Zone: epsg - EPSGUTMNorth}
	case epsg > EPSGUTMSouth && epsg <= EPSGUTMSouth+60:
		return &UTM{Zone: epsg - EPSGUTMSouth, South: true}
	default:
		return nil
	}
}

// Describe returns a short human-readable name for an EPSG code.
func Describe(epsg int) string {
	switch p := ForEPSG(epsg).(type) {
	case *WGS84Identity:
		return "WGS 84"
	case *WebMercatorProj:
		return "WGS 84 / Pseudo-Mercator"
	case *UTM:
		return p.String()
	default:
		return fmt.Sprintf("EPSG:%d (unsupported)", epsg)
	}
}

// WGS84Identity is a no-op projection for data already in EPSG:4326.
type WGS84Identity struct{}

func (w *WGS84Identity) ToWGS84(x, y float64) (lon, lat float64)   { return x, y }
func (w *WGS84Identity) FromWGS84(lon, lat float64) (x, y float64) { return lon, lat }
func (w *WGS84Identity) EPSG() int                                 { return EPSGWGS84 }
