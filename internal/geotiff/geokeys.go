package geotiff

// GeoTIFF GeoKey IDs.
const (
	gkModelType         = 1024
	gkRasterType        = 1025
	gkCitation          = 1026
	gkGeographicType    = 2048
	gkProjectedCSType   = 3072
	gkProjectedCitation = 3073
)

// GeoKey values.
const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2

	rasterPixelIsArea  = 1
	rasterPixelIsPoint = 2

	userDefined = 32767
)

// GeoKeys holds the parsed GeoKey directory entries this package uses.
type GeoKeys struct {
	ModelType    int
	RasterType   int
	GeographicCS int
	ProjectedCS  int
	Citation     string
}

// EPSG returns the raster's CRS code. A projected code wins over the
// geographic one, which a projected raster also carries for its datum.
// User-defined codes report 0.
func (k GeoKeys) EPSG() int {
	if k.ProjectedCS > 0 && k.ProjectedCS != userDefined && k.ModelType != modelTypeGeographic {
		return k.ProjectedCS
	}
	if k.GeographicCS > 0 && k.GeographicCS != userDefined {
		return k.GeographicCS
	}
	return 0
}

// PixelIsPoint reports whether tiepoints refer to pixel centers.
func (k GeoKeys) PixelIsPoint() bool {
	return k.RasterType == rasterPixelIsPoint
}

// parseGeoKeys extracts GeoKeys from the directory and ASCII params.
func parseGeoKeys(ifd *IFD) GeoKeys {
	var k GeoKeys
	dir := ifd.GeoKeys
	if len(dir) < 4 {
		return k
	}

	// GeoKey directory header: [KeyDirectoryVersion, KeyRevision, MinorRevision, NumberOfKeys]
	numKeys := int(dir[3])

	for i := 0; i < numKeys; i++ {
		base := 4 + i*4
		if base+3 >= len(dir) {
			break
		}
		keyID := dir[base]
		location := dir[base+1]
		count := int(dir[base+2])
		value := dir[base+3]

		switch keyID {
		case gkModelType:
			k.ModelType = int(value)
		case gkRasterType:
			k.RasterType = int(value)
		case gkGeographicType:
			k.GeographicCS = int(value)
		case gkProjectedCSType:
			k.ProjectedCS = int(value)
		case gkCitation, gkProjectedCitation:
			if location == tagGeoASCIIParams && k.Citation == "" {
				k.Citation = asciiParam(ifd.GeoASCIIParams, int(value), count)
			}
		}
	}

	return k
}

// asciiParam slices one '|'-terminated entry out of GeoAsciiParams.
func asciiParam(params string, offset, count int) string {
	if offset < 0 || offset >= len(params) {
		return ""
	}
	end := min(offset+count, len(params))
	s := params[offset:end]
	for len(s) > 0 && (s[len(s)-1] == '|' || s[len(s)-1] == 0) {
		s = s[:len(s)-1]
	}
	return s
}
