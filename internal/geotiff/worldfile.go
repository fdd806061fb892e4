package geotiff

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WorldFile holds the six parameters of an ESRI world file (.tfw).
//
// Line 1: pixel width (x-component of pixel size)
// Line 2: rotation about y-axis (typically 0)
// Line 3: rotation about x-axis (typically 0)
// Line 4: pixel height (y-component, typically negative for north-up)
// Line 5: x-coordinate of the center of the upper-left pixel
// Line 6: y-coordinate of the center of the upper-left pixel
type WorldFile struct {
	PixelSizeX float64 // line 1: x-component of pixel width
	RotationY  float64 // line 2: rotation about y-axis
	RotationX  float64 // line 3: rotation about x-axis
	PixelSizeY float64 // line 4: y-component of pixel height (negative = north-up)
	OriginX    float64 // line 5: x of upper-left pixel center
	OriginY    float64 // line 6: y of upper-left pixel center
}

// ParseWorldFile parses world file contents.
func ParseWorldFile(data []byte) (*WorldFile, error) {
	lines := strings.Fields(strings.TrimSpace(string(data)))
	if len(lines) < 6 {
		return nil, fmt.Errorf("world file: expected 6 values, got %d", len(lines))
	}

	var vals [6]float64
	for i := range vals {
		v, err := strconv.ParseFloat(lines[i], 64)
		if err != nil {
			return nil, fmt.Errorf("world file line %d: %w", i+1, err)
		}
		vals[i] = v
	}

	wf := &WorldFile{
		PixelSizeX: vals[0],
		RotationY:  vals[1],
		RotationX:  vals[2],
		PixelSizeY: vals[3],
		OriginX:    vals[4],
		OriginY:    vals[5],
	}
	if !wf.Transform().Valid() {
		return nil, fmt.Errorf("world file: degenerate pixel size (%g, %g)", wf.PixelSizeX, wf.PixelSizeY)
	}
	return wf, nil
}

// ReadWorldFile reads and parses the world file at path.
func ReadWorldFile(path string) (*WorldFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file %s: %w", path, err)
	}
	wf, err := ParseWorldFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// FindWorldFile looks for a world file sidecar alongside the given TIFF path.
// Checks extensions: .tfw, .TFW, .tifw, .TIFW, .wld
func FindWorldFile(tiffPath string) string {
	ext := filepath.Ext(tiffPath)
	base := tiffPath[:len(tiffPath)-len(ext)]

	for _, c := range []string{".tfw", ".TFW", ".tifw", ".TIFW", ".wld"} {
		p := base + c
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Transform converts the world file into a GeoTransform. World files give
// the center of the upper-left pixel; the transform origin is its corner.
func (wf *WorldFile) Transform() GeoTransform {
	t := GeoTransform{
		ResX:    wf.PixelSizeX,
		SkewX:   wf.RotationX,
		SkewY:   wf.RotationY,
		ResY:    wf.PixelSizeY,
		OriginX: wf.OriginX,
		OriginY: wf.OriginY,
	}
	t.OriginX, t.OriginY = t.Apply(-0.5, -0.5)
	return t
}
