package encode

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

// TerrariumEncoder encodes Terrarium elevation images as PNG. The input
// should already carry Terrarium RGB values, see TerrariumImage.
type TerrariumEncoder struct{}

func (e *TerrariumEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *TerrariumEncoder) Format() string        { return "terrarium" }
func (e *TerrariumEncoder) ContentType() string   { return "image/png" }
func (e *TerrariumEncoder) FileExtension() string { return ".png" }

// TerrariumImage packs a row-major elevation grid (e.g. a DSM band) into a
// Terrarium RGB image. Samples equal to nodata become transparent.
func TerrariumImage(width, height int, elevations []float64, nodata *float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := elevations[y*width+x]
			if nodata != nil && v == *nodata {
				continue
			}
			img.SetRGBA(x, y, ElevationToTerrarium(v))
		}
	}
	return img
}

// ElevationToTerrarium converts a float64 elevation value to Terrarium RGB.
// Terrarium formula: elevation = (R * 256 + G + B / 256) - 32768
// Range: approximately -32768 to +32767.996 meters.
func ElevationToTerrarium(elevation float64) color.RGBA {
	if math.IsNaN(elevation) || math.IsInf(elevation, 0) {
		return color.RGBA{} // nodata → transparent
	}

	value := min(max(elevation+32768.0, 0), 65535.996)

	r := min(int(value/256), 255)
	remainder := value - float64(r)*256.0
	g := min(int(remainder), 255)
	b := min(int((remainder-float64(g))*256.0), 255)

	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

// TerrariumToElevation converts Terrarium RGB values back to elevation.
// Returns NaN if the pixel is transparent (nodata).
func TerrariumToElevation(c color.RGBA) float64 {
	if c.A == 0 {
		return math.NaN()
	}
	return float64(c.R)*256.0 + float64(c.G) + float64(c.B)/256.0 - 32768.0
}
