package encode

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Resampling selects the filter used by Downsample.
type Resampling int

const (
	ResamplingLanczos Resampling = iota
	ResamplingBilinear
	ResamplingNearest
)

// ParseResampling accepts "lanczos", "bilinear" and "nearest". The empty
// string selects ResamplingLanczos.
func ParseResampling(s string) (Resampling, error) {
	switch strings.ToLower(s) {
	case "", "lanczos":
		return ResamplingLanczos, nil
	case "bilinear":
		return ResamplingBilinear, nil
	case "nearest":
		return ResamplingNearest, nil
	default:
		return ResamplingLanczos, fmt.Errorf("unknown resampling %q (supported: lanczos, bilinear, nearest)", s)
	}
}

func (r Resampling) String() string {
	switch r {
	case ResamplingBilinear:
		return "bilinear"
	case ResamplingNearest:
		return "nearest"
	default:
		return "lanczos"
	}
}

// lanczos3Weights2x are the normalized 1D Lanczos-3 weights for a 2×
// reduction. The source center of output pixel dx is at 2·dx + 0.5, so the
// six nearest source pixels lie at -2.5 … 2.5 from it.
var lanczos3Weights2x [6]float64

func init() {
	offsets := [6]float64{-2.5, -1.5, -0.5, 0.5, 1.5, 2.5}
	var sum float64
	for i, d := range offsets {
		lanczos3Weights2x[i] = lanczos3(d)
		sum += lanczos3Weights2x[i]
	}
	for i := range lanczos3Weights2x {
		lanczos3Weights2x[i] /= sum
	}
}

func lanczos3(x float64) float64 {
	if x == 0 {
		return 1
	}
	if x < -3 || x > 3 {
		return 0
	}
	xPi := x * math.Pi
	return 3 * math.Sin(xPi) * math.Sin(xPi/3) / (xPi * xPi)
}

// Downsample halves img until both sides fit within maxSide, so that large
// rasters make reasonably sized previews and data URLs. Transparent pixels
// (nodata) do not contribute to colour. A non-positive maxSide, or an image
// that already fits, returns img itself.
func Downsample(img *image.RGBA, maxSide int, mode Resampling) *image.RGBA {
	if maxSide <= 0 {
		return img
	}
	for img.Rect.Dx() > maxSide || img.Rect.Dy() > maxSide {
		img = halve(img, mode)
	}
	return img
}

func halve(src *image.RGBA, mode Resampling) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, (w+1)/2, (h+1)/2))
	switch mode {
	case ResamplingNearest:
		halveNearest(dst, src)
	case ResamplingBilinear:
		halveBilinear(dst, src)
	default:
		halveLanczos(dst, src)
	}
	return dst
}

// pixOffset returns the offset of pixel (x, y), relative to the image
// origin and clamped to its bounds.
func pixOffset(src *image.RGBA, x, y int) int {
	x = min(max(x, 0), src.Rect.Dx()-1)
	y = min(max(y, 0), src.Rect.Dy()-1)
	return src.PixOffset(src.Rect.Min.X+x, src.Rect.Min.Y+y)
}

// halveNearest picks the top-left pixel of each 2x2 block.
func halveNearest(dst, src *image.RGBA) {
	b := dst.Rect
	for dy := 0; dy < b.Dy(); dy++ {
		for dx := 0; dx < b.Dx(); dx++ {
			s := pixOffset(src, 2*dx, 2*dy)
			d := dst.PixOffset(dx, dy)
			copy(dst.Pix[d:d+4], src.Pix[s:s+4])
		}
	}
}

// halveBilinear averages each 2x2 block. Alpha is a straight average; colour
// averages only the opaque pixels.
func halveBilinear(dst, src *image.RGBA) {
	b := dst.Rect
	for dy := 0; dy < b.Dy(); dy++ {
		for dx := 0; dx < b.Dx(); dx++ {
			var rSum, gSum, bSum, aSum, count int
			for _, o := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				s := pixOffset(src, 2*dx+o[0], 2*dy+o[1])
				p := src.Pix[s : s+4 : s+4]
				aSum += int(p[3])
				if p[3] == 0 {
					continue
				}
				rSum += int(p[0])
				gSum += int(p[1])
				bSum += int(p[2])
				count++
			}
			if count == 0 {
				continue
			}
			d := dst.PixOffset(dx, dy)
			dst.Pix[d] = uint8((rSum + count/2) / count)
			dst.Pix[d+1] = uint8((gSum + count/2) / count)
			dst.Pix[d+2] = uint8((bSum + count/2) / count)
			dst.Pix[d+3] = uint8((aSum + 2) / 4)
		}
	}
}

// halveLanczos applies the separable Lanczos-3 kernel over a 6x6 window,
// clamping at the edges.
func halveLanczos(dst, src *image.RGBA) {
	w := lanczos3Weights2x
	b := dst.Rect
	for dy := 0; dy < b.Dy(); dy++ {
		for dx := 0; dx < b.Dx(); dx++ {
			var rSum, gSum, bSum, aSum, wTotal, wRGB float64
			for ky := 0; ky < 6; ky++ {
				for kx := 0; kx < 6; kx++ {
					wt := w[kx] * w[ky]
					s := pixOffset(src, 2*dx-2+kx, 2*dy-2+ky)
					p := src.Pix[s : s+4 : s+4]
					aSum += float64(p[3]) * wt
					wTotal += wt
					if p[3] > 0 {
						rSum += float64(p[0]) * wt
						gSum += float64(p[1]) * wt
						bSum += float64(p[2]) * wt
						wRGB += wt
					}
				}
			}
			// Negative lobes can outweigh the opaque pixels at a nodata edge.
			if wRGB <= 0 {
				continue
			}
			d := dst.PixOffset(dx, dy)
			dst.Pix[d] = clampByte(rSum / wRGB)
			dst.Pix[d+1] = clampByte(gSum / wRGB)
			dst.Pix[d+2] = clampByte(bSum / wRGB)
			dst.Pix[d+3] = clampByte(aSum / wTotal)
		}
	}
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
