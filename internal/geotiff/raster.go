package geotiff

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// maxSamples bounds width × height × bands, of the image and of each strip
// or tile, so that a forged header cannot force a huge allocation.
const maxSamples = 1 << 28

// Raster holds the decoded samples of one image, one slice per band in
// row-major order. Samples are widened to float64 whatever their stored type.
type Raster struct {
	Width  int
	Height int
	Bands  [][]float64
}

// At returns the sample of band b at pixel (x, y).
func (r *Raster) At(b, x, y int) float64 {
	return r.Bands[b][y*r.Width+x]
}

// chunkLayout describes how an IFD splits its pixels into strips or tiles.
type chunkLayout struct {
	width, height int // pixels per chunk; strips span the full image width
	across, down  int
	planes        int // 1 for chunky, SamplesPerPixel for planar
	spp           int // samples stored per pixel within one chunk
	offsets       []uint64
	counts        []uint64
	tiled         bool
}

func layoutOf(ifd *IFD) (chunkLayout, error) {
	l := chunkLayout{planes: 1, spp: int(ifd.SamplesPerPixel)}
	if ifd.PlanarConfig == 2 {
		l.planes, l.spp = int(ifd.SamplesPerPixel), 1
	}
	if ifd.Tiled() {
		l.tiled = true
		l.width, l.height = int(ifd.TileWidth), int(ifd.TileHeight)
		l.across, l.down = ifd.TilesAcross(), ifd.TilesDown()
		l.offsets, l.counts = ifd.TileOffsets, ifd.TileByteCounts
	} else {
		l.width, l.height = int(ifd.Width), int(ifd.rowsPerStrip())
		l.across, l.down = 1, ifd.StripsPerPlane()
		l.offsets, l.counts = ifd.StripOffsets, ifd.StripByteCounts
	}
	if l.width == 0 || l.height == 0 {
		return l, fmt.Errorf("%dx%d chunks: %w", l.width, l.height, ErrMalformedRaster)
	}
	if uint64(l.width)*uint64(l.height)*uint64(l.spp) > maxSamples {
		return l, fmt.Errorf("%dx%dx%d chunk samples exceed limit: %w", l.width, l.height, l.spp, ErrMalformedRaster)
	}
	if need := l.across * l.down * l.planes; len(l.offsets) < need || len(l.counts) < need {
		return l, fmt.Errorf("%d chunk offsets and %d byte counts, need %d: %w",
			len(l.offsets), len(l.counts), need, ErrMalformedRaster)
	}
	return l, nil
}

// sampleReader returns a function decoding one sample at the start of b.
func sampleReader(bo binary.ByteOrder, bps int, format uint16) (func(b []byte) float64, error) {
	switch format {
	case 0, sampleFormatUint:
		switch bps {
		case 8:
			return func(b []byte) float64 { return float64(b[0]) }, nil
		case 16:
			return func(b []byte) float64 { return float64(bo.Uint16(b)) }, nil
		case 32:
			return func(b []byte) float64 { return float64(bo.Uint32(b)) }, nil
		case 64:
			return func(b []byte) float64 { return float64(bo.Uint64(b)) }, nil
		}
	case sampleFormatInt:
		switch bps {
		case 8:
			return func(b []byte) float64 { return float64(int8(b[0])) }, nil
		case 16:
			return func(b []byte) float64 { return float64(int16(bo.Uint16(b))) }, nil
		case 32:
			return func(b []byte) float64 { return float64(int32(bo.Uint32(b))) }, nil
		case 64:
			return func(b []byte) float64 { return float64(int64(bo.Uint64(b))) }, nil
		}
	case sampleFormatFloat:
		switch bps {
		case 32:
			return func(b []byte) float64 { return float64(math.Float32frombits(bo.Uint32(b))) }, nil
		case 64:
			return func(b []byte) float64 { return math.Float64frombits(bo.Uint64(b)) }, nil
		}
	}
	return nil, fmt.Errorf("unsupported sample type (format %d, %d bits): %w", format, bps, ErrMalformedRaster)
}

// readRaster decodes every sample of ifd. The context is checked between
// chunks so that a cancelled request stops decoding stale bytes.
func readRaster(ctx context.Context, f *tiffFile, ifd *IFD) (*Raster, error) {
	w, h, spp := int(ifd.Width), int(ifd.Height), int(ifd.SamplesPerPixel)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("image is %dx%d: %w", w, h, ErrMalformedRaster)
	}
	if spp == 0 {
		return nil, fmt.Errorf("zero bands: %w", ErrMalformedRaster)
	}
	if uint64(w)*uint64(h)*uint64(spp) > maxSamples {
		return nil, fmt.Errorf("%dx%dx%d samples exceed limit: %w", w, h, spp, ErrMalformedRaster)
	}

	bps, err := ifd.BitsPerSampleUniform()
	if err != nil {
		return nil, err
	}
	read, err := sampleReader(f.bo, bps, ifd.SampleFormat)
	if err != nil {
		return nil, err
	}
	if ifd.Compression == compressionJPEG && bps != 8 {
		return nil, fmt.Errorf("JPEG with %d-bit samples: %w", bps, ErrMalformedRaster)
	}
	l, err := layoutOf(ifd)
	if err != nil {
		return nil, err
	}
	bytesPer := bps / 8

	r := &Raster{Width: w, Height: h, Bands: make([][]float64, spp)}
	for b := range r.Bands {
		r.Bands[b] = make([]float64, w*h)
	}

	for p := 0; p < l.planes; p++ {
		for cy := 0; cy < l.down; cy++ {
			for cx := 0; cx < l.across; cx++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}

				idx := (p*l.down+cy)*l.across + cx
				x0, y0 := cx*l.width, cy*l.height
				rows := l.height
				if !l.tiled {
					rows = min(l.height, h-y0)
				}
				if l.counts[idx] == 0 {
					// Sparse chunk: leave zeros.
					continue
				}

				buf, err := readChunkSamples(f, ifd, l, idx, rows, bps)
				if err != nil {
					return nil, fmt.Errorf("chunk %d: %w", idx, err)
				}

				for row := 0; row < rows && y0+row < h; row++ {
					for col := 0; col < l.width && x0+col < w; col++ {
						pix := (y0+row)*w + x0 + col
						base := (row*l.width + col) * l.spp
						for s := 0; s < l.spp; s++ {
							band := s
							if l.planes > 1 {
								band = p
							}
							r.Bands[band][pix] = read(buf[(base+s)*bytesPer:])
						}
					}
				}
			}
		}
	}
	return r, nil
}

// readChunkSamples returns the decompressed, predictor-free bytes of one chunk.
func readChunkSamples(f *tiffFile, ifd *IFD, l chunkLayout, idx, rows, bps int) ([]byte, error) {
	src, err := f.slice(l.offsets[idx], l.counts[idx])
	if err != nil {
		return nil, err
	}
	if ifd.Compression == compressionJPEG {
		return decodeJPEGChunk(ifd, src, l.width, rows, l.spp)
	}

	n := l.width * rows * l.spp * (bps / 8)
	buf, err := decompress(ifd.Compression, src, n)
	if err != nil {
		return nil, err
	}
	if ifd.Predictor > predictorNone {
		if ifd.Compression == compressionNone {
			buf = bytes.Clone(buf)
		}
		if err := undoPredictor(ifd.Predictor, buf, f.bo, l.width, l.spp, bps); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
