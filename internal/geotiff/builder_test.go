package geotiff

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// tiffSpec describes an in-memory TIFF for tests. Samples are given per
// band in row-major order and encoded according to bps and format.
type tiffSpec struct {
	bo           binary.ByteOrder
	bigTIFF      bool
	width        int
	height       int
	bps          int
	format       uint16
	planar       bool
	tileW, tileH int // zero for strips
	rowsPerStrip int
	compression  uint16
	predictor    uint16
	compress     func(t *testing.T, raw []byte) []byte
	bands        [][]float64
	tags         []testTag
	subfileType  uint32
	// prepend writes an extra IFD (e.g. an overview) before the primary one.
	prepend *tiffSpec
	// chunkData, when set, is written verbatim instead of encoding bands.
	chunkData [][]byte
	spp       int // samples per pixel when chunkData is set
}

type testTag struct {
	tag   uint16
	dt    uint16
	count uint64
	data  func(bo binary.ByteOrder) []byte
}

func shortsTag(tag uint16, vals ...uint16) testTag {
	return testTag{tag, dtShort, uint64(len(vals)), func(bo binary.ByteOrder) []byte {
		b := make([]byte, 2*len(vals))
		for i, v := range vals {
			bo.PutUint16(b[2*i:], v)
		}
		return b
	}}
}

func longsTag(tag uint16, vals ...uint64) testTag {
	return testTag{tag, dtLong, uint64(len(vals)), func(bo binary.ByteOrder) []byte {
		b := make([]byte, 4*len(vals))
		for i, v := range vals {
			bo.PutUint32(b[4*i:], uint32(v))
		}
		return b
	}}
}

func doublesTag(tag uint16, vals ...float64) testTag {
	return testTag{tag, dtDouble, uint64(len(vals)), func(bo binary.ByteOrder) []byte {
		b := make([]byte, 8*len(vals))
		for i, v := range vals {
			bo.PutUint64(b[8*i:], math.Float64bits(v))
		}
		return b
	}}
}

func asciiTag(tag uint16, s string) testTag {
	return testTag{tag, dtASCII, uint64(len(s) + 1), func(binary.ByteOrder) []byte {
		return append([]byte(s), 0)
	}}
}

// geoKeysTag builds a GeoKeyDirectory with inline SHORT values.
func geoKeysTag(keys ...[2]uint16) testTag {
	dir := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		dir = append(dir, k[0], 0, 1, k[1])
	}
	return shortsTag(tagGeoKeyDirectory, dir...)
}

// utmTags georeferences a raster in the given EPSG code with a north-up
// tiepoint at (originX, originY) and square pixels of size res.
func utmTags(epsg uint16, originX, originY, res float64) []testTag {
	return []testTag{
		doublesTag(tagModelPixelScale, res, res, 0),
		doublesTag(tagModelTiepoint, 0, 0, 0, originX, originY, 0),
		geoKeysTag([2]uint16{gkModelType, modelTypeProjected}, [2]uint16{gkRasterType, rasterPixelIsArea},
			[2]uint16{gkGeographicType, 4326}, [2]uint16{gkProjectedCSType, epsg}),
	}
}

func encodeSample(bo binary.ByteOrder, b []byte, bps int, format uint16, v float64) {
	switch {
	case format == sampleFormatFloat && bps == 32:
		bo.PutUint32(b, math.Float32bits(float32(v)))
	case format == sampleFormatFloat && bps == 64:
		bo.PutUint64(b, math.Float64bits(v))
	case bps == 8:
		b[0] = byte(int64(v))
	case bps == 16:
		bo.PutUint16(b, uint16(int64(v)))
	case bps == 32:
		bo.PutUint32(b, uint32(int64(v)))
	case bps == 64:
		bo.PutUint64(b, uint64(int64(v)))
	}
}

// applyHorizontal is the encoder side of predictor 2.
func applyHorizontal(bo binary.ByteOrder, buf []byte, width, spp, bps int) {
	rowLen := width * spp * bps / 8
	for row := 0; row+rowLen <= len(buf); row += rowLen {
		r := buf[row : row+rowLen]
		for i := width*spp - 1; i >= spp; i-- {
			switch bps {
			case 8:
				r[i] -= r[i-spp]
			case 16:
				bo.PutUint16(r[2*i:], bo.Uint16(r[2*i:])-bo.Uint16(r[2*(i-spp):]))
			case 32:
				bo.PutUint32(r[4*i:], bo.Uint32(r[4*i:])-bo.Uint32(r[4*(i-spp):]))
			}
		}
	}
}

// applyFloat is the encoder side of predictor 3.
func applyFloat(bo binary.ByteOrder, buf []byte, width, spp, bps int) {
	bytesPer := bps / 8
	n := width * spp
	rowLen := n * bytesPer
	tmp := make([]byte, rowLen)
	little := bo == binary.LittleEndian
	for row := 0; row+rowLen <= len(buf); row += rowLen {
		r := buf[row : row+rowLen]
		for j := 0; j < n; j++ {
			for k := 0; k < bytesPer; k++ {
				src := j*bytesPer + k
				if little {
					src = j*bytesPer + bytesPer - 1 - k
				}
				tmp[k*n+j] = r[src]
			}
		}
		for i := rowLen - 1; i >= spp; i-- {
			tmp[i] -= tmp[i-spp]
		}
		copy(r, tmp)
	}
}

func deflateChunk(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	return buf.Bytes()
}

// packBitsChunk encodes raw as literal runs of up to 128 bytes, with a
// repeat run for any leading run of equal bytes.
func packBitsChunk(_ *testing.T, raw []byte) []byte {
	var out []byte
	for i := 0; i < len(raw); {
		j := i
		for j < len(raw) && raw[j] == raw[i] && j-i < 128 {
			j++
		}
		if j-i >= 3 {
			out = append(out, byte(int8(1-(j-i))), raw[i])
			i = j
			continue
		}
		end := min(i+128, len(raw))
		out = append(out, byte(end-i-1))
		out = append(out, raw[i:end]...)
		i = end
	}
	return out
}

// chunks encodes the samples into strips or tiles.
func (s *tiffSpec) chunks(t *testing.T) [][]byte {
	t.Helper()
	spp := len(s.bands)
	bytesPer := s.bps / 8
	chunkSpp, planes := spp, 1
	if s.planar {
		chunkSpp, planes = 1, spp
	}

	cw, ch, across, down := s.width, s.rowsPerStrip, 1, 0
	if ch == 0 {
		ch = s.height
	}
	if s.tileW > 0 {
		cw, ch = s.tileW, s.tileH
		across = (s.width + cw - 1) / cw
	}
	down = (s.height + ch - 1) / ch

	var out [][]byte
	for p := 0; p < planes; p++ {
		for cy := 0; cy < down; cy++ {
			for cx := 0; cx < across; cx++ {
				rows := ch
				if s.tileW == 0 {
					rows = min(ch, s.height-cy*ch)
				}
				raw := make([]byte, cw*rows*chunkSpp*bytesPer)
				for r := 0; r < rows; r++ {
					for c := 0; c < cw; c++ {
						x, y := cx*cw+c, cy*ch+r
						if x >= s.width || y >= s.height {
							continue
						}
						for k := 0; k < chunkSpp; k++ {
							band := k
							if s.planar {
								band = p
							}
							off := ((r*cw+c)*chunkSpp + k) * bytesPer
							encodeSample(s.bo, raw[off:], s.bps, s.format, s.bands[band][y*s.width+x])
						}
					}
				}
				switch s.predictor {
				case predictorHorizontal:
					applyHorizontal(s.bo, raw, cw, chunkSpp, s.bps)
				case predictorFloat:
					applyFloat(s.bo, raw, cw, chunkSpp, s.bps)
				}
				if s.compress != nil {
					raw = s.compress(t, raw)
				}
				out = append(out, raw)
			}
		}
	}
	return out
}

// build serialises the spec into TIFF bytes.
func (s *tiffSpec) build(t *testing.T) []byte {
	t.Helper()
	if s.bo == nil {
		s.bo = binary.LittleEndian
	}

	var buf bytes.Buffer
	if s.bo == binary.LittleEndian {
		buf.WriteString("II")
	} else {
		buf.WriteString("MM")
	}
	hdr := make([]byte, 14)
	if s.bigTIFF {
		s.bo.PutUint16(hdr, 43)
		s.bo.PutUint16(hdr[2:], 8)
		buf.Write(hdr[:14]) // first IFD offset patched below
	} else {
		s.bo.PutUint16(hdr, 42)
		buf.Write(hdr[:6])
	}

	var specs []*tiffSpec
	if s.prepend != nil {
		s.prepend.bo, s.prepend.bigTIFF = s.bo, s.bigTIFF
		specs = append(specs, s.prepend)
	}
	specs = append(specs, s)

	var ifdOffsets []int
	var nextPatch []int
	for _, spec := range specs {
		off, patch := spec.writeIFD(t, &buf)
		ifdOffsets = append(ifdOffsets, off)
		nextPatch = append(nextPatch, patch)
	}

	out := buf.Bytes()
	if s.bigTIFF {
		s.bo.PutUint64(out[8:], uint64(ifdOffsets[0]))
	} else {
		s.bo.PutUint32(out[4:], uint32(ifdOffsets[0]))
	}
	for i := 0; i+1 < len(ifdOffsets); i++ {
		if s.bigTIFF {
			s.bo.PutUint64(out[nextPatch[i]:], uint64(ifdOffsets[i+1]))
		} else {
			s.bo.PutUint32(out[nextPatch[i]:], uint32(ifdOffsets[i+1]))
		}
	}
	return out
}

// writeIFD appends the chunk data, the IFD and its out-of-line values. It
// returns the IFD offset and the position of its next-IFD field.
func (s *tiffSpec) writeIFD(t *testing.T, buf *bytes.Buffer) (int, int) {
	t.Helper()
	chunks := s.chunkData
	if chunks == nil {
		chunks = s.chunks(t)
	}
	offsets := make([]uint64, len(chunks))
	counts := make([]uint64, len(chunks))
	for i, c := range chunks {
		offsets[i] = uint64(buf.Len())
		counts[i] = uint64(len(c))
		buf.Write(c)
	}
	if buf.Len()%2 == 1 {
		buf.WriteByte(0)
	}

	spp := len(s.bands)
	if s.chunkData != nil {
		spp = s.spp
	}
	bpsVals := make([]uint16, spp)
	for i := range bpsVals {
		bpsVals[i] = uint16(s.bps)
	}
	format := s.format
	if format == 0 {
		format = sampleFormatUint
	}
	compression := s.compression
	if compression == 0 {
		compression = compressionNone
	}
	planar := uint16(1)
	if s.planar {
		planar = 2
	}
	photometric := uint16(1)
	if spp >= 3 {
		photometric = 2
	}

	tags := []testTag{
		longsTag(tagNewSubfileType, uint64(s.subfileType)),
		longsTag(tagImageWidth, uint64(s.width)),
		longsTag(tagImageLength, uint64(s.height)),
		shortsTag(tagBitsPerSample, bpsVals...),
		shortsTag(tagCompression, compression),
		shortsTag(tagPhotometric, photometric),
		shortsTag(tagSamplesPerPixel, uint16(spp)),
		shortsTag(tagPlanarConfig, planar),
		shortsTag(tagSampleFormat, format),
	}
	if s.predictor != 0 {
		tags = append(tags, shortsTag(tagPredictor, s.predictor))
	}
	if s.tileW > 0 {
		tags = append(tags,
			longsTag(tagTileWidth, uint64(s.tileW)),
			longsTag(tagTileLength, uint64(s.tileH)),
			longsTag(tagTileOffsets, offsets...),
			longsTag(tagTileByteCounts, counts...))
	} else {
		rps := s.rowsPerStrip
		if rps == 0 {
			rps = s.height
		}
		tags = append(tags,
			longsTag(tagRowsPerStrip, uint64(rps)),
			longsTag(tagStripOffsets, offsets...),
			longsTag(tagStripByteCounts, counts...))
	}
	tags = append(tags, s.tags...)
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].tag < tags[j].tag })

	countSize, entrySize, offSize := 2, 12, 4
	if s.bigTIFF {
		countSize, entrySize, offSize = 8, 20, 8
	}
	ifdOffset := buf.Len()
	dataOffset := ifdOffset + countSize + len(tags)*entrySize + offSize

	ifd := make([]byte, countSize+len(tags)*entrySize+offSize)
	var extra []byte
	if s.bigTIFF {
		s.bo.PutUint64(ifd, uint64(len(tags)))
	} else {
		s.bo.PutUint16(ifd, uint16(len(tags)))
	}
	for i, tg := range tags {
		e := ifd[countSize+i*entrySize:]
		s.bo.PutUint16(e, tg.tag)
		s.bo.PutUint16(e[2:], tg.dt)
		data := tg.data(s.bo)
		inline := 4
		if s.bigTIFF {
			s.bo.PutUint64(e[4:], tg.count)
			inline = 8
			e = e[12:]
		} else {
			s.bo.PutUint32(e[4:], uint32(tg.count))
			e = e[8:]
		}
		if len(data) <= inline {
			copy(e, data)
			continue
		}
		off := uint64(dataOffset + len(extra))
		if s.bigTIFF {
			s.bo.PutUint64(e, off)
		} else {
			s.bo.PutUint32(e, uint32(off))
		}
		extra = append(extra, data...)
		if len(extra)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	buf.Write(ifd)
	buf.Write(extra)
	return ifdOffset, ifdOffset + countSize + len(tags)*entrySize
}

// ramp returns w*h samples lo, lo+step, ...
func ramp(n int, lo, step float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = lo + float64(i)*step
	}
	return v
}
