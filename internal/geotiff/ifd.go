package geotiff

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TIFF tag IDs.
const (
	tagNewSubfileType      = 254
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfig        = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagJPEGTables          = 347
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
	tagGDALNoData          = 42113
)

// TIFF data types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndef     = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtIFD       = 13
	dtLong8     = 16
	dtSLong8    = 17
	dtIFD8      = 18
)

// Compression schemes.
const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionJPEG       = 7
	compressionDeflate    = 8
	compressionPackBits   = 32773
	compressionDeflateOld = 32946
)

// Sample formats.
const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// Predictors.
const (
	predictorNone       = 1
	predictorHorizontal = 2
	predictorFloat      = 3
)

// maxIFDs bounds the IFD chain so that a looping next-offset cannot spin forever.
const maxIFDs = 64

// IFD represents a parsed TIFF Image File Directory.
type IFD struct {
	Offset              uint64
	SubfileType         uint32
	Width               uint32
	Height              uint32
	TileWidth           uint32
	TileHeight          uint32
	RowsPerStrip        uint32
	BitsPerSample       []uint16
	SamplesPerPixel     uint16
	SampleFormat        uint16
	Compression         uint16
	Photometric         uint16
	PlanarConfig        uint16
	Predictor           uint16
	StripOffsets        []uint64
	StripByteCounts     []uint64
	TileOffsets         []uint64
	TileByteCounts      []uint64
	JPEGTables          []byte
	ModelTiepoint       []float64
	ModelPixelScale     []float64
	ModelTransformation []float64
	GeoKeys             []uint16
	GeoDoubleParams     []float64
	GeoASCIIParams      string
	NoData              string
}

// Tiled reports whether the image is stored in tiles rather than strips.
func (ifd *IFD) Tiled() bool {
	return ifd.TileWidth > 0 && ifd.TileHeight > 0
}

// Overview reports whether the IFD is a reduced-resolution copy of another.
func (ifd *IFD) Overview() bool {
	return ifd.SubfileType&1 != 0
}

// TilesAcross returns the number of tiles in the horizontal direction.
func (ifd *IFD) TilesAcross() int {
	return chunksCovering(ifd.Width, ifd.TileWidth)
}

// TilesDown returns the number of tiles in the vertical direction.
func (ifd *IFD) TilesDown() int {
	return chunksCovering(ifd.Height, ifd.TileHeight)
}

// StripsPerPlane returns the number of strips covering the image height.
func (ifd *IFD) StripsPerPlane() int {
	return chunksCovering(ifd.Height, ifd.rowsPerStrip())
}

// chunksCovering returns ceil(total/size), computed in 64 bits so that
// sizes near the uint32 limit do not wrap.
func chunksCovering(total, size uint32) int {
	if size == 0 {
		return 0
	}
	return int((uint64(total) + uint64(size) - 1) / uint64(size))
}

func (ifd *IFD) rowsPerStrip() uint32 {
	if ifd.RowsPerStrip == 0 || ifd.RowsPerStrip > ifd.Height {
		return ifd.Height
	}
	return ifd.RowsPerStrip
}

// BitsPerSampleUniform returns the sample width in bits, or an error when
// bands use different widths.
func (ifd *IFD) BitsPerSampleUniform() (int, error) {
	if len(ifd.BitsPerSample) == 0 {
		return 1, nil
	}
	bps := ifd.BitsPerSample[0]
	for _, b := range ifd.BitsPerSample[1:] {
		if b != bps {
			return 0, fmt.Errorf("mixed BitsPerSample %v: %w", ifd.BitsPerSample, ErrMalformedRaster)
		}
	}
	return int(bps), nil
}

// tiffEntry is a raw TIFF directory entry.
type tiffEntry struct {
	Tag      uint16
	DataType uint16
	Count    uint64
	Value    []byte // raw value bytes or inline value
}

// tiffFile is the parsed container: byte order, variant and every IFD.
type tiffFile struct {
	data    []byte
	bo      binary.ByteOrder
	bigTIFF bool
	ifds    []IFD
}

// parseTIFF reads all IFDs from an in-memory TIFF or BigTIFF.
func parseTIFF(data []byte) (*tiffFile, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("reading TIFF header: %d bytes: %w", len(data), ErrMalformedRaster)
	}

	var bo binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid TIFF byte order %x: %w", data[0:2], ErrMalformedRaster)
	}

	f := &tiffFile{data: data, bo: bo}
	var firstIFDOffset uint64
	switch magic := bo.Uint16(data[2:4]); magic {
	case 42:
		firstIFDOffset = uint64(bo.Uint32(data[4:8]))
	case 43:
		// BigTIFF: bytes 4-5 = offset size (8), bytes 6-7 = always 0, bytes 8-15 = first IFD offset
		if len(data) < 16 {
			return nil, fmt.Errorf("reading BigTIFF header: %w", ErrMalformedRaster)
		}
		f.bigTIFF = true
		firstIFDOffset = bo.Uint64(data[8:16])
	default:
		return nil, fmt.Errorf("invalid TIFF magic %d: %w", magic, ErrMalformedRaster)
	}

	seen := make(map[uint64]bool)
	for offset := firstIFDOffset; offset != 0; {
		if seen[offset] || len(f.ifds) >= maxIFDs {
			return nil, fmt.Errorf("IFD chain loops at offset %d: %w", offset, ErrMalformedRaster)
		}
		seen[offset] = true

		ifd, next, err := f.parseOneIFD(offset)
		if err != nil {
			return nil, fmt.Errorf("parsing IFD at offset %d: %w", offset, err)
		}
		f.ifds = append(f.ifds, ifd)
		offset = next
	}

	if len(f.ifds) == 0 {
		return nil, fmt.Errorf("no IFDs found: %w", ErrMalformedRaster)
	}
	return f, nil
}

// slice returns data[off:off+n] or ErrMalformedRaster when out of range.
func (f *tiffFile) slice(off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(len(f.data)) {
		return nil, fmt.Errorf("range [%d:%d] exceeds file size %d: %w", off, end, len(f.data), ErrMalformedRaster)
	}
	return f.data[off:end], nil
}

func (f *tiffFile) parseOneIFD(offset uint64) (IFD, uint64, error) {
	countSize, entrySize, offsetSize := uint64(2), uint64(12), uint64(4)
	if f.bigTIFF {
		countSize, entrySize, offsetSize = 8, 20, 8
	}

	buf, err := f.slice(offset, countSize)
	if err != nil {
		return IFD{}, 0, err
	}
	var numEntries uint64
	if f.bigTIFF {
		numEntries = f.bo.Uint64(buf)
	} else {
		numEntries = uint64(f.bo.Uint16(buf))
	}

	if numEntries > uint64(len(f.data))/entrySize {
		return IFD{}, 0, fmt.Errorf("%d entries exceed file size: %w", numEntries, ErrMalformedRaster)
	}
	table, err := f.slice(offset+countSize, numEntries*entrySize+offsetSize)
	if err != nil {
		return IFD{}, 0, err
	}

	entries := make([]tiffEntry, numEntries)
	for i := range entries {
		entries[i] = f.parseTiffEntry(table[uint64(i)*entrySize : uint64(i+1)*entrySize])
	}

	// Read next IFD offset.
	tail := table[numEntries*entrySize:]
	var nextOffset uint64
	if f.bigTIFF {
		nextOffset = f.bo.Uint64(tail)
	} else {
		nextOffset = uint64(f.bo.Uint32(tail))
	}

	// Resolve entries that point to external data.
	for i := range entries {
		if err := f.resolveEntry(&entries[i]); err != nil {
			return IFD{}, 0, fmt.Errorf("resolving entry tag %d: %w", entries[i].Tag, err)
		}
	}

	ifd := buildIFD(entries, f.bo)
	ifd.Offset = offset
	return ifd, nextOffset, nil
}

func (f *tiffFile) parseTiffEntry(buf []byte) tiffEntry {
	e := tiffEntry{
		Tag:      f.bo.Uint16(buf[0:2]),
		DataType: f.bo.Uint16(buf[2:4]),
	}
	if f.bigTIFF {
		e.Count = f.bo.Uint64(buf[4:12])
		e.Value = buf[12:20]
	} else {
		e.Count = uint64(f.bo.Uint32(buf[4:8]))
		e.Value = buf[8:12]
	}
	return e
}

func dataTypeSize(dt uint16) int {
	switch dt {
	case dtByte, dtASCII, dtSByte, dtUndef:
		return 1
	case dtShort, dtSShort:
		return 2
	case dtLong, dtSLong, dtFloat, dtIFD:
		return 4
	case dtRational, dtSRational, dtDouble, dtLong8, dtSLong8, dtIFD8:
		return 8
	default:
		return 1
	}
}

// resolveEntry points the entry at its data if it doesn't fit inline.
func (f *tiffFile) resolveEntry(e *tiffEntry) error {
	totalSize := e.Count * uint64(dataTypeSize(e.DataType))
	if e.Count > uint64(len(f.data)) {
		return fmt.Errorf("count %d exceeds file size: %w", e.Count, ErrMalformedRaster)
	}

	if totalSize <= uint64(len(e.Value)) {
		// Data fits inline in the value field.
		e.Value = e.Value[:totalSize]
		return nil
	}

	// Data is stored externally; value field holds an offset.
	var dataOffset uint64
	if f.bigTIFF {
		dataOffset = f.bo.Uint64(e.Value)
	} else {
		dataOffset = uint64(f.bo.Uint32(e.Value))
	}
	data, err := f.slice(dataOffset, totalSize)
	if err != nil {
		return err
	}
	e.Value = data
	return nil
}

func buildIFD(entries []tiffEntry, bo binary.ByteOrder) IFD {
	var ifd IFD
	ifd.SamplesPerPixel = 1
	ifd.PlanarConfig = 1
	ifd.Compression = compressionNone
	ifd.Predictor = predictorNone
	ifd.SampleFormat = sampleFormatUint

	for _, e := range entries {
		switch e.Tag {
		case tagNewSubfileType:
			ifd.SubfileType = getUint32(e, bo)
		case tagImageWidth:
			ifd.Width = getUint32(e, bo)
		case tagImageLength:
			ifd.Height = getUint32(e, bo)
		case tagTileWidth:
			ifd.TileWidth = getUint32(e, bo)
		case tagTileLength:
			ifd.TileHeight = getUint32(e, bo)
		case tagRowsPerStrip:
			ifd.RowsPerStrip = getUint32(e, bo)
		case tagBitsPerSample:
			ifd.BitsPerSample = getUint16Slice(e, bo)
		case tagSamplesPerPixel:
			ifd.SamplesPerPixel = getUint16Val(e, bo)
		case tagSampleFormat:
			if v := getUint16Slice(e, bo); len(v) > 0 {
				ifd.SampleFormat = v[0]
			}
		case tagCompression:
			ifd.Compression = getUint16Val(e, bo)
		case tagPhotometric:
			ifd.Photometric = getUint16Val(e, bo)
		case tagPlanarConfig:
			ifd.PlanarConfig = getUint16Val(e, bo)
		case tagPredictor:
			ifd.Predictor = getUint16Val(e, bo)
		case tagStripOffsets:
			ifd.StripOffsets = getUint64Slice(e, bo)
		case tagStripByteCounts:
			ifd.StripByteCounts = getUint64Slice(e, bo)
		case tagTileOffsets:
			ifd.TileOffsets = getUint64Slice(e, bo)
		case tagTileByteCounts:
			ifd.TileByteCounts = getUint64Slice(e, bo)
		case tagJPEGTables:
			ifd.JPEGTables = e.Value
		case tagModelTiepoint:
			ifd.ModelTiepoint = getFloat64Slice(e, bo)
		case tagModelPixelScale:
			ifd.ModelPixelScale = getFloat64Slice(e, bo)
		case tagModelTransformation:
			ifd.ModelTransformation = getFloat64Slice(e, bo)
		case tagGeoKeyDirectory:
			ifd.GeoKeys = getUint16Slice(e, bo)
		case tagGeoDoubleParams:
			ifd.GeoDoubleParams = getFloat64Slice(e, bo)
		case tagGeoASCIIParams:
			ifd.GeoASCIIParams = asciiValue(e)
		case tagGDALNoData:
			ifd.NoData = asciiValue(e)
		}
	}

	return ifd
}

func asciiValue(e tiffEntry) string {
	v := e.Value
	for len(v) > 0 && v[len(v)-1] == 0 {
		v = v[:len(v)-1]
	}
	return string(v)
}

func getUint16Val(e tiffEntry, bo binary.ByteOrder) uint16 {
	return uint16(getUint32(e, bo))
}

func getUint32(e tiffEntry, bo binary.ByteOrder) uint32 {
	if len(e.Value) < dataTypeSize(e.DataType) || len(e.Value) == 0 {
		return 0
	}
	switch e.DataType {
	case dtShort:
		return uint32(bo.Uint16(e.Value))
	case dtLong:
		return bo.Uint32(e.Value)
	case dtLong8:
		return uint32(bo.Uint64(e.Value))
	default:
		return uint32(e.Value[0])
	}
}

func getUint16Slice(e tiffEntry, bo binary.ByteOrder) []uint16 {
	vals := getUint64Slice(e, bo)
	result := make([]uint16, len(vals))
	for i, v := range vals {
		result[i] = uint16(v)
	}
	return result
}

func getUint64Slice(e tiffEntry, bo binary.ByteOrder) []uint64 {
	size := dataTypeSize(e.DataType)
	n := len(e.Value) / size
	result := make([]uint64, n)
	for i := 0; i < n; i++ {
		b := e.Value[i*size:]
		switch e.DataType {
		case dtShort, dtSShort:
			result[i] = uint64(bo.Uint16(b))
		case dtLong, dtSLong, dtIFD:
			result[i] = uint64(bo.Uint32(b))
		case dtLong8, dtSLong8, dtIFD8:
			result[i] = bo.Uint64(b)
		default:
			result[i] = uint64(b[0])
		}
	}
	return result
}

func getFloat64Slice(e tiffEntry, bo binary.ByteOrder) []float64 {
	size := dataTypeSize(e.DataType)
	n := len(e.Value) / size
	result := make([]float64, n)
	for i := 0; i < n; i++ {
		b := e.Value[i*size:]
		switch e.DataType {
		case dtDouble:
			result[i] = math.Float64frombits(bo.Uint64(b))
		case dtFloat:
			result[i] = float64(math.Float32frombits(bo.Uint32(b)))
		}
	}
	return result
}
