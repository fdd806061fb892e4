package geotiff

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/tiff/lzw"
)

// decompress expands one strip or tile to exactly n bytes. Uncompressed
// chunks are returned as a sub-slice of src; callers that modify the result
// must copy it first.
func decompress(compression uint16, src []byte, n int) ([]byte, error) {
	switch compression {
	case compressionNone:
		if len(src) < n {
			return nil, fmt.Errorf("uncompressed chunk has %d bytes, want %d: %w", len(src), n, ErrMalformedRaster)
		}
		return src[:n], nil
	case compressionLZW:
		r := lzw.NewReader(bytes.NewReader(src), lzw.MSB, 8)
		defer r.Close()
		return readChunk(r, n, "LZW")
	case compressionDeflate, compressionDeflateOld:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("deflate header: %v: %w", err, ErrMalformedRaster)
		}
		defer r.Close()
		return readChunk(r, n, "deflate")
	case compressionPackBits:
		return unpackBits(src, n)
	default:
		return nil, fmt.Errorf("unsupported compression %d: %w", compression, ErrMalformedRaster)
	}
}

func readChunk(r io.Reader, n int, codec string) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%s chunk: %v: %w", codec, err, ErrMalformedRaster)
	}
	return buf, nil
}

// unpackBits decodes Apple PackBits run-length encoding.
func unpackBits(src []byte, n int) ([]byte, error) {
	dst := make([]byte, 0, n)
	for i := 0; i < len(src) && len(dst) < n; {
		b := int8(src[i])
		i++
		switch {
		case b >= 0:
			count := int(b) + 1
			if i+count > len(src) {
				return nil, fmt.Errorf("PackBits literal run overflows input: %w", ErrMalformedRaster)
			}
			dst = append(dst, src[i:i+count]...)
			i += count
		case b != -128:
			if i >= len(src) {
				return nil, fmt.Errorf("PackBits repeat run overflows input: %w", ErrMalformedRaster)
			}
			for j := 0; j < 1-int(b); j++ {
				dst = append(dst, src[i])
			}
			i++
		}
	}
	if len(dst) < n {
		return nil, fmt.Errorf("PackBits chunk has %d bytes, want %d: %w", len(dst), n, ErrMalformedRaster)
	}
	return dst[:n], nil
}

// decodeJPEGChunk decodes a JPEG-compressed tile or strip into interleaved
// 8-bit samples, optionally prepending JPEG tables.
func decodeJPEGChunk(ifd *IFD, data []byte, w, h, spp int) ([]byte, error) {
	jpegData := data
	if len(ifd.JPEGTables) > 0 {
		// JPEG tables contain the header with quantization/Huffman tables.
		// Strip the trailing EOI (0xFFD9) from tables and the leading SOI (0xFFD8) from data.
		tables := ifd.JPEGTables
		if len(tables) >= 2 && tables[len(tables)-2] == 0xFF && tables[len(tables)-1] == 0xD9 {
			tables = tables[:len(tables)-2]
		}
		chunk := data
		if len(chunk) >= 2 && chunk[0] == 0xFF && chunk[1] == 0xD8 {
			chunk = chunk[2:]
		}
		jpegData = make([]byte, len(tables)+len(chunk))
		copy(jpegData, tables)
		copy(jpegData[len(tables):], chunk)
	}

	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("decoding JPEG chunk: %v: %w", err, ErrMalformedRaster)
	}
	if spp != 1 && spp != 3 {
		return nil, fmt.Errorf("JPEG with %d samples per pixel: %w", spp, ErrMalformedRaster)
	}

	out := make([]byte, w*h*spp)
	b := img.Bounds()
	for y := 0; y < h && y < b.Dy(); y++ {
		for x := 0; x < w && x < b.Dx(); x++ {
			i := (y*w + x) * spp
			if g, ok := img.(*image.Gray); ok {
				out[i] = g.GrayAt(b.Min.X+x, b.Min.Y+y).Y
				if spp == 3 {
					out[i+1], out[i+2] = out[i], out[i]
				}
				continue
			}
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if spp == 1 {
				out[i] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 24)
				continue
			}
			out[i], out[i+1], out[i+2] = uint8(r>>8), uint8(g>>8), uint8(bl>>8)
		}
	}
	return out, nil
}
