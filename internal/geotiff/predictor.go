package geotiff

import (
	"encoding/binary"
	"fmt"
)

// undoPredictor reverses the TIFF differencing predictors in place. buf
// holds rows of width pixels with spp interleaved samples of bps bits.
func undoPredictor(predictor uint16, buf []byte, bo binary.ByteOrder, width, spp, bps int) error {
	switch predictor {
	case 0, predictorNone:
		return nil
	case predictorHorizontal:
		return undoHorizontal(buf, bo, width, spp, bps)
	case predictorFloat:
		return undoFloat(buf, bo, width, spp, bps)
	default:
		return fmt.Errorf("unsupported predictor %d: %w", predictor, ErrMalformedRaster)
	}
}

// undoHorizontal integrates per-sample differences along each row.
func undoHorizontal(buf []byte, bo binary.ByteOrder, width, spp, bps int) error {
	bytesPer := bps / 8
	rowLen := width * spp * bytesPer
	if rowLen == 0 {
		return nil
	}
	for row := 0; row+rowLen <= len(buf); row += rowLen {
		r := buf[row : row+rowLen]
		switch bps {
		case 8:
			for i := spp; i < len(r); i++ {
				r[i] += r[i-spp]
			}
		case 16:
			for i := spp; i < width*spp; i++ {
				v := bo.Uint16(r[2*i:]) + bo.Uint16(r[2*(i-spp):])
				bo.PutUint16(r[2*i:], v)
			}
		case 32:
			for i := spp; i < width*spp; i++ {
				v := bo.Uint32(r[4*i:]) + bo.Uint32(r[4*(i-spp):])
				bo.PutUint32(r[4*i:], v)
			}
		case 64:
			for i := spp; i < width*spp; i++ {
				v := bo.Uint64(r[8*i:]) + bo.Uint64(r[8*(i-spp):])
				bo.PutUint64(r[8*i:], v)
			}
		default:
			return fmt.Errorf("horizontal predictor with %d-bit samples: %w", bps, ErrMalformedRaster)
		}
	}
	return nil
}

// undoFloat reverses the floating point predictor: each row stores the
// bytes of its samples split into planes (most significant first), then
// byte-wise differenced. The result is rewritten in the file's byte order.
func undoFloat(buf []byte, bo binary.ByteOrder, width, spp, bps int) error {
	if bps != 16 && bps != 32 && bps != 64 {
		return fmt.Errorf("floating point predictor with %d-bit samples: %w", bps, ErrMalformedRaster)
	}
	bytesPer := bps / 8
	n := width * spp
	rowLen := n * bytesPer
	if rowLen == 0 {
		return nil
	}
	tmp := make([]byte, rowLen)
	little := bo == binary.LittleEndian
	for row := 0; row+rowLen <= len(buf); row += rowLen {
		r := buf[row : row+rowLen]
		for i := spp; i < rowLen; i++ {
			r[i] += r[i-spp]
		}
		copy(tmp, r)
		for j := 0; j < n; j++ {
			for k := 0; k < bytesPer; k++ {
				b := tmp[k*n+j]
				if little {
					r[j*bytesPer+bytesPer-1-k] = b
				} else {
					r[j*bytesPer+k] = b
				}
			}
		}
	}
	return nil
}
