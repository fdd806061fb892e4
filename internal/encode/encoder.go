// Package encode renders decoded rasters into displayable image formats.
package encode

import (
	"fmt"
	"image"
	"strings"
)

// Encoder encodes an image into file bytes.
type Encoder interface {
	// Encode encodes an image to bytes in the encoder's format.
	Encode(img image.Image) ([]byte, error)

	// Format returns the format name (e.g. "jpeg", "png", "webp").
	Format() string

	// ContentType returns the MIME type of the encoded bytes.
	ContentType() string

	// FileExtension returns the appropriate file extension.
	FileExtension() string
}

// Formats lists the names accepted by NewEncoder.
var Formats = []string{"png", "jpeg", "webp", "tiff", "terrarium"}

// NewEncoder creates an encoder for the given format and quality.
func NewEncoder(format string, quality int) (Encoder, error) {
	switch format {
	case "jpeg", "jpg":
		return &JPEGEncoder{Quality: quality}, nil
	case "png":
		return &PNGEncoder{}, nil
	case "webp":
		return newWebPEncoder(quality)
	case "tiff", "tif":
		return &TIFFEncoder{}, nil
	case "terrarium":
		return &TerrariumEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported image format: %q (supported: %s)", format, strings.Join(Formats, ", "))
	}
}
