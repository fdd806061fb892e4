package encode

import (
	"encoding/base64"
	"image"
	"strings"
)

// DataURL encodes img and returns it as a base64 data URL suitable for an
// <img> src or a map image overlay.
func DataURL(enc Encoder, img image.Image) (string, error) {
	data, err := enc.Encode(img)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(len("data:;base64,") + len(enc.ContentType()) + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString("data:")
	sb.WriteString(enc.ContentType())
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String(), nil
}
