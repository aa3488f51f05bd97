package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURL is returned when an image payload is not a base64 data URL.
var ErrInvalidDataURL = errors.New("invalid image data url")

// Image is an opaque raster blob: a reference picture attached by the user
// or a rendered snapshot of the response chart.
type Image struct {
	MediaType string
	Data      []byte
}

// IsEmpty reports whether the image carries no bytes.
func (i Image) IsEmpty() bool {
	return len(i.Data) == 0
}

// DataURL encodes the image as a base64 data URL.
func (i Image) DataURL() string {
	mediaType := i.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseDataURL decodes "data:<media type>;base64,<payload>".
func ParseDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return Image{}, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return Image{}, fmt.Errorf("%w: media type %q is not an image", ErrInvalidDataURL, mediaType)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	return Image{MediaType: mediaType, Data: data}, nil
}
