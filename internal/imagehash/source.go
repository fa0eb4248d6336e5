package imagehash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds width*height of an image accepted for hashing.
const DefaultMaxPixels = 1 << 24

// Source yields encoded image bytes. String identifies it in diagnostics.
type Source interface {
	Bytes() ([]byte, error)
	String() string
}

type fileSource string

// FileSource reads the image at path each time Bytes is called.
func FileSource(path string) Source { return fileSource(path) }

func (f fileSource) String() string { return string(f) }

func (f fileSource) Bytes() ([]byte, error) {
	if f == "" {
		return nil, newError("load", CategoryResource, ErrEmptyPath)
	}
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, newError("load", CategoryResource, err)
	}
	return data, nil
}

type bytesSource []byte

// BytesSource serves an image held in memory. The slice is not copied.
func BytesSource(data []byte) Source { return bytesSource(data) }

func (b bytesSource) String() string { return fmt.Sprintf("<memory:%d bytes>", len(b)) }

func (b bytesSource) Bytes() ([]byte, error) { return b, nil }

// Decode sniffs and decodes data. The header is checked against maxPixels
// before any pixel memory is allocated; maxPixels <= 0 disables the check.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, newError("decode", CategoryResource, ErrEmptyData)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, newError("decode", CategoryResource, fmt.Errorf("%w: %s", ErrNotImage, mime.String()))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, newError("decode", CategoryResource, fmt.Errorf("%s: %w", mime.String(), err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, newError("decode", CategoryResource, ErrDegenerateImage)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, newError("decode", CategoryResource,
			fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newError("decode", CategoryResource, fmt.Errorf("%s: %w", mime.String(), err))
	}
	if b := img.Bounds(); b.Empty() {
		return nil, newError("decode", CategoryResource, ErrDegenerateImage)
	}
	return img, nil
}
