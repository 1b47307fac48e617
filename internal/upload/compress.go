package upload

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// Compressor downscales images so the long edge fits MaxDimension and
// re-encodes them as JPEG.
type Compressor struct {
	MaxDimension int
	Quality      int
}

// NewCompressor applies defaults of 1920px and quality 80.
func NewCompressor(maxDimension, quality int) *Compressor {
	if maxDimension <= 0 {
		maxDimension = 1920
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Compressor{MaxDimension: maxDimension, Quality: quality}
}

// IsImage reports whether contentType names a raster image we can decode.
func IsImage(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

// Compress returns the re-encoded JPEG bytes of data.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = c.fit(img)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(c.Quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compressor) fit(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= c.MaxDimension && h <= c.MaxDimension {
		return img
	}
	if w >= h {
		return imaging.Resize(img, c.MaxDimension, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, c.MaxDimension, imaging.Lanczos)
}

// Prepare returns the bytes and content type to upload for f. Images are
// compressed; any compression failure falls back to the original bytes.
func (c *Compressor) Prepare(f File) (data []byte, contentType string, compressed bool) {
	contentType = f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(f.Data).String()
	}
	if c == nil || !IsImage(contentType) {
		return f.Data, contentType, false
	}
	out, err := c.Compress(f.Data)
	if err != nil {
		return f.Data, contentType, false
	}
	return out, "image/jpeg", true
}
