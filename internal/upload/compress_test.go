package upload

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 120, A: 255})
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestCompressFitsLongEdge(t *testing.T) {
	c := NewCompressor(100, 80)

	out, err := c.Compress(pngBytes(t, 400, 200))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestCompressKeepsSmallImageSize(t *testing.T) {
	c := NewCompressor(0, 0)
	assert.Equal(t, 1920, c.MaxDimension)
	assert.Equal(t, 80, c.Quality)

	out, err := c.Compress(pngBytes(t, 30, 60))
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Width)
	assert.Equal(t, 60, cfg.Height)
}

func TestPrepare(t *testing.T) {
	c := NewCompressor(64, 80)

	t.Run("image is re-encoded", func(t *testing.T) {
		data, ct, compressed := c.Prepare(File{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 128, 128)})
		assert.True(t, compressed)
		assert.Equal(t, "image/jpeg", ct)
		assert.NotEmpty(t, data)
	})

	t.Run("corrupt image falls back to original", func(t *testing.T) {
		raw := []byte("not really a jpeg")
		data, ct, compressed := c.Prepare(File{Name: "a.jpg", ContentType: "image/jpeg", Data: raw})
		assert.False(t, compressed)
		assert.Equal(t, "image/jpeg", ct)
		assert.Equal(t, raw, data)
	})

	t.Run("non image passes through", func(t *testing.T) {
		raw := []byte("%PDF-1.4 body")
		data, ct, compressed := c.Prepare(File{Name: "a.pdf", ContentType: "application/pdf", Data: raw})
		assert.False(t, compressed)
		assert.Equal(t, "application/pdf", ct)
		assert.Equal(t, raw, data)
	})

	t.Run("missing content type is sniffed", func(t *testing.T) {
		_, ct, compressed := c.Prepare(File{Name: "blob", Data: pngBytes(t, 10, 10)})
		assert.True(t, compressed)
		assert.Equal(t, "image/jpeg", ct)
	})
}
