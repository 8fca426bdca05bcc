package imageio

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func solid(w, h int, r, g, b byte) []byte {
	px := make([]byte, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		px = append(px, r, g, b, 255)
	}
	return px
}

func TestTGAHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTGA(&buf, 300, 2, solid(300, 2, 10, 20, 30)))

	b := buf.Bytes()
	require.Len(t, b, 18+300*2*3)
	assert.Equal(t, []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0}, b[:12])
	assert.Equal(t, []byte{0x2C, 0x01}, b[12:14], "width little-endian")
	assert.Equal(t, []byte{0x02, 0x00}, b[14:16], "height little-endian")
	assert.Equal(t, byte(24), b[16])
	assert.Equal(t, byte(0), b[17])
	assert.Equal(t, []byte{30, 20, 10}, b[18:21], "BGR order")
}

func TestTGARoundTrip(t *testing.T) {
	w, h := 5, 3
	px := solid(w, h, 200, 100, 50)
	// mark the first (bottom) row
	px[0], px[1], px[2] = 1, 2, 3

	var buf bytes.Buffer
	require.NoError(t, WriteTGA(&buf, w, h, px))

	gw, gh, rgb, err := ReadTGA(&buf)
	require.NoError(t, err)
	assert.Equal(t, w, gw)
	assert.Equal(t, h, gh)
	assert.Equal(t, []byte{1, 2, 3}, rgb[:3])
	for i := 3; i < len(rgb); i += 3 {
		assert.Equal(t, []byte{200, 100, 50}, rgb[i:i+3])
	}
}

func TestWriteTGARejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteTGA(&buf, 2, 2, make([]byte, 3)))
	assert.Error(t, WriteTGA(&buf, 0, 2, nil))
	assert.Error(t, WriteTGA(&buf, 70000, 1, make([]byte, 70000*4)))
}

func TestToImageFlipsRows(t *testing.T) {
	px := []byte{
		1, 1, 1, 255, // bottom row
		9, 9, 9, 255, // top row
	}
	img, err := ToImage(1, 2, px)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), img.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(1), img.NRGBAAt(0, 1).R)
}

func TestSaveByExtension(t *testing.T) {
	dir := t.TempDir()
	px := solid(4, 4, 255, 0, 0)

	for _, name := range []string{"a.tga", "a.png", "a.bmp", "a.tif"} {
		require.NoError(t, Save(filepath.Join(dir, name), 4, 4, px), name)
	}

	f, err := os.Open(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	r, g, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xFFFF), r)
	assert.Equal(t, uint32(0), g)

	bf, err := os.Open(filepath.Join(dir, "a.bmp"))
	require.NoError(t, err)
	defer bf.Close()
	cfg, err := bmp.DecodeConfig(bf)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)
}

func TestSaveErrors(t *testing.T) {
	dir := t.TempDir()
	err := Save(filepath.Join(dir, "a.jpg"), 1, 1, solid(1, 1, 0, 0, 0))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	err = Save(filepath.Join(dir, "missing", "a.tga"), 1, 1, solid(1, 1, 0, 0, 0))
	assert.Error(t, err)

	name := filepath.Join(dir, "short.tga")
	assert.Error(t, Save(name, 2, 2, make([]byte, 4)))
	_, statErr := os.Stat(name)
	assert.True(t, os.IsNotExist(statErr), "partial file removed")
}
