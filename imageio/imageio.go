// Package imageio writes render target snapshots to disk.
//
// Pixel data is 8-bit RGBA as read back from the GPU: rows run bottom to
// top. The TGA writer keeps that order since TGA's default origin is the
// lower left corner; other formats are flipped.
package imageio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

const tgaHeaderLen = 18

func checkPixels(w, h int, rgba []byte) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid image size %dx%d", w, h)
	}
	if len(rgba) != w*h*4 {
		return fmt.Errorf("pixel buffer has %d bytes, want %d", len(rgba), w*h*4)
	}
	return nil
}

// WriteTGA writes an uncompressed 24-bit true-color TGA. The header is
// two zero bytes, the image type (2), nine zero bytes, little-endian
// 16-bit width and height, the bit depth (24) and a zero descriptor.
// Pixels follow as BGR.
func WriteTGA(wr io.Writer, w, h int, rgba []byte) error {
	if err := checkPixels(w, h, rgba); err != nil {
		return err
	}
	if w > 0xFFFF || h > 0xFFFF {
		return fmt.Errorf("image %dx%d too large for TGA", w, h)
	}

	var header [tgaHeaderLen]byte
	header[2] = 2
	binary.LittleEndian.PutUint16(header[12:], uint16(w))
	binary.LittleEndian.PutUint16(header[14:], uint16(h))
	header[16] = 24

	bw := bufio.NewWriter(wr)
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	px := make([]byte, 0, w*h*3)
	for i := 0; i < len(rgba); i += 4 {
		px = append(px, rgba[i+2], rgba[i+1], rgba[i])
	}
	if _, err := bw.Write(px); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadTGA reads a file written by WriteTGA and returns RGB pixels in file
// order (bottom row first).
func ReadTGA(r io.Reader) (w, h int, rgb []byte, err error) {
	var header [tgaHeaderLen]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, 0, nil, fmt.Errorf("read TGA header: %w", err)
	}
	if header[2] != 2 || header[16] != 24 {
		return 0, 0, nil, fmt.Errorf("TGA type %d depth %d: %w", header[2], header[16], ErrUnsupportedFormat)
	}
	w = int(binary.LittleEndian.Uint16(header[12:]))
	h = int(binary.LittleEndian.Uint16(header[14:]))

	bgr := make([]byte, w*h*3)
	if _, err = io.ReadFull(r, bgr); err != nil {
		return 0, 0, nil, fmt.Errorf("read TGA pixels: %w", err)
	}
	for i := 0; i < len(bgr); i += 3 {
		bgr[i], bgr[i+2] = bgr[i+2], bgr[i]
	}
	return w, h, bgr, nil
}

// ToImage converts bottom-up RGBA pixels to a top-down image.
func ToImage(w, h int, rgba []byte) (*image.NRGBA, error) {
	if err := checkPixels(w, h, rgba); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	stride := w * 4
	for y := 0; y < h; y++ {
		src := rgba[(h-1-y)*stride : (h-y)*stride]
		copy(img.Pix[y*img.Stride:y*img.Stride+stride], src)
	}
	return img, nil
}

// Encode writes the pixels in the format named by ext (".tga", ".png",
// ".bmp", ".tif" or ".tiff").
func Encode(wr io.Writer, ext string, w, h int, rgba []byte) error {
	ext = strings.ToLower(ext)
	if ext == ".tga" {
		return WriteTGA(wr, w, h, rgba)
	}
	img, err := ToImage(w, h, rgba)
	if err != nil {
		return err
	}
	switch ext {
	case ".png":
		return png.Encode(wr, img)
	case ".bmp":
		return bmp.Encode(wr, img)
	case ".tif", ".tiff":
		return tiff.Encode(wr, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
}

// Save writes the pixels to filename, choosing the format by extension. A
// partially written file is removed.
func Save(filename string, w, h int, rgba []byte) (err error) {
	ext := filepath.Ext(filename)
	if !Supported(ext) {
		return fmt.Errorf("save %s: %q: %w", filename, ext, ErrUnsupportedFormat)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("save %s: %w", filename, cerr)
		}
		if err != nil {
			os.Remove(filename)
		}
	}()
	if err := Encode(f, ext, w, h, rgba); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	return nil
}

func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".tga", ".png", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}
