package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"render-pipeline/core"
)

type Format int

const (
	FormatNone Format = iota
	FormatRGBA8
	FormatRGBA16
	FormatRGBA16F
	FormatRGBA32F
	FormatDepth24
	FormatDepth32F
)

var formatNames = map[Format]string{
	FormatNone:     "none",
	FormatRGBA8:    "rgba8",
	FormatRGBA16:   "rgba16",
	FormatRGBA16F:  "rgba16f",
	FormatRGBA32F:  "rgba32f",
	FormatDepth24:  "depth24",
	FormatDepth32F: "depth32f",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps a configuration name such as "rgba16f" to a Format.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == s {
			return f, nil
		}
	}
	return FormatNone, fmt.Errorf("unknown texture format %q", s)
}

func (f Format) IsDepth() bool {
	return f == FormatDepth24 || f == FormatDepth32F
}

func (f Format) IsFloat() bool {
	return f == FormatRGBA16F || f == FormatRGBA32F || f == FormatDepth32F
}

// ReadbackBytesPerPixel is the pixel stride of ReadTexture output. Float
// formats are read back as 32-bit floats, RGBA16 as 16-bit unsigned.
func (f Format) ReadbackBytesPerPixel() int {
	switch f {
	case FormatRGBA8:
		return 4
	case FormatRGBA16:
		return 8
	case FormatRGBA16F, FormatRGBA32F:
		return 16
	case FormatDepth24, FormatDepth32F:
		return 4
	}
	return 0
}

type TextureDesc struct {
	Size   core.Size
	Format Format
}

// ReadbackLen is the byte length ReadTexture returns for the descriptor.
func (d TextureDesc) ReadbackLen() int {
	return d.Size.Area() * d.Format.ReadbackBytesPerPixel()
}

type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

type Wrap int

const (
	WrapClampToEdge Wrap = iota
	WrapRepeat
)

type TexParams struct {
	Min, Mag Filter
	Wrap     Wrap
}

// ToRGBA8 converts ReadTexture output of a color format to 8-bit RGBA.
// 16-bit channels keep their high byte; float channels are clamped to
// [0, 1] and scaled.
func ToRGBA8(f Format, data []byte) ([]byte, error) {
	bpp := f.ReadbackBytesPerPixel()
	if bpp == 0 || f.IsDepth() {
		return nil, fmt.Errorf("cannot convert %s to rgba8", f)
	}
	if len(data)%bpp != 0 {
		return nil, fmt.Errorf("readback of %d bytes is not a multiple of %d", len(data), bpp)
	}
	n := len(data) / bpp
	if f == FormatRGBA8 {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	out := make([]byte, n*4)
	for i := 0; i < n*4; i++ {
		switch f {
		case FormatRGBA16:
			out[i] = byte(binary.LittleEndian.Uint16(data[i*2:]) >> 8)
		default:
			v := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
			out[i] = floatToByte(v)
		}
	}
	return out, nil
}

func floatToByte(v float32) byte {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}
