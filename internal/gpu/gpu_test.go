package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"4.1 NVIDIA 535.54.03":  "4.1.0",
		"4.10":                  "4.1.0",
		"3.30 NVIDIA via Cg":    "3.3.0",
		"1.20":                  "1.2.0",
		"4.6.0 NVIDIA 535":      "4.6.0",
		"OpenGL ES 3.0 Mesa 22": "3.0.0",
	}
	for in, want := range cases {
		v, err := ParseVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, v.String(), in)
	}

	_, err := ParseVersion("unknown")
	assert.Error(t, err)
}

func TestCapsShaderVersion(t *testing.T) {
	v460, _ := ParseVersion("4.60")
	v130, _ := ParseVersion("1.30")

	c := Caps{GLSL: v460}
	assert.Equal(t, 410, c.ShaderVersion(0))
	assert.Equal(t, 330, c.ShaderVersion(330))
	assert.True(t, c.AtLeast(">= 1.3"))

	c = Caps{GLSL: v130}
	assert.Equal(t, 130, c.ShaderVersion(0))
	assert.Equal(t, 130, c.ShaderVersion(330))
	assert.False(t, c.AtLeast(">= 3.3"))
}

func TestToRGBA8(t *testing.T) {
	rgba16 := make([]byte, 8)
	binary.LittleEndian.PutUint16(rgba16[0:], 0xFFFF)
	binary.LittleEndian.PutUint16(rgba16[2:], 0x8000)
	binary.LittleEndian.PutUint16(rgba16[4:], 0x00FF)
	binary.LittleEndian.PutUint16(rgba16[6:], 0x1234)

	out, err := ToRGBA8(FormatRGBA16, rgba16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x80, 0x00, 0x12}, out)

	f := make([]byte, 16)
	for i, v := range []float32{2, 0.5, -1, float32(math.NaN())} {
		binary.LittleEndian.PutUint32(f[i*4:], math.Float32bits(v))
	}
	out, err = ToRGBA8(FormatRGBA16F, f)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 128, 0, 0}, out)

	_, err = ToRGBA8(FormatDepth24, make([]byte, 4))
	assert.Error(t, err)
	_, err = ToRGBA8(FormatRGBA8, make([]byte, 5))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("RGBA16F")
	require.NoError(t, err)
	assert.Equal(t, FormatRGBA16F, f)
	assert.True(t, f.IsFloat())
	assert.False(t, f.IsDepth())

	_, err = ParseFormat("rgb565")
	assert.Error(t, err)
}

func TestUniformLen(t *testing.T) {
	assert.Equal(t, 3, Uniform{Components: 3, Count: 1}.Len())
	assert.Equal(t, 32, Uniform{MatrixDim: 4, Count: 2}.Len())
}
