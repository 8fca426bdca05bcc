package opengl

import (
	"testing"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/stretchr/testify/assert"

	"render-pipeline/internal/gpu"
)

func TestEveryFormatHasEnums(t *testing.T) {
	for _, f := range []gpu.Format{
		gpu.FormatRGBA8, gpu.FormatRGBA16, gpu.FormatRGBA16F,
		gpu.FormatRGBA32F, gpu.FormatDepth24, gpu.FormatDepth32F,
	} {
		tf, ok := texFormats[f]
		if assert.True(t, ok, f.String()) {
			assert.Equal(t, f.IsDepth(), tf.format == gl.DEPTH_COMPONENT, f.String())
		}
	}
	_, ok := texFormats[gpu.FormatNone]
	assert.False(t, ok)
}

func TestReadTypeMatchesReadbackStride(t *testing.T) {
	size := map[uint32]int{gl.UNSIGNED_BYTE: 1, gl.UNSIGNED_SHORT: 2, gl.FLOAT: 4}
	for f, tf := range texFormats {
		channels := 4
		if f.IsDepth() {
			channels = 1
		}
		assert.Equal(t, f.ReadbackBytesPerPixel(), channels*size[tf.readType], f.String())
	}
}

func TestFramebufferStatusError(t *testing.T) {
	assert.NoError(t, framebufferStatusError(gl.FRAMEBUFFER_COMPLETE))
	assert.EqualError(t, framebufferStatusError(gl.FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT),
		"framebuffer incomplete: missing attachment")
	assert.EqualError(t, framebufferStatusError(0x1234), "framebuffer incomplete (0x1234)")
}

func TestAttachmentPoint(t *testing.T) {
	assert.Equal(t, uint32(gl.DEPTH_ATTACHMENT), attachmentPoint(gpu.DepthAttachment))
	assert.Equal(t, uint32(gl.COLOR_ATTACHMENT0+2), attachmentPoint(gpu.ColorAttachment(2)))
}
