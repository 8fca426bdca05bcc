// Package gpu is the seam between the render core and the native graphics
// API. internal/opengl implements Device on top of go-gl; gputest provides
// an in-memory Device for tests.
package gpu

import "render-pipeline/core"

// Handle is a native object name. Zero is never a valid object.
type Handle uint32

type ShaderKind int

const (
	VertexShader ShaderKind = iota
	GeometryShader
	FragmentShader
)

func (k ShaderKind) String() string {
	switch k {
	case VertexShader:
		return "vertex"
	case GeometryShader:
		return "geometry"
	case FragmentShader:
		return "fragment"
	}
	return "unknown"
}

// Extension is the file suffix used for stage sources.
func (k ShaderKind) Extension() string {
	switch k {
	case VertexShader:
		return ".vert"
	case GeometryShader:
		return ".geom"
	case FragmentShader:
		return ".frag"
	}
	return ""
}

// ProgramParam names a per-program parameter pushed before linking.
type ProgramParam uint32

const (
	GeometryVerticesOut ProgramParam = 0x8916
	GeometryInputType   ProgramParam = 0x8917
	GeometryOutputType  ProgramParam = 0x8918
)

// Attachment is a framebuffer attachment point. Color attachments are
// numbered from zero.
type Attachment int

const DepthAttachment Attachment = -1

func ColorAttachment(i int) Attachment { return Attachment(i) }

// Texture0 is the native enum of texture unit zero.
const Texture0 uint32 = 0x84C0

type Device interface {
	// Shaders and programs
	CreateShader(kind ShaderKind) Handle
	DeleteShader(sh Handle)
	CompileShader(sh Handle, source string) (ok bool, log string)
	CreateProgram() Handle
	DeleteProgram(prog Handle)
	AttachShader(prog, sh Handle)
	DetachShader(prog, sh Handle)
	ProgramParameter(prog Handle, param ProgramParam, value int)
	LinkProgram(prog Handle) (ok bool, log string)
	UseProgram(prog Handle)
	CurrentProgram() Handle

	// Uniforms and attributes. Locations are -1 when not found.
	UniformLocation(prog Handle, name string) int32
	SetUniform(loc int32, u Uniform)
	AttribLocation(prog Handle, name string) int32
	BindAttribLocation(prog Handle, index uint32, name string)
	BindFragDataLocation(prog Handle, color uint32, name string)

	// Textures
	CreateTexture(desc TextureDesc) (Handle, error)
	DeleteTexture(tex Handle)
	ActiveTexture(unit int)
	BindTexture(tex Handle)
	TexParameters(tex Handle, p TexParams)
	// ReadTexture returns the texture contents in its readback layout,
	// bottom row first. See Format.ReadbackBytesPerPixel.
	ReadTexture(tex Handle, desc TextureDesc) ([]byte, error)

	// Framebuffers. Handle zero is the default framebuffer.
	CreateFramebuffer() Handle
	DeleteFramebuffer(fb Handle)
	BindFramebuffer(fb Handle)
	CurrentFramebuffer() Handle
	FramebufferTexture(fb Handle, att Attachment, tex Handle)
	DrawBuffers(n int)
	FramebufferStatus(fb Handle) error

	// Drawing
	Viewport(x, y, w, h int)
	ClearColor(c core.Color)
	Clear(color, depth bool)
	// DepthTest turns depth writes on or off. The comparison always
	// passes, so a pass copying gl_FragDepth into a cleared target keeps
	// every fragment.
	DepthTest(enabled bool)
	DrawFullscreen()

	// Limits
	MaxTextureUnits() int
	MaxColorAttachments() int
	Version() string
	ShadingLanguageVersion() string
}
