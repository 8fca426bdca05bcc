// Package opengl implements gpu.Device on an OpenGL 4.1 core context.
// Every call must be made on the thread that owns the current context.
package opengl

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/core"
	"render-pipeline/internal/gpu"
	"render-pipeline/internal/logx"
)

type Device struct {
	log     *slog.Logger
	quadVAO uint32 // empty VAO for the fullscreen triangle
}

var _ gpu.Device = (*Device)(nil)

// New loads the GL entry points. The window context must be current.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	d := &Device{log: logx.For("opengl")}
	d.log.Info("context ready",
		"version", d.Version(),
		"glsl", d.ShadingLanguageVersion(),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	gl.GenVertexArrays(1, &d.quadVAO)
	return d, nil
}

// Destroy frees the objects owned by the device itself.
func (d *Device) Destroy() {
	if d.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &d.quadVAO)
		d.quadVAO = 0
	}
}

// ── Shaders and programs ──────────────────────────────────────────────────────

var shaderTypes = map[gpu.ShaderKind]uint32{
	gpu.VertexShader:   gl.VERTEX_SHADER,
	gpu.GeometryShader: gl.GEOMETRY_SHADER,
	gpu.FragmentShader: gl.FRAGMENT_SHADER,
}

func (d *Device) CreateShader(kind gpu.ShaderKind) gpu.Handle {
	t, ok := shaderTypes[kind]
	if !ok {
		return 0
	}
	return gpu.Handle(gl.CreateShader(t))
}

func (d *Device) DeleteShader(sh gpu.Handle) { gl.DeleteShader(uint32(sh)) }

func (d *Device) CompileShader(sh gpu.Handle, source string) (bool, string) {
	csrc, free := gl.Strs(source + "\x00")
	gl.ShaderSource(uint32(sh), 1, csrc, nil)
	free()
	gl.CompileShader(uint32(sh))

	var status int32
	gl.GetShaderiv(uint32(sh), gl.COMPILE_STATUS, &status)
	return status != gl.FALSE, shaderLog(uint32(sh))
}

func shaderLog(sh uint32) string {
	var logLen int32
	gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLen)
	if logLen <= 1 {
		return ""
	}
	log := strings.Repeat("\x00", int(logLen+1))
	gl.GetShaderInfoLog(sh, logLen, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func (d *Device) CreateProgram() gpu.Handle { return gpu.Handle(gl.CreateProgram()) }
func (d *Device) DeleteProgram(prog gpu.Handle) { gl.DeleteProgram(uint32(prog)) }
func (d *Device) AttachShader(prog, sh gpu.Handle) { gl.AttachShader(uint32(prog), uint32(sh)) }
func (d *Device) DetachShader(prog, sh gpu.Handle) { gl.DetachShader(uint32(prog), uint32(sh)) }

// ProgramParameter is a no-op: core profiles take geometry input and
// output types from layout qualifiers in the shader source.
func (d *Device) ProgramParameter(prog gpu.Handle, param gpu.ProgramParam, value int) {
	d.log.Debug("program parameter ignored in core profile",
		"program", prog, "param", fmt.Sprintf("0x%X", uint32(param)), "value", value)
}

func (d *Device) LinkProgram(prog gpu.Handle) (bool, string) {
	gl.LinkProgram(uint32(prog))

	var status int32
	gl.GetProgramiv(uint32(prog), gl.LINK_STATUS, &status)
	return status != gl.FALSE, programLog(uint32(prog))
}

func programLog(prog uint32) string {
	var logLen int32
	gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
	if logLen <= 1 {
		return ""
	}
	log := strings.Repeat("\x00", int(logLen+1))
	gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func (d *Device) UseProgram(prog gpu.Handle) { gl.UseProgram(uint32(prog)) }

func (d *Device) CurrentProgram() gpu.Handle {
	var p int32
	gl.GetIntegerv(gl.CURRENT_PROGRAM, &p)
	return gpu.Handle(p)
}

// ── Uniforms and attributes ───────────────────────────────────────────────────

func (d *Device) UniformLocation(prog gpu.Handle, name string) int32 {
	return gl.GetUniformLocation(uint32(prog), gl.Str(name+"\x00"))
}

func (d *Device) SetUniform(loc int32, u gpu.Uniform) {
	if loc < 0 || u.Count <= 0 {
		return
	}
	n := int32(u.Count)

	if u.MatrixDim > 0 {
		if len(u.Floats) < u.Len() {
			return
		}
		p := &u.Floats[0]
		switch u.MatrixDim {
		case 2:
			gl.UniformMatrix2fv(loc, n, u.Transpose, p)
		case 3:
			gl.UniformMatrix3fv(loc, n, u.Transpose, p)
		case 4:
			gl.UniformMatrix4fv(loc, n, u.Transpose, p)
		}
		return
	}

	if u.Kind == gpu.KindFloat {
		if len(u.Floats) < u.Len() || u.Len() == 0 {
			return
		}
		p := &u.Floats[0]
		switch u.Components {
		case 1:
			gl.Uniform1fv(loc, n, p)
		case 2:
			gl.Uniform2fv(loc, n, p)
		case 3:
			gl.Uniform3fv(loc, n, p)
		case 4:
			gl.Uniform4fv(loc, n, p)
		}
		return
	}

	// int and bool uniforms are both uploaded as integers
	if len(u.Ints) < u.Len() || u.Len() == 0 {
		return
	}
	p := &u.Ints[0]
	switch u.Components {
	case 1:
		gl.Uniform1iv(loc, n, p)
	case 2:
		gl.Uniform2iv(loc, n, p)
	case 3:
		gl.Uniform3iv(loc, n, p)
	case 4:
		gl.Uniform4iv(loc, n, p)
	}
}

func (d *Device) AttribLocation(prog gpu.Handle, name string) int32 {
	return gl.GetAttribLocation(uint32(prog), gl.Str(name+"\x00"))
}

func (d *Device) BindAttribLocation(prog gpu.Handle, index uint32, name string) {
	gl.BindAttribLocation(uint32(prog), index, gl.Str(name+"\x00"))
}

func (d *Device) BindFragDataLocation(prog gpu.Handle, color uint32, name string) {
	gl.BindFragDataLocation(uint32(prog), color, gl.Str(name+"\x00"))
}

// ── Textures ──────────────────────────────────────────────────────────────────

// texFormat holds the enums for allocating and reading back a Format.
type texFormat struct {
	internal int32
	format   uint32
	xtype    uint32 // upload type
	readType uint32 // readback type, see gpu.Format.ReadbackBytesPerPixel
}

var texFormats = map[gpu.Format]texFormat{
	gpu.FormatRGBA8:    {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE, gl.UNSIGNED_BYTE},
	gpu.FormatRGBA16:   {gl.RGBA16, gl.RGBA, gl.UNSIGNED_SHORT, gl.UNSIGNED_SHORT},
	gpu.FormatRGBA16F:  {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT, gl.FLOAT},
	gpu.FormatRGBA32F:  {gl.RGBA32F, gl.RGBA, gl.FLOAT, gl.FLOAT},
	gpu.FormatDepth24:  {gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.UNSIGNED_INT, gl.FLOAT},
	gpu.FormatDepth32F: {gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT, gl.FLOAT},
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Handle, error) {
	tf, ok := texFormats[desc.Format]
	if !ok {
		return 0, fmt.Errorf("unsupported texture format %s", desc.Format)
	}
	if desc.Size.IsZero() {
		return 0, fmt.Errorf("invalid texture size %v", desc.Size)
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, tf.internal,
		int32(desc.Size.W), int32(desc.Size.H), 0, tf.format, tf.xtype, nil)
	filter := int32(gl.LINEAR)
	if desc.Format.IsDepth() {
		filter = gl.NEAREST
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := glError("allocate " + desc.Format.String() + " texture"); err != nil {
		gl.DeleteTextures(1, &id)
		return 0, err
	}
	return gpu.Handle(id), nil
}

func (d *Device) DeleteTexture(tex gpu.Handle) {
	id := uint32(tex)
	gl.DeleteTextures(1, &id)
}

func (d *Device) ActiveTexture(unit int) { gl.ActiveTexture(gl.TEXTURE0 + uint32(unit)) }

func (d *Device) BindTexture(tex gpu.Handle) { gl.BindTexture(gl.TEXTURE_2D, uint32(tex)) }

var (
	filters = map[gpu.Filter]int32{gpu.FilterLinear: gl.LINEAR, gpu.FilterNearest: gl.NEAREST}
	wraps   = map[gpu.Wrap]int32{gpu.WrapClampToEdge: gl.CLAMP_TO_EDGE, gpu.WrapRepeat: gl.REPEAT}
)

// TexParameters binds tex to the active unit and sets its sampling state.
func (d *Device) TexParameters(tex gpu.Handle, p gpu.TexParams) {
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filters[p.Min])
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filters[p.Mag])
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wraps[p.Wrap])
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wraps[p.Wrap])
}

func (d *Device) ReadTexture(tex gpu.Handle, desc gpu.TextureDesc) ([]byte, error) {
	tf, ok := texFormats[desc.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported texture format %s", desc.Format)
	}
	n := desc.ReadbackLen()
	if n == 0 {
		return nil, fmt.Errorf("invalid texture size %v", desc.Size)
	}
	buf := make([]byte, n)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
	gl.GetTexImage(gl.TEXTURE_2D, 0, tf.format, tf.readType, unsafe.Pointer(&buf[0]))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glError("read texture"); err != nil {
		return nil, err
	}
	return buf, nil
}

// ── Framebuffers ──────────────────────────────────────────────────────────────

func (d *Device) CreateFramebuffer() gpu.Handle {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	return gpu.Handle(fb)
}

func (d *Device) DeleteFramebuffer(fb gpu.Handle) {
	id := uint32(fb)
	gl.DeleteFramebuffers(1, &id)
}

func (d *Device) BindFramebuffer(fb gpu.Handle) { gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb)) }

func (d *Device) CurrentFramebuffer() gpu.Handle {
	var fb int32
	gl.GetIntegerv(gl.FRAMEBUFFER_BINDING, &fb)
	return gpu.Handle(fb)
}

func attachmentPoint(att gpu.Attachment) uint32 {
	if att == gpu.DepthAttachment {
		return gl.DEPTH_ATTACHMENT
	}
	return gl.COLOR_ATTACHMENT0 + uint32(att)
}

// withFramebuffer runs fn with fb bound and restores the previous binding.
func (d *Device) withFramebuffer(fb gpu.Handle, fn func()) {
	prev := d.CurrentFramebuffer()
	if prev != fb {
		d.BindFramebuffer(fb)
		defer d.BindFramebuffer(prev)
	}
	fn()
}

// FramebufferTexture attaches tex to fb; tex zero detaches.
func (d *Device) FramebufferTexture(fb gpu.Handle, att gpu.Attachment, tex gpu.Handle) {
	d.withFramebuffer(fb, func() {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, attachmentPoint(att), gl.TEXTURE_2D, uint32(tex), 0)
	})
}

func (d *Device) DrawBuffers(n int) {
	if n <= 0 {
		gl.DrawBuffer(gl.NONE)
		return
	}
	bufs := make([]uint32, n)
	for i := range bufs {
		bufs[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	gl.DrawBuffers(int32(n), &bufs[0])
}

func (d *Device) FramebufferStatus(fb gpu.Handle) error {
	var s uint32
	d.withFramebuffer(fb, func() {
		s = gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	})
	return framebufferStatusError(s)
}

var framebufferStatusNames = map[uint32]string{
	gl.FRAMEBUFFER_UNDEFINED:                     "undefined",
	gl.FRAMEBUFFER_INCOMPLETE_ATTACHMENT:         "incomplete attachment",
	gl.FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT: "missing attachment",
	gl.FRAMEBUFFER_INCOMPLETE_DRAW_BUFFER:        "incomplete draw buffer",
	gl.FRAMEBUFFER_INCOMPLETE_READ_BUFFER:        "incomplete read buffer",
	gl.FRAMEBUFFER_UNSUPPORTED:                   "unsupported",
	gl.FRAMEBUFFER_INCOMPLETE_MULTISAMPLE:        "incomplete multisample",
	gl.FRAMEBUFFER_INCOMPLETE_LAYER_TARGETS:      "incomplete layer targets",
}

func framebufferStatusError(s uint32) error {
	if s == gl.FRAMEBUFFER_COMPLETE {
		return nil
	}
	if name, ok := framebufferStatusNames[s]; ok {
		return errors.New("framebuffer incomplete: " + name)
	}
	return fmt.Errorf("framebuffer incomplete (0x%X)", s)
}

// ── Drawing ───────────────────────────────────────────────────────────────────

func (d *Device) Viewport(x, y, w, h int) {
	gl.Viewport(int32(x), int32(y), int32(w), int32(h))
}

func (d *Device) ClearColor(c core.Color) { gl.ClearColor(c.R, c.G, c.B, c.A) }

func (d *Device) Clear(color, depth bool) {
	var mask uint32
	if color {
		mask |= gl.COLOR_BUFFER_BIT
	}
	if depth {
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if mask != 0 {
		gl.Clear(mask)
	}
}

func (d *Device) DepthTest(enabled bool) {
	if enabled {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.ALWAYS)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
}

// DrawFullscreen draws one triangle covering the viewport. The vertex
// shader derives positions from gl_VertexID.
func (d *Device) DrawFullscreen() {
	gl.BindVertexArray(d.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
}

// ── Limits ────────────────────────────────────────────────────────────────────

func (d *Device) MaxTextureUnits() int {
	var n int32
	gl.GetIntegerv(gl.MAX_COMBINED_TEXTURE_IMAGE_UNITS, &n)
	return int(n)
}

func (d *Device) MaxColorAttachments() int {
	var n int32
	gl.GetIntegerv(gl.MAX_COLOR_ATTACHMENTS, &n)
	return int(n)
}

func (d *Device) Version() string { return gl.GoStr(gl.GetString(gl.VERSION)) }

func (d *Device) ShadingLanguageVersion() string {
	return gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))
}

var glErrorNames = map[uint32]string{
	gl.INVALID_ENUM:                  "invalid enum",
	gl.INVALID_VALUE:                 "invalid value",
	gl.INVALID_OPERATION:             "invalid operation",
	gl.INVALID_FRAMEBUFFER_OPERATION: "invalid framebuffer operation",
	gl.OUT_OF_MEMORY:                 "out of memory",
}

// glError drains the error queue and reports the first error, if any.
func glError(op string) error {
	var first uint32
	for e := gl.GetError(); e != gl.NO_ERROR; e = gl.GetError() {
		if first == 0 {
			first = e
		}
	}
	if first == 0 {
		return nil
	}
	if name, ok := glErrorNames[first]; ok {
		return fmt.Errorf("%s: %s", op, name)
	}
	return fmt.Errorf("%s: GL error 0x%X", op, first)
}
