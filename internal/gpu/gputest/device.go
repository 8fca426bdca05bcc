// Package gputest provides an in-memory gpu.Device. It keeps enough state
// to check what the render core asked the native API to do: compiled
// sources, attachments, bound textures and uploaded uniforms.
//
// A shader fails to compile when its source contains an "#error" line;
// the log reports that line NVIDIA-style, "0(<line>) : error".
package gputest

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"render-pipeline/core"
	"render-pipeline/internal/gpu"
)

type Shader struct {
	Kind     gpu.ShaderKind
	Source   string
	Compiled bool
	Compiles int
}

type Program struct {
	Attached []gpu.Handle
	Params   map[gpu.ProgramParam]int
	Linked   bool
	Links    int
	// ParamsAtLink is a copy of Params taken at the last link.
	ParamsAtLink map[gpu.ProgramParam]int
	Uniforms     map[string]int32
	Values       map[int32]gpu.Uniform
	Attribs      map[string]uint32
	FragData     map[string]uint32
}

type Texture struct {
	Desc   gpu.TextureDesc
	Params gpu.TexParams
	Data   []byte
}

type Framebuffer struct {
	Attachments map[gpu.Attachment]gpu.Handle
	DrawBuffers int
}

// Draw records one full-screen draw.
type Draw struct {
	Program     gpu.Handle
	Framebuffer gpu.Handle
	Viewport    core.Rect
	Textures    map[int]gpu.Handle
	DepthTest   bool
}

type Device struct {
	Shaders      map[gpu.Handle]*Shader
	Programs     map[gpu.Handle]*Program
	Textures     map[gpu.Handle]*Texture
	Framebuffers map[gpu.Handle]*Framebuffer

	// FailLink makes every link fail.
	FailLink bool
	// FailTextures makes CreateTexture fail.
	FailTextures bool

	Units       int
	Attachments int
	GLVersion   string
	GLSLVersion string

	ViewportRect core.Rect
	ClearValue   core.Color
	Clears       int
	Draws        []Draw
	DepthTesting bool

	next       gpu.Handle
	current    gpu.Handle
	fb         gpu.Handle
	activeUnit int
	bound      map[int]gpu.Handle
}

func New() *Device {
	return &Device{
		Shaders:      make(map[gpu.Handle]*Shader),
		Programs:     make(map[gpu.Handle]*Program),
		Textures:     make(map[gpu.Handle]*Texture),
		Framebuffers: make(map[gpu.Handle]*Framebuffer),
		Units:        16,
		Attachments:  8,
		GLVersion:    "4.1 gputest",
		GLSLVersion:  "4.10",
		bound:        make(map[int]gpu.Handle),
	}
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) alloc() gpu.Handle {
	d.next++
	return d.next
}

// ── Shaders ───────────────────────────────────────────────────────────────────

func (d *Device) CreateShader(kind gpu.ShaderKind) gpu.Handle {
	h := d.alloc()
	d.Shaders[h] = &Shader{Kind: kind}
	return h
}

func (d *Device) DeleteShader(sh gpu.Handle) {
	delete(d.Shaders, sh)
}

func (d *Device) CompileShader(sh gpu.Handle, source string) (bool, string) {
	s, ok := d.Shaders[sh]
	if !ok {
		return false, "invalid shader"
	}
	s.Source = source
	s.Compiles++
	var warnings strings.Builder
	for i, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "#error"):
			s.Compiled = false
			return false, fmt.Sprintf("0(%d) : error C0000: %s\n", i+1, line)
		case strings.HasPrefix(line, "#warning"):
			fmt.Fprintf(&warnings, "0(%d) : warning C7050: %s\n", i+1, line)
		}
	}
	s.Compiled = true
	return true, warnings.String()
}

func (d *Device) CreateProgram() gpu.Handle {
	h := d.alloc()
	d.Programs[h] = &Program{
		Params:   make(map[gpu.ProgramParam]int),
		Uniforms: make(map[string]int32),
		Values:   make(map[int32]gpu.Uniform),
		Attribs:  make(map[string]uint32),
		FragData: make(map[string]uint32),
	}
	return h
}

func (d *Device) DeleteProgram(prog gpu.Handle) {
	if d.current == prog {
		d.current = 0
	}
	delete(d.Programs, prog)
}

func (d *Device) AttachShader(prog, sh gpu.Handle) {
	if p, ok := d.Programs[prog]; ok && !slices.Contains(p.Attached, sh) {
		p.Attached = append(p.Attached, sh)
	}
}

func (d *Device) DetachShader(prog, sh gpu.Handle) {
	if p, ok := d.Programs[prog]; ok {
		p.Attached = slices.DeleteFunc(p.Attached, func(h gpu.Handle) bool { return h == sh })
	}
}

func (d *Device) ProgramParameter(prog gpu.Handle, param gpu.ProgramParam, value int) {
	if p, ok := d.Programs[prog]; ok {
		p.Params[param] = value
	}
}

var uniformDecl = regexp.MustCompile(`(?m)^\s*uniform\s+\w+\s+(\w+)`)

func (d *Device) LinkProgram(prog gpu.Handle) (bool, string) {
	p, ok := d.Programs[prog]
	if !ok {
		return false, "invalid program"
	}
	p.Links++
	p.Linked = false
	if d.FailLink {
		return false, "error: forced link failure\n"
	}
	if len(p.Attached) == 0 {
		return false, "error: no shaders attached\n"
	}

	p.Uniforms = make(map[string]int32)
	p.Values = make(map[int32]gpu.Uniform)
	var loc int32
	for _, sh := range p.Attached {
		s := d.Shaders[sh]
		if s == nil || !s.Compiled {
			return false, "error: attached shader is not compiled\n"
		}
		for _, m := range uniformDecl.FindAllStringSubmatch(s.Source, -1) {
			if _, dup := p.Uniforms[m[1]]; !dup {
				p.Uniforms[m[1]] = loc
				loc++
			}
		}
	}
	p.ParamsAtLink = make(map[gpu.ProgramParam]int, len(p.Params))
	for k, v := range p.Params {
		p.ParamsAtLink[k] = v
	}
	p.Linked = true
	return true, ""
}

func (d *Device) UseProgram(prog gpu.Handle) {
	d.current = prog
}

func (d *Device) CurrentProgram() gpu.Handle {
	return d.current
}

// UniformLocation resolves "name" and struct members "name.field" against
// the uniforms declared in the attached sources.
func (d *Device) UniformLocation(prog gpu.Handle, name string) int32 {
	p, ok := d.Programs[prog]
	if !ok || !p.Linked {
		return -1
	}
	if loc, ok := p.Uniforms[name]; ok {
		return loc
	}
	base, _, found := strings.Cut(name, ".")
	if !found {
		return -1
	}
	if _, ok := p.Uniforms[base]; !ok {
		return -1
	}
	loc := int32(1000 + len(p.Uniforms))
	p.Uniforms[name] = loc
	return loc
}

func (d *Device) SetUniform(loc int32, u gpu.Uniform) {
	p, ok := d.Programs[d.current]
	if !ok || loc < 0 {
		return
	}
	u.Floats = slices.Clone(u.Floats)
	u.Ints = slices.Clone(u.Ints)
	p.Values[loc] = u
}

func (d *Device) AttribLocation(prog gpu.Handle, name string) int32 {
	if p, ok := d.Programs[prog]; ok {
		if idx, ok := p.Attribs[name]; ok {
			return int32(idx)
		}
	}
	return -1
}

func (d *Device) BindAttribLocation(prog gpu.Handle, index uint32, name string) {
	if p, ok := d.Programs[prog]; ok {
		p.Attribs[name] = index
	}
}

func (d *Device) BindFragDataLocation(prog gpu.Handle, color uint32, name string) {
	if p, ok := d.Programs[prog]; ok {
		p.FragData[name] = color
	}
}

// UniformValue returns the last value uploaded to a uniform of prog.
func (d *Device) UniformValue(prog gpu.Handle, name string) (gpu.Uniform, bool) {
	p, ok := d.Programs[prog]
	if !ok {
		return gpu.Uniform{}, false
	}
	loc, ok := p.Uniforms[name]
	if !ok {
		return gpu.Uniform{}, false
	}
	u, ok := p.Values[loc]
	return u, ok
}

// ── Textures ──────────────────────────────────────────────────────────────────

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Handle, error) {
	if d.FailTextures {
		return 0, errors.New("gputest: texture allocation failed")
	}
	h := d.alloc()
	d.Textures[h] = &Texture{Desc: desc, Data: make([]byte, desc.ReadbackLen())}
	return h, nil
}

func (d *Device) DeleteTexture(tex gpu.Handle) {
	delete(d.Textures, tex)
	for unit, h := range d.bound {
		if h == tex {
			delete(d.bound, unit)
		}
	}
}

func (d *Device) ActiveTexture(unit int) {
	d.activeUnit = unit
}

func (d *Device) BindTexture(tex gpu.Handle) {
	d.bound[d.activeUnit] = tex
}

// BoundTexture returns the texture bound to a unit.
func (d *Device) BoundTexture(unit int) gpu.Handle {
	return d.bound[unit]
}

func (d *Device) TexParameters(tex gpu.Handle, p gpu.TexParams) {
	if t, ok := d.Textures[tex]; ok {
		t.Params = p
	}
}

func (d *Device) ReadTexture(tex gpu.Handle, desc gpu.TextureDesc) ([]byte, error) {
	t, ok := d.Textures[tex]
	if !ok {
		return nil, fmt.Errorf("gputest: no texture %d", tex)
	}
	if t.Desc != desc {
		return nil, fmt.Errorf("gputest: texture %d is %v %s, not %v %s", tex, t.Desc.Size, t.Desc.Format, desc.Size, desc.Format)
	}
	return slices.Clone(t.Data), nil
}

// SetTextureData replaces a texture's contents in readback layout.
func (d *Device) SetTextureData(tex gpu.Handle, data []byte) {
	if t, ok := d.Textures[tex]; ok {
		t.Data = slices.Clone(data)
	}
}

// ── Framebuffers ──────────────────────────────────────────────────────────────

func (d *Device) CreateFramebuffer() gpu.Handle {
	h := d.alloc()
	d.Framebuffers[h] = &Framebuffer{Attachments: make(map[gpu.Attachment]gpu.Handle)}
	return h
}

func (d *Device) DeleteFramebuffer(fb gpu.Handle) {
	if d.fb == fb {
		d.fb = 0
	}
	delete(d.Framebuffers, fb)
}

func (d *Device) BindFramebuffer(fb gpu.Handle) {
	d.fb = fb
}

func (d *Device) CurrentFramebuffer() gpu.Handle {
	return d.fb
}

func (d *Device) FramebufferTexture(fb gpu.Handle, att gpu.Attachment, tex gpu.Handle) {
	f, ok := d.Framebuffers[fb]
	if !ok {
		return
	}
	if tex == 0 {
		delete(f.Attachments, att)
		return
	}
	f.Attachments[att] = tex
}

func (d *Device) DrawBuffers(n int) {
	if f, ok := d.Framebuffers[d.fb]; ok {
		f.DrawBuffers = n
	}
}

func (d *Device) FramebufferStatus(fb gpu.Handle) error {
	f, ok := d.Framebuffers[fb]
	if !ok {
		return fmt.Errorf("gputest: no framebuffer %d", fb)
	}
	if len(f.Attachments) == 0 {
		return errors.New("framebuffer incomplete: missing attachment")
	}
	var size core.Size
	for _, tex := range f.Attachments {
		t, ok := d.Textures[tex]
		if !ok {
			return errors.New("framebuffer incomplete: attachment deleted")
		}
		if size != (core.Size{}) && t.Desc.Size != size {
			return errors.New("framebuffer incomplete: dimensions differ")
		}
		size = t.Desc.Size
	}
	return nil
}

// ── Drawing ───────────────────────────────────────────────────────────────────

func (d *Device) Viewport(x, y, w, h int) {
	d.ViewportRect = core.Rect{X: x, Y: y, Width: w, Height: h}
}

func (d *Device) ClearColor(c core.Color) {
	d.ClearValue = c
}

// Clear fills the color attachments of the bound framebuffer with the
// clear color. Only RGBA8 targets are filled.
func (d *Device) Clear(color, depth bool) {
	d.Clears++
	f, ok := d.Framebuffers[d.fb]
	if !color || !ok {
		return
	}
	px := [4]byte{
		byte(d.ClearValue.R*255 + 0.5), byte(d.ClearValue.G*255 + 0.5),
		byte(d.ClearValue.B*255 + 0.5), byte(d.ClearValue.A*255 + 0.5),
	}
	for att, tex := range f.Attachments {
		t := d.Textures[tex]
		if att == gpu.DepthAttachment || t == nil || t.Desc.Format != gpu.FormatRGBA8 {
			continue
		}
		for i := 0; i+4 <= len(t.Data); i += 4 {
			copy(t.Data[i:i+4], px[:])
		}
	}
}

func (d *Device) DepthTest(enabled bool) {
	d.DepthTesting = enabled
}

func (d *Device) DrawFullscreen() {
	tex := make(map[int]gpu.Handle, len(d.bound))
	for u, h := range d.bound {
		tex[u] = h
	}
	d.Draws = append(d.Draws, Draw{
		Program:     d.current,
		Framebuffer: d.fb,
		Viewport:    d.ViewportRect,
		Textures:    tex,
		DepthTest:   d.DepthTesting,
	})
}

// ── Limits ────────────────────────────────────────────────────────────────────

func (d *Device) MaxTextureUnits() int { return d.Units }
func (d *Device) MaxColorAttachments() int { return d.Attachments }
func (d *Device) Version() string { return d.GLVersion }
func (d *Device) ShadingLanguageVersion() string { return d.GLSLVersion }
