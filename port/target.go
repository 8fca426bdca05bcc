package port

import (
	"fmt"

	"render-pipeline/core"
	"render-pipeline/internal/gpu"
)

// RenderTarget is a framebuffer with a color texture and an optional depth
// texture of the same size.
type RenderTarget struct {
	dev   gpu.Device
	label string

	FBO      gpu.Handle
	ColorTex gpu.Handle
	DepthTex gpu.Handle

	colorFormat gpu.Format
	depthFormat gpu.Format
	size        core.Size

	prevFBO gpu.Handle
	active  bool
	updates int
}

// NewRenderTarget describes a target. GPU resources are created by
// Initialize. depth may be gpu.FormatNone for a color-only target.
func NewRenderTarget(dev gpu.Device, color, depth gpu.Format) *RenderTarget {
	return &RenderTarget{dev: dev, colorFormat: color, depthFormat: depth}
}

func (rt *RenderTarget) Initialize(size core.Size) error {
	if size.IsZero() {
		return fmt.Errorf("render target %s: invalid size %v", rt.label, size)
	}
	return rt.alloc(size)
}

// ── FBO lifecycle ─────────────────────────────────────────────────────────────

func (rt *RenderTarget) alloc(size core.Size) error {
	rt.size = size
	params := gpu.TexParams{Min: gpu.FilterLinear, Mag: gpu.FilterLinear, Wrap: gpu.WrapClampToEdge}

	var err error
	rt.ColorTex, err = rt.dev.CreateTexture(gpu.TextureDesc{Size: size, Format: rt.colorFormat})
	if err != nil {
		rt.free()
		return fmt.Errorf("render target %s: color texture: %w", rt.label, err)
	}
	rt.dev.TexParameters(rt.ColorTex, params)

	if rt.depthFormat != gpu.FormatNone {
		rt.DepthTex, err = rt.dev.CreateTexture(gpu.TextureDesc{Size: size, Format: rt.depthFormat})
		if err != nil {
			rt.free()
			return fmt.Errorf("render target %s: depth texture: %w", rt.label, err)
		}
		params.Min, params.Mag = gpu.FilterNearest, gpu.FilterNearest
		rt.dev.TexParameters(rt.DepthTex, params)
	}

	if rt.FBO == 0 {
		rt.FBO = rt.dev.CreateFramebuffer()
	}
	rt.dev.FramebufferTexture(rt.FBO, gpu.ColorAttachment(0), rt.ColorTex)
	rt.dev.FramebufferTexture(rt.FBO, gpu.DepthAttachment, rt.DepthTex)
	if err := rt.dev.FramebufferStatus(rt.FBO); err != nil {
		rt.free()
		return fmt.Errorf("render target %s: %w", rt.label, err)
	}
	return nil
}

func (rt *RenderTarget) free() {
	if rt.FBO != 0 {
		rt.dev.DeleteFramebuffer(rt.FBO)
		rt.FBO = 0
	}
	if rt.ColorTex != 0 {
		rt.dev.DeleteTexture(rt.ColorTex)
		rt.ColorTex = 0
	}
	if rt.DepthTex != 0 {
		rt.dev.DeleteTexture(rt.DepthTex)
		rt.DepthTex = 0
	}
}

// Resize recreates both textures at the new size. Contents are lost.
func (rt *RenderTarget) Resize(size core.Size) error {
	if size == rt.size && rt.ColorTex != 0 {
		return nil
	}
	if size.IsZero() {
		return fmt.Errorf("render target %s: invalid size %v", rt.label, size)
	}
	rt.free()
	return rt.alloc(size)
}

// Delete frees all GPU resources.
func (rt *RenderTarget) Delete() {
	if rt.active {
		rt.Deactivate()
	}
	rt.free()
	rt.size = core.Size{}
}

// SetLabel sets the debug label used in errors and logs.
func (rt *RenderTarget) SetLabel(label string) { rt.label = label }

// Activate binds the framebuffer and sets the viewport to the target.
func (rt *RenderTarget) Activate() {
	if rt.active {
		return
	}
	rt.prevFBO = rt.dev.CurrentFramebuffer()
	rt.dev.BindFramebuffer(rt.FBO)
	rt.dev.Viewport(0, 0, rt.size.W, rt.size.H)
	rt.active = true
}

// Deactivate restores the framebuffer that was bound before Activate.
func (rt *RenderTarget) Deactivate() {
	if !rt.active {
		return
	}
	rt.dev.BindFramebuffer(rt.prevFBO)
	rt.active = false
}

func (rt *RenderTarget) IsActive() bool { return rt.active }

func (rt *RenderTarget) BindColorTexture(unit int) {
	rt.dev.ActiveTexture(unit)
	rt.dev.BindTexture(rt.ColorTex)
}

// BindDepthTexture does nothing when the target has no depth texture.
func (rt *RenderTarget) BindDepthTexture(unit int) {
	if rt.DepthTex == 0 {
		return
	}
	rt.dev.ActiveTexture(unit)
	rt.dev.BindTexture(rt.DepthTex)
}

func (rt *RenderTarget) Size() core.Size { return rt.size }
func (rt *RenderTarget) ColorFormat() gpu.Format { return rt.colorFormat }
func (rt *RenderTarget) DepthFormat() gpu.Format { return rt.depthFormat }
func (rt *RenderTarget) HasDepth() bool { return rt.DepthTex != 0 }
func (rt *RenderTarget) NumUpdates() int { return rt.updates }
func (rt *RenderTarget) increaseNumUpdates() { rt.updates++ }
func (rt *RenderTarget) isAllocated() bool { return rt.ColorTex != 0 }

// ReadColorBuffer returns the color texture as 8-bit RGBA, bottom row first.
func (rt *RenderTarget) ReadColorBuffer() ([]byte, error) {
	raw, err := rt.dev.ReadTexture(rt.ColorTex, gpu.TextureDesc{Size: rt.size, Format: rt.colorFormat})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rt.label, err)
	}
	return gpu.ToRGBA8(rt.colorFormat, raw)
}
