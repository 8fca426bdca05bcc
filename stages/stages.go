// Package stages holds the render stages shipped with the pipeline. Each
// one embeds processor.RenderProcessor and draws a full-screen triangle
// with a fragment shader from the shader root.
package stages

import (
	"render-pipeline/core"
	"render-pipeline/processor"
	"render-pipeline/shader"
)

// VertexShader is shared by every full-screen pass.
const VertexShader = "fullscreen.vert"

// loadProgram loads VertexShader with frag under the processor's GLSL
// header followed by defines.
func loadProgram(rp *processor.RenderProcessor, frag, defines string) (*shader.Program, error) {
	ctx := rp.Context()
	return ctx.Shaders.LoadSeparate(VertexShader, "", frag, rp.GenerateHeader(0)+defines, false, false)
}

func releaseProgram(rp *processor.RenderProcessor, prog *shader.Program) {
	if prog != nil && rp.Context() != nil {
		rp.Context().Shaders.Release(prog)
	}
}

// draw runs fn with prog active, then issues the full-screen draw.
func draw(rp *processor.RenderProcessor, prog *shader.Program, fn func()) error {
	if err := prog.Activate(); err != nil {
		return err
	}
	defer prog.Deactivate()
	defer rp.ReleaseTextureUnits()
	rp.SetGlobalShaderParameters(prog, rp.Context().Camera, core.Size{})
	if fn != nil {
		fn()
	}
	rp.Context().Device.DrawFullscreen()
	return nil
}

// drawDepth is draw with depth writes on, for shaders that output
// gl_FragDepth.
func drawDepth(rp *processor.RenderProcessor, prog *shader.Program, fn func()) error {
	dev := rp.Context().Device
	dev.DepthTest(true)
	defer dev.DepthTest(false)
	return draw(rp, prog, fn)
}
