package processor

import (
	"fmt"
	"log/slog"
	"strings"

	"render-pipeline/core"
	"render-pipeline/internal/gpu"
	"render-pipeline/internal/logx"
	"render-pipeline/math"
	"render-pipeline/port"
	"render-pipeline/scene"
	"render-pipeline/shader"
	"render-pipeline/texunit"
)

// RenderProcessor implements port.Owner and the target bookkeeping shared
// by all render stages. Embed it and call Init before adding ports.
type RenderProcessor struct {
	name string
	ctx  *Context
	log  *slog.Logger

	inports  []*port.RenderPort
	outports []*port.RenderPort
	private  []*port.RenderPort

	// Units hands out texture units for one Process call. Stages Reset it
	// at the start of Process.
	Units *texunit.Allocator

	initialized bool
	valid       bool

	resizeVisited bool
	testVisited   bool
}

var _ port.Owner = (*RenderProcessor)(nil)

// Init names the processor. It must be called before ports are added.
func (rp *RenderProcessor) Init(name string) {
	rp.name = name
	rp.log = logx.For("processor").With("processor", name)
}

func (rp *RenderProcessor) Name() string { return rp.name }
func (rp *RenderProcessor) Context() *Context { return rp.ctx }
func (rp *RenderProcessor) Log() *slog.Logger { return rp.log }

func (rp *RenderProcessor) InPorts() []*port.RenderPort { return rp.inports }
func (rp *RenderProcessor) OutPorts() []*port.RenderPort { return rp.outports }
func (rp *RenderProcessor) PrivatePorts() []*port.RenderPort { return rp.private }

func (rp *RenderProcessor) checkName(p *port.RenderPort) {
	for _, list := range [][]*port.RenderPort{rp.inports, rp.outports, rp.private} {
		for _, q := range list {
			if q.Name() == p.Name() {
				panic(fmt.Sprintf("processor %s: port %q added twice", rp.name, p.Name()))
			}
		}
	}
}

func (rp *RenderProcessor) AddInPort(p *port.RenderPort) *port.RenderPort {
	if !p.IsInport() {
		panic(fmt.Sprintf("processor %s: %s is not an in-port", rp.name, p.Name()))
	}
	rp.checkName(p)
	p.Bind(rp, nil)
	rp.inports = append(rp.inports, p)
	return p
}

func (rp *RenderProcessor) AddOutPort(p *port.RenderPort) *port.RenderPort {
	if !p.IsOutport() {
		panic(fmt.Sprintf("processor %s: %s is not an out-port", rp.name, p.Name()))
	}
	rp.checkName(p)
	p.Bind(rp, nil)
	rp.outports = append(rp.outports, p)
	return p
}

// AddPrivatePort adds an out-port for intermediate results. It is never
// connected; its target lives from Initialize to Deinitialize.
func (rp *RenderProcessor) AddPrivatePort(p *port.RenderPort) *port.RenderPort {
	if !p.IsOutport() {
		panic(fmt.Sprintf("processor %s: private port %s must be an out-port", rp.name, p.Name()))
	}
	rp.checkName(p)
	p.Bind(rp, nil)
	rp.private = append(rp.private, p)
	return p
}

// Initialize binds the ports to the context's device and allocates the
// private targets. Stages that load shaders call it first.
func (rp *RenderProcessor) Initialize(ctx *Context) error {
	if rp.initialized {
		return nil
	}
	if ctx == nil || ctx.Device == nil {
		return &InitializationError{Processor: rp.name, Err: fmt.Errorf("no device")}
	}
	rp.ctx = ctx
	rp.Units = texunit.ForDevice(ctx.Device)
	for _, list := range [][]*port.RenderPort{rp.inports, rp.outports, rp.private} {
		for _, p := range list {
			p.Bind(rp, ctx.Device)
		}
	}
	for _, p := range rp.private {
		if err := p.Initialize(); err != nil {
			rp.freePorts()
			return &InitializationError{Processor: rp.name, Err: err}
		}
	}
	rp.initialized = true
	rp.valid = false
	return nil
}

func (rp *RenderProcessor) freePorts() {
	for _, p := range rp.outports {
		p.Deinitialize()
	}
	for _, p := range rp.private {
		p.Deinitialize()
	}
}

// Deinitialize frees every target the processor owns.
func (rp *RenderProcessor) Deinitialize() {
	if !rp.initialized {
		return
	}
	rp.freePorts()
	rp.initialized = false
}

func (rp *RenderProcessor) IsInitialized() bool { return rp.initialized }

// IsReady requires every in-port to hold a valid upstream result. A
// processor with out-ports also needs at least one of them connected;
// there is nobody to render for otherwise.
func (rp *RenderProcessor) IsReady() bool {
	if !rp.initialized {
		return false
	}
	for _, p := range rp.inports {
		if !p.IsReady() {
			return false
		}
	}
	if len(rp.outports) == 0 {
		return true
	}
	for _, p := range rp.outports {
		if p.IsConnected() {
			return true
		}
	}
	return false
}

func (rp *RenderProcessor) IsValid() bool { return rp.valid }

// Invalidate marks the processor and its out-port results stale.
func (rp *RenderProcessor) Invalidate() {
	rp.valid = false
	if !rp.initialized {
		return
	}
	for _, p := range rp.outports {
		p.InvalidateResult()
	}
}

// SetValid is called by the evaluator after a successful Process.
func (rp *RenderProcessor) SetValid() { rp.valid = true }

// BeforeProcess allocates or frees out-port targets to follow
// connectivity and sizes unconstrained out-ports after the inputs.
func (rp *RenderProcessor) BeforeProcess() {
	rp.ManageRenderTargets()
	rp.AdjustRenderOutportDimensions()
}

// ManageRenderTargets gives every connected out-port a target and frees
// the targets of unconnected ones. Shared ports are left alone.
func (rp *RenderProcessor) ManageRenderTargets() {
	for _, p := range rp.outports {
		if p.IsShared() {
			continue
		}
		switch {
		case p.IsConnected() && !p.HasTarget():
			if err := p.Initialize(); err != nil {
				rp.log.Error("failed to allocate render target", "port", p.Name(), "err", err)
			}
		case !p.IsConnected() && p.HasTarget():
			p.Deinitialize()
		}
	}
}

// AdjustRenderOutportDimensions assigns the largest input size to every
// connected out-port that no origin dictates, and then to the private
// ports.
func (rp *RenderProcessor) AdjustRenderOutportDimensions() {
	var dim core.Size
	found := false
	for _, p := range rp.inports {
		if !p.HasTarget() {
			continue
		}
		s := p.Size()
		if !found || (s.W >= dim.W && s.H >= dim.H) {
			dim = s
			found = true
		}
	}
	if !found {
		return
	}

	assigned := false
	for _, p := range rp.outports {
		if p.IsConnected() && p.SizeOrigin() == nil {
			p.Resize(dim)
			assigned = true
		}
	}
	if assigned {
		for _, p := range rp.private {
			p.Resize(dim)
		}
	}
}

// ── port.Owner ────────────────────────────────────────────────────────────────

// PortResized forwards a new size to all ports of the processor: in-ports
// request it upstream, out-ports and private ports resize.
func (rp *RenderProcessor) PortResized(_ *port.RenderPort, size core.Size) {
	if rp.resizeVisited {
		return
	}
	rp.resizeVisited = true
	defer func() { rp.resizeVisited = false }()

	for _, p := range rp.inports {
		p.Resize(size)
	}
	for _, p := range rp.outports {
		p.Resize(size)
	}
	for _, p := range rp.private {
		p.Resize(size)
	}
	if rp.ctx != nil && rp.ctx.Camera != nil && !size.IsZero() {
		rp.ctx.Camera.UpdateAspectRatio(float32(size.W), float32(size.H))
	}
	rp.Invalidate()
}

// SizeOriginChanged pushes the origin of out-port p to all in-ports. A
// cleared origin is not pushed while another out-port still has one.
func (rp *RenderProcessor) SizeOriginChanged(p *port.RenderPort) {
	origin := p.SizeOrigin()
	if origin == nil {
		for _, q := range rp.outports {
			if q.SizeOrigin() != nil {
				return
			}
		}
	}
	for _, in := range rp.inports {
		in.SizeOriginChanged(origin)
	}
}

// TestSizeOrigin reports whether out-port p may follow origin. It fails
// when another out-port or an in-port follows a different origin, and
// asks every upstream producer in turn.
func (rp *RenderProcessor) TestSizeOrigin(p *port.RenderPort, origin *port.Origin) bool {
	if rp.testVisited {
		return true
	}
	rp.testVisited = true
	defer func() { rp.testVisited = false }()

	if origin != nil {
		for _, q := range rp.outports {
			if q == p {
				continue
			}
			if so := q.SizeOrigin(); so != nil && so != origin {
				return false
			}
		}
	}
	for _, in := range rp.inports {
		if so := in.SizeOrigin(); so != nil && so != origin {
			return false
		}
		for _, out := range in.Connected() {
			if owner := out.Owner(); owner != nil && !owner.TestSizeOrigin(out, origin) {
				return false
			}
		}
	}
	return true
}

// ── Shader helpers ────────────────────────────────────────────────────────────

// GenerateHeader returns the #version line and GLSL_VERSION_xxx defines
// for the context's shading language, or for requested when the driver
// supports it. Pass 0 for the default.
func (rp *RenderProcessor) GenerateHeader(requested int) string {
	if rp.ctx == nil {
		rp.log.Error("GenerateHeader called before Initialize")
		return ""
	}
	return GenerateHeader(rp.ctx.Caps, requested)
}

// GenerateHeader is the context-free form of RenderProcessor.GenerateHeader.
func GenerateHeader(caps gpu.Caps, requested int) string {
	v := caps.ShaderVersion(requested)
	var b strings.Builder
	fmt.Fprintf(&b, "#version %d", v)
	if v >= 150 {
		b.WriteString(" core")
	}
	b.WriteByte('\n')
	for _, known := range gpu.ShaderVersions {
		if known <= v {
			fmt.Fprintf(&b, "#define GLSL_VERSION_%d\n", known)
		}
	}
	if v >= 130 {
		b.WriteString("precision highp float;\n")
		b.WriteString("out vec4 FragData0;\n")
	} else {
		b.WriteString("#define FragData0 gl_FragData[0]\n")
	}
	return b.String()
}

// SetGlobalShaderParameters sets screenDim_, screenDimRCP_ and, with a
// camera, cameraPosition_ and the view and projection matrices with their
// inverses. A zero screenDim uses the size of the first out-port with a
// target. Uniforms the program does not declare are skipped.
func (rp *RenderProcessor) SetGlobalShaderParameters(prog *shader.Program, cam *scene.Camera, screenDim core.Size) {
	prev := prog.IgnoreUniformErrors(true)
	defer prog.IgnoreUniformErrors(prev)

	if screenDim.IsZero() {
		for _, p := range rp.outports {
			if p.HasTarget() {
				screenDim = p.Size()
				break
			}
		}
	}
	dim := math.NewVec2(float32(screenDim.W), float32(screenDim.H))
	prog.SetVec2("screenDim_", dim)
	prog.SetVec2("screenDimRCP_", dim.Reciprocal())

	if cam == nil {
		return
	}
	prog.SetVec3("cameraPosition_", cam.Position)
	prog.SetMat4("viewMatrix_", cam.ViewMatrix())
	prog.SetMat4("projectionMatrix_", cam.ProjectionMatrix())
	prog.SetMat4("viewMatrixInverse_", cam.ViewMatrixInverse())
	prog.SetMat4("projectionMatrixInverse_", cam.ProjectionMatrixInverse())
}

// BindInPort binds the color and depth textures of in to fresh texture
// units and points the sampler uniforms at them. params names the
// TextureParameters struct uniform and may be empty. Uniforms the
// program does not declare are skipped.
func (rp *RenderProcessor) BindInPort(prog *shader.Program, in *port.RenderPort, colorTex, depthTex, params string) {
	colorName := in.Name() + ".color"
	rp.Units.Register(colorName)
	cu := rp.Units.Unit(colorName)
	in.BindColorTexture(cu)

	prev := prog.IgnoreUniformErrors(true)
	prog.SetInt(colorTex, int32(cu))
	if depthTex != "" {
		depthName := in.Name() + ".depth"
		rp.Units.Register(depthName)
		du := rp.Units.Unit(depthName)
		in.BindDepthTexture(du)
		prog.SetInt(depthTex, int32(du))
	}
	prog.IgnoreUniformErrors(prev)
	if params != "" {
		in.SetTextureParameters(prog, params)
	}
}

// ReleaseTextureUnits frees all units handed out during Process and
// leaves texture unit 0 active.
func (rp *RenderProcessor) ReleaseTextureUnits() {
	rp.Units.Reset()
	if rp.ctx != nil {
		rp.ctx.Device.ActiveTexture(0)
	}
}
