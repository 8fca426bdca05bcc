package canvas

import (
	"errors"
	"fmt"

	"github.com/c2h5oh/datasize"

	"render-pipeline/core"
	"render-pipeline/port"
	"render-pipeline/processor"
	"render-pipeline/shader"
)

var errNoEvaluator = errors.New("renderer is not attached to a network")

// Renderer is the terminal stage of a network. It copies its input into
// the canvas framebuffer and asks the producer for the canvas size on
// behalf of its origin. When another origin already owns the producer's
// size, the image is stretched to the canvas instead.
type Renderer struct {
	processor.RenderProcessor
	In *port.RenderPort

	ClearColor core.Color

	origin     *port.Origin
	canvasSize core.Size
	scaling    bool
	evaluate   func() error
	lastErr    string

	prog *shader.Program
}

func NewRenderer(name string) *Renderer {
	r := &Renderer{ClearColor: core.ColorBlack}
	r.Init(name)
	r.In = r.AddInPort(port.NewInPort("image.in"))
	r.origin = port.NewOrigin(name)
	return r
}

// Origin identifies the canvas in size negotiation.
func (r *Renderer) Origin() *port.Origin { return r.origin }

func (r *Renderer) Initialize(ctx *processor.Context) error {
	if err := r.RenderProcessor.Initialize(ctx); err != nil {
		return err
	}
	prog, err := ctx.Shaders.LoadSeparate("fullscreen.vert", "", "copyimage.frag", r.GenerateHeader(0), false, false)
	if err != nil {
		r.RenderProcessor.Deinitialize()
		return &processor.InitializationError{Processor: r.Name(), Err: err}
	}
	r.prog = prog
	return nil
}

func (r *Renderer) Deinitialize() {
	if r.prog != nil {
		r.Context().Shaders.Release(r.prog)
		r.prog = nil
	}
	r.RenderProcessor.Deinitialize()
}

// IsReady is true once initialized: without input the canvas is cleared.
func (r *Renderer) IsReady() bool { return r.IsInitialized() }

// IsValid is always false; the canvas framebuffer is redrawn every frame.
func (r *Renderer) IsValid() bool { return false }

// SetEvaluator sets the function RenderToImage uses to run the network.
func (r *Renderer) SetEvaluator(fn func() error) { r.evaluate = fn }

func (r *Renderer) SetSnapshotLimit(limit datasize.ByteSize) { r.In.SetSnapshotLimit(limit) }

// IsScaling reports whether the last canvas size request was refused.
func (r *Renderer) IsScaling() bool { return r.scaling }

// CanvasResized requests the new canvas size upstream.
func (r *Renderer) CanvasResized(size core.Size) {
	r.canvasSize = size
	if size.IsZero() || !r.In.IsConnected() {
		return
	}
	r.scaling = !r.In.RequestSize(size, r.origin)
	if r.scaling {
		r.Log().Info("canvas size refused upstream, scaling", "canvas", size, "image", r.In.Size())
	}
}

func (r *Renderer) Process() error {
	dev := r.Context().Device
	if r.canvasSize.IsZero() {
		return nil
	}
	dev.BindFramebuffer(0)
	dev.Viewport(0, 0, r.canvasSize.W, r.canvasSize.H)
	dev.ClearColor(r.ClearColor)
	dev.Clear(true, true)
	if !r.In.IsReady() {
		return nil
	}

	if err := r.prog.Activate(); err != nil {
		return err
	}
	defer r.prog.Deactivate()
	defer r.ReleaseTextureUnits()
	r.BindInPort(r.prog, r.In, "colorTex_", "depthTex_", "texParams_")
	r.SetGlobalShaderParameters(r.prog, r.Context().Camera, r.canvasSize)
	dev.DepthTest(true)
	dev.DrawFullscreen()
	dev.DepthTest(false)
	return nil
}

// LastError describes why the last RenderToImage failed.
func (r *Renderer) LastError() string { return r.lastErr }

// RenderToImage renders the network at size and writes the input image to
// filename. The canvas size is requested again afterwards. On failure it
// returns false and LastError tells why.
func (r *Renderer) RenderToImage(filename string, size core.Size) bool {
	r.lastErr = ""
	err := r.renderToImage(filename, size)
	if err != nil {
		r.lastErr = err.Error()
		r.Log().Error("render to image failed", "file", filename, "size", size, "err", err)
		return false
	}
	r.Log().Info("rendered image", "file", filename, "size", size)
	return true
}

func (r *Renderer) renderToImage(filename string, size core.Size) error {
	if r.evaluate == nil {
		return errNoEvaluator
	}
	if !r.In.IsConnected() {
		return fmt.Errorf("render %s: %w", filename, port.ErrNoTarget)
	}
	if size.IsZero() {
		return fmt.Errorf("render %s: invalid size %v", filename, size)
	}
	restore := r.canvasSize
	if restore.IsZero() {
		restore = r.In.Size()
	}
	if !r.In.RequestSize(size, r.origin) {
		return fmt.Errorf("render %s at %v: %w", filename, size, port.ErrSizeOriginConflict)
	}
	defer r.In.RequestSize(restore, r.origin)

	if err := r.evaluate(); err != nil {
		return fmt.Errorf("render %s: %w", filename, err)
	}
	if !r.In.HasValidResult() {
		return fmt.Errorf("render %s: input has no valid result", filename)
	}
	return r.In.SaveToImage(filename)
}
