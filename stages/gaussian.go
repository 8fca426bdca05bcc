package stages

import (
	"render-pipeline/math"
	"render-pipeline/port"
	"render-pipeline/processor"
	"render-pipeline/shader"
)

// Gaussian blurs its input with a separable kernel: a horizontal pass
// into a private target, then a vertical pass into the output.
type Gaussian struct {
	processor.RenderProcessor
	In  *port.RenderPort
	Out *port.RenderPort
	tmp *port.RenderPort

	Sigma float32

	prog *shader.Program
}

func NewGaussian(name string) *Gaussian {
	g := &Gaussian{Sigma: 2}
	g.Init(name)
	g.In = g.AddInPort(port.NewInPort("image.in"))
	g.Out = g.AddOutPort(port.NewOutPort("image.out"))
	g.tmp = g.AddPrivatePort(port.NewOutPort("image.tmp"))
	return g
}

func (g *Gaussian) Initialize(ctx *processor.Context) error {
	if err := g.RenderProcessor.Initialize(ctx); err != nil {
		return err
	}
	prog, err := loadProgram(&g.RenderProcessor, "gaussian.frag", "")
	if err != nil {
		g.RenderProcessor.Deinitialize()
		return &processor.InitializationError{Processor: g.Name(), Err: err}
	}
	g.prog = prog
	return nil
}

func (g *Gaussian) Deinitialize() {
	releaseProgram(&g.RenderProcessor, g.prog)
	g.prog = nil
	g.RenderProcessor.Deinitialize()
}

func (g *Gaussian) Process() error {
	sigma := g.Sigma
	if sigma <= 0 {
		sigma = 0.1
	}
	pass := func(src, dst *port.RenderPort, dir math.Vec2) error {
		return dst.WithTarget(g.Name(), func() error {
			dst.ClearTarget()
			return draw(&g.RenderProcessor, g.prog, func() {
				g.BindInPort(g.prog, src, "colorTex_", "", "texParams_")
				g.prog.SetVec2("dir_", dir)
				g.prog.SetFloat("sigma_", sigma)
			})
		})
	}
	if err := pass(g.In, g.tmp, math.NewVec2(1, 0)); err != nil {
		return err
	}
	return pass(g.tmp, g.Out, math.NewVec2(0, 1))
}
