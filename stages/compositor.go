package stages

import (
	"fmt"

	"render-pipeline/port"
	"render-pipeline/processor"
	"render-pipeline/shader"
)

type BlendMode int32

const (
	// BlendOver draws the second image over the first by its alpha.
	BlendOver BlendMode = iota
	BlendAdd
	// BlendDepth keeps the fragment nearest to the viewer.
	BlendDepth
	// BlendWeighted mixes the two images by Weight.
	BlendWeighted
)

func (m BlendMode) String() string {
	switch m {
	case BlendOver:
		return "over"
	case BlendAdd:
		return "add"
	case BlendDepth:
		return "depth"
	case BlendWeighted:
		return "weighted"
	}
	return fmt.Sprintf("BlendMode(%d)", int32(m))
}

// Compositor combines two images with their depth.
type Compositor struct {
	processor.RenderProcessor
	In0, In1 *port.RenderPort
	Out      *port.RenderPort

	Mode   BlendMode
	Weight float32

	prog *shader.Program
}

func NewCompositor(name string) *Compositor {
	c := &Compositor{Weight: 0.5}
	c.Init(name)
	c.In0 = c.AddInPort(port.NewInPort("image0.in"))
	c.In1 = c.AddInPort(port.NewInPort("image1.in"))
	c.Out = c.AddOutPort(port.NewOutPort("image.out"))
	return c
}

func (c *Compositor) Initialize(ctx *processor.Context) error {
	if err := c.RenderProcessor.Initialize(ctx); err != nil {
		return err
	}
	prog, err := loadProgram(&c.RenderProcessor, "compositor.frag", "")
	if err != nil {
		c.RenderProcessor.Deinitialize()
		return &processor.InitializationError{Processor: c.Name(), Err: err}
	}
	c.prog = prog
	return nil
}

func (c *Compositor) Deinitialize() {
	releaseProgram(&c.RenderProcessor, c.prog)
	c.prog = nil
	c.RenderProcessor.Deinitialize()
}

func (c *Compositor) Process() error {
	return c.Out.WithTarget(c.Name(), func() error {
		c.Out.ClearTarget()
		return drawDepth(&c.RenderProcessor, c.prog, func() {
			c.BindInPort(c.prog, c.In0, "colorTex0_", "depthTex0_", "")
			c.BindInPort(c.prog, c.In1, "colorTex1_", "depthTex1_", "")
			c.prog.SetInt("mode_", int32(c.Mode))
			c.prog.SetFloat("weight_", c.Weight)
		})
	})
}
