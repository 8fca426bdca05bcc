package stages

import (
	"fmt"

	"render-pipeline/core"
	"render-pipeline/port"
	"render-pipeline/processor"
	"render-pipeline/shader"
)

type BackgroundMode int32

const (
	BackgroundSolid BackgroundMode = iota
	BackgroundGradient
)

// Background fills its output with a color or a vertical gradient.
type Background struct {
	processor.RenderProcessor
	Out *port.RenderPort

	Color1 core.Color
	Color2 core.Color
	Mode   BackgroundMode

	prog *shader.Program
}

func NewBackground(name string) *Background {
	b := &Background{Color1: core.ColorWhite, Color2: core.ColorBlack, Mode: BackgroundGradient}
	b.Init(name)
	b.Out = b.AddOutPort(port.NewOutPort("image.out"))
	return b
}

func (b *Background) Initialize(ctx *processor.Context) error {
	if err := b.RenderProcessor.Initialize(ctx); err != nil {
		return err
	}
	prog, err := loadProgram(&b.RenderProcessor, "background.frag", "")
	if err != nil {
		b.RenderProcessor.Deinitialize()
		return &processor.InitializationError{Processor: b.Name(), Err: err}
	}
	b.prog = prog
	return nil
}

func (b *Background) Deinitialize() {
	releaseProgram(&b.RenderProcessor, b.prog)
	b.prog = nil
	b.RenderProcessor.Deinitialize()
}

func (b *Background) Process() error {
	return b.Out.WithTarget(b.Name(), func() error {
		b.Context().Device.ClearColor(b.Color1)
		b.Out.ClearTarget()
		return draw(&b.RenderProcessor, b.prog, func() {
			b.prog.SetColor("color1_", b.Color1)
			b.prog.SetColor("color2_", b.Color2)
			b.prog.SetInt("mode_", int32(b.Mode))
		})
	})
}

func (m BackgroundMode) String() string {
	switch m {
	case BackgroundSolid:
		return "solid"
	case BackgroundGradient:
		return "gradient"
	}
	return fmt.Sprintf("BackgroundMode(%d)", int32(m))
}
