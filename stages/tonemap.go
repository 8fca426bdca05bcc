package stages

import (
	"render-pipeline/port"
	"render-pipeline/processor"
	"render-pipeline/shader"
)

// ToneMap maps an HDR image to display range: exposure, then gamma. With
// BrightPass only pixels brighter than Threshold survive.
type ToneMap struct {
	processor.RenderProcessor
	In  *port.RenderPort
	Out *port.RenderPort

	Exposure   float32
	Gamma      float32
	BrightPass bool
	Threshold  float32

	prog       *shader.Program
	brightPass bool
}

func NewToneMap(name string) *ToneMap {
	t := &ToneMap{Exposure: 1, Gamma: 2.2, Threshold: 1}
	t.Init(name)
	t.In = t.AddInPort(port.NewInPort("image.in"))
	t.Out = t.AddOutPort(port.NewOutPort("image.out"))
	return t
}

func (t *ToneMap) defines() string {
	if t.BrightPass {
		return "#define BRIGHT_PASS\n"
	}
	return ""
}

func (t *ToneMap) Initialize(ctx *processor.Context) error {
	if err := t.RenderProcessor.Initialize(ctx); err != nil {
		return err
	}
	if err := t.loadProgram(); err != nil {
		t.RenderProcessor.Deinitialize()
		return &processor.InitializationError{Processor: t.Name(), Err: err}
	}
	return nil
}

func (t *ToneMap) loadProgram() error {
	prog, err := loadProgram(&t.RenderProcessor, "tonemap.frag", t.defines())
	if err != nil {
		return err
	}
	releaseProgram(&t.RenderProcessor, t.prog)
	t.prog = prog
	t.brightPass = t.BrightPass
	return nil
}

func (t *ToneMap) Deinitialize() {
	releaseProgram(&t.RenderProcessor, t.prog)
	t.prog = nil
	t.RenderProcessor.Deinitialize()
}

func (t *ToneMap) Process() error {
	if t.brightPass != t.BrightPass {
		if err := t.loadProgram(); err != nil {
			return err
		}
	}
	return t.Out.WithTarget(t.Name(), func() error {
		t.Out.ClearTarget()
		return draw(&t.RenderProcessor, t.prog, func() {
			t.BindInPort(t.prog, t.In, "colorTex_", "", "")
			t.prog.SetFloat("exposure_", t.Exposure)
			t.prog.SetFloat("gamma_", t.Gamma)
			t.prog.SetFloat("threshold_", t.Threshold)
		})
	})
}
