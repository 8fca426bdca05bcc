// Package canvas connects a render network to a drawable surface. A
// Canvas owns the GL context and calls its Painter; GraphPainter
// evaluates the network, and Renderer, the network's terminal stage,
// blits the final image into the canvas framebuffer.
package canvas

import (
	"log/slog"

	"render-pipeline/core"
	"render-pipeline/internal/logx"
)

type Painter = core.Painter

// Canvas is a surface with a GL context. core.Window is the on-screen
// implementation and Offscreen the headless one.
type Canvas interface {
	Size() core.Size
	MakeCurrent()
	Swap()
	// Repaint calls the painter. Nested repaints are dropped.
	Repaint()
	SetPainter(p Painter) error
	Painter() Painter
}

// Offscreen is a canvas without a window. Its framebuffer is whatever the
// device treats as framebuffer 0.
type Offscreen struct {
	size     core.Size
	painter  Painter
	painting bool
	swaps    int
	log      *slog.Logger
}

var _ Canvas = (*Offscreen)(nil)

func NewOffscreen(size core.Size) *Offscreen {
	return &Offscreen{size: size, log: logx.For("canvas")}
}

func (o *Offscreen) Size() core.Size { return o.size }
func (o *Offscreen) MakeCurrent() {}
func (o *Offscreen) Swap() { o.swaps++ }

// Swaps counts completed frames.
func (o *Offscreen) Swaps() int { return o.swaps }

// Resize changes the canvas size and tells the painter.
func (o *Offscreen) Resize(size core.Size) {
	if size == o.size {
		return
	}
	o.size = size
	if o.painter != nil {
		o.painter.SizeChanged(size)
	}
}

func (o *Offscreen) SetPainter(p Painter) error {
	o.painter = p
	if p == nil {
		return nil
	}
	if err := p.Initialize(); err != nil {
		o.painter = nil
		return err
	}
	p.SizeChanged(o.size)
	return nil
}

func (o *Offscreen) Painter() Painter { return o.painter }

func (o *Offscreen) Repaint() {
	if o.painter == nil {
		return
	}
	if o.painting {
		o.log.Warn("dropping nested repaint")
		return
	}
	o.painting = true
	defer func() { o.painting = false }()
	o.painter.Paint()
}
