package canvas

import (
	"log/slog"

	"render-pipeline/core"
	"render-pipeline/internal/logx"
	"render-pipeline/network"
)

// GraphPainter paints a canvas by evaluating a network whose terminal
// stage is renderer.
type GraphPainter struct {
	canvas   Canvas
	net      *network.Network
	renderer *Renderer
	log      *slog.Logger
}

var _ Painter = (*GraphPainter)(nil)

func NewGraphPainter(c Canvas, net *network.Network, renderer *Renderer) *GraphPainter {
	return &GraphPainter{canvas: c, net: net, renderer: renderer, log: logx.For("painter")}
}

func (g *GraphPainter) Renderer() *Renderer { return g.renderer }
func (g *GraphPainter) Network() *network.Network { return g.net }

// Initialize initializes the network. Stages that fail are logged and
// skipped; only a failing renderer is fatal.
func (g *GraphPainter) Initialize() error {
	if err := g.net.Initialize(); err != nil {
		g.log.Error("network initialized with errors", "err", err)
		if !g.renderer.IsInitialized() {
			return err
		}
	}
	g.renderer.SetEvaluator(g.net.Evaluate)
	return nil
}

func (g *GraphPainter) SizeChanged(size core.Size) {
	g.renderer.CanvasResized(size)
}

// Paint evaluates the network and presents the frame.
func (g *GraphPainter) Paint() {
	if err := g.net.Evaluate(); err != nil {
		g.log.Error("evaluation failed", "err", err)
	}
	g.canvas.Swap()
}

// RenderToImage renders the network at size into filename.
func (g *GraphPainter) RenderToImage(filename string, size core.Size) bool {
	return g.renderer.RenderToImage(filename, size)
}
