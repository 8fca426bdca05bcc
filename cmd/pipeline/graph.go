package main

import (
	"slices"

	"render-pipeline/canvas"
	"render-pipeline/config"
	"render-pipeline/core"
	"render-pipeline/network"
	"render-pipeline/port"
	"render-pipeline/processor"
	"render-pipeline/stages"
)

// graph is the demo network plus the stages the key bindings adjust.
type graph struct {
	net      *network.Network
	bg       *stages.Background
	tone     *stages.ToneMap
	comp     *stages.Compositor
	renderer *canvas.Renderer
}

func buildGraph(ctx *processor.Context, cfg config.Config) (*graph, error) {
	g := &graph{net: network.New(ctx)}

	g.bg = stages.NewBackground("background")
	g.bg.Mode = stages.BackgroundGradient
	g.bg.Color1 = core.Color{R: 0.05, G: 0.07, B: 0.15, A: 1}
	g.bg.Color2 = core.Color{R: 1.6, G: 1.2, B: 0.7, A: 1}

	g.tone = stages.NewToneMap("tonemap")
	g.tone.Exposure = cfg.Render.Exposure

	g.comp = stages.NewCompositor("compositor")
	g.comp.Mode = stages.BlendWeighted

	g.renderer = canvas.NewRenderer("canvas")
	g.renderer.SetSnapshotLimit(cfg.Render.MaxSnapshot)

	g.net.Add(g.bg, g.tone, g.comp, g.renderer)

	links := [][2]*port.RenderPort{}
	src := g.bg.Out
	if cfg.Render.BlurSigma > 0 {
		blur := stages.NewGaussian("blur")
		blur.Sigma = cfg.Render.BlurSigma
		g.net.Add(blur)
		links = append(links, [2]*port.RenderPort{g.bg.Out, blur.In})
		src = blur.Out
	}
	links = append(links,
		[2]*port.RenderPort{src, g.tone.In},
		[2]*port.RenderPort{g.tone.Out, g.comp.In0},
		[2]*port.RenderPort{g.bg.Out, g.comp.In1},
		[2]*port.RenderPort{g.comp.Out, g.renderer.In},
	)
	for _, l := range links {
		if err := g.net.Connect(l[0], l[1]); err != nil {
			return nil, err
		}
	}

	color, depth, err := cfg.Render.Formats()
	if err != nil {
		return nil, err
	}
	for _, p := range g.net.Processors() {
		ports := slices.Clone(p.OutPorts())
		if pp, ok := p.(interface{ PrivatePorts() []*port.RenderPort }); ok {
			ports = append(ports, pp.PrivatePorts()...)
		}
		for _, rp := range ports {
			if err := rp.ChangeFormat(color, depth); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// toggleBrightPass switches the tone mapper between full output and the
// bright pass.
func (g *graph) toggleBrightPass() {
	g.tone.BrightPass = !g.tone.BrightPass
	g.tone.Invalidate()
}

func (g *graph) cycleBlendMode() stages.BlendMode {
	g.comp.Mode = (g.comp.Mode + 1) % (stages.BlendWeighted + 1)
	g.comp.Invalidate()
	return g.comp.Mode
}
