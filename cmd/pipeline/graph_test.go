package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/canvas"
	"render-pipeline/config"
	"render-pipeline/core"
	"render-pipeline/internal/gpu"
	"render-pipeline/internal/gpu/gputest"
	"render-pipeline/processor"
	"render-pipeline/scene"
	"render-pipeline/shader"
	"render-pipeline/stages"
)

func newTestGraph(t *testing.T, cfg config.Config) (*graph, *gputest.Device, *canvas.Offscreen) {
	t.Helper()
	dev := gputest.New()
	shaders := shader.NewManager(dev, shader.NewLoader(os.DirFS("../../shaders"), cfg.Shaders.SearchPaths...))
	ctx, err := processor.NewContext(dev, shaders, scene.NewCamera(1, 1, 0.1, 100))
	require.NoError(t, err)

	g, err := buildGraph(ctx, cfg)
	require.NoError(t, err)

	c := canvas.NewOffscreen(core.Size{W: 160, H: 90})
	require.NoError(t, c.SetPainter(canvas.NewGraphPainter(c, g.net, g.renderer)))
	return g, dev, c
}

func TestGraphRendersEveryStage(t *testing.T) {
	g, dev, c := newTestGraph(t, config.Default())

	order, err := g.net.Order()
	require.NoError(t, err)
	var names []string
	for _, p := range order {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"background", "blur", "tonemap", "compositor", "canvas"}, names)

	c.Repaint()
	assert.Len(t, dev.Draws, 6, "background, two blur passes, tone map, compositor, canvas")
	assert.Equal(t, core.Size{W: 160, H: 90}, g.bg.Out.Size())

	color, depth := g.bg.Out.Formats()
	assert.Equal(t, gpu.FormatRGBA16F, color)
	assert.Equal(t, gpu.FormatDepth24, depth)

	dev.Draws = nil
	c.Repaint()
	assert.Len(t, dev.Draws, 1, "only the canvas repaints a valid network")
}

func TestGraphWithoutBlur(t *testing.T) {
	cfg := config.Default()
	cfg.Render.BlurSigma = 0
	g, dev, c := newTestGraph(t, cfg)

	assert.Len(t, g.net.Processors(), 4)
	c.Repaint()
	assert.Len(t, dev.Draws, 4)
}

func TestKeyBindingsInvalidateDownstream(t *testing.T) {
	g, dev, c := newTestGraph(t, config.Default())
	c.Repaint()

	dev.Draws = nil
	g.toggleBrightPass()
	assert.True(t, g.tone.BrightPass)
	c.Repaint()
	assert.Len(t, dev.Draws, 3, "tone map, compositor, canvas")

	dev.Draws = nil
	assert.Equal(t, stages.BlendOver, g.cycleBlendMode())
	c.Repaint()
	assert.Len(t, dev.Draws, 2, "compositor, canvas")
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig("/nonexistent/config.toml", false)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Window, cfg.Window)

	_, err = loadConfig("/nonexistent/config.toml", true)
	assert.Error(t, err)
}
