package main

import (
	"fmt"
	stdmath "math"
	"os"
	"time"

	"render-pipeline/canvas"
	"render-pipeline/config"
	"render-pipeline/core"
	"render-pipeline/internal/logx"
	"render-pipeline/internal/opengl"
	"render-pipeline/internal/watch"
	"render-pipeline/math"
	"render-pipeline/processor"
	"render-pipeline/scene"
	"render-pipeline/shader"
)

func run(cfg config.Config, snapshot string) error {
	log := logx.For("main")

	window, err := core.NewWindow(cfg.Window.CoreWindow())
	if err != nil {
		return err
	}
	defer window.Destroy()

	dev, err := opengl.New()
	if err != nil {
		return err
	}
	defer dev.Destroy()

	loader := shader.NewLoader(os.DirFS(cfg.Shaders.Root), cfg.Shaders.SearchPaths...)
	shaders := shader.NewManager(dev, loader)
	defer shaders.Close()

	size := window.Size()
	camera := scene.NewOrbitCamera(math.Vec3{}, 5, float32(stdmath.Pi)/3, float32(size.W)/float32(max(size.H, 1)))

	ctx, err := processor.NewContext(dev, shaders, &camera.Camera)
	if err != nil {
		return err
	}
	log.Info("capabilities", "gl", ctx.Caps.GL, "glsl", ctx.Caps.GLSL,
		"texture_units", ctx.Caps.MaxTextureUnits, "attachments", ctx.Caps.MaxAttachments)

	g, err := buildGraph(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build network: %w", err)
	}
	defer g.net.Deinitialize()

	painter := canvas.NewGraphPainter(window, g.net, g.renderer)
	if err := window.SetPainter(painter); err != nil {
		return fmt.Errorf("initialize network: %w", err)
	}
	defer window.SetPainter(nil)

	if snapshot != "" {
		if !painter.RenderToImage(snapshot, window.Size()) {
			return fmt.Errorf("snapshot: %s", g.renderer.LastError())
		}
		log.Info("snapshot written", "file", snapshot)
		return nil
	}

	var changes <-chan string
	if cfg.Shaders.Watch {
		w, err := watch.New(cfg.Shaders.Root)
		if err != nil {
			log.Warn("shader watching disabled", "err", err)
		} else {
			defer w.Close()
			changes = w.Changes()
		}
	}

	rebuild := func() {
		if err := shaders.RebuildAllFromFile(); err != nil {
			log.Error("shader rebuild failed", "err", err)
		} else {
			log.Info("shaders rebuilt", "programs", shaders.Len())
		}
		g.net.Invalidate()
	}

	window.SetKeyCallback(func(key int) {
		switch key {
		case core.KeyEscape:
			window.Handle.SetShouldClose(true)
		case core.KeyF5:
			rebuild()
		case core.KeyF12:
			if painter.RenderToImage(cfg.Render.Screenshot, window.Size()) {
				log.Info("screenshot written", "file", cfg.Render.Screenshot)
			} else {
				log.Error("screenshot failed", "err", g.renderer.LastError())
			}
		case core.KeyB:
			g.toggleBrightPass()
			log.Info("bright pass", "enabled", g.tone.BrightPass)
		case core.KeyC:
			log.Info("blend mode", "mode", g.cycleBlendMode())
		}
	})

	orbit := newOrbitControl(window, camera, g)
	window.SetScrollCallback(func(_, yoff float64) {
		camera.Zoom(float32(-yoff) * 0.5)
		g.net.Invalidate()
	})

	frames := 0
	lastTitle := time.Now()
	for !window.ShouldClose() {
		window.PollEvents()
		select {
		case path := <-changes:
			log.Info("shader source changed", "file", path)
			rebuild()
		default:
		}
		orbit.update()
		window.Repaint()

		frames++
		if elapsed := time.Since(lastTitle); elapsed >= time.Second {
			window.SetTitle(fmt.Sprintf("%s | %.0f fps", cfg.Window.Title, float64(frames)/elapsed.Seconds()))
			frames = 0
			lastTitle = time.Now()
		}
	}
	return nil
}

// orbitControl turns left-button drags into camera orbits.
type orbitControl struct {
	window   *core.Window
	camera   *scene.OrbitCamera
	g        *graph
	dragging bool
	lastX    float64
	lastY    float64
}

func newOrbitControl(w *core.Window, cam *scene.OrbitCamera, g *graph) *orbitControl {
	return &orbitControl{window: w, camera: cam, g: g}
}

func (o *orbitControl) update() {
	if !o.window.IsMouseButtonPressed(0) {
		o.dragging = false
		return
	}
	x, y := o.window.GetCursorPos()
	if o.dragging && (x != o.lastX || y != o.lastY) {
		o.camera.Orbit(float32(x-o.lastX)*0.005, float32(y-o.lastY)*0.005)
		o.g.net.Invalidate()
	}
	o.dragging = true
	o.lastX, o.lastY = x, y
}
