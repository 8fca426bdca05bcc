package core

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"render-pipeline/internal/logx"
)

func init() {
	runtime.LockOSThread()
}

// Painter draws into a canvas. The canvas calls Initialize once with its
// context current, SizeChanged whenever the framebuffer size changes and
// Paint on every repaint.
type Painter interface {
	Initialize() error
	Paint()
	SizeChanged(size Size)
}

// Window is a GLFW window owning an OpenGL 4.1 core context.
type Window struct {
	Handle *glfw.Window
	Width  int
	Height int
	Title  string

	painter  Painter
	painting bool
	log      *slog.Logger
}

type WindowConfig struct {
	Width      int
	Height     int
	Title      string
	Resizable  bool
	VSync      bool
	Fullscreen bool
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Width:      1280,
		Height:     720,
		Title:      "Render Pipeline",
		Resizable:  true,
		VSync:      true,
		Fullscreen: false,
	}
}

// NewWindow creates the window and makes its context current.
func NewWindow(config WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, boolToInt(config.Resizable))

	monitor := (*glfw.Monitor)(nil)
	if config.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}

	handle, err := glfw.CreateWindow(config.Width, config.Height, config.Title, monitor, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	handle.MakeContextCurrent()
	if config.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	window := &Window{
		Handle: handle,
		Width:  config.Width,
		Height: config.Height,
		Title:  config.Title,
		log:    logx.For("window"),
	}

	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		window.Width = width
		window.Height = height
		if window.painter != nil {
			window.painter.SizeChanged(window.Size())
		}
		window.Repaint()
	})
	handle.SetRefreshCallback(func(*glfw.Window) {
		window.Repaint()
	})

	return window, nil
}

// Size is the framebuffer size in pixels.
func (w *Window) Size() Size {
	fw, fh := w.Handle.GetFramebufferSize()
	return Size{W: fw, H: fh}
}

func (w *Window) MakeCurrent() {
	w.Handle.MakeContextCurrent()
}

func (w *Window) Swap() {
	w.Handle.SwapBuffers()
}

// SetPainter attaches p, initializes it and reports the current size. A
// nil painter detaches.
func (w *Window) SetPainter(p Painter) error {
	w.painter = p
	if p == nil {
		return nil
	}
	w.MakeCurrent()
	if err := p.Initialize(); err != nil {
		w.painter = nil
		return err
	}
	p.SizeChanged(w.Size())
	return nil
}

func (w *Window) Painter() Painter { return w.painter }

// Repaint paints through the attached painter. A repaint triggered while
// painting is dropped.
func (w *Window) Repaint() {
	if w.painter == nil {
		return
	}
	if w.painting {
		w.log.Warn("dropping nested repaint")
		return
	}
	w.painting = true
	defer func() { w.painting = false }()
	w.MakeCurrent()
	w.painter.Paint()
}

func (w *Window) ShouldClose() bool {
	return w.Handle.ShouldClose()
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// Destroy detaches the painter before tearing the window down so that no
// callback repaints a half-destroyed canvas.
func (w *Window) Destroy() {
	w.painter = nil
	w.Handle.SetFramebufferSizeCallback(nil)
	w.Handle.SetRefreshCallback(nil)
	w.Handle.Destroy()
	glfw.Terminate()
}

func (w *Window) IsKeyPressed(key int) bool {
	return w.Handle.GetKey(glfw.Key(key)) == glfw.Press
}

// KeyCallback receives key presses; repeats and releases are filtered.
type KeyCallback func(key int)

func (w *Window) SetKeyCallback(cb KeyCallback) {
	w.Handle.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Press {
			cb(int(key))
		}
	})
}

func (w *Window) SetTitle(title string) {
	w.Handle.SetTitle(title)
	w.Title = title
}

func (w *Window) IsMouseButtonPressed(button int) bool {
	return w.Handle.GetMouseButton(glfw.MouseButton(button)) == glfw.Press
}

func (w *Window) GetCursorPos() (float64, float64) {
	return w.Handle.GetCursorPos()
}

// ScrollCallback is the type for scroll event handlers
type ScrollCallback func(xoff, yoff float64)

func (w *Window) SetScrollCallback(cb ScrollCallback) {
	w.Handle.SetScrollCallback(func(win *glfw.Window, xoff, yoff float64) {
		cb(xoff, yoff)
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const (
	KeySpace        = int(glfw.KeySpace)
	KeyApostrophe   = int(glfw.KeyApostrophe)
	KeyComma        = int(glfw.KeyComma)
	KeyMinus        = int(glfw.KeyMinus)
	KeyPeriod       = int(glfw.KeyPeriod)
	KeySlash        = int(glfw.KeySlash)
	Key0            = int(glfw.Key0)
	Key1            = int(glfw.Key1)
	Key2            = int(glfw.Key2)
	Key3            = int(glfw.Key3)
	Key4            = int(glfw.Key4)
	Key5            = int(glfw.Key5)
	Key6            = int(glfw.Key6)
	Key7            = int(glfw.Key7)
	Key8            = int(glfw.Key8)
	Key9            = int(glfw.Key9)
	KeySemicolon    = int(glfw.KeySemicolon)
	KeyEqual        = int(glfw.KeyEqual)
	KeyA            = int(glfw.KeyA)
	KeyB            = int(glfw.KeyB)
	KeyC            = int(glfw.KeyC)
	KeyD            = int(glfw.KeyD)
	KeyE            = int(glfw.KeyE)
	KeyF            = int(glfw.KeyF)
	KeyG            = int(glfw.KeyG)
	KeyH            = int(glfw.KeyH)
	KeyI            = int(glfw.KeyI)
	KeyJ            = int(glfw.KeyJ)
	KeyK            = int(glfw.KeyK)
	KeyL            = int(glfw.KeyL)
	KeyM            = int(glfw.KeyM)
	KeyN            = int(glfw.KeyN)
	KeyO            = int(glfw.KeyO)
	KeyP            = int(glfw.KeyP)
	KeyQ            = int(glfw.KeyQ)
	KeyR            = int(glfw.KeyR)
	KeyS            = int(glfw.KeyS)
	KeyT            = int(glfw.KeyT)
	KeyU            = int(glfw.KeyU)
	KeyV            = int(glfw.KeyV)
	KeyW            = int(glfw.KeyW)
	KeyX            = int(glfw.KeyX)
	KeyY            = int(glfw.KeyY)
	KeyZ            = int(glfw.KeyZ)
	KeyLeftBracket  = int(glfw.KeyLeftBracket)
	KeyBackslash    = int(glfw.KeyBackslash)
	KeyRightBracket = int(glfw.KeyRightBracket)
	KeyGraveAccent  = int(glfw.KeyGraveAccent)
	KeyWorld1       = int(glfw.KeyWorld1)
	KeyWorld2       = int(glfw.KeyWorld2)
	KeyEscape       = int(glfw.KeyEscape)
	KeyEnter        = int(glfw.KeyEnter)
	KeyTab          = int(glfw.KeyTab)
	KeyBackspace    = int(glfw.KeyBackspace)
	KeyInsert       = int(glfw.KeyInsert)
	KeyDelete       = int(glfw.KeyDelete)
	KeyRight        = int(glfw.KeyRight)
	KeyLeft         = int(glfw.KeyLeft)
	KeyDown         = int(glfw.KeyDown)
	KeyUp           = int(glfw.KeyUp)
	KeyPageUp       = int(glfw.KeyPageUp)
	KeyPageDown     = int(glfw.KeyPageDown)
	KeyHome         = int(glfw.KeyHome)
	KeyEnd          = int(glfw.KeyEnd)
	KeyCapsLock     = int(glfw.KeyCapsLock)
	KeyScrollLock   = int(glfw.KeyScrollLock)
	KeyNumLock      = int(glfw.KeyNumLock)
	KeyPrintScreen  = int(glfw.KeyPrintScreen)
	KeyPause        = int(glfw.KeyPause)
	KeyF1           = int(glfw.KeyF1)
	KeyF2           = int(glfw.KeyF2)
	KeyF3           = int(glfw.KeyF3)
	KeyF4           = int(glfw.KeyF4)
	KeyF5           = int(glfw.KeyF5)
	KeyF6           = int(glfw.KeyF6)
	KeyF7           = int(glfw.KeyF7)
	KeyF8           = int(glfw.KeyF8)
	KeyF9           = int(glfw.KeyF9)
	KeyF10          = int(glfw.KeyF10)
	KeyF11          = int(glfw.KeyF11)
	KeyF12          = int(glfw.KeyF12)
	KeyLeftShift    = int(glfw.KeyLeftShift)
	KeyLeftControl  = int(glfw.KeyLeftControl)
	KeyLeftAlt      = int(glfw.KeyLeftAlt)
	KeyLeftSuper    = int(glfw.KeyLeftSuper)
	KeyRightShift   = int(glfw.KeyRightShift)
	KeyRightControl = int(glfw.KeyRightControl)
	KeyRightAlt     = int(glfw.KeyRightAlt)
	KeyRightSuper   = int(glfw.KeyRightSuper)
	KeyMenu         = int(glfw.KeyMenu)
)
