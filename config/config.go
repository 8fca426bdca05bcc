// Package config loads the application configuration from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"render-pipeline/core"
	"render-pipeline/internal/gpu"
	"render-pipeline/internal/logx"
)

type Config struct {
	Window  Window  `toml:"window"`
	Shaders Shaders `toml:"shaders"`
	Render  Render  `toml:"render"`
	Log     Log     `toml:"log"`
}

type Window struct {
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Title     string `toml:"title"`
	VSync     bool   `toml:"vsync"`
	Resizable bool   `toml:"resizable"`
}

type Shaders struct {
	// Root is the directory shader files are loaded from.
	Root string `toml:"root"`
	// SearchPaths are tried in order, relative to Root, for files and
	// includes not found next to the including file.
	SearchPaths []string `toml:"search_paths"`
	// Watch rebuilds programs when a file under Root changes.
	Watch bool `toml:"watch"`
}

type Render struct {
	ColorFormat string `toml:"color_format"`
	DepthFormat string `toml:"depth_format"`
	// MaxSnapshot bounds the readback buffer for screenshots, e.g. "256MB".
	MaxSnapshot datasize.ByteSize `toml:"max_snapshot"`
	// Screenshot is where F12 writes the canvas; the extension picks the format.
	Screenshot string `toml:"screenshot"`
	// BlurSigma is the Gaussian radius of the demo graph; 0 disables the blur.
	BlurSigma float32 `toml:"blur_sigma"`
	Exposure  float32 `toml:"exposure"`
}

type Log struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		Window: Window{
			Width:     1280,
			Height:    720,
			Title:     "Render Pipeline",
			VSync:     true,
			Resizable: true,
		},
		Shaders: Shaders{
			Root:        "shaders",
			SearchPaths: []string{"modules"},
			Watch:       true,
		},
		Render: Render{
			ColorFormat: gpu.FormatRGBA16F.String(),
			DepthFormat: gpu.FormatDepth24.String(),
			MaxSnapshot: 256 * datasize.MB,
			Screenshot:  "~/pipeline.png",
			BlurSigma:   2,
			Exposure:    1,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults. Relative paths in the file are
// resolved against its directory and "~" is expanded.
func Load(path string) (Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML over the defaults and validates the result. Unknown
// keys are an error.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return Config{}, errors.New(sme.String())
		}
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes the configuration as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func (c *Config) resolvePaths(base string) error {
	var err error
	resolve := func(p string) string {
		if p == "" || err != nil {
			return p
		}
		var x string
		x, err = homedir.Expand(p)
		if err == nil && !filepath.IsAbs(x) {
			x = filepath.Join(base, x)
		}
		return x
	}
	c.Shaders.Root = resolve(c.Shaders.Root)
	c.Render.Screenshot = resolve(c.Render.Screenshot)
	return err
}

// ExpandHome expands "~" in the paths of a configuration that was not
// read from a file.
func (c *Config) ExpandHome() error {
	var err error
	if c.Shaders.Root, err = homedir.Expand(c.Shaders.Root); err != nil {
		return err
	}
	c.Render.Screenshot, err = homedir.Expand(c.Render.Screenshot)
	return err
}

func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window: invalid size %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Shaders.Root == "" {
		errs = append(errs, errors.New("shaders: root is empty"))
	}
	if _, _, err := c.Render.Formats(); err != nil {
		errs = append(errs, err)
	}
	if c.Render.BlurSigma < 0 {
		errs = append(errs, fmt.Errorf("render: negative blur_sigma %v", c.Render.BlurSigma))
	}
	if _, err := logx.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	return errors.Join(errs...)
}

// Formats parses the target formats.
func (r Render) Formats() (color, depth gpu.Format, err error) {
	if color, err = gpu.ParseFormat(r.ColorFormat); err != nil {
		return 0, 0, fmt.Errorf("render: color_format: %w", err)
	}
	if color.IsDepth() || color == gpu.FormatNone {
		return 0, 0, fmt.Errorf("render: color_format %q is not a color format", r.ColorFormat)
	}
	if r.DepthFormat == "" || r.DepthFormat == "none" {
		return color, gpu.FormatNone, nil
	}
	if depth, err = gpu.ParseFormat(r.DepthFormat); err != nil {
		return 0, 0, fmt.Errorf("render: depth_format: %w", err)
	}
	if !depth.IsDepth() {
		return 0, 0, fmt.Errorf("render: depth_format %q is not a depth format", r.DepthFormat)
	}
	return color, depth, nil
}

// CoreWindow converts the window section for core.NewWindow.
func (w Window) CoreWindow() core.WindowConfig {
	cfg := core.DefaultWindowConfig()
	cfg.Width = w.Width
	cfg.Height = w.Height
	cfg.Title = w.Title
	cfg.VSync = w.VSync
	cfg.Resizable = w.Resizable
	return cfg
}
