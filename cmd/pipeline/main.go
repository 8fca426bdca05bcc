// Command pipeline opens a window and paints a small render network into
// it: a gradient background, blurred and tone-mapped, blended over itself.
//
// Keys: F5 rebuilds every shader from disk, F12 writes a screenshot, B
// toggles the bright pass, C cycles the blend mode, Escape quits. Drag
// with the left button to orbit the camera and scroll to zoom.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"render-pipeline/canvas"
	"render-pipeline/config"
	"render-pipeline/core"
	"render-pipeline/internal/logx"
)

var _ canvas.Canvas = (*core.Window)(nil)

const defaultConfigPath = "~/.config/render-pipeline/config.toml"

func main() {
	var (
		configPath  = flag.String("config", defaultConfigPath, "configuration file")
		shaderRoot  = flag.String("shaders", "", "shader directory, overrides the configuration")
		logLevel    = flag.String("log-level", "", "debug, info, warn or error, overrides the configuration")
		snapshot    = flag.String("snapshot", "", "render one frame into this file and exit")
		writeConfig = flag.Bool("write-config", false, "print the effective configuration and exit")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath, *configPath != defaultConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *shaderRoot != "" {
		cfg.Shaders.Root = *shaderRoot
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *writeConfig {
		if err := cfg.Encode(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	lvl, _ := logx.ParseLevel(cfg.Log.Level)
	logx.SetLogger(logx.NewText(os.Stderr, lvl))

	if err := run(cfg, *snapshot); err != nil {
		logx.For("main").Error("pipeline failed", "err", err)
		os.Exit(1)
	}
}

// loadConfig reads path. A missing file at the default location falls
// back to the built-in configuration.
func loadConfig(path string, explicit bool) (config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		return cfg, cfg.ExpandHome()
	}
	return config.Config{}, err
}
