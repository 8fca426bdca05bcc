package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/internal/gpu"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	color, depth, err := cfg.Render.Formats()
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatRGBA16F, color)
	assert.Equal(t, gpu.FormatDepth24, depth)
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
[window]
width = 800
vsync = false

[shaders]
search_paths = ["modules", "extra"]

[render]
color_format = "rgba8"
depth_format = "none"
max_snapshot = "64MB"

[log]
level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.False(t, cfg.Window.VSync)
	assert.Equal(t, []string{"modules", "extra"}, cfg.Shaders.SearchPaths)
	assert.Equal(t, 64*datasize.MB, cfg.Render.MaxSnapshot)
	assert.Equal(t, "debug", cfg.Log.Level)

	color, depth, err := cfg.Render.Formats()
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatRGBA8, color)
	assert.Equal(t, gpu.FormatNone, depth)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("[window]\nwidht = 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widht")
}

func TestDecodeValidates(t *testing.T) {
	_, err := Decode(strings.NewReader(`
[window]
height = 0

[render]
color_format = "depth24"
depth_format = "rgba8"

[log]
level = "loud"
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid size")
	assert.Contains(t, msg, "color_format")
	assert.Contains(t, msg, "loud")
}

func TestLoadResolvesPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[shaders]
root = "glsl"

[render]
screenshot = "~/shots/frame.tga"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "glsl"), cfg.Shaders.Root)
	assert.Equal(t, filepath.Join(home, "shots", "frame.tga"), cfg.Render.Screenshot)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeDecode(t *testing.T) {
	cfg := Default()
	cfg.Window.Title = "viewer"
	cfg.Render.MaxSnapshot = 2 * datasize.GB

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestCoreWindow(t *testing.T) {
	w := Default().Window
	w.Width, w.Title = 640, "x"
	cw := w.CoreWindow()
	assert.Equal(t, 640, cw.Width)
	assert.Equal(t, 720, cw.Height)
	assert.Equal(t, "x", cw.Title)
	assert.True(t, cw.VSync)
}

func TestExampleFileMatchesDefaults(t *testing.T) {
	cfg, err := Load("../pipeline.toml")
	require.NoError(t, err)

	want := Default()
	require.NoError(t, want.resolvePaths(".."))
	assert.Equal(t, want, cfg)
}
