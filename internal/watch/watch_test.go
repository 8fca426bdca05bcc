package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsShader(t *testing.T) {
	assert.True(t, IsShader("shaders/copyimage.frag"))
	assert.True(t, IsShader("modules/MOD_COLOR.GLSL"))
	assert.True(t, IsShader("fullscreen.vert"))
	assert.False(t, IsShader("shaders/.copyimage.frag.swp"))
	assert.False(t, IsShader("README.md"))
}

func TestWatcherReportsEdits(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "modules")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w, err := New(root)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	path := filepath.Join(sub, "mod_color.glsl")
	require.NoError(t, os.WriteFile(path, []byte("float luminance(vec3 c);\n"), 0o644))

	select {
	case got := <-w.Changes():
		assert.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
