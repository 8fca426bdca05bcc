package shader

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/internal/gpu"
	"render-pipeline/internal/gpu/gputest"
)

func file(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }

func newTestLoader(files map[string]string) (*Loader, fstest.MapFS) {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = file(content)
	}
	return NewLoader(fsys, "shaders", "modules"), fsys
}

func compileFile(t *testing.T, dev *gputest.Device, l *Loader, kind gpu.ShaderKind, name, header string, process bool) (*Object, error) {
	t.Helper()
	obj := NewObject(dev, l, kind, name)
	obj.SetHeader(header, process)
	require.NoError(t, obj.LoadFile())
	return obj, obj.Compile()
}

func TestIncludeExpansionMatchesConcatenation(t *testing.T) {
	util := "float util() { return 1.0; }\n"
	common := "#include \"util.glsl\"\nvec4 common() { return vec4(util()); }"
	main := "#version 410 core\n#include \"lib/common.glsl\"\n#include <mod/extra.glsl>\nvoid main() {}\n"
	extra := "const float extra = 2.0;\n"

	l, _ := newTestLoader(map[string]string{
		"shaders/main.frag":       main,
		"shaders/lib/common.glsl": common,
		"shaders/lib/util.glsl":   util,
		"modules/mod/extra.glsl":  extra,
	})
	obj, err := compileFile(t, gputest.New(), l, gpu.FragmentShader, "main.frag", "", false)
	require.NoError(t, err)

	want := "#version 410 core\n" +
		util +
		"vec4 common() { return vec4(util()); }\n" +
		extra +
		"void main() {}\n"
	assert.Equal(t, want, obj.Source())
	assert.NotContains(t, obj.Source(), "#include")
	assert.True(t, obj.IsCompiled())
	assert.Equal(t, "shaders/main.frag", obj.Path())
}

func TestIncludeInCommentIsIgnored(t *testing.T) {
	src := "// #include \"missing.glsl\"\nint x; /* #include \"missing.glsl\" */\n"
	l, _ := newTestLoader(map[string]string{"shaders/a.vert": src})
	obj, err := compileFile(t, gputest.New(), l, gpu.VertexShader, "a.vert", "", false)
	require.NoError(t, err)
	assert.Equal(t, src, obj.Source())
}

func TestIncludeCycleIsRejected(t *testing.T) {
	cases := map[string]map[string]string{
		"self": {
			"shaders/a.frag": "#include \"a.frag\"\n",
		},
		"mutual": {
			"shaders/a.frag": "#include \"b.glsl\"\n",
			"shaders/b.glsl": "#include \"c.glsl\"\n",
			"shaders/c.glsl": "#include \"b.glsl\"\n",
		},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			l, _ := newTestLoader(files)
			_, err := compileFile(t, gputest.New(), l, gpu.FragmentShader, "a.frag", "", false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIncludeCycle), "got %v", err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Log, "include cycle")
		})
	}
}

func TestIncludeErrors(t *testing.T) {
	l, _ := newTestLoader(map[string]string{
		"shaders/missing.frag":   "#include \"nope.glsl\"\n",
		"shaders/malformed.frag": "#include nope.glsl\n",
	})
	dev := gputest.New()
	_, err := compileFile(t, dev, l, gpu.FragmentShader, "missing.frag", "", false)
	assert.ErrorContains(t, err, "cannot open include")

	_, err = compileFile(t, dev, l, gpu.FragmentShader, "malformed.frag", "", false)
	assert.ErrorContains(t, err, "malformed #include")
}

func TestHeaderInsertedAfterVersionBlock(t *testing.T) {
	src := "// comment\n#version 410 core\n#extension GL_ARB_foo : enable\nvoid main() {}\n"
	l, _ := newTestLoader(map[string]string{"shaders/a.frag": src})
	dev := gputest.New()

	obj, err := compileFile(t, dev, l, gpu.FragmentShader, "a.frag", "USE_A  USE_B", true)
	require.NoError(t, err)
	assert.Equal(t,
		"// comment\n#version 410 core\n#extension GL_ARB_foo : enable\n#define USE_A\n#define USE_B\nvoid main() {}\n",
		obj.Source())

	obj, err = compileFile(t, dev, l, gpu.FragmentShader, "a.frag", "#define N 4", false)
	require.NoError(t, err)
	assert.Contains(t, obj.Source(), "#extension GL_ARB_foo : enable\n#define N 4\nvoid main")
}

func TestHeaderWithoutVersionGoesFirst(t *testing.T) {
	l, _ := newTestLoader(map[string]string{"shaders/a.frag": "void main() {}\n"})
	obj, err := compileFile(t, gputest.New(), l, gpu.FragmentShader, "a.frag", "X", true)
	require.NoError(t, err)
	assert.Equal(t, "#define X\nvoid main() {}\n", obj.Source())
}

func TestHeaderGoesAfterVersionBehindBlockComment(t *testing.T) {
	for name, src := range map[string]string{
		"multi line": "/* Copyright\n * license text\n */\n#version 330\nvoid main() {}\n",
		"one line":   "/* license */\n#version 330\nvoid main() {}\n",
	} {
		t.Run(name, func(t *testing.T) {
			at := headerInsertOffset(src)
			assert.Equal(t, strings.Index(src, "void main"), at)
		})
	}
	assert.Equal(t, 0, headerInsertOffset("/* a */ int x;\n#version 330\n"), "code after a comment ends the block")
}

func TestSuccessfulCompileLeavesEmptyLog(t *testing.T) {
	l, fsys := newTestLoader(map[string]string{
		"shaders/a.frag": "#version 330\n#warning deprecated\nvoid main() {}\n",
	})
	obj, err := compileFile(t, gputest.New(), l, gpu.FragmentShader, "a.frag", "", false)
	require.NoError(t, err)
	assert.True(t, obj.IsCompiled())
	assert.Empty(t, obj.Log(), "warnings are not kept")

	fsys["shaders/a.frag"] = file("#error broken\n")
	require.Error(t, obj.RebuildFromFile())
	assert.NotEmpty(t, obj.Log())

	fsys["shaders/a.frag"] = file("void main() {}\n")
	require.NoError(t, obj.RebuildFromFile())
	assert.Empty(t, obj.Log(), "a fixed shader clears the old failure")
}

func TestAnnotatedLogMapsIncludeLines(t *testing.T) {
	l, _ := newTestLoader(map[string]string{
		"shaders/main.frag":     "#version 410 core\n#include \"lib/util.glsl\"\nvoid main() {}\n",
		"shaders/lib/util.glsl": "float f() { return 1.0; }\n#error boom\n",
	})
	obj, err := compileFile(t, gputest.New(), l, gpu.FragmentShader, "main.frag", "A B", true)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "0(5) : error C0000: #error boom\n", obj.Log())
	assert.Equal(t, ce.Log, obj.Log())
	assert.Equal(t, "0(5) : error C0000: #error boom [shaders/lib/util.glsl:2]\n", obj.AnnotatedLog())
	assert.False(t, obj.IsCompiled())
}

func TestLogLineNumberFormats(t *testing.T) {
	assert.Equal(t, 123, logLineNumber("0(123) : error C0000: syntax error"))
	assert.Equal(t, 27, logLineNumber("ERROR: 0:27: 'frontPos' : undeclared identifier"))
	assert.Equal(t, 9, logLineNumber("0:9(12): error: syntax error"))
	assert.Equal(t, 0, logLineNumber("Link failed."))
}

func TestGeometryDirectives(t *testing.T) {
	src := "#version 410 core\n" +
		"//$ GL_GEOMETRY_INPUT_TYPE_EXT(GL_LINES)\n" +
		"// OUTPUT_TYPE(LINE_STRIP)\n" +
		"// VERTICES_OUT(4)\n" +
		"void main() {}\n"
	l, _ := newTestLoader(map[string]string{"shaders/a.geom": src})
	obj, err := compileFile(t, gputest.New(), l, gpu.GeometryShader, "a.geom", "", false)
	require.NoError(t, err)

	g := obj.Geometry()
	assert.Equal(t, Lines, g.Input)
	assert.Equal(t, LineStrip, g.Output)
	assert.Equal(t, 4, g.VerticesOut)
	assert.NotContains(t, obj.Source(), "INPUT_TYPE")
	assert.Contains(t, obj.Source(), "layout(lines) in;\nlayout(line_strip, max_vertices = 4) out;\n")
	// stripped lines stay as blank lines
	assert.Equal(t, strings.Count(src, "\n")+2, strings.Count(obj.Source(), "\n"))
}

func TestGeometryDefaultsAndErrors(t *testing.T) {
	l, _ := newTestLoader(map[string]string{
		"shaders/plain.geom":  "layout(points) in;\nvoid main() {}\n",
		"shaders/spaced.geom": "// INPUT_TYPE(GL_LINES )\n",
		"shaders/bad.geom":    "// OUTPUT_TYPE(GL_QUADS)\n",
	})
	dev := gputest.New()
	obj, err := compileFile(t, dev, l, gpu.GeometryShader, "plain.geom", "", false)
	require.NoError(t, err)
	assert.Equal(t, DefaultGeometryParams(), obj.Geometry())
	assert.NotContains(t, obj.Source(), "max_vertices")

	_, err = compileFile(t, dev, l, gpu.GeometryShader, "spaced.geom", "", false)
	assert.ErrorContains(t, err, "no whitespace")

	_, err = compileFile(t, dev, l, gpu.GeometryShader, "bad.geom", "", false)
	assert.ErrorContains(t, err, "unknown geometry output type")
}

func TestRebuildFromFileReusesHandle(t *testing.T) {
	l, fsys := newTestLoader(map[string]string{"shaders/a.frag": "void main() {}\n"})
	dev := gputest.New()
	obj, err := compileFile(t, dev, l, gpu.FragmentShader, "a.frag", "", false)
	require.NoError(t, err)
	h := obj.Handle()

	fsys["shaders/a.frag"] = file("#error changed\n")
	require.Error(t, obj.RebuildFromFile())
	assert.Equal(t, h, obj.Handle())

	fsys["shaders/a.frag"] = file("void main() { }\n")
	require.NoError(t, obj.RebuildFromFile())
	assert.Equal(t, h, obj.Handle())
	assert.Equal(t, 3, dev.Shaders[h].Compiles)
}
