package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Primitive is a native primitive topology enum.
type Primitive int

const (
	Points             Primitive = 0x0
	Lines              Primitive = 0x1
	LineStrip          Primitive = 0x3
	Triangles          Primitive = 0x4
	TriangleStrip      Primitive = 0x5
	LinesAdjacency     Primitive = 0xA
	TrianglesAdjacency Primitive = 0xC
)

var primitiveNames = map[Primitive]string{
	Points:             "points",
	Lines:              "lines",
	LineStrip:          "line_strip",
	Triangles:          "triangles",
	TriangleStrip:      "triangle_strip",
	LinesAdjacency:     "lines_adjacency",
	TrianglesAdjacency: "triangles_adjacency",
}

// LayoutName is the GLSL layout qualifier of the primitive.
func (p Primitive) LayoutName() string {
	return primitiveNames[p]
}

func (p Primitive) String() string {
	if n, ok := primitiveNames[p]; ok {
		return strings.ToUpper(n)
	}
	return fmt.Sprintf("Primitive(%#x)", int(p))
}

var (
	inputPrimitives  = []Primitive{Points, Lines, LinesAdjacency, Triangles, TrianglesAdjacency}
	outputPrimitives = []Primitive{Points, LineStrip, TriangleStrip}
)

// parsePrimitive accepts names with or without the GL_ prefix and _EXT
// suffix, e.g. GL_TRIANGLES, LINES_ADJACENCY_EXT.
func parsePrimitive(s string, allowed []Primitive) (Primitive, bool) {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.ToUpper(s), "GL_"), "_EXT")
	for _, p := range allowed {
		if p.String() == s {
			return p, true
		}
	}
	return 0, false
}

// GeometryParams are the per-program geometry settings read from directive
// comments in a geometry stage.
type GeometryParams struct {
	Input       Primitive
	Output      Primitive
	VerticesOut int
	// Declared is set when at least one directive was present.
	Declared bool
}

func DefaultGeometryParams() GeometryParams {
	return GeometryParams{Input: Triangles, Output: TriangleStrip, VerticesOut: 16}
}

var (
	inputDirective    = regexp.MustCompile(`(?:GL_GEOMETRY_)?INPUT_TYPE(?:_EXT)?\(([^)\n]*)\)`)
	outputDirective   = regexp.MustCompile(`(?:GL_GEOMETRY_)?OUTPUT_TYPE(?:_EXT)?\(([^)\n]*)\)`)
	verticesDirective = regexp.MustCompile(`(?:GL_GEOMETRY_)?VERTICES_OUT(?:_EXT)?\(([^)\n]*)\)`)
	layoutIn          = regexp.MustCompile(`layout\s*\([^)]*\)\s*in\s*;`)
)

func directiveValue(re *regexp.Regexp, src string) (string, bool, error) {
	m := re.FindStringSubmatch(src)
	if m == nil {
		return "", false, nil
	}
	if strings.ContainsAny(m[1], " \t") {
		return "", false, fmt.Errorf("no whitespace allowed between directive brackets: %s", m[0])
	}
	return m[1], true, nil
}

// scanGeometry reads the geometry directives of src and blanks the comment
// lines that carry them. Line count is preserved so compiler logs still map.
func scanGeometry(src string) (string, GeometryParams, error) {
	gp := DefaultGeometryParams()

	if v, ok, err := directiveValue(inputDirective, src); err != nil {
		return "", gp, err
	} else if ok {
		p, valid := parsePrimitive(v, inputPrimitives)
		if !valid {
			return "", gp, fmt.Errorf("unknown geometry input type %q", v)
		}
		gp.Input, gp.Declared = p, true
	}
	if v, ok, err := directiveValue(outputDirective, src); err != nil {
		return "", gp, err
	} else if ok {
		p, valid := parsePrimitive(v, outputPrimitives)
		if !valid {
			return "", gp, fmt.Errorf("unknown geometry output type %q", v)
		}
		gp.Output, gp.Declared = p, true
	}
	if v, ok, err := directiveValue(verticesDirective, src); err != nil {
		return "", gp, err
	} else if ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return "", gp, fmt.Errorf("invalid geometry vertex count %q", v)
		}
		gp.VerticesOut, gp.Declared = n, true
	}

	lines := strings.SplitAfter(src, "\n")
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if !strings.HasPrefix(t, "//") {
			continue
		}
		if inputDirective.MatchString(t) || outputDirective.MatchString(t) || verticesDirective.MatchString(t) {
			if strings.HasSuffix(line, "\n") {
				lines[i] = "\n"
			} else {
				lines[i] = ""
			}
		}
	}
	return strings.Join(lines, ""), gp, nil
}

// layoutDeclaration is the core-profile form of the directives. It is only
// emitted when the stage has directives but no layout input declaration.
func (g GeometryParams) layoutDeclaration(src string) string {
	if !g.Declared || layoutIn.MatchString(src) {
		return ""
	}
	return fmt.Sprintf("layout(%s) in;\nlayout(%s, max_vertices = %d) out;\n",
		g.Input.LayoutName(), g.Output.LayoutName(), g.VerticesOut)
}
