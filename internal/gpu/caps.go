package gpu

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var versionPrefix = regexp.MustCompile(`^\s*(?:OpenGL ES (?:GLSL ES )?)?(\d+)\.(\d+)`)

// ParseVersion extracts the leading "major.minor" from a driver version
// string such as "4.1 NVIDIA 535.54" or "4.10". Shading language minors
// are two digits ("4.10" is 4.1), so a trailing zero is dropped.
func ParseVersion(s string) (*semver.Version, error) {
	m := versionPrefix.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("no version in %q", s)
	}
	minor := m[2]
	if len(minor) == 2 && minor[1] == '0' {
		minor = minor[:1]
	}
	return semver.NewVersion(m[1] + "." + minor + ".0")
}

// Caps are the capabilities queried once per context.
type Caps struct {
	GL              *semver.Version
	GLSL            *semver.Version
	MaxTextureUnits int
	MaxAttachments  int
}

func QueryCaps(dev Device) (Caps, error) {
	glv, err := ParseVersion(dev.Version())
	if err != nil {
		return Caps{}, fmt.Errorf("parse GL version: %w", err)
	}
	glslv, err := ParseVersion(dev.ShadingLanguageVersion())
	if err != nil {
		return Caps{}, fmt.Errorf("parse GLSL version: %w", err)
	}
	return Caps{
		GL:              glv,
		GLSL:            glslv,
		MaxTextureUnits: dev.MaxTextureUnits(),
		MaxAttachments:  dev.MaxColorAttachments(),
	}, nil
}

// ShaderVersions lists the GLSL versions the header generator knows, newest first.
var ShaderVersions = []int{410, 400, 330, 150, 140, 130, 120, 110}

// GLSLNumber converts a version to the #version number, 4.1 -> 410.
func GLSLNumber(v *semver.Version) int {
	return int(v.Major())*100 + int(v.Minor())*10
}

// ShaderVersion picks the #version number for shader headers: the
// requested one if supported, otherwise the highest supported, capped
// at 410.
func (c Caps) ShaderVersion(requested int) int {
	have := GLSLNumber(c.GLSL)
	if requested > 0 && have >= requested {
		return requested
	}
	if have > 410 {
		return 410
	}
	return have
}

// AtLeast reports whether the GLSL version satisfies the constraint,
// e.g. ">= 1.3".
func (c Caps) AtLeast(constraint string) bool {
	cs, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	return cs.Check(c.GLSL)
}
