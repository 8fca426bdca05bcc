package shader

import (
	"render-pipeline/core"
	"render-pipeline/internal/gpu"
	"render-pipeline/math"
)

// IgnoreUniformErrors makes missing uniforms silent for subsequent lookups
// and returns the previous setting.
func (p *Program) IgnoreUniformErrors(ignore bool) bool {
	prev := p.ignoreError
	p.ignoreError = ignore
	return prev
}

// UniformLocation returns the location of name, or -1. Found locations are
// cached until the next link. A missing uniform is cached only when
// ignoreError is set; otherwise every lookup logs a warning.
func (p *Program) UniformLocation(name string, ignoreError bool) int32 {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.handle, name)
	if loc >= 0 || ignoreError {
		p.locations[name] = loc
		return loc
	}
	p.log.Warn("uniform not found", "name", name)
	return loc
}

// upload sends u to name. The program must be current.
func (p *Program) upload(name string, u gpu.Uniform) bool {
	if !p.IsActivated() {
		p.log.Error("uniform set on inactive program", "name", name)
		return false
	}
	loc := p.UniformLocation(name, p.ignoreError)
	if loc < 0 {
		return false
	}
	p.dev.SetUniform(loc, u)
	return true
}

func floatUniform(components int, values []float32) gpu.Uniform {
	return gpu.Uniform{Kind: gpu.KindFloat, Components: components, Count: len(values) / components, Floats: values}
}

func intUniform(kind gpu.UniformKind, components int, values []int32) gpu.Uniform {
	return gpu.Uniform{Kind: kind, Components: components, Count: len(values) / components, Ints: values}
}

// SetFloat sets a float or float array.
func (p *Program) SetFloat(name string, values ...float32) bool {
	if len(values) == 0 {
		return false
	}
	return p.upload(name, floatUniform(1, values))
}

// SetFloatVec sets a vecN or vecN array; values holds components*count floats.
func (p *Program) SetFloatVec(name string, components int, values ...float32) bool {
	if components < 1 || components > 4 || len(values) == 0 || len(values)%components != 0 {
		p.log.Error("bad vector upload", "name", name, "components", components, "values", len(values))
		return false
	}
	return p.upload(name, floatUniform(components, values))
}

func (p *Program) SetVec2(name string, v math.Vec2) bool {
	return p.SetFloatVec(name, 2, v.X, v.Y)
}

func (p *Program) SetVec3(name string, v math.Vec3) bool {
	return p.SetFloatVec(name, 3, v.X, v.Y, v.Z)
}

func (p *Program) SetVec4(name string, v math.Vec4) bool {
	return p.SetFloatVec(name, 4, v.X, v.Y, v.Z, v.W)
}

func (p *Program) SetColor(name string, c core.Color) bool {
	return p.SetFloatVec(name, 4, c.R, c.G, c.B, c.A)
}

// SetInt sets an int or int array. Sampler units are set this way.
func (p *Program) SetInt(name string, values ...int32) bool {
	if len(values) == 0 {
		return false
	}
	return p.upload(name, intUniform(gpu.KindInt, 1, values))
}

func (p *Program) SetIntVec(name string, components int, values ...int32) bool {
	if components < 1 || components > 4 || len(values) == 0 || len(values)%components != 0 {
		p.log.Error("bad vector upload", "name", name, "components", components, "values", len(values))
		return false
	}
	return p.upload(name, intUniform(gpu.KindInt, components, values))
}

// SetBool sets a bool, bvecN or array of them.
func (p *Program) SetBool(name string, components int, values ...bool) bool {
	if components < 1 || components > 4 || len(values) == 0 || len(values)%components != 0 {
		p.log.Error("bad vector upload", "name", name, "components", components, "values", len(values))
		return false
	}
	ints := make([]int32, len(values))
	for i, b := range values {
		if b {
			ints[i] = 1
		}
	}
	return p.upload(name, intUniform(gpu.KindBool, components, ints))
}

// SetMatrix sets a dim x dim matrix or matrix array from row-major values.
// The native API expects column-major data, so the transpose flag it
// receives is inverted.
func (p *Program) SetMatrix(name string, dim int, transpose bool, values ...float32) bool {
	n := dim * dim
	if dim < 2 || dim > 4 || len(values) == 0 || len(values)%n != 0 {
		p.log.Error("bad matrix upload", "name", name, "dim", dim, "values", len(values))
		return false
	}
	return p.upload(name, gpu.Uniform{
		Kind:      gpu.KindFloat,
		MatrixDim: dim,
		Count:     len(values) / n,
		Transpose: !transpose,
		Floats:    values,
	})
}

func (p *Program) SetMat4(name string, m math.Mat4) bool {
	return p.SetMatrix(name, 4, false, m.Flatten()...)
}

func (p *Program) SetMat4Array(name string, ms ...math.Mat4) bool {
	values := make([]float32, 0, 16*len(ms))
	for _, m := range ms {
		values = append(values, m.Flatten()...)
	}
	return p.SetMatrix(name, 4, false, values...)
}
