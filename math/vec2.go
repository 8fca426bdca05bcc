package math

import "math"

// Vec2 is the vec2 uniform type; render sizes and reciprocal sizes are
// passed to shaders through it.
type Vec2 struct {
	X, Y float32
}

func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vec2) Mul(scalar float32) Vec2 {
	return Vec2{X: v.X * scalar, Y: v.Y * scalar}
}

// Reciprocal returns (1/x, 1/y). Zero components stay zero.
func (v Vec2) Reciprocal() Vec2 {
	r := Vec2{}
	if v.X != 0 {
		r.X = 1 / v.X
	}
	if v.Y != 0 {
		r.Y = 1 / v.Y
	}
	return r
}

func (v Vec2) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

func (v Vec2) Slice() []float32 {
	return []float32{v.X, v.Y}
}
