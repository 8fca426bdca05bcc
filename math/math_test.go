package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3Operations(t *testing.T) {
	v1 := NewVec3(1, 2, 3)
	v2 := NewVec3(4, 5, 6)

	assert.Equal(t, NewVec3(5, 7, 9), v1.Add(v2))
	assert.Equal(t, NewVec3(3, 3, 3), v2.Sub(v1))
	assert.Equal(t, NewVec3(2, 4, 6), v1.Mul(2))
	assert.Equal(t, float32(32), v1.Dot(v2))

	// Right x Up = Front in a right-handed system
	assert.Equal(t, Vec3Front, Vec3Right.Cross(Vec3Up))

	n := NewVec3(3, 4, 0).Normalize()
	assert.InDelta(t, 1.0, float64(n.Length()), 1e-6)
	assert.Equal(t, Vec3Zero, Vec3Zero.Normalize())
}

func TestVec2Reciprocal(t *testing.T) {
	assert.Equal(t, NewVec2(0.5, 0.25), NewVec2(2, 4).Reciprocal())
	assert.Equal(t, NewVec2(0, 0.5), NewVec2(0, 2).Reciprocal())
}

func TestMat4Identity(t *testing.T) {
	m := Mat4Identity()
	v := NewVec4(1, 2, 3, 1)
	assert.Equal(t, v, v.MulMat(m))
	assert.Equal(t, m, m.Mul(m))
}

func TestMat4TranslationIsLastColumn(t *testing.T) {
	m := Mat4Translation(NewVec3(5, 6, 7))
	assert.Equal(t, float32(5), m[0][3])
	assert.Equal(t, NewVec3(6, 8, 10), m.MulVec3(NewVec3(1, 2, 3)))

	flat := m.Flatten()
	require.Len(t, flat, 16)
	assert.Equal(t, float32(5), flat[3])
	assert.Equal(t, float32(7), flat[11])
}

func TestMat4Transpose(t *testing.T) {
	m := Mat4Translation(NewVec3(1, 2, 3))
	tr := m.Transpose()
	assert.Equal(t, float32(1), tr[3][0])
	assert.Equal(t, m, tr.Transpose())
}

func TestMat4Inverse(t *testing.T) {
	m := Mat4Translation(NewVec3(1, -2, 3)).Mul(Mat4Scale(NewVec3(2, 4, 8)))
	inv, ok := m.Inverse()
	require.True(t, ok)

	id := m.Mul(inv)
	want := Mat4Identity()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, want[i][j], id[i][j], 1e-5, "element [%d][%d]", i, j)
		}
	}

	var singular Mat4
	_, ok = singular.Inverse()
	assert.False(t, ok)
}

func TestMat4LookAt(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	view := Mat4LookAt(eye, Vec3Zero, Vec3Up)

	// the eye maps to the origin of view space
	p := view.MulVec3(eye)
	assert.InDelta(t, 0, float64(p.Length()), 1e-5)

	// the target lies on the negative z axis
	p = view.MulVec3(Vec3Zero)
	assert.InDelta(t, -5, float64(p.Z), 1e-5)
}

func TestMat4Perspective(t *testing.T) {
	proj := Mat4Perspective(float32(math.Pi/2), 1, 1, 10)

	near := NewVec4(0, 0, -1, 1).MulMat(proj)
	assert.InDelta(t, -1, float64(near.Z/near.W), 1e-5)

	far := NewVec4(0, 0, -10, 1).MulMat(proj)
	assert.InDelta(t, 1, float64(far.Z/far.W), 1e-5)
}
