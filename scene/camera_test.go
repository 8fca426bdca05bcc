package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reMath "render-pipeline/math"
)

func TestCameraViewInverseRecoversPosition(t *testing.T) {
	cam := NewCamera(1, 1, 0.1, 100)
	cam.SetPosition(reMath.NewVec3(2, 3, 4))

	p := cam.ViewMatrixInverse().MulVec3(reMath.Vec3Zero)
	assert.InDelta(t, 2, float64(p.X), 1e-4)
	assert.InDelta(t, 3, float64(p.Y), 1e-4)
	assert.InDelta(t, 4, float64(p.Z), 1e-4)
}

func TestCameraProjectionInverse(t *testing.T) {
	cam := NewCamera(1, 1.5, 0.1, 100)
	id := cam.ProjectionMatrix().Mul(cam.ProjectionMatrixInverse())
	want := reMath.Mat4Identity()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, want[i][j], id[i][j], 1e-3, "element [%d][%d]", i, j)
		}
	}
}

func TestOrbitCameraKeepsDistance(t *testing.T) {
	cam := NewOrbitCamera(reMath.Vec3Zero, 5, 1, 1)
	cam.Orbit(0.7, 0.2)
	require.InDelta(t, 5, float64(cam.Position.Length()), 1e-4)

	cam.Zoom(-10)
	assert.Equal(t, float32(0.1), cam.Distance)

	cam.Orbit(0, 10)
	assert.Equal(t, float32(1.5), cam.Pitch)
}
