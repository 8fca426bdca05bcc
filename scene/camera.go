package scene

import (
	"math"

	reMath "render-pipeline/math"
)

// Camera is a look-at camera. The render core only reads its matrices and
// position to fill the global shader parameters.
type Camera struct {
	Position    reMath.Vec3
	Focus       reMath.Vec3
	Up          reMath.Vec3
	FOV         float32
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	// Cached matrices
	viewMatrix       reMath.Mat4
	projectionMatrix reMath.Mat4
	dirty            bool
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	return &Camera{
		Position:    reMath.NewVec3(0, 0, 3),
		Focus:       reMath.Vec3Zero,
		Up:          reMath.Vec3Up,
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
		dirty:       true,
	}
}

func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height > 0 {
		c.AspectRatio = width / height
		c.dirty = true
	}
}

func (c *Camera) SetPosition(pos reMath.Vec3) {
	c.Position = pos
	c.dirty = true
}

func (c *Camera) LookAt(target, up reMath.Vec3) {
	c.Focus = target
	c.Up = up
	c.dirty = true
}

func (c *Camera) ViewMatrix() reMath.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.viewMatrix
}

func (c *Camera) ProjectionMatrix() reMath.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.projectionMatrix
}

// ViewMatrixInverse falls back to identity for a degenerate view.
func (c *Camera) ViewMatrixInverse() reMath.Mat4 {
	inv, _ := c.ViewMatrix().Inverse()
	return inv
}

// ProjectionMatrixInverse falls back to identity like ViewMatrixInverse.
func (c *Camera) ProjectionMatrixInverse() reMath.Mat4 {
	inv, _ := c.ProjectionMatrix().Inverse()
	return inv
}

func (c *Camera) updateMatrices() {
	c.viewMatrix = reMath.Mat4LookAt(c.Position, c.Focus, c.Up)
	c.projectionMatrix = reMath.Mat4Perspective(c.FOV, c.AspectRatio, c.NearPlane, c.FarPlane)
	c.dirty = false
}

// OrbitCamera is a specialized camera for orbiting around a target
type OrbitCamera struct {
	Camera
	Distance float32
	Yaw      float32
	Pitch    float32
}

func NewOrbitCamera(target reMath.Vec3, distance, fov, aspectRatio float32) *OrbitCamera {
	c := &OrbitCamera{
		Distance: distance,
		Pitch:    0.3,
	}
	c.Camera = *NewCamera(fov, aspectRatio, 0.1, 1000.0)
	c.Focus = target
	c.UpdatePosition()
	return c
}

func (c *OrbitCamera) UpdatePosition() {
	if c.Pitch > 1.5 {
		c.Pitch = 1.5
	}
	if c.Pitch < -1.5 {
		c.Pitch = -1.5
	}

	cosPitch := float32(math.Cos(float64(c.Pitch)))
	sinPitch := float32(math.Sin(float64(c.Pitch)))
	cosYaw := float32(math.Cos(float64(c.Yaw)))
	sinYaw := float32(math.Sin(float64(c.Yaw)))

	offset := reMath.Vec3{
		X: c.Distance * cosPitch * sinYaw,
		Y: c.Distance * sinPitch,
		Z: c.Distance * cosPitch * cosYaw,
	}

	c.Position = c.Focus.Add(offset)
	c.LookAt(c.Focus, reMath.Vec3Up)
}

func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
	c.UpdatePosition()
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance += delta
	if c.Distance < 0.1 {
		c.Distance = 0.1
	}
	c.UpdatePosition()
}
