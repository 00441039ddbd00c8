package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/renderer/graph"
)

var worldUp = mgl32.Vec3{0, 1, 0}

// maxPitch keeps the camera off the poles where the view basis degenerates.
const maxPitch = 89.0

// Camera is a yaw/pitch fly camera with a perspective projection.
type Camera struct {
	position mgl32.Vec3
	// Yaw and Pitch are in degrees. Yaw 0 looks down -Z.
	yaw   float32
	pitch float32

	FovY float32
	Near float32
	Far  float32

	isDirty    bool
	viewMatrix mgl32.Mat4
}

func NewCamera() *Camera {
	c := &Camera{}
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.position = mgl32.Vec3{}
	c.yaw = 0
	c.pitch = 0
	c.FovY = 60
	c.Near = 0.1
	c.Far = 1000
	c.isDirty = true
}

func (c *Camera) Position() mgl32.Vec3 { return c.position }

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.position = position
	c.isDirty = true
}

func (c *Camera) Rotation() (yaw, pitch float32) { return c.yaw, c.pitch }

// SetRotation sets yaw and pitch in degrees. Pitch is clamped short of
// straight up or down.
func (c *Camera) SetRotation(yaw, pitch float32) {
	c.yaw = float32(math.Mod(float64(yaw), 360))
	c.pitch = mgl32.Clamp(pitch, -maxPitch, maxPitch)
	c.isDirty = true
}

func (c *Camera) Yaw(degrees float32) { c.SetRotation(c.yaw+degrees, c.pitch) }

func (c *Camera) Pitch(degrees float32) { c.SetRotation(c.yaw, c.pitch+degrees) }

func (c *Camera) Forward() mgl32.Vec3 {
	yaw := mgl32.DegToRad(c.yaw)
	pitch := mgl32.DegToRad(c.pitch)
	cp := float32(math.Cos(float64(pitch)))
	return mgl32.Vec3{
		float32(math.Sin(float64(yaw))) * cp,
		float32(math.Sin(float64(pitch))),
		-float32(math.Cos(float64(yaw))) * cp,
	}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(worldUp).Normalize()
}

func (c *Camera) move(direction mgl32.Vec3, amount float32) {
	c.position = c.position.Add(direction.Mul(amount))
	c.isDirty = true
}

func (c *Camera) MoveForward(amount float32)  { c.move(c.Forward(), amount) }
func (c *Camera) MoveBackward(amount float32) { c.move(c.Forward(), -amount) }
func (c *Camera) MoveRight(amount float32)    { c.move(c.Right(), amount) }
func (c *Camera) MoveLeft(amount float32)     { c.move(c.Right(), -amount) }
func (c *Camera) MoveUp(amount float32)       { c.move(worldUp, amount) }
func (c *Camera) MoveDown(amount float32)     { c.move(worldUp, -amount) }

// View returns the world to view matrix, rebuilding it when the camera
// moved.
func (c *Camera) View() mgl32.Mat4 {
	if c.isDirty {
		c.viewMatrix = mgl32.LookAtV(c.position, c.position.Add(c.Forward()), worldUp)
		c.isDirty = false
	}
	return c.viewMatrix
}

// Projection is a right-handed perspective projection with depth in 0..1
// and Y pointing down in clip space.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	f := 1 / float32(math.Tan(float64(mgl32.DegToRad(c.FovY))/2))
	n, fa := c.Near, c.Far
	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, -f, 0, 0,
		0, 0, fa / (n - fa), -1,
		0, 0, n * fa / (n - fa), 0,
	}
}

// Graph returns the camera matrices for a target of the given aspect.
func (c *Camera) Graph(aspect float32) graph.Camera {
	return graph.Camera{
		View:       c.View(),
		Projection: c.Projection(aspect),
		Position:   c.position,
	}
}
