package scene

import "github.com/go-gl/mathgl/mgl32"

// Transform is a local position, rotation and scale relative to the
// parent entity.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

func TransformFromPosition(position mgl32.Vec3) Transform {
	t := NewTransform()
	t.Position = position
	return t
}

// TransformFromEuler builds a transform from Euler angles in degrees,
// applied in X, Y, Z order.
func TransformFromEuler(position, degrees, scale mgl32.Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: mgl32.AnglesToQuat(
			mgl32.DegToRad(degrees[0]),
			mgl32.DegToRad(degrees[1]),
			mgl32.DegToRad(degrees[2]),
			mgl32.XYZ),
		Scale: scale,
	}
}

func (t *Transform) Translate(translation mgl32.Vec3) {
	t.Position = t.Position.Add(translation)
}

func (t *Transform) Rotate(rotation mgl32.Quat) {
	t.Rotation = t.Rotation.Mul(rotation).Normalize()
}

// Matrix is translation * rotation * scale.
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}
