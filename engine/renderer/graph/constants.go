package graph

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/core"
)

// DrawConstants is pushed once per mesh draw. The layout matches the push
// constant block of mesh.vert, standard.frag and transmissive.frag and
// fits the 128 bytes every device offers.
type DrawConstants struct {
	MVP mgl32.Mat4
	// NormalX, NormalY and NormalZ are the columns of the inverse transpose
	// of the model matrix. Each shares its 16-byte slot with a scalar.
	NormalX   mgl32.Vec3
	TextureID uint32
	NormalY   mgl32.Vec3
	// Tint is RGBA8, packed by PackUnorm4x8.
	Tint    uint32
	NormalZ mgl32.Vec3
	// Surface packs roughness, metallic and transmission as unorm8.
	Surface uint32
	// Attenuation is the tint light picks up through the surface (rgb) and
	// the distance it takes to reach it (w).
	Attenuation mgl32.Vec4
}

func NewDrawConstants(vp, model mgl32.Mat4, m Material, texture uint32) DrawConstants {
	normal := model.Mat3().Inv().Transpose()
	return DrawConstants{
		MVP:         vp.Mul4(model),
		NormalX:     normal.Col(0),
		TextureID:   texture,
		NormalY:     normal.Col(1),
		Tint:        PackUnorm4x8(m.Tint),
		NormalZ:     normal.Col(2),
		Surface:     PackUnorm4x8(mgl32.Vec4{m.Roughness, m.Metallic, m.Transmission, 0}),
		Attenuation: m.Attenuation,
	}
}

type SkyConstants struct {
	InvViewProj  mgl32.Mat4
	SunDirection mgl32.Vec4
}

// WaterConstants is pushed once per water surface. Positions are relative
// to the camera: the model translation has the camera subtracted and
// ViewProj looks from the origin.
type WaterConstants struct {
	ViewProj mgl32.Mat4
	// Model holds the first three rows of the camera-relative model matrix.
	Model [3]mgl32.Vec4
	// CameraXZ moves the waves back to world space.
	CameraXZ mgl32.Vec2
	Time     float32
	Tint     uint32
}

func NewWaterConstants(cam Camera, model mgl32.Mat4, tint mgl32.Vec4, time float32) WaterConstants {
	eye := cam.Position
	rel := mgl32.Translate3D(-eye.X(), -eye.Y(), -eye.Z()).Mul4(model)
	return WaterConstants{
		ViewProj: cam.ViewProjection().Mul4(mgl32.Translate3D(eye.X(), eye.Y(), eye.Z())),
		Model:    [3]mgl32.Vec4{rel.Row(0), rel.Row(1), rel.Row(2)},
		CameraXZ: mgl32.Vec2{eye.X(), eye.Z()},
		Time:     time,
		Tint:     PackUnorm4x8(tint),
	}
}

// PackUnorm4x8 packs v into four bytes, x in the lowest, the way GLSL's
// unpackUnorm4x8 reads them back.
func PackUnorm4x8(v mgl32.Vec4) uint32 {
	var packed uint32
	for i, c := range v {
		b := uint32(math.Round(float64(core.Clamp(c, 0, 1)) * 255))
		packed |= b << (8 * uint(i))
	}
	return packed
}

type BloomConstants struct {
	Threshold float32
	Knee      float32
	TexelSize mgl32.Vec2
}

type CompositeConstants struct {
	Exposure      float32
	Gamma         float32
	BloomStrength float32
	_             float32
}

// PushSize is the byte size of a push constant record, checked against the
// device limit and the 4-byte granularity push constants require.
func PushSize(record interface{}, limit uint32) (uint32, error) {
	size := binary.Size(record)
	switch {
	case size <= 0:
		return 0, errors.Mark(errors.AssertionFailedf("%T has no fixed size", record), core.ErrShaderContract)
	case size%4 != 0:
		return 0, errors.Mark(errors.AssertionFailedf("%T is %d bytes, not a multiple of 4", record, size), core.ErrShaderContract)
	case uint32(size) > limit:
		return 0, errors.Mark(errors.AssertionFailedf("%T is %d bytes, device allows %d", record, size, limit), core.ErrShaderContract)
	}
	return uint32(size), nil
}

// Encoder serializes push constant records into a reused buffer.
type Encoder struct {
	buf bytes.Buffer
}

func (e *Encoder) Encode(record interface{}) []byte {
	e.buf.Reset()
	// Writes into a bytes.Buffer only fail for records without a fixed
	// size, which PushSize rejects when the pipeline is created.
	_ = binary.Write(&e.buf, binary.LittleEndian, record)
	return e.buf.Bytes()
}
