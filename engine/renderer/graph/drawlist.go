package graph

import "github.com/go-gl/mathgl/mgl32"

// Material holds the per-draw surface parameters pushed with every mesh.
type Material struct {
	TextureID    uint32
	Tint         mgl32.Vec4
	Roughness    float32
	Metallic     float32
	Transmission float32
	Attenuation  mgl32.Vec4
	DoubleSided  bool
}

// DrawItem is one visible mesh instance.
type DrawItem struct {
	Mesh     int
	Model    mgl32.Mat4
	Material Material
}

type Camera struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Position   mgl32.Vec3
}

func (c Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection.Mul4(c.View)
}

// View is everything the graph needs to record one frame.
type View struct {
	Camera       Camera
	SunDirection mgl32.Vec3
	// Time drives animated surfaces, in seconds.
	Time  float32
	Items []DrawItem
	// Water surfaces are blended over the scene after everything else.
	Water []DrawItem
}

// DrawList splits items into the opaque groups and the transmissive
// sequence.
type DrawList struct {
	Standard     []DrawItem
	DoubleSided  []DrawItem
	Transmissive []DrawItem
}

// BuildDrawList groups opaque items by the pipeline they need, keeping the
// input order inside each group. Transmissive items keep entity order and
// are not sorted against each other, which is only correct while they do
// not overlap on screen.
func BuildDrawList(items []DrawItem) DrawList {
	var list DrawList
	for _, item := range items {
		switch {
		case item.Material.Transmission > 0:
			list.Transmissive = append(list.Transmissive, item)
		case item.Material.DoubleSided:
			list.DoubleSided = append(list.DoubleSided, item)
		default:
			list.Standard = append(list.Standard, item)
		}
	}
	return list
}
