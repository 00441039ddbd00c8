package cache

import (
	"encoding/binary"
	"math"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

var fallbackExtent = gpu.Extent{Width: 2, Height: 2}

// fallbackPixels is opaque white, so tinted materials still show their tint.
func fallbackPixels() []byte {
	px := make([]byte, fallbackExtent.Width*fallbackExtent.Height*4)
	for i := range px {
		px[i] = 0xff
	}
	return px
}

// VertexBytes lays vertices out as the mesh pipelines read them.
func VertexBytes(vertices []gpu.Vertex) []byte {
	out := make([]byte, len(vertices)*gpu.VertexSize)
	for i, v := range vertices {
		b := out[i*gpu.VertexSize:]
		floats := [8]float32{
			v.Position[0], v.Position[1], v.Position[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.UV[0], v.UV[1],
		}
		for j, f := range floats {
			binary.LittleEndian.PutUint32(b[j*4:], math.Float32bits(f))
		}
	}
	return out
}

func IndexBytes(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}
