package assets

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

const quadAndTriangle = `# two objects
mtllib scene.mtl
o quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl stone
f 1/1/1 2/2/1 3/3/1 4/4/1
o tri
v 0 0 1
v 1 0 1
v 0 0 2
s off
f -3 -2 -1
`

func TestParseOBJ(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(quadAndTriangle))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Meshes) != 2 {
		t.Fatalf("%d sub-meshes, want 2", len(m.Meshes))
	}

	quad, ok := m.SubMesh("quad")
	if !ok {
		t.Fatal("quad missing")
	}
	if quad.Material != "stone" {
		t.Errorf("material = %q", quad.Material)
	}
	if diff := cmp.Diff([]uint32{0, 1, 2, 0, 2, 3}, quad.Indices); diff != "" {
		t.Errorf("quad indices (-want +got):\n%s", diff)
	}
	want := gpu.Vertex{Position: [3]float32{1, 1, 0}, Normal: [3]float32{0, 0, 1}, UV: [2]float32{1, 0}}
	if quad.Vertices[2] != want {
		t.Errorf("vertex 2 = %+v, want %+v", quad.Vertices[2], want)
	}

	tri, ok := m.SubMesh("tri")
	if !ok {
		t.Fatal("tri missing")
	}
	if len(tri.Vertices) != 3 || len(tri.Indices) != 3 {
		t.Fatalf("tri has %d vertices, %d indices", len(tri.Vertices), len(tri.Indices))
	}
	// (1,0,0) x (0,0,1) = (0,-1,0)
	for i, v := range tri.Vertices {
		if v.Normal != [3]float32{0, -1, 0} {
			t.Errorf("vertex %d normal = %v, want flat (0,-1,0)", i, v.Normal)
		}
	}
}

func TestParseOBJFirstSubMesh(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	sm, ok := m.SubMesh("")
	if !ok || sm.Name != "default" {
		t.Errorf("SubMesh(\"\") = %+v, %v", sm, ok)
	}
}

func TestParseOBJMaterialSplitsGroup(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\ng wall\nusemtl a\nf 1 2 3\nusemtl b\nf 3 2 1\n"
	m, err := ParseOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, sm := range m.Meshes {
		names = append(names, sm.Name+"/"+sm.Material)
	}
	if diff := cmp.Diff([]string{"wall/a", "wall:b/b"}, names); diff != "" {
		t.Errorf("sub-meshes (-want +got):\n%s", diff)
	}
}

func TestParseOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"index out of range", "v 0 0 0\nf 1 2 3\n"},
		{"two corners", "v 0 0 0\nv 1 0 0\nf 1 2\n"},
		{"bad float", "v 0 zero 0\n"},
		{"short vertex", "v 0 0\n"},
		{"no faces", "v 0 0 0\n"},
		{"corner without position", "v 0 0 0\nvt 0 0\nf /1 /1 /1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(tt.src))
			if !errors.Is(err, ErrInvalidModel) {
				t.Errorf("err = %v, want ErrInvalidModel", err)
			}
		})
	}
}

func TestShippedModels(t *testing.T) {
	tests := []struct {
		file              string
		vertices, indices int
	}{
		{"cube.obj", 24, 36},
		{"plane.obj", 17 * 17, 16 * 16 * 6},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			m, err := LoadOBJ("../../assets/models/" + tt.file)
			if err != nil {
				t.Fatal(err)
			}
			sm, ok := m.SubMesh("")
			if !ok {
				t.Fatal("no sub-mesh")
			}
			if len(sm.Vertices) != tt.vertices || len(sm.Indices) != tt.indices {
				t.Errorf("%d vertices, %d indices; want %d, %d", len(sm.Vertices), len(sm.Indices), tt.vertices, tt.indices)
			}
		})
	}
}
