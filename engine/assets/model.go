package assets

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

var ErrInvalidModel = errors.New("invalid model")

// SubMesh is one named group of triangles of a model.
type SubMesh struct {
	Name     string
	Material string
	Vertices []gpu.Vertex
	Indices  []uint32
}

type Model struct {
	Meshes []SubMesh
}

// SubMesh returns the group called name. An empty name selects the first.
func (m *Model) SubMesh(name string) (*SubMesh, bool) {
	for i := range m.Meshes {
		if name == "" || m.Meshes[i].Name == name {
			return &m.Meshes[i], true
		}
	}
	return nil, false
}

// objIndex is a resolved v/vt/vn triple. Missing components are -1.
type objIndex [3]int

type objParser struct {
	positions []mgl32.Vec3
	uvs       []mgl32.Vec2
	normals   []mgl32.Vec3

	model   Model
	current *SubMesh
	lookup  map[objIndex]uint32
	line    int
}

// ParseOBJ reads a Wavefront OBJ stream. Objects and groups become
// sub-meshes, polygons are fan triangulated, and faces without normals
// get their flat face normal. Texture V is flipped to a top-left origin.
func ParseOBJ(r io.Reader) (*Model, error) {
	p := &objParser{}
	p.begin("default")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "v":
			var v []float32
			if v, err = p.floats(fields[1:], 3); err == nil {
				p.positions = append(p.positions, mgl32.Vec3{v[0], v[1], v[2]})
			}
		case "vt":
			var v []float32
			if v, err = p.floats(fields[1:], 2); err == nil {
				p.uvs = append(p.uvs, mgl32.Vec2{v[0], 1 - v[1]})
			}
		case "vn":
			var v []float32
			if v, err = p.floats(fields[1:], 3); err == nil {
				p.normals = append(p.normals, mgl32.Vec3{v[0], v[1], v[2]})
			}
		case "o", "g":
			name := "default"
			if len(fields) > 1 {
				name = strings.Join(fields[1:], " ")
			}
			p.begin(name)
		case "usemtl":
			if len(fields) > 1 {
				if len(p.current.Indices) > 0 && p.current.Material != fields[1] {
					p.begin(p.current.Name + ":" + fields[1])
				}
				p.current.Material = fields[1]
			}
		case "f":
			err = p.face(fields[1:])
		default:
			// s, mtllib, l, p and anything else carry nothing we draw.
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "line %d", p.line), ErrInvalidModel)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.flush()
	if len(p.model.Meshes) == 0 {
		return nil, errors.Mark(errors.New("no faces"), ErrInvalidModel)
	}
	return &p.model, nil
}

// begin starts a new sub-mesh, reusing the current one if it is still
// empty.
func (p *objParser) begin(name string) {
	if p.current != nil && len(p.current.Indices) == 0 {
		p.current.Name = name
		return
	}
	p.flush()
	p.current = &SubMesh{Name: name}
	p.lookup = make(map[objIndex]uint32)
}

func (p *objParser) flush() {
	if p.current != nil && len(p.current.Indices) > 0 {
		p.model.Meshes = append(p.model.Meshes, *p.current)
		p.current = nil
	}
}

func (p *objParser) floats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, errors.Newf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// resolve turns a 1-based or negative relative OBJ index into a 0-based
// one. Empty components resolve to -1.
func resolve(s string, count int) (int, error) {
	if s == "" {
		return -1, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, errors.Newf("index %d out of range 1..%d", i, count)
}

func (p *objParser) corner(field string) (objIndex, error) {
	parts := strings.Split(field, "/")
	if len(parts) > 3 {
		return objIndex{}, errors.Newf("malformed face corner %q", field)
	}
	idx := objIndex{-1, -1, -1}
	counts := [3]int{len(p.positions), len(p.uvs), len(p.normals)}
	for i, part := range parts {
		v, err := resolve(part, counts[i])
		if err != nil {
			return objIndex{}, err
		}
		idx[i] = v
	}
	if idx[0] < 0 {
		return objIndex{}, errors.Newf("face corner %q has no position", field)
	}
	return idx, nil
}

func (p *objParser) face(fields []string) error {
	if len(fields) < 3 {
		return errors.Newf("face with %d corners", len(fields))
	}
	corners := make([]objIndex, len(fields))
	for i, f := range fields {
		c, err := p.corner(f)
		if err != nil {
			return err
		}
		corners[i] = c
	}
	for i := 1; i+1 < len(corners); i++ {
		tri := [3]objIndex{corners[0], corners[i], corners[i+1]}
		var flat mgl32.Vec3
		if tri[0][2] < 0 || tri[1][2] < 0 || tri[2][2] < 0 {
			a, b, c := p.positions[tri[0][0]], p.positions[tri[1][0]], p.positions[tri[2][0]]
			n := b.Sub(a).Cross(c.Sub(a))
			if n.Len() > 0 {
				flat = n.Normalize()
			}
		}
		for _, corner := range tri {
			p.current.Indices = append(p.current.Indices, p.vertex(corner, flat))
		}
	}
	return nil
}

// vertex returns the index of corner in the current sub-mesh, adding it on
// first use. Corners without a normal take flat and are never shared.
func (p *objParser) vertex(corner objIndex, flat mgl32.Vec3) uint32 {
	shared := corner[2] >= 0
	if shared {
		if i, ok := p.lookup[corner]; ok {
			return i
		}
	}
	pos := p.positions[corner[0]]
	v := gpu.Vertex{Position: [3]float32(pos)}
	if corner[1] >= 0 {
		v.UV = [2]float32(p.uvs[corner[1]])
	}
	if shared {
		v.Normal = [3]float32(p.normals[corner[2]])
	} else {
		v.Normal = [3]float32(flat)
	}
	i := uint32(len(p.current.Vertices))
	p.current.Vertices = append(p.current.Vertices, v)
	if shared {
		p.lookup[corner] = i
	}
	return i
}

// LoadOBJ parses the model file at path.
func LoadOBJ(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ParseOBJ(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return m, nil
}

// LoadModel resolves name against the asset root and parses it.
func (am *AssetManager) LoadModel(name string) (*Model, error) {
	path, err := am.Resolve(name)
	if err != nil {
		return nil, err
	}
	return LoadOBJ(path)
}
