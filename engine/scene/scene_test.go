package scene

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/renderer/cache"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
)

type models map[string]*assets.Model

func (m models) LoadModel(name string) (*assets.Model, error) {
	if model, ok := m[name]; ok {
		return model, nil
	}
	return nil, errors.Newf("cannot decode %s", name)
}

type resources struct {
	textures  map[string]uint32
	meshes    []cache.MeshKey
	preloaded []string
}

func (r *resources) Preload(_ context.Context, paths []string) (map[string]uint32, error) {
	r.preloaded = append(r.preloaded, paths...)
	ids := make(map[string]uint32, len(paths))
	for _, p := range paths {
		ids[p] = r.AcquireTexture(p)
	}
	return ids, nil
}

func (r *resources) AcquireTexture(path string) uint32 {
	if id, ok := r.textures[path]; ok {
		return id
	}
	return cache.FallbackTexture
}

func (r *resources) AcquireMesh(key cache.MeshKey, vertices []gpu.Vertex, indices []uint32) int {
	for i, k := range r.meshes {
		if k == key {
			return i
		}
	}
	r.meshes = append(r.meshes, key)
	return len(r.meshes) - 1
}

func triangle(name string) *assets.Model {
	return &assets.Model{Meshes: []assets.SubMesh{{
		Name:     name,
		Vertices: make([]gpu.Vertex, 3),
		Indices:  []uint32{0, 1, 2},
	}}}
}

func TestRebuild(t *testing.T) {
	root, broken, child, lone := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	f := &File{
		Version: FileVersion,
		Camera:  CameraRecord{Position: [3]float32{0, 1, 5}, FovY: 45},
		Entities: []EntityRecord{
			// Children may come before their parents.
			{ID: child, Parent: broken, Model: "cube.obj", Texture: "missing.png"},
			{ID: root, Model: "cube.obj", Texture: "stone.png", Water: true},
			{ID: broken, Parent: root, Model: "corrupt.obj"},
			{ID: lone, Model: "cube.obj", SubMesh: "nope"},
		},
	}
	res := &resources{textures: map[string]uint32{"stone.png": 7}}
	s := New()
	s.Rebuild(f, models{"cube.obj": triangle("default")}, res)

	if s.Arena.Len() != 2 {
		t.Fatalf("%d entities, want 2", s.Arena.Len())
	}
	if _, ok := s.Lookup(broken); ok {
		t.Error("entity with an undecodable model was created")
	}
	if _, ok := s.Lookup(lone); ok {
		t.Error("entity with a missing sub-mesh was created")
	}
	rh, ok := s.Lookup(root)
	if !ok {
		t.Fatal("root missing")
	}
	ch, ok := s.Lookup(child)
	if !ok {
		t.Fatal("child missing")
	}
	c, _ := s.Arena.Get(ch)
	if c.Parent() != rh {
		t.Errorf("child parent = %s, want the skipped entity's parent %s", c.Parent(), rh)
	}
	if c.Material.TextureID != cache.FallbackTexture {
		t.Errorf("missing texture resolved to %d", c.Material.TextureID)
	}
	r, _ := s.Arena.Get(rh)
	if r.Material.TextureID != 7 || !r.Water {
		t.Errorf("root material = %+v, water %v", r.Material, r.Water)
	}
	if len(res.meshes) != 1 || c.Mesh != r.Mesh {
		t.Errorf("meshes acquired = %v; shared mesh %d vs %d", res.meshes, c.Mesh, r.Mesh)
	}
	if s.Camera.FovY != 45 {
		t.Errorf("camera fov = %v", s.Camera.FovY)
	}

	view := s.View(1, 2.5)
	if len(view.Items) != 1 || len(view.Water) != 1 || view.Time != 2.5 {
		t.Errorf("view has %d items, %d water, time %v", len(view.Items), len(view.Water), view.Time)
	}
}

func TestRebuildReplacesPreviousScene(t *testing.T) {
	id := uuid.New()
	f := &File{Version: FileVersion, Entities: []EntityRecord{{ID: id, Model: "cube.obj"}}}
	s := New()
	m := models{"cube.obj": triangle("default")}
	res := &resources{}
	s.Rebuild(f, m, res)
	first, _ := s.Lookup(id)
	s.Rebuild(f, m, res)
	if s.Arena.Len() != 1 {
		t.Errorf("%d entities after second rebuild", s.Arena.Len())
	}
	if _, ok := s.Arena.Get(first); ok {
		t.Error("handle from the previous build still resolves")
	}
}

// decoder counts decodes per path. Preload calls it concurrently.
type decoder struct {
	mu      sync.Mutex
	decodes map[string]int
}

func (d *decoder) DecodeTexture(path string) (uint32, uint32, []byte, error) {
	d.mu.Lock()
	d.decodes[path]++
	d.mu.Unlock()
	if path == "missing.png" {
		return 0, 0, nil, errors.Newf("open %s: no such file", path)
	}
	return 1, 1, make([]byte, 4), nil
}

func TestRebuildPreloadsTexturesOnce(t *testing.T) {
	dev := gputest.New()
	dec := &decoder{decodes: make(map[string]int)}
	c, err := cache.New(dev, dec, cache.Config{MaxTextures: 8, MaxMeshes: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	a, b, d, e := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	f := &File{Version: FileVersion, Entities: []EntityRecord{
		{ID: a, Model: "cube.obj", Texture: "stone.png"},
		{ID: b, Model: "cube.obj", Texture: "stone.png"},
		{ID: d, Model: "cube.obj", Texture: "grass.png"},
		{ID: e, Model: "cube.obj", Texture: "missing.png"},
	}}
	s := New()
	s.Rebuild(f, models{"cube.obj": triangle("default")}, c)

	want := map[string]int{"stone.png": 1, "grass.png": 1, "missing.png": 1}
	if diff := cmp.Diff(want, dec.decodes); diff != "" {
		t.Errorf("decodes (-want +got):\n%s", diff)
	}
	ids := make(map[uuid.UUID]uint32)
	for _, id := range []uuid.UUID{a, b, d, e} {
		h, ok := s.Lookup(id)
		if !ok {
			t.Fatalf("entity %s missing", id)
		}
		ent, _ := s.Arena.Get(h)
		ids[id] = ent.Material.TextureID
	}
	if ids[a] == cache.FallbackTexture || ids[a] != ids[b] || ids[a] == ids[d] {
		t.Errorf("texture IDs = %v", ids)
	}
	if ids[e] != cache.FallbackTexture {
		t.Errorf("undecodable texture resolved to %d", ids[e])
	}
	if c.TextureCount() != 3 {
		t.Errorf("texture count = %d, want fallback plus 2", c.TextureCount())
	}
}

func TestRebuildPreloadsEveryTexturePath(t *testing.T) {
	f := &File{Version: FileVersion, Entities: []EntityRecord{
		{ID: uuid.New(), Texture: "a.png"},
		{ID: uuid.New(), Texture: "b.png"},
		{ID: uuid.New(), Texture: "a.png"},
		{ID: uuid.New()},
	}}
	res := &resources{textures: map[string]uint32{"a.png": 1, "b.png": 2}}
	New().Rebuild(f, models{}, res)
	if diff := cmp.Diff([]string{"a.png", "b.png"}, res.preloaded); diff != "" {
		t.Errorf("preloaded (-want +got):\n%s", diff)
	}
}
