// Package scene holds the entities the renderer draws, their camera, and
// the file they are loaded from.
package scene

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/cache"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/graph"
)

// ModelSource parses model files by asset name.
type ModelSource interface {
	LoadModel(name string) (*assets.Model, error)
}

// Resources hands out GPU resource IDs for textures and meshes.
type Resources interface {
	AcquireTexture(path string) uint32
	AcquireMesh(key cache.MeshKey, vertices []gpu.Vertex, indices []uint32) int
	// Preload decodes paths concurrently and returns the ID of each.
	Preload(ctx context.Context, paths []string) (map[string]uint32, error)
}

var defaultSun = mgl32.Vec3{-0.3, -1, -0.2}

type Scene struct {
	Arena  *Arena
	Camera *Camera
	// Sun is the direction sunlight travels in.
	Sun mgl32.Vec3

	byID map[uuid.UUID]Handle
}

func New() *Scene {
	return &Scene{
		Arena:  NewArena(),
		Camera: NewCamera(),
		Sun:    defaultSun.Normalize(),
		byID:   make(map[uuid.UUID]Handle),
	}
}

// Lookup returns the handle of the entity with the given file ID.
func (s *Scene) Lookup(id uuid.UUID) (Handle, bool) {
	h, ok := s.byID[id]
	if _, live := s.Arena.Get(h); !live {
		return Handle{}, false
	}
	return h, ok
}

// Rebuild replaces the scene contents with f. Textures that fail to load
// resolve to the fallback texture; entities whose model cannot be loaded
// are skipped and their children attach to the skipped entity's parent.
func (s *Scene) Rebuild(f *File, models ModelSource, res Resources) {
	s.Arena.Clear()
	s.byID = make(map[uuid.UUID]Handle, len(f.Entities))

	s.Camera.Reset()
	s.Camera.SetPosition(mgl32.Vec3(f.Camera.Position))
	s.Camera.SetRotation(f.Camera.Yaw, f.Camera.Pitch)
	if f.Camera.FovY > 0 {
		s.Camera.FovY = f.Camera.FovY
	}
	s.Sun = defaultSun.Normalize()
	if sun := mgl32.Vec3(f.Sun); sun.Len() > 0 {
		s.Sun = sun.Normalize()
	}

	records := make(map[uuid.UUID]*EntityRecord, len(f.Entities))
	for i := range f.Entities {
		records[f.Entities[i].ID] = &f.Entities[i]
	}
	// skipped maps a dropped entity to the parent its children inherit.
	skipped := make(map[uuid.UUID]uuid.UUID)
	b := &builder{
		records:  records,
		skipped:  skipped,
		models:   models,
		res:      res,
		textures: preloadTextures(f, res),
	}

	for i := range f.Entities {
		s.create(&f.Entities[i], b)
	}
	core.LogInfo("scene rebuilt: %d entities (%d skipped)", s.Arena.Len(), len(skipped))
}

// builder carries what creating the entities of one file needs.
type builder struct {
	records map[uuid.UUID]*EntityRecord
	skipped map[uuid.UUID]uuid.UUID
	models  ModelSource
	res     Resources
	// textures holds the preloaded ID of every texture path in the file.
	textures map[string]uint32
}

// preloadTextures decodes every texture the file references at once.
func preloadTextures(f *File, res Resources) map[string]uint32 {
	var paths []string
	seen := make(map[string]bool)
	for _, rec := range f.Entities {
		if rec.Texture != "" && !seen[rec.Texture] {
			seen[rec.Texture] = true
			paths = append(paths, rec.Texture)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	ids, err := res.Preload(context.Background(), paths)
	if err != nil {
		core.LogWarn("preloading %d scene textures: %s", len(paths), err)
	}
	return ids
}

func (b *builder) texture(path string) uint32 {
	if id, ok := b.textures[path]; ok {
		return id
	}
	return b.res.AcquireTexture(path)
}

// create builds rec after its ancestors and returns its handle, or a nil
// handle when it was skipped.
func (s *Scene) create(rec *EntityRecord, b *builder) Handle {
	if h, ok := s.byID[rec.ID]; ok {
		return h
	}
	if _, ok := b.skipped[rec.ID]; ok {
		return Handle{}
	}

	mesh := cache.InvalidMesh
	if rec.Model != "" {
		mesh = s.loadMesh(rec, b.models, b.res)
		if mesh == cache.InvalidMesh {
			b.skipped[rec.ID] = rec.Parent
			return Handle{}
		}
	}

	parent := Handle{}
	for pid := rec.Parent; pid != uuid.Nil; {
		if p, ok := b.records[pid]; ok {
			if parent = s.create(p, b); !parent.IsNil() {
				break
			}
		}
		pid = b.skipped[pid]
	}

	e := entityFromRecord(rec)
	e.Mesh = mesh
	if rec.Texture != "" {
		e.Material.TextureID = b.texture(rec.Texture)
	}
	h := s.Arena.Create(e)
	if !parent.IsNil() {
		if err := s.Arena.SetParent(h, parent); err != nil {
			core.LogWarn("entity %s: %s", rec.ID, err)
		}
	}
	s.byID[rec.ID] = h
	return h
}

func (s *Scene) loadMesh(rec *EntityRecord, models ModelSource, res Resources) int {
	model, err := models.LoadModel(rec.Model)
	if err != nil {
		core.LogWarn("skipping entity %s: %s", rec.ID, err)
		return cache.InvalidMesh
	}
	sm, ok := model.SubMesh(rec.SubMesh)
	if !ok {
		core.LogWarn("skipping entity %s: model %s has no sub-mesh %q", rec.ID, rec.Model, rec.SubMesh)
		return cache.InvalidMesh
	}
	return res.AcquireMesh(cache.MeshKey{Source: rec.Model, SubMesh: sm.Name}, sm.Vertices, sm.Indices)
}

func entityFromRecord(rec *EntityRecord) Entity {
	scale := mgl32.Vec3{1, 1, 1}
	if rec.Scale != nil {
		scale = mgl32.Vec3(*rec.Scale)
	}
	tint := mgl32.Vec4{1, 1, 1, 1}
	if rec.Tint != nil {
		tint = mgl32.Vec4(*rec.Tint)
	}
	return Entity{
		ID:        rec.ID,
		Name:      rec.Name,
		Transform: TransformFromEuler(mgl32.Vec3(rec.Position), mgl32.Vec3(rec.Rotation), scale),
		Visible:   !rec.Hidden,
		Material: graph.Material{
			TextureID:    cache.FallbackTexture,
			Tint:         tint,
			Roughness:    rec.Roughness,
			Metallic:     rec.Metallic,
			Transmission: rec.Transmission,
			Attenuation:  mgl32.Vec4(rec.Attenuation),
			DoubleSided:  rec.DoubleSided,
		},
		Water: rec.Water,
	}
}

// View assembles what the renderer needs for one frame at the given
// target aspect ratio.
func (s *Scene) View(aspect float32, time float32) *graph.View {
	items, water := s.Arena.Renderables()
	return &graph.View{
		Camera:       s.Camera.Graph(aspect),
		SunDirection: s.Sun,
		Time:         time,
		Items:        items,
		Water:        water,
	}
}
