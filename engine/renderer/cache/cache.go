// Package cache deduplicates texture and mesh uploads and backs the
// bindless texture table sampled by every mesh pipeline.
package cache

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

// FallbackTexture is the texture ID every failed or overflowing request
// resolves to. It is valid from construction until Destroy.
const FallbackTexture uint32 = 0

// InvalidMesh is returned by AcquireMesh when no mesh could be created.
const InvalidMesh = -1

// TextureDecoder turns a texture path into tightly packed RGBA8 pixels.
// It may be called from several goroutines at once.
type TextureDecoder interface {
	DecodeTexture(path string) (width, height uint32, rgba []byte, err error)
}

type Config struct {
	// MaxTextures is the capacity of the texture table, fallback included.
	MaxTextures uint32
	MaxMeshes   uint32
}

// MeshKey identifies a mesh by its source file and sub-mesh name.
type MeshKey struct {
	Source  string
	SubMesh string
}

func (k MeshKey) String() string {
	if k.SubMesh == "" {
		return k.Source
	}
	return k.Source + "#" + k.SubMesh
}

// Mesh is an uploaded vertex/index buffer pair.
type Mesh struct {
	Key        MeshKey
	Vertices   *resource.Buffer
	Indices    *resource.Buffer
	IndexCount uint32
}

type Cache struct {
	dev      gpu.Device
	uploader *resource.Uploader
	decoder  TextureDecoder
	config   Config

	table   gpu.TextureTable
	sampler gpu.Sampler

	textures     []*resource.Image
	texturePaths map[string]uint32
	meshes       []*Mesh
	meshKeys     map[MeshKey]int
}

// New creates the texture table and the fallback texture, and points every
// table slot at the fallback so no draw ever samples an unwritten slot.
func New(dev gpu.Device, decoder TextureDecoder, config Config) (*Cache, error) {
	if config.MaxTextures < 1 {
		return nil, errors.Newf("texture table capacity %d leaves no room for the fallback", config.MaxTextures)
	}
	if config.MaxMeshes == 0 {
		config.MaxMeshes = core.DefaultMaxMeshes
	}
	c := &Cache{
		dev:          dev,
		uploader:     resource.NewUploader(dev),
		decoder:      decoder,
		config:       config,
		texturePaths: make(map[string]uint32),
		meshKeys:     make(map[MeshKey]int),
	}

	var err error
	c.sampler, err = dev.CreateSampler(gpu.SamplerDesc{
		Filter:     gpu.FilterLinear,
		Address:    gpu.AddressRepeat,
		Anisotropy: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating texture sampler")
	}
	c.table, err = dev.CreateTextureTable(config.MaxTextures)
	if err != nil {
		c.Destroy()
		return nil, errors.Wrapf(err, "creating texture table of %d", config.MaxTextures)
	}

	fallback, err := c.uploader.Texture(fallbackPixels(), fallbackExtent, gpu.FormatRGBA8Srgb)
	if err != nil {
		c.Destroy()
		return nil, errors.Wrap(err, "uploading fallback texture")
	}
	c.textures = append(c.textures, fallback)
	for slot := uint32(0); slot < config.MaxTextures; slot++ {
		if err := dev.WriteTextureTable(c.table, slot, fallback.View(), c.sampler); err != nil {
			c.Destroy()
			return nil, errors.Wrapf(err, "writing fallback into slot %d", slot)
		}
	}
	return c, nil
}

// AcquireTexture returns the texture ID for path, uploading it on first
// use. Failures are logged and resolve to FallbackTexture.
func (c *Cache) AcquireTexture(path string) uint32 {
	if id, ok := c.texturePaths[path]; ok {
		return id
	}
	if c.full() {
		core.LogWarn("texture table is full (%d), using fallback for '%s'", c.config.MaxTextures, path)
		return FallbackTexture
	}
	width, height, rgba, err := c.decoder.DecodeTexture(path)
	if err != nil {
		core.LogWarn("failed to decode texture '%s', using fallback: %s", path, err)
		return FallbackTexture
	}
	return c.register(path, width, height, rgba)
}

func (c *Cache) full() bool {
	return uint32(len(c.textures)) >= c.config.MaxTextures
}

func (c *Cache) register(path string, width, height uint32, rgba []byte) uint32 {
	img, err := c.uploader.Texture(rgba, gpu.Extent{Width: width, Height: height}, gpu.FormatRGBA8Srgb)
	if err != nil {
		core.LogWarn("failed to upload texture '%s', using fallback: %s", path, err)
		return FallbackTexture
	}
	id := uint32(len(c.textures))
	if err := c.dev.WriteTextureTable(c.table, id, img.View(), c.sampler); err != nil {
		img.Destroy()
		core.LogWarn("failed to bind texture '%s' at %d, using fallback: %s", path, id, err)
		return FallbackTexture
	}
	c.textures = append(c.textures, img)
	c.texturePaths[path] = id
	core.LogDebug("texture '%s' loaded as %d (%dx%d)", path, id, width, height)
	return id
}

type decoded struct {
	path          string
	width, height uint32
	rgba          []byte
	err           error
}

// Preload decodes the given textures concurrently, then uploads them in
// order on the calling goroutine. It returns the ID of every path; failed
// ones map to FallbackTexture. Only a cancelled context is an error.
func (c *Cache) Preload(ctx context.Context, paths []string) (map[string]uint32, error) {
	ids := make(map[string]uint32, len(paths))
	var pending []*decoded
	seen := make(map[string]bool)
	for _, p := range paths {
		if id, ok := c.texturePaths[p]; ok {
			ids[p] = id
			continue
		}
		if !seen[p] {
			seen[p] = true
			pending = append(pending, &decoded{path: p})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, d := range pending {
		d := d
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d.width, d.height, d.rgba, d.err = c.decoder.DecodeTexture(d.path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ids, errors.Wrap(err, "preloading textures")
	}

	for _, d := range pending {
		switch {
		case d.err != nil:
			core.LogWarn("failed to decode texture '%s', using fallback: %s", d.path, d.err)
			ids[d.path] = FallbackTexture
		case c.full():
			core.LogWarn("texture table is full (%d), using fallback for '%s'", c.config.MaxTextures, d.path)
			ids[d.path] = FallbackTexture
		default:
			ids[d.path] = c.register(d.path, d.width, d.height, d.rgba)
		}
	}
	return ids, nil
}

// AcquireMesh returns the mesh index for key, uploading the geometry on
// first use. Failures are logged and return InvalidMesh.
func (c *Cache) AcquireMesh(key MeshKey, vertices []gpu.Vertex, indices []uint32) int {
	if idx, ok := c.meshKeys[key]; ok {
		return idx
	}
	if len(vertices) == 0 || len(indices) == 0 {
		core.LogWarn("mesh '%s' has no geometry", key)
		return InvalidMesh
	}
	for _, i := range indices {
		if i >= uint32(len(vertices)) {
			core.LogWarn("mesh '%s' indexes vertex %d of %d", key, i, len(vertices))
			return InvalidMesh
		}
	}
	if uint32(len(c.meshes)) >= c.config.MaxMeshes {
		core.LogWarn("mesh table is full (%d), skipping '%s'", c.config.MaxMeshes, key)
		return InvalidMesh
	}
	vb, err := c.uploader.Buffer(VertexBytes(vertices), gpu.BufferUsageVertex)
	if err != nil {
		core.LogWarn("failed to upload vertices of '%s': %s", key, err)
		return InvalidMesh
	}
	ib, err := c.uploader.Buffer(IndexBytes(indices), gpu.BufferUsageIndex)
	if err != nil {
		vb.Destroy()
		core.LogWarn("failed to upload indices of '%s': %s", key, err)
		return InvalidMesh
	}
	idx := len(c.meshes)
	c.meshes = append(c.meshes, &Mesh{
		Key:        key,
		Vertices:   vb,
		Indices:    ib,
		IndexCount: uint32(len(indices)),
	})
	c.meshKeys[key] = idx
	core.LogDebug("mesh '%s' loaded as %d (%d vertices)", key, idx, len(vertices))
	return idx
}

// Mesh returns the mesh at idx.
func (c *Cache) Mesh(idx int) (*Mesh, bool) {
	if idx < 0 || idx >= len(c.meshes) {
		return nil, false
	}
	return c.meshes[idx], true
}

func (c *Cache) MeshCount() int {
	return len(c.meshes)
}

// TextureCount is the number of occupied table slots, fallback included.
func (c *Cache) TextureCount() int {
	return len(c.textures)
}

// TextureView returns the view bound at id.
func (c *Cache) TextureView(id uint32) (gpu.ImageView, bool) {
	if int(id) >= len(c.textures) {
		return 0, false
	}
	return c.textures[id].View(), true
}

func (c *Cache) Table() gpu.TextureTable {
	return c.table
}

func (c *Cache) Capacity() uint32 {
	return c.config.MaxTextures
}

// Destroy releases every texture and mesh. The GPU must be idle.
func (c *Cache) Destroy() {
	for _, m := range c.meshes {
		m.Vertices.Destroy()
		m.Indices.Destroy()
	}
	c.meshes = nil
	c.meshKeys = make(map[MeshKey]int)
	if c.table != 0 {
		c.dev.DestroyTextureTable(c.table)
		c.table = 0
	}
	for _, t := range c.textures {
		t.Destroy()
	}
	c.textures = nil
	c.texturePaths = make(map[string]uint32)
	if c.sampler != 0 {
		c.dev.DestroySampler(c.sampler)
		c.sampler = 0
	}
}
