package scene

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// FileVersion is the scene file format this build reads and writes.
const FileVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported scene file version")

type CameraRecord struct {
	Position [3]float32 `toml:"position"`
	Yaw      float32    `toml:"yaw"`
	Pitch    float32    `toml:"pitch"`
	FovY     float32    `toml:"fov_y,omitempty"`
}

// EntityRecord is one entity as stored on disk. Model and Texture are
// asset names relative to the asset root.
type EntityRecord struct {
	ID       uuid.UUID `toml:"id"`
	Name     string    `toml:"name,omitempty"`
	Parent   uuid.UUID `toml:"parent,omitempty"`
	Hidden   bool      `toml:"hidden,omitempty"`
	Model    string    `toml:"model,omitempty"`
	SubMesh  string    `toml:"submesh,omitempty"`
	Texture  string    `toml:"texture,omitempty"`
	Position [3]float32 `toml:"position"`
	// Rotation is in degrees, applied X then Y then Z.
	Rotation     [3]float32  `toml:"rotation"`
	Scale        *[3]float32 `toml:"scale,omitempty"`
	Tint         *[4]float32 `toml:"tint,omitempty"`
	Roughness    float32     `toml:"roughness,omitempty"`
	Metallic     float32     `toml:"metallic,omitempty"`
	Transmission float32     `toml:"transmission,omitempty"`
	Attenuation  [4]float32  `toml:"attenuation,omitempty"`
	DoubleSided  bool        `toml:"double_sided,omitempty"`
	Water        bool        `toml:"water,omitempty"`
}

type File struct {
	Version  int            `toml:"version"`
	Camera   CameraRecord   `toml:"camera"`
	Sun      [3]float32     `toml:"sun"`
	Entities []EntityRecord `toml:"entity"`
}

// ParseFile decodes and validates a scene file. Entities without an ID
// get a fresh one.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decoding scene")
	}
	if f.Version != FileVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d, want %d", f.Version, FileVersion)
	}
	seen := make(map[uuid.UUID]bool, len(f.Entities))
	for i := range f.Entities {
		e := &f.Entities[i]
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if seen[e.ID] {
			return nil, errors.Newf("entity %d: duplicate id %s", i, e.ID)
		}
		seen[e.ID] = true
	}
	parents := make(map[uuid.UUID]uuid.UUID, len(f.Entities))
	for i, e := range f.Entities {
		if e.Parent != uuid.Nil && !seen[e.Parent] {
			return nil, errors.Newf("entity %d (%s): unknown parent %s", i, e.ID, e.Parent)
		}
		parents[e.ID] = e.Parent
	}
	for _, e := range f.Entities {
		steps := 0
		for p := e.Parent; p != uuid.Nil; p = parents[p] {
			if steps++; steps > len(f.Entities) {
				return nil, errors.Newf("entity %s: parent chain loops", e.ID)
			}
		}
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scene %s", path)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scene %s", path)
	}
	return f, nil
}

// Marshal encodes f with the current version.
func (f *File) Marshal() ([]byte, error) {
	f.Version = FileVersion
	return toml.Marshal(f)
}

func (f *File) Save(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return errors.Wrap(err, "encoding scene")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing scene %s", path)
}
