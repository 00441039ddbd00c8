package scene

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

const sampleScene = `
version = 1
sun = [0.0, -1.0, 0.0]

[camera]
position = [0.0, 2.0, 8.0]
yaw = 0.0
pitch = -10.0

[[entity]]
id = "6f1c1a2e-9c1f-4c53-8f1e-1b6c2f0d2a01"
name = "ground"
model = "models/plane.obj"
texture = "textures/grass.png"
position = [0.0, 0.0, 0.0]
rotation = [0.0, 0.0, 0.0]
scale = [20.0, 1.0, 20.0]

[[entity]]
name = "window"
parent = "6f1c1a2e-9c1f-4c53-8f1e-1b6c2f0d2a01"
model = "models/cube.obj"
position = [0.0, 1.0, 0.0]
rotation = [0.0, 45.0, 0.0]
transmission = 0.8
tint = [0.8, 0.9, 1.0, 0.3]
`

func TestParseFile(t *testing.T) {
	f, err := ParseFile([]byte(sampleScene))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Entities) != 2 {
		t.Fatalf("%d entities, want 2", len(f.Entities))
	}
	ground, window := f.Entities[0], f.Entities[1]
	if ground.ID.String() != "6f1c1a2e-9c1f-4c53-8f1e-1b6c2f0d2a01" {
		t.Errorf("ground id = %s", ground.ID)
	}
	if window.ID == uuid.Nil {
		t.Error("entity without id was not given one")
	}
	if window.Parent != ground.ID {
		t.Errorf("window parent = %s", window.Parent)
	}
	if ground.Scale == nil || *ground.Scale != [3]float32{20, 1, 20} {
		t.Errorf("ground scale = %v", ground.Scale)
	}
	if window.Transmission != 0.8 || f.Camera.Pitch != -10 {
		t.Errorf("window transmission %v, camera pitch %v", window.Transmission, f.Camera.Pitch)
	}
}

func TestParseFileRejects(t *testing.T) {
	id := "6f1c1a2e-9c1f-4c53-8f1e-1b6c2f0d2a01"
	other := "0b7f3c5e-2f4a-4bde-9a51-0c1d2e3f4a5b"
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"future version", "version = 2\n", ErrUnsupportedVersion},
		{"missing version", "[camera]\nyaw = 1.0\n", ErrUnsupportedVersion},
		{"duplicate id", "version = 1\n[[entity]]\nid = \"" + id + "\"\n[[entity]]\nid = \"" + id + "\"\n", nil},
		{"unknown parent", "version = 1\n[[entity]]\nparent = \"" + id + "\"\n", nil},
		{"parent loop", "version = 1\n[[entity]]\nid = \"" + id + "\"\nparent = \"" + other + "\"\n[[entity]]\nid = \"" + other + "\"\nparent = \"" + id + "\"\n", nil},
		{"bad toml", "version = \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tt.src))
			if err == nil {
				t.Fatal("ParseFile accepted the file")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFileSaveLoad(t *testing.T) {
	f, err := ParseFile([]byte(sampleScene))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "scene.toml")
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
	back, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(f, back); diff != "" {
		t.Errorf("scene changed across save/load (-saved +loaded):\n%s", diff)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "nope.toml") {
		t.Errorf("err = %v", err)
	}
}

func TestShippedSceneParses(t *testing.T) {
	f, err := LoadFile(filepath.Join("..", "..", "assets", "scenes", "default.toml"))
	if err != nil {
		t.Fatal(err)
	}
	water := 0
	for _, e := range f.Entities {
		if e.Model == "" {
			t.Errorf("entity %q has no model", e.Name)
		}
		if e.Water {
			water++
		}
	}
	if water == 0 {
		t.Error("default scene has no water surface")
	}
}
