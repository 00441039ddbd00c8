package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// spirv builds a module header followed by body zero words.
func spirv(body int) []byte {
	out := []byte{0x03, 0x02, 0x23, 0x07}
	for i := 0; i < spirvHeaderWords-1+body; i++ {
		out = append(out, 0, 0, 0, 0)
	}
	return out
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	writeFile(t, filepath.Join(root, "textures", "a.png"), pngBytes(t, img))
	writeFile(t, filepath.Join(root, "models", "tri.obj"), []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	writeFile(t, filepath.Join(root, "shaders", "mesh.vert.spv"), spirv(0))
	writeFile(t, filepath.Join(root, "README.txt"), []byte("not an asset"))
	return root
}

func TestAssetManagerScanAndResolve(t *testing.T) {
	root := newTree(t)
	am := NewAssetManager(core.AssetsConfig{Root: root})
	if err := am.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer am.Close()

	if am.Len() != 3 {
		t.Errorf("indexed %d assets, want 3", am.Len())
	}
	info, ok := am.Lookup("textures/a.png")
	if !ok || info.Kind != KindImage {
		t.Errorf("Lookup(textures/a.png) = %+v, %v", info, ok)
	}
	if got := len(am.List(KindModel)); got != 1 {
		t.Errorf("%d models listed, want 1", got)
	}
	if _, err := am.Resolve("textures/missing.png"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Resolve(missing) = %v, want ErrAssetNotFound", err)
	}

	w, h, rgba, err := am.DecodeTexture("textures/a.png")
	if err != nil || w != 2 || h != 2 || len(rgba) != 16 {
		t.Errorf("DecodeTexture = %d, %d, %d bytes, %v", w, h, len(rgba), err)
	}
	if _, err := am.LoadShader("mesh", gpu.ShaderVertex); err != nil {
		t.Errorf("LoadShader: %s", err)
	}
	if _, err := am.LoadShader("mesh", gpu.ShaderFragment); err == nil {
		t.Error("LoadShader found a missing fragment stage")
	}
	m, err := am.LoadModel("models/tri.obj")
	if err != nil || len(m.Meshes) != 1 {
		t.Errorf("LoadModel = %+v, %v", m, err)
	}
}

func TestResolveIndexesFilesCreatedLater(t *testing.T) {
	root := newTree(t)
	am := NewAssetManager(core.AssetsConfig{Root: root})
	if err := am.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer am.Close()
	writeFile(t, filepath.Join(root, "textures", "late.png"), pngBytes(t, image.NewNRGBA(image.Rect(0, 0, 1, 1))))
	if _, err := am.Resolve("textures/late.png"); err != nil {
		t.Fatal(err)
	}
	if _, ok := am.Lookup("textures/late.png"); !ok {
		t.Error("resolved file was not indexed")
	}
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestAssetManagerWatch(t *testing.T) {
	root := newTree(t)
	am := NewAssetManager(core.AssetsConfig{Root: root, Watch: true})
	if err := am.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer am.Close()

	path := filepath.Join(root, "textures", "new.png")
	writeFile(t, path, pngBytes(t, image.NewNRGBA(image.Rect(0, 0, 1, 1))))
	if !waitFor(t, func() bool { _, ok := am.Lookup("textures/new.png"); return ok }) {
		t.Fatal("created file never indexed")
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { _, ok := am.Lookup("textures/new.png"); return !ok }) {
		t.Fatal("removed file still indexed")
	}
}

func TestCloseTwice(t *testing.T) {
	am := NewAssetManager(core.AssetsConfig{Root: newTree(t), Watch: true})
	if err := am.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := am.Close(); err != nil {
		t.Fatal(err)
	}
	if err := am.Close(); err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Initialize after Close = %v", err)
	}
}

func TestDecodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(2, 1, color.NRGBA{G: 128, B: 64, A: 128})

	w, h, rgba, err := DecodeImage(bytes.NewReader(pngBytes(t, src)))
	if err != nil {
		t.Fatal(err)
	}
	if w != 3 || h != 2 {
		t.Fatalf("size = %dx%d, want 3x2", w, h)
	}
	if diff := cmp.Diff(src.Pix, rgba); diff != "" {
		t.Errorf("pixels differ (-want +got):\n%s", diff)
	}
}

func TestDecodeImageConvertsGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(1, 0, color.Gray{Y: 200})
	_, _, rgba, err := DecodeImage(bytes.NewReader(pngBytes(t, src)))
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 255, 200, 200, 200, 255}
	if diff := cmp.Diff(want, rgba); diff != "" {
		t.Errorf("pixels differ (-want +got):\n%s", diff)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeImage(bytes.NewReader([]byte("definitely not an image")))
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("err = %v, want ErrInvalidImage", err)
	}
}

func TestToNRGBAOffsetOrigin(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.SetNRGBA(2, 2, color.NRGBA{R: 9, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))
	out := toNRGBA(sub)
	if out.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	if out.Pix[0] != 9 || len(out.Pix) != 16 {
		t.Errorf("pix = %v", out.Pix)
	}
}

func TestValidateSPIRV(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		ok   bool
	}{
		{"valid", spirv(0), true},
		{"valid with body", spirv(2), true},
		{"unaligned", append(spirv(0), 1), false},
		{"short", []byte{0x03, 0x02, 0x23, 0x07}, false},
		{"bad magic", make([]byte, 20), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSPIRV(tt.code)
			if tt.ok != (err == nil) {
				t.Errorf("ValidateSPIRV = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidSPIRV) {
				t.Errorf("error %v not marked ErrInvalidSPIRV", err)
			}
		})
	}
}

func TestShaderFile(t *testing.T) {
	if got := ShaderFile("composite", gpu.ShaderFragment); got != "composite.frag.spv" {
		t.Errorf("got %q", got)
	}
}

func TestDetermineAssetType(t *testing.T) {
	tests := map[string]Kind{
		"a/b.PNG":       KindImage,
		"x.webp":        KindImage,
		"m.obj":         KindModel,
		"mesh.vert.spv": KindShader,
		"mono.fnt":      KindFont,
		"level.toml":    KindScene,
		"notes.md":      KindNone,
	}
	for path, want := range tests {
		if got := determineAssetType(path); got != want {
			t.Errorf("determineAssetType(%q) = %s, want %s", path, got, want)
		}
	}
}
