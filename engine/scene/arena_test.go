package scene

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/renderer/cache"
)

func node(name string) Entity {
	return Entity{Name: name, Transform: NewTransform(), Visible: true, Mesh: cache.InvalidMesh}
}

func TestArenaStaleHandles(t *testing.T) {
	a := NewArena()
	h := a.Create(node("a"))
	if e, ok := a.Get(h); !ok || e.Name != "a" {
		t.Fatalf("Get(%s) = %+v, %v", h, e, ok)
	}
	if !a.Destroy(h) {
		t.Fatal("Destroy failed")
	}
	if _, ok := a.Get(h); ok {
		t.Error("destroyed handle still resolves")
	}
	if a.Destroy(h) {
		t.Error("second Destroy succeeded")
	}

	h2 := a.Create(node("b"))
	if h2.index != h.index || h2.generation == h.generation {
		t.Errorf("slot not reused with a new generation: %s then %s", h, h2)
	}
	if _, ok := a.Get(h); ok {
		t.Error("old handle resolves to the reused slot")
	}
	if _, ok := a.Get(Handle{}); ok {
		t.Error("nil handle resolves")
	}
}

func TestArenaDestroySubtree(t *testing.T) {
	a := NewArena()
	root := a.Create(node("root"))
	mid := a.Create(node("mid"))
	leaf := a.Create(node("leaf"))
	other := a.Create(node("other"))
	if err := a.SetParent(mid, root); err != nil {
		t.Fatal(err)
	}
	if err := a.SetParent(leaf, mid); err != nil {
		t.Fatal(err)
	}
	if err := a.SetParent(other, root); err != nil {
		t.Fatal(err)
	}

	a.Destroy(mid)
	if _, ok := a.Get(leaf); ok {
		t.Error("leaf survived its parent")
	}
	r, _ := a.Get(root)
	if len(r.Children()) != 1 || r.Children()[0] != other {
		t.Errorf("root children = %v, want [%s]", r.Children(), other)
	}
	if a.Len() != 2 {
		t.Errorf("Len = %d, want 2", a.Len())
	}
}

func TestArenaSetParentRejectsCycles(t *testing.T) {
	a := NewArena()
	p := a.Create(node("p"))
	c := a.Create(node("c"))
	if err := a.SetParent(c, p); err != nil {
		t.Fatal(err)
	}
	if err := a.SetParent(p, c); !errors.Is(err, ErrCycle) {
		t.Errorf("SetParent(p, c) = %v, want ErrCycle", err)
	}
	if err := a.SetParent(p, p); !errors.Is(err, ErrCycle) {
		t.Errorf("SetParent(p, p) = %v, want ErrCycle", err)
	}
	if err := a.SetParent(c, Handle{index: 99, generation: 1}); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("SetParent to a stale parent = %v", err)
	}
	if err := a.SetParent(c, Handle{}); err != nil {
		t.Fatal(err)
	}
	if e, _ := a.Get(c); !e.Parent().IsNil() {
		t.Error("detached child still has a parent")
	}
	if e, _ := a.Get(p); len(e.Children()) != 0 {
		t.Error("parent still lists the detached child")
	}
}

func TestArenaWorldMatrix(t *testing.T) {
	a := NewArena()
	parent := node("parent")
	parent.Transform = TransformFromPosition(mgl32.Vec3{10, 0, 0})
	child := node("child")
	child.Transform = TransformFromPosition(mgl32.Vec3{0, 5, 0})
	p := a.Create(parent)
	c := a.Create(child)
	if err := a.SetParent(c, p); err != nil {
		t.Fatal(err)
	}
	got := a.WorldMatrix(c).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !got.ApproxEqual(mgl32.Vec4{10, 5, 0, 1}) {
		t.Errorf("child origin in world = %v", got)
	}
}

func TestRenderablesHonorsVisibilityAndMeshes(t *testing.T) {
	a := NewArena()
	hidden := node("hidden")
	hidden.Visible = false
	h := a.Create(hidden)

	under := node("under hidden")
	under.Mesh = 0
	u := a.Create(under)
	if err := a.SetParent(u, h); err != nil {
		t.Fatal(err)
	}

	shown := node("shown")
	shown.Mesh = 1
	a.Create(shown)

	water := node("water")
	water.Mesh = 2
	water.Water = true
	a.Create(water)

	a.Create(node("group without mesh"))

	items, waters := a.Renderables()
	if len(items) != 1 || items[0].Mesh != 1 {
		t.Errorf("items = %+v", items)
	}
	if len(waters) != 1 || waters[0].Mesh != 2 {
		t.Errorf("water = %+v", waters)
	}
}

func TestArenaClear(t *testing.T) {
	a := NewArena()
	h := a.Create(node("a"))
	a.Create(node("b"))
	a.Clear()
	if a.Len() != 0 {
		t.Errorf("Len = %d after Clear", a.Len())
	}
	if _, ok := a.Get(h); ok {
		t.Error("handle survived Clear")
	}
	n := 0
	a.Each(func(Handle, *Entity) { n++ })
	if n != 0 {
		t.Errorf("Each visited %d entities after Clear", n)
	}
}
