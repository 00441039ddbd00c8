package scene

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/containers"
	"github.com/spaghettifunk/prism/engine/renderer/cache"
	"github.com/spaghettifunk/prism/engine/renderer/graph"
)

var (
	ErrStaleHandle = errors.New("stale entity handle")
	ErrCycle       = errors.New("parent link would create a cycle")
)

// Handle addresses an entity in an Arena. A handle whose slot was freed
// and reused no longer resolves. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

func (h Handle) IsNil() bool { return h.generation == 0 }

func (h Handle) String() string {
	if h.IsNil() {
		return "entity(nil)"
	}
	return fmt.Sprintf("entity(%d:%d)", h.index, h.generation)
}

// Entity is the render-relevant state of a scene object.
type Entity struct {
	ID        uuid.UUID
	Name      string
	Transform Transform
	Visible   bool
	// Mesh is a resource cache mesh index, or cache.InvalidMesh for
	// entities that only group others.
	Mesh     int
	Material graph.Material
	// Water entities are drawn by the water pass instead of the mesh
	// passes.
	Water bool

	parent   Handle
	children []Handle
}

func (e *Entity) Parent() Handle { return e.parent }

func (e *Entity) Children() []Handle { return e.children }

type slot struct {
	generation uint32
	live       bool
	entity     Entity
}

// Arena stores entities in a flat slice. Freed slots are reused oldest
// first, bumping their generation.
type Arena struct {
	slots []slot
	free  *containers.RingQueue[uint32]
	live  int
}

func NewArena() *Arena {
	return &Arena{free: containers.NewRingQueue[uint32](64)}
}

// Create stores e with no parent and returns its handle.
func (a *Arena) Create(e Entity) Handle {
	e.parent = Handle{}
	e.children = nil
	var index uint32
	if i, err := a.free.Dequeue(); err == nil {
		index = i
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	s := &a.slots[index]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.live = true
	s.entity = e
	a.live++
	return Handle{index: index, generation: s.generation}
}

// Get returns the entity h addresses, or false if h is stale.
func (a *Arena) Get(h Handle) (*Entity, bool) {
	if h.IsNil() || int(h.index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil, false
	}
	return &s.entity, true
}

// Destroy frees h and its whole subtree.
func (a *Arena) Destroy(h Handle) bool {
	e, ok := a.Get(h)
	if !ok {
		return false
	}
	if p, ok := a.Get(e.parent); ok {
		p.children = remove(p.children, h)
	}
	a.destroyTree(h)
	return true
}

func (a *Arena) destroyTree(h Handle) {
	e, ok := a.Get(h)
	if !ok {
		return
	}
	children := e.children
	s := &a.slots[h.index]
	s.live = false
	s.entity = Entity{}
	a.live--
	a.free.Enqueue(h.index)
	for _, c := range children {
		a.destroyTree(c)
	}
}

func remove(list []Handle, h Handle) []Handle {
	for i, c := range list {
		if c == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// SetParent moves child under parent. A nil parent detaches it.
func (a *Arena) SetParent(child, parent Handle) error {
	c, ok := a.Get(child)
	if !ok {
		return errors.Wrapf(ErrStaleHandle, "child %s", child)
	}
	if !parent.IsNil() {
		if _, ok := a.Get(parent); !ok {
			return errors.Wrapf(ErrStaleHandle, "parent %s", parent)
		}
		for p := parent; !p.IsNil(); {
			if p == child {
				return errors.Wrapf(ErrCycle, "%s under %s", child, parent)
			}
			pe, _ := a.Get(p)
			p = pe.parent
		}
	}
	if old, ok := a.Get(c.parent); ok {
		old.children = remove(old.children, child)
	}
	c.parent = parent
	if p, ok := a.Get(parent); ok {
		p.children = append(p.children, child)
	}
	return nil
}

// WorldMatrix composes the local matrices from the root down to h.
func (a *Arena) WorldMatrix(h Handle) mgl32.Mat4 {
	m := mgl32.Ident4()
	for e, ok := a.Get(h); ok; e, ok = a.Get(e.parent) {
		m = e.Transform.Matrix().Mul4(m)
	}
	return m
}

// Each calls fn for every live entity in slot order.
func (a *Arena) Each(fn func(h Handle, e *Entity)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.live {
			fn(Handle{index: uint32(i), generation: s.generation}, &s.entity)
		}
	}
}

func (a *Arena) Len() int { return a.live }

// Clear destroys every entity. Outstanding handles become stale.
func (a *Arena) Clear() {
	for i := range a.slots {
		if a.slots[i].live {
			a.slots[i].live = false
			a.slots[i].entity = Entity{}
			a.free.Enqueue(uint32(i))
		}
	}
	a.live = 0
}

// visible reports whether h and all its ancestors are visible.
func (a *Arena) visible(h Handle) bool {
	for e, ok := a.Get(h); ok; e, ok = a.Get(e.parent) {
		if !e.Visible {
			return false
		}
	}
	return true
}

// Renderables flattens every visible entity with a mesh into draw items,
// in slot order.
func (a *Arena) Renderables() (items, water []graph.DrawItem) {
	a.Each(func(h Handle, e *Entity) {
		if e.Mesh == cache.InvalidMesh || !a.visible(h) {
			return
		}
		item := graph.DrawItem{Mesh: e.Mesh, Model: a.WorldMatrix(h), Material: e.Material}
		if e.Water {
			water = append(water, item)
		} else {
			items = append(items, item)
		}
	})
	return items, water
}
