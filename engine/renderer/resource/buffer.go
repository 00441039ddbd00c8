// Package resource holds the single-owner wrappers for memory-backed GPU
// buffers and images.
package resource

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// Buffer owns a GPU buffer and the memory bound to it.
type Buffer struct {
	nc     noCopy
	dev    gpu.Device
	handle gpu.Buffer
	memory gpu.Memory
	size   uint64
}

// NewBuffer creates a buffer and binds freshly allocated memory of the
// given kind to it. On error nothing is left allocated.
func NewBuffer(dev gpu.Device, desc gpu.BufferDesc, kind gpu.MemoryKind) (*Buffer, error) {
	handle, err := dev.CreateBuffer(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "creating buffer of %d bytes", desc.Size)
	}
	memory, err := dev.AllocateBufferMemory(handle, kind)
	if err != nil {
		dev.DestroyBuffer(handle)
		return nil, errors.Wrapf(err, "allocating memory for buffer of %d bytes", desc.Size)
	}
	b := &Buffer{dev: dev, handle: handle, memory: memory, size: desc.Size}
	b.nc.check()
	return b, nil
}

func (b *Buffer) Handle() gpu.Buffer {
	b.nc.check()
	return b.handle
}

func (b *Buffer) Size() uint64 {
	return b.size
}

// Valid reports whether b still owns a buffer.
func (b *Buffer) Valid() bool {
	return b != nil && b.handle != 0
}

// Write copies data into the buffer's memory. Only host-visible buffers
// can be written.
func (b *Buffer) Write(offset uint64, data []byte) error {
	b.nc.check()
	if !b.Valid() {
		return errors.New("write to a destroyed buffer")
	}
	return b.dev.WriteMemory(b.memory, offset, data)
}

// Move transfers ownership to the returned Buffer. b no longer destroys
// anything.
func (b *Buffer) Move() *Buffer {
	b.nc.check()
	moved := &Buffer{dev: b.dev, handle: b.handle, memory: b.memory, size: b.size}
	moved.nc.check()
	b.handle, b.memory, b.size = 0, 0, 0
	return moved
}

// Destroy releases the buffer, then its memory. Safe to call more than
// once and on moved-from buffers.
func (b *Buffer) Destroy() {
	if b == nil {
		return
	}
	b.nc.check()
	if b.handle != 0 {
		b.dev.DestroyBuffer(b.handle)
		b.handle = 0
	}
	if b.memory != 0 {
		b.dev.FreeMemory(b.memory)
		b.memory = 0
	}
}
