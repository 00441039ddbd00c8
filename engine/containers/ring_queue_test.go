package containers

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestRingQueueFIFOAcrossGrowth(t *testing.T) {
	rq := NewRingQueue[int](2)
	rq.Enqueue(1)
	rq.Enqueue(2)
	if v, _ := rq.Dequeue(); v != 1 {
		t.Fatalf("Dequeue = %d, want 1", v)
	}
	// Wrap the write index, then force a grow while wrapped.
	rq.Enqueue(3)
	rq.Enqueue(4)
	rq.Enqueue(5)
	if rq.Len() != 4 {
		t.Fatalf("Len = %d, want 4", rq.Len())
	}
	for want := 2; want <= 5; want++ {
		v, err := rq.Dequeue()
		if err != nil || v != want {
			t.Fatalf("Dequeue = %d, %v, want %d", v, err, want)
		}
	}
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Dequeue on empty = %v", err)
	}
	if _, err := rq.Peek(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Peek on empty = %v", err)
	}
}

func TestRingQueuePeek(t *testing.T) {
	rq := NewRingQueue[string](0)
	rq.Enqueue("a")
	if !rq.IsFull() {
		t.Error("queue of one element should be full")
	}
	if v, err := rq.Peek(); err != nil || v != "a" || rq.Len() != 1 {
		t.Errorf("Peek = %q, %v, len %d", v, err, rq.Len())
	}
}
