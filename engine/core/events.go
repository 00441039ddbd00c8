package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Keyboard key pressed. Data: *KeyEvent.
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Keyboard key released. Data: *KeyEvent.
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Resized/resolution changed from the OS. Data: *ResizeEvent.
	EVENT_CODE_RESIZED EventCode = 0x08

	MAX_EVENT_CODE EventCode = 0xFF
)

type KeyEvent struct {
	KeyCode KeyCode
}

// ResizeEvent carries the new drawable size in pixels. Either dimension is
// zero while the window is minimized.
type ResizeEvent struct {
	Width  uint32
	Height uint32
}

type EventContext struct {
	Type EventCode
	Data interface{}
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext) bool

type registeredEvent struct {
	id       uint64
	callback FnOnEvent
}

// Events is a code -> listener registry. Listeners are called in
// registration order until one reports the event as handled.
type Events struct {
	mu         sync.RWMutex
	nextID     uint64
	registered map[EventCode][]registeredEvent
}

func NewEvents() *Events {
	return &Events{
		registered: make(map[EventCode][]registeredEvent),
	}
}

// Register adds a listener and returns a token for Unregister.
func (e *Events) Register(code EventCode, onEvent FnOnEvent) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.registered[code] = append(e.registered[code], registeredEvent{id: e.nextID, callback: onEvent})
	return e.nextID
}

func (e *Events) Unregister(code EventCode, token uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	events := e.registered[code]
	for i, ev := range events {
		if ev.id == token {
			e.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire dispatches ctx to the listeners of ctx.Type and reports whether one
// of them handled it.
func (e *Events) Fire(ctx EventContext) bool {
	e.mu.RLock()
	events := append([]registeredEvent(nil), e.registered[ctx.Type]...)
	e.mu.RUnlock()
	for _, ev := range events {
		if ev.callback(ctx) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

func (e *Events) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = make(map[EventCode][]registeredEvent)
}
