package core

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = 0x00
	KEY_ESCAPE  KeyCode = 0x1B
	KEY_SPACE   KeyCode = 0x20
	KEY_LEFT    KeyCode = 0x25
	KEY_UP      KeyCode = 0x26
	KEY_RIGHT   KeyCode = 0x27
	KEY_DOWN    KeyCode = 0x28
	KEY_A       KeyCode = 0x41
	KEY_D       KeyCode = 0x44
	KEY_E       KeyCode = 0x45
	KEY_P       KeyCode = 0x50
	KEY_Q       KeyCode = 0x51
	KEY_S       KeyCode = 0x53
	KEY_W       KeyCode = 0x57
	KEY_X       KeyCode = 0x58
	KEY_F1      KeyCode = 0x70
	KEYS_MAX_KEYS
)

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// Input holds current and previous keyboard states and fires key events
// on the engine's event registry when a key changes state.
type Input struct {
	events   *Events
	current  KeyboardState
	previous KeyboardState
}

func NewInput(events *Events) *Input {
	return &Input{events: events}
}

// Update copies the current state to the previous one. Call once per tick.
func (in *Input) Update() {
	in.previous = in.current
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return in.current.Keys[key]
}

func (in *Input) IsKeyUp(key KeyCode) bool {
	return !in.current.Keys[key]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return in.previous.Keys[key]
}

// ProcessKey records a key transition coming from the platform layer.
func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	// Only handle this if the state actually changed.
	if in.current.Keys[key] == pressed {
		return
	}
	in.current.Keys[key] = pressed

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	if in.events != nil {
		in.events.Fire(EventContext{Type: code, Data: &KeyEvent{KeyCode: key}})
	}
}
