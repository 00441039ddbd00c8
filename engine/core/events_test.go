package core

import "testing"

func TestEventsFireStopsAtHandler(t *testing.T) {
	events := NewEvents()
	var calls []string
	events.Register(EVENT_CODE_RESIZED, func(ctx EventContext) bool {
		calls = append(calls, "first")
		return true
	})
	events.Register(EVENT_CODE_RESIZED, func(ctx EventContext) bool {
		calls = append(calls, "second")
		return false
	})

	handled := events.Fire(EventContext{Type: EVENT_CODE_RESIZED, Data: &ResizeEvent{Width: 10, Height: 20}})
	if !handled {
		t.Fatal("event not reported as handled")
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestEventsUnregister(t *testing.T) {
	events := NewEvents()
	n := 0
	token := events.Register(EVENT_CODE_APPLICATION_QUIT, func(EventContext) bool {
		n++
		return false
	})
	events.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	if !events.Unregister(EVENT_CODE_APPLICATION_QUIT, token) {
		t.Fatal("Unregister returned false")
	}
	if events.Unregister(EVENT_CODE_APPLICATION_QUIT, token) {
		t.Fatal("second Unregister returned true")
	}
	events.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	if n != 1 {
		t.Fatalf("listener called %d times, want 1", n)
	}
}

func TestInputFiresOnChangeOnly(t *testing.T) {
	events := NewEvents()
	var pressed []KeyCode
	events.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) bool {
		pressed = append(pressed, ctx.Data.(*KeyEvent).KeyCode)
		return true
	})
	in := NewInput(events)
	in.ProcessKey(KEY_W, true)
	in.ProcessKey(KEY_W, true)
	if len(pressed) != 1 {
		t.Fatalf("pressed events = %v", pressed)
	}
	if !in.IsKeyDown(KEY_W) || in.WasKeyDown(KEY_W) {
		t.Fatal("unexpected key state before Update")
	}
	in.Update()
	if !in.WasKeyDown(KEY_W) {
		t.Fatal("previous state not copied")
	}
}

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); got < 9.99 || got > 10.01 {
		t.Fatalf("FrameTime = %v, want 10ms", got)
	}
	m.Skip()
	if m.Skipped() != 1 {
		t.Fatalf("Skipped = %d", m.Skipped())
	}
}

func TestMetricsRenderTime(t *testing.T) {
	m := NewMetrics()
	if cpu, wait := m.RenderTime(); cpu != 0 || wait != 0 {
		t.Fatalf("RenderTime before any frame = %v, %v", cpu, wait)
	}
	m.Render(0.004, 0.001)
	m.Render(0.006, 0.003)
	cpu, wait := m.RenderTime()
	if cpu < 4.99 || cpu > 5.01 || wait < 1.99 || wait > 2.01 {
		t.Errorf("RenderTime = %v, %v; want 5ms, 2ms", cpu, wait)
	}
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Render(0.002, 0)
	}
	if cpu, _ := m.RenderTime(); cpu < 1.99 || cpu > 2.01 {
		t.Errorf("RenderTime after a full window = %v, want 2ms", cpu)
	}
	if m.Rendered() != uint64(AVG_COUNT)+2 {
		t.Errorf("Rendered = %d", m.Rendered())
	}
}
