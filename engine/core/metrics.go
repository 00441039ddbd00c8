package core

const AVG_COUNT uint8 = 30

// Metrics keeps a moving average of frame times and a frames-per-second
// counter. It is owned by the engine and read by the stats overlay.
type Metrics struct {
	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	skipped            uint64

	render   movingAverage
	wait     movingAverage
	rendered uint64
}

// movingAverage averages the last AVG_COUNT samples.
type movingAverage struct {
	samples [AVG_COUNT]float64
	next    uint8
	filled  uint8
}

func (a *movingAverage) add(v float64) {
	a.samples[a.next] = v
	a.next = (a.next + 1) % AVG_COUNT
	if a.filled < AVG_COUNT {
		a.filled++
	}
}

func (a *movingAverage) value() float64 {
	if a.filled == 0 {
		return 0
	}
	sum := 0.0
	for i := uint8(0); i < a.filled; i++ {
		sum += a.samples[i]
	}
	return sum / float64(a.filled)
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update records the CPU time of one frame, in seconds.
func (m *Metrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		m.msAvg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.msAvg += m.msTimes[i]
		}
		m.msAvg /= float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	// Calculate frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
}

// Render records the renderer's timing of one presented frame, in
// seconds: the CPU time from BeginFrame to Present, and how long of it was
// spent waiting for the frame slot to retire.
func (m *Metrics) Render(cpu, fenceWait float64) {
	m.render.add(cpu * 1000)
	m.wait.add(fenceWait * 1000)
	m.rendered++
}

// RenderTime returns the averaged renderer CPU time and fence wait in
// milliseconds.
func (m *Metrics) RenderTime() (float64, float64) {
	return m.render.value(), m.wait.value()
}

// Rendered counts frames reported through Render.
func (m *Metrics) Rendered() uint64 {
	return m.rendered
}

// Skip counts a tick that was dropped because the surface was stale.
func (m *Metrics) Skip() {
	m.skipped++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

// FrameTime is the averaged frame time in milliseconds.
func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) Skipped() uint64 {
	return m.skipped
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
