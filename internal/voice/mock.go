package voice

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MockDevice implements Device for testing. Chunks are pushed by the test
// through Emit; Stop delivers the configured Tail first.
type MockDevice struct {
	mu         sync.Mutex
	ProbeErr   error
	AcquireErr error
	StartErr   error
	Tail       []byte

	acquires int
	starts   int
	releases int
	held     bool
	flush    time.Duration
	onChunk  func([]byte)
	onError  func(error)
	active   *mockCapture
}

// NewMockDevice creates a working MockDevice.
func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (m *MockDevice) Probe() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ProbeErr
}

func (m *MockDevice) Acquire(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	if m.AcquireErr != nil {
		return m.AcquireErr
	}
	m.held = true
	return nil
}

func (m *MockDevice) Start(ctx context.Context, flushEvery time.Duration, onChunk func([]byte), onError func(error)) (Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	m.starts++
	m.flush = flushEvery
	m.onChunk = onChunk
	m.onError = onError
	m.active = &mockCapture{dev: m}
	return m.active, nil
}

func (m *MockDevice) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	m.held = false
	return nil
}

// Emit delivers a chunk to the running capture.
func (m *MockDevice) Emit(b []byte) {
	m.mu.Lock()
	fn := m.onChunk
	m.mu.Unlock()
	if fn != nil {
		fn(b)
	}
}

// Fail reports a device error to the running capture.
func (m *MockDevice) Fail(err error) {
	m.mu.Lock()
	fn := m.onError
	m.onChunk, m.onError, m.active = nil, nil, nil
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Starts returns how many captures were started.
func (m *MockDevice) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Releases returns how many times the device was released.
func (m *MockDevice) Releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

// Held reports whether the device is acquired and not released.
func (m *MockDevice) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// FlushInterval returns the flush interval of the last Start.
func (m *MockDevice) FlushInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flush
}

// Capturing reports whether a capture is running.
func (m *MockDevice) Capturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && !m.active.stopped
}

type mockCapture struct {
	dev     *MockDevice
	stopped bool
}

func (c *mockCapture) Stop() error {
	m := c.dev
	m.mu.Lock()
	if c.stopped {
		m.mu.Unlock()
		return errors.New("mock capture: already stopped")
	}
	c.stopped = true
	fn, tail := m.onChunk, m.Tail
	m.onChunk, m.onError = nil, nil
	m.mu.Unlock()
	if fn != nil && len(tail) > 0 {
		fn(tail)
	}
	return nil
}

// ManualClock is a Clock whose time only moves through Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

// NewManualClock creates a ManualClock at offset zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Duration
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// AfterFunc schedules f after d of manual time.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs, in order, every callback that came
// due. Callbacks run on the caller's goroutine.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the durations of timers that have neither fired nor been
// stopped.
func (c *ManualClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}
