package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/airpointer/internal/landmark"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results. It is safe for use
// from the classification worker goroutine.
type MockDetector struct {
	mu      sync.Mutex
	hands   []landmark.Hand
	script  [][]landmark.Hand
	err     error
	loadErr error
	loaded  bool
	closed  bool
	calls   int
	stamps  []int64
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands ...landmark.Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// Script queues per-call results. While the queue is non-empty each Detect
// consumes its head instead of the SetHands value.
func (m *MockDetector) Script(results ...[]landmark.Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, results...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetLoadError sets the error that will be returned by Load.
func (m *MockDetector) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// Load marks the mock as loaded or returns the configured load error.
func (m *MockDetector) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded = true
	m.closed = false
	return nil
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat, tsMs int64) ([]landmark.Hand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.stamps = append(m.stamps, tsMs)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next, nil
	}
	return append([]landmark.Hand(nil), m.hands...), nil
}

// Close marks the mock as closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.loaded = false
	return nil
}

// Calls returns the number of Detect calls.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Timestamps returns the frame timestamps Detect was called with.
func (m *MockDetector) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.stamps...)
}

// Loaded reports whether Load succeeded and Close has not been called since.
func (m *MockDetector) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
