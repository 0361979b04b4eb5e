package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back a fixed sequence of frames. Timestamps advance by
// one frame interval per read so tests are deterministic.
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	fps     int
	seq     int64
	openErr error
	oneErr  error
	opens   int
	mu      sync.Mutex
	running bool
}

// NewMockCamera creates a MockCamera over frames. With loop set playback
// restarts after the last frame instead of failing.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

// FailOpen makes the next Open calls return a *DeviceError wrapping err.
// A nil err restores normal behaviour.
func (c *MockCamera) FailOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// FailNextOpen makes only the next Open call fail with err.
func (c *MockCamera) FailNextOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.oneErr = err
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if err := c.oneErr; err != nil {
		c.oneErr = nil
		return &DeviceError{DeviceID: -1, Err: err}
	}
	if c.openErr != nil {
		return &DeviceError{DeviceID: -1, Err: c.openErr}
	}
	c.running = true
	c.index = 0
	c.seq = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return Frame{}, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return Frame{}, ErrNoFrame
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return Frame{}, fmt.Errorf("playback finished after %d frames: %w", len(c.frames), ErrNoFrame)
		}
		c.index = 0
	}

	// Clone so callers can close their copy.
	mat := c.frames[c.index].Clone()
	c.index++

	ts := c.seq * int64(1000/c.fps)
	c.seq++

	return Frame{Mat: &mat, TimestampMs: ts}, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Opens returns how many times Open was called.
func (c *MockCamera) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}
