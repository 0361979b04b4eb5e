// Package capture reads timestamped frames from a camera using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// ErrNoFrame is returned when the device is open but produced no image.
var ErrNoFrame = errors.New("no frame available")

// DeviceError reports that the camera device could not be opened. It is
// fatal at startup.
type DeviceError struct {
	DeviceID int
	Err      error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera device %d unavailable", e.DeviceID)
	}
	return fmt.Sprintf("camera device %d unavailable: %v", e.DeviceID, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Frame is one captured image. TimestampMs is strictly increasing within a
// camera session. The frame owns Mat; call Close when done with it.
type Frame struct {
	Mat         *gocv.Mat
	TimestampMs int64
}

// Close releases the frame's image.
func (f Frame) Close() {
	if f.Mat != nil {
		f.Mat.Close()
	}
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Config describes the capture device.
type Config struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
}

// stamper hands out strictly increasing millisecond timestamps measured on
// the monotonic clock from the start of a session.
type stamper struct {
	start time.Time
	last  int64
	began bool
}

func (s *stamper) reset() {
	s.start = time.Now()
	s.last = 0
	s.began = false
}

func (s *stamper) next() int64 {
	ts := time.Since(s.start).Milliseconds()
	if s.began && ts <= s.last {
		ts = s.last + 1
	}
	s.began = true
	s.last = ts
	return ts
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	config  Config
	capture *gocv.VideoCapture
	clock   stamper
	mu      sync.Mutex
	running bool
}

// NewCamera creates a Camera for the configured device. Zero fields take
// the package defaults.
func NewCamera(config Config) Camera {
	if config.Width <= 0 {
		config.Width = DefaultWidth
	}
	if config.Height <= 0 {
		config.Height = DefaultHeight
	}
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	return &cameraImpl{config: config}
}

// Open opens the camera for capturing frames. Failure is a *DeviceError.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return &DeviceError{DeviceID: c.config.DeviceID, Err: err}
	}
	if !capture.IsOpened() {
		capture.Close()
		return &DeviceError{DeviceID: c.config.DeviceID}
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.config.FPS))

	c.capture = capture
	c.running = true
	c.clock.reset()

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned frame.
func (c *cameraImpl) ReadFrame() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return Frame{}, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, ErrNoFrame
	}

	return Frame{Mat: &mat, TimestampMs: c.clock.next()}, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.FPS = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.config.FPS
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
