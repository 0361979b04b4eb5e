// Package detector adapts an external hand-landmark and gesture classifier
// to the frame loop.
package detector

import (
	"context"
	"errors"

	"gocv.io/x/gocv"

	"github.com/ayusman/airpointer/internal/landmark"
)

// ErrUnavailable is returned when the classifier cannot be loaded. It is
// fatal at startup.
var ErrUnavailable = errors.New("classifier unavailable")

// Detector defines the interface for hand classifier implementations.
type Detector interface {
	// Load prepares the classifier. It must succeed before Detect is called.
	Load(ctx context.Context) error

	// Detect classifies one frame taken at tsMs and returns the hands found,
	// each with its top gesture label. Returns an empty slice if no hands
	// are detected. Errors are transient unless they wrap ErrUnavailable.
	Detect(ctx context.Context, frame *gocv.Mat, tsMs int64) ([]landmark.Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath is the classifier service script. Empty means search the
	// usual locations.
	ScriptPath string

	// PythonPath is the interpreter. Empty means a venv python if one is
	// found, else python3.
	PythonPath string

	// IdleTimeoutSec stops the service after this long without requests.
	// It is restarted on the next Detect. Zero disables the idle stop.
	IdleTimeoutSec int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeoutSec:  30,
	}
}
