// Package hook runs external programs that apply engine events outside the
// browser, such as moving the desktop pointer or scrolling the focused
// window.
package hook

import "encoding/json"

// Manifest describes a hook and the event types it wants.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Wants reports whether the hook subscribed to eventType.
func (m Manifest) Wants(eventType string) bool {
	for _, e := range m.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Request is written to the hook's stdin, one per invocation.
type Request struct {
	Event     string          `json:"event"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Gesture   string          `json:"gesture,omitempty"`
	Delta     float64         `json:"delta,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Hook is a discovered hook and where it lives.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
