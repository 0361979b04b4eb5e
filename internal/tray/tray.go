// Package tray provides the system tray menu: an enable toggle, the last
// engine event, and shortcuts to the control page and quit.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/airpointer/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool) error
	onSettings func()
	onQuit     func()
	enabled    bool
	last       string
	mu         sync.RWMutex

	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a new Tray showing the given initial enabled state.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback run when the user flips the toggle. If it
// returns an error the toggle stays where it was.
func (t *Tray) OnToggle(fn func(enabled bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback for the settings menu item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for the quit menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("AirPointer")
	systray.SetTooltip("AirPointer hand gesture pointer")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle the camera and gesture engine")
	systray.AddSeparator()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last engine event")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Control Page...", "Open the control page in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit AirPointer")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.enabled
	callback := t.onToggle
	t.mu.RUnlock()

	if callback != nil {
		if err := callback(want); err != nil {
			log.Warn().Err(err).Bool("enabled", want).Msg("tray toggle failed")
			return
		}
	}
	t.SetEnabled(want)
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// SetEnabled updates the toggle without running the callback, for changes
// made elsewhere (the control page).
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the state the toggle shows.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Observe is an app.Subscriber. Clicks, gesture changes and scrolls update
// the last event line; hovers are too frequent to show.
func (t *Tray) Observe(ev app.Event) {
	label := eventLabel(ev)
	if label == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = label
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(label))
	}
}

// Last returns the last event line, empty if none.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastTitle(label string) string {
	if label == "" {
		return "Last: none"
	}
	return "Last: " + label
}

func eventLabel(ev app.Event) string {
	switch ev.Type {
	case app.EventClick:
		return fmt.Sprintf("click at %.2f, %.2f", ev.X, ev.Y)
	case app.EventGesture:
		if ev.Gesture == "" {
			return ""
		}
		return ev.Gesture
	case app.EventScroll:
		if ev.Delta > 0 {
			return fmt.Sprintf("scroll down %.0f", ev.Delta)
		}
		return fmt.Sprintf("scroll up %.0f", -ev.Delta)
	default:
		return ""
	}
}
