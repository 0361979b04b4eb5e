package app

import "github.com/ayusman/airpointer/internal/interaction"

// EventType names a host event.
type EventType string

const (
	EventHover   EventType = "hover"
	EventClick   EventType = "click"
	EventGesture EventType = "gesture"
	EventScroll  EventType = "scroll"
)

// Event is one engine callback, as delivered to subscribers.
type Event struct {
	Type        EventType
	X, Y        float64
	Gesture     string
	Delta       float64
	TimestampMs int64
}

// Subscriber receives events on the frame loop goroutine. It must not block
// and must not call back into the App.
type Subscriber func(Event)

// Subscribe registers fn for every future event.
func (a *App) Subscribe(fn Subscriber) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
}

func (a *App) publish(ev Event) {
	a.mu.RLock()
	subs := a.subs
	a.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// callbacks adapts engine callbacks to subscriber events stamped with the
// timestamp of the frame being processed.
func (a *App) callbacks() interaction.Callbacks {
	return interaction.Callbacks{
		Hover: func(x, y float64, gesture string) {
			a.publish(Event{Type: EventHover, X: x, Y: y, Gesture: gesture, TimestampMs: a.tickTs()})
		},
		Click: func(x, y float64) {
			a.publish(Event{Type: EventClick, X: x, Y: y, TimestampMs: a.tickTs()})
		},
		GestureChange: func(gesture string, x, y float64) {
			a.publish(Event{Type: EventGesture, X: x, Y: y, Gesture: gesture, TimestampMs: a.tickTs()})
		},
		ScrollBy: func(delta float64) {
			a.publish(Event{Type: EventScroll, Delta: delta, TimestampMs: a.tickTs()})
		},
	}
}

func (a *App) tickTs() int64 {
	return a.tick.Load()
}
