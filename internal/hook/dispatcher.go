package hook

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/airpointer/internal/app"
)

const queueSize = 64

// Dispatcher feeds engine events to the hooks that want them. It is an
// app.Subscriber: Observe only queues, a single worker runs the hooks in
// order, and events are dropped when the queue is full.
type Dispatcher struct {
	manager  *Manager
	executor *Executor

	queue  chan app.Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher starts the worker.
func NewDispatcher(manager *Manager, executor *Executor) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		manager:  manager,
		executor: executor,
		queue:    make(chan app.Event, queueSize),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go d.run(ctx)
	return d
}

// Observe queues ev for the hooks subscribed to its type.
func (d *Dispatcher) Observe(ev app.Event) {
	if len(d.manager.For(string(ev.Type))) == 0 {
		return
	}
	select {
	case d.queue <- ev:
	default:
		log.Debug().Str("type", string(ev.Type)).Msg("hook queue full, dropping event")
	}
}

// Close stops the worker, abandoning queued events and killing a running
// hook.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.cancel()
		<-d.done
	})
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev app.Event) {
	for _, h := range d.manager.For(string(ev.Type)) {
		req := &Request{
			Event:     string(ev.Type),
			X:         ev.X,
			Y:         ev.Y,
			Gesture:   ev.Gesture,
			Delta:     ev.Delta,
			Timestamp: ev.TimestampMs,
		}
		if _, err := d.executor.Execute(ctx, h, req); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("hook", h.Manifest.Name).Str("event", req.Event).Msg("hook failed")
		}
	}
}
