package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// FrameBuffer holds the latest rendered overlay frame as JPEG. It is the
// frame loop's sink and the stream handler's source.
type FrameBuffer struct {
	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	changed chan struct{}
	viewers atomic.Int32

	interval  time.Duration
	published time.Time
}

// NewFrameBuffer creates an empty FrameBuffer that encodes at most maxFPS
// frames per second. Non-positive maxFPS means no limit.
func NewFrameBuffer(maxFPS int) *FrameBuffer {
	b := &FrameBuffer{changed: make(chan struct{})}
	if maxFPS > 0 {
		b.interval = time.Second / time.Duration(maxFPS)
	}
	return b
}

// PublishFrame encodes frame and makes it the latest. Encoding is skipped
// while nobody is watching and when the rate limit has not elapsed.
func (b *FrameBuffer) PublishFrame(frame *gocv.Mat) {
	if b.viewers.Load() == 0 || frame == nil || frame.Empty() {
		return
	}
	if !b.due(time.Now()) {
		return
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		log.Debug().Err(err).Msg("encoding overlay frame")
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()
	b.Set(data)
}

func (b *FrameBuffer) due(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.interval > 0 && now.Sub(b.published) < b.interval {
		return false
	}
	b.published = now
	return true
}

// Set stores an already encoded frame and wakes waiting streams.
func (b *FrameBuffer) Set(jpeg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jpeg = jpeg
	b.seq++
	close(b.changed)
	b.changed = make(chan struct{})
}

// Latest returns the newest frame and its sequence number (0 when empty).
func (b *FrameBuffer) Latest() ([]byte, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jpeg, b.seq
}

// Next blocks until a frame newer than after is available or ctx is done.
func (b *FrameBuffer) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		b.mu.Lock()
		if b.seq > after {
			jpeg, seq := b.jpeg, b.seq
			b.mu.Unlock()
			return jpeg, seq, nil
		}
		changed := b.changed
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-changed:
		}
	}
}

// StreamHandler serves the overlay as MJPEG.
type StreamHandler struct {
	frames *FrameBuffer
}

// NewStreamHandler creates a new StreamHandler over frames.
func NewStreamHandler(frames *FrameBuffer) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.frames.viewers.Add(1)
	defer h.frames.viewers.Add(-1)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	var seq uint64
	for {
		jpeg, next, err := h.frames.Next(r.Context(), seq)
		if err != nil {
			return
		}
		seq = next

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
			return
		}
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
