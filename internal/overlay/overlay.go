// Package overlay draws hand skeletons and interaction cursors onto camera
// frames. It holds no interaction state; everything it draws comes from the
// landmarks and the engine snapshot passed to Draw.
package overlay

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/airpointer/internal/interaction"
	"github.com/ayusman/airpointer/internal/landmark"
)

// Config selects what is drawn.
type Config struct {
	// ShowDwellRing draws a progress arc around the pointer cursor.
	ShowDwellRing bool
	// ShowScrollCursor draws a marker at the wrist of scrolling hands.
	ShowScrollCursor bool
	// Mirror flips the frame horizontally so it reads like a mirror.
	Mirror bool
	// ShowLabels prints each hand's gesture label next to its wrist.
	ShowLabels bool
}

// DefaultConfig returns the overlay defaults.
func DefaultConfig() Config {
	return Config{
		ShowDwellRing:    true,
		ShowScrollCursor: true,
		Mirror:           true,
		ShowLabels:       true,
	}
}

var (
	boneColor      = color.RGBA{R: 0, G: 200, B: 255, A: 0}
	jointColor     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	cursorColor    = color.RGBA{R: 0, G: 255, B: 120, A: 0}
	secondaryColor = color.RGBA{R: 160, G: 160, B: 160, A: 0}
	ringColor      = color.RGBA{R: 255, G: 180, B: 0, A: 0}
	scrollColor    = color.RGBA{R: 255, G: 80, B: 200, A: 0}
)

const (
	boneThickness = 2
	jointRadius   = 3
	cursorRadius  = 8
	ringRadius    = 18
	ringThickness = 3
)

// Renderer draws overlays. It is safe to share between goroutines as long as
// each call gets its own Mat.
type Renderer struct {
	config Config
}

// NewRenderer creates a Renderer.
func NewRenderer(config Config) *Renderer {
	return &Renderer{config: config}
}

// Config returns the renderer configuration.
func (r *Renderer) Config() Config {
	return r.config
}

// Draw renders hands and the snapshot's cursors onto frame in place.
func (r *Renderer) Draw(frame *gocv.Mat, hands []landmark.Hand, snap interaction.Snapshot) {
	if frame == nil || frame.Empty() {
		return
	}
	if r.config.Mirror {
		gocv.Flip(*frame, frame, 1)
	}

	size := image.Pt(frame.Cols(), frame.Rows())

	for i := range hands {
		r.drawSkeleton(frame, &hands[i], size)
	}

	for _, h := range snap.Hands {
		switch h.Mode {
		case interaction.ModePointer:
			r.drawPointer(frame, h, size)
		case interaction.ModeScroll:
			if r.config.ShowScrollCursor {
				r.drawScroll(frame, h, size)
			}
		}
		if r.config.ShowLabels {
			at := r.toPixel(h.Wrist.X, h.Wrist.Y, size).Add(image.Pt(10, 20))
			gocv.PutText(frame, h.Gesture, at, gocv.FontHersheySimplex, 0.5, jointColor, 1)
		}
	}
}

func (r *Renderer) drawSkeleton(frame *gocv.Mat, hand *landmark.Hand, size image.Point) {
	for _, c := range landmark.Connections {
		a, b := hand.Points[c[0]], hand.Points[c[1]]
		gocv.Line(frame, r.toPixel(a.X, a.Y, size), r.toPixel(b.X, b.Y, size), boneColor, boneThickness)
	}
	for _, p := range hand.Points {
		gocv.Circle(frame, r.toPixel(p.X, p.Y, size), jointRadius, jointColor, -1)
	}
}

func (r *Renderer) drawPointer(frame *gocv.Mat, h interaction.HandState, size image.Point) {
	center := r.toPixel(h.Cursor.X, h.Cursor.Y, size)

	c := cursorColor
	if !h.Primary {
		c = secondaryColor
	}
	gocv.Circle(frame, center, cursorRadius, c, -1)

	if r.config.ShowDwellRing && h.Primary && h.DwellProgress > 0 {
		sweep := 360 * math.Min(h.DwellProgress, 1)
		gocv.Ellipse(frame, center, image.Pt(ringRadius, ringRadius), 0, -90, -90+sweep, ringColor, ringThickness)
	}
}

func (r *Renderer) drawScroll(frame *gocv.Mat, h interaction.HandState, size image.Point) {
	center := r.toPixel(h.Wrist.X, h.Wrist.Y, size)
	gocv.Circle(frame, center, cursorRadius, scrollColor, 2)
	up := center.Add(image.Pt(0, -2*cursorRadius))
	down := center.Add(image.Pt(0, 2*cursorRadius))
	gocv.ArrowedLine(frame, center, up, scrollColor, 2)
	gocv.ArrowedLine(frame, center, down, scrollColor, 2)
}

// toPixel maps normalized coordinates to pixel coordinates, mirroring X
// when the frame was flipped.
func (r *Renderer) toPixel(x, y float64, size image.Point) image.Point {
	if r.config.Mirror {
		x = 1 - x
	}
	return image.Pt(int(math.Round(x*float64(size.X))), int(math.Round(y*float64(size.Y))))
}
