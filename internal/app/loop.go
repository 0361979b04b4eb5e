package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/airpointer/internal/capture"
	"github.com/ayusman/airpointer/internal/detector"
	"github.com/ayusman/airpointer/internal/interaction"
	"github.com/ayusman/airpointer/internal/landmark"
)

// result is one completed classification.
type result struct {
	tsMs  int64
	hands []landmark.Hand
}

// offerFrame puts f in the single pending slot, closing whatever frame it
// supersedes. Only the loop goroutine sends on slot.
func offerFrame(slot chan capture.Frame, f capture.Frame) {
	for {
		select {
		case slot <- f:
			return
		default:
		}
		select {
		case old := <-slot:
			old.Close()
		default:
		}
	}
}

// offerResult keeps only the newest completed result.
func offerResult(slot chan result, r result) {
	for {
		select {
		case slot <- r:
			return
		default:
		}
		select {
		case <-slot:
		default:
		}
	}
}

// classify runs the classifier on pending frames until ctx is done.
// Failures skip the frame; the engine never sees them.
func (a *App) classify(ctx context.Context, pending <-chan capture.Frame, results chan result) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-pending:
			hands, err := a.detector.Detect(ctx, f.Mat, f.TimestampMs)
			f.Close()
			if err != nil {
				switch {
				case ctx.Err() != nil:
					return
				case errors.Is(err, detector.ErrUnavailable):
					log.Warn().Err(err).Int64("ts", f.TimestampMs).Msg("classifier unavailable, skipping frame")
				default:
					log.Debug().Err(err).Int64("ts", f.TimestampMs).Msg("classification failed, skipping frame")
				}
				continue
			}
			offerResult(results, result{tsMs: f.TimestampMs, hands: hands})
		}
	}
}

// loopState is the frame loop's private bookkeeping.
type loopState struct {
	active     bool
	lastMotion time.Time
	lastHands  time.Time
	hands      []landmark.Hand
}

// run is the frame loop. Per tick it reads a frame, hands a copy to the
// classification worker, and renders the newest known state onto it.
// Completed results are applied through the engine as soon as they arrive.
//
// With no motion and no hands for IdleTimeout the tick rate drops to
// IdleFPS and only frames with motion are classified; motion or hands
// restore ActiveFPS.
func (a *App) run(ctx context.Context, engine *interaction.Engine, done chan struct{}) {
	defer close(done)

	pending := make(chan capture.Frame, 1)
	results := make(chan result, 1)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		a.classify(ctx, pending, results)
	}()
	defer func() {
		<-workerDone
		select {
		case f := <-pending:
			f.Close()
		default:
		}
	}()

	now := time.Now()
	st := loopState{active: true, lastMotion: now, lastHands: now}

	ticker := time.NewTicker(time.Second / time.Duration(a.config.ActiveFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case r := <-results:
			a.apply(engine, &st, r)

		case <-ticker.C:
			frame, err := a.camera.ReadFrame()
			if err != nil {
				log.Debug().Err(err).Msg("reading frame")
				continue
			}

			moved, _ := a.motion.Detect(frame.Mat)
			if moved {
				st.lastMotion = time.Now()
			}
			a.updateRate(&st, ticker)

			if st.active || moved {
				clone := frame.Mat.Clone()
				offerFrame(pending, capture.Frame{Mat: &clone, TimestampMs: frame.TimestampMs})
			}

			a.render(engine, &st, frame)
			frame.Close()
		}
	}
}

func (a *App) apply(engine *interaction.Engine, st *loopState, r result) {
	a.tick.Store(r.tsMs)
	if _, ok := engine.Process(r.tsMs, r.hands); !ok {
		log.Debug().Int64("ts", r.tsMs).Msg("discarding stale result")
		return
	}
	st.hands = r.hands
	if len(r.hands) > 0 {
		st.lastHands = time.Now()
	}
}

// updateRate switches between the idle and active tick rates.
func (a *App) updateRate(st *loopState, ticker *time.Ticker) {
	quiet := time.Since(st.lastMotion) > a.config.IdleTimeout &&
		time.Since(st.lastHands) > a.config.IdleTimeout

	switch {
	case st.active && quiet:
		st.active = false
		st.hands = nil
		a.camera.SetFPS(a.config.IdleFPS)
		ticker.Reset(time.Second / time.Duration(a.config.IdleFPS))
		log.Debug().Int("fps", a.config.IdleFPS).Msg("switched to idle mode")
	case !st.active && !quiet:
		st.active = true
		a.camera.SetFPS(a.config.ActiveFPS)
		ticker.Reset(time.Second / time.Duration(a.config.ActiveFPS))
		log.Debug().Int("fps", a.config.ActiveFPS).Msg("switched to active mode")
	}
}

func (a *App) render(engine *interaction.Engine, st *loopState, frame capture.Frame) {
	sink := a.frameSink()
	if sink == nil {
		return
	}
	hands, snap := overlayState(engine, st)
	a.overlayRenderer().Draw(frame.Mat, hands, snap)
	sink.PublishFrame(frame.Mat)
}

// overlayState is what the overlay shows. While idle the last applied tick
// is stale, so nothing is drawn.
func overlayState(engine *interaction.Engine, st *loopState) ([]landmark.Hand, interaction.Snapshot) {
	if !st.active {
		return nil, interaction.Snapshot{}
	}
	return st.hands, engine.Snapshot()
}
