// Package generator runs the audio-generation loop: the dedicated,
// elevated-priority worker that pulls due events, drives the chip, and
// feeds resampled frames to the sample bridge.
package generator

import (
	"runtime"
	"sync/atomic"

	"github.com/cat2151/ym2151play/internal/bridge"
	"github.com/cat2151/ym2151play/internal/driver"
	"github.com/cat2151/ym2151play/internal/eventqueue"
	"github.com/cat2151/ym2151play/internal/resample"
)

// NativeBufferFrames sizes the native-rate scratch buffer produced each
// iteration, roughly one host callback period at the chip's native rate.
const NativeBufferFrames = 1024

// ShouldContinueFunc reports whether the loop should keep running.
// tailReached mirrors ChipDriver's own tail detection. An interactive
// session always returns true; a static session returns false once
// tailReached is true.
type ShouldContinueFunc func(tailReached bool) bool

// FatalFunc is invoked once if the resampler reports an unrecoverable
// error. The loop exits immediately afterward.
type FatalFunc func(err error)

// Generator drives one session's generation loop.
type Generator struct {
	drv       *driver.Driver
	queue     *eventqueue.Queue
	resampler resample.Resampler
	out       *bridge.Bridge
	shouldRun ShouldContinueFunc
	onFatal   FatalFunc

	stopRequested atomic.Bool
	nativeBuf     []driver.Frame
}

// New constructs a Generator. onFatal may be nil if the caller doesn't
// care to observe resampler failures beyond the loop stopping.
func New(drv *driver.Driver, queue *eventqueue.Queue, resampler resample.Resampler, out *bridge.Bridge, shouldRun ShouldContinueFunc, onFatal FatalFunc) *Generator {
	return &Generator{
		drv:       drv,
		queue:     queue,
		resampler: resampler,
		out:       out,
		shouldRun: shouldRun,
		onFatal:   onFatal,
		nativeBuf: make([]driver.Frame, NativeBufferFrames),
	}
}

// RequestStop asks the loop to exit at the top of its next iteration. Safe
// to call from any goroutine.
func (g *Generator) RequestStop() {
	g.stopRequested.Store(true)
}

// Run executes the loop until stopped, until the session's continuation
// predicate says to end, or until a fatal resampler error occurs. Intended
// to be called on its own goroutine, typically one wrapped by a
// PriorityGuard.
func (g *Generator) Run() {
	for {
		if g.stopRequested.Load() {
			return
		}
		if !g.shouldRun(g.drv.TailReached(g.queue)) {
			return
		}

		g.drv.Generate(g.nativeBuf, g.queue)

		native := make([]resample.Frame, len(g.nativeBuf))
		for i, f := range g.nativeBuf {
			native[i] = resample.Frame{Left: f.Left, Right: f.Right}
		}

		resampled, err := g.resampler.Resample(native)
		if err != nil {
			if g.onFatal != nil {
				g.onFatal(err)
			}
			return
		}

		frames := make([]bridge.Frame, len(resampled))
		for i, f := range resampled {
			frames[i] = bridge.Frame{Left: toUnitFloat(f.Left), Right: toUnitFloat(f.Right)}
		}

		// A dropped push means the bridge's single slot is still full;
		// the sink hasn't caught up yet. There is nothing useful to do
		// but move on to the next iteration and try again with fresh
		// audio rather than retrying the same stale chunk.
		g.out.Push(frames)

		runtime.Gosched()
	}
}

// toUnitFloat converts an i16 sample to f32 in [-1, 1].
func toUnitFloat(sample int16) float32 {
	v := float32(sample) / 32768
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
