// Package session owns the lifecycle of one play session: constructing the
// pipeline (TimeBase, EventQueue, ChipDriver, Resampler, generator), driving
// its state machine, and tearing it down on stop.
package session

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cat2151/ym2151play/internal/bridge"
	"github.com/cat2151/ym2151play/internal/chip"
	"github.com/cat2151/ym2151play/internal/driver"
	"github.com/cat2151/ym2151play/internal/eventqueue"
	"github.com/cat2151/ym2151play/internal/generator"
	"github.com/cat2151/ym2151play/internal/logging"
	"github.com/cat2151/ym2151play/internal/recovery"
	"github.com/cat2151/ym2151play/internal/resample"
	"github.com/cat2151/ym2151play/internal/scheduler"
	"github.com/cat2151/ym2151play/internal/timebase"
)

// State is the session's tagged lifecycle state.
type State int

const (
	Stopped State = iota
	Playing
	Interactive
)

func (s State) String() string {
	switch s {
	case Playing:
		return "Playing"
	case Interactive:
		return "Interactive"
	default:
		return "Stopped"
	}
}

// ErrWrongState is returned when a transition or operation is attempted
// from a state that does not support it.
var ErrWrongState = errors.New("session: operation not valid in current state")

// EmulatorFactory builds a fresh chip.Emulator for a new session. A pure-Go
// backend can simply return a new opm.Chip; an FFI-backed one would open
// its native handle here.
type EmulatorFactory func() chip.Emulator

// Controller is the SessionController: one instance per server process,
// reused across sessions.
type Controller struct {
	mu    sync.Mutex
	state State

	newEmulator EmulatorFactory
	sinkRate    uint32

	out *bridge.Bridge

	tbPtr atomic.Pointer[timebase.TimeBase]

	queue *eventqueue.Queue
	sched *scheduler.Scheduler
	gen   *generator.Generator
	wg    sync.WaitGroup
}

// New creates a Controller in the Stopped state. The bridge is shared
// across every session the controller runs, so the sink can hold one
// stable reference for the life of the process.
func New(newEmulator EmulatorFactory, sinkRate uint32) *Controller {
	return &Controller{
		newEmulator: newEmulator,
		sinkRate:    sinkRate,
		out:         bridge.New(),
		state:       Stopped,
	}
}

// Bridge returns the sample bridge the sink pulls from. Stable across the
// controller's whole lifetime regardless of session state.
func (c *Controller) Bridge() *bridge.Bridge {
	return c.out
}

// State reports the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetServerTime returns elapsed audio time without acquiring the event
// queue's mutex: it reads the session's TimeBase through a lock-free atomic
// pointer, exactly as TimeBase.NowElapsedSec is itself lock-free.
func (c *Controller) GetServerTime() float64 {
	tb := c.tbPtr.Load()
	if tb == nil {
		return 0
	}
	return tb.NowElapsedSec()
}

// Scheduler returns the active session's Scheduler, or nil if Stopped.
func (c *Controller) Scheduler() *scheduler.Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sched
}

// StartStatic begins a file-backed playback session: the given events are
// preloaded into the queue and the generator runs until the queue is empty
// and tail silence is reached, then the controller returns to Stopped on
// its own.
func (c *Controller) StartStatic(events []eventqueue.RegisterWrite) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Stopped {
		return ErrWrongState
	}

	if err := c.buildPipelineLocked(); err != nil {
		return err
	}
	for _, ev := range events {
		if err := c.queue.Push(ev); err != nil {
			c.teardownLocked()
			return err
		}
	}

	c.gen = generator.New(c.driverFor(), c.queue, c.resamplerFor(), c.out,
		func(tailReached bool) bool { return !tailReached },
		c.onGeneratorFatal,
	)
	c.spawnGeneratorLocked()
	c.state = Playing
	return nil
}

// StartInteractive begins an interactive session: the generator never
// exits on tail, only on explicit Stop.
func (c *Controller) StartInteractive() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Stopped {
		return ErrWrongState
	}

	if err := c.buildPipelineLocked(); err != nil {
		return err
	}

	c.gen = generator.New(c.driverFor(), c.queue, c.resamplerFor(), c.out,
		func(bool) bool { return true },
		c.onGeneratorFatal,
	)
	c.spawnGeneratorLocked()
	c.state = Interactive
	return nil
}

// Stop ends the current session, if any. Idempotent: Stop while already
// Stopped is a no-op. The goroutine itself performs teardown once Run
// returns, so Stop only needs to signal and wait.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.mu.Unlock()

	if gen != nil {
		gen.RequestStop()
	}
	c.wg.Wait()
	return nil
}

// ClearSchedule forwards to the active session's Scheduler. Only valid in
// Interactive.
func (c *Controller) ClearSchedule() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Interactive {
		return ErrWrongState
	}
	c.sched.Clear()
	return nil
}

// buildPipelineLocked constructs a fresh TimeBase/EventQueue/Scheduler for
// a new session. Caller must hold c.mu.
func (c *Controller) buildPipelineLocked() error {
	tb := timebase.New()
	c.tbPtr.Store(tb)
	c.queue = eventqueue.New()
	c.sched = scheduler.New(tb, c.queue)
	return nil
}

func (c *Controller) driverFor() *driver.Driver {
	return driver.New(c.newEmulator())
}

func (c *Controller) resamplerFor() resample.Resampler {
	return resample.NewLinear(timebase.ChipSampleRate, c.sinkRate)
}

// spawnGeneratorLocked launches the generator goroutine and marks the
// session's TimeBase started at the moment the goroutine begins running,
// mirroring "session_start recorded when the sink begins pulling" closely
// enough for a pure software sink: there is no separate device-open delay
// to wait out.
func (c *Controller) spawnGeneratorLocked() {
	tb := c.tbPtr.Load()
	gen := c.gen
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer recovery.HandlePanicFunc(func() {
			logging.Error("generator goroutine panicked, session stopped")
		})

		guard := generator.AcquirePriorityGuard()
		defer guard.Release()

		tb.MarkSessionStart()
		gen.Run()
		c.onGeneratorExit()
	}()
}

// onGeneratorExit runs on the generator goroutine once Run returns, for any
// reason: explicit Stop, static-session tail, or a fatal resampler error.
// It tears the pipeline down and returns the controller to Stopped.
func (c *Controller) onGeneratorExit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// onGeneratorFatal logs a fatal resampler error. Teardown itself happens
// uniformly in onGeneratorExit once Run returns.
func (c *Controller) onGeneratorFatal(err error) {
	logging.Error("generator: fatal resampler error, session will stop", "err", err)
}

// teardownLocked clears pipeline references. Caller must hold c.mu.
func (c *Controller) teardownLocked() {
	c.gen = nil
	c.sched = nil
	c.queue = nil
	c.tbPtr.Store(nil)
	c.state = Stopped
}
