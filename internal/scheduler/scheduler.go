// Package scheduler exposes the public scheduling surface that command
// handlers use to turn client requests into queued register writes.
package scheduler

import (
	"github.com/cat2151/ym2151play/internal/eventqueue"
	"github.com/cat2151/ym2151play/internal/timebase"
)

// Scheduler converts wall-clock offsets to chip sample targets and enqueues
// the resulting register writes.
type Scheduler struct {
	tb    *timebase.TimeBase
	queue *eventqueue.Queue
}

// New creates a Scheduler over the given TimeBase and EventQueue. Both are
// shared with the generator; the Scheduler itself holds no additional
// locking beyond what EventQueue already provides.
func New(tb *timebase.TimeBase, queue *eventqueue.Queue) *Scheduler {
	return &Scheduler{tb: tb, queue: queue}
}

// Scheduled reports the sample_time an event was queued at and the sample
// it is expected to be applied at. The scheduler does not see the driver's
// samples_emitted counter, so ExpectedActual always equals ScheduledSample.
type Scheduled struct {
	ScheduledSample uint32
	ExpectedActual  uint32
}

// ScheduleAt queues addr/data at absoluteSec, measured from session start.
func (s *Scheduler) ScheduleAt(absoluteSec float64, addr, data uint8) (Scheduled, error) {
	return s.enqueue(absoluteSec, addr, data)
}

// ScheduleRelative queues addr/data offsetSec from the current audio
// elapsed time, read fresh at call time.
func (s *Scheduler) ScheduleRelative(offsetSec float64, addr, data uint8) (Scheduled, error) {
	return s.enqueue(s.tb.NowElapsedSec()+offsetSec, addr, data)
}

// ScheduleRelativeWithSafety queues addr/data at
// baseAudioElapsedSec + futureOffsetSec + eventOffsetSec. baseAudioElapsedSec
// is supplied by the caller (typically read once before a batch) rather
// than sampled again per call, so a whole batch shares one frozen base time
// instead of drifting by the wall-clock cost of the loop that issues it.
func (s *Scheduler) ScheduleRelativeWithSafety(baseAudioElapsedSec, futureOffsetSec, eventOffsetSec float64, addr, data uint8) (Scheduled, error) {
	return s.enqueue(baseAudioElapsedSec+futureOffsetSec+eventOffsetSec, addr, data)
}

func (s *Scheduler) enqueue(absoluteSec float64, addr, data uint8) (Scheduled, error) {
	sampleTime := timebase.SecToSamples(absoluteSec)
	ev := eventqueue.RegisterWrite{SampleTime: sampleTime, Addr: addr, Data: data}
	if err := s.queue.Push(ev); err != nil {
		return Scheduled{}, err
	}
	return Scheduled{ScheduledSample: sampleTime, ExpectedActual: sampleTime}, nil
}

// Clear empties the event queue.
func (s *Scheduler) Clear() {
	s.queue.Clear()
}

// QueueDepth reports the number of events not yet applied.
func (s *Scheduler) QueueDepth() int {
	return s.queue.Len()
}

// AudioElapsedSec forwards to the TimeBase.
func (s *Scheduler) AudioElapsedSec() float64 {
	return s.tb.NowElapsedSec()
}
