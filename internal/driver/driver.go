// Package driver wraps a chip.Emulator and turns drained register-write
// events plus chip clocking into a stream of i16 stereo frames.
package driver

import (
	"github.com/cat2151/ym2151play/internal/chip"
	"github.com/cat2151/ym2151play/internal/eventqueue"
)

// TailSilenceThresholdSamples is how many consecutive silent native-rate
// samples (at the empty-queue condition) mark the end of a static session.
// 100 ms at the 55,930 Hz native rate.
const TailSilenceThresholdSamples = 55930 / 10

// Frame is one i16 stereo chip sample.
type Frame struct {
	Left, Right int16
}

// pendingWrite is the single in-flight address/data pair: the address port
// has been written and delaySamplesLeft chip samples must still elapse
// before the data port write lands.
type pendingWrite struct {
	active           bool
	data             uint8
	delaySamplesLeft int
}

// Driver is the ChipDriver: the only owner of a chip.Emulator, tracking
// emission counters and tail detection alongside it.
type Driver struct {
	emu chip.Emulator

	interPortDelay int
	pending        pendingWrite

	// pendingQueue holds register writes drained due in the same batch
	// (equal sample_time) that arrived while a pair was already in
	// flight. Each is applied, in order, only once the prior pair has
	// fully cleared pending, so every pair gets its own interPortDelay
	// gap instead of having an earlier one force-completed early.
	pendingQueue []eventqueue.RegisterWrite

	samplesEmitted           uint64
	lastAddrWritten          uint8
	consecutiveSilentSamples uint32
}

// New creates a Driver around emu. The inter-port delay is read once from
// emu.InterPortDelay() so a different emulator backend can report a
// different settling time without this package changing.
func New(emu chip.Emulator) *Driver {
	return &Driver{
		emu:            emu,
		interPortDelay: emu.InterPortDelay(),
	}
}

// SamplesEmitted reports the running total of stereo frames produced.
func (d *Driver) SamplesEmitted() uint64 { return d.samplesEmitted }

// ConsecutiveSilentSamples reports the current silence run length.
func (d *Driver) ConsecutiveSilentSamples() uint32 { return d.consecutiveSilentSamples }

// LastAddrWritten reports the most recent address-port write, for
// diagnostic logging only.
func (d *Driver) LastAddrWritten() uint8 { return d.lastAddrWritten }

// TailReached reports whether the queue is empty and the silence run has
// crossed TailSilenceThresholdSamples.
func (d *Driver) TailReached(q *eventqueue.Queue) bool {
	return q.Len() == 0 && len(d.pendingQueue) == 0 && !d.pending.active &&
		d.consecutiveSilentSamples >= TailSilenceThresholdSamples
}

// Generate fills out with one native-rate stereo frame per element, draining
// due events from q and applying them through the emulator as it goes.
// Events with equal sample_time are applied in drain order (which preserves
// insertion order, per eventqueue's own guarantee), one pair at a time:
// when more than one event is due in the same drained batch, the extras
// queue and each still gets its own full interPortDelay gap, staggered
// across however many samples that takes rather than collapsed into one.
func (d *Driver) Generate(out []Frame, q *eventqueue.Queue) {
	for i := range out {
		due := q.DrainDue(uint32(d.samplesEmitted))
		d.pendingQueue = append(d.pendingQueue, due...)
		d.applyNextIfFree()

		d.tickPending()

		left, right := d.emu.ClockSample()
		out[i] = Frame{Left: left, Right: right}

		if left == 0 && right == 0 {
			d.consecutiveSilentSamples++
		} else {
			d.consecutiveSilentSamples = 0
		}

		d.samplesEmitted++
	}
}

// applyNextIfFree starts the next queued pair if no pair is currently in
// flight. A pair flushed by tickPending during the previous sample frees
// the slot for this call on the next iteration, so every pair gets the
// full interPortDelay gap between its own address and data writes, with
// same-sample_time pairs staggering one full pair at a time.
func (d *Driver) applyNextIfFree() {
	if d.pending.active || len(d.pendingQueue) == 0 {
		return
	}
	ev := d.pendingQueue[0]
	d.pendingQueue = d.pendingQueue[1:]
	d.applyEvent(ev)
}

// applyEvent writes the address port and arms the pending data write to
// land interPortDelay samples later. Callers must only invoke this when no
// pair is already pending; applyNextIfFree enforces that.
func (d *Driver) applyEvent(ev eventqueue.RegisterWrite) {
	d.emu.Write(0, ev.Addr)
	d.lastAddrWritten = ev.Addr
	d.pending = pendingWrite{active: true, data: ev.Data, delaySamplesLeft: d.interPortDelay}
}

// tickPending counts down the pending data-port write by one sample and
// fires it once the delay has elapsed.
func (d *Driver) tickPending() {
	if !d.pending.active {
		return
	}
	if d.pending.delaySamplesLeft > 0 {
		d.pending.delaySamplesLeft--
		return
	}
	d.flushPending()
}

func (d *Driver) flushPending() {
	d.emu.Write(1, d.pending.data)
	d.pending = pendingWrite{}
}
