package dispatcher

import (
	"testing"
	"time"

	"github.com/cat2151/ym2151play/internal/chip"
	"github.com/cat2151/ym2151play/internal/ipc"
	"github.com/cat2151/ym2151play/internal/session"
)

type silentEmulator struct{}

func (silentEmulator) Reset()                     {}
func (silentEmulator) Write(port, value uint8)    {}
func (silentEmulator) ClockSample() (int16, int16) { return 0, 0 }
func (silentEmulator) InterPortDelay() int        { return 2 }

func newTestDispatcher() *Dispatcher {
	controller := session.New(func() chip.Emulator { return silentEmulator{} }, 48000)
	return New(controller)
}

func waitForState(t *testing.T, d *Dispatcher, want session.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if d.controller.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state did not reach %v within deadline, got %v", want, d.controller.State())
}

func TestHandleGetServerTimeBeforeAnySession(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{Command: ipc.CommandGetServerTime})
	if resp.Status != ipc.StatusServerTime || resp.TimeSec != 0 {
		t.Errorf("handle(get_server_time) = %+v, want server_time 0", resp)
	}
}

func TestHandleGetInteractiveModeStateWhenStopped(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{Command: ipc.CommandGetInteractiveModeState})
	if resp.Status != ipc.StatusInteractiveModeState || resp.IsInteractive {
		t.Errorf("handle(get_interactive_mode_state) = %+v, want is_interactive=false", resp)
	}
}

func TestHandleStartInteractiveThenStop(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{Command: ipc.CommandStartInteractive})
	if resp.Status != ipc.StatusOk {
		t.Fatalf("handle(start_interactive) = %+v, want ok", resp)
	}
	waitForState(t, d, session.Interactive)

	resp = d.handle(ipc.Request{Command: ipc.CommandStop})
	if resp.Status != ipc.StatusOk {
		t.Fatalf("handle(stop) = %+v, want ok", resp)
	}
	waitForState(t, d, session.Stopped)
}

func TestHandleClearScheduleOutsideInteractiveReturnsError(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{Command: ipc.CommandClearSchedule})
	if resp.Status != ipc.StatusError || resp.Message != "Not in interactive mode" {
		t.Errorf("handle(clear_schedule) = %+v, want error 'Not in interactive mode'", resp)
	}
}

func TestHandlePlayJsonInInteractiveOutsideInteractiveReturnsError(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{
		Command: ipc.CommandPlayJsonInInteractive,
		Data:    []byte(`{"events":[]}`),
	})
	if resp.Status != ipc.StatusError || resp.Message != "Not in interactive mode" {
		t.Errorf("handle(play_json_in_interactive) = %+v, want error 'Not in interactive mode'", resp)
	}
}

func TestHandlePlayJsonInInteractiveSchedulesEvents(t *testing.T) {
	d := newTestDispatcher()

	if resp := d.handle(ipc.Request{Command: ipc.CommandStartInteractive}); resp.Status != ipc.StatusOk {
		t.Fatalf("handle(start_interactive) = %+v, want ok", resp)
	}
	waitForState(t, d, session.Interactive)

	resp := d.handle(ipc.Request{
		Command: ipc.CommandPlayJsonInInteractive,
		Data:    []byte(`{"events":[{"time":0.05,"addr":"0x08","data":"0x78"}]}`),
	})
	if resp.Status != ipc.StatusOk {
		t.Fatalf("handle(play_json_in_interactive) = %+v, want ok", resp)
	}
	if depth := d.controller.Scheduler().QueueDepth(); depth != 1 {
		t.Errorf("QueueDepth() = %d, want 1", depth)
	}

	d.handle(ipc.Request{Command: ipc.CommandStop})
}

func TestHandlePlayJsonRejectsMalformedEventLog(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{
		Command: ipc.CommandPlayJson,
		Data:    []byte(`{"events":[{"time":0,"addr":"not-hex","data":"0x00"}]}`),
	})
	if resp.Status != ipc.StatusError {
		t.Errorf("handle(play_json) with malformed log = %+v, want error", resp)
	}
}

func TestHandlePlayJsonStartsPlayingAndSelfStops(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{
		Command: ipc.CommandPlayJson,
		Data:    []byte(`{"events":[]}`),
	})
	if resp.Status != ipc.StatusOk {
		t.Fatalf("handle(play_json) = %+v, want ok", resp)
	}
	waitForState(t, d, session.Stopped)
}

func TestHandleShutdownSetsShutdownRequested(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{Command: ipc.CommandShutdown})
	if resp.Status != ipc.StatusOk {
		t.Fatalf("handle(shutdown) = %+v, want ok", resp)
	}
	if !d.ShutdownRequested() {
		t.Error("ShutdownRequested() = false after shutdown command")
	}
}

func TestHandleUnknownCommandReturnsError(t *testing.T) {
	d := newTestDispatcher()

	resp := d.handle(ipc.Request{Command: "not_a_real_command"})
	if resp.Status != ipc.StatusError {
		t.Errorf("handle(unknown) = %+v, want error", resp)
	}
}
