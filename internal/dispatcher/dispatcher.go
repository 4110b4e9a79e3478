// Package dispatcher routes decoded IPC commands to the session controller
// and scheduler, and serializes the response for each one.
package dispatcher

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/cat2151/ym2151play/internal/eventlog"
	"github.com/cat2151/ym2151play/internal/eventqueue"
	"github.com/cat2151/ym2151play/internal/ipc"
	"github.com/cat2151/ym2151play/internal/logging"
	"github.com/cat2151/ym2151play/internal/session"
	"github.com/cat2151/ym2151play/internal/timebase"
)

// Dispatcher owns the Unix domain socket listener and routes each accepted
// connection's single command to the session controller.
type Dispatcher struct {
	controller        *session.Controller
	server            *ipc.Server
	shutdownRequested atomic.Bool
}

// New wires a Dispatcher to an already-constructed session controller.
func New(controller *session.Controller) *Dispatcher {
	return &Dispatcher{controller: controller}
}

// Run binds socketPath and serves connections until Close is called or a
// transport-level error occurs.
func (d *Dispatcher) Run(socketPath string) error {
	server, err := ipc.Listen(socketPath)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	d.server = server

	return server.Serve(d.handle)
}

// ShutdownRequested reports whether a Shutdown command has been received.
func (d *Dispatcher) ShutdownRequested() bool {
	return d.shutdownRequested.Load()
}

// Close stops accepting new connections.
func (d *Dispatcher) Close() error {
	if d.server == nil {
		return nil
	}
	return d.server.Close()
}

func (d *Dispatcher) handle(req ipc.Request) (resp ipc.Response) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("dispatcher: command handler panicked", "command", req.Command, "recover", r, "stack", string(debug.Stack()))
			resp = ipc.ErrorResponse(fmt.Sprintf("internal error handling %s", req.Command))
		}
	}()

	logging.Verbose("dispatcher: received command", "command", req.Command)

	switch req.Command {
	case ipc.CommandPlayJson:
		return d.handlePlayJson(req.Data)
	case ipc.CommandPlayJsonInInteractive:
		return d.handlePlayJsonInInteractive(req.Data)
	case ipc.CommandStop:
		return d.handleStop()
	case ipc.CommandStartInteractive:
		return d.handleStartInteractive()
	case ipc.CommandStopInteractive:
		return d.handleStop()
	case ipc.CommandClearSchedule:
		return d.handleClearSchedule()
	case ipc.CommandGetServerTime:
		return ipc.ServerTimeResponse(d.controller.GetServerTime())
	case ipc.CommandGetInteractiveModeState:
		return ipc.InteractiveModeStateResponse(d.controller.State() == session.Interactive)
	case ipc.CommandShutdown:
		return d.handleShutdown()
	default:
		return ipc.ErrorResponse(fmt.Sprintf("unknown command %q", req.Command))
	}
}

func (d *Dispatcher) handlePlayJson(data []byte) ipc.Response {
	events, err := eventlog.Parse(data)
	if err != nil {
		return ipc.ErrorResponse(fmt.Sprintf("invalid event log: %v", err))
	}

	_ = d.controller.Stop()

	writes := make([]eventqueue.RegisterWrite, len(events))
	for i, ev := range events {
		writes[i] = eventqueue.RegisterWrite{
			SampleTime: timebase.SecToSamples(ev.TimeSec),
			Addr:       ev.Addr,
			Data:       ev.Data,
		}
	}

	if err := d.controller.StartStatic(writes); err != nil {
		return ipc.ErrorResponse(fmt.Sprintf("failed to start playback: %v", err))
	}
	return ipc.OkResponse()
}

func (d *Dispatcher) handlePlayJsonInInteractive(data []byte) ipc.Response {
	if d.controller.State() != session.Interactive {
		return ipc.ErrorResponse("Not in interactive mode")
	}

	events, err := eventlog.Parse(data)
	if err != nil {
		return ipc.ErrorResponse(fmt.Sprintf("invalid event log: %v", err))
	}

	sched := d.controller.Scheduler()
	if sched == nil {
		return ipc.ErrorResponse("Not in interactive mode")
	}
	for _, ev := range events {
		if _, err := sched.ScheduleAt(d.controller.GetServerTime()+ev.TimeSec, ev.Addr, ev.Data); err != nil {
			return ipc.ErrorResponse(fmt.Sprintf("failed to schedule event: %v", err))
		}
	}
	return ipc.OkResponse()
}

func (d *Dispatcher) handleStop() ipc.Response {
	if err := d.controller.Stop(); err != nil {
		return ipc.ErrorResponse(err.Error())
	}
	return ipc.OkResponse()
}

func (d *Dispatcher) handleStartInteractive() ipc.Response {
	if err := d.controller.StartInteractive(); err != nil {
		return ipc.ErrorResponse(err.Error())
	}
	return ipc.OkResponse()
}

func (d *Dispatcher) handleClearSchedule() ipc.Response {
	if err := d.controller.ClearSchedule(); err != nil {
		return ipc.ErrorResponse("Not in interactive mode")
	}
	return ipc.OkResponse()
}

func (d *Dispatcher) handleShutdown() ipc.Response {
	_ = d.controller.Stop()
	d.shutdownRequested.Store(true)
	return ipc.OkResponse()
}
