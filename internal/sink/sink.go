// Package sink implements the AudioSink capability: the host audio backend
// that pulls stereo f32 frames at a fixed output rate.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/cat2151/ym2151play/internal/bridge"
	"github.com/cat2151/ym2151play/internal/logging"
)

const bytesPerFloat32 = 4

var (
	ErrNotInitialized = errors.New("audio sink not initialized")
	ErrAlreadyRunning = errors.New("audio sink already running")
	ErrNotRunning     = errors.New("audio sink not running")
)

// Config holds playback device configuration.
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 48000
	Channels    uint32 // always 2 for this server
	BufferSize  uint32 // frames per callback
}

// DefaultConfig returns the server's standard stereo playback settings.
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    2,
		BufferSize:  512,
	}
}

// FillFunc supplies exactly len(out) stereo frames. Called directly from
// the audio thread: must be non-blocking and must not allocate.
type FillFunc func(out []bridge.Frame)

// Playback is the malgo-backed AudioSink implementation.
type Playback struct {
	config Config
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	running atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex

	fillPtr atomic.Pointer[FillFunc]
}

// New creates a Playback sink with the given configuration.
func New(cfg Config) *Playback {
	return &Playback{config: cfg}
}

// SetFillFunc installs the frame source. The bridge's Fill method is the
// intended fill function: call SetFillFunc(func(out []bridge.Frame) {
// someBridge.Fill(out) }) before Start.
func (p *Playback) SetFillFunc(fn FillFunc) {
	if fn == nil {
		p.fillPtr.Store(nil)
	} else {
		p.fillPtr.Store(&fn)
	}
}

// Init initializes the audio backend.
func (p *Playback) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return errors.New("already initialized")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	p.ctx = ctx
	return nil
}

// ListDevices returns available playback devices.
func (p *Playback) ListDevices() ([]malgo.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil, ErrNotInitialized
	}
	infos, err := p.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins pulling frames from the installed FillFunc and playing them.
func (p *Playback) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	p.mu.Lock()
	if p.ctx == nil {
		p.mu.Unlock()
		p.running.Store(false)
		return ErrNotInitialized
	}
	audioCtx := p.ctx.Context

	var deviceID unsafe.Pointer
	if p.config.DeviceIndex >= 0 {
		devices, err := p.ctx.Devices(malgo.Playback)
		if err != nil {
			p.mu.Unlock()
			p.running.Store(false)
			return fmt.Errorf("enumerate devices: %w", err)
		}
		if p.config.DeviceIndex >= len(devices) {
			p.mu.Unlock()
			p.running.Store(false)
			return fmt.Errorf("device index %d out of range (have %d devices)", p.config.DeviceIndex, len(devices))
		}
		deviceID = devices[p.config.DeviceIndex].ID.Pointer()
	}
	p.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Playback,
		SampleRate:         p.config.SampleRate,
		PeriodSizeInFrames: p.config.BufferSize,
		Playback: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: p.config.Channels,
		},
	}
	if deviceID != nil {
		deviceConfig.Playback.DeviceID = deviceID
	}

	onSendFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		out := bytesAsFloat32(outputSamples)
		frames := make([]bridge.Frame, frameCount)

		if fnPtr := p.fillPtr.Load(); fnPtr != nil {
			(*fnPtr)(frames)
		}

		for i, f := range frames {
			out[2*i] = f.Left
			out[2*i+1] = f.Right
		}
	}

	device, err := malgo.InitDevice(audioCtx, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		p.running.Store(false)
		return fmt.Errorf("init device: %w", err)
	}

	p.mu.Lock()
	p.device = device
	p.mu.Unlock()

	if err := device.Start(); err != nil {
		p.mu.Lock()
		p.device.Uninit()
		p.device = nil
		p.mu.Unlock()
		p.running.Store(false)
		return fmt.Errorf("start device: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := p.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
			logging.Warn("sink: stop on context cancel failed", "err", err)
		}
	}()

	return nil
}

// Stop stops playback.
func (p *Playback) Stop() error {
	if !p.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		if err := p.device.Stop(); err != nil {
			logging.Warn("sink: device stop failed", "err", err)
		}
		p.device.Uninit()
		p.device = nil
	}
	return nil
}

// Close releases all audio resources.
func (p *Playback) Close() error {
	p.closed.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() && p.device != nil {
		if err := p.device.Stop(); err != nil {
			logging.Warn("sink: device stop on close failed", "err", err)
		}
		p.device.Uninit()
		p.device = nil
		p.running.Store(false)
	}

	if p.ctx != nil {
		if err := p.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		p.ctx.Free()
		p.ctx = nil
	}
	return nil
}

// IsRunning reports whether playback is active.
func (p *Playback) IsRunning() bool {
	return p.running.Load()
}

// bytesAsFloat32 reinterprets a byte buffer as a float32 slice without
// copying. The returned slice is only valid for the duration of the
// callback that produced data.
func bytesAsFloat32(data []byte) []float32 {
	if len(data) < bytesPerFloat32 {
		return nil
	}
	numSamples := len(data) / bytesPerFloat32
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), numSamples)
}
