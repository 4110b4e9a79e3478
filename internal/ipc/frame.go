// Package ipc implements the length-prefixed JSON frame protocol and the
// closed Command/Response set the dispatcher and clients speak over a Unix
// domain socket.
package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single frame's JSON payload; a length prefix
// larger than this is rejected before any allocation happens.
const MaxFrameBytes = 10 * 1024 * 1024

// ReadFrame reads one length-prefixed frame from r: a 4-byte little-endian
// length N followed by N bytes of JSON. Returns the JSON payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("ipc: read frame length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("ipc: frame length %d exceeds maximum %d", n, MaxFrameBytes)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("ipc: read frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameBytes {
		return fmt.Errorf("ipc: frame length %d exceeds maximum %d", len(payload), MaxFrameBytes)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("ipc: write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("ipc: write frame payload: %w", err)
	}
	return nil
}
