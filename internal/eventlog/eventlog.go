// Package eventlog parses and validates the JSON event-log payload accepted
// by the PlayJson and PlayJsonInInteractive commands.
package eventlog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event is one validated register write: time in seconds relative to the
// session or batch it belongs to, and the address/data pair decoded from
// hex.
type Event struct {
	TimeSec float64
	Addr    uint8
	Data    uint8
}

// rawEvent mirrors the wire shape before hex decoding and ordering checks.
type rawEvent struct {
	Time float64 `json:"time"`
	Addr string  `json:"addr"`
	Data string  `json:"data"`
}

// rawLog mirrors the top-level {"events": [...]} wire shape.
type rawLog struct {
	Events []rawEvent `json:"events"`
}

// Parse decodes and validates an event-log JSON payload. An empty events
// array parses successfully and yields a nil slice (a no-op). Any
// malformed hex string, out-of-range byte, or decreasing time rejects the
// whole payload.
func Parse(data []byte) ([]Event, error) {
	var log rawLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("eventlog: parse json: %w", err)
	}
	if len(log.Events) == 0 {
		return nil, nil
	}

	events := make([]Event, len(log.Events))
	var prevTime float64
	for i, raw := range log.Events {
		if i > 0 && raw.Time < prevTime {
			return nil, fmt.Errorf("eventlog: event %d has time %v, which is before the preceding event's time %v", i, raw.Time, prevTime)
		}
		addr, err := parseHexByte(raw.Addr)
		if err != nil {
			return nil, fmt.Errorf("eventlog: event %d: addr: %w", i, err)
		}
		data, err := parseHexByte(raw.Data)
		if err != nil {
			return nil, fmt.Errorf("eventlog: event %d: data: %w", i, err)
		}

		events[i] = Event{TimeSec: raw.Time, Addr: addr, Data: data}
		prevTime = raw.Time
	}

	return events, nil
}

// parseHexByte decodes a "0xHH" (or "0XHH") two-digit hex string into a
// byte. Strings without the prefix, with the wrong digit count, or outside
// 0x00-0xFF are rejected.
func parseHexByte(s string) (uint8, error) {
	trimmed := s
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		trimmed = s[2:]
	default:
		return 0, fmt.Errorf("hex string %q missing 0x prefix", s)
	}
	if len(trimmed) != 2 {
		return 0, fmt.Errorf("hex string %q must have exactly two digits", s)
	}

	v, err := strconv.ParseUint(trimmed, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return uint8(v), nil
}
