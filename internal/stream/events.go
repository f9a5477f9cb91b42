// ABOUTME: SSE wire format encoding for streaming session events
// ABOUTME: Frames named events with raw or JSON payloads onto a response sink

package stream

import (
	"encoding/json"
	"fmt"
	"io"
)

// Event names emitted on a streaming session.
const (
	EventConnected = "connected"
	EventMessage   = "message"
	EventError     = "error"
	EventClose     = "close"
	EventHeartbeat = "heartbeat"
)

// WriteEvent writes a single SSE record to w:
//
//	event: <name>
//	data: <payload>
//
// The payload is written verbatim; message events carry raw subprocess
// output lines without re-escaping.
//
// Callers must serialize writes to a shared sink; the session owns that
// discipline, not the framer.
func WriteEvent(w io.Writer, event, payload string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return nil
}

// WriteJSONEvent marshals data to compact JSON and writes it as an SSE record.
func WriteJSONEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", event, err)
	}
	return WriteEvent(w, event, string(payload))
}
