// ABOUTME: SSE event writer for HTTP handlers serving text/event-stream responses.
// ABOUTME: Formats named events, JSON payloads, and comment lines, flushing after each write when possible.

package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Writer encodes events onto a text/event-stream response. If the underlying
// writer implements http.Flusher, every event is flushed immediately so
// clients see it without buffering delays.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w for SSE output.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// PrepareHeaders sets the response headers required for an SSE stream.
func PrepareHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteEvent writes one named event with raw data. Multi-line data is split
// into one "data:" line per line, per the SSE framing rules.
func (w *Writer) WriteEvent(name, data string) error {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "event: %s\n", name)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return err
	}
	w.flush()
	return nil
}

// WriteJSON marshals v and writes it as the data of one named event.
func (w *Writer) WriteJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	return w.WriteEvent(name, string(data))
}

// WriteComment writes a comment line (": text"). Comments keep intermediaries
// from timing out an idle connection and double as heartbeat markers.
func (w *Writer) WriteComment(text string) error {
	if _, err := fmt.Fprintf(w.w, ": %s\n\n", text); err != nil {
		return err
	}
	w.flush()
	return nil
}

func (w *Writer) flush() {
	if w.flusher != nil {
		w.flusher.Flush()
	}
}
