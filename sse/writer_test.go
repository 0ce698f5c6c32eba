// ABOUTME: Tests for the SSE writer covering event framing, JSON payloads, and comments.
// ABOUTME: Round-trips writer output through the parser to verify framing compatibility.

package sse

import (
	"strings"
	"testing"
)

func TestWriteEvent(t *testing.T) {
	var b strings.Builder
	w := NewWriter(&b)

	if err := w.WriteEvent("think", `{"result":"pondering"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "event: think\ndata: {\"result\":\"pondering\"}\n\n"
	if b.String() != want {
		t.Errorf("expected %q, got %q", want, b.String())
	}
}

func TestWriteEventMultiLineData(t *testing.T) {
	var b strings.Builder
	w := NewWriter(&b)

	if err := w.WriteEvent("log", "line one\nline two"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := NewParser(strings.NewReader(b.String()))
	evt, err := p.Next()
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if evt.Data != "line one\nline two" {
		t.Errorf("round trip lost data: %q", evt.Data)
	}
}

func TestWriteJSON(t *testing.T) {
	var b strings.Builder
	w := NewWriter(&b)

	if err := w.WriteJSON("complete", map[string]string{"result": "done"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := NewParser(strings.NewReader(b.String()))
	evt, err := p.Next()
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if evt.Type != "complete" {
		t.Errorf("expected type complete, got %q", evt.Type)
	}
	if evt.Data != `{"result":"done"}` {
		t.Errorf("unexpected data %q", evt.Data)
	}
}

func TestWriteComment(t *testing.T) {
	var b strings.Builder
	w := NewWriter(&b)

	if err := w.WriteComment("heartbeat"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := NewParser(strings.NewReader(b.String()))
	evt, err := p.Next()
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if !evt.Comment || evt.Data != "heartbeat" {
		t.Errorf("expected heartbeat comment, got %+v", evt)
	}
}
