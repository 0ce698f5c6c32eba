// ABOUTME: Tests for the status bar rendering and elapsed time formatting.
package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/skytodmoon/OpenManus/stream"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{12 * time.Second, "12s"},
		{59 * time.Second, "59s"},
		{time.Minute, "1m0s"},
		{2*time.Minute + 30*time.Second, "2m30s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestStatusBarView(t *testing.T) {
	m := NewStatusBarModel("abc-123")
	m.SetWidth(120)
	m.SetState(stream.StateConnected)
	m.SetStepCount(4)

	view := m.View()
	if !strings.Contains(view, "abc-123") {
		t.Errorf("expected task ID in %q", view)
	}
	if !strings.Contains(view, "connected") {
		t.Errorf("expected connection state in %q", view)
	}
	if !strings.Contains(view, "4 steps") {
		t.Errorf("expected step count in %q", view)
	}
}

func TestStatusBarNoTask(t *testing.T) {
	m := NewStatusBarModel("")
	m.SetWidth(80)
	if !strings.Contains(m.View(), "Task: none") {
		t.Errorf("expected placeholder task ID, got %q", m.View())
	}
}

func TestStatusBarRetries(t *testing.T) {
	m := NewStatusBarModel("t")
	m.SetWidth(120)
	if strings.Contains(m.View(), "retries") {
		t.Errorf("expected no retry marker at zero retries, got %q", m.View())
	}
	m.SetRetries(2)
	if !strings.Contains(m.View(), "retries: 2") {
		t.Errorf("expected retry count, got %q", m.View())
	}
}

func TestStatusBarLiveness(t *testing.T) {
	m := NewStatusBarModel("t")
	m.SetWidth(120)
	m.SetLiveness(time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC))
	if !strings.Contains(m.View(), "heartbeat 09:30:15") {
		t.Errorf("expected heartbeat marker, got %q", m.View())
	}
}

func TestElapsedZeroBeforeStart(t *testing.T) {
	m := NewStatusBarModel("t")
	if m.Elapsed() != 0 {
		t.Errorf("expected zero elapsed before Start, got %v", m.Elapsed())
	}
	m.Start()
	if m.Elapsed() < 0 {
		t.Errorf("expected non-negative elapsed after Start")
	}
}
