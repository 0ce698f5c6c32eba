// ABOUTME: Implements a single-line status bar for the bottom of the TUI showing session progress.
// ABOUTME: Displays task ID, connection state, elapsed time, step count, and last heartbeat.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/skytodmoon/OpenManus/stream"
)

// StatusBarModel displays session status in a single line.
type StatusBarModel struct {
	taskID       string
	state        stream.State
	startTime    time.Time
	stepCount    int
	retries      int
	lastLiveness time.Time
	width        int
}

// NewStatusBarModel creates a StatusBarModel for the given task.
func NewStatusBarModel(taskID string) StatusBarModel {
	return StatusBarModel{taskID: taskID}
}

// Start records the session start time.
func (m *StatusBarModel) Start() {
	m.startTime = time.Now()
}

// SetTaskID updates the displayed task ID.
func (m *StatusBarModel) SetTaskID(id string) {
	m.taskID = id
}

// SetState updates the displayed connection state.
func (m *StatusBarModel) SetState(s stream.State) {
	m.state = s
}

// SetStepCount updates the displayed step count.
func (m *StatusBarModel) SetStepCount(n int) {
	m.stepCount = n
}

// SetRetries updates the displayed reconnect-attempt count.
func (m *StatusBarModel) SetRetries(n int) {
	m.retries = n
}

// SetLiveness records the last heartbeat instant.
func (m *StatusBarModel) SetLiveness(at time.Time) {
	m.lastLiveness = at
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed returns the time since Start() was called, or zero if not started.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	return time.Since(m.startTime)
}

// formatElapsed formats a duration as a human-readable string.
// Durations under a minute show as seconds (e.g. "12s").
// Durations of a minute or more show as minutes and seconds (e.g. "2m30s").
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	taskID := m.taskID
	if taskID == "" {
		taskID = "none"
	}

	content := fmt.Sprintf("Task: %s | %s | Elapsed: %s | %d steps",
		taskID, m.state, formatElapsed(m.Elapsed()), m.stepCount)
	if m.retries > 0 {
		content += fmt.Sprintf(" | retries: %d", m.retries)
	}
	if !m.lastLiveness.IsZero() {
		content += " | heartbeat " + m.lastLiveness.Format("15:04:05")
	}

	style := StatusBarStyle.Width(m.width)

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
