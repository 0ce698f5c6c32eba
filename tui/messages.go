// ABOUTME: Bubble Tea message types used in the TUI message loop.
// ABOUTME: Each type wraps stream domain events for the tea.Msg interface (which is interface{}).
package tui

import (
	"time"

	"github.com/skytodmoon/OpenManus/stream"
)

// StepsMsg carries a full redraw of the step list from the stream renderer.
type StepsMsg struct {
	Steps []stream.Step
}

// PanelMsg carries a result panel state snapshot.
type PanelMsg struct {
	State stream.PanelState
}

// LivenessMsg signals that the connection heartbeat fired with no events.
type LivenessMsg struct {
	Time time.Time
}

// WatchResultMsg signals that the watch session ended, with its error if any.
type WatchResultMsg struct {
	Err error
}

// TaskCreatedMsg carries the result of submitting a new task.
type TaskCreatedMsg struct {
	TaskID string
	Err    error
}

// TickMsg is sent periodically to update timers and spinners.
type TickMsg struct {
	Time time.Time
}
