// ABOUTME: Bridge connecting the stream controller to the Bubble Tea message loop.
// ABOUTME: Implements stream.Renderer over program.Send, plus tea.Cmd factories for watch, create, and ticks.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skytodmoon/OpenManus/stream"
)

// StreamBridge adapts the stream controller's render callbacks into Bubble
// Tea messages. Typically constructed with program.Send.
type StreamBridge struct {
	send func(msg tea.Msg)
}

// NewStreamBridge creates a bridge that sends messages via the given function.
func NewStreamBridge(send func(msg tea.Msg)) *StreamBridge {
	return &StreamBridge{send: send}
}

// RenderSteps implements stream.Renderer. Every append redraws the full list,
// so the message carries the whole slice.
func (b *StreamBridge) RenderSteps(steps []stream.Step) {
	b.send(StepsMsg{Steps: steps})
}

// ShowLiveness implements stream.Renderer.
func (b *StreamBridge) ShowLiveness(at time.Time) {
	b.send(LivenessMsg{Time: at})
}

// PanelSink returns a stream.PanelSink forwarding panel snapshots to the loop.
func (b *StreamBridge) PanelSink() stream.PanelSink {
	return func(s stream.PanelState) {
		b.send(PanelMsg{State: s})
	}
}

// WatchTaskCmd returns a tea.Cmd that follows the task to its terminal state.
// The controller renders through the bridge while this runs; the returned
// message only reports how the session ended.
func WatchTaskCmd(ctx context.Context, ctrl *stream.Controller, taskID string) tea.Cmd {
	return func() tea.Msg {
		return WatchResultMsg{Err: ctrl.Watch(ctx, taskID)}
	}
}

// CreateTaskCmd returns a tea.Cmd that submits a new task.
func CreateTaskCmd(ctx context.Context, ctrl *stream.Controller, prompt string) tea.Cmd {
	return func() tea.Msg {
		id, err := ctrl.Create(ctx, prompt)
		return TaskCreatedMsg{TaskID: id, Err: err}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
// Used for the elapsed timer and spinner animation.
func TickCmd(interval time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(interval)
		return TickMsg{Time: time.Now()}
	}
}
