// ABOUTME: Top-level Bubble Tea AppModel that orchestrates the TUI panels into a unified layout.
// ABOUTME: Implements tea.Model (Init, Update, View) and routes messages to steps, result, and status bar panels.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skytodmoon/OpenManus/stream"
)

// AppModel is the top-level Bubble Tea model that composes the TUI panels
// and routes messages between them.
type AppModel struct {
	steps     StepsPanelModel
	result    ResultPanelModel
	statusBar StatusBarModel
	input     textinput.Model

	ctrl  *stream.Controller
	panel *stream.Panel
	ctx   context.Context

	taskID    string
	composing bool // prompt input active, no task yet
	done      bool // watch session finished
	err       error
	width     int
	height    int
}

// NewAppModel creates an AppModel. With a task ID the session attaches
// immediately; without one the prompt composer is shown first.
func NewAppModel(ctx context.Context, ctrl *stream.Controller, panel *stream.Panel, taskID string) AppModel {
	input := textinput.New()
	input.Placeholder = "Describe a task for the agent..."
	input.CharLimit = 2000
	input.Focus()

	bar := NewStatusBarModel(taskID)
	bar.Start()

	steps := NewStepsPanelModel()
	steps.SetDownloadResolver(ctrl.DownloadURL)

	return AppModel{
		steps:     steps,
		result:    NewResultPanelModel(),
		statusBar: bar,
		input:     input,
		ctrl:      ctrl,
		panel:     panel,
		ctx:       ctx,
		taskID:    taskID,
		composing: taskID == "",
	}
}

// Init implements tea.Model. Attaches to the task when one is set and begins
// the tick loop.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(100 * time.Millisecond)}
	if m.taskID != "" {
		cmds = append(cmds, WatchTaskCmd(m.ctx, m.ctrl, m.taskID))
	}
	if m.composing {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model. Routes incoming messages to the appropriate
// sub-panel and returns the updated model with any follow-up commands.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StepsMsg:
		m.steps.SetSteps(msg.Steps)
		m.statusBar.SetStepCount(len(msg.Steps))
		return m, nil

	case PanelMsg:
		m.result.SetState(msg.State)
		return m, nil

	case LivenessMsg:
		m.statusBar.SetLiveness(msg.Time)
		return m, nil

	case TaskCreatedMsg:
		return m.handleTaskCreated(msg)

	case WatchResultMsg:
		m.done = true
		m.err = msg.Err
		m.statusBar.SetState(m.ctrl.State())
		return m, nil

	case TickMsg:
		return m.handleTick(msg)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

// View implements tea.Model. Renders the full TUI layout with all panels.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 40 || m.height < 10 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x10.", m.width, m.height)
	}

	if m.composing {
		return TitleStyle.Render("OpenManus") + "\n\n" +
			m.input.View() + "\n\n" +
			"enter to run, esc to quit"
	}

	statusBarHeight := 1
	resultView := ""
	resultHeight := 0
	if m.result.State().Visible {
		m.result.SetSize(m.width, 0)
		resultView = m.result.View()
		resultHeight = strings.Count(resultView, "\n") + 1
	}

	stepsHeight := m.height - statusBarHeight - resultHeight
	if stepsHeight < 3 {
		stepsHeight = 3
	}
	m.steps.SetSize(m.width, stepsHeight)
	m.statusBar.SetWidth(m.width)

	var b strings.Builder
	b.WriteString(m.steps.View())
	b.WriteString("\n")
	if resultView != "" {
		b.WriteString(resultView)
		b.WriteString("\n")
	}
	b.WriteString(m.statusBar.View())
	if m.done && m.err != nil {
		b.WriteString(" ")
		b.WriteString(ErrorStyle.Render(m.err.Error()))
	}

	return b.String()
}

// handleTaskCreated switches from the composer to the watch session.
func (m AppModel) handleTaskCreated(msg TaskCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.done = true
		m.err = msg.Err
		m.composing = false
		return m, nil
	}
	m.taskID = msg.TaskID
	m.composing = false
	m.statusBar.SetTaskID(msg.TaskID)
	m.statusBar.Start()
	return m, WatchTaskCmd(m.ctx, m.ctrl, msg.TaskID)
}

// handleTick advances the spinner and refreshes the connection state shown in
// the status bar.
func (m AppModel) handleTick(_ TickMsg) (tea.Model, tea.Cmd) {
	m.steps.AdvanceSpinner()
	m.statusBar.SetState(m.ctrl.State())
	m.statusBar.SetRetries(m.ctrl.Retries())
	if m.done {
		return m, nil
	}
	return m, TickCmd(100 * time.Millisecond)
}

// handleKeyMsg processes keyboard input, routing to the composer or
// app-level shortcuts.
func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.composing {
		switch msg.Type {
		case tea.KeyEnter:
			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" {
				return m, nil
			}
			return m, CreateTaskCmd(m.ctx, m.ctrl, prompt)
		case tea.KeyEsc, tea.KeyCtrlC:
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.ctrl.Stop()
		return m, tea.Quit
	case "m":
		// Toggle the result panel between minimized and expanded. The
		// presenter owns the state; the change flows back as a PanelMsg.
		if m.panel != nil {
			if m.result.State().Minimized {
				m.panel.Restore()
			} else {
				m.panel.Minimize()
			}
		}
		return m, nil
	}

	return m, nil
}
