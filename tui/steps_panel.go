// ABOUTME: Scrollable step list panel using the bubbles viewport component.
// ABOUTME: Renders the display-ordered steps with kind icons, timestamps, and the active marker.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/skytodmoon/OpenManus/stream"
)

// spinnerFrames animate the active step marker.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StepsPanelModel displays the current step list. The stream controller owns
// ordering; this panel renders whatever slice the last StepsMsg carried.
type StepsPanelModel struct {
	steps       []stream.Step
	spinner     int
	viewport    viewport.Model
	width       int
	height      int
	downloadURL func(string) string
}

// NewStepsPanelModel creates an empty steps panel.
func NewStepsPanelModel() StepsPanelModel {
	return StepsPanelModel{viewport: viewport.New(80, 10)}
}

// SetDownloadResolver sets the function that turns a saved-artifact path
// into a fetchable URL. When unset, the server-relative download path is
// shown instead.
func (m *StepsPanelModel) SetDownloadResolver(f func(string) string) {
	m.downloadURL = f
}

// SetSteps replaces the step list and scrolls to the bottom.
func (m *StepsPanelModel) SetSteps(steps []stream.Step) {
	m.steps = steps
	m.syncViewport()
}

// Len returns the number of steps displayed.
func (m StepsPanelModel) Len() int {
	return len(m.steps)
}

// AdvanceSpinner moves the active-step spinner one frame.
func (m *StepsPanelModel) AdvanceSpinner() {
	m.spinner = (m.spinner + 1) % len(spinnerFrames)
	m.syncViewport()
}

// SetSize sets the available dimensions and updates the viewport.
func (m *StepsPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	vpWidth := w - 2
	vpHeight := h - 3
	if vpWidth < 1 {
		vpWidth = 1
	}
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.syncViewport()
}

// View renders the steps panel.
func (m StepsPanelModel) View() string {
	var content string
	if len(m.steps) == 0 {
		content = "Waiting for agent activity..."
	} else {
		content = m.viewport.View()
	}

	rendered := TitleStyle.Render("STEPS") + "\n" + content

	return BorderStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(rendered)
}

// syncViewport rebuilds the viewport content and scrolls to the bottom so the
// active step stays in view.
func (m *StepsPanelModel) syncViewport() {
	if len(m.steps) == 0 {
		m.viewport.SetContent("")
		return
	}
	var lines []string
	for _, step := range m.steps {
		lines = append(lines, m.formatStep(step))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatStep renders one step line: timestamp, icon+label header, and the
// content body when the step is active or expanded.
func (m StepsPanelModel) formatStep(step stream.Step) string {
	icon, label := stream.Presentation(step.Kind)
	style := StyleForKind(step.Kind)

	marker := "  "
	if step.Active {
		marker = ActiveStyle.Render(spinnerFrames[m.spinner]) + " "
	}

	header := marker +
		TimestampStyle.Render(step.Display) + " " +
		style.Render(icon+" "+label)

	var att stream.Attachment
	var hasAtt bool
	if step.Kind == stream.KindAct || step.Kind == stream.KindTool {
		att, hasAtt = stream.DetectAttachment(step.Content)
	}

	if !step.Active && !step.Expanded {
		line := header + " " + firstLine(step.Content)
		if hasAtt {
			line += " " + m.attachmentLine(att)
		}
		return line
	}

	var b strings.Builder
	b.WriteString(header)
	for _, line := range strings.Split(step.Content, "\n") {
		b.WriteString("\n    ")
		b.WriteString(line)
	}
	if hasAtt {
		b.WriteString("\n    ")
		b.WriteString(m.attachmentLine(att))
	}
	return b.String()
}

// attachmentLine renders the download affordance for a saved artifact.
func (m StepsPanelModel) attachmentLine(att stream.Attachment) string {
	link := att.DownloadPath()
	if m.downloadURL != nil {
		link = m.downloadURL(att.Path)
	}
	return AttachmentStyle.Render("📎 " + string(att.Kind) + " " + link)
}

// firstLine returns the first non-empty line of s, truncated for the one-line
// collapsed rendering.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		r := []rune(trimmed)
		if len(r) > 80 {
			return string(r[:80]) + "…"
		}
		return trimmed
	}
	return ""
}
