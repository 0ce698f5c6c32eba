// ABOUTME: Result panel rendering the latest relevant step from the stream panel presenter.
// ABOUTME: Mirrors the presenter's visible/minimized state; hidden panels render nothing.
package tui

import (
	"html"
	"strings"

	"github.com/skytodmoon/OpenManus/stream"
)

// ResultPanelModel displays the stream panel state: an icon+label header and
// the content body, collapsible to just the header.
type ResultPanelModel struct {
	state  stream.PanelState
	width  int
	height int
}

// NewResultPanelModel creates an empty, hidden result panel.
func NewResultPanelModel() ResultPanelModel {
	return ResultPanelModel{}
}

// SetState replaces the rendered panel state.
func (m *ResultPanelModel) SetState(s stream.PanelState) {
	m.state = s
}

// State returns the current panel state.
func (m ResultPanelModel) State() stream.PanelState {
	return m.state
}

// SetSize sets the available dimensions.
func (m *ResultPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// View renders the result panel. A hidden panel renders as an empty string so
// the layout can collapse it.
func (m ResultPanelModel) View() string {
	if !m.state.Visible {
		return ""
	}

	style := StyleForKind(m.state.Kind)
	header := style.Render(m.state.Icon + " " + m.state.Label)

	var body string
	if !m.state.Minimized {
		// Panel content is HTML-escaped for the web view; undo that for
		// terminal output where escaping is not needed.
		body = "\n" + html.UnescapeString(m.state.Content)
	}

	rendered := TitleStyle.Render("RESULT") + "\n" + header + body

	w := m.width - 2
	if w < 1 {
		w = 1
	}
	return BorderStyle.Width(w).Render(rendered)
}

// HeaderLine returns the header without borders, for compact layouts.
func (m ResultPanelModel) HeaderLine() string {
	if !m.state.Visible {
		return ""
	}
	return strings.TrimSpace(m.state.Icon + " " + m.state.Label)
}
