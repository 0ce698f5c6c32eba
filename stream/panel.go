// ABOUTME: Result panel presenter deriving the current/latest view from the most recent relevant step.
// ABOUTME: Owns visibility and minimized state; content is HTML-escaped so literal text renders literally.

package stream

import "html"

// PanelState is a snapshot of the result panel for rendering.
type PanelState struct {
	Visible   bool
	Minimized bool
	Kind      Kind
	Icon      string
	Label     string
	Content   string // escaped, render as preformatted text
}

// PanelSink receives a state snapshot after every panel change. Optional.
type PanelSink func(PanelState)

// Panel presents the latest relevant step: an icon+label header and the
// literal content body. Visibility is independent of content; presenting
// never shows the panel and hiding never clears it.
type Panel struct {
	state PanelState
	sink  PanelSink
}

// NewPanel creates a hidden, empty panel. The sink may be nil.
func NewPanel(sink PanelSink) *Panel {
	return &Panel{sink: sink}
}

// Present replaces the header and body for the given kind. Content is
// escaped so embedded markup is never interpreted as structure.
func (p *Panel) Present(content string, kind Kind) {
	icon, label := Presentation(kind)
	p.state.Kind = kind
	p.state.Icon = icon
	p.state.Label = label
	p.state.Content = html.EscapeString(content)
	p.emit()
}

// Show makes the panel visible.
func (p *Panel) Show() {
	p.state.Visible = true
	p.emit()
}

// Hide hides the panel. Idempotent, and always clears the minimized
// sub-state so a later Show starts from a consistent baseline.
func (p *Panel) Hide() {
	p.state.Visible = false
	p.state.Minimized = false
	p.emit()
}

// Minimize collapses a visible panel to its header. Hidden panels stay
// hidden.
func (p *Panel) Minimize() {
	if !p.state.Visible {
		return
	}
	p.state.Minimized = true
	p.emit()
}

// Restore expands a minimized panel.
func (p *Panel) Restore() {
	p.state.Minimized = false
	p.emit()
}

// State returns the current snapshot.
func (p *Panel) State() PanelState {
	return p.state
}

func (p *Panel) emit() {
	if p.sink != nil {
		p.sink(p.state)
	}
}
