// ABOUTME: Defines lipgloss style constants for the TUI panels, step kinds, and the status bar.
// ABOUTME: Provides StyleForKind to map step kinds to their corresponding display styles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/skytodmoon/OpenManus/stream"
)

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	// Title styling
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Step kind colors
	ThinkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	ToolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ActStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	LogStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	// Active step marker
	ActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	// Timestamp column
	TimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	// Saved-artifact download link
	AttachmentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// StyleForKind returns the appropriate lipgloss style for a step kind.
func StyleForKind(k stream.Kind) lipgloss.Style {
	switch k {
	case stream.KindThink:
		return ThinkStyle
	case stream.KindTool, stream.KindRun:
		return ToolStyle
	case stream.KindAct, stream.KindResult:
		return ActStyle
	case stream.KindLog, stream.KindMessage:
		return LogStyle
	case stream.KindError:
		return ErrorStyle
	case stream.KindWarning:
		return WarningStyle
	case stream.KindComplete:
		return SuccessStyle
	default:
		return StepStyle
	}
}
