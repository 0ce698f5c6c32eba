// ABOUTME: Step record types for the client-side rendering pipeline.
// ABOUTME: Defines step kinds, their presentation icons/labels, and the Renderer interface redraws go through.

package stream

import "time"

// Kind classifies one unit of agent activity. The set is open-ended on the
// wire: unrecognized event types map to KindStep.
type Kind string

const (
	KindThink    Kind = "think"
	KindTool     Kind = "tool"
	KindAct      Kind = "act"
	KindLog      Kind = "log"
	KindRun      Kind = "run"
	KindMessage  Kind = "message"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
	KindResult   Kind = "result"
	KindWarning  Kind = "warning"
	KindStep     Kind = "step"
)

// knownKinds is the closed set of recognized step kinds; anything else
// normalizes to KindStep.
var knownKinds = map[Kind]bool{
	KindThink: true, KindTool: true, KindAct: true, KindLog: true,
	KindRun: true, KindMessage: true, KindComplete: true, KindError: true,
	KindResult: true, KindWarning: true, KindStep: true,
}

// KindOf maps a wire event type to a step kind, falling back to the generic
// step kind for anything unrecognized.
func KindOf(eventType string) Kind {
	k := Kind(eventType)
	if knownKinds[k] {
		return k
	}
	return KindStep
}

// presentation pairs the icon and label shown for a step kind.
type presentation struct {
	Icon  string
	Label string
}

var presentations = map[Kind]presentation{
	KindThink:    {"🤔", "Thinking"},
	KindTool:     {"🛠️", "Using Tool"},
	KindAct:      {"🎯", "Taking Action"},
	KindLog:      {"📝", "Log"},
	KindRun:      {"▶️", "Running"},
	KindMessage:  {"💬", "Message"},
	KindComplete: {"🏁", "Completed"},
	KindError:    {"❌", "Error"},
	KindResult:   {"📄", "Result"},
	KindWarning:  {"⚠️", "Warning"},
}

var genericPresentation = presentation{"🔄", "Step"}

// Presentation returns the icon and label for a kind, with a generic
// fallback for anything outside the closed map.
func Presentation(k Kind) (icon, label string) {
	if p, ok := presentations[k]; ok {
		return p.Icon, p.Label
	}
	return genericPresentation.Icon, genericPresentation.Label
}

// Step is one normalized unit of agent activity ready for rendering.
// ReceivedAt is authoritative for ordering; Display is its locale rendering
// for presentation only.
type Step struct {
	Kind       Kind
	Content    string
	Display    string
	ReceivedAt time.Time

	// Rendering state owned by the StepStore.
	Active   bool
	Expanded bool
}

// Renderer receives the full ordered step list on every change, plus
// liveness markers that do not touch the step list. Implementations draw;
// the pipeline owns all state.
type Renderer interface {
	// RenderSteps redraws the complete ordered list. Exactly one step has
	// Active set (the one with the greatest receive instant) whenever the
	// list is non-empty.
	RenderSteps(steps []Step)

	// ShowLiveness surfaces a heartbeat marker: the connection is idle but
	// alive. Never mutates the step list.
	ShowLiveness(at time.Time)
}

// displayClock formats a receive instant for presentation.
func displayClock(t time.Time) string {
	return t.Format("15:04:05")
}
