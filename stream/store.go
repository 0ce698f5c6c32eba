// ABOUTME: Step ordering store, an append-only collection kept sorted by receive instant.
// ABOUTME: Every append re-sorts and redraws the full list; exactly one step is active after each redraw.

package stream

import "sort"

// orderedStep pairs a step with its arrival index, the tie-breaker when two
// steps share a receive instant.
type orderedStep struct {
	Step
	arrival int
}

// StepStore holds the step history for one task view. Events can arrive out
// of order relative to generation (network reordering, multiple event
// channels), so display order is always a full re-sort by receive instant
// rather than append order. Step counts are tens, not thousands, so the
// naive re-sort on every append is fine; a sorted-insert structure is the
// scaling path if that ever changes.
//
// A StepStore is owned by a single controller or history load and is
// replaced, not reused, when the view switches tasks.
type StepStore struct {
	steps    []orderedStep
	renderer Renderer
	arrivals int
}

// NewStepStore creates an empty store that redraws through r.
func NewStepStore(r Renderer) *StepStore {
	return &StepStore{renderer: r}
}

// Append inserts the step, re-sorts the list (stable, so arrival order
// breaks receive-instant ties), marks the chronologically last step active,
// and redraws the whole list.
func (s *StepStore) Append(step Step) {
	step.Active = false
	s.steps = append(s.steps, orderedStep{Step: step, arrival: s.arrivals})
	s.arrivals++

	sort.SliceStable(s.steps, func(i, j int) bool {
		return s.steps[i].ReceivedAt.Before(s.steps[j].ReceivedAt)
	})

	for i := range s.steps {
		s.steps[i].Active = i == len(s.steps)-1
	}

	s.redraw()
}

// SetExpanded marks the step at the given display index expanded or
// collapsed and redraws. Out-of-range indexes are ignored.
func (s *StepStore) SetExpanded(i int, expanded bool) {
	if i < 0 || i >= len(s.steps) {
		return
	}
	s.steps[i].Expanded = expanded
	s.redraw()
}

// Steps returns a copy of the current display-ordered list.
func (s *StepStore) Steps() []Step {
	out := make([]Step, len(s.steps))
	for i, st := range s.steps {
		out[i] = st.Step
	}
	return out
}

// Len returns the number of stored steps.
func (s *StepStore) Len() int {
	return len(s.steps)
}

// Last returns the chronologically last step, if any.
func (s *StepStore) Last() (Step, bool) {
	if len(s.steps) == 0 {
		return Step{}, false
	}
	return s.steps[len(s.steps)-1].Step, true
}

func (s *StepStore) redraw() {
	if s.renderer != nil {
		s.renderer.RenderSteps(s.Steps())
	}
}
