// ABOUTME: AgentRunner abstraction separating the HTTP layer from whatever produces task steps.
// ABOUTME: Includes a scripted runner used by the demo mode and the integration tests.
package web

import (
	"time"

	"github.com/skytodmoon/OpenManus/task"
)

// AgentRunner produces the steps for one task. Run is called on its own
// goroutine after the task is marked running; a returned error fails the
// task with the error message.
type AgentRunner interface {
	Run(mgr *task.Manager, taskID, prompt string) error
}

// ScriptedStep is one pre-planned step of a scripted run.
type ScriptedStep struct {
	Type    string
	Content string
}

// ScriptedRunner replays a fixed sequence of steps with an optional delay
// between them, then completes the task with Result. Used by the demo mode
// and by tests that need a deterministic agent.
type ScriptedRunner struct {
	Steps  []ScriptedStep
	Result string
	Delay  time.Duration
}

// Run implements AgentRunner.
func (r *ScriptedRunner) Run(mgr *task.Manager, taskID, prompt string) error {
	for _, step := range r.Steps {
		if r.Delay > 0 {
			time.Sleep(r.Delay)
		}
		if err := mgr.AppendStep(taskID, step.Type, step.Content); err != nil {
			return err
		}
	}
	result := r.Result
	if result == "" {
		result = "Task completed"
	}
	return mgr.Complete(taskID, result)
}

// RunnerFunc adapts a function to the AgentRunner interface.
type RunnerFunc func(mgr *task.Manager, taskID, prompt string) error

// Run implements AgentRunner.
func (f RunnerFunc) Run(mgr *task.Manager, taskID, prompt string) error {
	return f(mgr, taskID, prompt)
}
