// ABOUTME: Core task and step types for the agent task server.
// ABOUTME: Defines the wire shapes returned by the /tasks endpoints and the status lifecycle.

package task

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a task. A task is terminal once it is
// completed or failed; no further steps are accepted past that point.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further progress.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Step is one recorded unit of agent activity on a task.
type Step struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"` // RFC3339Nano, when the step was recorded
}

// Task is one end-to-end agent run. Steps are stored in append order; the
// server makes no ordering promise beyond that, clients order by timestamp.
type Task struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Error     string    `json:"error,omitempty"`
	Steps     []Step    `json:"steps"`
}

// Summary is the list-view shape returned by GET /tasks.
type Summary struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the list-view projection of the task.
func (t *Task) Summary() Summary {
	return Summary{
		ID:        t.ID,
		Prompt:    t.Prompt,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
	}
}

// Event is one item on a task's live event feed, ready for SSE delivery.
type Event struct {
	Name string         // SSE event name: think, tool, act, log, run, message, status, complete, error
	Data map[string]any // JSON payload
}

// EncodeData marshals the event payload for the wire. A payload that cannot
// be marshalled is replaced with an error object rather than dropped, so the
// client still sees that something happened.
func (e Event) EncodeData() string {
	b, err := json.Marshal(e.Data)
	if err != nil {
		return `{"message":"unencodable event payload"}`
	}
	return string(b)
}

// Terminal reports whether this event ends the feed.
func (e Event) Terminal() bool {
	return e.Name == "complete" || e.Name == "error"
}
