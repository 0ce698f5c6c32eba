// ABOUTME: History loader fetching past tasks and replaying a task's steps through the ordering store.
// ABOUTME: Persisted steps without timestamps fall back to the task's creation instant, degrading to array order.

package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// History loads past tasks and replays them through the same ordering and
// rendering path as live steps.
type History struct {
	client   *Client
	renderer Renderer
	panel    *Panel
	log      logrus.FieldLogger
}

// NewHistory creates a loader rendering through r and presenting the
// replayed result on panel.
func NewHistory(client *Client, r Renderer, panel *Panel) *History {
	return &History{client: client, renderer: r, panel: panel, log: logrus.StandardLogger()}
}

// List fetches all known tasks. The server's ordering is the contract;
// the list is rendered as returned, never re-sorted client-side.
func (h *History) List(ctx context.Context) ([]TaskSummary, error) {
	return h.client.ListTasks(ctx)
}

// Load fetches one task and replays its steps through a fresh StepStore.
// Steps that carry their own timestamp sort by it; steps without one use the
// task's creation timestamp, which collapses ordering to array index. That
// degraded ordering is a documented limitation of timestampless records, not
// something to silently mask. The chronologically last step ends up active
// and expanded, and its content goes to the result panel.
func (h *History) Load(ctx context.Context, taskID string) (*StepStore, error) {
	snap, err := h.client.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}

	store := NewStepStore(h.renderer)
	for _, rec := range snap.Steps {
		ts := parseStepTime(rec.Timestamp, snap.CreatedAt)
		store.Append(Step{
			Kind:       KindOf(rec.Type),
			Content:    rec.Text(),
			Display:    displayClock(ts),
			ReceivedAt: ts,
		})
	}

	if store.Len() > 0 {
		store.SetExpanded(store.Len()-1, true)
		last, _ := store.Last()
		h.panel.Present(last.Content, last.Kind)
		h.panel.Show()
	} else {
		h.panel.Hide()
	}

	h.log.WithFields(logrus.Fields{"task": taskID, "steps": store.Len()}).Debug("replayed task history")
	return store, nil
}

// parseStepTime parses a persisted step timestamp, falling back to the
// task's creation instant when the record has none.
func parseStepTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return fallback
}
