// ABOUTME: SSE handler streaming a task's event feed: initial status, history replay, then live events.
// ABOUTME: A heartbeat comment precedes every delivery so idle proxies keep the connection open.
package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skytodmoon/OpenManus/sse"
	"github.com/skytodmoon/OpenManus/task"
)

// handleTaskEvents streams the task's event feed as server-sent events. The
// stream opens with a status event built from the current snapshot, replays
// every event published so far, then follows the live feed until a terminal
// event or client disconnect. Unknown tasks get an error event on an
// otherwise well-formed stream so EventSource clients see it as an event
// rather than a transport failure.
func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	sse.PrepareHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	sw := sse.NewWriter(w)

	t, err := s.mgr.Get(taskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			_ = sw.WriteJSON("error", map[string]string{"message": "Task not found"})
			return
		}
		_ = sw.WriteJSON("error", map[string]string{"message": "Failed to load task"})
		return
	}

	if err := s.writeStatus(sw, t); err != nil {
		return
	}

	history, live, cancel, err := s.mgr.Subscribe(taskID)
	if err != nil {
		// The task exists but its feed is gone: a restarted server has no
		// live agent for it. Synthesize the terminal event from the snapshot.
		s.writeSnapshotTerminal(sw, t)
		return
	}
	defer cancel()

	for _, evt := range history {
		if done := s.deliver(sw, evt); done {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-live:
			if !ok {
				return
			}
			if done := s.deliver(sw, evt); done {
				return
			}
		}
	}
}

// deliver writes one event preceded by a heartbeat comment. Returns true when
// the event was terminal or the client went away.
func (s *Server) deliver(sw *sse.Writer, evt task.Event) bool {
	if err := sw.WriteComment("heartbeat"); err != nil {
		return true
	}
	if err := sw.WriteEvent(evt.Name, evt.EncodeData()); err != nil {
		s.log.WithError(err).Debug("sse write failed")
		return true
	}
	return evt.Terminal()
}

// writeStatus sends the initial status event mirroring the snapshot.
func (s *Server) writeStatus(sw *sse.Writer, t *task.Task) error {
	steps := make([]map[string]any, 0, len(t.Steps))
	for _, st := range t.Steps {
		steps = append(steps, map[string]any{
			"type":      st.Type,
			"result":    st.Content,
			"timestamp": st.Timestamp,
		})
	}
	return sw.WriteJSON("status", map[string]any{
		"type":   "status",
		"status": string(t.Status),
		"steps":  steps,
	})
}

// writeSnapshotTerminal closes a feed-less stream with the terminal event the
// snapshot implies. Non-terminal snapshots get an error: without a feed no
// further progress will ever arrive.
func (s *Server) writeSnapshotTerminal(sw *sse.Writer, t *task.Task) {
	switch {
	case t.Status == task.StatusCompleted:
		result := ""
		if len(t.Steps) > 0 {
			result = t.Steps[len(t.Steps)-1].Content
		}
		_ = sw.WriteJSON("complete", map[string]string{"result": result})
	case t.Status == task.StatusFailed:
		msg := t.Error
		if msg == "" {
			msg = "Task failed"
		}
		_ = sw.WriteJSON("error", map[string]string{"message": msg})
	default:
		_ = sw.WriteJSON("error", map[string]string{"message": "Task has no active agent"})
	}
}
