// ABOUTME: Tests for the stream controller state machine against a scripted fake task server.
// ABOUTME: Covers terminal handling, bounded reconnect, heartbeat liveness, and malformed-event isolation.

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skytodmoon/OpenManus/sse"
)

// fakeTaskServer scripts the external task server: a mutable snapshot for
// polls and a per-connection function for the event stream.
type fakeTaskServer struct {
	t *testing.T

	mu       sync.Mutex
	status   TaskStatus
	errMsg   string
	steps    []StepRecord
	polls    int
	connects int

	perConn func(conn int, w http.ResponseWriter, r *http.Request)

	srv *httptest.Server
}

func newFakeTaskServer(t *testing.T, perConn func(conn int, w http.ResponseWriter, r *http.Request)) *fakeTaskServer {
	f := &fakeTaskServer{t: t, status: TaskRunning, perConn: perConn}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTaskServer) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/tasks":
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "t1"})

	case r.URL.Path == "/tasks/t1/events":
		f.mu.Lock()
		f.connects++
		n := f.connects
		f.mu.Unlock()
		f.perConn(n, w, r)

	case r.URL.Path == "/tasks/t1":
		f.mu.Lock()
		f.polls++
		snap := map[string]any{
			"id":         "t1",
			"prompt":     "p",
			"status":     string(f.status),
			"created_at": time.Now().Format(time.RFC3339Nano),
			"steps":      f.steps,
		}
		if f.errMsg != "" {
			snap["error"] = f.errMsg
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(snap)

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Task not found"})
	}
}

func (f *fakeTaskServer) setSnapshot(status TaskStatus, errMsg string, steps []StepRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.errMsg = errMsg
	f.steps = steps
}

func (f *fakeTaskServer) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeTaskServer) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func fastConfig() Config {
	return Config{
		HeartbeatInterval: 50 * time.Millisecond,
		RetryDelay:        10 * time.Millisecond,
		MaxRetries:        3,
	}
}

func newTestController(f *fakeTaskServer, r Renderer, p *Panel) *Controller {
	client := NewClient(f.srv.URL, WithClientLogger(quietLogger()))
	return NewController(client, r, p,
		WithConfig(fastConfig()),
		WithControllerLogger(quietLogger()))
}

func failStream(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": "stream unavailable"})
}

func countKind(steps []Step, k Kind) int {
	n := 0
	for _, s := range steps {
		if s.Kind == k {
			n++
		}
	}
	return n
}

func TestWatchCompletesTask(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		sw := sse.NewWriter(w)
		_ = sw.WriteComment("heartbeat")
		_ = sw.WriteEvent("think", `{"result":"first I will read the file"}`)
		_ = sw.WriteEvent("tool", `{"result":"Executing tool: file_reader"}`)
		_ = sw.WriteEvent("complete", `{"result":"summary written"}`)
	})

	r := &recordingRenderer{}
	p := NewPanel(nil)
	c := newTestController(f, r, p)

	if err := c.Watch(context.Background(), "t1"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if c.State() != StateCompleted {
		t.Errorf("expected completed state, got %s", c.State())
	}

	steps := c.Steps()
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %+v", len(steps), steps)
	}
	if steps[0].Kind != KindThink || steps[1].Kind != KindTool || steps[2].Kind != KindComplete {
		t.Errorf("unexpected step kinds: %s, %s, %s", steps[0].Kind, steps[1].Kind, steps[2].Kind)
	}

	active := 0
	for _, s := range steps {
		if s.Active {
			active++
		}
	}
	if active != 1 || !steps[len(steps)-1].Active {
		t.Errorf("expected exactly the last step active")
	}

	ps := p.State()
	if !ps.Visible || ps.Label != "Result" {
		t.Errorf("expected visible result panel, got %+v", ps)
	}
	if ps.Content != "summary written" {
		t.Errorf("unexpected panel content %q", ps.Content)
	}

	// Seed poll, per-event polls for think and tool, final poll on complete.
	if f.pollCount() < 3 {
		t.Errorf("expected at least 3 status polls, got %d", f.pollCount())
	}
}

func TestWatchToolPresentsPanel(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		sw := sse.NewWriter(w)
		_ = sw.WriteEvent("act", `{"result":"Content successfully saved to /out/report.png"}`)
		_ = sw.WriteEvent("complete", `{"result":"done"}`)
	})

	var snapshots []PanelState
	p := NewPanel(func(s PanelState) { snapshots = append(snapshots, s) })
	c := newTestController(f, &recordingRenderer{}, p)

	if err := c.Watch(context.Background(), "t1"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	var sawAct bool
	for _, s := range snapshots {
		if s.Kind == KindAct && strings.Contains(s.Content, "/out/report.png") {
			sawAct = true
		}
	}
	if !sawAct {
		t.Error("expected the act step presented on the panel before completion")
	}
}

func TestErrorEventTerminatesSession(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		sw := sse.NewWriter(w)
		_ = sw.WriteEvent("error", `{"message":"agent exploded"}`)
		// Events after the terminal one must not be appended.
		_ = sw.WriteEvent("think", `{"result":"too late"}`)
	})

	r := &recordingRenderer{}
	p := NewPanel(nil)
	c := newTestController(f, r, p)

	if err := c.Watch(context.Background(), "t1"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if c.State() != StateFailed {
		t.Errorf("expected failed state, got %s", c.State())
	}
	steps := c.Steps()
	if len(steps) != 1 || steps[0].Kind != KindError || steps[0].Content != "agent exploded" {
		t.Errorf("expected only the error marker, got %+v", steps)
	}
	if !p.State().Visible {
		t.Error("expected panel visible with the error")
	}
}

func TestRetryBoundExhaustion(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		failStream(w, r)
	})

	r := &recordingRenderer{}
	p := NewPanel(nil)
	c := newTestController(f, r, p)

	err := c.Watch(context.Background(), "t1")
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}

	// Initial attempt plus exactly MaxRetries reconnects, never one more.
	if f.connectCount() != 4 {
		t.Errorf("expected 4 connection attempts, got %d", f.connectCount())
	}

	steps := c.Steps()
	if got := countKind(steps, KindWarning); got != 3 {
		t.Errorf("expected 3 retry warning markers, got %d", got)
	}
	if got := countKind(steps, KindError); got != 1 {
		t.Errorf("expected 1 permanent error marker, got %d", got)
	}
	if last := steps[len(steps)-1]; last.Kind != KindError {
		t.Errorf("expected the permanent marker last, got %s", last.Kind)
	}
	if c.State() != StateDisconnected {
		t.Errorf("expected disconnected state, got %s", c.State())
	}
}

func TestRetryCounterResetsOnRealEvent(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		if conn == 2 {
			sse.PrepareHeaders(w.Header())
			sw := sse.NewWriter(w)
			_ = sw.WriteEvent("think", `{"result":"alive"}`)
			// Return without a terminal event: transport break.
			return
		}
		failStream(w, r)
	})

	c := newTestController(f, &recordingRenderer{}, NewPanel(nil))

	err := c.Watch(context.Background(), "t1")
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}

	// conn1 fails (retry 1), conn2 delivers an event resetting the counter
	// then breaks (retry 1 again), conns 3 and 4 fail (retries 2, 3), conn5
	// fails and exhausts the budget. Without the reset this would stop at 4.
	if f.connectCount() != 5 {
		t.Errorf("expected 5 connection attempts with counter reset, got %d", f.connectCount())
	}
}

func TestTransportBreakWithTerminalSnapshot(t *testing.T) {
	var f *fakeTaskServer
	f = newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		sw := sse.NewWriter(w)
		_ = sw.WriteEvent("act", `{"result":"working"}`)
		// Task finishes while the stream is broken.
		f.setSnapshot(TaskCompleted, "", []StepRecord{
			{Type: "act", Content: "working"},
			{Type: "result", Content: "the final answer"},
		})
	})

	r := &recordingRenderer{}
	p := NewPanel(nil)
	c := newTestController(f, r, p)

	if err := c.Watch(context.Background(), "t1"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if c.State() != StateCompleted {
		t.Errorf("expected completed state, got %s", c.State())
	}
	steps := c.Steps()
	last := steps[len(steps)-1]
	if last.Kind != KindComplete || last.Content != "the final answer" {
		t.Errorf("expected synthesized terminal marker from snapshot, got %+v", last)
	}
	if countKind(steps, KindWarning) != 0 {
		t.Errorf("terminal snapshot must not spend retries: %+v", steps)
	}
	if p.State().Content != "the final answer" {
		t.Errorf("unexpected panel content %q", p.State().Content)
	}
}

func TestTransportBreakWithFailedSnapshot(t *testing.T) {
	var f *fakeTaskServer
	f = newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		f.setSnapshot(TaskFailed, "agent crashed", nil)
	})

	c := newTestController(f, &recordingRenderer{}, NewPanel(nil))

	if err := c.Watch(context.Background(), "t1"); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if c.State() != StateFailed {
		t.Errorf("expected failed state, got %s", c.State())
	}
	steps := c.Steps()
	if len(steps) != 1 || steps[0].Kind != KindError || steps[0].Content != "agent crashed" {
		t.Errorf("expected synthesized error marker, got %+v", steps)
	}
}

func TestHeartbeatLivenessMarkers(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		<-r.Context().Done()
	})

	r := &recordingRenderer{}
	c := newTestController(f, r, NewPanel(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, "t1") }()

	// Five heartbeat intervals with no events.
	time.Sleep(275 * time.Millisecond)
	seedPolls := f.pollCount()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancellation")
	}

	if got := r.livenessCount(); got < 3 || got > 7 {
		t.Errorf("expected around 5 liveness markers, got %d", got)
	}
	if len(c.Steps()) != 0 {
		t.Errorf("heartbeats must not mutate the step store: %+v", c.Steps())
	}
	// Only the seed poll; heartbeats alone trigger no status polls.
	if seedPolls != 1 {
		t.Errorf("expected exactly 1 poll (seed), got %d", seedPolls)
	}
}

func TestMalformedEventDroppedSessionContinues(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		sw := sse.NewWriter(w)
		_ = sw.WriteEvent("think", `{broken json`)
		_ = sw.WriteEvent("act", `{"result":"still going"}`)
		_ = sw.WriteEvent("complete", `{"result":"done"}`)
	})

	c := newTestController(f, &recordingRenderer{}, NewPanel(nil))

	if err := c.Watch(context.Background(), "t1"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	steps := c.Steps()
	if len(steps) != 2 {
		t.Fatalf("expected malformed event dropped, got %d steps: %+v", len(steps), steps)
	}
	if steps[0].Kind != KindAct || steps[1].Kind != KindComplete {
		t.Errorf("unexpected steps %+v", steps)
	}
}

func TestStatusEventUpdatesStatusWithoutStep(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		sw := sse.NewWriter(w)
		_ = sw.WriteEvent("status", `{"type":"status","status":"running","steps":[]}`)
		_ = sw.WriteEvent("complete", `{"result":"done"}`)
	})

	c := newTestController(f, &recordingRenderer{}, NewPanel(nil))

	if err := c.Watch(context.Background(), "t1"); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	steps := c.Steps()
	if len(steps) != 1 || steps[0].Kind != KindComplete {
		t.Errorf("status events must not become steps: %+v", steps)
	}
}

func TestStopCancelsLiveSession(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		<-r.Context().Done()
	})

	c := newTestController(f, &recordingRenderer{}, NewPanel(nil))

	done := make(chan error, 1)
	go func() { done <- c.Watch(context.Background(), "t1") }()

	// Give the session time to connect, then tear it down.
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after Stop")
	}
}

func TestCreateTearsDownLiveSession(t *testing.T) {
	f := newFakeTaskServer(t, func(conn int, w http.ResponseWriter, r *http.Request) {
		sse.PrepareHeaders(w.Header())
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		<-r.Context().Done()
	})

	c := newTestController(f, &recordingRenderer{}, NewPanel(nil))

	done := make(chan error, 1)
	go func() { done <- c.Watch(context.Background(), "t1") }()
	time.Sleep(50 * time.Millisecond)

	id, err := c.Create(context.Background(), "next prompt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "t1" {
		t.Errorf("unexpected task id %q", id)
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected prior Watch cancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("prior Watch did not return after Create")
	}
}
