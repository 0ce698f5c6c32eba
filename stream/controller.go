// ABOUTME: Stream controller owning the live event connection lifecycle for one task view.
// ABOUTME: Connect, dispatch, heartbeat, bounded reconnect, and terminal-state reconciliation via polling.

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skytodmoon/OpenManus/sse"
)

// ErrRetriesExhausted is returned by Watch when the reconnect budget is
// spent without reaching a terminal state. Recovery requires a fresh Watch.
var ErrRetriesExhausted = errors.New("connection retries exhausted")

// State is the controller's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config tunes the controller's timing and retry bounds.
type Config struct {
	// HeartbeatInterval is the idle window after which a liveness marker is
	// shown. The heartbeat is a liveness indicator only, never a
	// cancellation trigger.
	HeartbeatInterval time.Duration

	// RetryDelay is the fixed wait between reconnect attempts. Deliberately
	// not exponential: the budget is small and the server is local.
	RetryDelay time.Duration

	// MaxRetries bounds consecutive reconnect attempts. The counter resets
	// only when a fresh connection delivers a real event.
	MaxRetries int
}

// DefaultConfig returns the production timing: 5s heartbeat, 2s retry
// delay, 3 retries.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		RetryDelay:        2 * time.Second,
		MaxRetries:        3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	return c
}

// Controller drives one task view: it owns at most one live connection, the
// step store for the active task, and the result panel. Events are handled
// one at a time to completion (normalize, append, redraw, conditional status
// poll) so no two redraws interleave.
type Controller struct {
	client   *Client
	cfg      Config
	renderer Renderer
	panel    *Panel
	log      logrus.FieldLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	state   State
	status  TaskStatus
	retries int
	store   *StepStore
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithConfig overrides the default timing configuration.
func WithConfig(cfg Config) ControllerOption {
	return func(c *Controller) { c.cfg = cfg.withDefaults() }
}

// WithControllerLogger overrides the default standard logger.
func WithControllerLogger(l logrus.FieldLogger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

// NewController creates a controller rendering through r and presenting
// results on panel.
func NewController(client *Client, r Renderer, panel *Panel, opts ...ControllerOption) *Controller {
	c := &Controller{
		client:   client,
		cfg:      DefaultConfig(),
		renderer: r,
		panel:    panel,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the last task status observed via events or polling.
func (c *Controller) Status() TaskStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// DownloadURL returns the absolute download URL for a saved artifact path.
func (c *Controller) DownloadURL(filePath string) string {
	return c.client.DownloadURL(filePath)
}

// Retries returns the reconnect attempts consumed by the current session.
func (c *Controller) Retries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

// Steps returns the current display-ordered step list, or nil before the
// first Watch.
func (c *Controller) Steps() []Step {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store == nil {
		return nil
	}
	return store.Steps()
}

// Stop tears down any live session. Watch returns with the context error.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Create closes any live session, then submits a new task and returns its
// ID. Creating a task never leaves a stale connection behind.
func (c *Controller) Create(ctx context.Context, prompt string) (string, error) {
	c.Stop()
	return c.client.CreateTask(ctx, prompt)
}

// Watch follows a task until it reaches a terminal state, the retry budget
// is exhausted, or the context is cancelled. Calling Watch while a previous
// Watch is live tears the old session down first; the step store is replaced
// wholesale, never shared across tasks.
func (c *Controller) Watch(ctx context.Context, taskID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := NewStepStore(c.renderer)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.retries = 0
	c.status = ""
	c.store = store
	c.mu.Unlock()

	log := c.log.WithField("task", taskID)

	for {
		c.setState(StateConnecting)

		// Seed poll: covers events emitted before the stream attaches.
		if snap, err := c.client.GetTask(ctx, taskID); err != nil {
			log.WithError(err).Warn("seed status poll failed")
		} else {
			c.setStatus(snap.Status)
		}

		es, err := c.client.Events(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			log.WithError(err).Warn("event stream open failed")
			done, werr := c.handleTransportFailure(ctx, taskID, store)
			if done {
				return werr
			}
			continue
		}

		c.setState(StateConnected)
		terminal, consumeErr := c.consume(ctx, taskID, store, es)
		es.Close()

		if terminal {
			return nil
		}
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		if consumeErr != nil {
			log.WithError(consumeErr).Warn("event stream broke")
		} else {
			log.Warn("event stream ended without terminal event")
		}
		done, werr := c.handleTransportFailure(ctx, taskID, store)
		if done {
			return werr
		}
	}
}

// consume processes events from one connection until a terminal event, a
// transport error, or cancellation. Returns terminal=true when the session
// is finished for good.
func (c *Controller) consume(ctx context.Context, taskID string, store *StepStore, es *EventStream) (terminal bool, err error) {
	hb := c.cfg.HeartbeatInterval
	timer := time.NewTimer(hb)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()

		case <-timer.C:
			// Idle window elapsed: show liveness, arm the next window.
			// Heartbeats never touch the step store or trigger polls.
			c.renderer.ShowLiveness(time.Now())
			timer.Reset(hb)

		case evt, ok := <-es.C:
			if !ok {
				return false, es.Err()
			}
			if evt.Comment {
				c.log.WithField("comment", evt.Data).Debug("server heartbeat")
				continue
			}
			resetTimer(timer, hb)
			if c.dispatch(ctx, taskID, store, evt) {
				return true, nil
			}
		}
	}
}

// dispatch handles one named event to completion. Returns true when the
// event terminated the session; no further events are accepted after that.
func (c *Controller) dispatch(ctx context.Context, taskID string, store *StepStore, evt sse.Event) bool {
	now := time.Now()

	switch evt.Type {
	case "status":
		c.applyStatus(evt.Data)
		return false

	case "complete":
		result := payloadField(evt.Data, "result")
		content := result
		if content == "" {
			content = "Task completed"
		}
		store.Append(Step{Kind: KindComplete, Content: content, Display: displayClock(now), ReceivedAt: now})
		c.panel.Present(content, KindResult)
		c.panel.Show()
		// Final poll so the view reflects the authoritative snapshot.
		if snap, err := c.client.GetTask(ctx, taskID); err == nil {
			c.setStatus(snap.Status)
		} else {
			c.setStatus(TaskCompleted)
		}
		c.setState(StateCompleted)
		return true

	case "error":
		msg := payloadField(evt.Data, "message")
		if msg == "" {
			msg = "Task failed"
		}
		store.Append(Step{Kind: KindError, Content: msg, Display: displayClock(now), ReceivedAt: now})
		c.panel.Present(msg, KindError)
		c.panel.Show()
		c.setStatus(TaskFailed)
		c.setState(StateFailed)
		return true

	default:
		step, err := Normalize(evt.Type, []byte(evt.Data), now)
		if err != nil {
			// Malformed payloads are isolated per event, never fatal.
			c.log.WithError(err).WithField("event", evt.Type).Warn("dropping malformed event")
			return false
		}

		// A real event on this connection proves it is healthy; only now
		// does the retry counter reset, never mid-retry.
		c.mu.Lock()
		c.retries = 0
		c.mu.Unlock()

		store.Append(step)

		if step.Kind == KindAct || step.Kind == KindTool || step.Kind == KindResult {
			c.panel.Present(step.Content, step.Kind)
			c.panel.Show()
		}

		// Per-event status poll keeps Task.status current between events.
		if snap, err := c.client.GetTask(ctx, taskID); err != nil {
			if ctx.Err() == nil {
				c.surfaceRequestFailure(store, fmt.Sprintf("Status poll failed: %v", err))
			}
		} else {
			c.setStatus(snap.Status)
		}
		return false
	}
}

// handleTransportFailure reconciles after a broken connection: poll once,
// synthesize terminal handling if the task actually finished, otherwise
// retry within the budget. Returns done=true when Watch should stop.
func (c *Controller) handleTransportFailure(ctx context.Context, taskID string, store *StepStore) (done bool, err error) {
	if snap, perr := c.client.GetTask(ctx, taskID); perr == nil && snap.Status.Terminal() {
		c.synthesizeTerminal(store, snap)
		return true, nil
	}
	if ctx.Err() != nil {
		c.setState(StateDisconnected)
		return true, ctx.Err()
	}

	c.mu.Lock()
	exhausted := c.retries >= c.cfg.MaxRetries
	if !exhausted {
		c.retries++
	}
	attempt := c.retries
	c.mu.Unlock()

	now := time.Now()
	if exhausted {
		msg := "Connection lost. Please refresh to reconnect."
		store.Append(Step{Kind: KindError, Content: msg, Display: displayClock(now), ReceivedAt: now})
		c.panel.Present(msg, KindError)
		c.panel.Show()
		c.setState(StateDisconnected)
		return true, ErrRetriesExhausted
	}

	c.setState(StateReconnecting)
	msg := fmt.Sprintf("Connection lost, retrying (%d/%d)...", attempt, c.cfg.MaxRetries)
	store.Append(Step{Kind: KindWarning, Content: msg, Display: displayClock(now), ReceivedAt: now})

	select {
	case <-time.After(c.cfg.RetryDelay):
		return false, nil
	case <-ctx.Done():
		c.setState(StateDisconnected)
		return true, ctx.Err()
	}
}

// synthesizeTerminal applies the same terminal handling as a live
// complete/error event, derived from a polled snapshot.
func (c *Controller) synthesizeTerminal(store *StepStore, snap *TaskSnapshot) {
	now := time.Now()
	c.setStatus(snap.Status)

	if snap.Status == TaskCompleted {
		content := "Task completed"
		if len(snap.Steps) > 0 {
			if text := snap.Steps[len(snap.Steps)-1].Text(); text != "" {
				content = text
			}
		}
		store.Append(Step{Kind: KindComplete, Content: content, Display: displayClock(now), ReceivedAt: now})
		c.panel.Present(content, KindResult)
		c.panel.Show()
		c.setState(StateCompleted)
		return
	}

	msg := snap.Error
	if msg == "" {
		msg = "Task failed"
	}
	store.Append(Step{Kind: KindError, Content: msg, Display: displayClock(now), ReceivedAt: now})
	c.panel.Present(msg, KindError)
	c.panel.Show()
	c.setState(StateFailed)
}

// surfaceRequestFailure renders a request failure through both visible
// channels: a step marker and the result panel.
func (c *Controller) surfaceRequestFailure(store *StepStore, msg string) {
	now := time.Now()
	store.Append(Step{Kind: KindError, Content: msg, Display: displayClock(now), ReceivedAt: now})
	c.panel.Present(msg, KindError)
	c.panel.Show()
}

// applyStatus updates the tracked task status from a status event payload.
func (c *Controller) applyStatus(data string) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := unmarshalLoose(data, &payload); err != nil {
		c.log.WithError(err).Debug("unreadable status event")
		return
	}
	if payload.Status != "" {
		c.setStatus(TaskStatus(payload.Status))
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) setStatus(s TaskStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// resetTimer re-arms the heartbeat window after a real event, draining a
// concurrent fire if needed.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
