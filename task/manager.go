// ABOUTME: In-memory task manager coordinating task lifecycle, event feeds, and persistence.
// ABOUTME: Owns the task map, per-task feeds, and mirrors every mutation into the optional SQLite store.

package task

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for operations on unknown task IDs.
var ErrNotFound = errors.New("task not found")

// ErrTerminal is returned when a mutation targets a task that already
// completed or failed.
var ErrTerminal = errors.New("task is terminal")

// Manager owns all tasks known to the server. All methods are safe for
// concurrent use; agent runners and HTTP handlers call in from separate
// goroutines.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	feeds map[string]*feed

	store   *Store
	log     logrus.FieldLogger
	entropy *ulid.MonotonicEntropy
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore attaches a SQLite store; every mutation is mirrored into it and
// existing rows are loaded on construction.
func WithStore(s *Store) ManagerOption {
	return func(m *Manager) { m.store = s }
}

// WithLogger overrides the default standard logger.
func WithLogger(l logrus.FieldLogger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a Manager. When a store is attached, previously
// persisted tasks become visible to Get and List immediately; their feeds are
// not resurrected (a restarted server has no live agent for them).
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		tasks:   make(map[string]*Task),
		feeds:   make(map[string]*feed),
		log:     logrus.StandardLogger(),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store != nil {
		loaded, err := m.store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("loading persisted tasks: %w", err)
		}
		for _, t := range loaded {
			m.tasks[t.ID] = t
		}
		if len(loaded) > 0 {
			m.log.WithField("tasks", len(loaded)).Info("restored persisted tasks")
		}
	}
	return m, nil
}

// Create registers a new pending task for the prompt and opens its feed.
func (m *Manager) Create(prompt string) (*Task, error) {
	t := &Task{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		Steps:     []Step{},
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.feeds[t.ID] = newFeed()
	m.mu.Unlock()

	m.persist(t)
	m.log.WithFields(logrus.Fields{"task": t.ID}).Info("task created")
	return t, nil
}

// Get returns a snapshot copy of the task.
func (m *Manager) Get(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(t), nil
}

// List returns snapshots of all tasks, newest first. This ordering is the
// server's contract for GET /tasks; clients render it as-is.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Subscribe attaches to a task's live feed, returning already-published
// events followed by a channel of subsequent ones.
func (m *Manager) Subscribe(id string) ([]Event, <-chan Event, func(), error) {
	m.mu.RLock()
	f, ok := m.feeds[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, nil, ErrNotFound
	}
	history, ch, cancel := f.subscribe()
	return history, ch, cancel, nil
}

// SetRunning marks a pending task as running and publishes a status event.
func (m *Manager) SetRunning(id string) error {
	return m.mutate(id, func(t *Task, f *feed) {
		t.Status = StatusRunning
		f.publish(m.statusEvent(t))
	})
}

// AppendStep records one step of agent activity and publishes it, followed by
// a status refresh so pollers and stream clients stay in sync.
func (m *Manager) AppendStep(id, stepType, content string) error {
	return m.mutate(id, func(t *Task, f *feed) {
		step := Step{
			ID:        ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String(),
			Type:      stepType,
			Content:   content,
			Timestamp: time.Now().Format(time.RFC3339Nano),
		}
		t.Steps = append(t.Steps, step)
		f.publish(Event{Name: stepType, Data: map[string]any{"result": content}})
		f.publish(m.statusEvent(t))
	})
}

// Complete marks the task completed and publishes the terminal event carrying
// the final result.
func (m *Manager) Complete(id, result string) error {
	err := m.mutate(id, func(t *Task, f *feed) {
		t.Status = StatusCompleted
		f.publish(m.statusEvent(t))
		f.publish(Event{Name: "complete", Data: map[string]any{"result": result}})
	})
	if err == nil {
		m.log.WithField("task", id).Info("task completed")
	}
	return err
}

// Fail marks the task failed with the given message and publishes the
// terminal error event.
func (m *Manager) Fail(id, msg string) error {
	err := m.mutate(id, func(t *Task, f *feed) {
		t.Status = StatusFailed
		t.Error = msg
		f.publish(Event{Name: "error", Data: map[string]any{"message": msg}})
	})
	if err == nil {
		m.log.WithFields(logrus.Fields{"task": id, "error": msg}).Warn("task failed")
	}
	return err
}

// mutate runs fn on the task under the write lock, rejecting unknown and
// terminal tasks, then persists the result.
func (m *Manager) mutate(id string, fn func(*Task, *feed)) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if t.Status.Terminal() {
		m.mu.Unlock()
		return ErrTerminal
	}
	f := m.feeds[id]
	if f == nil {
		f = newFeed()
		m.feeds[id] = f
	}
	fn(t, f)
	snap := snapshot(t)
	m.mu.Unlock()

	m.persist(snap)
	return nil
}

// statusEvent builds the status refresh payload mirroring the task snapshot.
// Callers must hold the write lock.
func (m *Manager) statusEvent(t *Task) Event {
	steps := make([]map[string]any, 0, len(t.Steps))
	for _, s := range t.Steps {
		steps = append(steps, map[string]any{
			"type":      s.Type,
			"result":    s.Content,
			"timestamp": s.Timestamp,
		})
	}
	return Event{Name: "status", Data: map[string]any{
		"type":   "status",
		"status": string(t.Status),
		"steps":  steps,
	}}
}

func (m *Manager) persist(t *Task) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(t); err != nil {
		m.log.WithFields(logrus.Fields{"task": t.ID, "err": err}).Error("persist task")
	}
}

func snapshot(t *Task) *Task {
	c := *t
	c.Steps = make([]Step, len(t.Steps))
	copy(c.Steps, t.Steps)
	return &c
}
