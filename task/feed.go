// ABOUTME: Per-task event feed with history replay and subscriber fan-out.
// ABOUTME: Late subscribers receive everything published before they attached, then live events.

package task

import "sync"

// feedBuffer is the per-subscriber channel capacity. Slow subscribers that
// fall this far behind have events dropped rather than blocking the agent.
const feedBuffer = 64

// feed is the live event channel for one task. It retains full history so a
// client that connects after the agent started still sees every event.
type feed struct {
	mu      sync.Mutex
	history []Event
	subs    map[int]chan Event
	nextID  int
	closed  bool
}

func newFeed() *feed {
	return &feed{subs: make(map[int]chan Event)}
}

// publish appends the event to history and fans it out to all subscribers.
// Events sent to a full subscriber channel are dropped for that subscriber.
func (f *feed) publish(evt Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.history = append(f.history, evt)
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	if evt.Terminal() {
		f.closeLocked()
	}
}

// subscribe returns a copy of the history so far, a channel for subsequent
// events, and a cancel function. The channel is closed when the feed
// terminates or cancel is called.
func (f *feed) subscribe() ([]Event, <-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	history := make([]Event, len(f.history))
	copy(history, f.history)

	ch := make(chan Event, feedBuffer)
	if f.closed {
		close(ch)
		return history, ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return history, ch, cancel
}

func (f *feed) closeLocked() {
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
